package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"
)

// StatusError represents a remote call that completed with a non-success
// HTTP status. The remote client wraps every non-2xx response in a
// StatusError so the classifier can apply status-specific policy.
type StatusError struct {
	// Code is the HTTP status code.
	Code int

	// Message is the optional server-provided detail.
	Message string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("remote returned status %d", e.Code)
	}
	return fmt.Sprintf("remote returned status %d: %s", e.Code, e.Message)
}

// IsRetryable reports whether the error is worth retrying.
//
// Classification is ordered; the first matching rule wins:
//  1. HTTP 401/403/404 are durable — retrying wastes quota and delays
//     user feedback.
//  2. Network-level failures (DNS, refused, timeout, unreachable) are
//     transient.
//  3. HTTP 429 and 5xx gateway/server statuses are transient.
//  4. Everything else is retryable by default, failing open toward
//     availability.
func IsRetryable(err error) bool {
	retryable, _ := classify(err)
	return retryable
}

// DisplayMessage converts an error into a stable, user-facing string.
// Raw wire errors never reach the display layer directly; unknown errors
// surface their message text, or "Unknown error" when empty.
func DisplayMessage(err error) string {
	_, msg := classify(err)
	return msg
}

// classify applies the ordered classification policy.
func classify(err error) (retryable bool, message string) {
	if err == nil {
		return false, ""
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.Code {
		case http.StatusUnauthorized:
			return false, "Authentication failed: check your API token"
		case http.StatusForbidden:
			return false, "Access denied: insufficient permissions"
		case http.StatusNotFound:
			return false, "Resource not found"
		case http.StatusTooManyRequests:
			return true, "Rate limited by server"
		case http.StatusInternalServerError:
			return true, "Server error"
		case http.StatusBadGateway:
			return true, "Bad gateway"
		case http.StatusServiceUnavailable:
			return true, "Service unavailable"
		case http.StatusGatewayTimeout:
			return true, "Gateway timeout"
		}
		return true, unknownMessage(err)
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true, "Connection failed: host not found"
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return true, "Connection refused"
	}
	if errors.Is(err, syscall.ECONNRESET) {
		return true, "Connection reset"
	}
	if errors.Is(err, syscall.ENETUNREACH) || errors.Is(err, syscall.EHOSTUNREACH) {
		return true, "Network unreachable"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true, "Connection timed out"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true, "Connection timed out"
	}

	return true, unknownMessage(err)
}

func unknownMessage(err error) string {
	if msg := err.Error(); msg != "" {
		return msg
	}
	return "Unknown error"
}
