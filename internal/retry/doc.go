// Package retry provides the retry policy used for all remote calls:
// an exponential backoff calculator with jitter, an error classifier that
// separates durable failures from transient ones, and a bounded sequential
// retry executor.
//
// The three pieces are deliberately independent. The backoff calculator is a
// pure function of the attempt number. The classifier is a pure function of
// the error. The executor composes both around an arbitrary operation and
// reports each retry to an optional [Observer].
//
// This package is internal; the public API wraps it via the manager's
// retry configuration options.
package retry
