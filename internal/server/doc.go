// Package server provides the HTTP surface for widget render states.
//
// This package handles all HTTP concerns:
//
//   - REST API: JSON endpoint at "/api/widgets" for a current state snapshot
//   - Server-Sent Events: Real-time updates and removals at "/api/sse"
//
// The server supports graceful shutdown via context cancellation, with a
// 5-second timeout for in-flight requests.
package server
