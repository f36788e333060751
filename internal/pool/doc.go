// Package pool provides a reference-counted pool of remote API connections
// keyed by configuration fingerprint.
//
// Widgets that share identical connection settings lease the same underlying
// client. A lease is taken with Acquire and returned with Release; when the
// last lease for a key is released the connection is kept idle for quick
// re-acquisition, and a janitor evicts it after an idle threshold.
package pool
