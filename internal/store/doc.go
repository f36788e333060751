// Package store provides storage and pub/sub functionality for widget
// render states.
//
// This package manages the in-memory storage of per-widget render states
// produced by the polling manager. It implements a publish-subscribe
// pattern for real-time updates to connected dashboard clients.
//
// The main components are:
//
//   - [Store]: Interface defining storage and subscription operations
//   - [MemoryStore]: In-memory implementation of Store with pub/sub
//   - [WidgetStatus]: Storage representation of a widget's render state
//
// The store is designed for concurrent access with proper synchronization.
// Subscribers receive updates via channels with non-blocking sends (slow
// subscribers will miss updates rather than block the system).
package store
