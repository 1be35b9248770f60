// Package repository defines the persistence backend for pingwatch.
//
// A Repository is both the state store (alive, latency and browse values
// keyed by dotted ids, with change subscriptions) and the object store that
// holds the channel and state definitions the mapper reconciles.
//
// # SQLite Implementation
//
// The sqlite subpackage keeps states and objects in two tables. State values
// are stored as JSON so scalars and the discovered-host list round-trip
// unchanged. Subscriptions are in-process: handlers run after each committed
// write on the writer's goroutine.
//
// # Testing
//
// The sqlite repository is tested against in-memory databases.
package repository
