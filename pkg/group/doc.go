// Package group coordinates incremental construction of a set of vtree
// indices declared against a single document database: one goroutine
// owns the current tree roots, spawns an updater when a reader asks for
// a sequence the trees haven't reached yet, and only commits a new
// header once the database itself has durably committed the sequence
// the trees now reflect.
//
// Callers never touch the roots directly. RequestGroup is the only
// entry point: it either answers immediately from the coordinator's
// current state, or queues the caller behind a running (or freshly
// spawned) updater and answers once that updater reaches the requested
// sequence.
package group
