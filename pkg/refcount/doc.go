// Package refcount implements the reference-counted file-handle contract
// the group coordinator relies on: a snapshot handed to a reader must
// keep its underlying file open even if a newer header supersedes it
// before the reader is done. Increment happens before a snapshot is
// handed out; decrement happens when the reader releases it.
package refcount
