// Package vtree implements a persistent, append-only R-tree over 2-D
// bounding boxes keyed by opaque document identifiers.
//
// Every mutation is copy-on-write: insert, delete and add_remove never
// touch an existing node record. Each appends a new chain of nodes from
// the mutation site up to a freshly written root, leaving the prior tree
// fully intact and readable through its own root offset. Node storage and
// on-disk encoding are delegated to pkg/vfile and pkg/vtreecodec; this
// package only knows how to walk and rebuild node graphs.
package vtree
