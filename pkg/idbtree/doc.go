// Package idbtree is the updater's doc_id -> [(index_id, mbr)] side table.
//
// The updater needs to diff a document's old spatial emissions against its
// new ones without re-running the spatial function against a document that
// has just been deleted. It keeps that mapping here: a thread-safe B+Tree
// keyed by doc_id, each leaf value holding every (index_id, mbr) pair the
// document currently contributes across the group's declared indices.
//
// The tree is a single-RWMutex B+Tree: splits propagate a promoted key
// and a new sibling back up the recursive call stack (the same shape
// pkg/vtree's own Insert uses), rather than the parent-pointer, per-node
// latch coupling a general-purpose multi-client store would want. That
// finer granularity isn't useful here: the only overlap is one updater
// goroutine mutating the tree against one coordinator goroutine reading
// it to commit a header, which a single lock already serializes.
package idbtree
