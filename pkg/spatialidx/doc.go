// Package spatialidx is the top-level facade tying a design document's
// declared spatial indices to an on-disk group: it resolves named
// indices into a deduplicated, stably-ordered function list, computes
// the signature that names the group's file, and opens the group
// coordinator against it.
package spatialidx
