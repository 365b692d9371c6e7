// Package docdb defines the document-database contract the group
// coordinator and updater depend on — snapshot reads, update-sequence
// numbers, committed-sequence numbers, and change streams — and ships a
// cockroachdb/pebble-backed reference implementation of it.
//
// It also defines the spatial function runtime's contract: mapping a
// document to zero or more (mbr, value) emissions.
package docdb
