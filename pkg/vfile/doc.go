// Package vfile implements the append-only term file that backs a spatial
// index: append(term) -> offset, read(offset) -> term, write_header,
// read_header, and truncate. It is the storage primitive both the vtree
// node codec and the group coordinator's header build on.
//
// # Term framing
//
// Every write is a self-delimiting record:
//
//	[Marker(1)][Size(4)][CRC32(4)][Data(Size)]
//
// Marker distinguishes an ordinary node term from a header term, so a
// sequential scan of the file (run on every open) can locate the most
// recent header without a side index. CRC32 is
// computed over Marker+Size+Data and lets ReadAt/ReadHeader detect a torn
// write left by a crash between Append and fsync.
//
// # Legacy header upgrade
//
// Index files written by an older marker scheme carry the 4-byte magic
// prefix "rck\x00" instead of the current "vt1\x00". Open accepts either
// prefix; the file is rewritten with the current magic the next time a
// header is committed.
//
// # Durability
//
// Append and WriteHeader both fsync before returning the new offset, so a
// reader that observes an offset from either call is guaranteed the bytes
// are durable. This is more conservative than necessary for plain node
// appends (which could batch fsyncs), but matches the spec's invariant
// that a header is never built from a node offset that isn't durable yet.
package vfile
