// Package vtreecodec serializes and deserializes vtree nodes against the
// append-only term file in pkg/vfile.
//
// # Node format
//
//	[Type(1)][W,S,E,N float64 LE][Count(4)][entry]*Count
//
// A leaf entry is:
//
//	[W,S,E,N float64 LE][DocIDLen(4)][DocID][ValueLen(4)][Value]
//
// An inner entry is:
//
//	[W,S,E,N float64 LE][ChildOffset int64 LE]
//
// Framing, CRC32 integrity, and offset bookkeeping are vfile's job; this
// package only knows how to turn a Node into the bytes vfile.Append stores
// and back.
package vtreecodec
