// Package sigheader encodes and decodes the trailer header committed to
// an index file, and computes the signature that ties a header to the
// index definition it describes.
//
// Header layout: 16-byte MD5 signature, current_seq (uint64), purge_seq
// (uint64), the id-btree's root offset (-1 for nil), a count of declared
// indices, then one root offset per index (-1 for nil). Every offset in
// the header must already be durable on disk before the header itself is
// written — pkg/vfile's fsync-on-append gives that for free since nodes
// are always appended before the header that references them.
package sigheader
