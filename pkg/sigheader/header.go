package sigheader

import (
	"bytes"
	"crypto/md5"
	"encoding/binary"
	"fmt"
)

// SignatureSize is the fixed width of the MD5 signature in bytes.
const SignatureSize = md5.Size

// NilOffset marks an absent root offset within a header.
const NilOffset int64 = -1

// Signature is an MD5 digest over a canonically serialized index
// definition. It is also the on-disk filename stem for the index file.
type Signature [SignatureSize]byte

// ComputeSignature hashes the canonical bytes of an index definition.
// Canonicalization (stable ordering of indices, language, design
// options) is the caller's responsibility; this just hashes whatever it
// is given.
func ComputeSignature(canonicalDef []byte) Signature {
	return Signature(md5.Sum(canonicalDef))
}

func (s Signature) String() string {
	return fmt.Sprintf("%x", [SignatureSize]byte(s))
}

// Header is the state committed at the tail of an index file: the
// signature it was written under, the database sequence it reflects,
// the purge sequence it has absorbed, the id-btree's root, and one tree
// root offset per declared index.
type Header struct {
	Signature     Signature
	CurrentSeq    uint64
	PurgeSeq      uint64
	IDBtreeOffset int64 // NilOffset if the id-btree is empty
	IndexRoots    []int64
}

// Encode serializes h for storage as a vfile header record.
func Encode(h Header) []byte {
	var buf bytes.Buffer
	buf.Write(h.Signature[:])

	var scratch [8]byte
	binary.LittleEndian.PutUint64(scratch[:], h.CurrentSeq)
	buf.Write(scratch[:])
	binary.LittleEndian.PutUint64(scratch[:], h.PurgeSeq)
	buf.Write(scratch[:])
	binary.LittleEndian.PutUint64(scratch[:], uint64(h.IDBtreeOffset))
	buf.Write(scratch[:])

	binary.LittleEndian.PutUint32(scratch[:4], uint32(len(h.IndexRoots)))
	buf.Write(scratch[:4])
	for _, off := range h.IndexRoots {
		binary.LittleEndian.PutUint64(scratch[:], uint64(off))
		buf.Write(scratch[:])
	}

	return buf.Bytes()
}

// Decode parses a header record previously written by Encode.
func Decode(data []byte) (Header, error) {
	if len(data) < SignatureSize+8+8+8+4 {
		return Header{}, fmt.Errorf("sigheader: header too short: %d bytes", len(data))
	}

	var h Header
	copy(h.Signature[:], data[:SignatureSize])
	pos := SignatureSize

	h.CurrentSeq = binary.LittleEndian.Uint64(data[pos : pos+8])
	pos += 8
	h.PurgeSeq = binary.LittleEndian.Uint64(data[pos : pos+8])
	pos += 8
	h.IDBtreeOffset = int64(binary.LittleEndian.Uint64(data[pos : pos+8]))
	pos += 8

	count := binary.LittleEndian.Uint32(data[pos : pos+4])
	pos += 4

	h.IndexRoots = make([]int64, count)
	for i := uint32(0); i < count; i++ {
		if pos+8 > len(data) {
			return Header{}, fmt.Errorf("sigheader: truncated root offset list")
		}
		h.IndexRoots[i] = int64(binary.LittleEndian.Uint64(data[pos : pos+8]))
		pos += 8
	}

	return h, nil
}

// Matches reports whether h was written under the given signature. A
// mismatch means the on-disk definition has diverged from the caller's
// current one and the file must be truncated and reset.
func (h Header) Matches(sig Signature) bool {
	return h.Signature == sig
}
