package vtree

import (
	"errors"

	"github.com/spatialdb/spatialdb/pkg/mbr"
	"github.com/spatialdb/spatialdb/pkg/vfile"
	"github.com/spatialdb/spatialdb/pkg/vtreecodec"
)

// Default fill factors. Reimplementations are expected to expose these as
// configuration rather than compile-time constants; see pkg/config.
const (
	DefaultMinFilled = 40
	DefaultMaxFilled = 80
)

// Config carries the fill-factor parameters governing split thresholds.
type Config struct {
	MinFilled int
	MaxFilled int
}

// DefaultConfig returns the historical MIN_FILLED=40 / MAX_FILLED=80 pair.
func DefaultConfig() Config {
	return Config{MinFilled: DefaultMinFilled, MaxFilled: DefaultMaxFilled}
}

// Root identifies a tree's current state: either nil (Valid == false, an
// empty tree) or an offset plus the merged MBR of the node living there.
type Root struct {
	Valid  bool
	Offset int64
	MBR    mbr.Box
}

// Entry is a single (mbr, value, doc_id) tuple as seen by callers of
// Insert, Delete and Lookup.
type Entry struct {
	MBR   mbr.Box
	DocID []byte
	Value []byte
}

// Removal identifies a prior entry to remove by doc_id and the MBR it was
// indexed under.
type Removal struct {
	DocID []byte
	MBR   mbr.Box
}

// ErrNotFound is returned by Delete when doc_id is absent from the tree
// reachable from the given root.
var ErrNotFound = errors.New("vtree: entry not found")

func appendNode(file *vfile.File, n *vtreecodec.Node) (int64, error) {
	data, err := vtreecodec.Encode(n)
	if err != nil {
		return 0, err
	}
	return file.Append(data)
}

// GetNode reads and decodes the node at offset.
func GetNode(file *vfile.File, offset int64) (*vtreecodec.Node, error) {
	raw, err := file.ReadAt(offset)
	if err != nil {
		return nil, err
	}
	return vtreecodec.Decode(raw)
}

// NilRootOffset is the sentinel a committed header uses for an empty
// tree's root offset.
const NilRootOffset int64 = -1

// RootOffset returns the offset a header should persist for r, or
// NilRootOffset for an empty tree.
func RootOffset(r Root) int64 {
	if !r.Valid {
		return NilRootOffset
	}
	return r.Offset
}

// RootFromOffset rebuilds a Root from a previously persisted offset,
// reading the node's own merged MBR. offset == NilRootOffset yields the
// empty-tree Root.
func RootFromOffset(file *vfile.File, offset int64) (Root, error) {
	if offset == NilRootOffset {
		return Root{}, nil
	}
	n, err := GetNode(file, offset)
	if err != nil {
		return Root{}, err
	}
	return Root{Valid: true, Offset: offset, MBR: n.MBR}, nil
}

func mergeLeafMBRs(entries []vtreecodec.LeafEntry) mbr.Box {
	m := entries[0].MBR
	for _, e := range entries[1:] {
		m = mbr.Merge(m, e.MBR)
	}
	return m
}

func mergeInnerMBRs(entries []vtreecodec.InnerEntry) mbr.Box {
	m := entries[0].MBR
	for _, e := range entries[1:] {
		m = mbr.Merge(m, e.MBR)
	}
	return m
}
