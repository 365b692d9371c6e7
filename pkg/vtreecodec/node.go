package vtreecodec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/spatialdb/spatialdb/pkg/mbr"
)

// NodeType distinguishes a leaf node (holding leaf entries) from an inner
// node (holding offsets to child nodes).
type NodeType uint8

const (
	Leaf NodeType = iota
	Inner
)

func (t NodeType) String() string {
	if t == Leaf {
		return "leaf"
	}
	return "inner"
}

// LeafEntry is a single (mbr, value, doc_id) triple stored directly in a
// leaf node.
type LeafEntry struct {
	MBR   mbr.Box
	DocID []byte
	Value []byte
}

// InnerEntry points at a child node by file offset, carrying the child's
// merged MBR so the parent doesn't need to read the child to choose a
// subtree or to prune during lookup.
type InnerEntry struct {
	MBR    mbr.Box
	Offset int64
}

// Node is a single on-disk vtree node: leaf entries xor child offsets,
// plus the MBR merging whichever of the two it holds.
type Node struct {
	MBR    mbr.Box
	Type   NodeType
	Leaves []LeafEntry  // populated when Type == Leaf
	Inners []InnerEntry // populated when Type == Inner
}

const mbrSize = 8 * 4

func writeMBR(buf *bytes.Buffer, b mbr.Box) {
	var tmp [mbrSize]byte
	binary.LittleEndian.PutUint64(tmp[0:8], math.Float64bits(b.W))
	binary.LittleEndian.PutUint64(tmp[8:16], math.Float64bits(b.S))
	binary.LittleEndian.PutUint64(tmp[16:24], math.Float64bits(b.E))
	binary.LittleEndian.PutUint64(tmp[24:32], math.Float64bits(b.N))
	buf.Write(tmp[:])
}

func readMBR(data []byte) (mbr.Box, error) {
	if len(data) < mbrSize {
		return mbr.Box{}, fmt.Errorf("vtreecodec: short MBR: %d bytes", len(data))
	}
	return mbr.Box{
		W: math.Float64frombits(binary.LittleEndian.Uint64(data[0:8])),
		S: math.Float64frombits(binary.LittleEndian.Uint64(data[8:16])),
		E: math.Float64frombits(binary.LittleEndian.Uint64(data[16:24])),
		N: math.Float64frombits(binary.LittleEndian.Uint64(data[24:32])),
	}, nil
}

// Encode serializes a node to its wire representation.
func Encode(n *Node) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(byte(n.Type))
	writeMBR(&buf, n.MBR)

	switch n.Type {
	case Leaf:
		if err := binary.Write(&buf, binary.LittleEndian, uint32(len(n.Leaves))); err != nil {
			return nil, err
		}
		for _, e := range n.Leaves {
			writeMBR(&buf, e.MBR)
			if err := binary.Write(&buf, binary.LittleEndian, uint32(len(e.DocID))); err != nil {
				return nil, err
			}
			buf.Write(e.DocID)
			if err := binary.Write(&buf, binary.LittleEndian, uint32(len(e.Value))); err != nil {
				return nil, err
			}
			buf.Write(e.Value)
		}
	case Inner:
		if err := binary.Write(&buf, binary.LittleEndian, uint32(len(n.Inners))); err != nil {
			return nil, err
		}
		for _, e := range n.Inners {
			writeMBR(&buf, e.MBR)
			if err := binary.Write(&buf, binary.LittleEndian, e.Offset); err != nil {
				return nil, err
			}
		}
	default:
		return nil, fmt.Errorf("vtreecodec: unknown node type %d", n.Type)
	}

	return buf.Bytes(), nil
}

// Decode parses a node from its wire representation.
func Decode(data []byte) (*Node, error) {
	if len(data) < 1+mbrSize+4 {
		return nil, fmt.Errorf("vtreecodec: node data too short: %d bytes", len(data))
	}

	n := &Node{Type: NodeType(data[0])}
	var err error
	n.MBR, err = readMBR(data[1:])
	if err != nil {
		return nil, err
	}
	pos := 1 + mbrSize
	count := binary.LittleEndian.Uint32(data[pos : pos+4])
	pos += 4
	if uint64(count)*mbrSize > uint64(len(data)-pos) {
		return nil, fmt.Errorf("vtreecodec: entry count %d exceeds node data", count)
	}

	switch n.Type {
	case Leaf:
		n.Leaves = make([]LeafEntry, 0, count)
		for i := uint32(0); i < count; i++ {
			e, next, err := decodeLeafEntry(data, pos)
			if err != nil {
				return nil, err
			}
			n.Leaves = append(n.Leaves, e)
			pos = next
		}
	case Inner:
		n.Inners = make([]InnerEntry, 0, count)
		for i := uint32(0); i < count; i++ {
			e, next, err := decodeInnerEntry(data, pos)
			if err != nil {
				return nil, err
			}
			n.Inners = append(n.Inners, e)
			pos = next
		}
	default:
		return nil, fmt.Errorf("vtreecodec: unknown node type %d", n.Type)
	}

	return n, nil
}

func decodeLeafEntry(data []byte, pos int) (LeafEntry, int, error) {
	box, err := readMBR(data[pos:])
	if err != nil {
		return LeafEntry{}, 0, err
	}
	pos += mbrSize

	if pos+4 > len(data) {
		return LeafEntry{}, 0, fmt.Errorf("vtreecodec: truncated leaf entry")
	}
	docIDLen := int(binary.LittleEndian.Uint32(data[pos : pos+4]))
	pos += 4
	if pos+docIDLen > len(data) {
		return LeafEntry{}, 0, fmt.Errorf("vtreecodec: truncated doc id")
	}
	docID := append([]byte(nil), data[pos:pos+docIDLen]...)
	pos += docIDLen

	if pos+4 > len(data) {
		return LeafEntry{}, 0, fmt.Errorf("vtreecodec: truncated leaf entry value length")
	}
	valueLen := int(binary.LittleEndian.Uint32(data[pos : pos+4]))
	pos += 4
	if pos+valueLen > len(data) {
		return LeafEntry{}, 0, fmt.Errorf("vtreecodec: truncated value")
	}
	value := append([]byte(nil), data[pos:pos+valueLen]...)
	pos += valueLen

	return LeafEntry{MBR: box, DocID: docID, Value: value}, pos, nil
}

func decodeInnerEntry(data []byte, pos int) (InnerEntry, int, error) {
	box, err := readMBR(data[pos:])
	if err != nil {
		return InnerEntry{}, 0, err
	}
	pos += mbrSize
	if pos+8 > len(data) {
		return InnerEntry{}, 0, fmt.Errorf("vtreecodec: truncated inner entry")
	}
	offset := int64(binary.LittleEndian.Uint64(data[pos : pos+8]))
	pos += 8
	return InnerEntry{MBR: box, Offset: offset}, pos, nil
}
