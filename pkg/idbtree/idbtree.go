package idbtree

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"sync"

	"github.com/spatialdb/spatialdb/pkg/mbr"
)

// DefaultOrder is the fallback branching factor if a caller-supplied order
// is too small.
const DefaultOrder = 64

// IndexEntry records that a document currently contributes mbr to the
// index identified by IndexID.
type IndexEntry struct {
	IndexID int
	MBR     mbr.Box
}

// Tree is a thread-safe map from doc_id to its current set of spatial
// emissions, backed by a B+Tree of the given order.
//
// The coordinator serializes every mutation of a group onto its own
// goroutine (see pkg/group), but the updater that calls Put/Delete runs
// on a separate goroutine from the one that calls Marshal to commit a
// header, so the two do race in practice: a single RWMutex over the
// whole tree is all the concurrency this needs, rather than the
// per-node latch coupling a general-purpose multi-client store would
// want for reader parallelism under a single writer that never overlaps
// with itself.
type Tree struct {
	mu     sync.RWMutex
	root   *node
	order  int
	height int
}

// node is a plain (non-latched) B+Tree node. Inner nodes hold order+1
// children at most; leaves hold the doc_id -> entries mapping directly.
// There is no parent pointer: splits propagate a promoted key and a new
// sibling back up the call stack instead of being re-derived by walking
// upward, the same shape pkg/vtree's Insert already uses for its own
// split propagation.
type node struct {
	isLeaf   bool
	keys     [][]byte
	children []*node
	values   [][]IndexEntry
}

// New creates an empty tree with the given order (branching factor). An
// order below 3 falls back to DefaultOrder.
func New(order int) *Tree {
	if order < 3 {
		order = DefaultOrder
	}
	return &Tree{
		root:   &node{isLeaf: true},
		order:  order,
		height: 1,
	}
}

// Height returns the tree's current height.
func (t *Tree) Height() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.height
}

// Get returns the emission list for docID, or (nil, false) if the
// document is not present.
func (t *Tree) Get(docID []byte) ([]IndexEntry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.root == nil {
		return nil, false
	}
	leaf := descend(t.root, docID)
	idx, found := locate(leaf.keys, docID)
	if !found {
		return nil, false
	}
	return leaf.values[idx], true
}

// Put sets docID's emission list, replacing any prior value.
func (t *Tree) Put(docID []byte, entries []IndexEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.root == nil {
		t.root = &node{isLeaf: true}
		t.height = 1
	}

	promoted, sibling := t.insert(t.root, docID, entries)
	if sibling == nil {
		return
	}
	t.root = &node{
		keys:     [][]byte{promoted},
		children: []*node{t.root, sibling},
	}
	t.height++
}

// Delete removes docID from the tree. Returns true if it was present.
// As with pkg/vtree's own Delete, there is no rebalancing: a leaf that
// drops below order/2 entries is simply left that way.
func (t *Tree) Delete(docID []byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.root == nil {
		return false
	}
	leaf := descend(t.root, docID)
	idx, found := locate(leaf.keys, docID)
	if !found {
		return false
	}
	leaf.keys = append(leaf.keys[:idx], leaf.keys[idx+1:]...)
	leaf.values = append(leaf.values[:idx], leaf.values[idx+1:]...)
	return true
}

// descend walks from n to the leaf that would hold key.
func descend(n *node, key []byte) *node {
	for !n.isLeaf {
		n = n.children[childIndex(n.keys, key)]
	}
	return n
}

// childIndex returns the index of the child to descend into for key: the
// first child whose separator key is greater than key, or the last
// child if key is at least as large as every separator.
func childIndex(keys [][]byte, key []byte) int {
	for i, k := range keys {
		if bytes.Compare(key, k) < 0 {
			return i
		}
	}
	return len(keys)
}

// locate returns the index of key within a sorted key slice and whether
// it was found.
func locate(keys [][]byte, key []byte) (int, bool) {
	for i, k := range keys {
		if bytes.Equal(k, key) {
			return i, true
		}
		if bytes.Compare(key, k) < 0 {
			return i, false
		}
	}
	return len(keys), false
}

// insert places key/value under n, splitting n (and only n) if it
// overflows. When a split occurs it returns the key promoted to n's
// parent and the new right sibling; the caller is responsible for
// linking the sibling in and splitting itself if that in turn overflows.
func (t *Tree) insert(n *node, key []byte, value []IndexEntry) ([]byte, *node) {
	if n.isLeaf {
		idx, found := locate(n.keys, key)
		if found {
			n.values[idx] = value
			return nil, nil
		}
		n.keys = insertAt(n.keys, idx, key)
		n.values = insertValueAt(n.values, idx, value)

		if len(n.keys) <= t.order {
			return nil, nil
		}
		mid := len(n.keys) / 2
		sibling := &node{
			isLeaf: true,
			keys:   append([][]byte(nil), n.keys[mid:]...),
			values: append([][]IndexEntry(nil), n.values[mid:]...),
		}
		n.keys = n.keys[:mid]
		n.values = n.values[:mid]
		return sibling.keys[0], sibling
	}

	idx := childIndex(n.keys, key)
	promoted, sibling := t.insert(n.children[idx], key, value)
	if sibling == nil {
		return nil, nil
	}

	n.keys = insertAt(n.keys, idx, promoted)
	n.children = insertChildAt(n.children, idx+1, sibling)

	if len(n.keys) <= t.order {
		return nil, nil
	}
	mid := len(n.keys) / 2
	splitKey := n.keys[mid]
	newInner := &node{
		keys:     append([][]byte(nil), n.keys[mid+1:]...),
		children: append([]*node(nil), n.children[mid+1:]...),
	}
	n.keys = n.keys[:mid]
	n.children = n.children[:mid+1]
	return splitKey, newInner
}

func insertAt(keys [][]byte, idx int, key []byte) [][]byte {
	keys = append(keys, nil)
	copy(keys[idx+1:], keys[idx:])
	keys[idx] = key
	return keys
}

func insertValueAt(values [][]IndexEntry, idx int, value []IndexEntry) [][]IndexEntry {
	values = append(values, nil)
	copy(values[idx+1:], values[idx:])
	values[idx] = value
	return values
}

func insertChildAt(children []*node, idx int, child *node) []*node {
	children = append(children, nil)
	copy(children[idx+1:], children[idx:])
	children[idx] = child
	return children
}

// Save serializes the tree to filename.
func (t *Tree) Save(filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("idbtree: create %s: %w", filename, err)
	}
	defer file.Close()

	return t.encodeTo(file)
}

// Marshal serializes the tree to an in-memory blob, for embedding as a
// term in a store that owns its own append/offset bookkeeping (see
// pkg/vfile) rather than a standalone file.
func (t *Tree) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	if err := t.encodeTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// encodeTo writes order, height, and (if present) the root node as a
// plain recursive pre-order walk: a real tree with no shared subtrees
// needs no node-ID remapping, just a presence flag per node.
func (t *Tree) encodeTo(w io.Writer) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := binary.Write(w, binary.LittleEndian, uint32(t.order)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(t.height)); err != nil {
		return err
	}
	if t.root == nil {
		return binary.Write(w, binary.LittleEndian, uint8(0))
	}
	if err := binary.Write(w, binary.LittleEndian, uint8(1)); err != nil {
		return err
	}
	return writeNode(w, t.root)
}

func writeNode(w io.Writer, n *node) error {
	isLeaf := uint8(0)
	if n.isLeaf {
		isLeaf = 1
	}
	if err := binary.Write(w, binary.LittleEndian, isLeaf); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(n.keys))); err != nil {
		return err
	}
	for _, key := range n.keys {
		if err := binary.Write(w, binary.LittleEndian, uint32(len(key))); err != nil {
			return err
		}
		if _, err := w.Write(key); err != nil {
			return err
		}
	}

	if n.isLeaf {
		for _, entries := range n.values {
			if err := binary.Write(w, binary.LittleEndian, uint32(len(entries))); err != nil {
				return err
			}
			for _, e := range entries {
				if err := writeIndexEntry(w, e); err != nil {
					return err
				}
			}
		}
		return nil
	}

	for _, child := range n.children {
		if err := writeNode(w, child); err != nil {
			return fmt.Errorf("idbtree: write child: %w", err)
		}
	}
	return nil
}

func writeIndexEntry(w io.Writer, e IndexEntry) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(e.IndexID)); err != nil {
		return err
	}
	var coords [4]float64
	coords[0], coords[1], coords[2], coords[3] = e.MBR.W, e.MBR.S, e.MBR.E, e.MBR.N
	for _, c := range coords {
		if err := binary.Write(w, binary.LittleEndian, math.Float64bits(c)); err != nil {
			return err
		}
	}
	return nil
}

func readIndexEntry(r io.Reader) (IndexEntry, error) {
	var indexID uint32
	if err := binary.Read(r, binary.LittleEndian, &indexID); err != nil {
		return IndexEntry{}, err
	}
	var coords [4]float64
	for i := range coords {
		var bits uint64
		if err := binary.Read(r, binary.LittleEndian, &bits); err != nil {
			return IndexEntry{}, err
		}
		coords[i] = math.Float64frombits(bits)
	}
	return IndexEntry{
		IndexID: int(indexID),
		MBR:     mbr.Box{W: coords[0], S: coords[1], E: coords[2], N: coords[3]},
	}, nil
}

// Load deserializes a tree previously written by Save.
func Load(filename string) (*Tree, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("idbtree: open %s: %w", filename, err)
	}
	defer file.Close()

	return decodeFrom(file)
}

// Unmarshal deserializes a tree previously written by Marshal.
func Unmarshal(data []byte) (*Tree, error) {
	return decodeFrom(bytes.NewReader(data))
}

func decodeFrom(r io.Reader) (*Tree, error) {
	var order, height uint32
	if err := binary.Read(r, binary.LittleEndian, &order); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.LittleEndian, &height); err != nil {
		return nil, err
	}

	var hasRoot uint8
	if err := binary.Read(r, binary.LittleEndian, &hasRoot); err != nil {
		return nil, err
	}
	if hasRoot == 0 {
		return &Tree{order: int(order), height: int(height)}, nil
	}

	root, err := readNode(r)
	if err != nil {
		return nil, fmt.Errorf("idbtree: read root: %w", err)
	}
	return &Tree{root: root, order: int(order), height: int(height)}, nil
}

func readNode(r io.Reader) (*node, error) {
	var isLeaf uint8
	if err := binary.Read(r, binary.LittleEndian, &isLeaf); err != nil {
		return nil, err
	}

	var keyCount uint32
	if err := binary.Read(r, binary.LittleEndian, &keyCount); err != nil {
		return nil, err
	}

	keys := make([][]byte, keyCount)
	for i := uint32(0); i < keyCount; i++ {
		var keyLen uint32
		if err := binary.Read(r, binary.LittleEndian, &keyLen); err != nil {
			return nil, err
		}
		key := make([]byte, keyLen)
		if _, err := io.ReadFull(r, key); err != nil {
			return nil, err
		}
		keys[i] = key
	}

	n := &node{isLeaf: isLeaf == 1, keys: keys}

	if n.isLeaf {
		values := make([][]IndexEntry, keyCount)
		for i := uint32(0); i < keyCount; i++ {
			var entryCount uint32
			if err := binary.Read(r, binary.LittleEndian, &entryCount); err != nil {
				return nil, err
			}
			entries := make([]IndexEntry, entryCount)
			for j := uint32(0); j < entryCount; j++ {
				e, err := readIndexEntry(r)
				if err != nil {
					return nil, err
				}
				entries[j] = e
			}
			values[i] = entries
		}
		n.values = values
		return n, nil
	}

	children := make([]*node, keyCount+1)
	for i := uint32(0); i < keyCount+1; i++ {
		child, err := readNode(r)
		if err != nil {
			return nil, fmt.Errorf("idbtree: read child %d: %w", i, err)
		}
		children[i] = child
	}
	n.children = children
	return n, nil
}
