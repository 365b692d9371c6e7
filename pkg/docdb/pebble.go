package docdb

import (
	"encoding/binary"
	"fmt"

	"github.com/cockroachdb/pebble"
)

const (
	keyCurrentSeq   = "m:current_seq"
	keyCommittedSeq = "m:committed_seq"
)

// PebbleDB is a cockroachdb/pebble-backed Database: documents are keyed
// by doc_id, and every mutation also appends an entry to a sequence log
// so Changes can stream them back in order. CommittedSeq is a separate
// watermark advanced by Commit, standing in for whatever durability
// signal a real document database would expose.
type PebbleDB struct {
	db *pebble.DB
}

// OpenPebble opens (or creates) a pebble-backed database at dir.
func OpenPebble(dir string) (*PebbleDB, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("docdb: open %s: %w", dir, err)
	}
	return &PebbleDB{db: db}, nil
}

func docKey(docID []byte) []byte {
	return append([]byte("d:"), docID...)
}

func seqKey(seq uint64) []byte {
	buf := make([]byte, 2+8)
	copy(buf, "s:")
	binary.BigEndian.PutUint64(buf[2:], seq)
	return buf
}

func (p *PebbleDB) readSeq(key string) (uint64, error) {
	data, closer, err := p.db.Get([]byte(key))
	if err == pebble.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	defer closer.Close()
	return binary.BigEndian.Uint64(data), nil
}

func (p *PebbleDB) writeSeq(key string, seq uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], seq)
	return p.db.Set([]byte(key), buf[:], pebble.NoSync)
}

// CurrentSeq implements Database.
func (p *PebbleDB) CurrentSeq() (uint64, error) {
	return p.readSeq(keyCurrentSeq)
}

// CommittedSeq implements Database.
func (p *PebbleDB) CommittedSeq() (uint64, error) {
	return p.readSeq(keyCommittedSeq)
}

// Put stores doc under docID, assigning and returning the next sequence.
func (p *PebbleDB) Put(docID, doc []byte) (uint64, error) {
	cur, err := p.readSeq(keyCurrentSeq)
	if err != nil {
		return 0, err
	}
	next := cur + 1

	record := append([]byte{0}, doc...)
	if err := p.db.Set(docKey(docID), record, pebble.NoSync); err != nil {
		return 0, err
	}
	if err := p.db.Set(seqKey(next), docID, pebble.NoSync); err != nil {
		return 0, err
	}
	if err := p.writeSeq(keyCurrentSeq, next); err != nil {
		return 0, err
	}
	return next, nil
}

// Delete tombstones docID, assigning and returning the next sequence.
func (p *PebbleDB) Delete(docID []byte) (uint64, error) {
	cur, err := p.readSeq(keyCurrentSeq)
	if err != nil {
		return 0, err
	}
	next := cur + 1

	if err := p.db.Set(docKey(docID), []byte{1}, pebble.NoSync); err != nil {
		return 0, err
	}
	if err := p.db.Set(seqKey(next), docID, pebble.NoSync); err != nil {
		return 0, err
	}
	if err := p.writeSeq(keyCurrentSeq, next); err != nil {
		return 0, err
	}
	return next, nil
}

// Commit advances CommittedSeq to the current sequence.
func (p *PebbleDB) Commit() error {
	cur, err := p.readSeq(keyCurrentSeq)
	if err != nil {
		return err
	}
	return p.writeSeq(keyCommittedSeq, cur)
}

// Changes implements Database.
func (p *PebbleDB) Changes(since uint64) (ChangeIterator, error) {
	lower := seqKey(since + 1)
	upper := []byte("s;") // lexically just past every "s:"-prefixed key
	iter, err := p.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return nil, err
	}
	return &pebbleChangeIterator{db: p.db, iter: iter}, nil
}

// Close implements Database.
func (p *PebbleDB) Close() error {
	return p.db.Close()
}

type pebbleChangeIterator struct {
	db      *pebble.DB
	iter    *pebble.Iterator
	started bool
}

func (c *pebbleChangeIterator) Next() (Change, bool, error) {
	var ok bool
	if !c.started {
		c.started = true
		ok = c.iter.First()
	} else {
		ok = c.iter.Next()
	}
	if !ok {
		return Change{}, false, c.iter.Error()
	}

	seq := binary.BigEndian.Uint64(c.iter.Key()[2:])
	docID := append([]byte(nil), c.iter.Value()...)

	record, closer, err := c.db.Get(docKey(docID))
	change := Change{Seq: seq, DocID: docID}
	switch {
	case err == pebble.ErrNotFound:
		change.Deleted = true
	case err != nil:
		return Change{}, false, err
	case len(record) == 0 || record[0] == 1:
		change.Deleted = true
		closer.Close()
	default:
		change.Doc = append([]byte(nil), record[1:]...)
		closer.Close()
	}

	return change, true, nil
}

func (c *pebbleChangeIterator) Close() error {
	return c.iter.Close()
}
