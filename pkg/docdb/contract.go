package docdb

import (
	"github.com/spatialdb/spatialdb/pkg/mbr"
)

// Change describes a single document mutation at a database sequence.
type Change struct {
	Seq     uint64
	DocID   []byte
	Deleted bool
	Doc     []byte // nil when Deleted
}

// ChangeIterator streams Changes in ascending sequence order.
type ChangeIterator interface {
	Next() (Change, bool, error)
	Close() error
}

// Database is the abstract contract the updater and group coordinator
// depend on. A concrete database need only provide snapshot reads, a
// monotonic update sequence, a durably-committed sequence watermark, and
// an ascending change stream since some sequence.
type Database interface {
	// CurrentSeq returns the latest assigned update sequence.
	CurrentSeq() (uint64, error)
	// CommittedSeq returns the latest update sequence known to be
	// durable. The group coordinator never commits an index header
	// describing a state fresher than this.
	CommittedSeq() (uint64, error)
	// Changes returns an iterator over every change with Seq > since, in
	// ascending order.
	Changes(since uint64) (ChangeIterator, error)
	Close() error
}

// Emission is one (mbr, value) pair a spatial function produced for a
// document.
type Emission struct {
	MBR   mbr.Box
	Value []byte
}

// SpatialFunc is the user-supplied function executed against a
// document's bytes to produce its spatial emissions. A nil-or-empty
// return means the document contributes nothing to this index.
type SpatialFunc func(docID []byte, doc []byte) ([]Emission, error)

// nonClosing wraps a Database so Close is a no-op. group.OpenDB opens a
// "fresh handle" per updater run under the assumption that a real
// document database (e.g. a replicated log, or CouchDB) supports many
// independent connections to the same store; an embedded engine like
// Pebble does not — a second pebble.Open on a directory already held
// open fails on its exclusive lock. Sharing one Database instance
// behind NonClosing satisfies the "fresh handle" contract (the caller
// still calls Close when it's done) without re-opening storage that is
// already safe for concurrent use from multiple goroutines.
type nonClosing struct {
	Database
}

// NonClosing returns db wrapped so that Close never actually closes it.
func NonClosing(db Database) Database {
	return nonClosing{Database: db}
}

func (nonClosing) Close() error { return nil }
