package updater

import (
	"fmt"

	"github.com/spatialdb/spatialdb/pkg/docdb"
	"github.com/spatialdb/spatialdb/pkg/idbtree"
	"github.com/spatialdb/spatialdb/pkg/vfile"
	"github.com/spatialdb/spatialdb/pkg/vtree"
)

// IndexedFunc binds a declared index's stable id to its spatial function.
type IndexedFunc struct {
	ID int
	Fn docdb.SpatialFunc
}

// Progress is a snapshot of updater state reported while it runs and
// returned on completion.
type Progress struct {
	Seq   uint64
	Roots []vtree.Root
}

// ProgressFunc is invoked periodically (see checkpointEvery) and once
// more at normal completion with the final Progress.
type ProgressFunc func(Progress)

// Run reads every change after startSeq in ascending order, diffs each
// document's previous emissions (from idIndex) against its freshly
// computed ones, and applies the difference to each index's tree via
// AddRemove. checkpointEvery <= 0 disables periodic reporting; report is
// still called once with the final state before Run returns.
func Run(
	file *vfile.File,
	cfg vtree.Config,
	db docdb.Database,
	funcs []IndexedFunc,
	idIndex *idbtree.Tree,
	startSeq uint64,
	roots []vtree.Root,
	checkpointEvery int,
	report ProgressFunc,
) (Progress, error) {
	iter, err := db.Changes(startSeq)
	if err != nil {
		return Progress{}, fmt.Errorf("updater: opening change feed: %w", err)
	}
	defer iter.Close()

	seq := startSeq
	processed := 0

	for {
		change, ok, err := iter.Next()
		if err != nil {
			return Progress{}, fmt.Errorf("updater: reading change feed: %w", err)
		}
		if !ok {
			break
		}

		if err := applyChange(file, cfg, funcs, idIndex, roots, change); err != nil {
			return Progress{}, fmt.Errorf("updater: applying change at seq %d: %w", change.Seq, err)
		}

		seq = change.Seq
		processed++
		if report != nil && checkpointEvery > 0 && processed%checkpointEvery == 0 {
			report(Progress{Seq: seq, Roots: append([]vtree.Root(nil), roots...)})
		}
	}

	final := Progress{Seq: seq, Roots: roots}
	if report != nil {
		report(final)
	}
	return final, nil
}

func applyChange(
	file *vfile.File,
	cfg vtree.Config,
	funcs []IndexedFunc,
	idIndex *idbtree.Tree,
	roots []vtree.Root,
	change docdb.Change,
) error {
	priorEntries, _ := idIndex.Get(change.DocID)
	removesByIndex := make(map[int][]vtree.Removal, len(priorEntries))
	for _, pe := range priorEntries {
		removesByIndex[pe.IndexID] = append(removesByIndex[pe.IndexID], vtree.Removal{
			DocID: change.DocID,
			MBR:   pe.MBR,
		})
	}

	var freshEntries []idbtree.IndexEntry
	addsByIndex := make(map[int][]vtree.Entry)
	if !change.Deleted {
		for _, f := range funcs {
			emissions, err := f.Fn(change.DocID, change.Doc)
			if err != nil {
				return fmt.Errorf("spatial function for index %d: %w", f.ID, err)
			}
			for _, e := range emissions {
				addsByIndex[f.ID] = append(addsByIndex[f.ID], vtree.Entry{
					MBR:   e.MBR,
					DocID: change.DocID,
					Value: e.Value,
				})
				freshEntries = append(freshEntries, idbtree.IndexEntry{IndexID: f.ID, MBR: e.MBR})
			}
		}
	}

	for _, f := range funcs {
		removes := removesByIndex[f.ID]
		adds := addsByIndex[f.ID]
		if len(removes) == 0 && len(adds) == 0 {
			continue
		}
		newRoot, err := vtree.AddRemove(file, cfg, roots[f.ID], removes, adds)
		if err != nil {
			return fmt.Errorf("index %d add_remove: %w", f.ID, err)
		}
		roots[f.ID] = newRoot
	}

	if len(freshEntries) == 0 {
		idIndex.Delete(change.DocID)
	} else {
		idIndex.Put(change.DocID, freshEntries)
	}

	return nil
}
