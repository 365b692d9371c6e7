package vtree

import (
	"errors"

	"github.com/spatialdb/spatialdb/pkg/vfile"
)

// AddRemove applies removes then adds, each individually, against root,
// returning the tree's final state. A remove whose entry is already
// absent is tolerated rather than treated as an error: the updater may
// legitimately ask to remove an emission that a prior partial update
// already dropped.
func AddRemove(file *vfile.File, cfg Config, root Root, removes []Removal, adds []Entry) (Root, error) {
	cur := root

	for _, r := range removes {
		next, err := Delete(file, cur, r.DocID, r.MBR)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return Root{}, err
		}
		cur = next
	}

	for _, a := range adds {
		next, err := Insert(file, cfg, cur, a)
		if err != nil {
			return Root{}, err
		}
		cur = next
	}

	return cur, nil
}
