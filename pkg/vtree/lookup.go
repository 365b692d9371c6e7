package vtree

import (
	"fmt"

	"github.com/spatialdb/spatialdb/pkg/mbr"
	"github.com/spatialdb/spatialdb/pkg/vfile"
	"github.com/spatialdb/spatialdb/pkg/vtreecodec"
)

// Lookup returns every entry reachable from root whose MBR is not disjoint
// from query. Results are unordered.
//
// Unlike the source this prunes: an inner child whose MBR is disjoint from
// query is never descended into. This only removes subtrees that could not
// contribute a result, so it preserves correctness while avoiding the full
// fan-out descent the source performs at every inner node.
func Lookup(file *vfile.File, root Root, query mbr.Box) ([]Entry, error) {
	if !root.Valid {
		return nil, nil
	}
	return lookupNode(file, root.Offset, query)
}

func lookupNode(file *vfile.File, offset int64, query mbr.Box) ([]Entry, error) {
	node, err := GetNode(file, offset)
	if err != nil {
		return nil, err
	}

	switch node.Type {
	case vtreecodec.Leaf:
		var out []Entry
		for _, e := range node.Leaves {
			if !mbr.Disjoint(e.MBR, query) {
				out = append(out, Entry{MBR: e.MBR, DocID: e.DocID, Value: e.Value})
			}
		}
		return out, nil

	case vtreecodec.Inner:
		var out []Entry
		for _, c := range node.Inners {
			if mbr.Disjoint(c.MBR, query) {
				continue
			}
			sub, err := lookupNode(file, c.Offset, query)
			if err != nil {
				return nil, err
			}
			out = append(out, sub...)
		}
		return out, nil

	default:
		return nil, fmt.Errorf("vtree: unknown node type %v at offset %d", node.Type, offset)
	}
}
