package vtree

import (
	"bytes"
	"fmt"

	"github.com/spatialdb/spatialdb/pkg/mbr"
	"github.com/spatialdb/spatialdb/pkg/vfile"
	"github.com/spatialdb/spatialdb/pkg/vtreecodec"
)

type deleteStatus int

const (
	deleteOK deleteStatus = iota
	deleteEmpty
	deleteNotFound
)

type deleteOutcome struct {
	status deleteStatus
	offset int64 // valid only when status == deleteOK
}

// Delete removes the entry identified by (docID, docMBR) from the tree
// rooted at root. Returns ErrNotFound if no matching entry is reachable.
// No rebalancing occurs: an inner node may end up below MinFilled without
// triggering reinsertion, by design (see Config).
func Delete(file *vfile.File, root Root, docID []byte, docMBR mbr.Box) (Root, error) {
	if !root.Valid {
		return Root{}, ErrNotFound
	}

	res, err := deleteFrom(file, root.Offset, docID, docMBR)
	if err != nil {
		return Root{}, err
	}

	switch res.status {
	case deleteNotFound:
		return Root{}, ErrNotFound
	case deleteEmpty:
		return Root{}, nil
	default:
		node, err := GetNode(file, res.offset)
		if err != nil {
			return Root{}, err
		}
		return Root{Valid: true, Offset: res.offset, MBR: node.MBR}, nil
	}
}

func deleteFrom(file *vfile.File, offset int64, docID []byte, docMBR mbr.Box) (deleteOutcome, error) {
	node, err := GetNode(file, offset)
	if err != nil {
		return deleteOutcome{}, err
	}

	if !mbr.Within(docMBR, node.MBR) {
		return deleteOutcome{status: deleteNotFound}, nil
	}

	switch node.Type {
	case vtreecodec.Leaf:
		return deleteLeaf(file, node, docID)
	case vtreecodec.Inner:
		return deleteInner(file, node, docID, docMBR)
	default:
		return deleteOutcome{}, fmt.Errorf("vtree: unknown node type %v at offset %d", node.Type, offset)
	}
}

func deleteLeaf(file *vfile.File, node *vtreecodec.Node, docID []byte) (deleteOutcome, error) {
	idx := -1
	for i, e := range node.Leaves {
		if bytes.Equal(e.DocID, docID) {
			idx = i
			break
		}
	}
	if idx == -1 {
		return deleteOutcome{status: deleteNotFound}, nil
	}
	if len(node.Leaves) == 1 {
		return deleteOutcome{status: deleteEmpty}, nil
	}

	remaining := make([]vtreecodec.LeafEntry, 0, len(node.Leaves)-1)
	for i, e := range node.Leaves {
		if i != idx {
			remaining = append(remaining, e)
		}
	}

	mergedMBR := mergeLeafMBRs(remaining)
	off, err := appendNode(file, &vtreecodec.Node{Type: vtreecodec.Leaf, MBR: mergedMBR, Leaves: remaining})
	if err != nil {
		return deleteOutcome{}, err
	}
	return deleteOutcome{status: deleteOK, offset: off}, nil
}

func deleteInner(file *vfile.File, node *vtreecodec.Node, docID []byte, docMBR mbr.Box) (deleteOutcome, error) {
	for i, c := range node.Inners {
		res, err := deleteFrom(file, c.Offset, docID, docMBR)
		if err != nil {
			return deleteOutcome{}, err
		}

		switch res.status {
		case deleteNotFound:
			continue

		case deleteEmpty:
			remaining := make([]vtreecodec.InnerEntry, 0, len(node.Inners)-1)
			for j, cc := range node.Inners {
				if j != i {
					remaining = append(remaining, cc)
				}
			}
			if len(remaining) == 0 {
				return deleteOutcome{status: deleteEmpty}, nil
			}
			mergedMBR := mergeInnerMBRs(remaining)
			off, err := appendNode(file, &vtreecodec.Node{Type: vtreecodec.Inner, MBR: mergedMBR, Inners: remaining})
			if err != nil {
				return deleteOutcome{}, err
			}
			return deleteOutcome{status: deleteOK, offset: off}, nil

		default: // deleteOK
			newChild, err := GetNode(file, res.offset)
			if err != nil {
				return deleteOutcome{}, err
			}
			newInners := make([]vtreecodec.InnerEntry, len(node.Inners))
			copy(newInners, node.Inners)
			newInners[i] = vtreecodec.InnerEntry{MBR: newChild.MBR, Offset: res.offset}

			mergedMBR := mergeInnerMBRs(newInners)
			off, err := appendNode(file, &vtreecodec.Node{Type: vtreecodec.Inner, MBR: mergedMBR, Inners: newInners})
			if err != nil {
				return deleteOutcome{}, err
			}
			return deleteOutcome{status: deleteOK, offset: off}, nil
		}
	}

	return deleteOutcome{status: deleteNotFound}, nil
}
