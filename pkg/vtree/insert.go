package vtree

import (
	"fmt"

	"github.com/spatialdb/spatialdb/pkg/mbr"
	"github.com/spatialdb/spatialdb/pkg/vfile"
	"github.com/spatialdb/spatialdb/pkg/vtreecodec"
)

// splitOutcome carries a node's left/right children and merged MBR when a
// recursive insert step overflows MaxFilled and must propagate a split to
// its caller instead of returning a single replacement offset.
type splitOutcome struct {
	mbr1, mbr2 mbr.Box
	off1, off2 int64
}

// insertOutcome is the result of inserting into a single node: either a
// single replacement (ok) or a pair of replacements (split) that the
// caller must fold into its own child list.
type insertOutcome struct {
	split bool
	mbr   mbr.Box
	offset int64
	pair   splitOutcome
}

// Insert adds entry to the tree rooted at root, returning the new root.
// Every write is append-only: on success the prior root remains readable
// at its old offset.
func Insert(file *vfile.File, cfg Config, root Root, entry Entry) (Root, error) {
	if !root.Valid {
		n := &vtreecodec.Node{
			Type: vtreecodec.Leaf,
			MBR:  entry.MBR,
			Leaves: []vtreecodec.LeafEntry{
				{MBR: entry.MBR, DocID: entry.DocID, Value: entry.Value},
			},
		}
		off, err := appendNode(file, n)
		if err != nil {
			return Root{}, err
		}
		return Root{Valid: true, Offset: off, MBR: entry.MBR}, nil
	}

	res, err := insertInto(file, cfg, root.Offset, entry)
	if err != nil {
		return Root{}, err
	}
	if !res.split {
		return Root{Valid: true, Offset: res.offset, MBR: res.mbr}, nil
	}

	// Root promotion: depth-0 split grows the tree by one level.
	newRoot := &vtreecodec.Node{
		Type: vtreecodec.Inner,
		MBR:  res.mbr,
		Inners: []vtreecodec.InnerEntry{
			{MBR: res.pair.mbr1, Offset: res.pair.off1},
			{MBR: res.pair.mbr2, Offset: res.pair.off2},
		},
	}
	off, err := appendNode(file, newRoot)
	if err != nil {
		return Root{}, err
	}
	return Root{Valid: true, Offset: off, MBR: res.mbr}, nil
}

func insertInto(file *vfile.File, cfg Config, offset int64, entry Entry) (insertOutcome, error) {
	node, err := GetNode(file, offset)
	if err != nil {
		return insertOutcome{}, err
	}

	switch node.Type {
	case vtreecodec.Leaf:
		return insertLeaf(file, cfg, node, entry)
	case vtreecodec.Inner:
		return insertInner(file, cfg, node, entry)
	default:
		return insertOutcome{}, fmt.Errorf("vtree: unknown node type %v at offset %d", node.Type, offset)
	}
}

func insertLeaf(file *vfile.File, cfg Config, node *vtreecodec.Node, entry Entry) (insertOutcome, error) {
	newLeaves := make([]vtreecodec.LeafEntry, len(node.Leaves), len(node.Leaves)+1)
	copy(newLeaves, node.Leaves)
	newLeaves = append(newLeaves, vtreecodec.LeafEntry{MBR: entry.MBR, DocID: entry.DocID, Value: entry.Value})

	if len(newLeaves) < cfg.MaxFilled {
		mergedMBR := mergeLeafMBRs(newLeaves)
		off, err := appendNode(file, &vtreecodec.Node{Type: vtreecodec.Leaf, MBR: mergedMBR, Leaves: newLeaves})
		if err != nil {
			return insertOutcome{}, err
		}
		return insertOutcome{mbr: mergedMBR, offset: off}, nil
	}

	leftLeaves, rightLeaves, leftMBR, rightMBR := splitLeaf(newLeaves)
	off1, err := appendNode(file, &vtreecodec.Node{Type: vtreecodec.Leaf, MBR: leftMBR, Leaves: leftLeaves})
	if err != nil {
		return insertOutcome{}, err
	}
	off2, err := appendNode(file, &vtreecodec.Node{Type: vtreecodec.Leaf, MBR: rightMBR, Leaves: rightLeaves})
	if err != nil {
		return insertOutcome{}, err
	}
	return insertOutcome{
		split: true,
		mbr:   mbr.Merge(leftMBR, rightMBR),
		pair:  splitOutcome{mbr1: leftMBR, mbr2: rightMBR, off1: off1, off2: off2},
	}, nil
}

func insertInner(file *vfile.File, cfg Config, node *vtreecodec.Node, entry Entry) (insertOutcome, error) {
	// Choose-subtree: minimal MBR expansion area, first occurrence wins ties.
	bestIdx := 0
	bestExpansion := mbr.Area(mbr.Merge(node.Inners[0].MBR, entry.MBR)) - mbr.Area(node.Inners[0].MBR)
	for i := 1; i < len(node.Inners); i++ {
		c := node.Inners[i]
		expansion := mbr.Area(mbr.Merge(c.MBR, entry.MBR)) - mbr.Area(c.MBR)
		if expansion < bestExpansion {
			bestExpansion = expansion
			bestIdx = i
		}
	}

	childRes, err := insertInto(file, cfg, node.Inners[bestIdx].Offset, entry)
	if err != nil {
		return insertOutcome{}, err
	}

	if !childRes.split {
		newInners := make([]vtreecodec.InnerEntry, len(node.Inners))
		copy(newInners, node.Inners)
		newInners[bestIdx] = vtreecodec.InnerEntry{MBR: childRes.mbr, Offset: childRes.offset}

		mergedMBR := mergeInnerMBRs(newInners)
		off, err := appendNode(file, &vtreecodec.Node{Type: vtreecodec.Inner, MBR: mergedMBR, Inners: newInners})
		if err != nil {
			return insertOutcome{}, err
		}
		return insertOutcome{mbr: mergedMBR, offset: off}, nil
	}

	newInners := make([]vtreecodec.InnerEntry, 0, len(node.Inners)+1)
	for i, c := range node.Inners {
		if i == bestIdx {
			newInners = append(newInners,
				vtreecodec.InnerEntry{MBR: childRes.pair.mbr1, Offset: childRes.pair.off1},
				vtreecodec.InnerEntry{MBR: childRes.pair.mbr2, Offset: childRes.pair.off2},
			)
			continue
		}
		newInners = append(newInners, c)
	}

	if len(newInners) < cfg.MaxFilled {
		mergedMBR := mergeInnerMBRs(newInners)
		off, err := appendNode(file, &vtreecodec.Node{Type: vtreecodec.Inner, MBR: mergedMBR, Inners: newInners})
		if err != nil {
			return insertOutcome{}, err
		}
		return insertOutcome{mbr: mergedMBR, offset: off}, nil
	}

	leftInners, rightInners, leftMBR, rightMBR := splitInner(newInners)
	off1, err := appendNode(file, &vtreecodec.Node{Type: vtreecodec.Inner, MBR: leftMBR, Inners: leftInners})
	if err != nil {
		return insertOutcome{}, err
	}
	off2, err := appendNode(file, &vtreecodec.Node{Type: vtreecodec.Inner, MBR: rightMBR, Inners: rightInners})
	if err != nil {
		return insertOutcome{}, err
	}
	return insertOutcome{
		split: true,
		mbr:   mbr.Merge(leftMBR, rightMBR),
		pair:  splitOutcome{mbr1: leftMBR, mbr2: rightMBR, off1: off1, off2: off2},
	}, nil
}
