package vtree

import (
	"github.com/spatialdb/spatialdb/pkg/mbr"
	"github.com/spatialdb/spatialdb/pkg/vtreecodec"
)

// splitPlan is the outcome of the 4-way partition plus best-split
// selection: two disjoint index sets into the original child slice, and
// each side's merged MBR.
type splitPlan struct {
	left, right         []int
	leftMBR, rightMBR   mbr.Box
}

// computeSplit partitions boxes by the 4-way W/S/E/N partition (step 1),
// then selects the better of the W/E or S/N candidate splits (step 2).
func computeSplit(boxes []mbr.Box) splitPlan {
	outer := boxes[0]
	for _, b := range boxes[1:] {
		outer = mbr.Merge(outer, b)
	}
	W, S, E, N := outer.W, outer.S, outer.E, outer.N

	var pw, pe, ps, pn []int
	for i, b := range boxes {
		if b.W-W < E-b.E {
			pw = append(pw, i)
		} else {
			pe = append(pe, i)
		}
		if b.S-S < N-b.N {
			ps = append(ps, i)
		} else {
			pn = append(pn, i)
		}
	}

	switch {
	case len(pw) == 0 && len(ps) == 0:
		pw, pe = halve(pe)
		ps, pn = halve(pn)
	case len(pe) == 0 && len(pn) == 0:
		pw, pe = halve(pw)
		ps, pn = halve(ps)
	case len(ps) == 0 && len(pe) == 0:
		pw, pe = halve(pw)
		ps, pn = halve(pn)
	case len(pw) == 0 && len(pn) == 0:
		pw, pe = halve(pe)
		ps, pn = halve(ps)
	}

	mbrW := mergeByIndex(boxes, pw)
	mbrE := mergeByIndex(boxes, pe)
	mbrS := mergeByIndex(boxes, ps)
	mbrN := mergeByIndex(boxes, pn)

	maxWE := maxInt(len(pw), len(pe))
	maxSN := maxInt(len(ps), len(pn))

	switch {
	case maxWE < maxSN:
		return splitPlan{left: pw, right: pe, leftMBR: mbrW, rightMBR: mbrE}
	case maxWE > maxSN:
		return splitPlan{left: ps, right: pn, leftMBR: mbrS, rightMBR: mbrN}
	}

	overlapWE := mbr.Area(mbr.Overlap(mbrW, mbrE))
	overlapSN := mbr.Area(mbr.Overlap(mbrS, mbrN))
	switch {
	case overlapWE < overlapSN:
		return splitPlan{left: pw, right: pe, leftMBR: mbrW, rightMBR: mbrE}
	case overlapWE > overlapSN:
		return splitPlan{left: ps, right: pn, leftMBR: mbrS, rightMBR: mbrN}
	}

	coverageWE := mbr.Area(mbrW) + mbr.Area(mbrE)
	coverageSN := mbr.Area(mbrS) + mbr.Area(mbrN)
	if coverageSN < coverageWE {
		return splitPlan{left: ps, right: pn, leftMBR: mbrS, rightMBR: mbrN}
	}
	// tie, or W/E strictly better: default to W/E.
	return splitPlan{left: pw, right: pe, leftMBR: mbrW, rightMBR: mbrE}
}

// halve divides idx in list order, first half to the left, remainder to
// the right. Used only for the enumerated degenerate-partition fallbacks.
func halve(idx []int) ([]int, []int) {
	mid := len(idx) / 2
	left := append([]int(nil), idx[:mid]...)
	right := append([]int(nil), idx[mid:]...)
	return left, right
}

func mergeByIndex(boxes []mbr.Box, idx []int) mbr.Box {
	if len(idx) == 0 {
		return mbr.Zero
	}
	m := boxes[idx[0]]
	for _, i := range idx[1:] {
		m = mbr.Merge(m, boxes[i])
	}
	return m
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func splitLeaf(entries []vtreecodec.LeafEntry) (left, right []vtreecodec.LeafEntry, leftMBR, rightMBR mbr.Box) {
	boxes := make([]mbr.Box, len(entries))
	for i, e := range entries {
		boxes[i] = e.MBR
	}
	plan := computeSplit(boxes)

	left = make([]vtreecodec.LeafEntry, len(plan.left))
	for i, idx := range plan.left {
		left[i] = entries[idx]
	}
	right = make([]vtreecodec.LeafEntry, len(plan.right))
	for i, idx := range plan.right {
		right[i] = entries[idx]
	}
	return left, right, plan.leftMBR, plan.rightMBR
}

func splitInner(entries []vtreecodec.InnerEntry) (left, right []vtreecodec.InnerEntry, leftMBR, rightMBR mbr.Box) {
	boxes := make([]mbr.Box, len(entries))
	for i, e := range entries {
		boxes[i] = e.MBR
	}
	plan := computeSplit(boxes)

	left = make([]vtreecodec.InnerEntry, len(plan.left))
	for i, idx := range plan.left {
		left[i] = entries[idx]
	}
	right = make([]vtreecodec.InnerEntry, len(plan.right))
	for i, idx := range plan.right {
		right[i] = entries[idx]
	}
	return left, right, plan.leftMBR, plan.rightMBR
}
