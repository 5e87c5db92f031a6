package rtree

import (
	"github.com/aukilabs/eihwaz/geom"
)

// splitNode distributes the entries of an overflowing node between n and a
// new node of the same kind, using the linear heuristic: seeds are the
// entries with the extreme center projections on the axis with the widest
// center spread, remaining entries go to the group needing the least volume
// enlargement, ties to the smaller group. Both groups end with at least
// minEntries. The caller attaches the returned node to n's parent.
func (t *Tree) splitNode(n *node) *node {
	entries := n.entries
	seedA, seedB := splitSeeds(entries)

	groupA := []entry{entries[seedA]}
	groupB := []entry{entries[seedB]}
	boundA := entries[seedA].box
	boundB := entries[seedB].box

	rest := make([]entry, 0, len(entries)-2)
	for i, e := range entries {
		if i != seedA && i != seedB {
			rest = append(rest, e)
		}
	}

	for i, e := range rest {
		remaining := len(rest) - i

		// Force assignment when a group needs every remaining entry to
		// reach the minimum fill.
		switch {
		case len(groupA)+remaining <= t.minEntries:
			groupA = append(groupA, e)
			boundA = geom.Union(boundA, e.box)
			continue
		case len(groupB)+remaining <= t.minEntries:
			groupB = append(groupB, e)
			boundB = geom.Union(boundB, e.box)
			continue
		}

		deltaA := geom.Enlargement(boundA, e.box)
		deltaB := geom.Enlargement(boundB, e.box)

		toA := deltaA < deltaB
		if deltaA == deltaB {
			toA = len(groupA) <= len(groupB)
		}

		if toA {
			groupA = append(groupA, e)
			boundA = geom.Union(boundA, e.box)
		} else {
			groupB = append(groupB, e)
			boundB = geom.Union(boundB, e.box)
		}
	}

	n.entries = groupA
	nn := &node{
		leaf:    n.leaf,
		parent:  n.parent,
		entries: groupB,
	}

	if nn.leaf {
		for _, e := range nn.entries {
			t.leaves[e.id] = nn
		}
	} else {
		for _, e := range nn.entries {
			e.child.parent = nn
		}
	}

	splitTotal.Inc()
	return nn
}

// splitSeeds returns the indices of the two entries with the minimum and
// maximum center projection on the axis with the greatest center spread.
func splitSeeds(entries []entry) (int, int) {
	axis := widestAxis(entries)

	lo, hi := 0, 0
	loV := axisCenter(entries[0].box, axis)
	hiV := loV
	for i, e := range entries[1:] {
		v := axisCenter(e.box, axis)
		if v < loV {
			lo, loV = i+1, v
		}
		if v > hiV {
			hi, hiV = i+1, v
		}
	}

	// Degenerate spread, every center projects to the same value. Any two
	// distinct entries anchor the groups.
	if lo == hi {
		hi = (lo + 1) % len(entries)
	}
	return lo, hi
}

func widestAxis(entries []entry) int {
	axis := 0
	widest := 0.0
	for a := 0; a < 3; a++ {
		lo := axisCenter(entries[0].box, a)
		hi := lo
		for _, e := range entries[1:] {
			v := axisCenter(e.box, a)
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
		if spread := hi - lo; spread > widest {
			axis, widest = a, spread
		}
	}
	return axis
}

func axisCenter(b geom.BoundingBox, axis int) float64 {
	switch axis {
	case 0:
		return (b.MinX + b.MaxX) / 2
	case 1:
		return (b.MinY + b.MaxY) / 2
	default:
		return (b.MinZ + b.MaxZ) / 2
	}
}
