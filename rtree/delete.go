package rtree

import (
	"github.com/aukilabs/eihwaz/geom"
)

// Delete removes the item stored under id and reports whether it was found.
// Removing an absent id is not an error. Underflowing nodes are condensed
// back into the tree and every ancestor box is refreshed, shrink included.
func (t *Tree) Delete(id string) bool {
	leaf, ok := t.leaves[id]
	if !ok {
		return false
	}

	for i := range leaf.entries {
		if leaf.entries[i].id == id {
			leaf.entries = append(leaf.entries[:i], leaf.entries[i+1:]...)
			break
		}
	}
	delete(t.leaves, id)
	t.count--
	deleteTotal.Inc()

	t.condenseTree(leaf)

	// Shorten: an internal root left with a single child becomes that child.
	for !t.root.leaf && len(t.root.entries) == 1 {
		t.root = t.root.entries[0].child
		t.root.parent = nil
	}

	return true
}

// condenseTree walks from n to the root. Underflowing nodes are detached and
// their surviving entries either absorbed by a sibling or reinserted through
// the normal insert path, nodes within bounds get their ancestor entry box
// recomputed.
func (t *Tree) condenseTree(n *node) {
	var orphans []entry

	for n != t.root {
		parent := n.parent
		idx := parent.entryIndex(n)

		if len(n.entries) < t.minEntries {
			parent.entries = append(parent.entries[:idx], parent.entries[idx+1:]...)
			if !t.absorbIntoSibling(parent, n) {
				orphans = append(orphans, t.collectItems(n)...)
			}
		} else {
			parent.entries[idx].box = n.bound()
		}

		n = parent
	}

	// The root lost its last child, restart from an empty leaf.
	if !t.root.leaf && len(t.root.entries) == 0 {
		t.root = &node{leaf: true}
	}

	for _, e := range orphans {
		t.insert(e)
		reinsertTotal.Inc()
	}
}

// absorbIntoSibling moves the entries of the detached node n into the child
// of parent needing the least volume enlargement, provided that child has
// room for all of them. It reports whether the entries were placed.
func (t *Tree) absorbIntoSibling(parent *node, n *node) bool {
	if len(n.entries) == 0 {
		return true
	}

	bound := n.bound()

	var sib *node
	var bestDelta float64
	for _, e := range parent.entries {
		if len(e.child.entries)+len(n.entries) > t.maxEntries {
			continue
		}
		delta := geom.Enlargement(e.box, bound)
		if sib == nil || delta < bestDelta {
			sib = e.child
			bestDelta = delta
		}
	}
	if sib == nil {
		return false
	}

	sib.entries = append(sib.entries, n.entries...)
	if sib.leaf {
		for _, e := range n.entries {
			t.leaves[e.id] = sib
		}
	} else {
		for _, e := range n.entries {
			e.child.parent = sib
		}
	}

	parent.entries[parent.entryIndex(sib)].box = sib.bound()
	mergeTotal.Inc()
	return true
}

// collectItems gathers every leaf entry of the subtree rooted at n.
func (t *Tree) collectItems(n *node) []entry {
	if n.leaf {
		return n.entries
	}

	var items []entry
	for _, e := range n.entries {
		items = append(items, t.collectItems(e.child)...)
	}
	return items
}
