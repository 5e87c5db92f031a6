package rtree

import (
	"github.com/aukilabs/eihwaz/geom"
	"github.com/aukilabs/go-tooling/pkg/errors"
)

// Stats is a snapshot of the tree shape.
type Stats struct {
	Items      int   `json:"items"`
	Height     int   `json:"height"`
	Nodes      int   `json:"nodes"`
	LeafNodes  int   `json:"leaf_nodes"`
	MaxEntries int   `json:"max_entries"`
	MinEntries int   `json:"min_entries"`
	LevelNodes []int `json:"level_nodes"`
}

func (t *Tree) Stats() Stats {
	s := Stats{
		Items:      t.count,
		Height:     t.Height(),
		MaxEntries: t.maxEntries,
		MinEntries: t.minEntries,
		LevelNodes: make([]int, t.Height()),
	}

	var walk func(n *node, level int)
	walk = func(n *node, level int) {
		s.Nodes++
		s.LevelNodes[level]++
		if n.leaf {
			s.LeafNodes++
			return
		}
		for _, e := range n.entries {
			walk(e.child, level+1)
		}
	}
	walk(t.root, 0)

	return s
}

// CheckInvariants verifies the structural guarantees of the tree: internal
// entry boxes are the exact union of their child's entries, non-root nodes
// hold between the minimum and maximum fill, leaves all sit at the same
// depth, and the id side map agrees with the stored items. It is meant for
// tests and soak runs, it walks the whole tree.
func (t *Tree) CheckInvariants() error {
	items := 0
	leafDepth := -1

	var walk func(n *node, parent *node, depth int) error
	walk = func(n *node, parent *node, depth int) error {
		if n.parent != parent {
			return errors.New("node has a wrong parent pointer")
		}

		if n != t.root {
			if len(n.entries) < t.minEntries {
				return errors.New("node is under the minimum fill").
					WithTag("entries", len(n.entries)).
					WithTag("min_entries", t.minEntries)
			}
		}
		if len(n.entries) > t.maxEntries {
			return errors.New("node is over the maximum fill").
				WithTag("entries", len(n.entries)).
				WithTag("max_entries", t.maxEntries)
		}

		if n.leaf {
			if leafDepth == -1 {
				leafDepth = depth
			} else if depth != leafDepth {
				return errors.New("leaves are not at a uniform depth").
					WithTag("depth", depth).
					WithTag("expected_depth", leafDepth)
			}

			for _, e := range n.entries {
				items++
				if t.leaves[e.id] != n {
					return errors.New("id side map does not point at the holding leaf").
						WithTag("id", e.id)
				}
			}
			return nil
		}

		for _, e := range n.entries {
			if e.child == nil {
				return errors.New("internal entry has no child")
			}
			if e.box != e.child.bound() {
				return errors.New("internal entry box is stale").
					WithTag("entry_box", e.box).
					WithTag("child_bound", e.child.bound())
			}
			if err := walk(e.child, n, depth+1); err != nil {
				return err
			}
		}
		return nil
	}

	if err := walk(t.root, nil, 0); err != nil {
		return err
	}

	if items != t.count {
		return errors.New("stored item count does not match the tree").
			WithTag("items", items).
			WithTag("count", t.count)
	}
	if len(t.leaves) != t.count {
		return errors.New("id side map size does not match the tree").
			WithTag("side_map", len(t.leaves)).
			WithTag("count", t.count)
	}

	return nil
}

// ItemBound returns the stored box for id, used by callers that track the
// last known box of an item.
func (t *Tree) ItemBound(id string) (geom.BoundingBox, bool) {
	leaf, ok := t.leaves[id]
	if !ok {
		return geom.BoundingBox{}, false
	}
	for _, e := range leaf.entries {
		if e.id == id {
			return e.box, true
		}
	}
	return geom.BoundingBox{}, false
}
