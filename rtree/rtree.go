// Package rtree implements an in-memory 3D R-tree that maps opaque string
// ids to axis-aligned bounding boxes. Insertion follows Guttman's least
// enlargement descent with a linear split heuristic, deletion condenses
// underflowing nodes back into the tree. Every ancestor minimum bounding
// rectangle is recomputed on each mutation so internal entries never go
// stale.
package rtree

import (
	"github.com/aukilabs/eihwaz/geom"
	"github.com/aukilabs/go-tooling/pkg/errors"
)

// DefaultMaxEntries is the node capacity used when a tree is created without
// an explicit one.
const DefaultMaxEntries = 50

// ErrTypeDuplicateID is the error type reported when inserting an id that is
// already stored.
const ErrTypeDuplicateID = "duplicate_id"

// entry is a slot in a node. Leaf entries carry an item id, internal entries
// carry a child node whose box is the exact union of the child's entries.
type entry struct {
	box   geom.BoundingBox
	id    string
	child *node
}

type node struct {
	leaf    bool
	parent  *node
	entries []entry
}

// bound returns the smallest box covering every entry of n. n must not be
// empty.
func (n *node) bound() geom.BoundingBox {
	b := n.entries[0].box
	for _, e := range n.entries[1:] {
		b = geom.Union(b, e.box)
	}
	return b
}

func (n *node) entryIndex(child *node) int {
	for i := range n.entries {
		if n.entries[i].child == child {
			return i
		}
	}
	return -1
}

// Tree is a single R-tree. Its zero value is not usable, use New. Tree is not
// safe for concurrent use, callers synchronize around it.
type Tree struct {
	maxEntries int
	minEntries int

	root  *node
	count int

	// id to holding leaf, makes deletion O(1) instead of an overlap-guided
	// descent.
	leaves map[string]*node
}

// New returns an empty tree. maxEntries caps the number of entries per node,
// values below 4 fall back to DefaultMaxEntries. The minimum node fill is
// half the cap.
func New(maxEntries int) *Tree {
	if maxEntries < 4 {
		maxEntries = DefaultMaxEntries
	}

	return &Tree{
		maxEntries: maxEntries,
		minEntries: maxEntries / 2,
		root:       &node{leaf: true},
		leaves:     make(map[string]*node),
	}
}

// Len returns the number of stored items.
func (t *Tree) Len() int {
	return t.count
}

// Height returns the number of node levels. An empty tree has height 1.
func (t *Tree) Height() int {
	h := 1
	for n := t.root; !n.leaf; n = n.entries[0].child {
		h++
	}
	return h
}

// Insert stores box under id. The box is validated before any mutation, an
// invalid box leaves the tree unchanged. Inserting an id that is already
// stored is an error, delete it first.
func (t *Tree) Insert(id string, box geom.BoundingBox) error {
	if err := box.Validate(); err != nil {
		return errors.New("rejecting item with invalid bounding box").
			WithType(geom.ErrTypeInvalidGeometry).
			WithTag("id", id).
			Wrap(err)
	}
	if _, ok := t.leaves[id]; ok {
		return errors.New("item id is already stored").
			WithType(ErrTypeDuplicateID).
			WithTag("id", id)
	}

	t.insert(entry{box: box, id: id})
	t.count++
	insertTotal.Inc()
	return nil
}

// insert places a leaf entry without touching count or validating, shared by
// Insert and the reinsertion done on underflow.
func (t *Tree) insert(e entry) {
	leaf := t.chooseLeaf(e.box)
	leaf.entries = append(leaf.entries, e)
	t.leaves[e.id] = leaf
	t.adjustTree(leaf)
}

// chooseLeaf descends to the leaf whose box needs the least volume
// enlargement to cover box. Ties go to the entry with the smaller current
// volume, then to the lowest entry index, making the descent deterministic.
func (t *Tree) chooseLeaf(box geom.BoundingBox) *node {
	n := t.root
	for !n.leaf {
		best := 0
		bestDelta := geom.Enlargement(n.entries[0].box, box)
		bestVolume := n.entries[0].box.Volume()

		for i, e := range n.entries[1:] {
			delta := geom.Enlargement(e.box, box)
			if delta > bestDelta {
				continue
			}
			volume := e.box.Volume()
			if delta < bestDelta || volume < bestVolume {
				best = i + 1
				bestDelta = delta
				bestVolume = volume
			}
		}
		n = n.entries[best].child
	}
	return n
}

// adjustTree walks from n to the root, refreshing every ancestor entry box
// and splitting overflowing nodes on the way up.
func (t *Tree) adjustTree(n *node) {
	for {
		var split *node
		if len(n.entries) > t.maxEntries {
			split = t.splitNode(n)
		}

		if n == t.root {
			if split != nil {
				t.growRoot(n, split)
			}
			return
		}

		parent := n.parent
		parent.entries[parent.entryIndex(n)].box = n.bound()
		if split != nil {
			parent.entries = append(parent.entries, entry{box: split.bound(), child: split})
		}
		n = parent
	}
}

// growRoot replaces a split root with a new internal root holding the two
// halves, the only way the tree gains height.
func (t *Tree) growRoot(a, b *node) {
	root := &node{
		entries: []entry{
			{box: a.bound(), child: a},
			{box: b.bound(), child: b},
		},
	}
	a.parent = root
	b.parent = root
	t.root = root
}

// Search calls visit with the id of every item whose box overlaps box, until
// visit returns false. Overlap is tested on stored boxes only, exact geometry
// refinement is up to the caller.
func (t *Tree) Search(box geom.BoundingBox, visit func(id string) bool) {
	searchTotal.Inc()
	t.search(t.root, box, visit)
}

func (t *Tree) search(n *node, box geom.BoundingBox, visit func(id string) bool) bool {
	for _, e := range n.entries {
		if !e.box.Overlaps(box) {
			continue
		}
		if n.leaf {
			if !visit(e.id) {
				return false
			}
		} else if !t.search(e.child, box, visit) {
			return false
		}
	}
	return true
}

// SearchPoint calls visit with the id of every item whose box contains p,
// until visit returns false.
func (t *Tree) SearchPoint(p geom.Point, visit func(id string) bool) {
	searchTotal.Inc()
	t.searchPoint(t.root, p, visit)
}

func (t *Tree) searchPoint(n *node, p geom.Point, visit func(id string) bool) bool {
	for _, e := range n.entries {
		if !e.box.ContainsPoint(p) {
			continue
		}
		if n.leaf {
			if !visit(e.id) {
				return false
			}
		} else if !t.searchPoint(e.child, p, visit) {
			return false
		}
	}
	return true
}

// Bound returns the box covering every stored item. ok is false for an empty
// tree.
func (t *Tree) Bound() (box geom.BoundingBox, ok bool) {
	if t.count == 0 {
		return geom.BoundingBox{}, false
	}
	return t.root.bound(), true
}
