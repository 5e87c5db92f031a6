// Package index maps named volumetric regions, partitioned by world id, to
// fast point containment and box overlap queries. Each partition is backed by
// its own r-tree guarded by its own lock, a name side map gives O(1)
// case-insensitive lookups.
package index

import (
	"sort"
	"strings"
	"sync"

	"github.com/aukilabs/eihwaz/featureflag"
	"github.com/aukilabs/eihwaz/geom"
	"github.com/aukilabs/eihwaz/rtree"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/google/uuid"
)

type nameEntry struct {
	partition string
	id        string
}

// partition pairs a tree with the lock that guards it. Mutations hold the
// write lock for the whole operation so box propagation is never observed
// half-applied.
type partition struct {
	mutex sync.RWMutex
	tree  *rtree.Tree
}

// Index is the region index facade. It is safe for concurrent use.
type Index struct {
	instanceUUID string
	maxEntries   int
	flags        featureflag.FeatureFlag

	mutex      sync.RWMutex
	partitions map[string]*partition
	names      map[string]nameEntry
	regions    map[string]Region
}

// Option configures an Index.
type Option func(*Index)

// WithMaxEntries sets the per-node capacity of the partition trees.
func WithMaxEntries(n int) Option {
	return func(idx *Index) {
		idx.maxEntries = n
	}
}

// WithFeatureFlags sets the feature flags consulted by the index.
func WithFeatureFlags(f featureflag.FeatureFlag) Option {
	return func(idx *Index) {
		idx.flags = f
	}
}

// New returns an empty index.
func New(opts ...Option) *Index {
	idx := &Index{
		instanceUUID: uuid.NewString(),
		maxEntries:   rtree.DefaultMaxEntries,
		flags:        featureflag.New(nil),
		partitions:   make(map[string]*partition),
		names:        make(map[string]nameEntry),
		regions:      make(map[string]Region),
	}

	for _, o := range opts {
		o(idx)
	}
	return idx
}

// Add indexes r. The bounding box is validated before any mutation, an
// invalid region leaves the index unchanged. A region with the same name
// (case-insensitive) or the same id is removed first, wherever it lives, so
// a name never maps to two live regions.
func (idx *Index) Add(r Region) error {
	box := r.Bounds()
	if err := box.Validate(); err != nil {
		err = errors.New("rejecting region with invalid bounds").
			WithType(geom.ErrTypeInvalidGeometry).
			WithTag("region_id", r.ID()).
			WithTag("region_name", r.Name()).
			WithTag("partition", r.Partition()).
			WithTag("index_uuid", idx.instanceUUID).
			Wrap(err)
		instrumentRejectedRegion(err)
		logs.Warn(err)
		return err
	}

	idx.mutex.Lock()
	defer idx.mutex.Unlock()

	if prev, ok := idx.names[nameKey(r.Name())]; ok {
		idx.removeLocked(prev.id)
	}
	if _, ok := idx.regions[r.ID()]; ok {
		idx.removeLocked(r.ID())
	}

	p := idx.partitionLocked(r.Partition())
	p.mutex.Lock()
	err := p.tree.Insert(r.ID(), box)
	idx.checkInvariantsLocked(r.Partition(), p)
	p.mutex.Unlock()
	if err != nil {
		return err
	}

	idx.regions[r.ID()] = r
	idx.names[nameKey(r.Name())] = nameEntry{partition: r.Partition(), id: r.ID()}
	addTotal.Inc()
	return nil
}

// Remove drops the region stored under id and reports whether it was found.
func (idx *Index) Remove(id string) bool {
	idx.mutex.Lock()
	defer idx.mutex.Unlock()

	if !idx.removeLocked(id) {
		return false
	}
	removeTotal.Inc()
	return true
}

// removeLocked needs idx.mutex held for writing.
func (idx *Index) removeLocked(id string) bool {
	r, ok := idx.regions[id]
	if !ok {
		return false
	}

	pid := r.Partition()
	if p, ok := idx.partitions[pid]; ok {
		p.mutex.Lock()
		p.tree.Delete(id)
		idx.checkInvariantsLocked(pid, p)
		empty := p.tree.Len() == 0
		p.mutex.Unlock()

		if empty {
			delete(idx.partitions, pid)
		}
	}

	delete(idx.regions, id)
	if ne, ok := idx.names[nameKey(r.Name())]; ok && ne.id == id {
		delete(idx.names, nameKey(r.Name()))
	}
	return true
}

// Get returns the region stored under name, case-insensitively.
func (idx *Index) Get(name string) (Region, bool) {
	idx.mutex.RLock()
	defer idx.mutex.RUnlock()

	ne, ok := idx.names[nameKey(name)]
	if !ok {
		return nil, false
	}
	r, ok := idx.regions[ne.id]
	return r, ok
}

// QueryPoint returns the regions of the given partition whose geometry
// contains p. Bounding box candidates are refined with the region's
// containment predicate unless DISABLE_EXACT_REFINEMENT is set. An unknown
// partition yields an empty result.
func (idx *Index) QueryPoint(p geom.Point, partitionID string) []Region {
	queryPointTotal.Inc()

	idx.mutex.RLock()
	defer idx.mutex.RUnlock()

	part, ok := idx.partitions[partitionID]
	if !ok {
		return nil
	}

	var candidates []string
	part.mutex.RLock()
	part.tree.SearchPoint(p, func(id string) bool {
		candidates = append(candidates, id)
		return true
	})
	part.mutex.RUnlock()

	refine := !idx.flags.IsSet(featureflag.FlagDisableExactRefinement)

	regions := make([]Region, 0, len(candidates))
	for _, id := range candidates {
		r, ok := idx.regions[id]
		if !ok {
			continue
		}
		if refine && !r.ContainsPoint(p) {
			continue
		}
		regions = append(regions, r)
	}
	return regions
}

// QueryRange returns the regions of the given partition whose bounding box
// overlaps box. Results are box-level, a region whose exact shape misses box
// while its box overlaps it is still returned. An unknown partition yields an
// empty result.
func (idx *Index) QueryRange(box geom.BoundingBox, partitionID string) []Region {
	queryRangeTotal.Inc()

	idx.mutex.RLock()
	defer idx.mutex.RUnlock()

	part, ok := idx.partitions[partitionID]
	if !ok {
		return nil
	}

	var candidates []string
	part.mutex.RLock()
	part.tree.Search(box, func(id string) bool {
		candidates = append(candidates, id)
		return true
	})
	part.mutex.RUnlock()

	regions := make([]Region, 0, len(candidates))
	for _, id := range candidates {
		if r, ok := idx.regions[id]; ok {
			regions = append(regions, r)
		}
	}
	return regions
}

// All returns a snapshot of every indexed region, ordered by partition id
// then region id.
func (idx *Index) All() []Region {
	idx.mutex.RLock()
	defer idx.mutex.RUnlock()

	regions := make([]Region, 0, len(idx.regions))
	for _, r := range idx.regions {
		regions = append(regions, r)
	}

	sort.Slice(regions, func(i, j int) bool {
		if regions[i].Partition() != regions[j].Partition() {
			return regions[i].Partition() < regions[j].Partition()
		}
		return regions[i].ID() < regions[j].ID()
	})
	return regions
}

// Len returns the number of indexed regions.
func (idx *Index) Len() int {
	idx.mutex.RLock()
	defer idx.mutex.RUnlock()

	return len(idx.regions)
}

// Clear drops every partition and the name index.
func (idx *Index) Clear() {
	idx.mutex.Lock()
	defer idx.mutex.Unlock()

	idx.partitions = make(map[string]*partition)
	idx.names = make(map[string]nameEntry)
	idx.regions = make(map[string]Region)
}

// CheckInvariants verifies the structural guarantees of every partition tree,
// taking partitions in sorted id order.
func (idx *Index) CheckInvariants() error {
	idx.mutex.RLock()
	defer idx.mutex.RUnlock()

	for _, pid := range idx.partitionIDsLocked() {
		p := idx.partitions[pid]

		p.mutex.RLock()
		err := p.tree.CheckInvariants()
		p.mutex.RUnlock()

		if err != nil {
			return errors.New("partition tree violates invariants").
				WithTag("partition", pid).
				WithTag("index_uuid", idx.instanceUUID).
				Wrap(err)
		}
	}
	return nil
}

// partitionLocked returns the partition with the given id, creating it when
// absent. Needs idx.mutex held for writing.
func (idx *Index) partitionLocked(id string) *partition {
	p, ok := idx.partitions[id]
	if !ok {
		p = &partition{tree: rtree.New(idx.maxEntries)}
		idx.partitions[id] = p
	}
	return p
}

// checkInvariantsLocked runs the strict post-mutation check when the flag is
// set. Needs the partition lock held.
func (idx *Index) checkInvariantsLocked(pid string, p *partition) {
	idx.flags.IfSet(featureflag.FlagStrictInvariantChecks, func() {
		if err := p.tree.CheckInvariants(); err != nil {
			logs.WithTag("partition", pid).
				WithTag("index_uuid", idx.instanceUUID).
				Error(errors.New("invariant violation after mutation").Wrap(err))
		}
	})
}

// partitionIDsLocked returns the live partition ids sorted. Needs idx.mutex
// held.
func (idx *Index) partitionIDsLocked() []string {
	ids := make([]string, 0, len(idx.partitions))
	for id := range idx.partitions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func nameKey(name string) string {
	return strings.ToLower(name)
}
