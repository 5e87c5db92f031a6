package index

import (
	"github.com/aukilabs/eihwaz/geom"
)

// Region is the capability interface a caller implements for everything it
// wants indexed. The index never models region shapes, it only consumes the
// bounding box and the containment predicate.
type Region interface {
	// A stable identifier, unique across partitions.
	ID() string

	// The region name. Names are unique case-insensitively, adding a region
	// under an existing name replaces the previous one.
	Name() string

	// The partition the region lives in, e.g. a world id.
	Partition() string

	// The axis-aligned bounding box of the region's geometry. A region's
	// geometry is immutable while indexed, remove and re-add to change it.
	Bounds() geom.BoundingBox

	// Reports whether the exact geometry contains p. Used to refine
	// bounding box candidates on point queries.
	ContainsPoint(p geom.Point) bool
}
