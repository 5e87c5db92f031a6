package geom

import (
	"math"

	"github.com/aukilabs/go-tooling/pkg/errors"
)

// ErrTypeInvalidGeometry is the error type reported when a point or box
// carries NaN or infinite coordinates.
const ErrTypeInvalidGeometry = "invalid_geometry"

// Point is a position in 3D space.
type Point struct {
	X float64
	Y float64
	Z float64
}

func NewPoint(x, y, z float64) Point {
	return Point{X: x, Y: y, Z: z}
}

// IsFinite reports whether every coordinate is a finite number.
func (p Point) IsFinite() bool {
	return isFinite(p.X) && isFinite(p.Y) && isFinite(p.Z)
}

func (p Point) Validate() error {
	if !p.IsFinite() {
		return errors.New("point has non-finite coordinates").
			WithType(ErrTypeInvalidGeometry)
	}
	return nil
}

// BoundingBox is an axis-aligned box. Min is lesser or equal to Max on every
// axis for boxes built with NewBoundingBox.
type BoundingBox struct {
	MinX float64
	MinY float64
	MinZ float64
	MaxX float64
	MaxY float64
	MaxZ float64
}

// NewBoundingBox returns the box spanned by two opposite corners. Coordinates
// are normalized per axis, any two points are valid input.
func NewBoundingBox(a, b Point) BoundingBox {
	if a.X > b.X {
		a.X, b.X = b.X, a.X
	}
	if a.Y > b.Y {
		a.Y, b.Y = b.Y, a.Y
	}
	if a.Z > b.Z {
		a.Z, b.Z = b.Z, a.Z
	}

	return BoundingBox{
		MinX: a.X,
		MinY: a.Y,
		MinZ: a.Z,
		MaxX: b.X,
		MaxY: b.Y,
		MaxZ: b.Z,
	}
}

// Validate returns an invalid_geometry error when the box carries NaN or
// infinite coordinates or is not normalized.
func (b BoundingBox) Validate() error {
	if !isFinite(b.MinX) || !isFinite(b.MinY) || !isFinite(b.MinZ) ||
		!isFinite(b.MaxX) || !isFinite(b.MaxY) || !isFinite(b.MaxZ) {
		return errors.New("bounding box has non-finite coordinates").
			WithType(ErrTypeInvalidGeometry)
	}
	if b.MinX > b.MaxX || b.MinY > b.MaxY || b.MinZ > b.MaxZ {
		return errors.New("bounding box min exceeds max").
			WithType(ErrTypeInvalidGeometry)
	}
	return nil
}

// Union returns the smallest box containing both a and b.
func Union(a, b BoundingBox) BoundingBox {
	return BoundingBox{
		MinX: math.Min(a.MinX, b.MinX),
		MinY: math.Min(a.MinY, b.MinY),
		MinZ: math.Min(a.MinZ, b.MinZ),
		MaxX: math.Max(a.MaxX, b.MaxX),
		MaxY: math.Max(a.MaxY, b.MaxY),
		MaxZ: math.Max(a.MaxZ, b.MaxZ),
	}
}

// Overlaps reports whether b and o intersect. Touching faces count as an
// overlap.
func (b BoundingBox) Overlaps(o BoundingBox) bool {
	return b.MinX <= o.MaxX && b.MaxX >= o.MinX &&
		b.MinY <= o.MaxY && b.MaxY >= o.MinY &&
		b.MinZ <= o.MaxZ && b.MaxZ >= o.MinZ
}

// ContainsPoint reports whether p lies within the box, bounds included.
func (b BoundingBox) ContainsPoint(p Point) bool {
	return p.X >= b.MinX && p.X <= b.MaxX &&
		p.Y >= b.MinY && p.Y <= b.MaxY &&
		p.Z >= b.MinZ && p.Z <= b.MaxZ
}

// Contains reports whether o lies entirely within b.
func (b BoundingBox) Contains(o BoundingBox) bool {
	return o.MinX >= b.MinX && o.MaxX <= b.MaxX &&
		o.MinY >= b.MinY && o.MaxY <= b.MaxY &&
		o.MinZ >= b.MinZ && o.MaxZ <= b.MaxZ
}

// Volume is zero for degenerate boxes. It is a selection heuristic, never a
// divisor.
func (b BoundingBox) Volume() float64 {
	return (b.MaxX - b.MinX) * (b.MaxY - b.MinY) * (b.MaxZ - b.MinZ)
}

func (b BoundingBox) Center() Point {
	return Point{
		X: (b.MinX + b.MaxX) / 2,
		Y: (b.MinY + b.MaxY) / 2,
		Z: (b.MinZ + b.MaxZ) / 2,
	}
}

// Enlargement returns the additional volume existing would need to cover
// additional.
func Enlargement(existing, additional BoundingBox) float64 {
	return Union(existing, additional).Volume() - existing.Volume()
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
