package rtree

import (
	"fmt"
	"math"
	"testing"

	"github.com/aukilabs/eihwaz/geom"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/stretchr/testify/require"
)

func cube(origin geom.Point, size float64) geom.BoundingBox {
	return geom.NewBoundingBox(origin, geom.NewPoint(
		origin.X+size,
		origin.Y+size,
		origin.Z+size,
	))
}

// fillGrid inserts count unit cubes laid out on a sparse 3D grid so that no
// two boxes overlap, and returns their boxes by id.
func fillGrid(t *testing.T, tr *Tree, count int) map[string]geom.BoundingBox {
	t.Helper()

	boxes := make(map[string]geom.BoundingBox, count)
	for i := 0; i < count; i++ {
		id := fmt.Sprintf("item-%d", i)
		b := cube(geom.NewPoint(
			float64(i%10)*3,
			float64((i/10)%10)*3,
			float64(i/100)*3,
		), 1)
		require.NoError(t, tr.Insert(id, b))
		boxes[id] = b
	}
	return boxes
}

func searchPointIDs(tr *Tree, p geom.Point) []string {
	var ids []string
	tr.SearchPoint(p, func(id string) bool {
		ids = append(ids, id)
		return true
	})
	return ids
}

func TestTreeInsert(t *testing.T) {
	t.Run("inserted item is found by point", func(t *testing.T) {
		tr := New(4)
		b := geom.NewBoundingBox(geom.NewPoint(0, 0, 0), geom.NewPoint(10, 10, 10))
		require.NoError(t, tr.Insert("a", b))

		require.Equal(t, 1, tr.Len())
		require.Equal(t, []string{"a"}, searchPointIDs(tr, geom.NewPoint(5, 5, 5)))
		require.Empty(t, searchPointIDs(tr, geom.NewPoint(20, 20, 20)))
		require.NoError(t, tr.CheckInvariants())
	})

	t.Run("invalid box is rejected before mutation", func(t *testing.T) {
		tr := New(4)
		require.NoError(t, tr.Insert("a", cube(geom.NewPoint(0, 0, 0), 1)))

		err := tr.Insert("b", geom.BoundingBox{MinX: math.NaN(), MaxX: 1, MaxY: 1, MaxZ: 1})
		require.Error(t, err)
		require.Equal(t, geom.ErrTypeInvalidGeometry, errors.Type(err))
		require.Equal(t, 1, tr.Len())
		require.NoError(t, tr.CheckInvariants())
	})

	t.Run("duplicate id is rejected", func(t *testing.T) {
		tr := New(4)
		require.NoError(t, tr.Insert("a", cube(geom.NewPoint(0, 0, 0), 1)))

		err := tr.Insert("a", cube(geom.NewPoint(5, 5, 5), 1))
		require.Error(t, err)
		require.Equal(t, ErrTypeDuplicateID, errors.Type(err))
		require.Equal(t, 1, tr.Len())
	})

	t.Run("overflow splits and keeps every item reachable", func(t *testing.T) {
		tr := New(4)
		boxes := fillGrid(t, tr, 50)

		require.Greater(t, tr.Height(), 1)
		require.NoError(t, tr.CheckInvariants())

		for id, b := range boxes {
			require.Contains(t, searchPointIDs(tr, b.Center()), id, "id %s", id)
		}
	})

	t.Run("default capacity splits at scale", func(t *testing.T) {
		tr := New(0)
		require.Equal(t, DefaultMaxEntries, tr.maxEntries)

		boxes := fillGrid(t, tr, 200)
		require.Greater(t, tr.Height(), 1)
		require.NoError(t, tr.CheckInvariants())

		for id, b := range boxes {
			require.Contains(t, searchPointIDs(tr, b.Center()), id)
		}
	})

	t.Run("ancestor boxes stay exact after every insert", func(t *testing.T) {
		tr := New(4)
		for i := 0; i < 60; i++ {
			id := fmt.Sprintf("item-%d", i)
			b := cube(geom.NewPoint(float64(i*7%31), float64(i*13%29), float64(i*3%17)), 2)
			require.NoError(t, tr.Insert(id, b))
			require.NoError(t, tr.CheckInvariants(), "after insert %d", i)
		}
	})
}

func TestTreeDelete(t *testing.T) {
	t.Run("removal is idempotent", func(t *testing.T) {
		tr := New(4)
		require.NoError(t, tr.Insert("a", cube(geom.NewPoint(0, 0, 0), 1)))

		require.True(t, tr.Delete("a"))
		require.False(t, tr.Delete("a"))
		require.Zero(t, tr.Len())
		require.NoError(t, tr.CheckInvariants())
	})

	t.Run("absent id reports false", func(t *testing.T) {
		tr := New(4)
		require.False(t, tr.Delete("missing"))
	})

	t.Run("mass removal condenses the tree", func(t *testing.T) {
		tr := New(4)
		boxes := fillGrid(t, tr, 200)

		for i := 0; i < 180; i++ {
			id := fmt.Sprintf("item-%d", i)
			require.True(t, tr.Delete(id))
			delete(boxes, id)
			require.NoError(t, tr.CheckInvariants(), "after delete %d", i)
		}

		require.Equal(t, 20, tr.Len())
		for id, b := range boxes {
			ids := searchPointIDs(tr, b.Center())
			require.Contains(t, ids, id)
			require.Len(t, ids, 1, "duplicate results for %s", id)
		}
	})

	t.Run("tree height shrinks back after mass removal", func(t *testing.T) {
		tr := New(4)
		fillGrid(t, tr, 100)
		grown := tr.Height()
		require.Greater(t, grown, 1)

		for i := 0; i < 99; i++ {
			require.True(t, tr.Delete(fmt.Sprintf("item-%d", i)))
		}

		require.Equal(t, 1, tr.Height())
		require.Equal(t, 1, tr.Len())
		require.NoError(t, tr.CheckInvariants())
	})

	t.Run("interleaved inserts and deletes keep invariants", func(t *testing.T) {
		tr := New(6)
		for i := 0; i < 120; i++ {
			id := fmt.Sprintf("item-%d", i)
			require.NoError(t, tr.Insert(id, cube(geom.NewPoint(float64(i%12)*2, float64(i/12)*2, float64(i%5)), 1)))
			if i%3 == 0 && i > 0 {
				require.True(t, tr.Delete(fmt.Sprintf("item-%d", i/2)))
				require.NoError(t, tr.Insert(fmt.Sprintf("item-%d", i/2), cube(geom.NewPoint(float64(i), 0, 0), 1)))
			}
			require.NoError(t, tr.CheckInvariants(), "after round %d", i)
		}
	})
}

func TestTreeSearch(t *testing.T) {
	tr := New(4)
	fillGrid(t, tr, 40)

	t.Run("box search returns every overlapping item", func(t *testing.T) {
		// Covers the grid cells at x 0..3, y 0..3, z 0.
		var ids []string
		tr.Search(geom.NewBoundingBox(geom.NewPoint(0, 0, 0), geom.NewPoint(4, 4, 1)), func(id string) bool {
			ids = append(ids, id)
			return true
		})
		require.ElementsMatch(t, []string{"item-0", "item-1", "item-10", "item-11"}, ids)
	})

	t.Run("touching boxes count as overlapping", func(t *testing.T) {
		// item-0 spans (0,0,0)-(1,1,1), the probe touches its max face.
		var ids []string
		tr.Search(geom.NewBoundingBox(geom.NewPoint(1, 1, 1), geom.NewPoint(1.5, 1.5, 1.5)), func(id string) bool {
			ids = append(ids, id)
			return true
		})
		require.Contains(t, ids, "item-0")
	})

	t.Run("search stops when visit returns false", func(t *testing.T) {
		count := 0
		tr.Search(geom.NewBoundingBox(geom.NewPoint(-100, -100, -100), geom.NewPoint(100, 100, 100)), func(string) bool {
			count++
			return count < 5
		})
		require.Equal(t, 5, count)
	})

	t.Run("empty tree finds nothing", func(t *testing.T) {
		empty := New(4)
		require.Empty(t, searchPointIDs(empty, geom.NewPoint(0, 0, 0)))

		_, ok := empty.Bound()
		require.False(t, ok)
	})
}

func TestTreeStats(t *testing.T) {
	tr := New(4)
	fillGrid(t, tr, 30)

	s := tr.Stats()
	require.Equal(t, 30, s.Items)
	require.Equal(t, tr.Height(), s.Height)
	require.Equal(t, 4, s.MaxEntries)
	require.Equal(t, 2, s.MinEntries)
	require.Greater(t, s.LeafNodes, 1)
	require.Len(t, s.LevelNodes, s.Height)
	require.Equal(t, 1, s.LevelNodes[0])
}

func TestTreeItemBound(t *testing.T) {
	tr := New(4)
	b := cube(geom.NewPoint(3, 4, 5), 2)
	require.NoError(t, tr.Insert("a", b))

	got, ok := tr.ItemBound("a")
	require.True(t, ok)
	require.Equal(t, b, got)

	_, ok = tr.ItemBound("missing")
	require.False(t, ok)
}
