// Package soak exercises a live index with randomized region churn and
// verifies that every answer matches a brute-force oracle. It backs the soak
// binary and doubles as an end-to-end self test.
package soak

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/aukilabs/eihwaz/geom"
	"github.com/aukilabs/eihwaz/index"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/google/uuid"
)

// Options configures a soak run.
type Options struct {
	// The RNG seed. Runs with the same seed make the same decisions.
	Seed int64

	// The number of partitions the regions are spread over.
	Partitions int

	// The number of live regions the run maintains.
	Regions int

	// The number of churn rounds. Each round removes and re-adds a slice of
	// the regions and verifies every live region afterwards.
	Rounds int
}

// Results summarizes a soak run.
type Results struct {
	Added        int           `json:"added"`
	Removed      int           `json:"removed"`
	Relocated    int           `json:"relocated"`
	PointQueries int           `json:"point_queries"`
	RangeQueries int           `json:"range_queries"`
	Duration     time.Duration `json:"duration"`
}

// cuboid is the region shape used by soak runs. The exact geometry is the
// bounding box.
type cuboid struct {
	id    string
	name  string
	world string
	box   geom.BoundingBox
}

func (r *cuboid) ID() string                      { return r.id }
func (r *cuboid) Name() string                    { return r.name }
func (r *cuboid) Partition() string               { return r.world }
func (r *cuboid) Bounds() geom.BoundingBox        { return r.box }
func (r *cuboid) ContainsPoint(p geom.Point) bool { return r.box.ContainsPoint(p) }

// Run churns idx according to opts and verifies it after every round. It
// returns an error on the first wrong answer or invariant violation. idx
// must be empty.
func Run(ctx context.Context, idx *index.Index, opts Options) (Results, error) {
	if opts.Partitions < 1 {
		opts.Partitions = 1
	}
	if opts.Regions < 1 {
		opts.Regions = 1
	}

	rng := rand.New(rand.NewSource(opts.Seed))

	var res Results
	start := time.Now()

	regions := make([]*cuboid, 0, opts.Regions)
	for i := 0; i < opts.Regions; i++ {
		r := newRandomCuboid(rng, opts.Partitions)
		if err := idx.Add(r); err != nil {
			return res, errors.New("adding region failed").Wrap(err)
		}
		regions = append(regions, r)
		res.Added++
	}

	for round := 0; round < opts.Rounds; round++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		// Remove a random tenth and add replacements with fresh geometry,
		// some under the old name to exercise name relocation.
		churn := len(regions)/10 + 1
		for i := 0; i < churn; i++ {
			victim := rng.Intn(len(regions))
			old := regions[victim]

			next := newRandomCuboid(rng, opts.Partitions)
			if rng.Intn(2) == 0 {
				next.name = old.name
				res.Relocated++
			} else {
				if !idx.Remove(old.id) {
					return res, errors.New("live region was not removable").
						WithTag("region_id", old.id)
				}
				res.Removed++
			}

			if err := idx.Add(next); err != nil {
				return res, errors.New("adding replacement region failed").Wrap(err)
			}
			res.Added++
			regions[victim] = next
		}

		if err := verify(idx, regions, opts.Partitions, rng, &res); err != nil {
			return res, errors.New("verification failed").
				WithTag("round", round).
				Wrap(err)
		}

		logs.WithTag("round", round).
			WithTag("regions", idx.Len()).
			Debug("soak round done")
	}

	if err := idx.CheckInvariants(); err != nil {
		return res, err
	}
	if idx.Len() != len(regions) {
		return res, errors.New("index size drifted from the live region set").
			WithTag("index_len", idx.Len()).
			WithTag("live_regions", len(regions))
	}

	res.Duration = time.Since(start)
	return res, nil
}

// verify round-trips every live region through a point query and probes
// random ranges against a brute-force scan.
func verify(idx *index.Index, regions []*cuboid, partitions int, rng *rand.Rand, res *Results) error {
	for _, r := range regions {
		got := idx.QueryPoint(r.box.Center(), r.world)
		res.PointQueries++

		if !containsID(got, r.id) {
			return errors.New("region not found via its center point").
				WithTag("region_id", r.id).
				WithTag("partition", r.world)
		}
	}

	for i := 0; i < 10; i++ {
		probe := randomBox(rng)
		world := fmt.Sprintf("w%d", rng.Intn(partitions))

		got := idx.QueryRange(probe, world)
		res.RangeQueries++

		want := make(map[string]struct{})
		for _, r := range regions {
			if r.world == world && r.box.Overlaps(probe) {
				want[r.id] = struct{}{}
			}
		}

		if len(got) != len(want) {
			return errors.New("range query disagrees with brute-force scan").
				WithTag("partition", world).
				WithTag("got", len(got)).
				WithTag("want", len(want))
		}
		for _, r := range got {
			if _, ok := want[r.ID()]; !ok {
				return errors.New("range query returned a non-overlapping region").
					WithTag("region_id", r.ID())
			}
		}
	}

	return nil
}

func newRandomCuboid(rng *rand.Rand, partitions int) *cuboid {
	origin := geom.NewPoint(
		rng.Float64()*1000-500,
		rng.Float64()*200-100,
		rng.Float64()*1000-500,
	)
	size := rng.Float64()*20 + 1

	id := uuid.NewString()
	return &cuboid{
		id:    id,
		name:  "region-" + id,
		world: fmt.Sprintf("w%d", rng.Intn(partitions)),
		box: geom.NewBoundingBox(origin, geom.NewPoint(
			origin.X+size,
			origin.Y+size,
			origin.Z+size,
		)),
	}
}

func randomBox(rng *rand.Rand) geom.BoundingBox {
	origin := geom.NewPoint(
		rng.Float64()*1000-500,
		rng.Float64()*200-100,
		rng.Float64()*1000-500,
	)
	return geom.NewBoundingBox(origin, geom.NewPoint(
		origin.X+rng.Float64()*100,
		origin.Y+rng.Float64()*50,
		origin.Z+rng.Float64()*100,
	))
}

func containsID(regions []index.Region, id string) bool {
	for _, r := range regions {
		if r.ID() == id {
			return true
		}
	}
	return false
}
