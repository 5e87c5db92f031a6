package soak

import (
	"context"
	"testing"

	"github.com/aukilabs/eihwaz/featureflag"
	"github.com/aukilabs/eihwaz/index"
	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	t.Run("small run passes verification", func(t *testing.T) {
		idx := index.New(
			index.WithMaxEntries(8),
			index.WithFeatureFlags(featureflag.New([]string{
				string(featureflag.FlagStrictInvariantChecks),
			})),
		)

		res, err := Run(context.Background(), idx, Options{
			Seed:       42,
			Partitions: 3,
			Regions:    150,
			Rounds:     5,
		})
		require.NoError(t, err)
		require.Equal(t, 150, res.Added-res.Removed-res.Relocated)
		require.Equal(t, 150, idx.Len())
		require.NotZero(t, res.PointQueries)
		require.NotZero(t, res.RangeQueries)
	})

	t.Run("same seed makes the same decisions", func(t *testing.T) {
		opts := Options{Seed: 7, Partitions: 2, Regions: 50, Rounds: 3}

		a, err := Run(context.Background(), index.New(index.WithMaxEntries(8)), opts)
		require.NoError(t, err)

		b, err := Run(context.Background(), index.New(index.WithMaxEntries(8)), opts)
		require.NoError(t, err)

		require.Equal(t, a.Added, b.Added)
		require.Equal(t, a.Removed, b.Removed)
		require.Equal(t, a.Relocated, b.Relocated)
	})

	t.Run("canceled context stops the run", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := Run(ctx, index.New(), Options{Seed: 1, Partitions: 1, Regions: 10, Rounds: 10})
		require.ErrorIs(t, err, context.Canceled)
	})
}
