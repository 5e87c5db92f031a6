package index

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const errTypeLabel = "error_type"

var (
	addTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "eihwaz_index_region_adds",
		Help: "The number of regions added to the index.",
	})

	removeTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "eihwaz_index_region_removes",
		Help: "The number of regions removed from the index.",
	})

	queryPointTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "eihwaz_index_point_queries",
		Help: "The number of point queries.",
	})

	queryRangeTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "eihwaz_index_range_queries",
		Help: "The number of range queries.",
	})

	rejectedRegionTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eihwaz_index_rejected_regions",
		Help: "The regions rejected before mutation, by error type.",
	}, []string{
		errTypeLabel,
	})
)

func instrumentRejectedRegion(err error) {
	rejectedRegionTotal.
		With(prometheus.Labels{
			errTypeLabel: errors.Type(err),
		}).
		Inc()
}
