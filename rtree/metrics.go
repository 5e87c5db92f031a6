package rtree

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	insertTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "eihwaz_rtree_inserts",
		Help: "The number of items inserted into r-trees.",
	})

	deleteTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "eihwaz_rtree_deletes",
		Help: "The number of items deleted from r-trees.",
	})

	searchTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "eihwaz_rtree_searches",
		Help: "The number of point and box searches.",
	})

	splitTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "eihwaz_rtree_node_splits",
		Help: "The number of node splits caused by overflowing inserts.",
	})

	mergeTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "eihwaz_rtree_node_merges",
		Help: "The number of underflowing nodes absorbed by a sibling.",
	})

	reinsertTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "eihwaz_rtree_item_reinserts",
		Help: "The number of orphaned items reinserted after an underflow.",
	})
)
