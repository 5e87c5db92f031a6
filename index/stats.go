package index

import (
	"github.com/aukilabs/eihwaz/rtree"
	"github.com/segmentio/encoding/json"
)

// Stats is a snapshot of the index and of every partition tree.
type Stats struct {
	InstanceUUID string                 `json:"instance_uuid"`
	Regions      int                    `json:"regions"`
	Partitions   map[string]rtree.Stats `json:"partitions"`
}

func (s Stats) String() string {
	b, err := json.Marshal(s)
	if err != nil {
		return ""
	}
	return string(b)
}

func (idx *Index) Stats() Stats {
	idx.mutex.RLock()
	defer idx.mutex.RUnlock()

	s := Stats{
		InstanceUUID: idx.instanceUUID,
		Regions:      len(idx.regions),
		Partitions:   make(map[string]rtree.Stats, len(idx.partitions)),
	}

	for _, pid := range idx.partitionIDsLocked() {
		p := idx.partitions[pid]

		p.mutex.RLock()
		s.Partitions[pid] = p.tree.Stats()
		p.mutex.RUnlock()
	}
	return s
}
