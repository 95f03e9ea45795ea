package scheduler

import (
	"github.com/go-accel/npusim/graph"
	"github.com/go-accel/npusim/tile"
)

// DedicatedCPU is the partition_cpu policy: every model declares which
// partition it belongs to (graph.Model.PartitionID), and a tile of that
// model may only be handed to a core whose index falls in that
// partition's configured core set (spec.md §4.6, "DedicatedCPU
// policy"). The partition -> core-set mapping is configuration-supplied
// (spec.md §6), not derivable from the graph itself.
type DedicatedCPU struct {
	base
	coreToPartition map[int]uint32
	queues          map[uint32][]*layerWork
}

// NewDedicatedCPU creates a DedicatedCPU scheduler. partitionCores maps
// a partition id to the cores assigned to it; cores absent from every
// partition never receive a tile.
func NewDedicatedCPU(partitionCores map[uint32][]int) *DedicatedCPU {
	d := &DedicatedCPU{
		coreToPartition: make(map[int]uint32),
		queues:          make(map[uint32][]*layerWork),
	}

	for partition, cores := range partitionCores {
		for _, c := range cores {
			d.coreToPartition[c] = partition
		}
	}

	d.base = newBase(func(lw *layerWork) {
		partition := uint32(0)
		if lw.model.HasPartition {
			partition = lw.model.PartitionID
		}

		d.queues[partition] = append(d.queues[partition], lw)
	})

	return d
}

// ScheduleModel registers model.
func (d *DedicatedCPU) ScheduleModel(model *graph.Model, priority int) {
	d.register(model, priority)
}

// FinishTile reports layerID's tile done on coreID.
func (d *DedicatedCPU) FinishTile(_ int, layerID uint32) {
	d.finishTile(layerID)
}

// Empty reports whether no tile is pending or outstanding.
func (d *DedicatedCPU) Empty() bool {
	return d.empty()
}

// GetTile returns the next tile assignable to coreID's partition, or the
// sentinel if coreID belongs to no partition or its partition's queue
// is empty.
func (d *DedicatedCPU) GetTile(coreID int) *tile.Tile {
	partition, ok := d.coreToPartition[coreID]
	if !ok {
		return sentinel()
	}

	q := d.queues[partition]

	for len(q) > 0 {
		front := q[0]

		t, ok := popPending(front)
		if !ok {
			q = q[1:]
			continue
		}

		if len(front.pending) == 0 {
			q = q[1:]
		}

		d.queues[partition] = q

		return t
	}

	d.queues[partition] = q

	return sentinel()
}

// IsAccumTile reports whether the next tile coreID's partition queue
// would hand out requires accumulator chaining.
func (d *DedicatedCPU) IsAccumTile(coreID int, ahead int) bool {
	if ahead != 0 {
		return false
	}

	partition, ok := d.coreToPartition[coreID]
	if !ok {
		return false
	}

	q := d.queues[partition]
	if len(q) == 0 {
		return false
	}

	lw := q[0]
	if len(lw.pending) == 0 {
		return false
	}

	return lw.pending[0].Accumulate
}
