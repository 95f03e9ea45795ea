package scheduler

import (
	"log"

	"github.com/go-accel/npusim/graph"
	"github.com/go-accel/npusim/tile"
)

// HalfSplit is the spatial_split policy: cores are partitioned into two
// equal halves, each half running one distinct model at a time (spec.md
// §4.6, "HalfSplit policy"). Models are assigned to a free half in
// submission order; once both halves are occupied, further models queue
// until a half's model finishes entirely.
type HalfSplit struct {
	base
	numCores  int
	modelHalf map[*graph.Model]int
	halfQueue [2][]*layerWork
	halfModel [2]*graph.Model
	waiting   []*graph.Model
}

// NewHalfSplit creates a HalfSplit scheduler over numCores cores, split
// into [0, numCores/2) and [numCores/2, numCores).
func NewHalfSplit(numCores int) *HalfSplit {
	h := &HalfSplit{
		numCores:  numCores,
		modelHalf: make(map[*graph.Model]int),
	}

	h.base = newBase(func(lw *layerWork) {
		half, ok := h.modelHalf[lw.model]
		if !ok {
			log.Panic("scheduler: layer drained for a model not assigned to a half")
		}

		h.halfQueue[half] = append(h.halfQueue[half], lw)
	})

	return h
}

func (h *HalfSplit) assignToHalf(half int, model *graph.Model) {
	h.halfModel[half] = model
	h.modelHalf[model] = half
	h.register(model, 0)
}

// ScheduleModel assigns model to a free half, or queues it if both
// halves are occupied.
func (h *HalfSplit) ScheduleModel(model *graph.Model, _ int) {
	switch {
	case h.halfModel[0] == nil:
		h.assignToHalf(0, model)
	case h.halfModel[1] == nil:
		h.assignToHalf(1, model)
	default:
		h.waiting = append(h.waiting, model)
	}
}

// FinishTile reports layerID's tile done on coreID. When this completes
// the layer's model entirely, the half it occupied is freed and, if a
// model is waiting, that model takes over the half.
func (h *HalfSplit) FinishTile(_ int, layerID uint32) {
	lw, ok := h.layers[layerID]
	if !ok {
		log.Panic("scheduler: FinishTile called for an unknown layer id")
	}

	model := lw.model
	h.finishTile(layerID)

	if !model.Finished() {
		return
	}

	half, ok := h.modelHalf[model]
	if !ok || h.halfModel[half] != model {
		return
	}

	h.halfModel[half] = nil
	delete(h.modelHalf, model)

	if len(h.waiting) > 0 {
		next := h.waiting[0]
		h.waiting = h.waiting[1:]
		h.assignToHalf(half, next)
	}
}

// Empty reports whether no tile is pending or outstanding and no model
// is waiting for a half to free up.
func (h *HalfSplit) Empty() bool {
	return h.empty() && len(h.waiting) == 0
}

func (h *HalfSplit) halfOf(coreID int) int {
	if coreID < h.numCores/2 {
		return 0
	}

	return 1
}

// GetTile returns the next tile of coreID's half's active model, or the
// sentinel if that half is unoccupied or has nothing left to issue.
func (h *HalfSplit) GetTile(coreID int) *tile.Tile {
	half := h.halfOf(coreID)
	q := h.halfQueue[half]

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

		h.halfQueue[half] = q

		return t
	}

	h.halfQueue[half] = q

	return sentinel()
}

// IsAccumTile reports whether coreID's half's next tile requires
// accumulator chaining.
func (h *HalfSplit) IsAccumTile(coreID int, ahead int) bool {
	if ahead != 0 {
		return false
	}

	q := h.halfQueue[h.halfOf(coreID)]
	if len(q) == 0 {
		return false
	}

	lw := q[0]
	if len(lw.pending) == 0 {
		return false
	}

	return lw.pending[0].Accumulate
}
