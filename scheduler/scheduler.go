// Package scheduler implements the four tile-assignment policies of
// spec.md §4.6: Simple, DedicatedCPU (partition_cpu), TimeMultiplex, and
// HalfSplit (spatial_split), sharing one capability set rather than a
// runtime inheritance chain, per spec.md §9's "Scheduler polymorphism"
// design note.
package scheduler

import (
	"log"

	"github.com/go-accel/npusim/graph"
	"github.com/go-accel/npusim/tile"
)

// Scheduler is the common interface all four policies implement
// (spec.md §4.6).
type Scheduler interface {
	// ScheduleModel registers model, newly arrived, with priority (the
	// original implementation's priority argument is carried but not
	// consumed beyond registration order today, matching
	// original_source/src/Simulator.cc's single call site
	// "schedule_model(std::move(launch_model), 1)", which always passes
	// the same constant).
	ScheduleModel(model *graph.Model, priority int)
	// FinishTile reports that the tile the scheduler most recently
	// issued to coreID for layerID has completed.
	FinishTile(coreID int, layerID uint32)
	// Empty reports whether no model has any tile pending assignment and
	// no layer is outstanding.
	Empty() bool
	// GetTile returns the next Initialized tile assignable to coreID, or
	// a sentinel whose status is not Initialized if none is available.
	GetTile(coreID int) *tile.Tile
	// IsAccumTile reports whether the ahead-th upcoming tile for coreID
	// requires accumulator chaining. Only ahead == 0 is specified and
	// tested (spec.md §9, open question (c)); other values return false.
	IsAccumTile(coreID int, ahead int) bool
}

// layerWork tracks one operation's tiles from "pending issue" until
// each is reported finished. It is the unit every policy schedules:
// every tile in pending/outstanding is ultimately the same operation's.
type layerWork struct {
	model       *graph.Model
	opID        uint32
	pending     []*tile.Tile // not yet handed out via GetTile
	outstanding int          // not yet reported finished, whether pending or handed out; starts at the tile count
}

func newLayerWork(model *graph.Model, op *graph.Operation) *layerWork {
	return &layerWork{
		model:       model,
		opID:        op.ID,
		pending:     append([]*tile.Tile(nil), op.Tiles...),
		outstanding: len(op.Tiles),
	}
}

func (lw *layerWork) empty() bool {
	return len(lw.pending) == 0 && lw.outstanding == 0
}

// modelEntry is one model registered with a scheduler via ScheduleModel.
type modelEntry struct {
	model    *graph.Model
	priority int
}

// base holds the bookkeeping shared by every policy: registered models,
// and the outstanding-tile-count ledger keyed by layer id (globally
// unique across models — see graph.IDAllocator). enqueue routes a newly
// drained layerWork into the concrete policy's own assignment queue(s);
// each constructor supplies its own.
type base struct {
	models  []*modelEntry
	layers  map[uint32]*layerWork
	enqueue func(*layerWork)
}

func newBase(enqueue func(*layerWork)) base {
	return base{
		layers:  make(map[uint32]*layerWork),
		enqueue: enqueue,
	}
}

// register records model and drains any operations already executable
// at registration time into the policy's queue.
func (b *base) register(model *graph.Model, priority int) {
	b.models = append(b.models, &modelEntry{model: model, priority: priority})
	b.drain(model)
}

// drain pulls every currently-ready operation out of model's ready-queue
// and routes it to the policy via enqueue.
func (b *base) drain(model *graph.Model) {
	for {
		op, ok := model.NextExecutable()
		if !ok {
			return
		}

		lw := newLayerWork(model, op)
		b.layers[op.ID] = lw
		b.enqueue(lw)
	}
}

// finishTile decrements layerID's outstanding count; at zero, the layer
// is marked finished on its model (which may make child operations
// executable) and any newly-ready operations are drained.
func (b *base) finishTile(layerID uint32) {
	lw, ok := b.layers[layerID]
	if !ok {
		log.Panic("scheduler: FinishTile called for an unknown layer id")
	}

	lw.outstanding--
	if lw.outstanding < 0 {
		log.Panic("scheduler: FinishTile called more times than tiles were issued")
	}

	if lw.outstanding == 0 && len(lw.pending) == 0 {
		delete(b.layers, layerID)
		lw.model.FinishLayer(layerID)
		b.drain(lw.model)
	}
}

// empty reports whether every tracked layer has nothing pending or
// outstanding.
func (b *base) empty() bool {
	for _, lw := range b.layers {
		if !lw.empty() {
			return false
		}
	}

	return true
}

// popPending removes and returns the front tile of lw's pending list, or
// ok=false if lw has nothing left to issue.
func popPending(lw *layerWork) (t *tile.Tile, ok bool) {
	if len(lw.pending) == 0 {
		return nil, false
	}

	t = lw.pending[0]
	lw.pending = lw.pending[1:]

	return t, true
}

// sentinel is the "no tile available" value GetTile returns; it reuses
// tile.Sentinel(), whose Finish status is the opposite polarity from
// core.PopFinishedTile's own empty-case sentinel (see core/core.go) —
// the two contracts require status != Initialized and status != Finish
// respectively.
func sentinel() *tile.Tile {
	return tile.Sentinel()
}
