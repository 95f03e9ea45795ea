package scheduler

import (
	"github.com/go-accel/npusim/graph"
	"github.com/go-accel/npusim/tile"
)

// TimeMultiplex runs exactly one model across all cores at a time,
// switching to the next model in round-robin registration order only
// once the current model has no tile left pending *or outstanding*
// (spec.md §4.6, "TimeMultiplex policy"; spec property S6, "at any
// cycle, all issued tiles belong to at most one model"). There is no
// mid-tile preemption: a switch only ever happens between GetTile
// calls, never by recalling an already-issued tile — and it is held
// off for as many GetTile calls as it takes for the outgoing model's
// last in-flight tiles to retire, so the incoming model's first tile is
// never issued while the outgoing model still has one outstanding.
//
// The pack's original_source carries no TimeMultiplexScheduler
// implementation to ground the exact switch trigger against (only
// Model.cc, Simulator.cc, Dram.cc, and ConvOS.h were retrieved), so
// "current model exhausted" meaning pending-and-outstanding rather than
// merely pending is this implementation's own reading of spec.md §4.6,
// recorded here and in DESIGN.md rather than left silent.
type TimeMultiplex struct {
	base
	order       []*graph.Model
	queues      map[*graph.Model][]*layerWork
	outstanding map[*graph.Model]int // tiles issued but not yet finished
	current     int                  // index into order; -1 if no model is active
}

// NewTimeMultiplex creates a TimeMultiplex scheduler.
func NewTimeMultiplex() *TimeMultiplex {
	t := &TimeMultiplex{
		queues:      make(map[*graph.Model][]*layerWork),
		outstanding: make(map[*graph.Model]int),
		current:     -1,
	}

	t.base = newBase(func(lw *layerWork) {
		if _, seen := t.queues[lw.model]; !seen {
			t.order = append(t.order, lw.model)
		}

		t.queues[lw.model] = append(t.queues[lw.model], lw)

		if t.current == -1 {
			t.current = len(t.order) - 1
		}
	})

	return t
}

// ScheduleModel registers model.
func (t *TimeMultiplex) ScheduleModel(model *graph.Model, priority int) {
	t.register(model, priority)
}

// FinishTile reports layerID's tile done on coreID.
func (t *TimeMultiplex) FinishTile(_ int, layerID uint32) {
	// Captured before finishTile, which may delete the layers map entry
	// once this was the layer's last outstanding tile.
	lw, ok := t.layers[layerID]
	if !ok {
		t.finishTile(layerID) // let base produce the standard panic
		return
	}

	model := lw.model

	t.finishTile(layerID)

	t.outstanding[model]--
}

// Empty reports whether no tile is pending or outstanding.
func (t *TimeMultiplex) Empty() bool {
	return t.empty()
}

// advance moves current to the next model (round-robin from its current
// position) that still has a non-empty queue, or -1 if none remains.
// Candidate models whose queue is currently empty but which still have
// outstanding tiles are skipped — they are not done being active yet,
// they are merely stalled (see GetTile).
func (t *TimeMultiplex) advance() {
	if len(t.order) == 0 {
		t.current = -1
		return
	}

	for i := 1; i <= len(t.order); i++ {
		idx := (t.current + i) % len(t.order)
		if len(t.queues[t.order[idx]]) > 0 {
			t.current = idx
			return
		}
	}

	t.current = -1
}

// GetTile returns the next tile of the currently active model, ignoring
// coreID (every core shares the one active model). The active model
// only relinquishes its turn once its queue is empty AND every tile
// already issued to it has been reported finished (S6: no cycle may
// have two models' tiles in flight at once); until then GetTile returns
// the sentinel every call, stalling every core rather than dipping into
// the next model's queue.
func (t *TimeMultiplex) GetTile(coreID int) *tile.Tile {
	if t.current == -1 {
		return sentinel()
	}

	model := t.order[t.current]
	q := t.queues[model]

	for len(q) > 0 {
		front := q[0]

		tl, ok := popPending(front)
		if !ok {
			q = q[1:]
			continue
		}

		if len(front.pending) == 0 {
			q = q[1:]
		}

		t.queues[model] = q
		t.outstanding[model]++

		return tl
	}

	t.queues[model] = q

	if t.outstanding[model] == 0 {
		t.advance()

		if t.current != -1 {
			return t.GetTile(coreID)
		}
	}

	return sentinel()
}

// IsAccumTile reports whether the active model's next tile requires
// accumulator chaining.
func (t *TimeMultiplex) IsAccumTile(_ int, ahead int) bool {
	if ahead != 0 || t.current == -1 {
		return false
	}

	q := t.queues[t.order[t.current]]
	if len(q) == 0 {
		return false
	}

	lw := q[0]
	if len(lw.pending) == 0 {
		return false
	}

	return lw.pending[0].Accumulate
}
