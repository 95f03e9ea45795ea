package scheduler

import (
	"github.com/go-accel/npusim/graph"
	"github.com/go-accel/npusim/tile"
)

// Simple is the global-FIFO policy: any core may pull any tile, no
// affinity (spec.md §4.6, "Simple policy").
type Simple struct {
	base
	queue []*layerWork
}

// NewSimple creates a Simple scheduler.
func NewSimple() *Simple {
	s := &Simple{}
	s.base = newBase(func(lw *layerWork) {
		s.queue = append(s.queue, lw)
	})

	return s
}

// ScheduleModel registers model.
func (s *Simple) ScheduleModel(model *graph.Model, priority int) {
	s.register(model, priority)
}

// FinishTile reports layerID's tile done on coreID (coreID is unused:
// Simple has no per-core affinity).
func (s *Simple) FinishTile(_ int, layerID uint32) {
	s.finishTile(layerID)
}

// Empty reports whether no tile is pending or outstanding.
func (s *Simple) Empty() bool {
	return s.empty()
}

// GetTile returns the next tile in global FIFO order, assignable to any
// core.
func (s *Simple) GetTile(_ int) *tile.Tile {
	for len(s.queue) > 0 {
		front := s.queue[0]

		t, ok := popPending(front)
		if !ok {
			s.queue = s.queue[1:]
			continue
		}

		if len(front.pending) == 0 {
			s.queue = s.queue[1:]
		}

		return t
	}

	return sentinel()
}

// IsAccumTile reports whether the next tile the global queue would hand
// out requires accumulator chaining. Only ahead == 0 is supported.
func (s *Simple) IsAccumTile(_ int, ahead int) bool {
	if ahead != 0 || len(s.queue) == 0 {
		return false
	}

	lw := s.queue[0]
	if len(lw.pending) == 0 {
		return false
	}

	return lw.pending[0].Accumulate
}
