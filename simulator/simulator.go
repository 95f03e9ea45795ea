// Package simulator implements the top-level driver of spec.md §4.5:
// the model arrival heap and the per-cycle loop wiring clock, cores,
// interconnect, memory, and scheduler together. The cycle body is a
// direct translation of original_source/src/Simulator.cc's cycle(),
// preserving its exact sub-step order (arrivals, finish collection,
// issue, core tick, interconnect forwarding, interconnect tick, DRAM
// tick) per spec.md §5's ordering guarantee.
package simulator

import (
	"container/heap"

	"github.com/go-accel/npusim/clock"
	"github.com/go-accel/npusim/core"
	"github.com/go-accel/npusim/graph"
	"github.com/go-accel/npusim/interconnect"
	"github.com/go-accel/npusim/memory"
	"github.com/go-accel/npusim/scheduler"
	"github.com/go-accel/npusim/stats"
	"github.com/go-accel/npusim/tile"
)

// arrivalHeap is a container/heap min-heap over pending models, ordered
// by request time (original_source's CompareModel).
type arrivalHeap []*graph.Model

func (h arrivalHeap) Len() int            { return len(h) }
func (h arrivalHeap) Less(i, j int) bool  { return h[i].RequestTime < h[j].RequestTime }
func (h arrivalHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *arrivalHeap) Push(x interface{}) { *h = append(*h, x.(*graph.Model)) }

func (h *arrivalHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]

	return item
}

// Simulator owns every engine component exclusively (spec.md §3,
// "Ownership").
type Simulator struct {
	clk  *clock.Clock
	cores []core.Core
	icnt interconnect.Interconnect
	mem  memory.Memory
	sched scheduler.Scheduler

	numCores    int
	numChannels int

	arrivals   arrivalHeap
	liveModels []*graph.Model

	recorder *stats.Recorder

	coreBusyCycles map[int]uint64
	coreMemAccess  map[int]uint64
}

// New creates a Simulator. recorder may be nil to disable statistics.
func New(
	clk *clock.Clock,
	cores []core.Core,
	icnt interconnect.Interconnect,
	mem memory.Memory,
	sched scheduler.Scheduler,
	numChannels int,
	recorder *stats.Recorder,
) *Simulator {
	return &Simulator{
		clk:            clk,
		cores:          cores,
		icnt:           icnt,
		mem:            mem,
		sched:          sched,
		numCores:       len(cores),
		numChannels:    numChannels,
		recorder:       recorder,
		coreBusyCycles: make(map[int]uint64),
		coreMemAccess:  make(map[int]uint64),
	}
}

// RegisterModel enqueues m onto the arrival heap, to be handed to the
// scheduler once core-domain time reaches m.RequestTime.
func (s *Simulator) RegisterModel(m *graph.Model) {
	heap.Push(&s.arrivals, m)
}

// handleModelArrivals pops and schedules every model whose request time
// has arrived (original_source's Simulator::handle_model).
func (s *Simulator) handleModelArrivals() {
	for len(s.arrivals) > 0 && s.clk.CoreTimeAtLeast(s.arrivals[0].RequestTime) {
		m := heap.Pop(&s.arrivals).(*graph.Model)
		m.UpdateStartTime(s.clk.Time(clock.Core))
		s.liveModels = append(s.liveModels, m)
		s.sched.ScheduleModel(m, 1)
	}
}

// recordModelCompletions reports, to the stats recorder, every live
// model that finished since the last check.
func (s *Simulator) recordModelCompletions() {
	if s.recorder == nil {
		return
	}

	remaining := s.liveModels[:0]

	for _, m := range s.liveModels {
		if m.Finished() {
			s.recorder.RecordModelFinish(m.Name, m.StartTime, s.clk.Time(clock.Core))
			continue
		}

		remaining = append(remaining, m)
	}

	s.liveModels = remaining
}

// Run executes the cycle loop to completion and returns the final
// report (empty if no recorder was configured).
func (s *Simulator) Run() string {
	for s.running() {
		mask := s.clk.Step()

		if clock.Ticked(mask, clock.Core) {
			s.coreTick()
		}

		if clock.Ticked(mask, clock.Interconnect) {
			s.interconnectTick()
		}

		if clock.Ticked(mask, clock.DRAM) {
			s.mem.Cycle()
		}
	}

	if s.recorder == nil {
		return ""
	}

	return s.recorder.Flush()
}

func (s *Simulator) coreTick() {
	s.handleModelArrivals()

	for coreID, c := range s.cores {
		finished := c.PopFinishedTile()
		if finished.Status == tile.Finish {
			s.sched.FinishTile(coreID, finished.LayerID)

			if s.recorder != nil {
				busy := s.coreBusyCycles[coreID]
				mem := s.coreMemAccess[coreID]
				s.coreBusyCycles[coreID] = 0
				s.coreMemAccess[coreID] = 0
				s.recorder.RecordTileFinish(coreID, busy, mem)
			}
		}

		if !s.sched.Empty() {
			accum := s.sched.IsAccumTile(coreID, 0)
			if c.CanIssue(accum) {
				t := s.sched.GetTile(coreID)
				if t.Status == tile.Initialized {
					c.Issue(t)
				}
			}
		}

		// Sampled after Issue, so the cycle in which a core first accepts
		// a tile counts toward its busy_cycles.
		wasRunning := c.Running()

		c.Cycle()

		if wasRunning {
			s.coreBusyCycles[coreID]++
		}
	}

	s.recordModelCompletions()
}

func (s *Simulator) interconnectTick() {
	for coreID, c := range s.cores {
		if c.HasMemoryRequest() {
			req := c.TopMemoryRequest()

			if !s.icnt.IsFull(coreID, req) {
				dst := s.numCores + s.mem.ChannelID(req)
				s.icnt.Push(coreID, dst, req)
				c.PopMemoryRequest()
				s.coreMemAccess[coreID]++

				if s.recorder != nil {
					s.recorder.RecordForwarded()
				}
			} else if s.recorder != nil {
				s.recorder.RecordStalled()
			}
		}

		if !s.icnt.IsEmpty(coreID) {
			c.PushMemoryResponse(s.icnt.Top(coreID))
			s.icnt.Pop(coreID)
		}
	}

	for ch := 0; ch < s.numChannels; ch++ {
		endpoint := s.numCores + ch

		if !s.icnt.IsEmpty(endpoint) && !s.mem.IsFull(ch, s.icnt.Top(endpoint)) {
			s.mem.Push(ch, s.icnt.Top(endpoint))
			s.icnt.Pop(endpoint)

			if s.recorder != nil {
				s.recorder.RecordChannelRequest(ch)
			}
		}

		if !s.mem.IsEmpty(ch) && !s.icnt.IsFull(endpoint, s.mem.Top(ch)) {
			resp := s.mem.Top(ch)
			s.icnt.Push(endpoint, resp.CoreID, resp)
			s.mem.Pop(ch)

			if s.recorder != nil {
				s.recorder.RecordChannelResponse(ch)
			}
		}
	}

	s.icnt.Cycle()
}

// running reports whether any component still has work (original_source's
// Simulator::running).
func (s *Simulator) running() bool {
	if len(s.arrivals) > 0 {
		return true
	}

	for _, c := range s.cores {
		if c.Running() {
			return true
		}
	}

	if s.icnt.Running() {
		return true
	}

	if s.mem.Running() {
		return true
	}

	return !s.sched.Empty()
}
