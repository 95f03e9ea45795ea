// Package core implements the abstract Core contract of spec.md §4.2 and
// two concrete systolic-array cores: SystolicOS (output-stationary) and
// SystolicWS (weight-stationary). Each holds at most one in-flight tile
// and steps its micro-instructions one at a time, matching the
// "Tick returns whether it made progress" idiom of
// datamoving/datamover.go's StreamingDataMover.Tick.
package core

import (
	"log"

	"github.com/go-accel/npusim/memaccess"
	"github.com/go-accel/npusim/tile"
)

// Kind selects the systolic dataflow a Core models, matching spec.md §6's
// core kind enum.
type Kind int

const (
	// SystolicOS is output-stationary: a tile's per-instruction cost does
	// not grow with its ParamB (the accumulation dimension is free,
	// already resident in the PE array).
	SystolicOS Kind = iota
	// SystolicWS is weight-stationary: a tile's per-instruction cost
	// grows with ParamB (each new weight column must be streamed in).
	SystolicWS
)

func (k Kind) String() string {
	switch k {
	case SystolicOS:
		return "SYSTOLIC_OS"
	case SystolicWS:
		return "SYSTOLIC_WS"
	default:
		return "UNKNOWN"
	}
}

// Core is the abstract contract of spec.md §4.2.
type Core interface {
	CanIssue(accum bool) bool
	Issue(t *tile.Tile)
	Cycle()
	PopFinishedTile() *tile.Tile
	HasMemoryRequest() bool
	TopMemoryRequest() *memaccess.Access
	PopMemoryRequest()
	PushMemoryResponse(resp *memaccess.Access)
	Running() bool
}

// Systolic is the shared implementation behind SystolicOS and
// SystolicWS; the two kinds differ only in instrCost.
type Systolic struct {
	id   int
	kind Kind

	current    *tile.Tile
	lastIssued *tile.Tile
	finished   *tile.Tile // most recently finished tile, returned once by PopFinishedTile

	outbound    []*memaccess.Access
	outstanding map[string]*memaccess.Access // requests sent, awaiting a matched response

	waitingOn string // id of the outstanding request blocking instruction progress, "" if none
	remaining int64  // cycles left for the current non-memory instruction
}

// NewSystolicOS creates an output-stationary core with the given
// endpoint/core id.
func NewSystolicOS(id int) *Systolic {
	return newSystolic(id, SystolicOS)
}

// NewSystolicWS creates a weight-stationary core with the given
// endpoint/core id.
func NewSystolicWS(id int) *Systolic {
	return newSystolic(id, SystolicWS)
}

func newSystolic(id int, kind Kind) *Systolic {
	return &Systolic{
		id:          id,
		kind:        kind,
		outstanding: make(map[string]*memaccess.Access),
	}
}

// CanIssue reports whether a new tile may be accepted. An accumulation
// tile is accepted only if it follows a prior issue on this core whose
// accumulator it may chain from.
func (c *Systolic) CanIssue(accum bool) bool {
	if c.current != nil {
		return false
	}

	if accum && c.lastIssued == nil {
		return false
	}

	return true
}

// Issue accepts t, transitioning it to Running. Precondition:
// CanIssue(t.Accumulate) and t.Status == Initialized.
func (c *Systolic) Issue(t *tile.Tile) {
	if !c.CanIssue(t.Accumulate) {
		log.Panic("core: Issue called while CanIssue is false")
	}

	if t.Status != tile.Initialized {
		log.Panic("core: Issue called on a tile that is not Initialized")
	}

	t.Status = tile.Running
	c.current = t
	c.lastIssued = t
}

// instrCost computes the cycle cost of a non-memory instruction.
// SystolicWS's weight-stationary dataflow charges for streaming in each
// new weight column (ParamB); SystolicOS's output-stationary dataflow
// does not.
func (c *Systolic) instrCost(instr tile.Instruction) int64 {
	cost := instr.ParamA
	if cost <= 0 {
		cost = 1
	}

	if c.kind == SystolicWS && instr.ParamB > 0 {
		cost += instr.ParamB
	}

	return cost
}

// Cycle advances the core by one cycle: it either counts down the
// current instruction's remaining cost, waits on an outstanding memory
// response, fetches the next instruction, or retires the tile.
func (c *Systolic) Cycle() {
	if c.current == nil {
		return
	}

	if c.waitingOn != "" {
		return
	}

	if c.remaining > 0 {
		c.remaining--
		return
	}

	instr, ok := c.current.NextInstruction()
	if !ok {
		c.current.Status = tile.Finish
		c.finished = c.current
		c.current = nil

		return
	}

	if instr.MemAccess {
		req := memaccess.NewRequest().
			WithWrite(instr.Write).
			WithAddress(instr.Address).
			WithSize(instr.Size).
			WithCoreID(c.id).
			WithTile(c.current.Index, c.current.LayerID).
			Build()

		c.outbound = append(c.outbound, req)
		c.outstanding[req.ID()] = req
		c.waitingOn = req.ID()

		return
	}

	c.remaining = c.instrCost(instr) - 1
}

// PopFinishedTile returns the most recently finished tile, or a sentinel
// whose status is not Finish if none (spec.md §4.2). This is a distinct
// contract from the scheduler's get_tile sentinel (tile.Sentinel, status
// Finish, meaning "not Initialized") — the zero-value Tile defaults to
// Initialized, satisfying "not Finish" here. Each finished tile is
// returned at most once.
func (c *Systolic) PopFinishedTile() *tile.Tile {
	if c.finished == nil {
		return &tile.Tile{}
	}

	t := c.finished
	c.finished = nil

	return t
}

// HasMemoryRequest reports whether an outbound memory request is queued.
func (c *Systolic) HasMemoryRequest() bool {
	return len(c.outbound) > 0
}

// TopMemoryRequest returns, without removing, the next outbound request.
func (c *Systolic) TopMemoryRequest() *memaccess.Access {
	if !c.HasMemoryRequest() {
		log.Panic("core: TopMemoryRequest called with no outbound request")
	}

	return c.outbound[0]
}

// PopMemoryRequest removes the next outbound request.
func (c *Systolic) PopMemoryRequest() {
	if !c.HasMemoryRequest() {
		log.Panic("core: PopMemoryRequest called with no outbound request")
	}

	c.outbound = c.outbound[1:]
}

// PushMemoryResponse delivers resp. The core matches it against its
// outstanding requests by id; an unmatched response is a fatal error
// (spec.md §4.2).
func (c *Systolic) PushMemoryResponse(resp *memaccess.Access) {
	req, ok := c.outstanding[resp.ID()]
	if !ok {
		log.Panic("core: unmatched memory response")
	}

	delete(c.outstanding, resp.ID())

	if c.waitingOn == req.ID() {
		c.waitingOn = ""
	}
}

// Running reports whether any work is in flight: a tile executing, a
// request outbound, or a request outstanding.
func (c *Systolic) Running() bool {
	return c.current != nil || len(c.outbound) > 0 || len(c.outstanding) > 0
}
