// Package interconnect implements the abstract Interconnect contract of
// spec.md §4.4 and two concrete routers: Simple (zero additional
// latency, capacity-bounded per-source injection FIFOs) and Routed (adds
// a fixed hop latency, standing in for a detailed network-on-chip
// model).
//
// Endpoints are numbered 0..N-1 for cores and N..N+M-1 for memory
// channels, per spec.md §4.4. is_full is keyed by the *source* endpoint,
// not the destination: it reports whether the interconnect can still
// accept another packet injected from src, independent of which
// destination it is ultimately routed to (spec.md §4.4: "is_full(src,
// access)").
package interconnect

import (
	"log"

	"github.com/go-accel/npusim/memaccess"
)

// Interconnect is the abstract contract shared by all interconnect
// implementations.
type Interconnect interface {
	IsFull(src int, access *memaccess.Access) bool
	Push(src, dst int, access *memaccess.Access)
	IsEmpty(dst int) bool
	Top(dst int) *memaccess.Access
	Pop(dst int)
	Cycle()
	Running() bool
}

type routed struct {
	dst    int
	access *memaccess.Access
}

// Simple is a zero-latency interconnect: a packet injected from src on
// cycle c is visible at its destination on cycle c+1, matching akita's
// DirectConnection (sim/directconnection.go), whose per-endpoint buffer
// and CanSend-style backpressure this models. Backpressure is a
// capacity-bounded injection FIFO per source endpoint.
type Simple struct {
	capacity  int
	injection [][]routed            // indexed by source endpoint
	queues    [][]*memaccess.Access // indexed by destination endpoint
}

// NewSimple creates a Simple interconnect with numEndpoints source/
// destination slots and the given per-source injection capacity.
func NewSimple(numEndpoints, capacity int) *Simple {
	return &Simple{
		capacity:  capacity,
		injection: make([][]routed, numEndpoints),
		queues:    make([][]*memaccess.Access, numEndpoints),
	}
}

// IsFull reports whether src's injection buffer is at capacity.
func (ic *Simple) IsFull(src int, _ *memaccess.Access) bool {
	return len(ic.injection[src]) >= ic.capacity
}

// Push injects access from src, to be delivered to dst on the next
// Cycle.
func (ic *Simple) Push(src, dst int, access *memaccess.Access) {
	ic.injection[src] = append(ic.injection[src], routed{dst: dst, access: access})
}

// IsEmpty reports whether dst's delivered queue has anything ready.
func (ic *Simple) IsEmpty(dst int) bool {
	return len(ic.queues[dst]) == 0
}

// Top returns, without removing, the next access ready at dst.
func (ic *Simple) Top(dst int) *memaccess.Access {
	if ic.IsEmpty(dst) {
		log.Panic("interconnect: Top called on empty endpoint")
	}

	return ic.queues[dst][0]
}

// Pop removes the next access ready at dst.
func (ic *Simple) Pop(dst int) {
	if ic.IsEmpty(dst) {
		log.Panic("interconnect: Pop called on empty endpoint")
	}

	ic.queues[dst] = ic.queues[dst][1:]
}

// Cycle moves everything injected last cycle into its destination's
// visible queue and drains the injection buffers.
func (ic *Simple) Cycle() {
	for src, pkts := range ic.injection {
		for _, p := range pkts {
			ic.queues[p.dst] = append(ic.queues[p.dst], p.access)
		}

		ic.injection[src] = nil
	}
}

// Running reports whether any packet is queued or in flight.
func (ic *Simple) Running() bool {
	for _, q := range ic.queues {
		if len(q) > 0 {
			return true
		}
	}

	for _, q := range ic.injection {
		if len(q) > 0 {
			return true
		}
	}

	return false
}

type routedEntry struct {
	readyAt uint64
	dst     int
	access  *memaccess.Access
}

// Routed is an interconnect with a fixed per-hop latency applied
// uniformly between any two endpoints, modeling a routed
// network-on-chip at a coarse grain (no contention modeling beyond the
// capacity-bounded injection queues).
type Routed struct {
	capacity int
	latency  uint64
	cycles   uint64

	injection [][]routedEntry // indexed by source endpoint, awaiting hop latency
	queues    [][]*memaccess.Access
}

// NewRouted creates a Routed interconnect with the given per-source
// injection capacity and fixed hop latency in interconnect cycles.
func NewRouted(numEndpoints, capacity int, latency uint64) *Routed {
	return &Routed{
		capacity:  capacity,
		latency:   latency,
		injection: make([][]routedEntry, numEndpoints),
		queues:    make([][]*memaccess.Access, numEndpoints),
	}
}

// IsFull reports whether src's injection buffer is at capacity.
func (ic *Routed) IsFull(src int, _ *memaccess.Access) bool {
	return len(ic.injection[src]) >= ic.capacity
}

// Push injects access from src, to arrive at dst after the fixed hop
// latency.
func (ic *Routed) Push(src, dst int, access *memaccess.Access) {
	ic.injection[src] = append(ic.injection[src], routedEntry{
		readyAt: ic.cycles + ic.latency,
		dst:     dst,
		access:  access,
	})
}

// IsEmpty reports whether dst has a delivered packet ready to pop.
func (ic *Routed) IsEmpty(dst int) bool {
	return len(ic.queues[dst]) == 0
}

// Top returns, without removing, the next delivered packet at dst.
func (ic *Routed) Top(dst int) *memaccess.Access {
	if ic.IsEmpty(dst) {
		log.Panic("interconnect: Top called on empty endpoint")
	}

	return ic.queues[dst][0]
}

// Pop removes the next delivered packet at dst.
func (ic *Routed) Pop(dst int) {
	if ic.IsEmpty(dst) {
		log.Panic("interconnect: Pop called on empty endpoint")
	}

	ic.queues[dst] = ic.queues[dst][1:]
}

// Cycle advances in-flight packets, delivering any whose hop latency has
// elapsed into their destination's visible queue.
func (ic *Routed) Cycle() {
	ic.cycles++

	for src := range ic.injection {
		var remaining []routedEntry

		for _, e := range ic.injection[src] {
			if e.readyAt <= ic.cycles {
				ic.queues[e.dst] = append(ic.queues[e.dst], e.access)
			} else {
				remaining = append(remaining, e)
			}
		}

		ic.injection[src] = remaining
	}
}

// Running reports whether any packet is in flight or waiting to be
// popped.
func (ic *Routed) Running() bool {
	for src := range ic.injection {
		if len(ic.injection[src]) > 0 {
			return true
		}
	}

	for dst := range ic.queues {
		if len(ic.queues[dst]) > 0 {
			return true
		}
	}

	return false
}
