// Package memory implements the abstract Memory contract of spec.md §4.3
// and two concrete DRAM models: Simple (address-striped, serialized per
// channel, unbounded queueing) and Detailed (a bounded, size-keyed
// latency model standing in for the out-of-scope Ramulator model).
package memory

import (
	"log"

	"github.com/go-accel/npusim/memaccess"
)

// Memory is the abstract per-channel DRAM contract.
type Memory interface {
	// IsFull reports whether channel ch can currently accept another
	// request without blocking.
	IsFull(ch int, req *memaccess.Access) bool
	// Push accepts a request into channel ch. The caller must only call
	// this when IsFull(ch, req) is false.
	Push(ch int, req *memaccess.Access)
	IsEmpty(ch int) bool
	Top(ch int) *memaccess.Access
	Pop(ch int)
	// Cycle advances the memory subsystem by one DRAM cycle.
	Cycle()
	// ChannelID decodes which channel a given access maps to.
	ChannelID(access *memaccess.Access) int
	// Running reports whether the subsystem has any work in flight.
	Running() bool
}

type pendingEntry struct {
	readyAt int64
	access  *memaccess.Access
}

// Simple is the address-striped DRAM model of original_source/src/Dram.cc:
// an unbounded per-channel waiting queue drains into an unbounded
// response queue after a fixed latency, serialized so that no two
// responses land in the same channel in the same cycle.
//
// Its IsFull always returns false and Running always returns false —
// this is the upstream implementation's own documented bug
// ("/* FIXME: Simple DRAM has bugs */"), preserved here deliberately
// rather than silently fixed (spec.md §9, open question (a)).
type Simple struct {
	channels       int
	latency        int64
	reqSize        uint32
	cycles         int64
	lastFinishTime int64

	waiting   [][]pendingEntry
	responses [][]*memaccess.Access
}

// NewSimple creates a Simple memory model with the given channel count,
// fixed response latency (in DRAM cycles), and address-striping request
// size.
func NewSimple(channels int, latency int64, reqSize uint32) *Simple {
	if channels <= 0 {
		log.Panic("memory: channel count must be positive")
	}

	return &Simple{
		channels:  channels,
		latency:   latency,
		reqSize:   reqSize,
		waiting:   make([][]pendingEntry, channels),
		responses: make([][]*memaccess.Access, channels),
	}
}

// IsFull always returns false: see the Simple doc comment.
func (m *Simple) IsFull(_ int, _ *memaccess.Access) bool {
	return false
}

// Push accepts req into channel ch, scheduling its response no earlier
// than latency cycles from now and no earlier than the previous
// response's schedule time, serializing channel service exactly as
// original_source/src/Dram.cc's SimpleDram::push does.
func (m *Simple) Push(ch int, req *memaccess.Access) {
	readyAt := m.cycles + m.latency
	if m.lastFinishTime > readyAt {
		readyAt = m.lastFinishTime
	}

	m.lastFinishTime = readyAt
	req.MarkResponse()
	m.waiting[ch] = append(m.waiting[ch], pendingEntry{readyAt: readyAt, access: req})
}

// IsEmpty reports whether channel ch's response queue has anything ready
// to pop.
func (m *Simple) IsEmpty(ch int) bool {
	return len(m.responses[ch]) == 0
}

// Top returns, without removing, the next response on channel ch.
func (m *Simple) Top(ch int) *memaccess.Access {
	if m.IsEmpty(ch) {
		log.Panic("memory: Top called on empty channel")
	}

	return m.responses[ch][0]
}

// Pop removes the next response on channel ch.
func (m *Simple) Pop(ch int) {
	if m.IsEmpty(ch) {
		log.Panic("memory: Pop called on empty channel")
	}

	m.responses[ch] = m.responses[ch][1:]
}

// Cycle advances DRAM time by one cycle, moving any waiting entry whose
// ready time has arrived into the response queue.
func (m *Simple) Cycle() {
	for ch := 0; ch < m.channels; ch++ {
		if len(m.waiting[ch]) > 0 && m.waiting[ch][0].readyAt <= m.cycles {
			m.responses[ch] = append(m.responses[ch], m.waiting[ch][0].access)
			m.waiting[ch] = m.waiting[ch][1:]
		}
	}

	m.cycles++
}

// ChannelID decodes the channel from the address by the striping formula
// address / reqSize % channels (original_source/src/Dram.cc's
// get_channel_id).
func (m *Simple) ChannelID(access *memaccess.Access) int {
	return int((access.Address / uint64(m.reqSize)) % uint64(m.channels))
}

// Running always returns false: see the Simple doc comment.
func (m *Simple) Running() bool {
	return false
}

// Detailed is a bounded DRAM model keyed by request size, used when the
// config asks for backpressure-bearing behavior that the out-of-scope
// Ramulator timing model would otherwise provide.
type Detailed struct {
	channels  int
	capacity  int
	latencies map[uint32]int64 // byte size -> latency in DRAM cycles
	reqSize   uint32
	cycles    int64

	inflight  [][]pendingEntry
	responses [][]*memaccess.Access
}

// NewDetailed creates a Detailed memory model. latencies maps a request
// byte size to its service latency in DRAM cycles; a size with no entry
// falls back to defaultLatency. capacity bounds the number of
// outstanding (accepted but not yet responded) requests per channel.
func NewDetailed(channels, capacity int, reqSize uint32, latencies map[uint32]int64, defaultLatency int64) *Detailed {
	if channels <= 0 {
		log.Panic("memory: channel count must be positive")
	}

	if capacity <= 0 {
		log.Panic("memory: capacity must be positive")
	}

	merged := make(map[uint32]int64, len(latencies)+1)
	for size, lat := range latencies {
		merged[size] = lat
	}

	if _, ok := merged[0]; !ok {
		merged[0] = defaultLatency
	}

	return &Detailed{
		channels:  channels,
		capacity:  capacity,
		latencies: merged,
		reqSize:   reqSize,
		inflight:  make([][]pendingEntry, channels),
		responses: make([][]*memaccess.Access, channels),
	}
}

func (m *Detailed) latencyFor(size uint32) int64 {
	if lat, ok := m.latencies[size]; ok {
		return lat
	}

	return m.latencies[0]
}

// IsFull reports whether channel ch already has capacity outstanding
// requests.
func (m *Detailed) IsFull(ch int, _ *memaccess.Access) bool {
	return len(m.inflight[ch]) >= m.capacity
}

// Push accepts req into channel ch. The caller must check IsFull first;
// pushing past capacity is a programming error.
func (m *Detailed) Push(ch int, req *memaccess.Access) {
	if m.IsFull(ch, req) {
		log.Panic("memory: Push called while channel is full")
	}

	readyAt := m.cycles + m.latencyFor(req.Size)
	req.MarkResponse()
	m.inflight[ch] = append(m.inflight[ch], pendingEntry{readyAt: readyAt, access: req})
}

// IsEmpty reports whether channel ch has a response ready to pop.
func (m *Detailed) IsEmpty(ch int) bool {
	return len(m.responses[ch]) == 0
}

// Top returns, without removing, the next response on channel ch.
func (m *Detailed) Top(ch int) *memaccess.Access {
	if m.IsEmpty(ch) {
		log.Panic("memory: Top called on empty channel")
	}

	return m.responses[ch][0]
}

// Pop removes the next response on channel ch. The request's slot of that
// channel's outstanding capacity was already freed when Cycle moved it
// into the response queue.
func (m *Detailed) Pop(ch int) {
	if m.IsEmpty(ch) {
		log.Panic("memory: Pop called on empty channel")
	}

	resp := m.responses[ch][0]
	m.responses[ch] = m.responses[ch][1:]

	for i, entry := range m.inflight[ch] {
		if entry.access == resp {
			m.inflight[ch] = append(m.inflight[ch][:i], m.inflight[ch][i+1:]...)
			break
		}
	}
}

// Cycle advances DRAM time by one cycle. Requests may complete
// out of submission order if later entries have a shorter latency.
func (m *Detailed) Cycle() {
	m.cycles++

	for ch := 0; ch < m.channels; ch++ {
		var remaining []pendingEntry

		for _, entry := range m.inflight[ch] {
			if entry.readyAt <= m.cycles {
				m.responses[ch] = append(m.responses[ch], entry.access)
			} else {
				remaining = append(remaining, entry)
			}
		}

		m.inflight[ch] = remaining
	}
}

// ChannelID decodes the channel from the address, same striping formula
// as Simple.
func (m *Detailed) ChannelID(access *memaccess.Access) int {
	return int((access.Address / uint64(m.reqSize)) % uint64(m.channels))
}

// Running reports whether any channel has outstanding requests.
func (m *Detailed) Running() bool {
	for ch := 0; ch < m.channels; ch++ {
		if len(m.inflight[ch]) > 0 || len(m.responses[ch]) > 0 {
			return true
		}
	}

	return false
}
