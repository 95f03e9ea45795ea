// Package clock implements the simulator's multi-domain clock: three
// asynchronous domains (core, interconnect, DRAM) advanced on a
// least-time-first basis, as described in spec.md §4.1.
package clock

import "log"

// Freq is a clock frequency in MHz.
type Freq float64

// Period returns the domain period in picoseconds for this frequency.
func (f Freq) Period() int64 {
	if f <= 0 {
		log.Panic("frequency must be positive")
	}

	// 1 MHz = 1e6 cycles/sec = 1e6 cycles / 1e12 ps, so period = 1e6/f ps.
	return int64(1e6 / float64(f))
}

// Domain identifies one of the three asynchronous clock domains.
type Domain int

const (
	// Core is the compute-core clock domain.
	Core Domain = iota
	// Interconnect is the on-chip network clock domain.
	Interconnect
	// DRAM is the memory clock domain.
	DRAM

	numDomains = 3
)

func (d Domain) String() string {
	switch d {
	case Core:
		return "core"
	case Interconnect:
		return "interconnect"
	case DRAM:
		return "dram"
	default:
		return "unknown"
	}
}

// Clock advances the three domains by the least-time-first rule:
// every step, the domain(s) whose accumulated time equals the minimum
// accumulated time across all domains tick and then advance by their
// own period. At least one domain ticks every step.
type Clock struct {
	period [numDomains]int64
	time   [numDomains]int64
	cycles [numDomains]uint64
}

// New creates a Clock with the given per-domain frequencies.
func New(coreFreq, icntFreq, dramFreq Freq) *Clock {
	c := &Clock{}
	c.period[Core] = coreFreq.Period()
	c.period[Interconnect] = icntFreq.Period()
	c.period[DRAM] = dramFreq.Period()

	return c
}

// Step computes which domains tick this step and advances their
// accumulated time. It returns the set of domains that ticked.
//
// This mirrors original_source/src/Simulator.cc's set_cycle_mask: the
// comparison against the minimum is "<=", not "==", which is exactly what
// makes every domain at the minimum tick in the same step, not just one
// of them.
func (c *Clock) Step() [numDomains]bool {
	minTime := c.time[Core]
	if c.time[Interconnect] < minTime {
		minTime = c.time[Interconnect]
	}

	if c.time[DRAM] < minTime {
		minTime = c.time[DRAM]
	}

	var ticked [numDomains]bool

	for d := Domain(0); d < numDomains; d++ {
		if c.time[d] <= minTime {
			ticked[d] = true
			c.time[d] += c.period[d]
			c.cycles[d]++
		}
	}

	return ticked
}

// Ticked reports whether a particular domain is flagged in a Step result.
func Ticked(mask [numDomains]bool, d Domain) bool {
	return mask[d]
}

// Time returns the accumulated time of a domain, in picoseconds.
func (c *Clock) Time(d Domain) int64 {
	return c.time[d]
}

// Cycles returns the number of times a domain has ticked so far.
func (c *Clock) Cycles(d Domain) uint64 {
	return c.cycles[d]
}

// CoreTimeAtLeast reports whether the core domain's accumulated time has
// reached or passed t picoseconds. Used by the driver to decide whether a
// model's request time has arrived.
func (c *Clock) CoreTimeAtLeast(t int64) bool {
	return c.time[Core] >= t
}
