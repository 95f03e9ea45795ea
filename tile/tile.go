// Package tile defines the unit of work that the scheduler hands to a
// core: a fragment of an operator's computation after tiling
// (spec.md §3, "Tile").
package tile

// Status is a Tile's lifecycle state.
type Status int

const (
	// Initialized is the state of a tile that has been created but not
	// yet issued to a core.
	Initialized Status = iota
	// Running is the state of a tile that a core has issued and has not
	// yet finished executing.
	Running
	// Finish is the state of a tile whose core has completed it.
	Finish
)

func (s Status) String() string {
	switch s {
	case Initialized:
		return "INITIALIZED"
	case Running:
		return "RUNNING"
	case Finish:
		return "FINISH"
	default:
		return "UNKNOWN"
	}
}

// Instruction is one opaque micro-instruction within a tile. The
// scheduler and driver never inspect its contents; only the core that
// executes the tile interprets it.
type Instruction struct {
	Kind      string
	ParamA    int64
	ParamB    int64
	MemAccess bool // whether executing this instruction emits a memory access
	Write     bool
	Address   uint64
	Size      uint32
}

// Tile is the smallest unit of work issued to a core.
type Tile struct {
	ModelID      string
	LayerID      uint32
	Index        int
	Instructions []Instruction
	Status       Status
	Accumulate   bool // requires the accumulator state of a preceding tile on the same core

	nextInstr int
}

// New creates a tile in the Initialized state.
func New(modelID string, layerID uint32, index int, instrs []Instruction, accumulate bool) *Tile {
	return &Tile{
		ModelID:      modelID,
		LayerID:      layerID,
		Index:        index,
		Instructions: instrs,
		Status:       Initialized,
		Accumulate:   accumulate,
	}
}

// Sentinel returns a zero-value tile whose Status is never Initialized,
// used by callers that must return "no tile available" without a nil
// pointer (spec.md §4.6: "a sentinel whose status is not INITIALIZED").
func Sentinel() *Tile {
	return &Tile{Status: Finish}
}

// NextInstruction returns the next micro-instruction to execute and
// advances the cursor, or ok=false when the tile has no more
// instructions.
func (t *Tile) NextInstruction() (Instruction, bool) {
	if t.nextInstr >= len(t.Instructions) {
		return Instruction{}, false
	}

	instr := t.Instructions[t.nextInstr]
	t.nextInstr++

	return instr, true
}

// Done reports whether every instruction in the tile has been consumed.
func (t *Tile) Done() bool {
	return t.nextInstr >= len(t.Instructions)
}
