package graph

import (
	"github.com/go-accel/npusim/mapping"
	"github.com/go-accel/npusim/tile"
)

// Kind is the recognized operator-type variant (spec.md §9's "Operator
// polymorphism": a tagged variant over kinds sharing one capability
// set, rather than a runtime inheritance chain).
type Kind int

const (
	// Unknown marks an operator type this engine does not model. A node
	// whose op_type resolves to Unknown is never added to the graph
	// (spec.md §6: "operator creation to return a null operation which
	// is silently skipped").
	Unknown Kind = iota
	Conv
	MatMul
	Gemm
	LayerNorm
	SkipLayerNormalization
	Add
	Relu
	Softmax
	Reshape
)

var kindByOpType = map[string]Kind{
	"Conv":                   Conv,
	"MatMul":                 MatMul,
	"Gemm":                   Gemm,
	"LayerNormalization":     LayerNorm,
	"SkipLayerNormalization": SkipLayerNormalization,
	"Add":                    Add,
	"Relu":                   Relu,
	"Softmax":                Softmax,
	"Reshape":                Reshape,
}

func kindFromOpType(opType string) (Kind, bool) {
	k, ok := kindByOpType[opType]
	return k, ok
}

// Operation is one node of the operator graph (spec.md §3, "Operation").
type Operation struct {
	ID     uint32
	Kind   Kind
	OpType string
	Name   string

	InputTensorIDs  []uint32
	OutputTensorIDs []uint32

	ParentIDs []uint32
	ChildIDs  []uint32

	Finished bool
	Tiles    []*tile.Tile
}

// checkExecutable reports whether every input tensor of op has been
// produced and op has not already finished (spec.md §3's executable
// invariant).
func (op *Operation) checkExecutable(m *Model) bool {
	if op.Finished {
		return false
	}

	for _, id := range op.InputTensorIDs {
		t, ok := m.tensors[id]
		if !ok || !t.Produced {
			return false
		}
	}

	return true
}

// initializeTiles populates op.Tiles by looking up the mapping table
// with op.OpType and the shape of op's first input tensor, matching
// original_source's ConvOS::initialize_tiles
// (operations/ConvOS.h), which resolves a Mapping from the table before
// generating per-tile instructions. Operations with no input tensor (a
// pure constant producer) or no mapping table entry get a single
// trivial tile, standing in for the detailed per-op instruction bodies
// that are out of scope here (spec.md §1: "the concrete systolic-array
// inner microarchitecture" is consumed only through the abstract Core
// contract, not modeled operator-by-operator).
func (op *Operation) initializeTiles(m *Model, table *mapping.Table) {
	var shape []int
	if len(op.InputTensorIDs) > 0 {
		if t, ok := m.tensors[op.InputTensorIDs[0]]; ok {
			shape = t.Shape
		}
	}

	entry, ok := table.Lookup(op.OpType, shape)
	if !ok {
		op.Tiles = []*tile.Tile{
			tile.New(m.Name, op.ID, 0, []tile.Instruction{{Kind: op.OpType, ParamA: 1}}, false),
		}

		return
	}

	tileCount := entry.TileCount
	if tileCount <= 0 {
		tileCount = 1
	}

	op.Tiles = make([]*tile.Tile, 0, tileCount)

	for i := 0; i < tileCount; i++ {
		// Every tile after the first on an operation chains the
		// accumulator of the one before it, standing in for the
		// detailed partial-sum/k-dimension-split tiling a real
		// systolic-array tile generator would compute.
		accumulate := i > 0
		instrs := buildInstructions(entry, op.OpType)
		op.Tiles = append(op.Tiles, tile.New(m.Name, op.ID, i, instrs, accumulate))
	}
}

func buildInstructions(entry mapping.Entry, opType string) []tile.Instruction {
	count := entry.InstrPerTile
	if count <= 0 {
		count = 1
	}

	instrs := make([]tile.Instruction, count)

	for i := 0; i < count; i++ {
		memAccess := entry.MemAccessEvery > 0 && (i+1)%entry.MemAccessEvery == 0
		instrs[i] = tile.Instruction{
			Kind:      opType,
			ParamA:    entry.ParamA,
			ParamB:    entry.ParamB,
			MemAccess: memAccess,
			Size:      entry.AccessSize,
		}
	}

	return instrs
}
