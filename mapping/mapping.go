// Package mapping implements the Mapping table of spec.md §4.2/§4.7/§C10:
// configuration data mapping (operator kind, input shape) to the tiling
// parameters an operator's tile generator consumes. Loaded the same way
// sim/serialization.JSONCodec decodes its documents: a plain
// encoding/json.Decoder over an io.Reader.
package mapping

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// Entry is one row of the mapping table: the tiling parameters an
// operator's tile generator uses for a given (operator type, input
// shape) pair.
type Entry struct {
	OpType string `json:"op_type"`
	Shape  []int  `json:"shape"`

	TileCount      int    `json:"tile_count"`
	InstrPerTile   int    `json:"instr_per_tile"`
	ParamA         int64  `json:"param_a"`
	ParamB         int64  `json:"param_b"`
	MemAccessEvery int    `json:"mem_access_every"` // every Nth instruction performs a memory access; 0 disables
	AccessSize     uint32 `json:"access_size"`
}

// Entry carries no per-access address field: every tile instruction a
// generated operation produces (graph.Operation.initializeTiles) leaves
// memaccess.Access.Address at its zero value, so memory.ChannelID's
// striping formula (address/reqSize % channels) always resolves every
// access to channel 0. Real per-access addressing is out of scope here
// (spec.md §1 places the concrete tile generator's data layout out of
// scope); a mapping table that wants multi-channel traffic to actually
// stripe would need an address (or channel hint) field added here.

// Table is an in-memory mapping table keyed by operator type and a
// stringified input shape, mirroring original_source's MappingTable
// (looked up by ConvOS::initialize_tiles via operator type and input
// dims).
type Table struct {
	entries map[string]Entry
}

func key(opType string, shape []int) string {
	var b strings.Builder

	b.WriteString(opType)

	for _, d := range shape {
		fmt.Fprintf(&b, "|%d", d)
	}

	return b.String()
}

// New creates an empty mapping table.
func New() *Table {
	return &Table{entries: make(map[string]Entry)}
}

// Add inserts or overwrites an entry.
func (t *Table) Add(e Entry) {
	t.entries[key(e.OpType, e.Shape)] = e
}

// Lookup finds the entry for opType and the given input shape.
func (t *Table) Lookup(opType string, shape []int) (Entry, bool) {
	e, ok := t.entries[key(opType, shape)]
	return e, ok
}

// Load reads a mapping table from a JSON document: an array of Entry
// objects, each naming its own operator type and shape.
func Load(r io.Reader) (*Table, error) {
	var entries []Entry

	decoder := json.NewDecoder(r)
	if err := decoder.Decode(&entries); err != nil {
		return nil, fmt.Errorf("mapping: decode: %w", err)
	}

	table := New()
	for _, e := range entries {
		table.Add(e)
	}

	return table, nil
}

// LoadFile opens path and loads a mapping table from it. The caller
// supplies an already-resolved filesystem path (spec.md §9's "Global
// mutable state" note: never a bare $HOME lookup inside the engine).
func LoadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("mapping: open %s: %w", path, err)
	}
	defer f.Close()

	return Load(f)
}
