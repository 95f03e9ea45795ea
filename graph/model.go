// Package graph implements the operator-graph data model of spec.md §3
// and §4.7: Tensor, Operation (a tagged variant over operator kinds),
// and Model (the DAG, its ready-queue, and tile generation), grounded
// on original_source/src/Model.cc's Model::initialize_model.
package graph

import (
	"fmt"

	"github.com/go-accel/npusim/mapping"
)

// rootProducerID is the sentinel producer id for tensors that are model
// inputs or initializers rather than an operation's output, matching
// original_source's _root_node_id.
const rootProducerID = 0

// DimSpec is one dimension of an input tensor's declared shape: either a
// fixed Value, or a symbolic Param to be resolved against the model
// config's dynamic-axis map.
type DimSpec struct {
	Value int
	Param string
}

// InputSpec is one model-input tensor.
type InputSpec struct {
	Name string
	Dims []DimSpec
}

// InitializerSpec is one model-initializer (weight) tensor.
type InitializerSpec struct {
	Name string
	Dims []int
}

// NodeSpec is one operator-graph node.
type NodeSpec struct {
	OpType  string
	Name    string
	Inputs  []string
	Outputs []string
}

// Document is the graph projection a Model is built from (spec.md §6:
// "only graph.input, graph.initializer, and graph.node are used").
type Document struct {
	Inputs       []InputSpec
	Initializers []InitializerSpec
	Nodes        []NodeSpec
}

// Config is the per-model config of spec.md §6.
type Config struct {
	RequestTime  float64 // seconds
	PartitionID  *uint32
	NrAtten      *int
	DynamicAxes  map[string]int
	PrecisionBit uint32
}

// Model is the operator-graph DAG plus its ready-queue and lifecycle
// state (spec.md §3, "Model").
type Model struct {
	Name         string
	RequestTime  int64 // picoseconds
	StartTime    int64
	PartitionID  uint32
	HasPartition bool

	started bool

	tensors        map[uint32]*Tensor
	tensorIDByName map[string]uint32

	operations     map[uint32]*Operation
	operationOrder []uint32
	ready          []uint32

	ids *IDAllocator
}

// NewModel builds a Model from doc, canonicalizing input tensor shapes
// (spec.md §4.7), applying nr_atten truncation (spec.md §6), computing
// the initial ready-queue, and generating every operation's tiles
// (spec.md §4.7), exactly in the order original_source's
// Model::initialize_model performs these passes. ids allocates tensor
// and operation ids shared across every model in the run (see
// IDAllocator).
func NewModel(name string, doc Document, cfg Config, table *mapping.Table, ids *IDAllocator) (*Model, error) {
	m := &Model{
		Name:           name,
		RequestTime:    int64(cfg.RequestTime * 1e12), // seconds -> picoseconds (spec.md §6)
		tensors:        make(map[uint32]*Tensor),
		tensorIDByName: make(map[string]uint32),
		operations:     make(map[uint32]*Operation),
		ids:            ids,
	}

	if cfg.PartitionID != nil {
		m.PartitionID = *cfg.PartitionID
		m.HasPartition = true
	}

	if err := m.addInputs(doc.Inputs, cfg); err != nil {
		return nil, err
	}

	m.addInitializers(doc.Initializers, cfg.PrecisionBit)
	m.addNodes(doc.Nodes, cfg)
	m.buildInitialReadyQueue()
	m.initializeAllTiles(table)

	return m, nil
}

func (m *Model) addInputs(inputs []InputSpec, cfg Config) error {
	for _, in := range inputs {
		dims := make([]int, 0, len(in.Dims))

		for _, d := range in.Dims {
			val := d.Value

			if d.Value == 0 && d.Param != "" {
				resolved, ok := cfg.DynamicAxes[d.Param]
				if !ok {
					return fmt.Errorf("graph: input %q: unresolved dynamic axis %q", in.Name, d.Param)
				}

				val = resolved
			}

			dims = append(dims, val)
		}

		// NCHW to NHWC: only when there is exactly one model input and
		// its last two dimensions are equal (original_source checks
		// input.size()==1 && dims[2]==dims[3], not a literal "middle
		// two" — followed here verbatim over the distilled spec wording).
		if len(inputs) == 1 && len(dims) == 4 && dims[2] == dims[3] {
			channel := dims[1]
			dims = append(dims[:1], dims[2:]...)
			dims = append(dims, channel)
		}

		id := m.ids.Next()

		t := &Tensor{
			ID:          id,
			Name:        in.Name,
			Shape:       dims,
			ElementBits: cfg.PrecisionBit,
			ProducerID:  rootProducerID,
			Produced:    true,
		}
		m.tensors[id] = t
		m.tensorIDByName[in.Name] = id
	}

	return nil
}

func (m *Model) addInitializers(initializers []InitializerSpec, precisionBit uint32) {
	for _, in := range initializers {
		id := m.ids.Next()

		t := &Tensor{
			ID:          id,
			Name:        in.Name,
			Shape:       in.Dims,
			ElementBits: precisionBit,
			ProducerID:  rootProducerID,
			Produced:    true,
		}
		m.tensors[id] = t
		m.tensorIDByName[in.Name] = id
	}
}

func (m *Model) addNodes(nodes []NodeSpec, cfg Config) {
	nrSkip := 0

	for _, n := range nodes {
		kind, ok := kindFromOpType(n.OpType)
		if !ok {
			continue // unrecognized op type: operation creation silently skipped (spec.md §6)
		}

		opID := m.ids.Next()

		op := &Operation{ID: opID, Kind: kind, OpType: n.OpType, Name: n.Name}

		for _, inName := range n.Inputs {
			tid, ok := m.tensorIDByName[inName]
			if !ok {
				continue
			}

			op.InputTensorIDs = append(op.InputTensorIDs, tid)

			if producerID := m.tensors[tid].ProducerID; producerID != rootProducerID {
				op.ParentIDs = append(op.ParentIDs, producerID)
				if parent, ok := m.operations[producerID]; ok {
					parent.ChildIDs = append(parent.ChildIDs, opID)
				}
			}
		}

		for _, outName := range n.Outputs {
			tid := m.ids.Next()

			m.tensors[tid] = &Tensor{ID: tid, Name: outName, ProducerID: opID}
			m.tensorIDByName[outName] = tid
			op.OutputTensorIDs = append(op.OutputTensorIDs, tid)
		}

		m.operations[opID] = op
		m.operationOrder = append(m.operationOrder, opID)

		if n.OpType == "SkipLayerNormalization" {
			nrSkip++

			if cfg.NrAtten != nil && *cfg.NrAtten >= 0 && nrSkip >= *cfg.NrAtten*2 {
				op.OutputTensorIDs = nil
				break
			}
		}
	}
}

func (m *Model) buildInitialReadyQueue() {
	for _, id := range m.operationOrder {
		if m.operations[id].checkExecutable(m) {
			m.ready = append(m.ready, id)
		}
	}
}

func (m *Model) initializeAllTiles(table *mapping.Table) {
	for _, id := range m.operationOrder {
		m.operations[id].initializeTiles(m, table)
	}
}

func (m *Model) checkExistInReady(id uint32) bool {
	for _, r := range m.ready {
		if r == id {
			return true
		}
	}

	return false
}

// FinishLayer marks operation id finished, marks its output tensors
// produced, and re-evaluates its children for readiness (spec.md §4.7,
// Model::set_layer_finish).
func (m *Model) FinishLayer(id uint32) {
	op, ok := m.operations[id]
	if !ok {
		return
	}

	op.Finished = true

	for _, outID := range op.OutputTensorIDs {
		if t, ok := m.tensors[outID]; ok {
			t.Produced = true
		}
	}

	for _, childID := range op.ChildIDs {
		child := m.operations[childID]
		if child.checkExecutable(m) && !m.checkExistInReady(childID) {
			m.ready = append(m.ready, childID)
		}
	}
}

// ExecutableCount returns the number of operations currently in the
// ready-queue.
func (m *Model) ExecutableCount() int {
	return len(m.ready)
}

// NextExecutable pops and returns the next ready operation, or ok=false
// if the ready-queue is empty (Model::get_executable_tile).
func (m *Model) NextExecutable() (op *Operation, ok bool) {
	if len(m.ready) == 0 {
		return nil, false
	}

	op = m.operations[m.ready[0]]
	m.ready = m.ready[1:]

	return op, true
}

// Operation looks up an operation by id.
func (m *Model) Operation(id uint32) (*Operation, bool) {
	op, ok := m.operations[id]
	return op, ok
}

// TensorByName looks up a tensor by its ONNX name.
func (m *Model) TensorByName(name string) (*Tensor, bool) {
	id, ok := m.tensorIDByName[name]
	if !ok {
		return nil, false
	}

	return m.tensors[id], true
}

// UpdateStartTime records the simulated time at which this model first
// ran, once.
func (m *Model) UpdateStartTime(t int64) {
	if !m.started {
		m.StartTime = t
		m.started = true
	}
}

// Finished reports whether every operation in the model has finished
// (Model::check_finish).
func (m *Model) Finished() bool {
	for _, id := range m.operationOrder {
		if !m.operations[id].Finished {
			return false
		}
	}

	return true
}
