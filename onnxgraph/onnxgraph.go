// Package onnxgraph decodes the JSON operator-graph projection of
// SPEC_FULL.md §4.10 and translates it into a graph.Document, the same
// two-pass shape (parse graph.input/initializer/node, then canonicalize
// and tile) original_source/src/Model.cc's Model::initialize_model
// performs in a single constructor — here split across decode (this
// package) and graph.NewModel (spec.md §4.7).
package onnxgraph

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/go-accel/npusim/config"
	"github.com/go-accel/npusim/graph"
	"github.com/go-accel/npusim/mapping"
)

// dimJSON is one dimension of an input tensor: either a fixed value or a
// symbolic parameter name, resolved later against the model config's
// dynamic-axis map (spec.md §3, "Dynamic dimensions").
type dimJSON struct {
	Value int    `json:"value,omitempty"`
	Param string `json:"param,omitempty"`
}

type inputJSON struct {
	Name string    `json:"name"`
	Dims []dimJSON `json:"dims"`
}

type initializerJSON struct {
	Name string `json:"name"`
	Dims []int  `json:"dims"`
}

type nodeJSON struct {
	OpType  string   `json:"op_type"`
	Name    string   `json:"name"`
	Inputs  []string `json:"inputs"`
	Outputs []string `json:"outputs"`
}

// GraphDocument is the on-disk JSON projection consumed by this engine
// in place of the out-of-scope ONNX protobuf wire format (spec.md §6).
type GraphDocument struct {
	Inputs       []inputJSON       `json:"inputs"`
	Initializers []initializerJSON `json:"initializers"`
	Nodes        []nodeJSON        `json:"nodes"`
}

// Decode parses a GraphDocument from r.
func Decode(r io.Reader) (*GraphDocument, error) {
	var doc GraphDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("onnxgraph: decode graph document: %w", err)
	}

	return &doc, nil
}

// DecodeFile opens path and decodes it as a GraphDocument.
func DecodeFile(path string) (*GraphDocument, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("onnxgraph: open graph document %s: %w", path, err)
	}
	defer f.Close()

	return Decode(f)
}

// ToModelDocument translates the JSON projection into the graph
// package's own Document shape, the only translation this package is
// responsible for — canonicalization, dynamic-axis resolution, and
// tiling all happen inside graph.NewModel (spec.md §4.7).
func (d *GraphDocument) ToModelDocument() graph.Document {
	out := graph.Document{
		Inputs:       make([]graph.InputSpec, 0, len(d.Inputs)),
		Initializers: make([]graph.InitializerSpec, 0, len(d.Initializers)),
		Nodes:        make([]graph.NodeSpec, 0, len(d.Nodes)),
	}

	for _, in := range d.Inputs {
		dims := make([]graph.DimSpec, 0, len(in.Dims))
		for _, dm := range in.Dims {
			dims = append(dims, graph.DimSpec{Value: dm.Value, Param: dm.Param})
		}

		out.Inputs = append(out.Inputs, graph.InputSpec{Name: in.Name, Dims: dims})
	}

	for _, in := range d.Initializers {
		out.Initializers = append(out.Initializers, graph.InitializerSpec{Name: in.Name, Dims: in.Dims})
	}

	for _, n := range d.Nodes {
		out.Nodes = append(out.Nodes, graph.NodeSpec{
			OpType:  n.OpType,
			Name:    n.Name,
			Inputs:  n.Inputs,
			Outputs: n.Outputs,
		})
	}

	return out
}

// LoadModelFile reads graphPath and builds a graph.Model from it, using
// modelCfg for request time, partition id, nr_atten, and dynamic-axis
// resolution, and precisionBits (from the simulator config) for tensor
// element width.
func LoadModelFile(name, graphPath string, modelCfg config.Model, precisionBits uint32, table *mapping.Table, ids *graph.IDAllocator) (*graph.Model, error) {
	doc, err := DecodeFile(graphPath)
	if err != nil {
		return nil, err
	}

	cfg := graph.Config{
		RequestTime:  modelCfg.RequestTime,
		PartitionID:  modelCfg.PartitionID,
		NrAtten:      modelCfg.NrAtten,
		DynamicAxes:  modelCfg.DynamicAxes,
		PrecisionBit: precisionBits,
	}

	return graph.NewModel(name, doc.ToModelDocument(), cfg, table, ids)
}
