// Package config loads the simulator and per-model JSON configuration
// documents of spec.md §6, resolving every filesystem path explicitly
// rather than through an environment-variable lookup at construction
// time (spec.md §9, "Global mutable state").
package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
)

// CoreKind mirrors spec.md §6's core kind enum.
type CoreKind string

// DramKind mirrors spec.md §6's DRAM kind enum.
type DramKind string

// IcntKind mirrors spec.md §6's interconnect kind enum.
type IcntKind string

// SchedulerKind mirrors spec.md §6's scheduler kind enum.
type SchedulerKind string

const (
	CoreSystolicOS CoreKind = "SYSTOLIC_OS"
	CoreSystolicWS CoreKind = "SYSTOLIC_WS"

	DramSimple   DramKind = "SIMPLE"
	DramDetailed DramKind = "DETAILED"

	IcntSimple IcntKind = "SIMPLE"
	IcntRouted IcntKind = "ROUTED"

	SchedulerSimple       SchedulerKind = "simple"
	SchedulerPartitionCPU SchedulerKind = "partition_cpu"
	SchedulerTimeMultiplex SchedulerKind = "time_multiplex"
	SchedulerSpatialSplit SchedulerKind = "spatial_split"
)

// Simulator is the top-level simulator configuration of spec.md §6.
type Simulator struct {
	NumCores    int `json:"num_cores"`
	NumChannels int `json:"dram_channels"`

	CoreFreqMHz float64 `json:"core_freq_mhz"`
	IcntFreqMHz float64 `json:"icnt_freq_mhz"`
	DramFreqMHz float64 `json:"dram_freq_mhz"`

	CoreKind      CoreKind      `json:"core_kind"`
	DramKind      DramKind      `json:"dram_kind"`
	IcntKind      IcntKind      `json:"icnt_kind"`
	SchedulerKind SchedulerKind `json:"scheduler_kind"`

	DramLatencyCycles int64  `json:"dram_latency_cycles"`
	DramRequestSize   uint32 `json:"dram_request_size"`
	DramCapacity      int    `json:"dram_capacity"`

	IcntCapacity      int    `json:"icnt_capacity"`
	IcntLatencyCycles uint64 `json:"icnt_latency_cycles"`

	PrecisionBits uint32 `json:"precision_bits"`

	// Partitions maps a partition id (decimal string, JSON object keys
	// are always strings) to the core indices assigned to it. Consumed
	// only by the partition_cpu scheduler.
	Partitions map[string][]int `json:"partitions,omitempty"`

	MappingTablePath string `json:"mapping_table_path"`
	DramConfigPath   string `json:"dram_config_path,omitempty"`
}

// PartitionCores resolves Partitions into the uint32-keyed map
// scheduler.NewDedicatedCPU expects.
func (s *Simulator) PartitionCores() (map[uint32][]int, error) {
	out := make(map[uint32][]int, len(s.Partitions))

	for key, cores := range s.Partitions {
		id, err := strconv.ParseUint(key, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("config: partition id %q is not a valid uint32: %w", key, err)
		}

		out[uint32(id)] = cores
	}

	return out, nil
}

// LoadSimulator parses a simulator config document from r.
func LoadSimulator(r io.Reader) (*Simulator, error) {
	var s Simulator
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("config: decode simulator config: %w", err)
	}

	if s.NumCores <= 0 {
		return nil, fmt.Errorf("config: num_cores must be positive")
	}

	if s.NumChannels <= 0 {
		return nil, fmt.Errorf("config: dram_channels must be positive")
	}

	return &s, nil
}

// LoadSimulatorFile opens path and parses it as a simulator config.
func LoadSimulatorFile(path string) (*Simulator, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open simulator config %s: %w", path, err)
	}
	defer f.Close()

	return LoadSimulator(f)
}

// Model is the per-model config of spec.md §6: request_time,
// partition_id, nr_atten, plus an open-ended set of dynamic-axis
// name -> positive-integer entries at the same JSON level. Those extra
// keys cannot be modeled as ordinary Go struct fields, so Model
// implements json.Unmarshaler to split recognized keys from the rest.
type Model struct {
	RequestTime float64
	PartitionID *uint32
	NrAtten     *int
	DynamicAxes map[string]int
}

var modelReservedKeys = map[string]bool{
	"request_time": true,
	"partition_id": true,
	"nr_atten":     true,
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *Model) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("config: decode model config: %w", err)
	}

	if v, ok := raw["request_time"]; ok {
		if err := json.Unmarshal(v, &m.RequestTime); err != nil {
			return fmt.Errorf("config: request_time: %w", err)
		}
	}

	if v, ok := raw["partition_id"]; ok {
		var id uint32
		if err := json.Unmarshal(v, &id); err != nil {
			return fmt.Errorf("config: partition_id: %w", err)
		}

		m.PartitionID = &id
	}

	if v, ok := raw["nr_atten"]; ok {
		var n int
		if err := json.Unmarshal(v, &n); err != nil {
			return fmt.Errorf("config: nr_atten: %w", err)
		}

		m.NrAtten = &n
	}

	for key, v := range raw {
		if modelReservedKeys[key] {
			continue
		}

		var axis int
		if err := json.Unmarshal(v, &axis); err != nil {
			return fmt.Errorf("config: dynamic axis %q must be an integer: %w", key, err)
		}

		if axis <= 0 {
			return fmt.Errorf("config: dynamic axis %q must be positive, got %d", key, axis)
		}

		if m.DynamicAxes == nil {
			m.DynamicAxes = make(map[string]int)
		}

		m.DynamicAxes[key] = axis
	}

	return nil
}

// LoadModel parses a per-model config document from r.
func LoadModel(r io.Reader) (*Model, error) {
	var m Model
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return nil, err
	}

	return &m, nil
}

// LoadModelFile opens path and parses it as a per-model config.
func LoadModelFile(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open model config %s: %w", path, err)
	}
	defer f.Close()

	return LoadModel(f)
}

// DramTiming is the optional DRAM timing config referenced by
// Simulator.DramConfigPath, consumed by the Detailed memory model.
type DramTiming struct {
	DefaultLatencyCycles int64            `json:"default_latency_cycles"`
	LatenciesBySize      map[string]int64 `json:"latencies_by_size,omitempty"`
}

// Resolve converts LatenciesBySize's string-keyed sizes into the
// uint32-keyed map memory.NewDetailed expects.
func (d *DramTiming) Resolve() (map[uint32]int64, error) {
	out := make(map[uint32]int64, len(d.LatenciesBySize))

	for key, lat := range d.LatenciesBySize {
		size, err := strconv.ParseUint(key, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("config: DRAM timing size %q is not a valid uint32: %w", key, err)
		}

		out[uint32(size)] = lat
	}

	return out, nil
}

// LoadDramTimingFile opens path and parses it as a DRAM timing config.
func LoadDramTimingFile(path string) (*DramTiming, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open DRAM timing config %s: %w", path, err)
	}
	defer f.Close()

	var d DramTiming
	if err := json.NewDecoder(f).Decode(&d); err != nil {
		return nil, fmt.Errorf("config: decode DRAM timing config: %w", err)
	}

	return &d, nil
}
