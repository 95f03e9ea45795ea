package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/go-accel/npusim/clock"
	"github.com/go-accel/npusim/config"
	"github.com/go-accel/npusim/core"
	"github.com/go-accel/npusim/graph"
	"github.com/go-accel/npusim/interconnect"
	"github.com/go-accel/npusim/mapping"
	"github.com/go-accel/npusim/memory"
	"github.com/go-accel/npusim/onnxgraph"
	"github.com/go-accel/npusim/scheduler"
	"github.com/go-accel/npusim/simulator"
	"github.com/go-accel/npusim/stats"
)

var (
	runConfigPath  string
	runModels      []string
	runMappingPath string
	runDramPath    string
	runStatsPath   string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "run a simulation against a simulator config and one or more ONNX model graphs",
	RunE:  runSimulation,
}

func init() {
	runCmd.Flags().StringVar(&runConfigPath, "config", "", "path to the simulator config JSON (required)")
	runCmd.Flags().StringArrayVar(&runModels, "models", nil, "name=graph.json[,request_time=seconds] (repeatable)")
	runCmd.Flags().StringVar(&runMappingPath, "mapping-table", "", "path to the mapping table JSON (overrides config)")
	runCmd.Flags().StringVar(&runDramPath, "dram-config", "", "path to the DRAM timing config JSON (overrides config)")
	runCmd.Flags().StringVar(&runStatsPath, "stats", "", "path to the sqlite3 stats database (omit to disable statistics)")

	_ = runCmd.MarkFlagRequired("config")
	_ = runCmd.MarkFlagRequired("models")

	rootCmd.AddCommand(runCmd)
}

// modelFlag is one parsed --models flag value.
type modelFlag struct {
	name string
	path string
	cfg  config.Model
}

// parseModelFlag parses "name=path[,request_time=seconds]" into a
// modelFlag. request_time is the only inline override supported; richer
// per-model config belongs in a config.Model JSON file loaded
// separately, but the common case of a single request-time offset does
// not need its own file.
func parseModelFlag(spec string) (modelFlag, error) {
	name, rest, ok := strings.Cut(spec, "=")
	if !ok || name == "" {
		return modelFlag{}, fmt.Errorf("--models %q: expected name=path[,request_time=seconds]", spec)
	}

	parts := strings.Split(rest, ",")

	mf := modelFlag{name: name, path: parts[0]}
	if mf.path == "" {
		return modelFlag{}, fmt.Errorf("--models %q: missing graph path", spec)
	}

	for _, extra := range parts[1:] {
		key, val, ok := strings.Cut(extra, "=")
		if !ok {
			return modelFlag{}, fmt.Errorf("--models %q: malformed option %q", spec, extra)
		}

		switch key {
		case "request_time":
			t, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return modelFlag{}, fmt.Errorf("--models %q: request_time must be a float: %w", spec, err)
			}

			mf.cfg.RequestTime = t
		default:
			return modelFlag{}, fmt.Errorf("--models %q: unknown option %q", spec, key)
		}
	}

	return mf, nil
}

func buildCore(kind config.CoreKind, id int) (core.Core, error) {
	switch kind {
	case config.CoreSystolicOS:
		return core.NewSystolicOS(id), nil
	case config.CoreSystolicWS:
		return core.NewSystolicWS(id), nil
	default:
		return nil, fmt.Errorf("config: unknown core_kind %q", kind)
	}
}

func buildInterconnect(simCfg *config.Simulator) (interconnect.Interconnect, error) {
	numEndpoints := simCfg.NumCores + simCfg.NumChannels

	switch simCfg.IcntKind {
	case config.IcntSimple:
		return interconnect.NewSimple(numEndpoints, simCfg.IcntCapacity), nil
	case config.IcntRouted:
		return interconnect.NewRouted(numEndpoints, simCfg.IcntCapacity, simCfg.IcntLatencyCycles), nil
	default:
		return nil, fmt.Errorf("config: unknown icnt_kind %q", simCfg.IcntKind)
	}
}

func buildMemory(simCfg *config.Simulator) (memory.Memory, error) {
	switch simCfg.DramKind {
	case config.DramSimple:
		return memory.NewSimple(simCfg.NumChannels, simCfg.DramLatencyCycles, simCfg.DramRequestSize), nil
	case config.DramDetailed:
		dramPath := runDramPath
		if dramPath == "" {
			dramPath = simCfg.DramConfigPath
		}

		if dramPath == "" {
			return nil, fmt.Errorf("config: dram_kind %q requires a DRAM timing config", simCfg.DramKind)
		}

		timing, err := config.LoadDramTimingFile(resolveConfigPath(dramPath))
		if err != nil {
			return nil, err
		}

		latencies, err := timing.Resolve()
		if err != nil {
			return nil, err
		}

		return memory.NewDetailed(simCfg.NumChannels, simCfg.DramCapacity, simCfg.DramRequestSize, latencies, timing.DefaultLatencyCycles), nil
	default:
		return nil, fmt.Errorf("config: unknown dram_kind %q", simCfg.DramKind)
	}
}

func buildScheduler(simCfg *config.Simulator) (scheduler.Scheduler, error) {
	switch simCfg.SchedulerKind {
	case config.SchedulerSimple:
		return scheduler.NewSimple(), nil
	case config.SchedulerPartitionCPU:
		partitions, err := simCfg.PartitionCores()
		if err != nil {
			return nil, err
		}

		return scheduler.NewDedicatedCPU(partitions), nil
	case config.SchedulerTimeMultiplex:
		return scheduler.NewTimeMultiplex(), nil
	case config.SchedulerSpatialSplit:
		return scheduler.NewHalfSplit(simCfg.NumCores), nil
	default:
		return nil, fmt.Errorf("config: unknown scheduler_kind %q", simCfg.SchedulerKind)
	}
}

// resolveConfigPath joins a relative path against NPUSIM_CONFIG_DIR, if
// set, so config/model paths on the command line don't need to repeat a
// common prefix (see root.go's godotenv.Load).
func resolveConfigPath(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}

	if dir := os.Getenv("NPUSIM_CONFIG_DIR"); dir != "" {
		return filepath.Join(dir, path)
	}

	return path
}

func runSimulation(cmd *cobra.Command, args []string) error {
	simCfg, err := config.LoadSimulatorFile(resolveConfigPath(runConfigPath))
	if err != nil {
		return err
	}

	mappingPath := runMappingPath
	if mappingPath == "" {
		mappingPath = simCfg.MappingTablePath
	}

	if mappingPath == "" {
		return fmt.Errorf("npusim: no mapping table configured (pass --mapping-table or set mapping_table_path)")
	}

	table, err := mapping.LoadFile(resolveConfigPath(mappingPath))
	if err != nil {
		return err
	}

	cores := make([]core.Core, simCfg.NumCores)
	for i := 0; i < simCfg.NumCores; i++ {
		c, err := buildCore(simCfg.CoreKind, i)
		if err != nil {
			return err
		}

		cores[i] = c
	}

	icnt, err := buildInterconnect(simCfg)
	if err != nil {
		return err
	}

	mem, err := buildMemory(simCfg)
	if err != nil {
		return err
	}

	sched, err := buildScheduler(simCfg)
	if err != nil {
		return err
	}

	clk := clock.New(
		clock.Freq(simCfg.CoreFreqMHz),
		clock.Freq(simCfg.IcntFreqMHz),
		clock.Freq(simCfg.DramFreqMHz),
	)

	var recorder *stats.Recorder
	if runStatsPath != "" {
		recorder = stats.New(runStatsPath)
	}

	sim := simulator.New(clk, cores, icnt, mem, sched, simCfg.NumChannels, recorder)

	ids := graph.NewIDAllocator()

	for _, spec := range runModels {
		mf, err := parseModelFlag(spec)
		if err != nil {
			return err
		}

		m, err := onnxgraph.LoadModelFile(mf.name, resolveConfigPath(mf.path), mf.cfg, simCfg.PrecisionBits, table, ids)
		if err != nil {
			return fmt.Errorf("npusim: load model %q: %w", mf.name, err)
		}

		sim.RegisterModel(m)
	}

	report := sim.Run()

	// Registered rather than printed directly so the report is flushed
	// exactly once, after every other atexit handler the run may have
	// registered (the stats store's flush among them), mirroring
	// noc/acceptance/one_to_one/main.go's atexit.Exit(0) convention.
	atexit.Register(func() {
		fmt.Println(report)
	})

	return nil
}
