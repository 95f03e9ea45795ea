package simulator_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/go-accel/npusim/clock"
	"github.com/go-accel/npusim/core"
	"github.com/go-accel/npusim/graph"
	"github.com/go-accel/npusim/interconnect"
	"github.com/go-accel/npusim/mapping"
	"github.com/go-accel/npusim/memory"
	"github.com/go-accel/npusim/scheduler"
	"github.com/go-accel/npusim/simulator"
	"github.com/go-accel/npusim/stats"
)

func convDoc() (graph.Document, *mapping.Table) {
	table := mapping.New()
	table.Add(mapping.Entry{
		OpType:         "Conv",
		Shape:          []int{1, 3, 8, 8},
		TileCount:      1,
		InstrPerTile:   2,
		MemAccessEvery: 1,
		AccessSize:     64,
	})

	doc := graph.Document{
		Inputs: []graph.InputSpec{
			{Name: "x", Dims: []graph.DimSpec{{Value: 1}, {Value: 3}, {Value: 8}, {Value: 8}}},
		},
		Nodes: []graph.NodeSpec{
			{OpType: "Conv", Name: "A", Inputs: []string{"x"}, Outputs: []string{"y"}},
		},
	}

	return doc, table
}

var _ = Describe("Simulator", func() {
	It("runs a single model with one tile to completion (S1)", func() {
		doc, table := convDoc()
		m, err := graph.NewModel("m", doc, graph.Config{}, table, graph.NewIDAllocator())
		Expect(err).ToNot(HaveOccurred())

		cores := []core.Core{core.NewSystolicOS(0)}
		icnt := interconnect.NewSimple(2, 4)
		mem := memory.NewSimple(1, 5, 64)
		sched := scheduler.NewSimple()

		clk := clock.New(1000, 1000, 1000)
		recorder := stats.New(GinkgoT().TempDir() + "/s1")

		sim := simulator.New(clk, cores, icnt, mem, sched, 1, recorder)
		sim.RegisterModel(m)

		report := sim.Run()

		Expect(m.Finished()).To(BeTrue())
		Expect(report).To(ContainSubstring("tiles=1"))
	})

	It("does not issue model B's first tile before its request time (S2)", func() {
		ids := graph.NewIDAllocator()
		table := mapping.New()
		table.Add(mapping.Entry{OpType: "Conv", Shape: []int{1, 3, 8, 8}, TileCount: 1, InstrPerTile: 1})

		docFor := func() graph.Document {
			return graph.Document{
				Inputs: []graph.InputSpec{
					{Name: "x", Dims: []graph.DimSpec{{Value: 1}, {Value: 3}, {Value: 8}, {Value: 8}}},
				},
				Nodes: []graph.NodeSpec{
					{OpType: "Conv", Name: "A", Inputs: []string{"x"}, Outputs: []string{"y"}},
				},
			}
		}

		mA, err := graph.NewModel("a", docFor(), graph.Config{RequestTime: 0}, table, ids)
		Expect(err).ToNot(HaveOccurred())

		mB, err := graph.NewModel("b", docFor(), graph.Config{RequestTime: 0.000001}, table, ids) // 1000ns
		Expect(err).ToNot(HaveOccurred())

		cores := []core.Core{core.NewSystolicOS(0), core.NewSystolicOS(1)}
		icnt := interconnect.NewSimple(3, 4)
		mem := memory.NewSimple(1, 5, 64)
		sched := scheduler.NewSimple()

		clk := clock.New(1000, 1000, 1000)
		sim := simulator.New(clk, cores, icnt, mem, sched, 1, nil)
		sim.RegisterModel(mA)
		sim.RegisterModel(mB)

		sim.Run()

		Expect(mA.Finished()).To(BeTrue())
		Expect(mB.Finished()).To(BeTrue())
		Expect(mB.StartTime).To(BeNumerically(">=", int64(1e6))) // 1000ns in picoseconds
	})
})
