package scheduler_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/go-accel/npusim/graph"
	"github.com/go-accel/npusim/mapping"
	"github.com/go-accel/npusim/scheduler"
	"github.com/go-accel/npusim/tile"
)

// oneOpModel builds a model with a single Conv operation decomposed into
// tileCount tiles, via a mapping table entry. The entry is keyed by the
// input's channel-last shape, since NewModel canonicalizes the 1x3x8x8
// input before looking it up.
func oneOpModel(name string, tileCount int, partitionID *uint32, ids *graph.IDAllocator) *graph.Model {
	table := mapping.New()
	table.Add(mapping.Entry{
		OpType:       "Conv",
		Shape:        []int{1, 8, 8, 3},
		TileCount:    tileCount,
		InstrPerTile: 1,
	})

	doc := graph.Document{
		Inputs: []graph.InputSpec{
			{Name: "x", Dims: []graph.DimSpec{{Value: 1}, {Value: 3}, {Value: 8}, {Value: 8}}},
		},
		Nodes: []graph.NodeSpec{
			{OpType: "Conv", Name: "A", Inputs: []string{"x"}, Outputs: []string{"y"}},
		},
	}

	cfg := graph.Config{PartitionID: partitionID}

	m, err := graph.NewModel(name, doc, cfg, table, ids)
	Expect(err).ToNot(HaveOccurred())

	return m
}

var _ = Describe("Simple", func() {
	It("hands out every tile of a model regardless of which core asks", func() {
		s := scheduler.NewSimple()
		m := oneOpModel("m", 3, nil, graph.NewIDAllocator())
		s.ScheduleModel(m, 1)

		t0 := s.GetTile(0)
		Expect(t0.Status).To(Equal(tile.Initialized))
		t1 := s.GetTile(1)
		Expect(t1.Status).To(Equal(tile.Initialized))
		t2 := s.GetTile(2)
		Expect(t2.Status).To(Equal(tile.Initialized))

		empty := s.GetTile(0)
		Expect(empty.Status).ToNot(Equal(tile.Initialized))

		Expect(s.Empty()).To(BeFalse()) // all 3 outstanding, none finished yet

		s.FinishTile(0, t0.LayerID)
		s.FinishTile(1, t1.LayerID)
		s.FinishTile(2, t2.LayerID)

		Expect(s.Empty()).To(BeTrue())
	})

	It("reports the first pending tile's accumulate flag via IsAccumTile", func() {
		s := scheduler.NewSimple()
		m := oneOpModel("m", 2, nil, graph.NewIDAllocator())
		s.ScheduleModel(m, 1)

		Expect(s.IsAccumTile(0, 0)).To(BeFalse()) // tile 0 is never an accumulation tile

		_ = s.GetTile(0)
		Expect(s.IsAccumTile(0, 0)).To(BeTrue()) // tile 1 chains from tile 0
	})
})
