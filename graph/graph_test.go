package graph_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/go-accel/npusim/graph"
	"github.com/go-accel/npusim/mapping"
)

func chainDoc() graph.Document {
	return graph.Document{
		Inputs: []graph.InputSpec{
			{Name: "x", Dims: []graph.DimSpec{{Value: 1}, {Value: 3}, {Value: 8}, {Value: 8}}},
		},
		Nodes: []graph.NodeSpec{
			{OpType: "Conv", Name: "A", Inputs: []string{"x"}, Outputs: []string{"a_out"}},
			{OpType: "Relu", Name: "B", Inputs: []string{"a_out"}, Outputs: []string{"b_out"}},
			{OpType: "MatMul", Name: "C", Inputs: []string{"b_out"}, Outputs: []string{"c_out"}},
		},
	}
}

var _ = Describe("Model", func() {
	var table *mapping.Table

	BeforeEach(func() {
		table = mapping.New()
	})

	It("should seed the ready-queue only with operations whose inputs are all produced", func() {
		m, err := graph.NewModel("m", chainDoc(), graph.Config{}, table, graph.NewIDAllocator())
		Expect(err).ToNot(HaveOccurred())

		Expect(m.ExecutableCount()).To(Equal(1))
		op, ok := m.NextExecutable()
		Expect(ok).To(BeTrue())
		Expect(op.Name).To(Equal("A"))
		Expect(m.ExecutableCount()).To(Equal(0))
	})

	It("should respect producer-consumer ordering across FinishLayer (property 3 / S4)", func() {
		m, err := graph.NewModel("m", chainDoc(), graph.Config{}, table, graph.NewIDAllocator())
		Expect(err).ToNot(HaveOccurred())

		opA, _ := m.NextExecutable()
		Expect(m.ExecutableCount()).To(Equal(0))

		m.FinishLayer(opA.ID)
		Expect(m.ExecutableCount()).To(Equal(1))

		opB, _ := m.NextExecutable()
		Expect(opB.Name).To(Equal("B"))

		m.FinishLayer(opB.ID)
		opC, ok := m.NextExecutable()
		Expect(ok).To(BeTrue())
		Expect(opC.Name).To(Equal("C"))
	})

	It("should make a two-input operation ready only once both producers finish", func() {
		doc := graph.Document{
			Inputs: []graph.InputSpec{
				{Name: "x", Dims: []graph.DimSpec{{Value: 4}}},
				{Name: "y", Dims: []graph.DimSpec{{Value: 4}}},
			},
			Nodes: []graph.NodeSpec{
				{OpType: "Add", Name: "mergeA", Inputs: []string{"x"}, Outputs: []string{"p"}},
				{OpType: "Add", Name: "mergeB", Inputs: []string{"y"}, Outputs: []string{"q"}},
				{OpType: "Add", Name: "join", Inputs: []string{"p", "q"}, Outputs: []string{"out"}},
			},
		}

		m, err := graph.NewModel("m", doc, graph.Config{}, table, graph.NewIDAllocator())
		Expect(err).ToNot(HaveOccurred())
		Expect(m.ExecutableCount()).To(Equal(2))

		opA, _ := m.NextExecutable()
		opB, _ := m.NextExecutable()
		m.FinishLayer(opA.ID)
		Expect(m.ExecutableCount()).To(Equal(0)) // join still needs q

		m.FinishLayer(opB.ID)
		Expect(m.ExecutableCount()).To(Equal(1))
	})

	It("should skip operators with an unrecognized op type", func() {
		doc := graph.Document{
			Inputs: []graph.InputSpec{{Name: "x", Dims: []graph.DimSpec{{Value: 4}}}},
			Nodes: []graph.NodeSpec{
				{OpType: "TotallyMadeUpOp", Name: "weird", Inputs: []string{"x"}, Outputs: []string{"y"}},
			},
		}

		m, err := graph.NewModel("m", doc, graph.Config{}, table, graph.NewIDAllocator())
		Expect(err).ToNot(HaveOccurred())
		Expect(m.ExecutableCount()).To(Equal(0))
		Expect(m.Finished()).To(BeTrue())
	})

	It("should resolve a dynamic axis from the config and error when unresolved", func() {
		doc := graph.Document{
			Inputs: []graph.InputSpec{
				{Name: "x", Dims: []graph.DimSpec{{Param: "batch"}, {Value: 3}}},
			},
		}

		_, err := graph.NewModel("m", doc, graph.Config{}, table, graph.NewIDAllocator())
		Expect(err).To(HaveOccurred())

		_, err = graph.NewModel("m", doc, graph.Config{DynamicAxes: map[string]int{"batch": 2}}, table, graph.NewIDAllocator())
		Expect(err).ToNot(HaveOccurred())
	})

	It("should convert a single 4-D channel-first input to channel-last when H equals W", func() {
		doc := graph.Document{
			Inputs: []graph.InputSpec{
				{Name: "x", Dims: []graph.DimSpec{{Value: 1}, {Value: 3}, {Value: 32}, {Value: 32}}},
			},
		}

		m, err := graph.NewModel("m", doc, graph.Config{}, table, graph.NewIDAllocator())
		Expect(err).ToNot(HaveOccurred())

		x, ok := m.TensorByName("x")
		Expect(ok).To(BeTrue())
		Expect(x.Shape).To(Equal([]int{1, 32, 32, 3}))
	})

	It("should truncate the graph after 2*nr_atten SkipLayerNormalization nodes", func() {
		doc := graph.Document{
			Inputs: []graph.InputSpec{{Name: "x", Dims: []graph.DimSpec{{Value: 4}}}},
			Nodes: []graph.NodeSpec{
				{OpType: "SkipLayerNormalization", Name: "s0", Inputs: []string{"x"}, Outputs: []string{"o0"}},
				{OpType: "SkipLayerNormalization", Name: "s1", Inputs: []string{"o0"}, Outputs: []string{"o1"}},
				{OpType: "Relu", Name: "after", Inputs: []string{"o1"}, Outputs: []string{"o2"}},
			},
		}

		nrAtten := 1
		m, err := graph.NewModel("m", doc, graph.Config{NrAtten: &nrAtten}, table, graph.NewIDAllocator())
		Expect(err).ToNot(HaveOccurred())

		// 2*nr_atten == 2 SkipLayerNormalization nodes trips truncation on the
		// second one; the trailing Relu node is never even created.
		_, ok := m.NextExecutable()
		Expect(ok).To(BeTrue())

		Expect(m.Finished()).To(BeFalse())
	})

	It("should generate accumulation-chained tiles from a mapping table entry", func() {
		table.Add(mapping.Entry{
			OpType:       "Conv",
			Shape:        []int{1, 32, 32, 3},
			TileCount:    3,
			InstrPerTile: 2,
			ParamA:       4,
		})

		doc := graph.Document{
			Inputs: []graph.InputSpec{
				{Name: "x", Dims: []graph.DimSpec{{Value: 1}, {Value: 3}, {Value: 32}, {Value: 32}}},
			},
			Nodes: []graph.NodeSpec{
				{OpType: "Conv", Name: "A", Inputs: []string{"x"}, Outputs: []string{"y"}},
			},
		}

		m, err := graph.NewModel("m", doc, graph.Config{}, table, graph.NewIDAllocator())
		Expect(err).ToNot(HaveOccurred())

		op, ok := m.NextExecutable()
		Expect(ok).To(BeTrue())
		Expect(op.Tiles).To(HaveLen(3))
		Expect(op.Tiles[0].Accumulate).To(BeFalse())
		Expect(op.Tiles[1].Accumulate).To(BeTrue())
		Expect(op.Tiles[2].Accumulate).To(BeTrue())
	})
})
