package scheduler_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/go-accel/npusim/graph"
	"github.com/go-accel/npusim/scheduler"
	"github.com/go-accel/npusim/tile"
)

var _ = Describe("DedicatedCPU", func() {
	It("never lets a tile cross partitions (S3)", func() {
		partA := uint32(0)
		partB := uint32(1)

		d := scheduler.NewDedicatedCPU(map[uint32][]int{
			partA: {0, 1},
			partB: {2, 3},
		})

		ids := graph.NewIDAllocator()
		mA := oneOpModel("a", 2, &partA, ids)
		mB := oneOpModel("b", 2, &partB, ids)
		d.ScheduleModel(mA, 1)
		d.ScheduleModel(mB, 1)

		// core 2/3 (partition B) must never receive a tile of model A,
		// and core 0/1 (partition A) must never receive a tile of model B.
		seenOnA := map[uint32]bool{}
		for _, core := range []int{0, 1} {
			t := d.GetTile(core)
			Expect(t.Status).To(Equal(tile.Initialized))
			Expect(t.ModelID).To(Equal("a"))
			seenOnA[t.LayerID] = true
		}

		for _, core := range []int{2, 3} {
			t := d.GetTile(core)
			Expect(t.Status).To(Equal(tile.Initialized))
			Expect(t.ModelID).To(Equal("b"))
		}

		Expect(seenOnA).ToNot(BeEmpty())
	})

	It("returns the sentinel for a core outside every configured partition", func() {
		d := scheduler.NewDedicatedCPU(map[uint32][]int{0: {0}})
		part := uint32(0)
		m := oneOpModel("m", 1, &part, graph.NewIDAllocator())
		d.ScheduleModel(m, 1)

		t := d.GetTile(5)
		Expect(t.Status).ToNot(Equal(tile.Initialized))
	})
})
