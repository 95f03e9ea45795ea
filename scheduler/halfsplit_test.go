package scheduler_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/go-accel/npusim/graph"
	"github.com/go-accel/npusim/scheduler"
	"github.com/go-accel/npusim/tile"
)

var _ = Describe("HalfSplit", func() {
	It("runs one distinct model per half of a 4-core array", func() {
		h := scheduler.NewHalfSplit(4)

		ids := graph.NewIDAllocator()
		m1 := oneOpModel("m1", 1, nil, ids)
		m2 := oneOpModel("m2", 1, nil, ids)
		h.ScheduleModel(m1, 1)
		h.ScheduleModel(m2, 1)

		low := h.GetTile(0)
		Expect(low.ModelID).To(Equal("m1"))

		high := h.GetTile(3)
		Expect(high.ModelID).To(Equal("m2"))
	})

	It("queues a third model until a half's model finishes entirely", func() {
		h := scheduler.NewHalfSplit(4)

		ids := graph.NewIDAllocator()
		m1 := oneOpModel("m1", 1, nil, ids)
		m2 := oneOpModel("m2", 1, nil, ids)
		m3 := oneOpModel("m3", 1, nil, ids)
		h.ScheduleModel(m1, 1)
		h.ScheduleModel(m2, 1)
		h.ScheduleModel(m3, 1) // both halves occupied: m3 queues

		Expect(h.Empty()).To(BeFalse())

		t1 := h.GetTile(0)
		Expect(t1.ModelID).To(Equal("m1"))

		stillM2 := h.GetTile(1)
		Expect(stillM2.Status).ToNot(Equal(tile.Initialized)) // half 0 has nothing left until freed

		h.FinishTile(0, t1.LayerID) // m1 finishes entirely, freeing half 0 for m3

		t3 := h.GetTile(0)
		Expect(t3.ModelID).To(Equal("m3"))
	})
})
