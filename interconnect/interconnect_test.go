package interconnect_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/go-accel/npusim/interconnect"
	"github.com/go-accel/npusim/memaccess"
)

var _ = Describe("Simple", func() {
	var ic *interconnect.Simple

	BeforeEach(func() {
		ic = interconnect.NewSimple(4, 2)
	})

	It("should report full once a source's injection buffer reaches capacity", func() {
		req := memaccess.NewRequest().WithAddress(0).WithSize(64).WithCoreID(0).Build()

		Expect(ic.IsFull(0, req)).To(BeFalse())
		ic.Push(0, 3, req)
		Expect(ic.IsFull(0, req)).To(BeFalse())
		ic.Push(0, 3, req)
		Expect(ic.IsFull(0, req)).To(BeTrue())

		Expect(ic.IsFull(1, req)).To(BeFalse())
	})

	It("should deliver a packet to its destination, not its source", func() {
		req := memaccess.NewRequest().WithAddress(0).WithSize(64).WithCoreID(0).Build()
		ic.Push(0, 3, req)

		Expect(ic.IsEmpty(3)).To(BeTrue())
		ic.Cycle()
		Expect(ic.IsEmpty(3)).To(BeFalse())
		Expect(ic.IsEmpty(0)).To(BeTrue())

		Expect(ic.Top(3).ID()).To(Equal(req.ID()))
		ic.Pop(3)
		Expect(ic.IsEmpty(3)).To(BeTrue())
	})

	It("should free a source's injection slot only after Cycle drains it", func() {
		req := memaccess.NewRequest().WithAddress(0).WithSize(64).Build()
		ic.Push(0, 1, req)
		ic.Push(0, 2, req)
		Expect(ic.IsFull(0, req)).To(BeTrue())

		ic.Cycle()
		Expect(ic.IsFull(0, req)).To(BeFalse())
	})

	It("should report running while anything is queued or in flight", func() {
		Expect(ic.Running()).To(BeFalse())
		req := memaccess.NewRequest().WithAddress(0).WithSize(64).Build()
		ic.Push(0, 1, req)
		Expect(ic.Running()).To(BeTrue())
		ic.Cycle()
		Expect(ic.Running()).To(BeTrue())
		ic.Pop(1)
		Expect(ic.Running()).To(BeFalse())
	})
})

var _ = Describe("Routed", func() {
	var ic *interconnect.Routed

	BeforeEach(func() {
		ic = interconnect.NewRouted(4, 2, 5)
	})

	It("should not deliver a packet before its hop latency elapses", func() {
		req := memaccess.NewRequest().WithAddress(0).WithSize(64).Build()
		ic.Push(0, 2, req)

		for i := 0; i < 4; i++ {
			ic.Cycle()
		}
		Expect(ic.IsEmpty(2)).To(BeTrue())

		ic.Cycle()
		Expect(ic.IsEmpty(2)).To(BeFalse())
		Expect(ic.Top(2).ID()).To(Equal(req.ID()))
	})

	It("should bound injection capacity independent of destination", func() {
		req := memaccess.NewRequest().WithAddress(0).WithSize(64).Build()
		ic.Push(0, 1, req)
		ic.Push(0, 2, req)
		Expect(ic.IsFull(0, req)).To(BeTrue())
		Expect(ic.IsFull(1, req)).To(BeFalse())
	})
})
