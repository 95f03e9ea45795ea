package core_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/go-accel/npusim/core"
	"github.com/go-accel/npusim/memaccess"
	"github.com/go-accel/npusim/tile"
)

var _ = Describe("Systolic", func() {
	var c *core.Systolic

	BeforeEach(func() {
		c = core.NewSystolicOS(0)
	})

	It("should accept a non-accumulation tile when idle", func() {
		Expect(c.CanIssue(false)).To(BeTrue())
	})

	It("should reject an accumulation tile with no preceding issue", func() {
		Expect(c.CanIssue(true)).To(BeFalse())
	})

	It("should hold at most one in-flight tile", func() {
		t1 := tile.New("m", 0, 0, []tile.Instruction{{ParamA: 1}}, false)
		c.Issue(t1)
		Expect(c.CanIssue(false)).To(BeFalse())
	})

	It("should panic when Issue is called while CanIssue is false", func() {
		t1 := tile.New("m", 0, 0, []tile.Instruction{{ParamA: 1}}, false)
		c.Issue(t1)
		t2 := tile.New("m", 0, 1, []tile.Instruction{{ParamA: 1}}, false)
		Expect(func() { c.Issue(t2) }).To(Panic())
	})

	It("should accept an accumulation tile once a prior tile has been issued", func() {
		t1 := tile.New("m", 0, 0, []tile.Instruction{{ParamA: 1}}, false)
		c.Issue(t1)

		for !t1.Done() || c.Running() {
			c.Cycle()
		}

		Expect(c.CanIssue(true)).To(BeTrue())
	})

	It("should report a finished tile exactly once via PopFinishedTile", func() {
		t1 := tile.New("m", 0, 0, []tile.Instruction{{ParamA: 1}}, false)
		c.Issue(t1)
		c.Cycle() // executes the single one-cycle instruction
		c.Cycle() // retires the tile

		got := c.PopFinishedTile()
		Expect(got.ModelID).To(Equal("m"))
		Expect(got.Status).To(Equal(tile.Finish))

		again := c.PopFinishedTile()
		Expect(again.Status).ToNot(Equal(tile.Finish))
	})

	It("should emit a memory request for a MemAccess instruction and stall until matched", func() {
		t1 := tile.New("m", 7, 2, []tile.Instruction{
			{MemAccess: true, Address: 0x100, Size: 64},
		}, false)
		c.Issue(t1)
		c.Cycle()

		Expect(c.HasMemoryRequest()).To(BeTrue())
		req := c.TopMemoryRequest()
		Expect(req.Address).To(BeEquivalentTo(0x100))
		Expect(req.CoreID).To(Equal(0))
		c.PopMemoryRequest()
		Expect(c.HasMemoryRequest()).To(BeFalse())

		Expect(c.Running()).To(BeTrue())
		c.Cycle() // still stalled, no response yet
		Expect(c.Running()).To(BeTrue())

		req.MarkResponse()
		c.PushMemoryResponse(req)
		c.Cycle()

		Expect(c.Running()).To(BeFalse())
		Expect(c.PopFinishedTile().Status).To(Equal(tile.Finish))
	})

	It("should panic on an unmatched memory response", func() {
		stray := memaccess.NewRequest().WithAddress(0).WithSize(4).Build()
		stray.MarkResponse()
		Expect(func() { c.PushMemoryResponse(stray) }).To(Panic())
	})

	It("should report not running when idle", func() {
		Expect(c.Running()).To(BeFalse())
	})
})

var _ = Describe("SystolicWS vs SystolicOS instruction cost", func() {
	It("should charge weight-streaming cost only on SystolicWS", func() {
		os := core.NewSystolicOS(0)
		ws := core.NewSystolicWS(1)

		instr := tile.Instruction{ParamA: 2, ParamB: 5}

		tOS := tile.New("m", 0, 0, []tile.Instruction{instr}, false)
		os.Issue(tOS)
		cyclesOS := 0
		for os.Running() {
			os.Cycle()
			cyclesOS++
		}

		tWS := tile.New("m", 0, 0, []tile.Instruction{instr}, false)
		ws.Issue(tWS)
		cyclesWS := 0
		for ws.Running() {
			ws.Cycle()
			cyclesWS++
		}

		Expect(cyclesWS).To(BeNumerically(">", cyclesOS))
	})
})
