package clock_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/go-accel/npusim/clock"
)

var _ = Describe("Freq", func() {
	It("should compute period in picoseconds", func() {
		Expect(clock.Freq(1e6).Period()).To(BeNumerically("==", 1))
	})

	It("should panic on non-positive frequency", func() {
		Expect(func() { clock.Freq(0).Period() }).To(Panic())
	})
})

var _ = Describe("Clock", func() {
	It("should tick at least one domain every step", func() {
		c := clock.New(1000, 500, 200)
		for i := 0; i < 100; i++ {
			mask := c.Step()
			Expect(mask[clock.Core] || mask[clock.Interconnect] || mask[clock.DRAM]).
				To(BeTrue())
		}
	})

	It("should tick every domain at the minimum time, not just one", func() {
		c := clock.New(1000, 1000, 1000)
		mask := c.Step()
		Expect(mask[clock.Core]).To(BeTrue())
		Expect(mask[clock.Interconnect]).To(BeTrue())
		Expect(mask[clock.DRAM]).To(BeTrue())
	})

	It("should keep cycles proportional to frequency over many steps", func() {
		c := clock.New(2000, 1000, 500)
		for i := 0; i < 10000; i++ {
			c.Step()
		}

		coreCycles := c.Cycles(clock.Core)
		icntCycles := c.Cycles(clock.Interconnect)
		dramCycles := c.Cycles(clock.DRAM)

		Expect(float64(coreCycles) / float64(icntCycles)).To(BeNumerically("~", 2, 0.01))
		Expect(float64(icntCycles) / float64(dramCycles)).To(BeNumerically("~", 2, 0.01))
	})

	It("should keep per-domain time exactly cycles*period", func() {
		freqs := [3]clock.Freq{1000, 333, 77}
		c := clock.New(freqs[0], freqs[1], freqs[2])
		for i := 0; i < 500; i++ {
			c.Step()
		}

		for i, d := range []clock.Domain{clock.Core, clock.Interconnect, clock.DRAM} {
			Expect(c.Time(d)).To(Equal(int64(c.Cycles(d)) * freqs[i].Period()))
		}
	})

	It("should report core time reached once crossed", func() {
		c := clock.New(1000, 1000, 1000)
		Expect(c.CoreTimeAtLeast(0)).To(BeTrue())
		Expect(c.CoreTimeAtLeast(1)).To(BeFalse())
		c.Step()
		Expect(c.CoreTimeAtLeast(1)).To(BeTrue())
	})
})
