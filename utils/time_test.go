package utils

import (
	"testing"
	"time"

	"github.com/onsi/gomega"
)

func TestMockTime(t *testing.T) {
	g := gomega.NewWithT(t)

	realTime := time.Now()
	utilsTime := Now()
	g.Expect(utilsTime.Sub(realTime)).To(gomega.BeNumerically("<", time.Second), "Now() should return real time by default")

	mockTime := time.Date(2025, 6, 19, 12, 0, 0, 0, time.UTC)
	restore := MockTime(mockTime)

	g.Expect(Now()).To(gomega.Equal(mockTime), "Now() should return mocked time")
	g.Expect(NaiveNow()).To(gomega.Equal(mockTime))

	restore()
	restoredTime := Now()
	g.Expect(restoredTime.Sub(realTime)).To(gomega.BeNumerically("<", time.Second), "Now() should return real time after restore")
}

func TestISOFormat(t *testing.T) {
	g := gomega.NewWithT(t)

	g.Expect(ISOFormat(time.Date(2025, 3, 5, 14, 0, 0, 0, time.UTC))).To(gomega.Equal("2025-03-05T14:00:00"))
	g.Expect(ISOFormat(time.Date(2025, 3, 5, 14, 0, 0, 1500, time.UTC))).To(gomega.Equal("2025-03-05T14:00:00.000001"))
}

func TestToNaiveUTC(t *testing.T) {
	g := gomega.NewWithT(t)

	est := time.FixedZone("EST", -5*3600)
	in := time.Date(2025, 1, 10, 9, 30, 0, 0, est)
	g.Expect(ToNaiveUTC(in)).To(gomega.Equal(time.Date(2025, 1, 10, 14, 30, 0, 0, time.UTC)))
	g.Expect(Naive(in)).To(gomega.Equal(time.Date(2025, 1, 10, 9, 30, 0, 0, time.UTC)))
}
