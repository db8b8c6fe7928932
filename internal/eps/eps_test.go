package eps

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateReportsCompletedWindow(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	tr := NewTracker(10 * time.Second)

	for i := 0; i < 50; i++ {
		tr.Record(start.Add(time.Duration(i) * 100 * time.Millisecond))
	}
	assert.Zero(t, tr.Rate(start.Add(5*time.Second)), "no completed window yet")
	assert.InDelta(t, 5, tr.Rate(start.Add(11*time.Second)), 1e-9)
}

func TestRateDropsToZeroAfterIdleWindow(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	tr := NewTracker(10 * time.Second)
	for i := 0; i < 20; i++ {
		tr.Record(start)
	}
	assert.Zero(t, tr.Rate(start.Add(25*time.Second)))
}

func TestDefaultWindow(t *testing.T) {
	assert.Equal(t, DefaultWindow, NewTracker(0).window)
}
