package drift

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStableStreamNoFire(t *testing.T) {
	d := NewDetector(DefaultConfig())
	for i := 0; i < 500; i++ {
		assert.False(t, d.Update(0.04))
	}
}

func TestLevelShiftFiresAndResets(t *testing.T) {
	d := NewDetector(DefaultConfig())
	for i := 0; i < 300; i++ {
		assert.False(t, d.Update(0.1))
	}
	fired := false
	// sustained error jump; the slow running mean lets the statistic grow
	for i := 0; i < 300 && !fired; i++ {
		fired = d.Update(1.0)
	}
	assert.True(t, fired)
	// detector re-armed
	assert.Zero(t, d.Stat())
}

func TestSnapshotRoundTrip(t *testing.T) {
	d := NewDetector(DefaultConfig())
	for i := 0; i < 20; i++ {
		d.Update(0.02 * float64(i))
	}
	s := d.Snapshot()

	d2 := NewDetector(DefaultConfig())
	d2.Restore(s)
	assert.Equal(t, d.Stat(), d2.Stat())
}
