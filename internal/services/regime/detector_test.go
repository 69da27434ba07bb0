package regime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// drive feeds ticks with a flat multiplier and a spiked peak so the
// peak/baseline ratio stays above the threshold.
func drive(d *Detector, from, to int) bool {
	active := false
	for s := from; s <= to; s++ {
		active = d.Update(s, 1.0, 10.0)
	}
	return active
}

func TestActivatesOnSustainedSpike(t *testing.T) {
	d := NewDetector(DefaultConfig())
	require.False(t, drive(d, 1, 9))
	assert.True(t, drive(d, 10, 10))
	assert.Equal(t, 10, d.FirstActivationStep())
}

func TestNoActivationAfterEarlyWindow(t *testing.T) {
	cfg := DefaultConfig()
	d := NewDetector(cfg)
	// spikes past the early window never count
	for s := cfg.EarlyWindowMax + 1; s < cfg.EarlyWindowMax+200; s++ {
		assert.False(t, d.Update(s, 1.0, 10.0))
	}
}

func TestSustainDecrementsOnQuietTick(t *testing.T) {
	d := NewDetector(DefaultConfig())
	drive(d, 1, 9)
	// a quiet tick bleeds one off the sustain counter
	d.Update(10, 1.0, 1.0)
	assert.False(t, d.Update(11, 1.0, 10.0))
	assert.True(t, d.Update(12, 1.0, 10.0))
}

func TestStaysActiveForEpisode(t *testing.T) {
	d := NewDetector(DefaultConfig())
	drive(d, 1, 10)
	require.True(t, d.Active())
	// peak collapsing back does not deactivate
	for s := 11; s < 400; s++ {
		assert.True(t, d.Update(s, 1.0, 1.0))
	}
}

func TestHazardScaleDecay(t *testing.T) {
	cfg := DefaultConfig()
	d := NewDetector(cfg)

	assert.InDelta(t, 1.0, d.HazardScale(50), 1e-12, "inactive detector never scales")

	drive(d, 1, 10)
	require.True(t, d.Active())

	assert.InDelta(t, 1.0, d.HazardScale(d.FirstActivationStep()), 1e-12)

	prev := 1.0
	for dt := 10; dt <= 600; dt += 10 {
		s := d.HazardScale(d.FirstActivationStep() + dt)
		assert.Less(t, s, prev)
		assert.Greater(t, s, cfg.ScaleFloor)
		prev = s
	}
	// far out the scale approaches the floor
	assert.InDelta(t, cfg.ScaleFloor, d.HazardScale(d.FirstActivationStep()+5000), 1e-6)
}

func TestResetClearsState(t *testing.T) {
	d := NewDetector(DefaultConfig())
	drive(d, 1, 10)
	require.True(t, d.Active())
	d.Reset()
	assert.False(t, d.Active())
	assert.InDelta(t, 1.0, d.HazardScale(100), 1e-12)
}
