package features

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RugTracker/internal/domain/models"
)

func tick(id string, step int, mult, peak float64) models.TickObservation {
	return models.TickObservation{EpisodeID: id, Step: step, Multiplier: mult, Peak: peak}
}

func TestStreaks(t *testing.T) {
	e := NewEngine()

	// first tick has no prior price, return is zero
	snap := e.Update(tick("g1", 0, 1.0, 1.0), false)
	assert.Zero(t, snap.UpStreak)
	assert.Zero(t, snap.DownStreak)

	prices := []float64{1.1, 1.2, 1.3}
	for i, p := range prices {
		snap = e.Update(tick("g1", i+1, p, p), false)
	}
	assert.Equal(t, 3, snap.UpStreak)
	assert.Zero(t, snap.DownStreak)

	// flat tick leaves both streaks untouched
	snap = e.Update(tick("g1", 4, 1.3, 1.3), false)
	assert.Equal(t, 3, snap.UpStreak)
	assert.Zero(t, snap.DownStreak)

	// a down move flips the streaks
	snap = e.Update(tick("g1", 5, 1.2, 1.3), false)
	assert.Zero(t, snap.UpStreak)
	assert.Equal(t, 1, snap.DownStreak)
}

func TestResetOnEpisodeChange(t *testing.T) {
	e := NewEngine()
	for i := 0; i < 10; i++ {
		e.Update(tick("g1", i, 1.0+float64(i)*0.1, 2.0), false)
	}
	snap := e.Update(tick("g2", 0, 1.0, 1.0), false)
	assert.Equal(t, "g2", snap.EpisodeID)
	assert.Zero(t, snap.UpStreak)
	assert.Zero(t, snap.RetMean)
}

func TestHazardScaleBounds(t *testing.T) {
	e := NewEngine()
	var snap models.FeatureSnapshot
	// long up run inside an active regime: both dampeners apply but the
	// result stays inside the clamp
	p := 1.0
	for i := 0; i < 30; i++ {
		p *= 1.01
		snap = e.Update(tick("g1", i, p, p), true)
		assert.GreaterOrEqual(t, snap.HazardScale, 0.6)
		assert.LessOrEqual(t, snap.HazardScale, 1.5)
	}
	assert.InDelta(t, 0.85*0.92, snap.HazardScale, 1e-9)
}

func TestHazardScaleDownStreakLift(t *testing.T) {
	e := NewEngine()
	var snap models.FeatureSnapshot
	p := 10.0
	e.Update(tick("g1", 0, p, p), false)
	for i := 1; i <= 9; i++ {
		p *= 0.99
		snap = e.Update(tick("g1", i, p, 10.0), false)
	}
	require.GreaterOrEqual(t, snap.DownStreak, 8)
	assert.InDelta(t, 1.08, snap.HazardScale, 1e-9)
}

func TestDrawdownAndPeakDistance(t *testing.T) {
	e := NewEngine()
	e.Update(tick("g1", 0, 2.0, 2.0), false)
	snap := e.Update(tick("g1", 1, 1.0, 2.0), false)

	assert.InDelta(t, 0.5, snap.Drawdown, 1e-9)
	assert.InDelta(t, 2.0, snap.DistToPeak, 1e-9)
	assert.Equal(t, 1, snap.SincePeak)

	// a new high resets the peak step
	snap = e.Update(tick("g1", 2, 3.0, 3.0), false)
	assert.Zero(t, snap.SincePeak)
	assert.Zero(t, snap.Drawdown)
}

func TestQuietTailDampener(t *testing.T) {
	e := NewEngine()
	e.Update(tick("g1", 0, 4.0, 5.0), false)
	var snap models.FeatureSnapshot
	for i := 1; i <= 130; i++ {
		snap = e.Update(tick("g1", i, 4.0, 5.0), false)
	}
	// flat prices: sincePeak > 120 with near-zero vol
	require.Greater(t, snap.SincePeak, 120)
	require.Less(t, snap.RetStd, 0.02)
	assert.InDelta(t, 0.90, snap.HazardScale, 1e-9)
}
