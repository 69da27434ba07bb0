package patterns

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RugTracker/internal/domain/models"
)

func rec(id string, finalStep int, endPrice, peak float64) models.EpisodeRecord {
	r := models.EpisodeRecord{EpisodeID: id, FinalStep: finalStep, EndPrice: endPrice, PeakPrice: peak}
	r.MarkPatterns()
	return r
}

func feedNormal(e *Engine, n int) {
	for i := 0; i < n; i++ {
		e.AddCompleted(rec(fmt.Sprintf("n%d", i), 200, 0.005, 3.0))
	}
}

func TestDroughtBands(t *testing.T) {
	e := NewEngine()
	e.AddCompleted(rec("moon", 400, 0.01, 60.0))
	assert.InDelta(t, 1.0, e.DroughtMultiplier(), 1e-9)

	feedNormal(e, 41)
	assert.InDelta(t, 1.0, e.DroughtMultiplier(), 1e-9)
	feedNormal(e, 1) // 42
	assert.InDelta(t, 1.2, e.DroughtMultiplier(), 1e-9)
	feedNormal(e, 21) // 63
	assert.InDelta(t, 1.5, e.DroughtMultiplier(), 1e-9)
	feedNormal(e, 21) // 84
	assert.InDelta(t, 2.0, e.DroughtMultiplier(), 1e-9)
	assert.InDelta(t, 1.0, e.DroughtPhase(), 1e-9)
}

func TestContinuationProb(t *testing.T) {
	e := NewEngine()
	e.AddCompleted(rec("moon", 400, 0.01, 60.0))

	p, th := e.ContinuationProb(5.0)
	assert.Zero(t, p)
	assert.Zero(t, th)

	p, th = e.ContinuationProb(9.0)
	assert.Equal(t, 8, th)
	assert.InDelta(t, 0.244, p, 1e-9)

	p, th = e.ContinuationProb(15.0)
	assert.Equal(t, 12, th)
	assert.InDelta(t, 0.230, p, 1e-9)

	p, th = e.ContinuationProb(25.0)
	assert.Equal(t, 20, th)
	assert.InDelta(t, 0.500, p, 1e-9)
}

func TestContinuationProbDroughtCap(t *testing.T) {
	e := NewEngine()
	// fresh engine starts deep in drought (multiplier 2.0)
	p, _ := e.ContinuationProb(25.0)
	assert.InDelta(t, 0.95, p, 1e-9, "0.5*2.0 capped at 0.95")

	p, _ = e.ContinuationProb(9.0)
	assert.InDelta(t, 0.488, p, 1e-9)
}

func TestUltraShortProbBranches(t *testing.T) {
	e := NewEngine()
	assert.InDelta(t, 0.064, e.UltraShortProb(), 1e-9)

	// high last payout dominates the other branches
	e.AddCompleted(rec("hi", 300, 0.02, 5.0))
	assert.InDelta(t, 0.081, e.UltraShortProb(), 1e-9)

	// two ultra-shorts in the window with a low last payout -> clustering
	e.AddCompleted(rec("u1", 5, 0.001, 1.5))
	e.AddCompleted(rec("u2", 7, 0.001, 1.5))
	require.True(t, e.ClusteringActive())
	assert.InDelta(t, 0.064*1.5, e.UltraShortProb(), 1e-9)
}

func TestUltraShortProbRecovery(t *testing.T) {
	e := NewEngine()
	e.AddCompleted(rec("max", 300, 0.02, 5.0))
	// next game with low payout: recovery still active, payout branch off
	e.AddCompleted(rec("n", 200, 0.001, 3.0))
	assert.InDelta(t, 0.064*1.2, e.UltraShortProb(), 1e-9)
}

func TestPredictRecovery(t *testing.T) {
	e := NewEngine()
	e.AddCompleted(rec("max", 300, 0.02, 5.0))
	e.AddCompleted(rec("n", 200, 0.001, 3.0))

	b := e.Predict(50, 2.0)
	assert.Contains(t, b.Active, "recovery")
	expected := float64(MedianDuration) * 1.244
	assert.Equal(t, int(expected), b.PredictedStep)
	assert.InDelta(t, 0.85, b.Confidence, 1e-9)
	assert.Equal(t, 50, b.Tolerance)
}

func TestPredictEarlyUltraShort(t *testing.T) {
	e := NewEngine()
	e.AddCompleted(rec("u1", 5, 0.001, 1.5))
	e.AddCompleted(rec("u2", 7, 0.001, 1.5))

	b := e.Predict(3, 1.2)
	assert.Contains(t, b.Active, "clustering")
	assert.Less(t, b.PredictedStep, 15)

	// past the early steps the clustering pattern no longer votes
	b = e.Predict(30, 1.2)
	assert.NotContains(t, b.Active, "clustering")
}

func TestPredictMomentum(t *testing.T) {
	e := NewEngine()
	// deep drought: continuation prob for peak>=20 is capped at 0.95 > 0.3
	b := e.Predict(100, 25.0)
	require.Contains(t, b.Active, "momentum")
	assert.Equal(t, 150, b.PredictedStep)
}

func TestPredictBaselineFallback(t *testing.T) {
	e := NewEngine()
	e.AddCompleted(rec("moon", 400, 0.01, 60.0))
	b := e.Predict(50, 2.0)
	assert.Equal(t, []string{"baseline"}, b.Active)
	assert.Equal(t, MedianDuration, b.PredictedStep)
	assert.InDelta(t, 0.5, b.Confidence, 1e-9)
	assert.Equal(t, 75, b.Tolerance)
}

func TestHistoryCapAndRecent(t *testing.T) {
	e := NewEngine()
	feedNormal(e, historyCap+50)
	assert.Equal(t, historyCap, e.HistoryLen())

	last := e.Recent(3)
	require.Len(t, last, 3)
	assert.Equal(t, fmt.Sprintf("n%d", historyCap+49), last[2].EpisodeID)
}

func TestSnapshotRoundTrip(t *testing.T) {
	e := NewEngine()
	e.AddCompleted(rec("max", 300, 0.02, 5.0))
	e.AddCompleted(rec("u1", 5, 0.001, 1.5))
	e.AddCompleted(rec("u2", 7, 0.001, 1.5))
	s := e.Snapshot()

	e2 := NewEngine()
	e2.Restore(s)
	assert.Equal(t, e.UltraShortProb(), e2.UltraShortProb())
	assert.Equal(t, e.DroughtMultiplier(), e2.DroughtMultiplier())
	assert.Equal(t, e.ClusteringActive(), e2.ClusteringActive())
}
