package usecase

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RugTracker/internal/domain/models"
	domsvc "RugTracker/internal/domain/service"
	"RugTracker/internal/services/conformal"
	"RugTracker/internal/services/drift"
	"RugTracker/internal/services/regime"
	"RugTracker/internal/services/survival"
)

func newTestTracker(builder domsvc.LogitBuilder) *Tracker {
	return NewTracker(DefaultTrackerConfig(), regime.DefaultConfig(), drift.DefaultConfig(), conformal.DefaultConfig(), builder)
}

// fixedLogits emits a constant hazard logit over the whole horizon.
type fixedLogits float64

func (f fixedLogits) BuildLogits(horizon int, _ survival.LogitInputs) []float64 {
	out := make([]float64, horizon)
	for i := range out {
		out[i] = float64(f)
	}
	return out
}

// brokenLogits forces the fold to fail so the fallback path runs.
type brokenLogits struct{}

func (brokenLogits) BuildLogits(int, survival.LogitInputs) []float64 { return nil }

func obsAt(id string, step int, mult, peak float64) models.TickObservation {
	return models.TickObservation{EpisodeID: id, Step: step, Multiplier: mult, Peak: peak}
}

func TestPredictionInvariants(t *testing.T) {
	tr := newTestTracker(nil)

	price := 1.0
	for step := 0; step <= 120; step++ {
		price *= 1.01
		res := tr.OnTick(obsAt("g1", step, price, price))

		assert.GreaterOrEqual(t, res.CoverageLower, step, "band never covers the past")
		assert.GreaterOrEqual(t, res.CoverageUpper, res.CoverageLower)
		assert.Zero(t, (res.CoverageUpper-res.CoverageLower)%40, "band is window aligned")
		assert.GreaterOrEqual(t, res.CoverageWins, 1)
		assert.Zero(t, res.Tolerance%20)
		assert.GreaterOrEqual(t, res.Confidence, 0.1)
		assert.LessOrEqual(t, res.Confidence, 0.95)
		assert.Equal(t, "g1", res.EpisodeID)
		assert.Equal(t, step, res.Step)
	}
}

func TestGateClampsEarlyPrediction(t *testing.T) {
	// near-zero hazard would predict far out; a hot early tape must pull the
	// prediction under the ultra-short cap instead
	tr := newTestTracker(fixedLogits(-30))

	var res models.PredictionResult
	price := 1.0
	for step := 0; step <= 5; step++ {
		res = tr.OnTick(obsAt("g1", step, price, price))
		price *= 2
	}
	assert.True(t, res.GateApplied)
	assert.LessOrEqual(t, res.PredictedStep, 10)
	assert.GreaterOrEqual(t, res.CoverageLower, res.Step)
}

func TestRegimeActivationWidensBand(t *testing.T) {
	// an early peak spike with a collapsing multiplier flips the detector and
	// must push the orchestrator onto the wide quantile with a wider band than
	// an identical flat tape
	spike := newTestTracker(nil)
	flat := newTestTracker(nil)

	var sres, fres models.PredictionResult
	for step := 1; step <= 60; step++ {
		sres = spike.OnTick(obsAt("g1", step, 1.0, 10.0))
		fres = flat.OnTick(obsAt("g1", step, 1.0, 1.0))
	}

	require.True(t, sres.RegimeActive)
	require.False(t, fres.RegimeActive)
	assert.InDelta(t, 0.7, sres.QuantileUsed, 1e-9)
	assert.InDelta(t, 0.5, fres.QuantileUsed, 1e-9)
	assert.Greater(t, sres.CoverageUpper-sres.CoverageLower, fres.CoverageUpper-fres.CoverageLower,
		"regime tape carries a wider interval")
}

func TestFallbackOnBrokenScorer(t *testing.T) {
	tr := newTestTracker(brokenLogits{})
	res := tr.OnTick(obsAt("g1", 10, 1.5, 1.6))

	assert.True(t, res.FallbackUsed)
	assert.Positive(t, res.PredictedStep)
	assert.GreaterOrEqual(t, res.CoverageLower, 10)
	assert.Zero(t, (res.CoverageUpper-res.CoverageLower)%40)
}

func TestSideBetPlaceThenCooldown(t *testing.T) {
	tr := newTestTracker(nil)

	// warm the feature state with a flat tape
	for step := 90; step <= 100; step++ {
		tr.OnTick(obsAt("g1", step, 2.0, 2.0))
	}

	sig := tr.OnSideBetQuery(obsAt("g1", 100, 2.0, 2.0))
	require.Equal(t, models.ActionPlace, sig.Action)
	assert.Equal(t, 139, sig.CoverageEnd)
	assert.Greater(t, sig.WinProb, sig.ThresholdUsed)
	assert.InDelta(t, 4.0*sig.WinProb-(1.0-sig.WinProb), sig.ExpectedValue, 1e-9)

	// active window plus cooldown: no re-recommendation through step 143
	for step := 101; step <= 143; step++ {
		sig = tr.OnSideBetQuery(obsAt("g1", step, 2.0, 2.0))
		assert.Equal(t, models.ActionWait, sig.Action, "step %d", step)
	}

	sig = tr.OnSideBetQuery(obsAt("g1", 144, 2.0, 2.0))
	assert.Equal(t, models.ActionPlace, sig.Action)
	assert.Equal(t, 183, sig.CoverageEnd)
}

func TestSideBetWaitsOnLowHazard(t *testing.T) {
	tr := newTestTracker(fixedLogits(-30))
	tr.OnTick(obsAt("g1", 50, 2.0, 2.0))

	sig := tr.OnSideBetQuery(obsAt("g1", 50, 2.0, 2.0))
	assert.Equal(t, models.ActionWait, sig.Action)
	assert.Negative(t, sig.ExpectedValue)
}

func TestMissesRaiseAlpha(t *testing.T) {
	tr := newTestTracker(nil)
	before := tr.Status().Alpha

	for i := 0; i < 20; i++ {
		id := fmt.Sprintf("g%d", i)
		tr.OnTick(obsAt(id, 10, 1.2, 1.3))
		tr.OnEpisodeComplete(models.EpisodeRecord{
			EpisodeID: id,
			FinalStep: 900,
			EndPrice:  0.001,
			PeakPrice: 1.3,
		})
	}
	assert.Greater(t, tr.Status().Alpha, before)
	assert.Equal(t, 20, tr.Status().GamesAnalyzed)
}

func TestEpisodeCompleteIdempotent(t *testing.T) {
	tr := newTestTracker(nil)
	tr.OnTick(obsAt("g1", 10, 1.2, 1.3))

	rec := models.EpisodeRecord{EpisodeID: "g1", FinalStep: 900, EndPrice: 0.001, PeakPrice: 1.3}
	tr.OnEpisodeComplete(rec)
	after := tr.Status().Alpha

	tr.OnEpisodeComplete(rec)
	assert.Equal(t, after, tr.Status().Alpha, "duplicate completion must not recount the miss")
	assert.Equal(t, 1, tr.Status().GamesAnalyzed)
}

func TestSnapshotRestore(t *testing.T) {
	tr := newTestTracker(nil)
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("g%d", i)
		tr.OnTick(obsAt(id, 10, 1.2, 1.3))
		tr.OnEpisodeComplete(models.EpisodeRecord{EpisodeID: id, FinalStep: 700, EndPrice: 0.001, PeakPrice: 1.3})
	}
	s := tr.Snapshot()

	tr2 := newTestTracker(nil)
	tr2.Restore(s)
	assert.Equal(t, tr.Status().Alpha, tr2.Status().Alpha)
	assert.Equal(t, tr.Status().DriftStat, tr2.Status().DriftStat)
}

func TestStatusTracksEpisode(t *testing.T) {
	tr := newTestTracker(nil)
	tr.OnTick(obsAt("g1", 0, 1.0, 1.0))
	tr.OnTick(obsAt("g1", 1, 1.1, 1.1))

	st := tr.Status()
	assert.Equal(t, "g1", st.EpisodeID)
	assert.EqualValues(t, 2, st.TicksProcessed)
	require.NotNil(t, st.LastPrediction)
	assert.Equal(t, 1, st.LastPrediction.Step)
}
