package survival

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSigmoidStable(t *testing.T) {
	assert.InDelta(t, 0.5, Sigmoid(0), 1e-12)
	assert.InDelta(t, 1.0, Sigmoid(800), 1e-12)
	assert.InDelta(t, 0.0, Sigmoid(-800), 1e-12)
	assert.False(t, math.IsNaN(Sigmoid(-1e6)))
	assert.False(t, math.IsNaN(Sigmoid(1e6)))
}

func TestFoldCDFMonotone(t *testing.T) {
	logits := make([]float64, 200)
	for i := range logits {
		logits[i] = -4.0
	}
	c := Fold(logits)
	require.Len(t, c.CDF, 200)

	prev := 0.0
	for i, f := range c.CDF {
		assert.GreaterOrEqual(t, f, prev, "cdf must not decrease at %d", i)
		assert.LessOrEqual(t, f, 1.0)
		prev = f
	}
	// pmf mass plus tail accounts for everything
	sum := c.Tail
	for _, p := range c.PMF {
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestFoldHigherHazardEndsSooner(t *testing.T) {
	low := make([]float64, 300)
	high := make([]float64, 300)
	for i := range low {
		low[i] = -5.0
		high[i] = -3.0
	}
	cl := Fold(low)
	ch := Fold(high)
	assert.Less(t, ch.Quantile(0.5), cl.Quantile(0.5))
	assert.Less(t, ch.Expected, cl.Expected)
}

func TestQuantileOrdering(t *testing.T) {
	logits := make([]float64, 400)
	for i := range logits {
		logits[i] = -4.4
	}
	c := Fold(logits)
	q10 := c.Quantile(0.10)
	q50 := c.Quantile(0.50)
	q90 := c.Quantile(0.90)
	assert.LessOrEqual(t, q10, q50)
	assert.LessOrEqual(t, q50, q90)
	assert.GreaterOrEqual(t, q10, 1)
}

func TestQuantileNeverReached(t *testing.T) {
	// Nearly zero hazard: mass never reaches the quantile.
	logits := []float64{-30, -30, -30}
	c := Fold(logits)
	assert.Equal(t, 3, c.Quantile(0.9))
}

func TestFoldHorizonCap(t *testing.T) {
	logits := make([]float64, MaxHorizon+500)
	c := Fold(logits)
	assert.Len(t, c.CDF, MaxHorizon)
}

func TestProbWithin(t *testing.T) {
	logits := make([]float64, 100)
	for i := range logits {
		logits[i] = -2.0
	}
	c := Fold(logits)
	assert.Equal(t, c.CDF[39], c.ProbWithin(40))
	assert.Equal(t, c.CDF[99], c.ProbWithin(500))
	assert.Zero(t, c.ProbWithin(0))
}

func TestBuildLogitsShape(t *testing.T) {
	b := NewHeuristicLogits()
	in := LogitInputs{RegimeScale: 1.0, Drought: 1.0}
	in.Features.HazardScale = 1.0

	out := b.BuildLogits(300, in)
	require.Len(t, out, 300)
	// base decays toward the floor, so logits decrease over the horizon
	assert.Greater(t, out[0], out[299])

	// regime suppression lowers every logit
	in.RegimeScale = 0.75
	suppressed := b.BuildLogits(300, in)
	for i := range out {
		assert.Less(t, suppressed[i], out[i])
	}
}

func TestBuildLogitsDroughtLifts(t *testing.T) {
	b := NewHeuristicLogits()
	in := LogitInputs{RegimeScale: 1.0, Drought: 1.0}
	in.Features.HazardScale = 1.0
	base := b.BuildLogits(50, in)

	in.Drought = 2.0
	lifted := b.BuildLogits(50, in)
	for i := range base {
		assert.Greater(t, lifted[i], base[i])
	}
}
