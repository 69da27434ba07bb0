package survival

import (
	"math"

	"RugTracker/internal/domain/models"
)

// LogitInputs carries the per-tick signals the scorer turns into a
// hazard-logit sequence.
type LogitInputs struct {
	Step        int
	Features    models.FeatureSnapshot
	RegimeScale float64 // early-peak regime hazard scale, 1.0 when inactive
	Momentum    float64 // pattern continuation probability in [0,1]
	Drought     float64 // moonshot drought multiplier, >= 1
}

// HeuristicLogits is the default hazard scorer: a decaying base term, a
// volatility (stability) term from the feature engine, and a momentum term
// from the pattern ensemble, each shifted by ln(hazardScale). The constants
// are tuned defaults, not a contract; any scorer producing logits for the
// fold can replace it.
type HeuristicLogits struct {
	BaseInit  float64 // near-term base logit
	BaseFloor float64 // asymptotic base logit
	BaseTau   float64 // decay constant of the base term, in ticks
	VolGain   float64 // hazard lift per unit of return std
	MomGain   float64 // hazard suppression per unit of continuation prob
}

// NewHeuristicLogits returns the scorer with defaults calibrated around a
// 205-tick median episode.
func NewHeuristicLogits() *HeuristicLogits {
	return &HeuristicLogits{
		BaseInit:  -4.4,
		BaseFloor: -5.5,
		BaseTau:   80,
		VolGain:   18,
		MomGain:   1.2,
	}
}

// BuildLogits produces a horizon-length logit sequence for the fold.
func (b *HeuristicLogits) BuildLogits(horizon int, in LogitInputs) []float64 {
	if horizon <= 0 {
		return nil
	}
	if horizon > MaxHorizon {
		horizon = MaxHorizon
	}

	scale := in.Features.HazardScale * in.RegimeScale
	if scale < 1e-3 {
		scale = 1e-3
	}
	shift := math.Log(scale)
	if in.Drought > 1 {
		shift += math.Log(in.Drought)
	}

	stability := b.VolGain * in.Features.RetStd
	momentum := b.MomGain * in.Momentum

	out := make([]float64, horizon)
	for t := 1; t <= horizon; t++ {
		base := b.BaseFloor + (b.BaseInit-b.BaseFloor)*math.Exp(-float64(t)/b.BaseTau)
		out[t-1] = base + stability - momentum + shift
	}
	return out
}
