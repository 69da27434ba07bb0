package service

import (
	"RugTracker/internal/domain/models"
	"RugTracker/internal/services/survival"
)

// Predictor is the tick-facing contract of the calibration core.
type Predictor interface {
	// OnTick folds one observation in and returns the window-aligned,
	// causally valid prediction. Never returns an error: internal failures
	// degrade to the legacy baseline with FallbackUsed set.
	OnTick(t models.TickObservation) models.PredictionResult

	// OnSideBetQuery evaluates the fixed-payout wager for the current tick.
	OnSideBetQuery(t models.TickObservation) models.SideBetSignal

	// OnEpisodeComplete feeds the realized outcome back into the
	// cross-episode calibration state. Idempotent per episode id.
	OnEpisodeComplete(rec models.EpisodeRecord)
}

// LogitBuilder produces the hazard-logit sequence consumed by the survival
// fold. The default heuristic scorer is replaceable by a learned one; only
// this signature is the contract.
type LogitBuilder interface {
	BuildLogits(horizon int, in survival.LogitInputs) []float64
}
