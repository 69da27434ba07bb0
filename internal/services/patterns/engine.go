// Package patterns tracks cross-episode outcome patterns validated against
// historical play: post-max-payout recovery, ultra-short clustering, and
// momentum thresholds with moonshot-drought escalation. It supplies the
// legacy baseline estimate the orchestrator blends with the hazard fold,
// plus the clustering and drought signals consumed by the risk gate.
package patterns

import "RugTracker/internal/domain/models"

// Validated game constants.
const (
	MedianDuration = 205
	MeanDuration   = 225

	ultraShortWindow = 10
	historyCap       = 1000
)

// Baseline is the pattern ensemble's prediction for the current episode.
type Baseline struct {
	PredictedStep int
	Confidence    float64
	Tolerance     int
	Active        []string
}

// Engine is cross-episode, long-lived state with a single owner; the
// tracker serializes updates on episode completion.
type Engine struct {
	history []models.EpisodeRecord

	// Pattern 1: post-max-payout recovery.
	gamesSinceMaxPayout int
	recoveryActive      bool

	// Pattern 2: ultra-short clustering.
	recentUltraShorts []string
	lastEndPrice      float64
	clusteringActive  bool

	// Pattern 3: momentum thresholds with drought escalation.
	gamesSinceMoonshot int
}

func NewEngine() *Engine {
	return &Engine{
		gamesSinceMaxPayout: 999,
		gamesSinceMoonshot:  999,
	}
}

// AddCompleted folds one finished episode into the pattern states.
func (e *Engine) AddCompleted(rec models.EpisodeRecord) {
	e.history = append(e.history, rec)
	if len(e.history) > historyCap {
		e.history = e.history[len(e.history)-historyCap:]
	}

	if rec.IsMaxPayout {
		e.gamesSinceMaxPayout = 0
		e.recoveryActive = true
	} else {
		if e.gamesSinceMaxPayout < 999 {
			e.gamesSinceMaxPayout++
		}
		if e.gamesSinceMaxPayout > 3 {
			e.recoveryActive = false
		}
	}

	e.lastEndPrice = rec.EndPrice
	if rec.IsUltraShort {
		e.recentUltraShorts = append(e.recentUltraShorts, rec.EpisodeID)
		if len(e.recentUltraShorts) > ultraShortWindow {
			e.recentUltraShorts = e.recentUltraShorts[len(e.recentUltraShorts)-ultraShortWindow:]
		}
		e.clusteringActive = len(e.recentUltraShorts) >= 2
	} else {
		if len(e.recentUltraShorts) > 0 {
			e.recentUltraShorts = e.recentUltraShorts[1:]
		}
		if len(e.recentUltraShorts) < 2 {
			e.clusteringActive = false
		}
	}

	if rec.IsMoonshot {
		e.gamesSinceMoonshot = 0
	} else if e.gamesSinceMoonshot < 999 {
		e.gamesSinceMoonshot++
	}
}

// DroughtMultiplier maps games-since-moonshot onto the validated escalation
// bands.
func (e *Engine) DroughtMultiplier() float64 {
	switch {
	case e.gamesSinceMoonshot < 42:
		return 1.0
	case e.gamesSinceMoonshot < 63:
		return 1.2
	case e.gamesSinceMoonshot < 84:
		return 1.5
	default:
		return 2.0
	}
}

// DroughtPhase normalizes the drought depth into roughly [0,1] for the gate.
func (e *Engine) DroughtPhase() float64 {
	p := float64(e.gamesSinceMoonshot) / 84.0
	if p > 1 {
		p = 1
	}
	return p
}

// ClusterFactor is the gate's ultra-short clustering proxy.
func (e *Engine) ClusterFactor() float64 {
	return float64(len(e.recentUltraShorts)) / float64(ultraShortWindow)
}

// ClusteringActive reports whether ultra-short clustering is in effect.
func (e *Engine) ClusteringActive() bool { return e.clusteringActive }

// ContinuationProb returns the validated probability that a run at the
// current peak keeps going, drought-adjusted, with the matched threshold
// (8, 12, 20 or 0 when none).
func (e *Engine) ContinuationProb(peak float64) (prob float64, threshold int) {
	switch {
	case peak >= 20:
		prob, threshold = 0.500, 20
	case peak >= 12:
		prob, threshold = 0.230, 12
	case peak >= 8:
		prob, threshold = 0.244, 8
	default:
		return 0, 0
	}
	prob *= e.DroughtMultiplier()
	if prob > 0.95 {
		prob = 0.95
	}
	return prob, threshold
}

// UltraShortProb estimates the chance the next (or current, if early)
// episode ends ultra-short.
func (e *Engine) UltraShortProb() float64 {
	const base = 0.064
	switch {
	case e.lastEndPrice >= 0.015:
		return 0.081 // post-high-payout
	case e.clusteringActive:
		return base * 1.5
	case e.recoveryActive:
		return base * 1.2
	default:
		return base
	}
}

// Predict combines the active patterns into the legacy baseline estimate.
func (e *Engine) Predict(step int, peak float64) Baseline {
	var (
		preds   []float64
		weights []float64
		active  []string
	)

	if e.recoveryActive && e.gamesSinceMaxPayout <= 1 {
		preds = append(preds, MedianDuration*1.244)
		weights = append(weights, 0.85)
		active = append(active, "recovery")
	}

	if e.lastEndPrice >= 0.015 && step <= 5 {
		preds = append(preds, 8)
		weights = append(weights, 0.78)
		active = append(active, "ultra_short")
	}
	if e.clusteringActive && step <= 5 {
		preds = append(preds, 9)
		weights = append(weights, 0.7)
		active = append(active, "clustering")
	}

	if prob, threshold := e.ContinuationProb(peak); threshold > 0 && prob > 0.3 {
		mult := 1.2
		switch threshold {
		case 20:
			mult = 1.5
		case 12:
			mult = 1.3
		}
		preds = append(preds, float64(step)*mult)
		weights = append(weights, prob)
		active = append(active, "momentum")
	}

	if len(preds) == 0 {
		return Baseline{
			PredictedStep: MedianDuration,
			Confidence:    0.5,
			Tolerance:     75,
			Active:        []string{"baseline"},
		}
	}

	var sum, wsum float64
	for i := range preds {
		sum += preds[i] * weights[i]
		wsum += weights[i]
	}
	return Baseline{
		PredictedStep: int(sum / wsum),
		Confidence:    wsum / float64(len(weights)),
		Tolerance:     50,
		Active:        active,
	}
}

// HistoryLen reports how many completed episodes are retained.
func (e *Engine) HistoryLen() int { return len(e.history) }

// Recent returns up to n most recent completed episodes, newest last.
func (e *Engine) Recent(n int) []models.EpisodeRecord {
	if n <= 0 || n > len(e.history) {
		n = len(e.history)
	}
	out := make([]models.EpisodeRecord, n)
	copy(out, e.history[len(e.history)-n:])
	return out
}

// Snapshot and Restore support calibration state persistence.
type Snapshot struct {
	GamesSinceMaxPayout int      `json:"games_since_max_payout"`
	RecoveryActive      bool     `json:"recovery_active"`
	RecentUltraShorts   []string `json:"recent_ultra_shorts"`
	LastEndPrice        float64  `json:"last_end_price"`
	ClusteringActive    bool     `json:"clustering_active"`
	GamesSinceMoonshot  int      `json:"games_since_moonshot"`
}

func (e *Engine) Snapshot() Snapshot {
	return Snapshot{
		GamesSinceMaxPayout: e.gamesSinceMaxPayout,
		RecoveryActive:      e.recoveryActive,
		RecentUltraShorts:   append([]string(nil), e.recentUltraShorts...),
		LastEndPrice:        e.lastEndPrice,
		ClusteringActive:    e.clusteringActive,
		GamesSinceMoonshot:  e.gamesSinceMoonshot,
	}
}

func (e *Engine) Restore(s Snapshot) {
	e.gamesSinceMaxPayout = s.GamesSinceMaxPayout
	e.recoveryActive = s.RecoveryActive
	e.recentUltraShorts = append([]string(nil), s.RecentUltraShorts...)
	e.lastEndPrice = s.LastEndPrice
	e.clusteringActive = s.ClusteringActive
	e.gamesSinceMoonshot = s.GamesSinceMoonshot
}
