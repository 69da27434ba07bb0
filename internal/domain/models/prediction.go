package models

import "time"

// Side-bet actions.
const (
	ActionPlace = "PLACE"
	ActionWait  = "WAIT"
)

// PredictionResult is the per-tick output of the orchestrator. Plain and
// serializable; recomputed every tick, never mutated after construction.
type PredictionResult struct {
	EpisodeID     string    `json:"episode_id"`
	Step          int       `json:"step"`
	PredictedStep int       `json:"predicted_step"`
	Tolerance     int       `json:"tolerance"`
	Confidence    float64   `json:"confidence"` // in [0,1]
	CoverageLower int       `json:"coverage_lower"`
	CoverageUpper int       `json:"coverage_upper"`
	CoverageWins  int       `json:"coverage_windows"` // ceil(width/40), min 1
	QuantileUsed  float64   `json:"quantile_used"`
	GateApplied   bool      `json:"gate_applied"`
	RegimeActive  bool      `json:"regime_active"`
	FallbackUsed  bool      `json:"fallback_used"`
	Timestamp     time.Time `json:"timestamp"`
}

// SideBetSignal is the per-tick fixed-payout wager recommendation.
type SideBetSignal struct {
	EpisodeID     string    `json:"episode_id"`
	Step          int       `json:"step"`
	Action        string    `json:"action"` // PLACE | WAIT
	WinProb       float64   `json:"win_probability"`
	ExpectedValue float64   `json:"expected_value"`
	Confidence    float64   `json:"confidence"`
	ThresholdUsed float64   `json:"threshold_used"`
	RegimeActive  bool      `json:"regime_active"`
	CoverageEnd   int       `json:"coverage_end_step,omitempty"` // placement step + horizon - 1
	Timestamp     time.Time `json:"timestamp"`
}

// FeatureSnapshot is the feature engine's per-tick view, exposed for the
// status API and archived alongside predictions.
type FeatureSnapshot struct {
	EpisodeID   string  `json:"episode_id"`
	Step        int     `json:"step"`
	Price       float64 `json:"price"`
	Peak        float64 `json:"peak"`
	EMA10       float64 `json:"ema10"`
	EMA40       float64 `json:"ema40"`
	RetMean     float64 `json:"r_mean40"`
	RetStd      float64 `json:"r_std40"`
	UpStreak    int     `json:"up_streak"`
	DownStreak  int     `json:"down_streak"`
	Drawdown    float64 `json:"drawdown"`
	DistToPeak  float64 `json:"dist_to_peak"`
	SincePeak   int     `json:"since_peak"`
	HazardScale float64 `json:"hazard_scale"`
}
