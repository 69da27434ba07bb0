package models

import "time"

// PriceFloor is the smallest multiplier the engine will accept; non-positive
// upstream prices are clamped here instead of rejected.
const PriceFloor = 1e-6

// TickObservation is a single game-state frame from the upstream feed.
type TickObservation struct {
	EpisodeID  string  `json:"episode_id"`
	Step       int     `json:"step"` // monotonic tick counter, >= 0
	Multiplier float64 `json:"multiplier"`
	Peak       float64 `json:"peak"` // running peak multiplier
	Rugged     bool    `json:"rugged,omitempty"`
}

// Clamped returns a copy with price and peak pulled up to safe floors.
func (t TickObservation) Clamped() TickObservation {
	if t.Multiplier < PriceFloor {
		t.Multiplier = PriceFloor
	}
	if t.Peak < t.Multiplier {
		t.Peak = t.Multiplier
	}
	return t
}

// EpisodeRecord is a completed game, the unit of cross-episode learning.
type EpisodeRecord struct {
	EpisodeID string    `json:"episode_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	FinalStep int       `json:"final_step"`
	EndPrice  float64   `json:"end_price"`
	PeakPrice float64   `json:"peak_price"`
	PeakStep  int       `json:"peak_step"`

	// Pattern markers, derived at completion.
	IsUltraShort bool `json:"is_ultra_short"` // final_step <= 10
	IsMaxPayout  bool `json:"is_max_payout"`  // end_price >= 0.019
	IsMoonshot   bool `json:"is_moonshot"`    // peak_price >= 50
}

// MarkPatterns fills the derived markers from the raw outcome fields.
func (e *EpisodeRecord) MarkPatterns() {
	e.IsUltraShort = e.FinalStep <= 10
	e.IsMaxPayout = e.EndPrice >= 0.019
	e.IsMoonshot = e.PeakPrice >= 50.0
}
