// Package features maintains O(1)-updatable per-episode rolling statistics
// for the streaming tick feed.
package features

import (
	"math"

	"RugTracker/internal/domain/models"
)

const (
	ringSize   = 40
	emaAlpha10 = 0.2
	emaAlpha40 = 0.05

	scaleMin = 0.6
	scaleMax = 1.5
)

// Engine holds the per-episode feature state. It is reset, not recreated,
// whenever the episode id changes. Not safe for concurrent use; the tick
// pipeline serializes updates per episode.
type Engine struct {
	episodeID string
	lastPrice float64
	havePrice bool
	ema10     float64
	ema40     float64
	ring      [ringSize]float64
	ringLen   int
	ringPos   int
	upStreak  int
	dnStreak  int
	peakStep  int
}

func NewEngine() *Engine {
	e := &Engine{}
	e.reset("")
	return e
}

func (e *Engine) reset(episodeID string) {
	e.episodeID = episodeID
	e.lastPrice = 0
	e.havePrice = false
	e.ema10 = 1.0
	e.ema40 = 1.0
	e.ringLen = 0
	e.ringPos = 0
	e.upStreak = 0
	e.dnStreak = 0
	e.peakStep = 0
}

// Update folds one tick into the state and returns the feature snapshot.
// A tick for an unknown episode id implicitly starts a new episode.
func (e *Engine) Update(t models.TickObservation, regimeActive bool) models.FeatureSnapshot {
	if t.EpisodeID != e.episodeID {
		e.reset(t.EpisodeID)
	}

	price := math.Max(t.Multiplier, models.PriceFloor)
	if !e.havePrice {
		e.lastPrice = price
		e.havePrice = true
	}

	r := math.Log(price / e.lastPrice)
	e.push(r)
	e.lastPrice = price

	e.ema10 += emaAlpha10 * (price - e.ema10)
	e.ema40 += emaAlpha40 * (price - e.ema40)

	switch {
	case r > 0:
		e.upStreak++
		e.dnStreak = 0
	case r < 0:
		e.dnStreak++
		e.upStreak = 0
	}

	mean, std := e.ringStats()

	peak := math.Max(t.Peak, 1.0)
	drawdown := (math.Max(t.Peak, price) - price) / peak
	distToPeak := peak / math.Max(price, models.PriceFloor)
	if t.Peak == price {
		e.peakStep = t.Step
	}
	sincePeak := t.Step - e.peakStep

	scale := 1.0
	if regimeActive {
		scale *= 0.85
	}
	if sincePeak > 120 && std < 0.02 {
		scale *= 0.90
	}
	if e.upStreak >= 8 {
		scale *= 0.92
	}
	if e.dnStreak >= 8 {
		scale *= 1.08
	}
	scale = math.Min(math.Max(scale, scaleMin), scaleMax)

	return models.FeatureSnapshot{
		EpisodeID:   t.EpisodeID,
		Step:        t.Step,
		Price:       price,
		Peak:        t.Peak,
		EMA10:       e.ema10,
		EMA40:       e.ema40,
		RetMean:     mean,
		RetStd:      std,
		UpStreak:    e.upStreak,
		DownStreak:  e.dnStreak,
		Drawdown:    drawdown,
		DistToPeak:  distToPeak,
		SincePeak:   sincePeak,
		HazardScale: scale,
	}
}

func (e *Engine) push(r float64) {
	e.ring[e.ringPos] = r
	e.ringPos = (e.ringPos + 1) % ringSize
	if e.ringLen < ringSize {
		e.ringLen++
	}
}

// ringStats computes population mean/std over the current ring contents.
// O(window) with window <= 40, well inside the tick budget.
func (e *Engine) ringStats() (mean, std float64) {
	if e.ringLen == 0 {
		return 0, 0
	}
	sum := 0.0
	for i := 0; i < e.ringLen; i++ {
		sum += e.ring[i]
	}
	mean = sum / float64(e.ringLen)
	varSum := 0.0
	for i := 0; i < e.ringLen; i++ {
		d := e.ring[i] - mean
		varSum += d * d
	}
	return mean, math.Sqrt(varSum / float64(e.ringLen))
}
