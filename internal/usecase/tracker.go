package usecase

import (
	"fmt"
	"math"
	"sync"
	"time"

	"RugTracker/internal/domain/models"
	domsvc "RugTracker/internal/domain/service"
	"RugTracker/internal/services/conformal"
	"RugTracker/internal/services/drift"
	"RugTracker/internal/services/features"
	"RugTracker/internal/services/gate"
	"RugTracker/internal/services/patterns"
	"RugTracker/internal/services/regime"
	"RugTracker/internal/services/survival"
)

// TrackerConfig collects the orchestration parameters; defaults mirror the
// validated production tuning.
type TrackerConfig struct {
	Horizon          int     // logit horizon folded per prediction
	BaseTolerance    int     // minimum tolerance before widening
	SpreadWide       int     // q90-q10 spread that switches to the wide quantile
	QuantileDefault  float64 // median
	QuantileWide     float64 // used on wide spread or active regime
	EarlyBlendMax    int     // hazard-heavy blend while step <= this
	HazardWeightMax  float64 // blend weight of the hazard quantile early
	HazardWeightMin  float64 // blend weight of the hazard quantile late
	GateMaxStep      int     // gate clamp only applies while step < this
	SideBetWindow    int     // side-bet horizon in ticks
	SideBetCooldown  int     // ticks after coverage end before re-recommending
	SideBetThreshold float64 // base p_win threshold
	PayoutNet        float64 // net win multiple of a 5:1 wager
	DriftBump        float64 // multiplicative alpha bump on drift
}

func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		Horizon:          300,
		BaseTolerance:    50,
		SpreadWide:       160,
		QuantileDefault:  0.5,
		QuantileWide:     0.7,
		EarlyBlendMax:    25,
		HazardWeightMax:  0.6,
		HazardWeightMin:  0.4,
		GateMaxStep:      25,
		SideBetWindow:    40,
		SideBetCooldown:  4,
		SideBetThreshold: 0.20,
		PayoutNet:        4.0,
		DriftBump:        1.25,
	}
}

// Tracker fuses the calibration core into per-tick predictions and side-bet
// signals. All entry points serialize on one mutex: per-episode state has
// read-modify-write dependencies across the whole tick pipeline, and the
// cross-episode calibration state shares the same owner.
type Tracker struct {
	mu  sync.Mutex
	cfg TrackerConfig

	feat      *features.Engine
	regime    *regime.Detector
	drift     *drift.Detector
	conformal *conformal.Controller
	gate      *gate.UltraShortGate
	patterns  *patterns.Engine
	logits    domsvc.LogitBuilder

	episodeID     string
	startTime     time.Time
	lastSnapshot  models.FeatureSnapshot
	lastReturn    float64
	lastPredicted int
	lastTolerance int
	completedIDs  map[string]struct{}

	// Global side-bet gating: one recommendation stream across episodes.
	sideBetActiveUntil int
	sideBetPlaced      bool

	lastPrediction *models.PredictionResult
	lastSideBet    *models.SideBetSignal
	ticksProcessed uint64
	driftEvents    uint64
}

// NewTracker wires the core components together. Pass nil for logitBuilder
// to use the default heuristic scorer.
func NewTracker(cfg TrackerConfig, regimeCfg regime.Config, driftCfg drift.Config, confCfg conformal.Config, logitBuilder domsvc.LogitBuilder) *Tracker {
	if logitBuilder == nil {
		logitBuilder = survival.NewHeuristicLogits()
	}
	return &Tracker{
		cfg:          cfg,
		feat:         features.NewEngine(),
		regime:       regime.NewDetector(regimeCfg),
		drift:        drift.NewDetector(driftCfg),
		conformal:    conformal.NewController(confCfg),
		gate:         gate.NewUltraShortGate(),
		patterns:     patterns.NewEngine(),
		logits:       logitBuilder,
		completedIDs: make(map[string]struct{}),
	}
}

var _ domsvc.Predictor = (*Tracker)(nil)

// OnTick implements the per-tick fusion. It never returns an error; any
// internal failure degrades to the pattern baseline with FallbackUsed set.
func (t *Tracker) OnTick(obs models.TickObservation) models.PredictionResult {
	t.mu.Lock()
	defer t.mu.Unlock()

	obs = obs.Clamped()
	t.ensureEpisode(obs)
	t.ticksProcessed++

	active := t.regime.Update(obs.Step, obs.Multiplier, obs.Peak)
	prevMean := t.lastSnapshot.RetMean
	snap := t.feat.Update(obs, active)
	t.lastReturn = snap.RetMean - prevMean
	t.lastSnapshot = snap

	base := t.patterns.Predict(obs.Step, obs.Peak)

	res, err := t.fusePrediction(obs, snap, base, active)
	if err != nil {
		res = t.fallback(obs, base, active)
	}

	t.lastPredicted = res.PredictedStep
	t.lastTolerance = res.Tolerance
	t.lastPrediction = &res
	return res
}

// fusePrediction is the happy path; it returns an error instead of an
// unusable result so OnTick can fall back.
func (t *Tracker) fusePrediction(obs models.TickObservation, snap models.FeatureSnapshot, base patterns.Baseline, regimeActive bool) (models.PredictionResult, error) {
	momentum, _ := t.patterns.ContinuationProb(obs.Peak)
	curve := survival.Fold(t.logits.BuildLogits(t.cfg.Horizon, survival.LogitInputs{
		Step:        obs.Step,
		Features:    snap,
		RegimeScale: t.regime.HazardScale(obs.Step),
		Momentum:    momentum,
		Drought:     t.patterns.DroughtMultiplier(),
	}))
	if len(curve.CDF) == 0 {
		return models.PredictionResult{}, fmt.Errorf("empty fold")
	}
	last := curve.CDF[len(curve.CDF)-1]
	if math.IsNaN(last) || math.IsInf(last, 0) {
		return models.PredictionResult{}, fmt.Errorf("unstable fold")
	}

	q10 := curve.Quantile(0.10)
	q90 := curve.Quantile(0.90)
	spread := q90 - q10

	qt := t.cfg.QuantileDefault
	if spread > t.cfg.SpreadWide || regimeActive {
		qt = t.cfg.QuantileWide
	}
	hazardStep := obs.Step + curve.Quantile(qt)

	// Hazard-heavy blend early in the episode, baseline-heavy later.
	hw := t.cfg.HazardWeightMax
	if obs.Step > t.cfg.EarlyBlendMax {
		hw = t.cfg.HazardWeightMin
	}
	predicted := int(math.Round(hw*float64(hazardStep) + (1-hw)*float64(base.PredictedStep)))
	if predicted < obs.Step {
		predicted = obs.Step
	}

	gateApplied := false
	if obs.Step < t.cfg.GateMaxStep {
		sig := gate.Signals{
			Velocity:      snap.RetMean * 10,
			Acceleration:  t.lastReturn * 10,
			ClusterFactor: t.patterns.ClusterFactor(),
			DroughtPhase:  t.patterns.DroughtPhase(),
		}
		if t.gate.Trigger(sig) || t.patterns.UltraShortProb() > 0.6 {
			cap := obs.Step + 5
			if cap > 10 {
				cap = 10
			}
			if predicted > cap {
				predicted = cap
				gateApplied = true
			}
		}
	}

	tolerance := t.cfg.BaseTolerance
	if half := spread / 2; half > tolerance {
		tolerance = half
	}
	tolerance = t.conformal.Widen(tolerance)

	res := t.quantize(obs.EpisodeID, obs.Step, predicted, tolerance)
	res.Confidence = t.confidence(base.Confidence, regimeActive)
	res.QuantileUsed = qt
	res.GateApplied = gateApplied
	res.RegimeActive = regimeActive
	return res, nil
}

// quantize aligns the interval to 40-tick windows and enforces causality:
// the band never claims ticks already in the past.
func (t *Tracker) quantize(episodeID string, step, predicted, tolerance int) models.PredictionResult {
	tolerance -= tolerance % 20
	lower := predicted - tolerance
	if lower < step {
		lower = step
	}
	upper := predicted + tolerance
	if upper < lower {
		upper = lower
	}
	if w := (upper - lower) % 40; w != 0 {
		upper += 40 - w
	}
	windows := (upper - lower) / 40
	if windows < 1 {
		windows = 1
	}
	return models.PredictionResult{
		EpisodeID:     episodeID,
		Step:          step,
		PredictedStep: predicted,
		Tolerance:     tolerance,
		CoverageLower: lower,
		CoverageUpper: upper,
		CoverageWins:  windows,
		Timestamp:     time.Now().UTC(),
	}
}

func (t *Tracker) confidence(baseConf float64, regimeActive bool) float64 {
	c := 0.5*baseConf + 0.5*(1.0-t.conformal.Alpha())
	if regimeActive {
		c += 0.05
	}
	return math.Max(0.1, math.Min(0.95, c))
}

// fallback emits the pattern baseline alone, still quantized and widened so
// every result carries a usable coverage band.
func (t *Tracker) fallback(obs models.TickObservation, base patterns.Baseline, regimeActive bool) models.PredictionResult {
	predicted := base.PredictedStep
	if predicted < obs.Step {
		predicted = obs.Step
	}
	res := t.quantize(obs.EpisodeID, obs.Step, predicted, t.conformal.Widen(base.Tolerance))
	res.Confidence = t.confidence(base.Confidence, regimeActive)
	res.QuantileUsed = t.cfg.QuantileDefault
	res.RegimeActive = regimeActive
	res.FallbackUsed = true
	return res
}

// OnSideBetQuery evaluates the fixed-payout wager over the side-bet window.
func (t *Tracker) OnSideBetQuery(obs models.TickObservation) models.SideBetSignal {
	t.mu.Lock()
	defer t.mu.Unlock()

	obs = obs.Clamped()
	t.ensureEpisode(obs)

	regimeActive := t.regime.Active()
	momentum, _ := t.patterns.ContinuationProb(obs.Peak)
	curve := survival.Fold(t.logits.BuildLogits(t.cfg.SideBetWindow, survival.LogitInputs{
		Step:        obs.Step,
		Features:    t.lastSnapshot,
		RegimeScale: t.regime.HazardScale(obs.Step),
		Momentum:    momentum,
		Drought:     t.patterns.DroughtMultiplier(),
	}))
	pWin := curve.ProbWithin(t.cfg.SideBetWindow)
	ev := t.cfg.PayoutNet*pWin - (1.0 - pWin)

	threshold := t.cfg.SideBetThreshold
	if regimeActive {
		threshold += 0.02
	}
	if obs.Peak >= 10 {
		threshold += 0.03
	}

	sig := models.SideBetSignal{
		EpisodeID:     obs.EpisodeID,
		Step:          obs.Step,
		Action:        models.ActionWait,
		WinProb:       pWin,
		ExpectedValue: ev,
		Confidence:    pWin,
		ThresholdUsed: threshold,
		RegimeActive:  regimeActive,
		Timestamp:     time.Now().UTC(),
	}

	eligible := !t.sideBetPlaced || obs.Step > t.sideBetActiveUntil+t.cfg.SideBetCooldown
	if pWin > threshold && eligible {
		sig.Action = models.ActionPlace
		sig.CoverageEnd = obs.Step + t.cfg.SideBetWindow - 1
		t.sideBetPlaced = true
		t.sideBetActiveUntil = sig.CoverageEnd
	}

	t.lastSideBet = &sig
	return sig
}

// OnEpisodeComplete feeds the realized outcome into the calibration state.
// Duplicate completions for the same episode are ignored so a retried event
// cannot double-count a miss.
func (t *Tracker) OnEpisodeComplete(rec models.EpisodeRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, dup := t.completedIDs[rec.EpisodeID]; dup {
		return
	}
	t.completedIDs[rec.EpisodeID] = struct{}{}
	if len(t.completedIDs) > 4096 {
		t.completedIDs = map[string]struct{}{rec.EpisodeID: {}}
	}

	rec.MarkPatterns()
	t.patterns.AddCompleted(rec)

	if t.lastPredicted > 0 {
		err := math.Abs(float64(t.lastPredicted - rec.FinalStep))
		miss := err > float64(t.lastTolerance)
		t.conformal.Update(miss)
		// normalized so the detector thresholds are duration-free
		if t.drift.Update(err / patterns.MedianDuration) {
			t.driftEvents++
			t.conformal.Bump(t.cfg.DriftBump)
		}
	}

	t.lastPredicted = 0
	t.lastTolerance = 0
}

// ensureEpisode resets per-episode state when a tick arrives for an episode
// we are not currently tracking; that is an implicit new-episode start, not
// an error.
func (t *Tracker) ensureEpisode(obs models.TickObservation) {
	if obs.EpisodeID == t.episodeID {
		return
	}
	t.episodeID = obs.EpisodeID
	t.startTime = time.Now().UTC()
	t.regime.Reset()
	t.lastSnapshot = models.FeatureSnapshot{}
	t.lastReturn = 0
}

// Status is the dashboard view served by the HTTP API.
type Status struct {
	EpisodeID      string                   `json:"episode_id"`
	TicksProcessed uint64                   `json:"ticks_processed"`
	Alpha          float64                  `json:"alpha"`
	DriftStat      float64                  `json:"drift_stat"`
	DriftEvents    uint64                   `json:"drift_events"`
	RegimeActive   bool                     `json:"regime_active"`
	GamesAnalyzed  int                      `json:"games_analyzed"`
	Features       models.FeatureSnapshot   `json:"features"`
	LastPrediction *models.PredictionResult `json:"last_prediction,omitempty"`
	LastSideBet    *models.SideBetSignal    `json:"last_side_bet,omitempty"`
}

func (t *Tracker) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Status{
		EpisodeID:      t.episodeID,
		TicksProcessed: t.ticksProcessed,
		Alpha:          t.conformal.Alpha(),
		DriftStat:      t.drift.Stat(),
		DriftEvents:    t.driftEvents,
		RegimeActive:   t.regime.Active(),
		GamesAnalyzed:  t.patterns.HistoryLen(),
		Features:       t.lastSnapshot,
		LastPrediction: t.lastPrediction,
		LastSideBet:    t.lastSideBet,
	}
}

// RecentEpisodes exposes the retained history for the API.
func (t *Tracker) RecentEpisodes(n int) []models.EpisodeRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.patterns.Recent(n)
}

// CalibrationSnapshot bundles the long-lived calibration state for the
// state store.
type CalibrationSnapshot struct {
	Conformal conformal.Snapshot `json:"conformal"`
	Drift     drift.Snapshot     `json:"drift"`
	Patterns  patterns.Snapshot  `json:"patterns"`
	SavedAt   time.Time          `json:"saved_at"`
}

func (t *Tracker) Snapshot() CalibrationSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return CalibrationSnapshot{
		Conformal: t.conformal.Snapshot(),
		Drift:     t.drift.Snapshot(),
		Patterns:  t.patterns.Snapshot(),
		SavedAt:   time.Now().UTC(),
	}
}

func (t *Tracker) Restore(s CalibrationSnapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.conformal.Restore(s.Conformal)
	t.drift.Restore(s.Drift)
	t.patterns.Restore(s.Patterns)
}
