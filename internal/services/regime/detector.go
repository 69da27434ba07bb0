// Package regime detects a sustained early spike of the running peak over
// its trailing EMA baseline ("early-peak regime") and derives the hazard
// suppression applied while the regime holds.
package regime

import "math"

// Config holds the detector parameters; see DefaultConfig for the tuned
// values.
type Config struct {
	EarlyWindowMax  int     // spikes only count within the first N steps
	RatioThreshold  float64 // peak / EMA baseline ratio that counts as a spike
	MinSustainTicks int     // consecutive qualifying ticks before activation
	EMAAlpha        float64 // baseline EMA update rate
	ScaleFloor      float64 // asymptotic hazard scale while active
	DecayTau        float64 // decay constant of the scale, in ticks
}

func DefaultConfig() Config {
	return Config{
		EarlyWindowMax:  120,
		RatioThreshold:  3.0,
		MinSustainTicks: 10,
		EMAAlpha:        0.1,
		ScaleFloor:      0.75,
		DecayTau:        120,
	}
}

// Detector is the per-episode state machine. States are inactive/active;
// once active it stays active for the rest of the episode.
type Detector struct {
	cfg Config

	active        bool
	firstHitStep  int
	emaBaseline   float64
	sustainTicks  int
	haveActivated bool
}

func NewDetector(cfg Config) *Detector {
	d := &Detector{cfg: cfg}
	d.Reset()
	return d
}

// Reset clears the state for a new episode.
func (d *Detector) Reset() {
	d.active = false
	d.firstHitStep = 0
	d.emaBaseline = 1.0
	d.sustainTicks = 0
	d.haveActivated = false
}

// Update folds one tick into the detector and returns whether the regime
// is active after the update.
func (d *Detector) Update(step int, multiplier, peak float64) bool {
	a := d.cfg.EMAAlpha
	d.emaBaseline = (1-a)*d.emaBaseline + a*math.Max(1, multiplier)

	ratio := math.Max(1, peak) / math.Max(1, d.emaBaseline)
	if step <= d.cfg.EarlyWindowMax && ratio >= d.cfg.RatioThreshold {
		d.sustainTicks++
		if !d.active && d.sustainTicks >= d.cfg.MinSustainTicks {
			d.active = true
			d.firstHitStep = step
			d.haveActivated = true
		}
	} else if d.sustainTicks > 0 {
		d.sustainTicks--
	}
	return d.active
}

// Active reports whether the regime is currently active.
func (d *Detector) Active() bool { return d.active }

// FirstActivationStep returns the step at which the regime activated, valid
// only while Active.
func (d *Detector) FirstActivationStep() int { return d.firstHitStep }

// HazardScale returns the multiplicative hazard adjustment at the given
// step: 1.0 at activation, decaying toward ScaleFloor the longer the early
// spike holds. Returns 1.0 when inactive.
func (d *Detector) HazardScale(step int) float64 {
	if !d.active {
		return 1.0
	}
	dt := float64(step - d.firstHitStep)
	if dt < 0 {
		dt = 0
	}
	f := d.cfg.ScaleFloor
	return f + (1-f)*math.Exp(-dt/d.cfg.DecayTau)
}
