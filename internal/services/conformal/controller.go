// Package conformal implements the online PI controller that keeps the
// prediction interval's empirical coverage near its target by adjusting the
// estimated miss-rate (alpha).
package conformal

import "math"

// Config holds the controller parameters. Alpha is the miss-rate estimate
// (1 - coverage) and is always clamped to [MinAlpha, MaxAlpha].
type Config struct {
	Target   float64 // desired coverage
	Kp       float64
	Ki       float64
	MinAlpha float64
	MaxAlpha float64
}

func DefaultConfig() Config {
	return Config{Target: 0.85, Kp: 0.6, Ki: 0.05, MinAlpha: 0.01, MaxAlpha: 0.5}
}

// Controller is cross-episode, long-lived state with a single owner; the
// tracker serializes updates on episode completion.
type Controller struct {
	cfg      Config
	alpha    float64
	integral float64
}

func NewController(cfg Config) *Controller {
	return &Controller{cfg: cfg, alpha: 1.0 - cfg.Target}
}

// Update feeds back whether the last prediction missed its band and returns
// the new alpha.
func (c *Controller) Update(lastMiss bool) float64 {
	e := -(1.0 - c.cfg.Target)
	if lastMiss {
		e += 1.0
	}
	c.integral += e
	c.alpha = c.clamp(c.alpha + c.cfg.Kp*e + c.cfg.Ki*c.integral)
	return c.alpha
}

// Widen maps the current alpha onto a tolerance-widening multiplier:
// more misses, wider bands.
func (c *Controller) Widen(tolerance int) int {
	w := int(math.Round(float64(tolerance) * (1.0 + 2.0*c.alpha)))
	if w < 1 {
		w = 1
	}
	return w
}

// Bump multiplies alpha by the given factor (clamped); used on a drift
// trigger to respond faster than the PI loop alone.
func (c *Controller) Bump(factor float64) {
	c.alpha = c.clamp(c.alpha * factor)
}

// Alpha returns the current miss-rate estimate.
func (c *Controller) Alpha() float64 { return c.alpha }

func (c *Controller) clamp(a float64) float64 {
	return math.Max(c.cfg.MinAlpha, math.Min(c.cfg.MaxAlpha, a))
}

// Snapshot and Restore support calibration state persistence.
type Snapshot struct {
	Alpha    float64 `json:"alpha"`
	Integral float64 `json:"integral"`
}

func (c *Controller) Snapshot() Snapshot {
	return Snapshot{Alpha: c.alpha, Integral: c.integral}
}

func (c *Controller) Restore(s Snapshot) {
	c.alpha = c.clamp(s.Alpha)
	c.integral = s.Integral
}
