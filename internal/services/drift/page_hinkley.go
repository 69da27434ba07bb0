// Package drift provides a Page-Hinkley change detector over the stream of
// absolute prediction errors.
package drift

// Config holds the Page-Hinkley parameters.
type Config struct {
	Delta float64 // magnitude tolerance subtracted from each deviation
	Lam   float64 // detection threshold on the PH statistic
	Alpha float64 // running-mean update rate
}

func DefaultConfig() Config {
	return Config{Delta: 0.005, Lam: 50, Alpha: 0.01}
}

// Detector keeps a single running statistic; it lives across episodes and
// resets itself when it fires.
type Detector struct {
	cfg    Config
	mean   float64
	cum    float64
	minCum float64
}

func NewDetector(cfg Config) *Detector {
	return &Detector{cfg: cfg}
}

// Update folds one observation in and reports whether a change is
// suspected. On detection the accumulators reset so the detector re-arms.
func (d *Detector) Update(x float64) bool {
	d.mean += d.cfg.Alpha * (x - d.mean)
	d.cum += x - d.mean - d.cfg.Delta
	if d.cum < d.minCum {
		d.minCum = d.cum
	}
	if d.cum-d.minCum > d.cfg.Lam {
		d.Reset()
		return true
	}
	return false
}

// Reset clears the accumulators.
func (d *Detector) Reset() {
	d.mean = 0
	d.cum = 0
	d.minCum = 0
}

// Stat returns the current PH statistic, exposed for the status API.
func (d *Detector) Stat() float64 { return d.cum - d.minCum }

// Snapshot and Restore support calibration state persistence.
type Snapshot struct {
	Mean   float64 `json:"mean"`
	Cum    float64 `json:"cum"`
	MinCum float64 `json:"min_cum"`
}

func (d *Detector) Snapshot() Snapshot {
	return Snapshot{Mean: d.mean, Cum: d.cum, MinCum: d.minCum}
}

func (d *Detector) Restore(s Snapshot) {
	d.mean = s.Mean
	d.cum = s.Cum
	d.minCum = s.MinCum
}
