// Package gate scores imminent ultra-short (<=10 tick) episode risk with a
// small logistic model. The weights are tuned offline; only the
// linear-logistic form and the threshold comparison are the contract, so a
// learned scorer can replace this one without touching callers.
package gate

import "RugTracker/internal/services/survival"

// Signals are the streaming inputs to the scorer.
type Signals struct {
	Velocity      float64
	Acceleration  float64
	ClusterFactor float64 // recent ultra-short clustering proxy
	DroughtPhase  float64 // higher means long since a big game
}

// UltraShortGate is the logistic scorer; read-only during scoring.
type UltraShortGate struct {
	Intercept float64
	WVelocity float64
	WAccel    float64
	WCluster  float64
	WDrought  float64
	Threshold float64
}

func NewUltraShortGate() *UltraShortGate {
	return &UltraShortGate{
		Intercept: -1.5,
		WVelocity: 1.2,
		WAccel:    0.8,
		WCluster:  1.0,
		WDrought:  -0.4,
		Threshold: 0.6,
	}
}

// Score returns the ultra-short probability estimate.
func (g *UltraShortGate) Score(s Signals) float64 {
	z := g.Intercept +
		g.WVelocity*s.Velocity +
		g.WAccel*s.Acceleration +
		g.WCluster*s.ClusterFactor +
		g.WDrought*s.DroughtPhase
	return survival.Sigmoid(z)
}

// Trigger reports whether the score crosses the cap threshold.
func (g *UltraShortGate) Trigger(s Signals) bool {
	return g.Score(s) >= g.Threshold
}
