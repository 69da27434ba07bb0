package gate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScoreBaseline(t *testing.T) {
	g := NewUltraShortGate()
	// all-zero signals leave only the intercept
	p := g.Score(Signals{})
	assert.InDelta(t, 0.1824, p, 1e-3)
	assert.False(t, g.Trigger(Signals{}))
}

func TestTriggerOnHotSignals(t *testing.T) {
	g := NewUltraShortGate()
	s := Signals{Velocity: 1.0, Acceleration: 0.8, ClusterFactor: 1.0}
	// z = -1.5 + 1.2 + 0.64 + 1.0 = 1.34, sigmoid ~ 0.79
	assert.True(t, g.Trigger(s))
}

func TestDroughtSuppresses(t *testing.T) {
	g := NewUltraShortGate()
	hot := Signals{Velocity: 1.0, Acceleration: 0.5, ClusterFactor: 0.8}
	cool := hot
	cool.DroughtPhase = 2.0
	assert.Greater(t, g.Score(hot), g.Score(cool))
}

func TestScoreMonotoneInCluster(t *testing.T) {
	g := NewUltraShortGate()
	prev := g.Score(Signals{})
	for c := 0.5; c <= 3.0; c += 0.5 {
		p := g.Score(Signals{ClusterFactor: c})
		assert.Greater(t, p, prev)
		prev = p
	}
}
