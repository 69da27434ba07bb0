package conformal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAlphaStartsAtTargetComplement(t *testing.T) {
	c := NewController(DefaultConfig())
	assert.InDelta(t, 0.15, c.Alpha(), 1e-9)
}

func TestAllMissesSaturateAlpha(t *testing.T) {
	c := NewController(DefaultConfig())
	for i := 0; i < 50; i++ {
		c.Update(true)
	}
	assert.InDelta(t, DefaultConfig().MaxAlpha, c.Alpha(), 1e-9)
}

func TestAllHitsFloorAlpha(t *testing.T) {
	c := NewController(DefaultConfig())
	for i := 0; i < 50; i++ {
		c.Update(false)
	}
	assert.InDelta(t, DefaultConfig().MinAlpha, c.Alpha(), 1e-9)
}

func TestWidenGrowsWithAlpha(t *testing.T) {
	c := NewController(DefaultConfig())
	base := c.Widen(50)
	for i := 0; i < 20; i++ {
		c.Update(true)
	}
	assert.Greater(t, c.Widen(50), base)
	// widening never shrinks the tolerance
	assert.GreaterOrEqual(t, c.Widen(50), 50)
	assert.GreaterOrEqual(t, c.Widen(0), 1)
}

func TestBumpClamped(t *testing.T) {
	c := NewController(DefaultConfig())
	for i := 0; i < 100; i++ {
		c.Bump(1.25)
	}
	assert.InDelta(t, DefaultConfig().MaxAlpha, c.Alpha(), 1e-9)
}

func TestSnapshotRoundTrip(t *testing.T) {
	c := NewController(DefaultConfig())
	c.Update(true)
	c.Update(false)
	s := c.Snapshot()

	c2 := NewController(DefaultConfig())
	c2.Restore(s)
	assert.Equal(t, c.Alpha(), c2.Alpha())
}
