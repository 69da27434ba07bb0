package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAllowConsumesCapacity(t *testing.T) {
	l := New()
	for i := 0; i < 5; i++ {
		assert.True(t, l.Allow("ip1", 5, 0), "request %d", i)
	}
	assert.False(t, l.Allow("ip1", 5, 0))
}

func TestKeysAreIndependent(t *testing.T) {
	l := New()
	for i := 0; i < 3; i++ {
		l.Allow("ip1", 3, 0)
	}
	assert.False(t, l.Allow("ip1", 3, 0))
	assert.True(t, l.Allow("ip2", 3, 0))
}

func TestRefill(t *testing.T) {
	l := New()
	assert.True(t, l.Allow("ip1", 1, 50))
	assert.False(t, l.Allow("ip1", 1, 50))
	time.Sleep(30 * time.Millisecond)
	assert.True(t, l.Allow("ip1", 1, 50))
}
