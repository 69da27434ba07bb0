package middleware

import (
	"context"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RugTracker/internal/domain/models"
)

type stubProc struct {
	mu    sync.Mutex
	seen  []models.TickObservation
	fail  bool
	calls int
}

func (s *stubProc) Process(_ context.Context, t *models.TickObservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.fail {
		return assert.AnError
	}
	s.seen = append(s.seen, *t)
	return nil
}

func (s *stubProc) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

type stubMetrics struct {
	mu     sync.Mutex
	errors map[string]int
}

func newStubMetrics() *stubMetrics {
	return &stubMetrics{errors: make(map[string]int)}
}

func (m *stubMetrics) RecordTick(string)                    {}
func (m *stubMetrics) RecordLastMultiplier(string, float64) {}
func (m *stubMetrics) RecordLatency(string, float64)        {}
func (m *stubMetrics) RecordMessageSent(string, string)     {}
func (m *stubMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[kind]++
}

func (m *stubMetrics) errorCount(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors[kind]
}

func tickPtr(id string, step int, mult float64) *models.TickObservation {
	return &models.TickObservation{EpisodeID: id, Step: step, Multiplier: mult, Peak: mult}
}

func TestProcessRejectsInvalidFrames(t *testing.T) {
	proc := &stubProc{}
	m := newStubMetrics()
	p := NewRealtimePipeline(proc, m)

	assert.Error(t, p.Process(context.Background(), nil))
	assert.Error(t, p.Process(context.Background(), tickPtr("", 1, 1.0)))
	assert.Error(t, p.Process(context.Background(), tickPtr("g1", -1, 1.0)))
	assert.Error(t, p.Process(context.Background(), tickPtr("g1", 1, math.NaN())))
	assert.Error(t, p.Process(context.Background(), tickPtr("g1", 1, math.Inf(1))))

	assert.Zero(t, proc.count())
	assert.Equal(t, 5, m.errorCount("pipeline_validate"))
}

func TestProcessDropsStaleSteps(t *testing.T) {
	proc := &stubProc{}
	m := newStubMetrics()
	p := NewRealtimePipeline(proc, m)
	p.maxRPS = 0 // throttle off, only the step filter in play

	require.NoError(t, p.Process(context.Background(), tickPtr("g1", 5, 1.0)))
	// replayed and duplicate frames are swallowed without error
	require.NoError(t, p.Process(context.Background(), tickPtr("g1", 5, 1.0)))
	require.NoError(t, p.Process(context.Background(), tickPtr("g1", 3, 1.0)))
	require.NoError(t, p.Process(context.Background(), tickPtr("g1", 6, 1.0)))

	assert.Equal(t, 2, proc.count())
	assert.Equal(t, 2, m.errorCount("pipeline_stale_step"))

	// other episodes keep their own step counter
	require.NoError(t, p.Process(context.Background(), tickPtr("g2", 1, 1.0)))
	assert.Equal(t, 3, proc.count())
}

func TestRuggedFrameBypassesThrottle(t *testing.T) {
	proc := &stubProc{}
	m := newStubMetrics()
	p := NewRealtimePipeline(proc, m, WithMaxRPS(1))

	require.NoError(t, p.Process(context.Background(), tickPtr("g1", 1, 1.0)))
	// immediate next frame is over the per-episode rate
	require.NoError(t, p.Process(context.Background(), tickPtr("g1", 2, 1.1)))
	assert.Equal(t, 1, proc.count())
	assert.Equal(t, 1, m.errorCount("pipeline_throttle"))

	rugged := tickPtr("g1", 3, 0.01)
	rugged.Rugged = true
	require.NoError(t, p.Process(context.Background(), rugged))
	assert.Equal(t, 2, proc.count())
}

func TestProcessBuffersOnDownstreamError(t *testing.T) {
	proc := &stubProc{fail: true}
	m := newStubMetrics()
	p := NewRealtimePipeline(proc, m, WithBufferSize(4))
	p.maxRPS = 0

	err := p.Process(context.Background(), tickPtr("g1", 1, 1.0))
	assert.Error(t, err)
	assert.Equal(t, 1, m.errorCount("pipeline_process"))
	assert.Len(t, p.bufCh, 1)
}

func TestTransformHook(t *testing.T) {
	proc := &stubProc{}
	m := newStubMetrics()
	p := NewRealtimePipeline(proc, m, WithTransform(func(t *models.TickObservation) *models.TickObservation {
		if t.Peak < t.Multiplier {
			t.Peak = t.Multiplier
		}
		return t
	}))
	p.maxRPS = 0

	in := &models.TickObservation{EpisodeID: "g1", Step: 1, Multiplier: 2.0, Peak: 1.0}
	require.NoError(t, p.Process(context.Background(), in))
	require.Equal(t, 1, proc.count())
	assert.Equal(t, 2.0, proc.seen[0].Peak)
}
