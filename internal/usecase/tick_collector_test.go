package usecase

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RugTracker/internal/domain/models"
	mid "RugTracker/internal/middleware"
	"RugTracker/pkg/logger"
)

// scriptedFeed fails its first subscription after one frame, like a feed
// whose socket drops mid-stream; every later subscription stays healthy.
type scriptedFeed struct {
	mu         sync.Mutex
	reads      int
	reconnects int
	connected  bool
}

func (f *scriptedFeed) Connect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = true
	return nil
}

func (f *scriptedFeed) Reconnect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reconnects++
	f.connected = true
	return nil
}

func (f *scriptedFeed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	return nil
}

func (f *scriptedFeed) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *scriptedFeed) Read(context.Context) (<-chan *models.TickObservation, <-chan error) {
	f.mu.Lock()
	f.reads++
	n := f.reads
	f.mu.Unlock()

	ticks := make(chan *models.TickObservation, 4)
	errs := make(chan error, 1)
	if n == 1 {
		errs <- fmt.Errorf("feed read: connection reset")
		close(ticks)
		close(errs)
	} else {
		ticks <- &models.TickObservation{EpisodeID: "g2", Step: 1, Multiplier: 1.0, Peak: 1.0}
	}
	return ticks, errs
}

func (f *scriptedFeed) counts() (reads, reconnects int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads, f.reconnects
}

type countingProc struct {
	mu   sync.Mutex
	seen []string
}

func (p *countingProc) Process(_ context.Context, t *models.TickObservation) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seen = append(p.seen, t.EpisodeID)
	return nil
}

func (p *countingProc) episodes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.seen...)
}

type nopMetrics struct{}

func (nopMetrics) RecordTick(string)                    {}
func (nopMetrics) RecordError(string)                   {}
func (nopMetrics) RecordLastMultiplier(string, float64) {}
func (nopMetrics) RecordLatency(string, float64)        {}
func (nopMetrics) RecordMessageSent(string, string)     {}

func TestCollectorResumesAfterReconnect(t *testing.T) {
	feed := &scriptedFeed{}
	sink := &countingProc{}
	m := nopMetrics{}
	pipe := mid.NewRealtimePipeline(sink, m, mid.WithMaxRPS(1000))
	log, err := logger.New(&logger.Config{Level: "error", Format: "console", Output: "stdout"})
	require.NoError(t, err)
	proc := NewTickProcessor(nil, nil, nil, m, log)

	c := NewTickCollector(feed, proc, m, pipe)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, c.Start(ctx))

	// frames from the post-reconnect subscription must reach the sink
	assert.Eventually(t, func() bool {
		for _, id := range sink.episodes() {
			if id == "g2" {
				return true
			}
		}
		return false
	}, 2*time.Second, 5*time.Millisecond)

	reads, reconnects := feed.counts()
	assert.GreaterOrEqual(t, reconnects, 1)
	assert.GreaterOrEqual(t, reads, 2, "reconnect must open a fresh subscription")
}
