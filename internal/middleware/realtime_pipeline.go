package middleware

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"RugTracker/internal/domain/models"
	domrepo "RugTracker/internal/domain/repository"
)

// Proc is the minimal processor interface the pipeline needs.
type Proc interface {
	Process(ctx context.Context, t *models.TickObservation) error
}

// RealtimePipeline sits between the game feed and the tracker. It validates
// frames, drops stale or duplicate steps, throttles per episode, and buffers
// when downstream is unavailable.
type RealtimePipeline struct {
	proc    Proc
	metrics domrepo.Metrics
	maxRPS  int
	bufSize int
	bufCh   chan *models.TickObservation
	stopCh  chan struct{}
	started bool
	mu      sync.Mutex

	lastSeen map[string]time.Time // per-episode last accepted time
	lastStep map[string]int       // per-episode highest accepted step

	transform func(*models.TickObservation) *models.TickObservation

	bufDepthGauge func(int)
	throttleWarn  func(string)
}

type PipelineOption func(*RealtimePipeline)

// WithMaxRPS sets the max ticks per second per episode.
func WithMaxRPS(n int) PipelineOption {
	return func(p *RealtimePipeline) {
		if n > 0 {
			p.maxRPS = n
		}
	}
}

// WithBufferSize sets the temporary buffer size when downstream is unavailable.
func WithBufferSize(n int) PipelineOption {
	return func(p *RealtimePipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// WithTransform sets a transformation hook to normalize the frame format.
func WithTransform(fn func(*models.TickObservation) *models.TickObservation) PipelineOption {
	return func(p *RealtimePipeline) { p.transform = fn }
}

// NewRealtimePipeline creates a new pipeline.
func NewRealtimePipeline(proc Proc, metrics domrepo.Metrics, opts ...PipelineOption) *RealtimePipeline {
	p := &RealtimePipeline{
		proc:     proc,
		metrics:  metrics,
		maxRPS:   20,   // default throttle per episode
		bufSize:  1000, // default buffer
		bufCh:    make(chan *models.TickObservation, 1000),
		stopCh:   make(chan struct{}),
		lastSeen: make(map[string]time.Time),
		lastStep: make(map[string]int),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.bufSize != cap(p.bufCh) {
		p.bufCh = make(chan *models.TickObservation, p.bufSize)
	}
	p.bufDepthGauge = func(n int) { p.metrics.RecordLatency("pipeline_buffer_depth", float64(n)) }
	p.throttleWarn = func(ep string) { p.metrics.RecordError("pipeline_throttle_" + ep) }
	return p
}

// Start launches background flushing of buffered ticks.
func (p *RealtimePipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		backoff := 50 * time.Millisecond
		for {
			select {
			case <-p.stopCh:
				return
			case t := <-p.bufCh:
				if t == nil {
					continue
				}
				if err := p.proc.Process(ctx, t); err != nil {
					if backoff < 2*time.Second {
						backoff *= 2
					}
					p.metrics.RecordError("pipeline_flush")
					time.Sleep(backoff)
					// requeue if space; drop otherwise
					select {
					case p.bufCh <- t:
					default:
						p.metrics.RecordError("pipeline_buffer_drop")
					}
				} else {
					backoff = 50 * time.Millisecond
				}
			}
		}
	}()
}

// Stop stops the background flushing.
func (p *RealtimePipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
}

// Process validates, throttles, and forwards a tick downstream, buffering on
// errors. Stale and duplicate steps are dropped without error: the feed
// replays frames on reconnect and the tracker must never see time go
// backwards.
func (p *RealtimePipeline) Process(ctx context.Context, t *models.TickObservation) error {
	start := time.Now()
	if err := validateTick(t); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}
	if p.transform != nil {
		t = p.transform(t)
		if err := validateTick(t); err != nil {
			p.metrics.RecordError("pipeline_transform_invalid")
			return err
		}
	}

	p.mu.Lock()
	if last, ok := p.lastStep[t.EpisodeID]; ok && t.Step <= last {
		p.mu.Unlock()
		p.metrics.RecordError("pipeline_stale_step")
		return nil
	}
	if len(p.lastStep) > 64 {
		p.lastStep = make(map[string]int)
	}
	p.lastStep[t.EpisodeID] = t.Step
	// Rugged frames end an episode and are never throttled.
	allowed := t.Rugged || p.allow(t.EpisodeID, start)
	p.mu.Unlock()

	if !allowed {
		p.metrics.RecordError("pipeline_throttle")
		if p.throttleWarn != nil {
			p.throttleWarn(t.EpisodeID)
		}
		return nil
	}

	if err := p.proc.Process(ctx, t); err != nil {
		p.metrics.RecordError("pipeline_process")
		// buffer non-blocking
		select {
		case p.bufCh <- t:
			if p.bufDepthGauge != nil {
				p.bufDepthGauge(len(p.bufCh))
			}
		default:
			p.metrics.RecordError("pipeline_buffer_full")
		}
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	p.metrics.RecordLatency("pipeline_process", time.Since(start).Seconds())
	return nil
}

func validateTick(t *models.TickObservation) error {
	if t == nil {
		return fmt.Errorf("tick nil")
	}
	if t.EpisodeID == "" {
		return fmt.Errorf("episode id empty")
	}
	if t.Step < 0 {
		return fmt.Errorf("negative step")
	}
	if math.IsNaN(t.Multiplier) || math.IsInf(t.Multiplier, 0) {
		return fmt.Errorf("multiplier not finite")
	}
	if math.IsNaN(t.Peak) || math.IsInf(t.Peak, 0) {
		return fmt.Errorf("peak not finite")
	}
	return nil
}

// allow caller holds p.mu.
func (p *RealtimePipeline) allow(episodeID string, now time.Time) bool {
	if p.maxRPS <= 0 {
		return true
	}
	last := p.lastSeen[episodeID]
	if last.IsZero() {
		p.lastSeen[episodeID] = now
		return true
	}
	if now.Sub(last) < time.Second/time.Duration(p.maxRPS) {
		return false
	}
	p.lastSeen[episodeID] = now
	return true
}
