package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"RugTracker/internal/domain/models"
	drepo "RugTracker/internal/domain/repository"
	svcmetrics "RugTracker/internal/service/metrics"
	"RugTracker/pkg/logger"
	"RugTracker/pkg/queue"
)

// SnapshotKey is the state-store key for the calibration snapshot.
const SnapshotKey = "rugtracker:calibration"

// episodeMeta is the per-episode bookkeeping the completed record is built
// from; the feed only carries instantaneous frames.
type episodeMeta struct {
	startTime time.Time
	peakPrice float64
	peakStep  int
	lastPrice float64
	lastStep  int
}

// TickProcessor drives the tracker from validated ticks and fans results out
// to the record backend. Record emission happens off the tick path; a slow
// backend must not delay the next prediction.
type TickProcessor struct {
	tracker *Tracker
	records *RecordProcessor
	state   drepo.StateStore
	metrics drepo.Metrics
	log     *logger.Logger

	// fallbackQueue, when set, takes episode records whose hot-path
	// archival failed; queue workers retry them.
	fallbackQueue queue.QueueService

	mu       sync.Mutex
	episodes map[string]*episodeMeta

	// OnPrediction and OnSideBet, when set, observe every emitted result;
	// the websocket hub hangs off these.
	OnPrediction func(*models.PredictionResult)
	OnSideBet    func(*models.SideBetSignal)
}

// NewTickProcessor creates a new TickProcessor instance.
func NewTickProcessor(
	tracker *Tracker,
	records *RecordProcessor,
	state drepo.StateStore,
	metrics drepo.Metrics,
	log *logger.Logger,
) *TickProcessor {
	svcmetrics.Register()
	return &TickProcessor{
		tracker:  tracker,
		records:  records,
		state:    state,
		metrics:  metrics,
		log:      log,
		episodes: make(map[string]*episodeMeta),
	}
}

// SetFallbackQueue enables deferred archival retries.
func (p *TickProcessor) SetFallbackQueue(q queue.QueueService) { p.fallbackQueue = q }

// Restore loads the calibration snapshot if one exists. Missing state is a
// cold start, not an error.
func (p *TickProcessor) Restore(ctx context.Context) error {
	if p.state == nil {
		return nil
	}
	var snap CalibrationSnapshot
	found, err := p.state.LoadSnapshot(ctx, SnapshotKey, &snap)
	if err != nil {
		return fmt.Errorf("load calibration snapshot: %w", err)
	}
	if !found {
		p.log.Info("no calibration snapshot, starting cold")
		return nil
	}
	p.tracker.Restore(snap)
	p.log.Info("calibration snapshot restored",
		logger.Any("saved_at", snap.SavedAt))
	return nil
}

// Process handles one validated tick.
func (p *TickProcessor) Process(ctx context.Context, t *models.TickObservation) error {
	if t == nil {
		return fmt.Errorf("tick is nil")
	}

	start := time.Now()
	p.metrics.RecordTick(t.EpisodeID)
	p.metrics.RecordLastMultiplier(t.EpisodeID, t.Multiplier)
	meta := p.observe(t)

	if t.Rugged {
		p.complete(t, meta)
		return nil
	}

	pred := p.tracker.OnTick(*t)
	side := p.tracker.OnSideBetQuery(*t)

	if p.OnPrediction != nil {
		p.OnPrediction(&pred)
	}
	if p.OnSideBet != nil {
		p.OnSideBet(&side)
	}
	if side.Action == models.ActionPlace {
		svcmetrics.SideBetsRecommended.Inc()
	}

	go func() {
		ectx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := p.records.ProcessPrediction(ectx, &pred); err != nil {
			p.log.Warn("prediction emit failed", logger.Error(err))
		}
		if side.Action == models.ActionPlace {
			if err := p.records.ProcessSideBet(ectx, &side); err != nil {
				p.log.Warn("side bet emit failed", logger.Error(err))
			}
		}
	}()

	p.metrics.RecordLatency("tick", time.Since(start).Seconds())
	return nil
}

// observe maintains the per-episode aggregates.
func (p *TickProcessor) observe(t *models.TickObservation) episodeMeta {
	p.mu.Lock()
	defer p.mu.Unlock()

	m, ok := p.episodes[t.EpisodeID]
	if !ok {
		m = &episodeMeta{startTime: time.Now().UTC(), peakPrice: t.Multiplier}
		p.episodes[t.EpisodeID] = m
		if len(p.episodes) > 64 {
			for id := range p.episodes {
				if id != t.EpisodeID {
					delete(p.episodes, id)
				}
			}
		}
	}
	if t.Multiplier > m.peakPrice {
		m.peakPrice = t.Multiplier
		m.peakStep = t.Step
	}
	if t.Peak > m.peakPrice {
		m.peakPrice = t.Peak
	}
	m.lastPrice = t.Multiplier
	m.lastStep = t.Step
	return *m
}

// complete closes out an episode on the rugged frame.
func (p *TickProcessor) complete(t *models.TickObservation, meta episodeMeta) {
	rec := models.EpisodeRecord{
		EpisodeID: t.EpisodeID,
		StartTime: meta.startTime,
		EndTime:   time.Now().UTC(),
		FinalStep: t.Step,
		EndPrice:  t.Multiplier,
		PeakPrice: meta.peakPrice,
		PeakStep:  meta.peakStep,
	}
	rec.MarkPatterns()

	p.tracker.OnEpisodeComplete(rec)

	st := p.tracker.Status()
	svcmetrics.CalibrationAlpha.Set(st.Alpha)
	svcmetrics.DriftEvents.Set(float64(st.DriftEvents))

	p.mu.Lock()
	delete(p.episodes, t.EpisodeID)
	p.mu.Unlock()

	p.log.Info("episode complete",
		logger.String("episode", rec.EpisodeID),
		logger.Int("final_step", rec.FinalStep),
		logger.Bool("ultra_short", rec.IsUltraShort),
		logger.Bool("moonshot", rec.IsMoonshot))

	snap := p.tracker.Snapshot()
	go func() {
		ectx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := p.records.ProcessEpisode(ectx, &rec); err != nil {
			p.log.Warn("episode emit failed", logger.Error(err))
			if p.fallbackQueue != nil {
				if qerr := p.fallbackQueue.PublishMessage(ectx, MsgEpisodeArchive, rec); qerr != nil {
					p.log.Error("episode archive enqueue failed", logger.Error(qerr))
				}
			}
		}
		if p.state != nil {
			if err := p.state.SaveSnapshot(ectx, SnapshotKey, snap); err != nil {
				p.log.Warn("snapshot save failed", logger.Error(err))
			}
		}
	}()
}

// Close flushes underlying record resources.
func (p *TickProcessor) Close() {
	if p.records != nil {
		p.records.Close()
	}
}
