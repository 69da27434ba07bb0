package usecase

import (
	"context"
	"fmt"
	"time"

	"RugTracker/internal/domain/models"
	drepo "RugTracker/internal/domain/repository"
)

// RecordProcessor routes outbound records to the configured backend.
type RecordProcessor struct {
	pub     drepo.Publisher
	store   drepo.Storage
	metrics drepo.Metrics
	backend string
}

// NewRecordProcessor creates a new RecordProcessor instance.
func NewRecordProcessor(
	pub drepo.Publisher,
	store drepo.Storage,
	metrics drepo.Metrics,
	backend string,
) *RecordProcessor {
	return &RecordProcessor{
		pub:     pub,
		store:   store,
		metrics: metrics,
		backend: backend,
	}
}

// ProcessPrediction routes a per-tick prediction to the configured backend.
func (p *RecordProcessor) ProcessPrediction(ctx context.Context, r *models.PredictionResult) error {
	if r == nil {
		return fmt.Errorf("prediction is nil")
	}
	return p.route(ctx, "prediction", func() error {
		if p.backend == "kafka" {
			return p.pub.PublishPrediction(ctx, r)
		}
		return p.store.StorePrediction(ctx, r)
	})
}

// ProcessSideBet routes a side-bet signal to the configured backend.
func (p *RecordProcessor) ProcessSideBet(ctx context.Context, s *models.SideBetSignal) error {
	if s == nil {
		return fmt.Errorf("side bet is nil")
	}
	return p.route(ctx, "side_bet", func() error {
		if p.backend == "kafka" {
			return p.pub.PublishSideBet(ctx, s)
		}
		return p.store.StoreSideBet(ctx, s)
	})
}

// ProcessEpisode routes a completed episode to the configured backend.
func (p *RecordProcessor) ProcessEpisode(ctx context.Context, e *models.EpisodeRecord) error {
	if e == nil {
		return fmt.Errorf("episode is nil")
	}
	return p.route(ctx, "episode", func() error {
		if p.backend == "kafka" {
			return p.pub.PublishEpisode(ctx, e)
		}
		return p.store.StoreEpisode(ctx, e)
	})
}

func (p *RecordProcessor) route(ctx context.Context, kind string, send func() error) error {
	switch p.backend {
	case "kafka", "clickhouse":
	default:
		return fmt.Errorf("unknown backend: %s", p.backend)
	}

	start := time.Now()
	if err := send(); err != nil {
		p.metrics.RecordError("process_" + kind)
		return fmt.Errorf("process %s: %w", kind, err)
	}
	p.metrics.RecordMessageSent(p.backend, kind)
	p.metrics.RecordLatency("process_"+kind, time.Since(start).Seconds())
	return nil
}

// Close closes underlying resources if available.
func (p *RecordProcessor) Close() {
	if p.pub != nil {
		_ = p.pub.Close()
	}
	if p.store != nil {
		_ = p.store.Close()
	}
}
