package repository

import (
	"context"
	"time"

	"RugTracker/internal/domain/models"
)

// FeedStream is the upstream game feed: a stream of tick observations plus
// episode-completion frames.
type FeedStream interface {
	Connect(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.TickObservation, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// Publisher forwards outbound records (predictions, side-bet signals,
// completed episodes) to the message backend.
type Publisher interface {
	PublishPrediction(ctx context.Context, p *models.PredictionResult) error
	PublishSideBet(ctx context.Context, s *models.SideBetSignal) error
	PublishEpisode(ctx context.Context, e *models.EpisodeRecord) error
	Close() error
}

// Storage archives episodes, predictions and side-bet signals for offline
// analysis. All writes happen off the tick path.
type Storage interface {
	Init(ctx context.Context) error // ensure tables, health checks
	StorePrediction(ctx context.Context, p *models.PredictionResult) error
	StoreSideBet(ctx context.Context, s *models.SideBetSignal) error
	StoreEpisode(ctx context.Context, e *models.EpisodeRecord) error
	QueryEpisodes(ctx context.Context, from, to time.Time, limit int) ([]*models.EpisodeRecord, error)
	Health(ctx context.Context) error
	Close() error
}

// StateStore persists calibration state (conformal alpha, drift
// accumulators, pattern counters) so a restart resumes instead of starting
// cold. Loading is best-effort; a missing snapshot is not an error.
type StateStore interface {
	SaveSnapshot(ctx context.Context, key string, v any) error
	LoadSnapshot(ctx context.Context, key string, v any) (bool, error)
}

// Metrics records operational measurements.
type Metrics interface {
	RecordTick(episodeID string)
	RecordError(kind string)
	RecordLastMultiplier(episodeID string, multiplier float64)
	RecordLatency(op string, seconds float64)
	RecordMessageSent(backend, kind string)
}
