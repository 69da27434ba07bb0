package usecase

import (
	"context"
	"fmt"

	"RugTracker/internal/domain/models"
	drepo "RugTracker/internal/domain/repository"
	"RugTracker/pkg/queue"
)

// Queue message types for deferred archival.
const (
	MsgEpisodeArchive = "episode.archive"
)

// EpisodeArchiveJob retries episode archival that failed on the hot path.
type EpisodeArchiveJob struct {
	storage drepo.Storage
	metrics drepo.Metrics
}

func NewEpisodeArchiveJob(storage drepo.Storage, metrics drepo.Metrics) *EpisodeArchiveJob {
	return &EpisodeArchiveJob{storage: storage, metrics: metrics}
}

func (j *EpisodeArchiveJob) Name() string { return "episode-archive" }

func (j *EpisodeArchiveJob) Type() string { return MsgEpisodeArchive }

func (j *EpisodeArchiveJob) Handle(ctx context.Context, payload interface{}) error {
	rec, err := queue.ParsePayload[models.EpisodeRecord](payload)
	if err != nil {
		j.metrics.RecordError("archive_job_payload")
		return fmt.Errorf("episode archive payload: %w", err)
	}
	if err := j.storage.StoreEpisode(ctx, rec); err != nil {
		j.metrics.RecordError("archive_job_store")
		return fmt.Errorf("episode archive store: %w", err)
	}
	j.metrics.RecordMessageSent("clickhouse", "episode_retry")
	return nil
}

var _ queue.Job = (*EpisodeArchiveJob)(nil)
