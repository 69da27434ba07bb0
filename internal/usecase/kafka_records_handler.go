package usecase

import (
	"context"
	"encoding/json"
	"time"

	"RugTracker/internal/domain/models"
	domrepo "RugTracker/internal/domain/repository"
	pkgkafka "RugTracker/pkg/kafka"
)

// KafkaPredictionsHandler consumes prediction records and writes to storage.
type KafkaPredictionsHandler struct {
	topic   string
	storage domrepo.Storage
	metrics domrepo.Metrics
}

func NewKafkaPredictionsHandler(topic string, storage domrepo.Storage, metrics domrepo.Metrics) *KafkaPredictionsHandler {
	return &KafkaPredictionsHandler{topic: topic, storage: storage, metrics: metrics}
}

func (h *KafkaPredictionsHandler) Topic() string { return h.topic }

func (h *KafkaPredictionsHandler) Handle(ctx context.Context, b []byte) error {
	var r models.PredictionResult
	if err := json.Unmarshal(b, &r); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	if !r.Timestamp.IsZero() {
		h.metrics.RecordLatency("ingest_e2e_seconds", time.Since(r.Timestamp).Seconds())
	}

	start := time.Now()
	err := h.storage.StorePrediction(ctx, &r)
	h.metrics.RecordLatency("ch_insert_seconds", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("consumer_store")
		return err
	}
	h.metrics.RecordMessageSent("clickhouse", "prediction")
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaPredictionsHandler)(nil)

// KafkaSideBetsHandler consumes side-bet records and writes to storage.
type KafkaSideBetsHandler struct {
	topic   string
	storage domrepo.Storage
	metrics domrepo.Metrics
}

func NewKafkaSideBetsHandler(topic string, storage domrepo.Storage, metrics domrepo.Metrics) *KafkaSideBetsHandler {
	return &KafkaSideBetsHandler{topic: topic, storage: storage, metrics: metrics}
}

func (h *KafkaSideBetsHandler) Topic() string { return h.topic }

func (h *KafkaSideBetsHandler) Handle(ctx context.Context, b []byte) error {
	var s models.SideBetSignal
	if err := json.Unmarshal(b, &s); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}

	start := time.Now()
	err := h.storage.StoreSideBet(ctx, &s)
	h.metrics.RecordLatency("ch_insert_seconds", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("consumer_store")
		return err
	}
	h.metrics.RecordMessageSent("clickhouse", "side_bet")
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaSideBetsHandler)(nil)

// KafkaEpisodesHandler consumes completed-episode records and writes to
// storage.
type KafkaEpisodesHandler struct {
	topic   string
	storage domrepo.Storage
	metrics domrepo.Metrics
}

func NewKafkaEpisodesHandler(topic string, storage domrepo.Storage, metrics domrepo.Metrics) *KafkaEpisodesHandler {
	return &KafkaEpisodesHandler{topic: topic, storage: storage, metrics: metrics}
}

func (h *KafkaEpisodesHandler) Topic() string { return h.topic }

func (h *KafkaEpisodesHandler) Handle(ctx context.Context, b []byte) error {
	var e models.EpisodeRecord
	if err := json.Unmarshal(b, &e); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}

	start := time.Now()
	err := h.storage.StoreEpisode(ctx, &e)
	h.metrics.RecordLatency("ch_insert_seconds", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("consumer_store")
		return err
	}
	h.metrics.RecordMessageSent("clickhouse", "episode")
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaEpisodesHandler)(nil)
