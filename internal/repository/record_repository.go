package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"RugTracker/internal/domain/models"
	"RugTracker/internal/domain/repository"
	pkgkafka "RugTracker/pkg/kafka"
)

// ClickHouseStorage implements Storage for ClickHouse.
type ClickHouseStorage struct {
	db       *sql.DB
	database string
}

// NewClickHouseStorage creates ClickHouse storage.
func NewClickHouseStorage(db *sql.DB, database string) repository.Storage {
	return &ClickHouseStorage{db: db, database: database}
}

// Init ensures the archive tables exist (idempotent).
func (s *ClickHouseStorage) Init(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.rug_predictions (
			ts DateTime64(3),
			episode_id String,
			step UInt32,
			predicted_step UInt32,
			tolerance UInt32,
			confidence Float64,
			coverage_lower UInt32,
			coverage_upper UInt32,
			coverage_windows UInt8,
			quantile_used Float64,
			gate_applied UInt8,
			regime_active UInt8,
			fallback_used UInt8
		) ENGINE = MergeTree ORDER BY (episode_id, step)`, s.database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.rug_side_bets (
			ts DateTime64(3),
			episode_id String,
			step UInt32,
			action String,
			win_probability Float64,
			expected_value Float64,
			threshold_used Float64,
			regime_active UInt8,
			coverage_end UInt32
		) ENGINE = MergeTree ORDER BY (episode_id, step)`, s.database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.rug_episodes (
			start_time DateTime64(3),
			end_time DateTime64(3),
			episode_id String,
			final_step UInt32,
			end_price Float64,
			peak_price Float64,
			peak_step UInt32,
			is_ultra_short UInt8,
			is_max_payout UInt8,
			is_moonshot UInt8
		) ENGINE = ReplacingMergeTree ORDER BY episode_id`, s.database),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (s *ClickHouseStorage) StorePrediction(ctx context.Context, p *models.PredictionResult) error {
	q := fmt.Sprintf(`INSERT INTO %s.rug_predictions
		(ts, episode_id, step, predicted_step, tolerance, confidence,
		 coverage_lower, coverage_upper, coverage_windows, quantile_used,
		 gate_applied, regime_active, fallback_used)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.database)
	_, err := s.db.ExecContext(ctx, q,
		p.Timestamp, p.EpisodeID, p.Step, p.PredictedStep, p.Tolerance,
		p.Confidence, p.CoverageLower, p.CoverageUpper, p.CoverageWins,
		p.QuantileUsed, boolU8(p.GateApplied), boolU8(p.RegimeActive),
		boolU8(p.FallbackUsed))
	return err
}

func (s *ClickHouseStorage) StoreSideBet(ctx context.Context, b *models.SideBetSignal) error {
	q := fmt.Sprintf(`INSERT INTO %s.rug_side_bets
		(ts, episode_id, step, action, win_probability, expected_value,
		 threshold_used, regime_active, coverage_end)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.database)
	_, err := s.db.ExecContext(ctx, q,
		b.Timestamp, b.EpisodeID, b.Step, b.Action, b.WinProb,
		b.ExpectedValue, b.ThresholdUsed, boolU8(b.RegimeActive), b.CoverageEnd)
	return err
}

func (s *ClickHouseStorage) StoreEpisode(ctx context.Context, e *models.EpisodeRecord) error {
	q := fmt.Sprintf(`INSERT INTO %s.rug_episodes
		(start_time, end_time, episode_id, final_step, end_price, peak_price,
		 peak_step, is_ultra_short, is_max_payout, is_moonshot)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.database)
	_, err := s.db.ExecContext(ctx, q,
		e.StartTime, e.EndTime, e.EpisodeID, e.FinalStep, e.EndPrice,
		e.PeakPrice, e.PeakStep, boolU8(e.IsUltraShort), boolU8(e.IsMaxPayout),
		boolU8(e.IsMoonshot))
	return err
}

func (s *ClickHouseStorage) QueryEpisodes(ctx context.Context, from, to time.Time, limit int) ([]*models.EpisodeRecord, error) {
	q := fmt.Sprintf(`SELECT start_time, end_time, episode_id, final_step,
		end_price, peak_price, peak_step, is_ultra_short, is_max_payout, is_moonshot
		FROM %s.rug_episodes
		WHERE end_time >= ? AND end_time <= ?
		ORDER BY end_time DESC LIMIT ?`, s.database)
	rows, err := s.db.QueryContext(ctx, q, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.EpisodeRecord
	for rows.Next() {
		var (
			e          models.EpisodeRecord
			us, mp, ms uint8
		)
		if err := rows.Scan(&e.StartTime, &e.EndTime, &e.EpisodeID, &e.FinalStep,
			&e.EndPrice, &e.PeakPrice, &e.PeakStep, &us, &mp, &ms); err != nil {
			return nil, err
		}
		e.IsUltraShort = us != 0
		e.IsMaxPayout = mp != 0
		e.IsMoonshot = ms != 0
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (s *ClickHouseStorage) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseStorage) Close() error {
	return nil // Managed by pkg
}

func boolU8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

// KafkaPublisher implements Publisher for Kafka, one topic per record kind.
type KafkaPublisher struct {
	producer      *pkgkafka.Producer
	predTopic     string
	sideBetTopic  string
	episodesTopic string
}

// NewKafkaPublisher creates Kafka publisher.
func NewKafkaPublisher(producer *pkgkafka.Producer, predTopic, sideBetTopic, episodesTopic string) repository.Publisher {
	return &KafkaPublisher{
		producer:      producer,
		predTopic:     predTopic,
		sideBetTopic:  sideBetTopic,
		episodesTopic: episodesTopic,
	}
}

func (p *KafkaPublisher) PublishPrediction(ctx context.Context, r *models.PredictionResult) error {
	return p.producer.Publish(ctx, p.predTopic, []byte(r.EpisodeID), r)
}

func (p *KafkaPublisher) PublishSideBet(ctx context.Context, s *models.SideBetSignal) error {
	return p.producer.Publish(ctx, p.sideBetTopic, []byte(s.EpisodeID), s)
}

func (p *KafkaPublisher) PublishEpisode(ctx context.Context, e *models.EpisodeRecord) error {
	return p.producer.Publish(ctx, p.episodesTopic, []byte(e.EpisodeID), e)
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
