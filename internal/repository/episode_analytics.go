package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	pkgch "RugTracker/pkg/clickhouse"
	applogger "RugTracker/pkg/logger"
)

// DurationStats summarizes episode-length behavior over a lookback window.
type DurationStats struct {
	Episodes       uint64  `json:"episodes"`
	MedianStep     float64 `json:"median_step"`
	MeanStep       float64 `json:"mean_step"`
	P10Step        float64 `json:"p10_step"`
	P90Step        float64 `json:"p90_step"`
	UltraShortRate float64 `json:"ultra_short_rate"`
	MoonshotRate   float64 `json:"moonshot_rate"`
}

// CoverageStats summarizes prediction-interval hit rates over a lookback
// window, joined at episode granularity against the realized final step.
type CoverageStats struct {
	Predictions uint64  `json:"predictions"`
	HitRate     float64 `json:"hit_rate"`
	MeanWidth   float64 `json:"mean_width"`
}

// CHEpisodeAnalytics serves aggregate queries over the archive tables.
type CHEpisodeAnalytics struct {
	db       *sql.DB
	database string
	l        *applogger.Logger
}

func NewCHEpisodeAnalytics(ch *pkgch.Client, database string) *CHEpisodeAnalytics {
	return &CHEpisodeAnalytics{db: ch.DB(), database: database}
}

// SetLogger injects a structured logger.
func (s *CHEpisodeAnalytics) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHEpisodeAnalytics) GetDurationStats(ctx context.Context, from, to time.Time) (DurationStats, error) {
	start := time.Now()
	q := fmt.Sprintf(`
        SELECT
            count() AS episodes,
            median(final_step) AS median_step,
            avg(final_step) AS mean_step,
            quantile(0.10)(final_step) AS p10_step,
            quantile(0.90)(final_step) AS p90_step,
            avg(is_ultra_short) AS ultra_short_rate,
            avg(is_moonshot) AS moonshot_rate
        FROM %s.rug_episodes
        WHERE end_time >= ? AND end_time <= ?
    `, s.database)

	var out DurationStats
	row := s.db.QueryRowContext(ctx, q, from, to)
	if err := row.Scan(&out.Episodes, &out.MedianStep, &out.MeanStep,
		&out.P10Step, &out.P90Step, &out.UltraShortRate, &out.MoonshotRate); err != nil {
		if s.l != nil {
			s.l.Error("clickhouse duration_stats query error",
				applogger.Error(err),
			)
		}
		return DurationStats{}, fmt.Errorf("duration stats: %w", err)
	}
	if s.l != nil {
		s.l.Info("clickhouse duration_stats ok",
			applogger.Uint64("episodes", out.Episodes),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}

func (s *CHEpisodeAnalytics) GetCoverageStats(ctx context.Context, from, to time.Time) (CoverageStats, error) {
	start := time.Now()
	// Last prediction per episode against the realized final step.
	q := fmt.Sprintf(`
        SELECT
            count() AS predictions,
            avg(e.final_step >= p.coverage_lower AND e.final_step <= p.coverage_upper) AS hit_rate,
            avg(p.coverage_upper - p.coverage_lower) AS mean_width
        FROM (
            SELECT episode_id,
                argMax(coverage_lower, step) AS coverage_lower,
                argMax(coverage_upper, step) AS coverage_upper
            FROM %s.rug_predictions
            GROUP BY episode_id
        ) AS p
        INNER JOIN %s.rug_episodes AS e USING episode_id
        WHERE e.end_time >= ? AND e.end_time <= ?
    `, s.database, s.database)

	var out CoverageStats
	row := s.db.QueryRowContext(ctx, q, from, to)
	if err := row.Scan(&out.Predictions, &out.HitRate, &out.MeanWidth); err != nil {
		if s.l != nil {
			s.l.Error("clickhouse coverage_stats query error",
				applogger.Error(err),
			)
		}
		return CoverageStats{}, fmt.Errorf("coverage stats: %w", err)
	}
	if s.l != nil {
		s.l.Info("clickhouse coverage_stats ok",
			applogger.Uint64("predictions", out.Predictions),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}
