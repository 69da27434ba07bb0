package di

import (
	"context"
	"fmt"
	"time"

	"RugTracker/internal/domain/repository"
	"RugTracker/internal/handler/api"
	"RugTracker/internal/handler/ws"
	mid "RugTracker/internal/middleware"
	internalrepo "RugTracker/internal/repository"
	icache "RugTracker/internal/service/cache"
	"RugTracker/internal/service/rugs"
	"RugTracker/internal/services/conformal"
	"RugTracker/internal/services/drift"
	"RugTracker/internal/services/regime"
	"RugTracker/internal/usecase"
	pkgcache "RugTracker/pkg/cache"
	pkgch "RugTracker/pkg/clickhouse"
	"RugTracker/pkg/config"
	pkgkafka "RugTracker/pkg/kafka"
	applogger "RugTracker/pkg/logger"
	"RugTracker/pkg/metrics"
	pkgqueue "RugTracker/pkg/queue"
	"RugTracker/pkg/server"

	"github.com/redis/go-redis/v9"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	level := "info"
	if cfg.Environment == "development" {
		level = "debug"
	}
	return applogger.New(&applogger.Config{Level: level, Format: "console", Output: "stdout"})
}

// ProvideClickHouseClient creates a ClickHouse client and ensures the
// database exists.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.InitSchema(ctx, []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", cfg.ClickHouse.Database),
	}); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvideKafkaProducer creates a Kafka producer.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}

	return producer, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideStorage creates ClickHouse storage and its archive tables.
func ProvideStorage(chClient *pkgch.Client, cfg *config.Config) (repository.Storage, error) {
	store := internalrepo.NewClickHouseStorage(chClient.DB(), cfg.ClickHouse.Database)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("storage init: %w", err)
	}
	return store, nil
}

// ProvidePublisher creates Kafka publisher repository.
func ProvidePublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.Publisher {
	return internalrepo.NewKafkaPublisher(producer,
		cfg.Kafka.Predictions, cfg.Kafka.SideBets, cfg.Kafka.Episodes)
}

// ProvideKafkaConsumer creates a Kafka consumer configured from YAML.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideKafkaHandlers registers the archive consumers for all record
// topics.
func ProvideKafkaHandlers(store repository.Storage, m repository.Metrics, cfg *config.Config) []pkgkafka.MessageHandler {
	return []pkgkafka.MessageHandler{
		usecase.NewKafkaPredictionsHandler(cfg.Kafka.Predictions, store, m),
		usecase.NewKafkaSideBetsHandler(cfg.Kafka.SideBets, store, m),
		usecase.NewKafkaEpisodesHandler(cfg.Kafka.Episodes, store, m),
	}
}

// ProvideFeedStream creates the game WebSocket stream.
func ProvideFeedStream(cfg *config.Config, log *applogger.Logger) repository.FeedStream {
	return rugs.New(
		cfg.Feed.WebSocketURL,
		cfg.Feed.ReconnectDelay,
		cfg.Feed.PingInterval,
		log,
	)
}

// ProvideStateStore creates the Redis-backed calibration state store, or
// nil when Redis is disabled.
func ProvideStateStore(cfg *config.Config) (repository.StateStore, error) {
	if !cfg.State.Redis.Enabled {
		return nil, nil
	}
	rc, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisHost(cfg.State.Redis.Host),
		pkgcache.WithRedisPort(cfg.State.Redis.Port),
		pkgcache.WithRedisPassword(cfg.State.Redis.Password),
		pkgcache.WithRedisDB(cfg.State.Redis.DB),
	)
	if err != nil {
		return nil, fmt.Errorf("redis state store: %w", err)
	}
	// layered so the startup snapshot read and any re-reads hit memory first
	layered := pkgcache.NewLayeredCache(rc)
	return internalrepo.NewRedisStateStore(layered, cfg.State.SnapshotTTL), nil
}

// ProvideArchiveQueue creates the Redis retry queue for failed archival, or
// nil when Redis is disabled.
func ProvideArchiveQueue(
	cfg *config.Config,
	log *applogger.Logger,
	store repository.Storage,
	m repository.Metrics,
) *pkgqueue.RedisQueue {
	if !cfg.State.Redis.Enabled {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.State.Redis.Host, cfg.State.Redis.Port),
		Password: cfg.State.Redis.Password,
		DB:       cfg.State.Redis.DB,
	})
	q := pkgqueue.NewRedisQueue(log, &pkgqueue.QueueConfig{
		Workers:    1,
		RetryLimit: 5,
		RetryDelay: 30 * time.Second,
	}, client, pkgqueue.ModeProducerConsumer)
	q.RegisterJob(usecase.NewEpisodeArchiveJob(store, m))
	if err := q.Start(); err != nil {
		log.Error("archive queue start failed", applogger.Error(err))
	}
	q.StartRetryProcessor()
	return q
}

// ProvideTracker builds the calibration core from config.
func ProvideTracker(cfg *config.Config) *usecase.Tracker {
	tc := usecase.DefaultTrackerConfig()
	t := cfg.Tracker
	tc.Horizon = t.Horizon
	tc.BaseTolerance = t.BaseTolerance
	tc.SpreadWide = t.SpreadWide
	tc.QuantileDefault = t.QuantileDefault
	tc.QuantileWide = t.QuantileWide
	tc.EarlyBlendMax = t.EarlyBlendMax
	tc.GateMaxStep = t.GateMaxStep
	tc.SideBetWindow = t.SideBetWindow
	tc.SideBetCooldown = t.SideBetCooldown
	tc.SideBetThreshold = t.SideBetThreshold

	rc := regime.Config{
		EarlyWindowMax:  t.Regime.EarlyWindowMax,
		RatioThreshold:  t.Regime.RatioThreshold,
		MinSustainTicks: t.Regime.MinSustainTicks,
		EMAAlpha:        t.Regime.EMAAlpha,
		ScaleFloor:      t.Regime.ScaleFloor,
		DecayTau:        t.Regime.DecayTau,
	}
	dc := drift.Config{
		Delta: t.Drift.Delta,
		Lam:   t.Drift.Lambda,
		Alpha: t.Drift.Alpha,
	}
	cc := conformal.Config{
		Target:   t.Conformal.Target,
		Kp:       t.Conformal.Kp,
		Ki:       t.Conformal.Ki,
		MinAlpha: t.Conformal.MinAlpha,
		MaxAlpha: t.Conformal.MaxAlpha,
	}
	return usecase.NewTracker(tc, rc, dc, cc, nil)
}

// ProvideRecordProcessor creates the record router use case.
func ProvideRecordProcessor(
	pub repository.Publisher,
	store repository.Storage,
	m repository.Metrics,
	cfg *config.Config,
) *usecase.RecordProcessor {
	return usecase.NewRecordProcessor(pub, store, m, cfg.Backend.Type)
}

// ProvideTickProcessor creates the tick processor use case.
func ProvideTickProcessor(
	tracker *usecase.Tracker,
	records *usecase.RecordProcessor,
	state repository.StateStore,
	m repository.Metrics,
	log *applogger.Logger,
	archiveQueue *pkgqueue.RedisQueue,
) *usecase.TickProcessor {
	proc := usecase.NewTickProcessor(tracker, records, state, m, log)
	if archiveQueue != nil {
		proc.SetFallbackQueue(archiveQueue)
	}
	return proc
}

// ProvideHub creates the websocket fan-out hub.
func ProvideHub(log *applogger.Logger) *ws.Hub {
	return ws.NewHub(log)
}

// ProvideTickCollector creates the tick collector use case.
func ProvideTickCollector(
	stream repository.FeedStream,
	processor *usecase.TickProcessor,
	m repository.Metrics,
	cfg *config.Config,
) *usecase.TickCollector {
	// Build middleware pipeline between WebSocket and the tracker
	pipe := mid.NewRealtimePipeline(processor, m,
		mid.WithMaxRPS(cfg.Feed.MaxRPS),
		mid.WithBufferSize(cfg.Feed.BufferSize),
	)
	return usecase.NewTickCollector(stream, processor, m, pipe)
}

// ProvideAnalytics creates the archive aggregate reader.
func ProvideAnalytics(chClient *pkgch.Client, cfg *config.Config, log *applogger.Logger) *internalrepo.CHEpisodeAnalytics {
	a := internalrepo.NewCHEpisodeAnalytics(chClient, cfg.ClickHouse.Database)
	a.SetLogger(log)
	return a
}

// ProvideAPIHandler creates the Echo API handler.
func ProvideAPIHandler(
	log *applogger.Logger,
	tracker *usecase.Tracker,
	collector *usecase.TickCollector,
	store repository.Storage,
	analytics *internalrepo.CHEpisodeAnalytics,
	cfg *config.Config,
) *api.TrackerEchoHandler {
	h := api.NewTrackerEchoHandler(log, tracker, collector, store, analytics)
	if cfg.State.Redis.Enabled {
		h.SetCache(icache.NewRedisCache(icache.RedisConfig{
			Addr:     fmt.Sprintf("%s:%d", cfg.State.Redis.Host, cfg.State.Redis.Port),
			Password: cfg.State.Redis.Password,
			DB:       cfg.State.Redis.DB,
		}))
	} else {
		h.SetCache(icache.NewTTLCache())
	}
	return h
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	log *applogger.Logger,
	collector *usecase.TickCollector,
	consumer *pkgkafka.Consumer,
	handlers []pkgkafka.MessageHandler,
	chClient *pkgch.Client,
	hub *ws.Hub,
	apiHandler *api.TrackerEchoHandler,
) *server.App {
	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.NoopHook{})
	}
	app := server.New(cfg, log, collector, consumer, handlers, chClient, hub)
	app.SetHTTPHandler(apiHandler)
	if collector != nil {
		proc := collector.Processor()
		proc.OnPrediction = hub.BroadcastPrediction
		proc.OnSideBet = hub.BroadcastSideBet
		app.TickProc = proc
	}
	return app
}
