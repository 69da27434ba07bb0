//go:build wireinject
// +build wireinject

package di

import (
	"RugTracker/pkg/config"
	"RugTracker/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire generates the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,

		// Repositories
		ProvideStorage,
		ProvidePublisher,
		ProvideStateStore,
		ProvideFeedStream,
		ProvideAnalytics,

		// Use cases
		ProvideArchiveQueue,
		ProvideTracker,
		ProvideRecordProcessor,
		ProvideTickProcessor,
		ProvideTickCollector,
		ProvideKafkaHandlers,

		// Transport
		ProvideHub,
		ProvideAPIHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
