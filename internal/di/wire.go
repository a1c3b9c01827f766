//go:build wireinject
// +build wireinject

package di

import (
	"SMCFlow/pkg/config"
	"SMCFlow/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvidePostgresPool,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,

		// Stores and publishers
		ProvideCandleStore,
		ProvideSignalStore,
		ProvideTradeStore,
		ProvideGrantStore,
		ProvideEquityStore,
		ProvideSignalPublisher,

		// Entitlement
		ProvideQuotaStore,
		ProvideGate,
		ProvideUserPlans,

		// Engine and ingest chain
		ProvideEngine,
		ProvideCandleProcessor,
		ProvideIngestPipeline,
		ProvideCandleStream,
		ProvideCandleCollector,
		ProvideKafkaCandlesHandler,

		// Query side
		ProvideCacheService,
		ProvideReportingUseCase,
		ProvideCandlesUseCase,
		ProvideReportingHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
