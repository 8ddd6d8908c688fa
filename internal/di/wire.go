//go:build wireinject
// +build wireinject

package di

import (
	"TrendLab/pkg/config"
	"TrendLab/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideAlpacaClient,
		ProvideCache,

		// Repositories
		ProvideBarStore,
		ProvideEpisodeStore,
		ProvideBarPublisher,
		ProvideEpisodePublisher,
		ProvideScalerStore,
		ProvideDatasetWriter,
		ProvideMarketStream,
		ProvideClassifier,

		// Use cases
		ProvideMarketData,
		ProvidePipeline,
		ProvideOverlay,
		ProvideDataset,
		ProvideJobQueue,
		ProvideBarProcessor,
		ProvideBarCollector,
		ProvideKafkaBarsHandler,

		// Transport
		ProvideLimiter,
		ProvideAPIHandler,

		ProvideApp,
	)
	return &server.App{}, nil
}
