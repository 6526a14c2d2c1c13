//go:build wireinject
// +build wireinject

package di

import (
	"github.com/GuillaumeBld/WTI-Agent-Trading-Bot/pkg/config"
	"github.com/GuillaumeBld/WTI-Agent-Trading-Bot/pkg/server"

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
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideCache,

		// Repositories
		ProvideSignalStore,
		ProvideCandleStore,
		ProvideOrderPublisher,
		ProvideFeatureSource,
		ProvideChainStream,

		// Use cases
		ProvideStrategy,
		ProvidePipeline,
		ProvideAccount,
		ProvideCycleRunner,
		ProvideChainCollector,
		ProvideFeaturesHandler,

		// HTTP + application server
		ProvideHTTPHandler,
		ProvideApp,
	)
	return &server.App{}, nil
}
