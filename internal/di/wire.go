//go:build wireinject
// +build wireinject

package di

import (
	"OrdreBook/pkg/config"
	"OrdreBook/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Infrastructure clients
		ProvideKafkaProducer,
		ProvideLogger,
		ProvideMetrics,
		ProvideClickHouseClient,
		ProvideCache,

		// Repositories
		ProvideJournal,
		ProvideExecutionHistory,
		ProvideNotifier,
		ProvideStateStore,
		ProvideExchange,

		// Execution
		ProvideRiskGate,
		ProvidePositionSizer,
		ProvideOrderLifecycle,
		ProvideExecutionEngine,
		ProvidePerformanceReporter,

		// Signals
		ProvideAnalyzers,
		ProvideSignalAggregator,
		ProvideSignalPipeline,
		ProvideDecisionRouter,
		ProvideMarketAssembler,
		ProvideMarketCollector,

		// External inputs
		ProvideKafkaConsumer,
		ProvideKafkaSignalsHandler,
		ProvideExecutionHandler,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
