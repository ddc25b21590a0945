//go:build wireinject
// +build wireinject

package di

import (
	internalrepo "EpiPulse/internal/repository"
	"EpiPulse/internal/usecase"
	"EpiPulse/pkg/config"
	"EpiPulse/pkg/server"

	"github.com/google/wire"
)

var analysisSet = wire.NewSet(
	// Observability
	ProvideLogger,
	ProvideMetrics,

	// Infrastructure clients
	ProvideCache,
	ProvideClickHouseClient,
	ProvideKafkaProducer,

	// Repositories
	ProvideCaseStore,
	ProvideCaseSources,
	ProvideReportPublisher,

	// Analysis engines
	ProvidePreparer,
	ProvideAnomalyEngine,
	ProvideForecastEngine,
	ProvideNarrator,

	// Use cases
	ProvideOutbreakAnalyzer,
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		analysisSet,
		ProvideRateLimiter,
		ProvideOutbreakHandler,
		ProvideHTTPServer,
		ProvideKafkaConsumer,
		ProvideKafkaAnalysisHandler,
		ProvideApp,
	)
	return &server.App{}, nil
}

// InitializeAnalyzer wires the analysis pipeline without any server.
func InitializeAnalyzer(cfg *config.Config) (*usecase.OutbreakAnalyzer, error) {
	wire.Build(analysisSet)
	return &usecase.OutbreakAnalyzer{}, nil
}

// InitializeCaseStore connects to the ClickHouse cases table.
func InitializeCaseStore(cfg *config.Config) (*internalrepo.CHCaseStore, error) {
	wire.Build(ProvideLogger, ProvideClickHouseClient, ProvideCaseStore)
	return &internalrepo.CHCaseStore{}, nil
}
