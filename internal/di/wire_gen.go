// Injectors mirroring wire.go, maintained by hand. Keep in sync with the
// provider sets there.

//go:build !wireinject
// +build !wireinject

package di

import (
	internalrepo "EpiPulse/internal/repository"
	"EpiPulse/internal/usecase"
	"EpiPulse/pkg/config"
	"EpiPulse/pkg/server"
)

// Injectors from wire.go:

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	logger, err := ProvideLogger(cfg)
	if err != nil {
		return nil, err
	}
	recorder := ProvideMetrics()
	client, err := ProvideClickHouseClient(cfg, logger)
	if err != nil {
		return nil, err
	}
	chCaseStore, err := ProvideCaseStore(client, cfg, logger)
	if err != nil {
		return nil, err
	}
	service, err := ProvideCache(cfg)
	if err != nil {
		return nil, err
	}
	v := ProvideCaseSources(cfg, logger, recorder, chCaseStore, service)
	preparer, err := ProvidePreparer(cfg, logger)
	if err != nil {
		return nil, err
	}
	anomalyEngine, err := ProvideAnomalyEngine(cfg, logger)
	if err != nil {
		return nil, err
	}
	forecastEngine, err := ProvideForecastEngine(cfg, logger, recorder)
	if err != nil {
		return nil, err
	}
	riskNarrator, err := ProvideNarrator(cfg)
	if err != nil {
		return nil, err
	}
	producer, err := ProvideKafkaProducer(cfg, logger)
	if err != nil {
		return nil, err
	}
	reportPublisher := ProvideReportPublisher(producer, cfg)
	outbreakAnalyzer, err := ProvideOutbreakAnalyzer(cfg, logger, recorder, v, preparer, anomalyEngine, forecastEngine, riskNarrator, reportPublisher)
	if err != nil {
		return nil, err
	}
	limiter := ProvideRateLimiter(cfg)
	outbreakEchoHandler := ProvideOutbreakHandler(logger, outbreakAnalyzer, limiter, client, service)
	httpServer := ProvideHTTPServer(cfg, logger, outbreakEchoHandler)
	consumer, err := ProvideKafkaConsumer(cfg, logger)
	if err != nil {
		return nil, err
	}
	kafkaAnalysisHandler := ProvideKafkaAnalysisHandler(cfg, outbreakAnalyzer, recorder, logger)
	app := ProvideApp(cfg, logger, httpServer, consumer, kafkaAnalysisHandler, limiter, producer, reportPublisher, client, service)
	return app, nil
}

// InitializeAnalyzer wires the analysis pipeline without any server.
func InitializeAnalyzer(cfg *config.Config) (*usecase.OutbreakAnalyzer, error) {
	logger, err := ProvideLogger(cfg)
	if err != nil {
		return nil, err
	}
	recorder := ProvideMetrics()
	client, err := ProvideClickHouseClient(cfg, logger)
	if err != nil {
		return nil, err
	}
	chCaseStore, err := ProvideCaseStore(client, cfg, logger)
	if err != nil {
		return nil, err
	}
	service, err := ProvideCache(cfg)
	if err != nil {
		return nil, err
	}
	v := ProvideCaseSources(cfg, logger, recorder, chCaseStore, service)
	preparer, err := ProvidePreparer(cfg, logger)
	if err != nil {
		return nil, err
	}
	anomalyEngine, err := ProvideAnomalyEngine(cfg, logger)
	if err != nil {
		return nil, err
	}
	forecastEngine, err := ProvideForecastEngine(cfg, logger, recorder)
	if err != nil {
		return nil, err
	}
	riskNarrator, err := ProvideNarrator(cfg)
	if err != nil {
		return nil, err
	}
	producer, err := ProvideKafkaProducer(cfg, logger)
	if err != nil {
		return nil, err
	}
	reportPublisher := ProvideReportPublisher(producer, cfg)
	outbreakAnalyzer, err := ProvideOutbreakAnalyzer(cfg, logger, recorder, v, preparer, anomalyEngine, forecastEngine, riskNarrator, reportPublisher)
	if err != nil {
		return nil, err
	}
	return outbreakAnalyzer, nil
}

// InitializeCaseStore connects to the ClickHouse cases table.
func InitializeCaseStore(cfg *config.Config) (*internalrepo.CHCaseStore, error) {
	logger, err := ProvideLogger(cfg)
	if err != nil {
		return nil, err
	}
	client, err := ProvideClickHouseClient(cfg, logger)
	if err != nil {
		return nil, err
	}
	chCaseStore, err := ProvideCaseStore(client, cfg, logger)
	if err != nil {
		return nil, err
	}
	return chCaseStore, nil
}
