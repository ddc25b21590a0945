package di

import (
	"context"
	"fmt"
	"time"

	"EpiPulse/internal/domain/models"
	"EpiPulse/internal/domain/repository"
	"EpiPulse/internal/handler/api"
	internalrepo "EpiPulse/internal/repository"
	"EpiPulse/internal/service/ratelimit"
	"EpiPulse/internal/services/analytics"
	"EpiPulse/internal/services/features"
	"EpiPulse/internal/usecase"
	"EpiPulse/pkg/cache"
	pkgch "EpiPulse/pkg/clickhouse"
	"EpiPulse/pkg/config"
	xhttp "EpiPulse/pkg/http"
	httpmw "EpiPulse/pkg/http/middleware"
	pkgkafka "EpiPulse/pkg/kafka"
	applogger "EpiPulse/pkg/logger"
	"EpiPulse/pkg/metrics"
	"EpiPulse/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() *metrics.Recorder {
	return metrics.New()
}

// ProvideCache creates the configured cache, or nil when caching is off.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	if !cfg.Cache.Enabled {
		return nil, nil
	}
	mem := []cache.MemoryOption{
		cache.WithMemoryMaxSize(512),
		cache.WithMemoryDefaultTTL(cfg.Cache.SeriesTTL),
	}
	if cfg.Cache.Type == "memory" {
		return cache.NewMemoryCache(mem...), nil
	}

	rc, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Redis.Addr),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	if cfg.Cache.Type == "layered" {
		return cache.NewLayeredCache(rc, time.Minute, mem...), nil
	}
	return rc, nil
}

// ProvideClickHouseClient connects to ClickHouse when it is enabled.
func ProvideClickHouseClient(cfg *config.Config, l *applogger.Logger) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
		pkgch.WithLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideCaseStore opens the ClickHouse cases table and makes sure it exists.
func ProvideCaseStore(ch *pkgch.Client, cfg *config.Config, l *applogger.Logger) (*internalrepo.CHCaseStore, error) {
	if ch == nil {
		return nil, nil
	}
	store, err := internalrepo.NewCHCaseStore(ch, cfg.ClickHouse.Database+"."+cfg.ClickHouse.Table, l)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := ch.InitSchema(ctx, store.SchemaStatements()); err != nil {
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return store, nil
}

// ProvideCaseSources builds every configured source, each behind the cache
// when one is available.
func ProvideCaseSources(
	cfg *config.Config,
	l *applogger.Logger,
	rec *metrics.Recorder,
	store *internalrepo.CHCaseStore,
	c cache.Service,
) []repository.CaseSource {
	owid := internalrepo.NewOWIDSource(
		xhttp.NewClient(xhttp.WithTimeout(cfg.Data.FetchTimeout)),
		internalrepo.WithOWIDURL(cfg.Data.OWIDURL),
		internalrepo.WithOWIDBreaker(cfg.Data.Breaker.MaxFailures, cfg.Data.Breaker.OpenTimeout),
		internalrepo.WithOWIDStateHook(rec.RecordBreakerState),
		internalrepo.WithOWIDLogger(l),
	)
	csv := internalrepo.NewCSVSource(cfg.Data.Dir, ColumnsFromConfig(cfg), cfg.Data.FallbackCountries, l)

	sources := []repository.CaseSource{owid, csv}
	if store != nil {
		sources = append(sources, store)
	}
	if c == nil {
		return sources
	}
	for i, s := range sources {
		sources[i] = internalrepo.NewCachedSource(s, c, cfg.Cache.SeriesTTL, cfg.Cache.ListTTL, l)
	}
	return sources
}

// ColumnsFromConfig maps the configured CSV column names.
func ColumnsFromConfig(cfg *config.Config) internalrepo.ColumnMap {
	return internalrepo.ColumnMap{
		Date:    cfg.Data.Columns.Date,
		Cases:   cfg.Data.Columns.Cases,
		Country: cfg.Data.Columns.Country,
		Disease: cfg.Data.Columns.Disease,
	}
}

// ProvidePreparer creates the series preparer.
func ProvidePreparer(cfg *config.Config, l *applogger.Logger) (*features.Preparer, error) {
	return features.NewPreparer(
		features.WithWindow(cfg.Analysis.RollingWindow),
		features.WithMinPoints(cfg.Analysis.MinDataPoints),
		features.WithInterpolation(cfg.Analysis.Interpolation),
		features.WithLogger(l),
	)
}

// ProvideAnomalyEngine creates the fused deviation and isolation forest detector.
func ProvideAnomalyEngine(cfg *config.Config, l *applogger.Logger) (*analytics.AnomalyEngine, error) {
	return analytics.NewAnomalyEngine(
		analytics.WithDeviationThreshold(cfg.Analysis.ZScoreThreshold),
		analytics.WithContamination(cfg.Analysis.Contamination),
		analytics.WithTrees(cfg.Analysis.Trees),
		analytics.WithSeed(cfg.Analysis.Seed),
		analytics.WithAnomalyLogger(l),
	)
}

// ProvideForecastEngine creates the forecaster with its moving-average fallback.
func ProvideForecastEngine(cfg *config.Config, l *applogger.Logger, rec *metrics.Recorder) (*analytics.ForecastEngine, error) {
	primary, err := analytics.NewDecompositionForecaster(
		analytics.WithIntervalWidth(cfg.Analysis.IntervalWidth),
		analytics.WithSeasonalityMode(cfg.Analysis.SeasonalityMode),
		analytics.WithChangepointPriorScale(cfg.Analysis.ChangepointPriorScale),
		analytics.WithSeasonalityPriorScale(cfg.Analysis.SeasonalityPriorScale),
		analytics.WithDecompositionLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("forecaster: %w", err)
	}
	return analytics.NewForecastEngine(
		analytics.WithPrimary(primary),
		analytics.WithFallbackObserver(func(method models.ForecastMethod, _ error) {
			rec.RecordForecastFallback(string(method))
		}),
		analytics.WithForecastLogger(l),
	)
}

// ProvideNarrator creates the risk narrator.
func ProvideNarrator(cfg *config.Config) (*analytics.RiskNarrator, error) {
	return analytics.NewRiskNarrator(analytics.WithRiskThresholds(cfg.Analysis.RiskMedium, cfg.Analysis.RiskHigh))
}

// ProvideKafkaProducer creates a Kafka producer when Kafka is enabled.
func ProvideKafkaProducer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
		pkgkafka.WithProducerLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideReportPublisher publishes analysis events to Kafka, or nowhere.
func ProvideReportPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.ReportPublisher {
	if producer == nil {
		return internalrepo.NopReportPublisher{}
	}
	return internalrepo.NewKafkaReportPublisher(producer, cfg.Kafka.Topic)
}

// ProvideOutbreakAnalyzer creates the analysis use case.
func ProvideOutbreakAnalyzer(
	cfg *config.Config,
	l *applogger.Logger,
	rec *metrics.Recorder,
	sources []repository.CaseSource,
	preparer *features.Preparer,
	anomalies *analytics.AnomalyEngine,
	forecasts *analytics.ForecastEngine,
	narrator *analytics.RiskNarrator,
	pub repository.ReportPublisher,
) (*usecase.OutbreakAnalyzer, error) {
	return usecase.NewOutbreakAnalyzer(sources, preparer, anomalies, forecasts, narrator,
		usecase.WithPublisher(pub),
		usecase.WithMetrics(rec),
		usecase.WithLogger(l),
		usecase.WithTimeout(cfg.Server.RequestTimeout),
		usecase.WithDefaultHorizon(cfg.Analysis.ForecastHorizon),
		usecase.WithDiseases(cfg.Data.Diseases),
	)
}

// ProvideRateLimiter creates the per-client limiter for analysis requests.
func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	if !cfg.RateLimit.Enabled {
		return nil
	}
	return ratelimit.New(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, cfg.RateLimit.IdleTTL)
}

// ProvideOutbreakHandler creates the HTTP handler with health checks for
// every dependency in use.
func ProvideOutbreakHandler(
	l *applogger.Logger,
	analyzer *usecase.OutbreakAnalyzer,
	limiter *ratelimit.Limiter,
	ch *pkgch.Client,
	c cache.Service,
) *api.OutbreakEchoHandler {
	opts := []api.OutbreakHandlerOption{}
	if limiter != nil {
		opts = append(opts, api.WithRateLimiter(limiter))
	}
	if ch != nil {
		opts = append(opts, api.WithHealthCheck("clickhouse", ch.Health))
	}
	if c != nil {
		opts = append(opts, api.WithHealthCheck("cache", func(ctx context.Context) error {
			_, err := c.Exists(ctx, "health")
			return err
		}))
	}
	return api.NewOutbreakEchoHandler(l, analyzer, opts...)
}

// ProvideHTTPServer creates the Echo server.
func ProvideHTTPServer(cfg *config.Config, l *applogger.Logger, h *api.OutbreakEchoHandler) *xhttp.Server {
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	return xhttp.NewServer([]xhttp.Handler{h},
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(httpmw.CORSConfig{
			AllowOrigins: cfg.Server.CORS.Origins,
			AllowMethods: cfg.Server.CORS.Methods,
			AllowHeaders: cfg.Server.CORS.Headers,
			MaxAge:       cfg.Server.CORS.MaxAge,
		}),
		xhttp.WithMetricsPath(metricsPath),
		xhttp.WithLogger(l),
	)
}

// ProvideKafkaConsumer creates a Kafka consumer configured from YAML when
// queued analysis requests are enabled.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled || !cfg.Kafka.Consumer.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithHandlerTimeout(cfg.Server.RequestTimeout),
		pkgkafka.WithConsumerLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.NewHookChain(pkgkafka.TraceHook{}, pkgkafka.NewLoggingHook(l)))
	return consumer, nil
}

// ProvideKafkaAnalysisHandler handles the analysis request topic.
func ProvideKafkaAnalysisHandler(
	cfg *config.Config,
	analyzer *usecase.OutbreakAnalyzer,
	rec *metrics.Recorder,
	l *applogger.Logger,
) *usecase.KafkaAnalysisHandler {
	return usecase.NewKafkaAnalysisHandler(cfg.Kafka.RequestTopic, analyzer, rec, l)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	httpServer *xhttp.Server,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaAnalysisHandler,
	limiter *ratelimit.Limiter,
	producer *pkgkafka.Producer,
	pub repository.ReportPublisher,
	ch *pkgch.Client,
	c cache.Service,
) *server.App {
	if producer != nil && cfg.Logging.Collector.Enabled {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   cfg.Logging.Collector.Interval,
			CountThreshold: cfg.Logging.Collector.CountThreshold,
			Topic:          cfg.Logging.Collector.Topic,
			Publisher:      producer,
		})
	}

	app := server.New(cfg, l, httpServer)
	if consumer != nil {
		app.SetConsumer(consumer, kh)
	}
	if limiter != nil {
		app.SetLimiter(limiter)
	}
	// closed in order: publisher flushes before the producer underneath it
	app.OnClose("report publisher", pub.Close)
	if ch != nil {
		app.OnClose("clickhouse", ch.Close)
	}
	if c != nil {
		app.OnClose("cache", c.Close)
	}
	return app
}
