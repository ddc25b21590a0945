package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"EpiPulse/internal/domain/models"
	domrepo "EpiPulse/internal/domain/repository"
	"EpiPulse/internal/domain/service"
	applogger "EpiPulse/pkg/logger"

	"github.com/google/uuid"
)

// AnalyzeParams selects the series to analyze and how to forecast it.
type AnalyzeParams struct {
	Country string
	Disease string
	Source  domrepo.DataSource
	Dataset string
	Method  models.ForecastMethod
	Horizon int
	From    time.Time
	To      time.Time
}

// AnalyzerOption configures OutbreakAnalyzer.
type AnalyzerOption func(*OutbreakAnalyzer)

// WithPublisher announces completed analyses.
func WithPublisher(p domrepo.ReportPublisher) AnalyzerOption {
	return func(a *OutbreakAnalyzer) { a.publisher = p }
}

func WithMetrics(m domrepo.Metrics) AnalyzerOption {
	return func(a *OutbreakAnalyzer) { a.metrics = m }
}

func WithLogger(l applogger.Interface) AnalyzerOption {
	return func(a *OutbreakAnalyzer) { a.log = l }
}

// WithTimeout bounds loading plus analysis of one request.
func WithTimeout(d time.Duration) AnalyzerOption {
	return func(a *OutbreakAnalyzer) { a.timeout = d }
}

// WithDefaultHorizon sets the horizon used when a request leaves it zero.
func WithDefaultHorizon(days int) AnalyzerOption {
	return func(a *OutbreakAnalyzer) { a.defaultHorizon = days }
}

// WithDiseases sets the diseases advertised by Diseases.
func WithDiseases(names []string) AnalyzerOption {
	return func(a *OutbreakAnalyzer) { a.diseases = names }
}

// WithClock replaces time.Now and the ID generator; used by tests.
func WithClock(now func() time.Time, newID func() string) AnalyzerOption {
	return func(a *OutbreakAnalyzer) {
		a.now = now
		a.newID = newID
	}
}

// OutbreakAnalyzer runs the load, prepare, detect+forecast, narrate pipeline
// for one country and disease.
type OutbreakAnalyzer struct {
	sources        map[domrepo.DataSource]domrepo.CaseSource
	preparer       service.SeriesPreparer
	anomalies      service.AnomalyDetector
	forecasts      service.ForecastProducer
	narrator       service.Narrator
	publisher      domrepo.ReportPublisher
	metrics        domrepo.Metrics
	log            applogger.Interface
	timeout        time.Duration
	defaultHorizon int
	diseases       []string
	now            func() time.Time
	newID          func() string
}

// NewOutbreakAnalyzer wires the pipeline. Every source is registered under
// its Name.
func NewOutbreakAnalyzer(
	sources []domrepo.CaseSource,
	preparer service.SeriesPreparer,
	anomalies service.AnomalyDetector,
	forecasts service.ForecastProducer,
	narrator service.Narrator,
	opts ...AnalyzerOption,
) (*OutbreakAnalyzer, error) {
	if preparer == nil || anomalies == nil || forecasts == nil || narrator == nil {
		return nil, fmt.Errorf("analyzer: preparer, anomaly detector, forecaster and narrator are required")
	}
	a := &OutbreakAnalyzer{
		sources:        make(map[domrepo.DataSource]domrepo.CaseSource, len(sources)),
		preparer:       preparer,
		anomalies:      anomalies,
		forecasts:      forecasts,
		narrator:       narrator,
		timeout:        45 * time.Second,
		defaultHorizon: 14,
		diseases:       []string{"COVID-19", "Influenza", "Measles", "Dengue", "Malaria", "Tuberculosis"},
		now:            time.Now,
		newID:          uuid.NewString,
	}
	for _, s := range sources {
		if s != nil {
			a.sources[s.Name()] = s
		}
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.log == nil {
		a.log = applogger.NewNop()
	}
	if a.metrics == nil {
		a.metrics = nopMetrics{}
	}
	return a, nil
}

// Sources lists the registered data sources, sorted.
func (a *OutbreakAnalyzer) Sources() []domrepo.DataSource {
	out := make([]domrepo.DataSource, 0, len(a.sources))
	for name := range a.sources {
		out = append(out, name)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Diseases returns the supported disease names.
func (a *OutbreakAnalyzer) Diseases() []string {
	out := make([]string, len(a.diseases))
	copy(out, a.diseases)
	return out
}

// Countries lists the countries available in a source's dataset.
func (a *OutbreakAnalyzer) Countries(ctx context.Context, source domrepo.DataSource, dataset string) ([]string, error) {
	src, err := a.source(source)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	countries, err := src.Countries(ctx, dataset)
	if err != nil {
		a.metrics.RecordError("countries")
		return nil, fmt.Errorf("list countries from %s: %w", source, err)
	}
	return countries, nil
}

// Analyze runs the full pipeline and publishes the result.
func (a *OutbreakAnalyzer) Analyze(ctx context.Context, p AnalyzeParams) (*models.Analysis, error) {
	start := a.now()
	if p.Country == "" || p.Disease == "" {
		return nil, fmt.Errorf("%w: country and disease are required", models.ErrInvalidRequest)
	}
	if p.Method == "" {
		p.Method = models.ForecastProphet
	}
	if !p.Method.Valid() {
		return nil, fmt.Errorf("%w: %q", models.ErrUnknownForecastMethod, p.Method)
	}
	if p.Horizon == 0 {
		p.Horizon = a.defaultHorizon
	}
	if p.Horizon < 1 {
		return nil, fmt.Errorf("%w: horizon must be positive, got %d", models.ErrInvalidRequest, p.Horizon)
	}
	if !p.From.IsZero() && !p.To.IsZero() && p.To.Before(p.From) {
		return nil, fmt.Errorf("%w: end_date before start_date", models.ErrInvalidRequest)
	}
	p.Source = domrepo.NormalizeDataSource(string(p.Source))
	src, err := a.source(p.Source)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	loadStart := a.now()
	rows, err := src.Load(ctx, domrepo.CaseQuery{
		Dataset: p.Dataset,
		Country: p.Country,
		Disease: p.Disease,
		From:    p.From,
		To:      p.To,
	})
	if err != nil {
		a.metrics.RecordError("load")
		return nil, fmt.Errorf("load %s cases: %w", p.Source, err)
	}
	rows = withinRange(rows, p.From, p.To)
	a.metrics.RecordLatency("load", a.now().Sub(loadStart).Seconds())

	series, err := a.preparer.Prepare(rows)
	if err != nil {
		a.metrics.RecordError("prepare")
		return nil, fmt.Errorf("prepare series: %w", err)
	}
	summary := a.preparer.Summarize(series)

	anomalyRecords, anomalyStats, points, forecastStats, err := a.detectAndForecast(ctx, series, p)
	if err != nil {
		a.metrics.RecordError("analyze")
		return nil, err
	}

	report := a.narrator.Narrate(p.Country, p.Disease, summary, anomalyStats, forecastStats)

	res := &models.Analysis{
		ID:            a.newID(),
		Country:       p.Country,
		Disease:       p.Disease,
		CleanedData:   cleaned(series),
		Anomalies:     anomalyRecords,
		Forecast:      points,
		SummaryStats:  summary,
		AnomalyStats:  anomalyStats,
		ForecastStats: forecastStats,
		Explanation:   report,
		GeneratedAt:   a.now().UTC(),
	}

	elapsed := a.now().Sub(start)
	a.metrics.RecordLatency("analyze", elapsed.Seconds())
	a.metrics.RecordAnalysis(string(p.Source), string(forecastStats.Method), string(report.RiskLevel))
	a.metrics.RecordAnomalies(models.DetectorDeviation, anomalyStats.DeviationDetections)
	a.metrics.RecordAnomalies(models.DetectorModel, anomalyStats.ModelDetections)

	a.log.Info("analysis completed",
		applogger.String("id", res.ID),
		applogger.String("country", p.Country),
		applogger.String("disease", p.Disease),
		applogger.String("source", string(p.Source)),
		applogger.Int("data_points", summary.DataPoints),
		applogger.Int("anomalies", anomalyStats.TotalAnomalies),
		applogger.String("forecast_method", string(forecastStats.Method)),
		applogger.String("risk", string(report.RiskLevel)),
		applogger.Duration("elapsed", elapsed),
	)

	a.publish(ctx, res, string(p.Source))
	return res, nil
}

// detectAndForecast runs anomaly detection and forecasting concurrently.
func (a *OutbreakAnalyzer) detectAndForecast(ctx context.Context, s *models.PreparedSeries, p AnalyzeParams) (
	[]models.AnomalyRecord, models.AnomalyStats, []models.ForecastPoint, models.ForecastStats, error,
) {
	type anomalyOut struct {
		records []models.AnomalyRecord
		stats   models.AnomalyStats
	}
	type forecastOut struct {
		points []models.ForecastPoint
		stats  models.ForecastStats
	}
	type item struct {
		name string
		val  interface{}
		err  error
	}

	ch := make(chan item, 2)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		start := a.now()
		records, stats, err := a.anomalies.Detect(s)
		a.metrics.RecordLatency("detect", a.now().Sub(start).Seconds())
		ch <- item{"anomalies", anomalyOut{records, stats}, err}
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		start := a.now()
		points, stats, err := a.forecasts.Forecast(s, p.Horizon, p.Method)
		a.metrics.RecordLatency("forecast", a.now().Sub(start).Seconds())
		ch <- item{"forecast", forecastOut{points, stats}, err}
	}()

	go func() { wg.Wait(); close(ch) }()

	var (
		anomalies anomalyOut
		forecast  forecastOut
	)
	for {
		select {
		case <-ctx.Done():
			return nil, models.AnomalyStats{}, nil, models.ForecastStats{}, fmt.Errorf("analysis interrupted: %w", ctx.Err())
		case it, ok := <-ch:
			if !ok {
				return anomalies.records, anomalies.stats, forecast.points, forecast.stats, nil
			}
			if it.err != nil {
				return nil, models.AnomalyStats{}, nil, models.ForecastStats{}, fmt.Errorf("%s: %w", it.name, it.err)
			}
			switch v := it.val.(type) {
			case anomalyOut:
				anomalies = v
			case forecastOut:
				forecast = v
			}
		}
	}
}

func (a *OutbreakAnalyzer) publish(ctx context.Context, res *models.Analysis, source string) {
	if a.publisher == nil {
		return
	}
	if err := a.publisher.PublishAnalysis(ctx, models.NewAnalysisEvent(res, source)); err != nil {
		a.metrics.RecordError("publish")
		a.log.Warn("analysis event not published", applogger.String("id", res.ID), applogger.Error(err))
	}
}

func (a *OutbreakAnalyzer) source(name domrepo.DataSource) (domrepo.CaseSource, error) {
	if name == "" {
		name = domrepo.DefaultDataSource()
	}
	src, ok := a.sources[name]
	if !ok {
		if domrepo.IsValidDataSource(name) {
			return nil, fmt.Errorf("%w: %s is not configured", models.ErrUnknownDataSource, name)
		}
		return nil, fmt.Errorf("%w: %s", models.ErrUnknownDataSource, name)
	}
	return src, nil
}

func withinRange(rows []models.CasePoint, from, to time.Time) []models.CasePoint {
	if from.IsZero() && to.IsZero() {
		return rows
	}
	out := make([]models.CasePoint, 0, len(rows))
	for _, r := range rows {
		if !from.IsZero() && r.Date.Time.Before(from) {
			continue
		}
		if !to.IsZero() && r.Date.Time.After(to) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func cleaned(s *models.PreparedSeries) []models.CleanedPoint {
	out := make([]models.CleanedPoint, len(s.Points))
	for i, p := range s.Points {
		out[i] = models.CleanedPoint{
			Date:        p.Date,
			Cases:       p.Cases,
			RollingMean: p.RollingMean,
			RollingStd:  p.RollingStd,
		}
	}
	return out
}

type nopMetrics struct{}

func (nopMetrics) RecordAnalysis(string, string, string) {}
func (nopMetrics) RecordAnomalies(string, int)           {}
func (nopMetrics) RecordForecastFallback(string)         {}
func (nopMetrics) RecordError(string)                    {}
func (nopMetrics) RecordLatency(string, float64)         {}
