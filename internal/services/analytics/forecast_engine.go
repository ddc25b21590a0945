package analytics

import (
	"fmt"

	"EpiPulse/internal/domain/models"
	"EpiPulse/internal/domain/service"
	applogger "EpiPulse/pkg/logger"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	forecastTrendWindow = 7
	forecastTrendChange = 0.1
	forecastTrendEps    = 1e-6
)

// FallbackObserver is told whenever the primary forecaster fails.
type FallbackObserver func(method models.ForecastMethod, err error)

// ForecastEngineOption configures ForecastEngine.
type ForecastEngineOption func(*ForecastEngine)

func WithPrimary(f service.Forecaster) ForecastEngineOption {
	return func(e *ForecastEngine) { e.primary = f }
}

func WithFallback(f service.Forecaster) ForecastEngineOption {
	return func(e *ForecastEngine) { e.fallback = f }
}

func WithFallbackObserver(fn FallbackObserver) ForecastEngineOption {
	return func(e *ForecastEngine) { e.onFallback = fn }
}

func WithForecastLogger(l applogger.Interface) ForecastEngineOption {
	return func(e *ForecastEngine) { e.logger = l }
}

// ForecastEngine dispatches to a forecaster by method name. When the
// primary model fails the fallback result is returned instead, so callers
// always get a forecast for a non-empty series.
type ForecastEngine struct {
	primary    service.Forecaster
	fallback   service.Forecaster
	onFallback FallbackObserver
	logger     applogger.Interface
}

var _ service.ForecastProducer = (*ForecastEngine)(nil)

func NewForecastEngine(opts ...ForecastEngineOption) (*ForecastEngine, error) {
	e := &ForecastEngine{logger: applogger.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = applogger.NewNop()
	}
	if e.primary == nil {
		p, err := NewDecompositionForecaster(WithDecompositionLogger(e.logger))
		if err != nil {
			return nil, err
		}
		e.primary = p
	}
	if e.fallback == nil {
		e.fallback = NewMovingAverageForecaster()
	}
	return e, nil
}

// Run returns the forecast produced for method, falling back when needed.
func (e *ForecastEngine) Run(s *models.PreparedSeries, horizon int, method models.ForecastMethod) (models.ForecastResult, error) {
	switch method {
	case models.ForecastSimple:
		res := e.fallback.Forecast(s, horizon)
		if !res.OK() {
			return res, res.Err
		}
		return res, nil

	case models.ForecastProphet:
		res := e.primary.Forecast(s, horizon)
		if res.OK() {
			return res, nil
		}
		e.logger.Warn("primary forecast failed, falling back",
			applogger.String("primary", string(e.primary.Name())),
			applogger.String("fallback", string(e.fallback.Name())),
			applogger.Error(res.Err),
		)
		if e.onFallback != nil {
			e.onFallback(e.primary.Name(), res.Err)
		}
		fb := e.fallback.Forecast(s, horizon)
		if !fb.OK() {
			return fb, fb.Err
		}
		return fb, nil

	default:
		return models.ForecastResult{}, fmt.Errorf("%w: %q", models.ErrUnknownForecastMethod, method)
	}
}

// Forecast implements service.ForecastProducer.
func (e *ForecastEngine) Forecast(s *models.PreparedSeries, horizon int, method models.ForecastMethod) ([]models.ForecastPoint, models.ForecastStats, error) {
	res, err := e.Run(s, horizon, method)
	if err != nil {
		return nil, models.ForecastStats{}, err
	}
	stats := ForecastSummary(res.Points, res.Method)
	e.logger.Info("forecast complete",
		applogger.String("method", string(res.Method)),
		applogger.Int("horizon", horizon),
		applogger.String("trend", string(stats.Trend)),
	)
	return res.Points, stats, nil
}

// ForecastSummary aggregates forecast points. The trend compares the mean
// of the first week with the mean of the last week.
func ForecastSummary(points []models.ForecastPoint, method models.ForecastMethod) models.ForecastStats {
	st := models.ForecastStats{HorizonDays: len(points), Trend: models.TrendStable, Method: method}
	if len(points) == 0 {
		return st
	}
	vals := make([]float64, len(points))
	for i, p := range points {
		vals[i] = p.Forecast
	}
	st.MeanForecast = stat.Mean(vals, nil)
	st.MaxForecast = floats.Max(vals)
	st.MinForecast = floats.Min(vals)

	w := forecastTrendWindow
	if w > len(vals) {
		w = len(vals)
	}
	first := stat.Mean(vals[:w], nil)
	last := stat.Mean(vals[len(vals)-w:], nil)
	change := (last - first) / (first + forecastTrendEps)
	switch {
	case change > forecastTrendChange:
		st.Trend = models.TrendIncreasing
	case change < -forecastTrendChange:
		st.Trend = models.TrendDecreasing
	}
	return st
}
