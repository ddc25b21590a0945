package features

import (
	"fmt"
	"math"
	"sort"
	"time"

	"EpiPulse/internal/domain/models"
	"EpiPulse/internal/domain/service"
	applogger "EpiPulse/pkg/logger"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	// InterpolationLinear is the only gap-filling policy supported.
	InterpolationLinear = "linear"

	trendLookbackDays = 14
	trendThreshold    = 0.5
)

// PreparerOption configures Preparer.
type PreparerOption func(*PreparerConfig)

// PreparerConfig holds series preparation settings.
type PreparerConfig struct {
	Window        int
	MinPoints     int
	Interpolation string
	Logger        applogger.Interface
}

// WithWindow sets the rolling window in days.
func WithWindow(days int) PreparerOption {
	return func(c *PreparerConfig) { c.Window = days }
}

// WithMinPoints sets the minimum number of raw rows required.
func WithMinPoints(n int) PreparerOption {
	return func(c *PreparerConfig) { c.MinPoints = n }
}

// WithInterpolation sets the gap-filling policy.
func WithInterpolation(method string) PreparerOption {
	return func(c *PreparerConfig) { c.Interpolation = method }
}

// WithLogger injects a logger.
func WithLogger(l applogger.Interface) PreparerOption {
	return func(c *PreparerConfig) { c.Logger = l }
}

// Preparer cleans raw case rows into a PreparedSeries.
type Preparer struct {
	cfg PreparerConfig
}

var _ service.SeriesPreparer = (*Preparer)(nil)

// NewPreparer builds a Preparer. Defaults: 7-day window, 30 rows minimum,
// linear interpolation.
func NewPreparer(opts ...PreparerOption) (*Preparer, error) {
	cfg := PreparerConfig{
		Window:        7,
		MinPoints:     30,
		Interpolation: InterpolationLinear,
		Logger:        applogger.NewNop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.Window < 1 {
		return nil, fmt.Errorf("rolling window must be positive, got %d", cfg.Window)
	}
	if cfg.MinPoints < 1 {
		return nil, fmt.Errorf("min points must be positive, got %d", cfg.MinPoints)
	}
	if cfg.Interpolation != InterpolationLinear {
		return nil, fmt.Errorf("unsupported interpolation %q", cfg.Interpolation)
	}
	if cfg.Logger == nil {
		cfg.Logger = applogger.NewNop()
	}
	return &Preparer{cfg: cfg}, nil
}

// Window returns the configured rolling window.
func (p *Preparer) Window() int { return p.cfg.Window }

// Prepare deduplicates, sorts, reindexes daily, fills gaps and computes
// rolling mean, standard deviation and slope.
func (p *Preparer) Prepare(raw []models.CasePoint) (*models.PreparedSeries, error) {
	if len(raw) < p.cfg.MinPoints {
		return nil, &models.InsufficientDataError{Got: len(raw), Min: p.cfg.MinPoints}
	}

	// last value seen for a day wins
	byDay := make(map[int64]float64, len(raw))
	for _, r := range raw {
		byDay[models.NewDate(r.Date.Time).Unix()] = r.Cases
	}
	days := make([]models.Date, 0, len(byDay))
	for ts := range byDay {
		days = append(days, models.NewDate(time.Unix(ts, 0).UTC()))
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	first, last := days[0], days[len(days)-1]
	n := first.DaysUntil(last) + 1
	cases := make([]float64, n)
	for i := range cases {
		cases[i] = math.NaN()
	}
	for _, d := range days {
		v := byDay[d.Unix()]
		if math.IsInf(v, 0) {
			v = math.NaN()
		}
		cases[first.DaysUntil(d)] = v
	}

	filled := interpolateLinear(cases)
	for i, v := range filled {
		if v < 0 {
			filled[i] = 0
		}
	}

	w := p.cfg.Window
	means := RollingMean(filled, w)
	stds := RollingStd(filled, w, means)
	slopes := RollingSlope(filled, w)

	points := make([]models.PreparedPoint, n)
	for i := range points {
		points[i] = models.PreparedPoint{
			Date:         first.AddDays(i),
			Cases:        filled[i],
			RollingMean:  means[i],
			RollingStd:   stds[i],
			RollingSlope: slopes[i],
		}
	}

	p.cfg.Logger.Info("series prepared",
		applogger.Int("raw_rows", len(raw)),
		applogger.Int("days", n),
		applogger.Int("imputed", n-len(days)),
		applogger.String("start", first.String()),
		applogger.String("end", last.String()),
	)

	return &models.PreparedSeries{Points: points, Window: w}, nil
}

// interpolateLinear fills NaNs between known values linearly. Leading and
// trailing gaps take the nearest known value; with nothing known the
// series is all zeros.
func interpolateLinear(values []float64) []float64 {
	out := make([]float64, len(values))
	known := make([]int, 0, len(values))
	for i, v := range values {
		if !math.IsNaN(v) {
			known = append(known, i)
		}
	}
	if len(known) == 0 {
		return out
	}

	for i := 0; i <= known[0]; i++ {
		out[i] = values[known[0]]
	}
	for k := 1; k < len(known); k++ {
		lo, hi := known[k-1], known[k]
		step := (values[hi] - values[lo]) / float64(hi-lo)
		for i := lo; i <= hi; i++ {
			out[i] = values[lo] + step*float64(i-lo)
		}
		out[hi] = values[hi]
	}
	tail := known[len(known)-1]
	for i := tail; i < len(values); i++ {
		out[i] = values[tail]
	}
	return out
}

// Summarize aggregates a prepared series for the narrative layer.
func (p *Preparer) Summarize(s *models.PreparedSeries) models.SummaryStats {
	if s.Len() == 0 {
		return models.SummaryStats{Trend: models.TrendStable}
	}
	cases := s.Cases()

	std := 0.0
	if len(cases) > 1 {
		std = stat.StdDev(cases, nil)
	}

	return models.SummaryStats{
		TotalCases:     floats.Sum(cases),
		MeanDailyCases: stat.Mean(cases, nil),
		MaxDailyCases:  floats.Max(cases),
		MinDailyCases:  floats.Min(cases),
		StdDailyCases:  std,
		DataPoints:     len(cases),
		DateRange:      models.DateRange{Start: s.First(), End: s.Last()},
		Trend:          SeriesTrend(s),
	}
}

// SeriesTrend labels the mean rolling slope of the last two weeks.
func SeriesTrend(s *models.PreparedSeries) models.Trend {
	start := s.Len() - trendLookbackDays
	if start < 0 {
		start = 0
	}
	slopes := make([]float64, 0, trendLookbackDays)
	for _, pt := range s.Points[start:] {
		slopes = append(slopes, pt.RollingSlope)
	}
	if len(slopes) == 0 {
		return models.TrendStable
	}
	recent := stat.Mean(slopes, nil)
	switch {
	case recent > trendThreshold:
		return models.TrendIncreasing
	case recent < -trendThreshold:
		return models.TrendDecreasing
	default:
		return models.TrendStable
	}
}
