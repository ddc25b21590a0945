package analytics

import (
	"errors"
	"fmt"
	"math"

	"EpiPulse/internal/domain/models"
	"EpiPulse/internal/domain/service"
	applogger "EpiPulse/pkg/logger"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Seasonality modes.
const (
	SeasonalityAdditive       = "additive"
	SeasonalityMultiplicative = "multiplicative"
)

const (
	weeklyPeriod   = 7.0
	yearlyPeriod   = 365.25
	baseRidge      = 1e-6
	minTrendLevel  = 1e-9
	secondsPerDay  = 86400
	minFitRowCount = 3
)

// DecompositionOption configures DecompositionForecaster.
type DecompositionOption func(*DecompositionConfig)

// DecompositionConfig holds the model settings.
type DecompositionConfig struct {
	IntervalWidth         float64
	SeasonalityMode       string
	ChangepointPriorScale float64
	SeasonalityPriorScale float64
	Changepoints          int
	ChangepointRange      float64
	WeeklyOrder           int
	YearlyOrder           int
	YearlyMinDays         int
	Logger                applogger.Interface
}

func WithIntervalWidth(w float64) DecompositionOption {
	return func(c *DecompositionConfig) { c.IntervalWidth = w }
}

func WithSeasonalityMode(mode string) DecompositionOption {
	return func(c *DecompositionConfig) { c.SeasonalityMode = mode }
}

func WithChangepointPriorScale(v float64) DecompositionOption {
	return func(c *DecompositionConfig) { c.ChangepointPriorScale = v }
}

func WithSeasonalityPriorScale(v float64) DecompositionOption {
	return func(c *DecompositionConfig) { c.SeasonalityPriorScale = v }
}

func WithDecompositionLogger(l applogger.Interface) DecompositionOption {
	return func(c *DecompositionConfig) { c.Logger = l }
}

// DecompositionForecaster fits a piecewise linear trend with automatic
// changepoints plus Fourier weekly and yearly seasonality by penalized least
// squares. Prior scales become ridge penalties on the matching coefficients.
type DecompositionForecaster struct {
	cfg DecompositionConfig
}

var _ service.Forecaster = (*DecompositionForecaster)(nil)

func NewDecompositionForecaster(opts ...DecompositionOption) (*DecompositionForecaster, error) {
	cfg := DecompositionConfig{
		IntervalWidth:         0.95,
		SeasonalityMode:       SeasonalityMultiplicative,
		ChangepointPriorScale: 0.05,
		SeasonalityPriorScale: 10.0,
		Changepoints:          25,
		ChangepointRange:      0.8,
		WeeklyOrder:           3,
		YearlyOrder:           10,
		YearlyMinDays:         730,
		Logger:                applogger.NewNop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.IntervalWidth <= 0 || cfg.IntervalWidth >= 1 {
		return nil, fmt.Errorf("interval width must be in (0, 1), got %v", cfg.IntervalWidth)
	}
	if cfg.SeasonalityMode != SeasonalityAdditive && cfg.SeasonalityMode != SeasonalityMultiplicative {
		return nil, fmt.Errorf("unknown seasonality mode %q", cfg.SeasonalityMode)
	}
	if cfg.ChangepointPriorScale <= 0 || cfg.SeasonalityPriorScale <= 0 {
		return nil, errors.New("prior scales must be positive")
	}
	if cfg.Logger == nil {
		cfg.Logger = applogger.NewNop()
	}
	return &DecompositionForecaster{cfg: cfg}, nil
}

func (f *DecompositionForecaster) Name() models.ForecastMethod { return models.ForecastProphet }

// design lays out the regression columns for one fit.
type design struct {
	n           int
	changepoint []float64 // in scaled time
	weekly      int
	yearly      int
	originDay   int64
}

func (d design) trendCols() int { return 2 + len(d.changepoint) }

func (d design) seasonalCols() int { return 2*d.weekly + 2*d.yearly }

// scaledTime maps history index i onto [0, 1].
func (d design) scaledTime(i int) float64 {
	if d.n <= 1 {
		return 0
	}
	return float64(i) / float64(d.n-1)
}

func (d design) trendRow(i int) []float64 {
	t := d.scaledTime(i)
	row := make([]float64, d.trendCols())
	row[0] = 1
	row[1] = t
	for j, c := range d.changepoint {
		if t > c {
			row[2+j] = t - c
		}
	}
	return row
}

func (d design) seasonalRow(i int) []float64 {
	day := float64(d.originDay + int64(i))
	row := make([]float64, 0, d.seasonalCols())
	row = appendFourier(row, day, weeklyPeriod, d.weekly)
	row = appendFourier(row, day, yearlyPeriod, d.yearly)
	return row
}

func appendFourier(row []float64, day, period float64, order int) []float64 {
	for k := 1; k <= order; k++ {
		x := 2 * math.Pi * float64(k) * day / period
		row = append(row, math.Sin(x), math.Cos(x))
	}
	return row
}

func (f *DecompositionForecaster) newDesign(s *models.PreparedSeries) design {
	n := s.Len()
	d := design{
		n:         n,
		weekly:    f.cfg.WeeklyOrder,
		originDay: s.First().Unix() / secondsPerDay,
	}
	if n >= f.cfg.YearlyMinDays {
		d.yearly = f.cfg.YearlyOrder
	}

	// changepoints sit on observed days inside the first part of history
	limit := int(math.Floor(float64(n-1) * f.cfg.ChangepointRange))
	k := f.cfg.Changepoints
	if k > limit-1 {
		k = limit - 1
	}
	for j := 1; j <= k; j++ {
		idx := int(math.Round(float64(j) * float64(limit) / float64(k+1)))
		d.changepoint = append(d.changepoint, d.scaledTime(idx))
	}
	return d
}

// ridgeFit solves (X'X + diag(penalty)) beta = X'y.
func ridgeFit(X *mat.Dense, y []float64, penalty []float64) ([]float64, error) {
	_, p := X.Dims()
	var xtx mat.SymDense
	xtx.SymOuterK(1, X.T())
	for i := 0; i < p; i++ {
		xtx.SetSym(i, i, xtx.At(i, i)+penalty[i])
	}

	var xty mat.VecDense
	xty.MulVec(X.T(), mat.NewVecDense(len(y), y))

	var chol mat.Cholesky
	if ok := chol.Factorize(&xtx); !ok {
		return nil, errors.New("normal equations are not positive definite")
	}
	var beta mat.VecDense
	if err := chol.SolveVecTo(&beta, &xty); err != nil {
		return nil, fmt.Errorf("solve normal equations: %w", err)
	}
	return beta.RawVector().Data, nil
}

func buildMatrix(rows [][]float64) *mat.Dense {
	p := len(rows[0])
	data := make([]float64, 0, len(rows)*p)
	for _, r := range rows {
		data = append(data, r...)
	}
	return mat.NewDense(len(rows), p, data)
}

func (f *DecompositionForecaster) penalties(d design) (trend, seasonal []float64) {
	trend = make([]float64, d.trendCols())
	trend[0], trend[1] = baseRidge, baseRidge
	for j := 2; j < len(trend); j++ {
		trend[j] = 1 / (f.cfg.ChangepointPriorScale * f.cfg.ChangepointPriorScale)
	}
	seasonal = make([]float64, d.seasonalCols())
	for j := range seasonal {
		seasonal[j] = 1 / (f.cfg.SeasonalityPriorScale * f.cfg.SeasonalityPriorScale)
	}
	return trend, seasonal
}

func (f *DecompositionForecaster) Forecast(s *models.PreparedSeries, horizon int) models.ForecastResult {
	points, err := f.forecast(s, horizon)
	if err != nil {
		return models.ForecastFailure(f.Name(), err)
	}
	return models.ForecastSuccess(f.Name(), points)
}

func (f *DecompositionForecaster) forecast(s *models.PreparedSeries, horizon int) ([]models.ForecastPoint, error) {
	n := s.Len()
	if n < minFitRowCount {
		return nil, fmt.Errorf("need at least %d days to fit, got %d", minFitRowCount, n)
	}
	if horizon < 1 {
		return nil, errors.New("horizon must be positive")
	}

	y := s.Cases()
	scale := floats.Max(y)
	last := s.Last()
	if scale <= 0 {
		// nothing but zeros observed
		out := make([]models.ForecastPoint, horizon)
		for h := range out {
			out[h] = models.ForecastPoint{Date: last.AddDays(h + 1)}
		}
		return out, nil
	}
	ys := make([]float64, n)
	floats.ScaleTo(ys, 1/scale, y)

	d := f.newDesign(s)
	trendPenalty, seasonalPenalty := f.penalties(d)

	var predict func(i int) float64
	params := d.trendCols() + d.seasonalCols()

	switch f.cfg.SeasonalityMode {
	case SeasonalityAdditive:
		rows := make([][]float64, n)
		for i := range rows {
			rows[i] = append(d.trendRow(i), d.seasonalRow(i)...)
		}
		beta, err := ridgeFit(buildMatrix(rows), ys, append(trendPenalty, seasonalPenalty...))
		if err != nil {
			return nil, err
		}
		predict = func(i int) float64 {
			return floats.Dot(append(d.trendRow(i), d.seasonalRow(i)...), beta)
		}

	case SeasonalityMultiplicative:
		trendRows := make([][]float64, n)
		for i := range trendRows {
			trendRows[i] = d.trendRow(i)
		}
		trendBeta, err := ridgeFit(buildMatrix(trendRows), ys, trendPenalty)
		if err != nil {
			return nil, fmt.Errorf("trend fit: %w", err)
		}
		trendAt := func(i int) float64 { return floats.Dot(d.trendRow(i), trendBeta) }

		// seasonal effects are relative to the trend level
		var seasonalRows [][]float64
		var ratios []float64
		for i := 0; i < n; i++ {
			tr := trendAt(i)
			if tr <= minTrendLevel {
				continue
			}
			seasonalRows = append(seasonalRows, d.seasonalRow(i))
			ratios = append(ratios, ys[i]/tr-1)
		}
		if len(seasonalRows) < minFitRowCount {
			return nil, errors.New("trend is not positive over enough of the history for multiplicative seasonality")
		}
		seasonalBeta, err := ridgeFit(buildMatrix(seasonalRows), ratios, seasonalPenalty)
		if err != nil {
			return nil, fmt.Errorf("seasonal fit: %w", err)
		}
		predict = func(i int) float64 {
			return trendAt(i) * (1 + floats.Dot(d.seasonalRow(i), seasonalBeta))
		}
	}

	var sse float64
	for i := 0; i < n; i++ {
		r := ys[i] - predict(i)
		sse += r * r
	}
	dof := n - params
	if dof < 1 {
		dof = 1
	}
	sigma := math.Sqrt(sse / float64(dof))
	z := distuv.UnitNormal.Quantile(0.5 + f.cfg.IntervalWidth/2)

	out := make([]models.ForecastPoint, horizon)
	for h := 0; h < horizon; h++ {
		yhat := predict(n-1+h+1) * scale
		half := z * sigma * math.Sqrt(1+float64(h+1)/float64(n)) * scale
		if math.IsNaN(yhat) || math.IsInf(yhat, 0) || math.IsNaN(half) || math.IsInf(half, 0) {
			return nil, fmt.Errorf("non-finite prediction at step %d", h+1)
		}
		out[h] = models.ForecastPoint{
			Date:       last.AddDays(h + 1),
			Forecast:   math.Max(yhat, 0),
			LowerBound: math.Max(yhat-half, 0),
			UpperBound: math.Max(yhat+half, 0),
		}
	}

	f.cfg.Logger.Debug("decomposition model fitted",
		applogger.Int("days", n),
		applogger.Int("changepoints", len(d.changepoint)),
		applogger.Int("yearly_order", d.yearly),
		applogger.String("mode", f.cfg.SeasonalityMode),
		applogger.Float64("sigma", sigma*scale),
	)
	return out, nil
}
