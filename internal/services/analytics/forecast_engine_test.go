package analytics

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"EpiPulse/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingForecaster struct{}

func (failingForecaster) Name() models.ForecastMethod { return models.ForecastProphet }

func (failingForecaster) Forecast(*models.PreparedSeries, int) models.ForecastResult {
	return models.ForecastFailure(models.ForecastProphet, errors.New("did not converge"))
}

func weeklySeries(n int, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float64, n)
	for i := range out {
		out[i] = 200 + 2*float64(i) + 30*math.Sin(2*math.Pi*float64(i)/7) + rng.NormFloat64()*5
	}
	return out
}

func assertWellFormed(t *testing.T, s *models.PreparedSeries, points []models.ForecastPoint, horizon int) {
	t.Helper()
	require.Len(t, points, horizon)
	for i, p := range points {
		assert.True(t, p.Date.Equal(s.Last().AddDays(i+1)), "date %d is %s", i, p.Date)
		assert.GreaterOrEqual(t, p.Forecast, 0.0)
		assert.LessOrEqual(t, p.LowerBound, p.Forecast)
		assert.LessOrEqual(t, p.Forecast, p.UpperBound)
	}
}

func TestForecastHorizonOn90DaySeries(t *testing.T) {
	s := prepare(t, weeklySeries(90, 1))

	e, err := NewForecastEngine()
	require.NoError(t, err)
	res, err := e.Run(s, 14, models.ForecastProphet)
	require.NoError(t, err)
	assert.Equal(t, models.ForecastProphet, res.Method)
	assertWellFormed(t, s, res.Points, 14)

	points, stats, err := e.Forecast(s, 14, models.ForecastProphet)
	require.NoError(t, err)
	assert.Equal(t, res.Points, points)
	assert.Equal(t, 14, stats.HorizonDays)
	assert.Equal(t, models.ForecastProphet, stats.Method)
}

func TestDecompositionBoundsBothModes(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	vals := make([]float64, 75)
	for i := range vals {
		vals[i] = math.Max(0, 20+rng.NormFloat64()*15)
	}
	s := prepare(t, vals)

	for _, mode := range []string{SeasonalityAdditive, SeasonalityMultiplicative} {
		t.Run(mode, func(t *testing.T) {
			f, err := NewDecompositionForecaster(WithSeasonalityMode(mode))
			require.NoError(t, err)
			res := f.Forecast(s, 30)
			require.True(t, res.OK(), "%v", res.Err)
			assertWellFormed(t, s, res.Points, 30)
		})
	}
}

func TestDecompositionRecoversLinearTrend(t *testing.T) {
	vals := make([]float64, 60)
	for i := range vals {
		vals[i] = 10 + 2*float64(i)
	}
	s := prepare(t, vals)

	f, err := NewDecompositionForecaster(WithSeasonalityMode(SeasonalityAdditive))
	require.NoError(t, err)
	res := f.Forecast(s, 14)
	require.True(t, res.OK(), "%v", res.Err)
	assert.InDelta(t, 130, res.Points[0].Forecast, 1)
	assert.InDelta(t, 156, res.Points[13].Forecast, 1.5)
	assert.Equal(t, models.TrendIncreasing, ForecastSummary(res.Points, res.Method).Trend)
}

func TestDecompositionEdgeCases(t *testing.T) {
	f, err := NewDecompositionForecaster()
	require.NoError(t, err)

	zeros := prepare(t, flat(40, 0))
	res := f.Forecast(zeros, 7)
	require.True(t, res.OK())
	for _, p := range res.Points {
		assert.Zero(t, p.Forecast)
		assert.Zero(t, p.UpperBound)
	}

	tiny := &models.PreparedSeries{Window: 7, Points: zeros.Points[:2]}
	res = f.Forecast(tiny, 7)
	assert.False(t, res.OK())
	assert.ErrorIs(t, res.Err, models.ErrForecastFailed)

	_, err = NewDecompositionForecaster(WithIntervalWidth(1))
	assert.Error(t, err)
	_, err = NewDecompositionForecaster(WithSeasonalityMode("log"))
	assert.Error(t, err)
}

func TestFallbackWhenPrimaryFails(t *testing.T) {
	vals := weeklySeries(40, 2)
	s := prepare(t, vals)

	var observed error
	e, err := NewForecastEngine(
		WithPrimary(failingForecaster{}),
		WithFallbackObserver(func(_ models.ForecastMethod, err error) { observed = err }),
	)
	require.NoError(t, err)

	points, stats, err := e.Forecast(s, 14, models.ForecastProphet)
	require.NoError(t, err)
	assertWellFormed(t, s, points, 14)
	assert.Equal(t, models.ForecastSimple, stats.Method)
	assert.ErrorIs(t, observed, models.ErrForecastFailed)
}

func TestSimpleForecast(t *testing.T) {
	vals := flat(30, 0)
	for i := 23; i < 30; i++ {
		vals[i] = float64(10 * (i - 22))
	}
	s := prepare(t, vals)

	e, err := NewForecastEngine()
	require.NoError(t, err)
	points, stats, err := e.Forecast(s, 7, models.ForecastSimple)
	require.NoError(t, err)
	require.Len(t, points, 7)
	for _, p := range points {
		assert.InDelta(t, 40, p.Forecast, 1e-9)
		assert.InDelta(t, 32, p.LowerBound, 1e-9)
		assert.InDelta(t, 48, p.UpperBound, 1e-9)
	}
	assert.Equal(t, models.TrendStable, stats.Trend)
	assert.Equal(t, models.ForecastSimple, stats.Method)
}

func TestUnknownForecastMethod(t *testing.T) {
	e, err := NewForecastEngine()
	require.NoError(t, err)
	_, _, err = e.Forecast(prepare(t, flat(30, 1)), 14, "arima")
	assert.ErrorIs(t, err, models.ErrUnknownForecastMethod)
}

func TestForecastSummaryTrend(t *testing.T) {
	mk := func(vals ...float64) []models.ForecastPoint {
		out := make([]models.ForecastPoint, len(vals))
		for i, v := range vals {
			out[i] = models.ForecastPoint{Date: day0.AddDays(i), Forecast: v}
		}
		return out
	}
	rising := make([]float64, 14)
	falling := make([]float64, 14)
	for i := range rising {
		rising[i] = 100 + 5*float64(i)
		falling[i] = 100 - 5*float64(i)
	}

	st := ForecastSummary(mk(rising...), models.ForecastProphet)
	assert.Equal(t, models.TrendIncreasing, st.Trend)
	assert.Equal(t, 14, st.HorizonDays)
	assert.Equal(t, 165.0, st.MaxForecast)
	assert.Equal(t, 100.0, st.MinForecast)
	assert.InDelta(t, 132.5, st.MeanForecast, 1e-9)

	assert.Equal(t, models.TrendDecreasing, ForecastSummary(mk(falling...), models.ForecastProphet).Trend)
	assert.Equal(t, models.TrendStable, ForecastSummary(mk(flat(14, 0)...), models.ForecastSimple).Trend)

	// 10% exactly is not enough
	edge := append(flat(7, 100), flat(7, 110)...)
	assert.Equal(t, models.TrendStable, ForecastSummary(mk(edge...), models.ForecastSimple).Trend)

	fromZero := append(flat(7, 0), flat(7, 1)...)
	assert.Equal(t, models.TrendIncreasing, ForecastSummary(mk(fromZero...), models.ForecastSimple).Trend)
}
