package features

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"EpiPulse/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day0 = models.DateOf(2024, 1, 1)

func series(values ...float64) []models.CasePoint {
	out := make([]models.CasePoint, len(values))
	for i, v := range values {
		out[i] = models.CasePoint{Date: day0.AddDays(i), Cases: v}
	}
	return out
}

func constant(n int, v float64) []models.CasePoint {
	vals := make([]float64, n)
	for i := range vals {
		vals[i] = v
	}
	return series(vals...)
}

func newPreparer(t *testing.T, opts ...PreparerOption) *Preparer {
	t.Helper()
	p, err := NewPreparer(opts...)
	require.NoError(t, err)
	return p
}

func TestPrepareInsufficientData(t *testing.T) {
	p := newPreparer(t)
	_, err := p.Prepare(constant(29, 5))
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrInsufficientData))

	var ide *models.InsufficientDataError
	require.True(t, errors.As(err, &ide))
	assert.Equal(t, 29, ide.Got)
	assert.Equal(t, 30, ide.Min)
}

func TestPrepareContinuityWithGapsDuplicatesAndShuffle(t *testing.T) {
	raw := constant(40, 10)
	// drop days 5..7, duplicate day 12 with a later value, shuffle everything
	raw = append(raw[:5], raw[8:]...)
	raw = append(raw, models.CasePoint{Date: day0.AddDays(12), Cases: 99})
	rng := rand.New(rand.NewSource(7))
	rng.Shuffle(len(raw), func(i, j int) { raw[i], raw[j] = raw[j], raw[i] })

	// the shuffle may have moved the duplicate before the original; put it last
	for i, r := range raw {
		if r.Cases == 99 {
			raw = append(raw[:i], raw[i+1:]...)
			break
		}
	}
	raw = append(raw, models.CasePoint{Date: day0.AddDays(12), Cases: 99})

	s, err := newPreparer(t, WithMinPoints(10)).Prepare(raw)
	require.NoError(t, err)
	require.Equal(t, 40, s.Len())
	for i := 1; i < s.Len(); i++ {
		assert.Equal(t, 1, s.Points[i-1].Date.DaysUntil(s.Points[i].Date), "gap at %d", i)
	}
	assert.Equal(t, day0, s.First())
	assert.Equal(t, day0.AddDays(39), s.Last())
	assert.Equal(t, 99.0, s.Points[12].Cases)
	assert.Equal(t, 10.0, s.Points[6].Cases)
}

func TestPrepareLinearInterpolationAndBoundaries(t *testing.T) {
	vals := make([]float64, 30)
	for i := range vals {
		vals[i] = 50
	}
	vals[0] = math.NaN()
	vals[1] = math.NaN()
	vals[2] = 40
	vals[10] = 10
	vals[11] = math.NaN()
	vals[12] = 30
	vals[29] = math.NaN()

	s, err := newPreparer(t).Prepare(series(vals...))
	require.NoError(t, err)

	assert.Equal(t, 40.0, s.Points[0].Cases)
	assert.Equal(t, 40.0, s.Points[1].Cases)
	assert.InDelta(t, 20.0, s.Points[11].Cases, 1e-9)
	assert.Equal(t, 50.0, s.Points[29].Cases)
}

func TestPrepareMissingCalendarDaysAreInterpolated(t *testing.T) {
	raw := series(constantValues(35, 0)...)
	raw[20].Cases = 100
	raw = append(raw[:21], raw[24:]...) // days 21..23 absent, day 24 is 0
	raw[20].Cases = 100

	s, err := newPreparer(t).Prepare(raw)
	require.NoError(t, err)
	require.Equal(t, 35, s.Len())
	assert.InDelta(t, 75.0, s.Points[21].Cases, 1e-9)
	assert.InDelta(t, 50.0, s.Points[22].Cases, 1e-9)
	assert.InDelta(t, 25.0, s.Points[23].Cases, 1e-9)
}

func TestPrepareAllMissingBecomesZero(t *testing.T) {
	vals := make([]float64, 30)
	for i := range vals {
		vals[i] = math.NaN()
	}
	s, err := newPreparer(t).Prepare(series(vals...))
	require.NoError(t, err)
	for _, pt := range s.Points {
		assert.Equal(t, 0.0, pt.Cases)
	}
}

func TestPrepareNonNegativityAndStdFloor(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	vals := make([]float64, 60)
	for i := range vals {
		vals[i] = rng.NormFloat64() * 20
	}
	s, err := newPreparer(t).Prepare(series(vals...))
	require.NoError(t, err)
	for _, pt := range s.Points {
		assert.GreaterOrEqual(t, pt.Cases, 0.0)
		assert.GreaterOrEqual(t, pt.RollingMean, 0.0)
		assert.NotZero(t, pt.RollingStd)
	}

	flat, err := newPreparer(t).Prepare(constant(35, 100))
	require.NoError(t, err)
	for _, pt := range flat.Points {
		assert.Equal(t, 100.0, pt.RollingMean)
		assert.Equal(t, StdFloor, pt.RollingStd)
		assert.Zero(t, pt.RollingSlope)
	}
}

func TestRollingStatistics(t *testing.T) {
	vals := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	means := RollingMean(vals, 3)
	assert.Equal(t, []float64{1, 1.5, 2, 3, 4, 5, 6, 7, 8, 9}, means)

	stds := RollingStd(vals, 3, means)
	assert.Equal(t, StdFloor, stds[0])
	assert.InDelta(t, math.Sqrt(0.5), stds[1], 1e-12)
	assert.InDelta(t, 1.0, stds[5], 1e-12)

	slopes := RollingSlope(vals, 3)
	assert.Zero(t, slopes[0])
	assert.InDelta(t, 1.0, slopes[1], 1e-5)
	assert.InDelta(t, 1.0, slopes[9], 1e-5)

	masked := RollingSlope([]float64{math.NaN(), math.NaN(), 4}, 3)
	assert.Equal(t, []float64{0, 0, 0}, masked)
}

func TestSummarize(t *testing.T) {
	p := newPreparer(t)

	flat, err := p.Prepare(constant(35, 100))
	require.NoError(t, err)
	st := p.Summarize(flat)
	assert.Equal(t, 3500.0, st.TotalCases)
	assert.Equal(t, 100.0, st.MeanDailyCases)
	assert.Equal(t, 100.0, st.MaxDailyCases)
	assert.Equal(t, 100.0, st.MinDailyCases)
	assert.Zero(t, st.StdDailyCases)
	assert.Equal(t, 35, st.DataPoints)
	assert.Equal(t, "2024-01-01", st.DateRange.Start.String())
	assert.Equal(t, "2024-02-04", st.DateRange.End.String())
	assert.Equal(t, models.TrendStable, st.Trend)

	up := make([]float64, 40)
	down := make([]float64, 40)
	for i := range up {
		up[i] = float64(10 * i)
		down[i] = float64(1000 - 10*i)
	}
	rising, err := p.Prepare(series(up...))
	require.NoError(t, err)
	assert.Equal(t, models.TrendIncreasing, p.Summarize(rising).Trend)

	falling, err := p.Prepare(series(down...))
	require.NoError(t, err)
	assert.Equal(t, models.TrendDecreasing, p.Summarize(falling).Trend)
}

func TestNewPreparerValidation(t *testing.T) {
	_, err := NewPreparer(WithWindow(0))
	assert.Error(t, err)
	_, err = NewPreparer(WithMinPoints(0))
	assert.Error(t, err)
	_, err = NewPreparer(WithInterpolation("spline"))
	assert.Error(t, err)

	p, err := NewPreparer(WithWindow(14), WithLogger(nil))
	require.NoError(t, err)
	assert.Equal(t, 14, p.Window())
}

func constantValues(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}
