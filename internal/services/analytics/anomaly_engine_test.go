package analytics

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"EpiPulse/internal/domain/models"
	"EpiPulse/internal/domain/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDetector struct {
	name  string
	flags []bool
	err   error
}

func (d stubDetector) Name() string { return d.name }

func (d stubDetector) Score(s *models.PreparedSeries) (*models.DetectorResult, error) {
	if d.err != nil {
		return nil, d.err
	}
	scores := make([]float64, len(d.flags))
	for i, f := range d.flags {
		if f {
			scores[i] = 1
		}
	}
	return &models.DetectorResult{Scores: scores, Flags: d.flags}, nil
}

func newEngine(t *testing.T, opts ...AnomalyEngineOption) *AnomalyEngine {
	t.Helper()
	e, err := NewAnomalyEngine(opts...)
	require.NoError(t, err)
	return e
}

func TestConstantSeriesHasNoAnomalies(t *testing.T) {
	s := prepare(t, flat(35, 100))

	records, stats, err := newEngine(t).Detect(s)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Zero(t, stats.TotalAnomalies)
	assert.Zero(t, stats.AnomalyRate)
	assert.Zero(t, stats.DeviationDetections)
	assert.Zero(t, stats.ModelDetections)
	assert.Zero(t, stats.AverageAnomalyMagnitude)
}

func TestSpikeIsFlagged(t *testing.T) {
	vals := flat(60, 100)
	vals[40] = 1000
	s := prepare(t, vals)
	spike := day0.AddDays(40)

	records, stats, err := newEngine(t).Detect(s)
	require.NoError(t, err)

	var found *models.AnomalyRecord
	for i := range records {
		if records[i].Date.Equal(spike) {
			found = &records[i]
		}
	}
	require.NotNil(t, found, "spike day missing from %v", records)
	assert.Equal(t, 1000.0, found.Cases)
	assert.Contains(t, found.DetectedBy, models.DetectorModel)
	assert.Equal(t, len(records), stats.TotalAnomalies)
	assert.InDelta(t, float64(len(records))/60, stats.AnomalyRate, 1e-12)

	// A 7-day window holding the spike caps |z| near 2.27, so the
	// deviation detector needs a lower threshold to see it.
	res, err := NewDeviationDetector(2.0).Score(s)
	require.NoError(t, err)
	assert.True(t, res.Flags[40])
	assert.InDelta(t, 2.268, res.Scores[40], 1e-3)
	assert.Equal(t, 1, res.Flagged())
}

func TestFusionIsUnion(t *testing.T) {
	s := prepare(t, flat(30, 10))
	a := make([]bool, 30)
	b := make([]bool, 30)
	a[0], a[2] = true, true
	b[2], b[3] = true, true

	e := newEngine(t, WithDetectors(
		stubDetector{name: models.DetectorDeviation, flags: a},
		stubDetector{name: models.DetectorModel, flags: b},
	))
	det, err := e.Run(s)
	require.NoError(t, err)

	records := det.Records()
	require.Len(t, records, 3)
	assert.Equal(t, []string{models.DetectorDeviation}, records[0].DetectedBy)
	assert.Equal(t, []string{models.DetectorDeviation, models.DetectorModel}, records[1].DetectedBy)
	assert.Equal(t, []string{models.DetectorModel}, records[2].DetectedBy)

	for i := range a {
		assert.Equal(t, a[i] || b[i], det.Fused(i))
	}

	stats := det.Stats()
	assert.Equal(t, 3, stats.TotalAnomalies)
	assert.Equal(t, 2, stats.DeviationDetections)
	assert.Equal(t, 2, stats.ModelDetections)
	assert.InDelta(t, 0.1, stats.AnomalyRate, 1e-12)
	assert.Equal(t, 10.0, stats.AverageAnomalyMagnitude)
}

func TestFeatureMismatch(t *testing.T) {
	e := newEngine(t)

	_, _, err := e.Detect(nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrFeatureMismatch))

	broken := prepare(t, flat(30, 5))
	broken.Window = 0
	_, _, err = e.Detect(broken)
	var fm *models.FeatureMismatchError
	require.True(t, errors.As(err, &fm))
	assert.Equal(t, []string{"rolling_mean", "rolling_std", "rolling_slope"}, fm.Missing)
}

func TestDetectorErrorsPropagate(t *testing.T) {
	s := prepare(t, flat(30, 5))
	boom := errors.New("boom")

	_, err := newEngine(t, WithDetectors(stubDetector{name: "x", err: boom})).Run(s)
	assert.ErrorIs(t, err, boom)

	_, err = newEngine(t, WithDetectors(stubDetector{name: "short", flags: make([]bool, 3)})).Run(s)
	assert.Error(t, err)
}

func TestModelDetectorIsDeterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	vals := make([]float64, 120)
	for i := range vals {
		vals[i] = 50 + rng.Float64()*40
	}
	s := prepare(t, vals)

	d, err := NewModelDetector()
	require.NoError(t, err)
	first, err := d.Score(s)
	require.NoError(t, err)
	second, err := d.Score(s)
	require.NoError(t, err)

	assert.Equal(t, first.Scores, second.Scores)
	assert.Equal(t, first.Flags, second.Flags)
	for _, sc := range first.Scores {
		assert.Less(t, sc, 0.0)
		assert.GreaterOrEqual(t, sc, -1.0)
	}
	assert.InDelta(t, 12, first.Flagged(), 1)
}

func TestPercentile(t *testing.T) {
	sorted := make([]float64, 60)
	for i := range sorted {
		sorted[i] = float64(i)
	}
	assert.InDelta(t, 5.9, percentile(sorted, 0.1), 1e-12)
	assert.Equal(t, 0.0, percentile(sorted, 0))
	assert.Equal(t, 59.0, percentile(sorted, 1))
	assert.Equal(t, 7.0, percentile([]float64{7}, 0.1))
	assert.True(t, math.IsNaN(percentile(nil, 0.1)))
}

func TestModelDetectorFlagsContaminationShare(t *testing.T) {
	tests := []struct {
		days int
		want int
	}{
		{35, 4},
		{60, 6},
		{90, 9},
		{200, 20},
	}
	for _, tt := range tests {
		rng := rand.New(rand.NewSource(int64(tt.days)))
		vals := make([]float64, tt.days)
		for i := range vals {
			vals[i] = 100 + rng.NormFloat64()*20
		}
		s := prepare(t, vals)

		d, err := NewModelDetector()
		require.NoError(t, err)
		res, err := d.Score(s)
		require.NoError(t, err)

		distinct := make(map[float64]struct{}, len(res.Scores))
		for _, sc := range res.Scores {
			distinct[sc] = struct{}{}
		}
		require.Len(t, distinct, tt.days, "scores must be distinct for an exact count")
		assert.Equal(t, tt.want, res.Flagged(), "days=%d", tt.days)
	}
}

func TestNewModelDetectorValidation(t *testing.T) {
	_, err := NewModelDetector(WithForestTrees(0))
	assert.Error(t, err)
	_, err = NewModelDetector(WithForestContamination(0))
	assert.Error(t, err)
	_, err = NewAnomalyEngine(WithDeviationThreshold(-1))
	assert.Error(t, err)
}

var _ service.Detector = stubDetector{}
