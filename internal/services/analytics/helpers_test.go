package analytics

import (
	"testing"

	"EpiPulse/internal/domain/models"
	"EpiPulse/internal/services/features"

	"github.com/stretchr/testify/require"
)

var day0 = models.DateOf(2024, 1, 1)

func prepare(t *testing.T, values []float64) *models.PreparedSeries {
	t.Helper()
	raw := make([]models.CasePoint, len(values))
	for i, v := range values {
		raw[i] = models.CasePoint{Date: day0.AddDays(i), Cases: v}
	}
	p, err := features.NewPreparer()
	require.NoError(t, err)
	s, err := p.Prepare(raw)
	require.NoError(t, err)
	return s
}

func flat(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}
