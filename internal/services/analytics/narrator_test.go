package analytics

import (
	"testing"

	"EpiPulse/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newNarrator(t *testing.T, opts ...RiskNarratorOption) *RiskNarrator {
	t.Helper()
	n, err := NewRiskNarrator(opts...)
	require.NoError(t, err)
	return n
}

func TestRiskLevel(t *testing.T) {
	n := newNarrator(t)
	tests := []struct {
		rate  float64
		trend models.Trend
		want  models.RiskLevel
	}{
		{0, models.TrendStable, models.RiskLow},
		{0.05, models.TrendDecreasing, models.RiskLow},
		{0.05, models.TrendIncreasing, models.RiskMedium},
		{0.1, models.TrendStable, models.RiskMedium},
		{0.15, models.TrendIncreasing, models.RiskHigh},
		{0.2, models.TrendStable, models.RiskHigh},
		{0.5, models.TrendIncreasing, models.RiskHigh},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, n.RiskLevel(tt.rate, tt.trend), "rate=%v trend=%s", tt.rate, tt.trend)
	}
}

func TestRiskThresholdsAreIndependent(t *testing.T) {
	collapsed := newNarrator(t, WithRiskThresholds(0.2, 0.2))
	assert.Equal(t, models.RiskLow, collapsed.RiskLevel(0.15, models.TrendStable))
	assert.Equal(t, models.RiskHigh, collapsed.RiskLevel(0.2, models.TrendStable))

	wide := newNarrator(t, WithRiskThresholds(0.01, 0.5))
	assert.Equal(t, models.RiskMedium, wide.RiskLevel(0.3, models.TrendStable))

	_, err := NewRiskNarrator(WithRiskThresholds(0.3, 0.2))
	assert.Error(t, err)
}

func TestConfidenceFor(t *testing.T) {
	assert.Equal(t, models.ConfidenceHigh, ConfidenceFor(90))
	assert.Equal(t, models.ConfidenceMedium, ConfidenceFor(89))
	assert.Equal(t, models.ConfidenceMedium, ConfidenceFor(30))
	assert.Equal(t, models.ConfidenceLow, ConfidenceFor(29))
}

func sampleStats() (models.SummaryStats, models.AnomalyStats, models.ForecastStats) {
	summary := models.SummaryStats{
		TotalCases:     12345,
		MeanDailyCases: 205.7,
		MaxDailyCases:  1500,
		DataPoints:     60,
		DateRange:      models.DateRange{Start: day0, End: day0.AddDays(59)},
		Trend:          models.TrendStable,
	}
	anomalies := models.AnomalyStats{TotalAnomalies: 3, AnomalyRate: 0.05}
	forecast := models.ForecastStats{HorizonDays: 14, MeanForecast: 210, Trend: models.TrendStable}
	return summary, anomalies, forecast
}

func TestNarrateText(t *testing.T) {
	summary, anomalies, forecast := sampleStats()
	r := newNarrator(t).Narrate("India", "COVID-19", summary, anomalies, forecast)

	assert.Equal(t, "Analysis of COVID-19 in India: Total of 12,345 cases detected. "+
		"The current trend is stable. Identified 3 anomalous outbreak periods. "+
		"Forecast indicates stable trend over next 14 days. Overall risk level: LOW.", r.Summary)
	assert.Equal(t, "The analysis covers 60 days of data from 2024-01-01 to 2024-02-29. "+
		"Average daily cases: 205.7. Peak daily cases: 1,500. "+
		"Anomaly detection identified unusual patterns in 5.0% of the data using both Z-score and Isolation Forest methods. "+
		"The 14-day forecast predicts an average of 210.0 daily cases, indicating a stable trajectory. "+
		"LOW RISK: Situation appears stable with no major outbreak indicators.", r.Explanation)
	assert.Equal(t, []string{
		"Continue routine monitoring",
		"Maintain preventive measures",
		"Update response plans as needed",
	}, r.Recommendations)
	assert.Equal(t, models.RiskLow, r.RiskLevel)
	assert.Equal(t, models.ConfidenceMedium, r.Confidence)
}

func TestNarrateIncreasingForecast(t *testing.T) {
	summary, anomalies, forecast := sampleStats()
	anomalies = models.AnomalyStats{}
	forecast.Trend = models.TrendIncreasing

	r := newNarrator(t).Narrate("Brazil", "Dengue", summary, anomalies, forecast)
	assert.Equal(t, models.RiskMedium, r.RiskLevel)
	assert.NotContains(t, r.Summary, "anomalous outbreak periods")
	assert.Contains(t, r.Explanation, "No significant anomalies detected in the time series.")
	assert.Contains(t, r.Explanation, "MEDIUM RISK:")
	require.Len(t, r.Recommendations, 5)
	assert.Equal(t, "Maintain heightened surveillance", r.Recommendations[0])
	assert.Equal(t, increasingRecommendation, r.Recommendations[4])
}

func TestNarrateIsDeterministic(t *testing.T) {
	summary, anomalies, forecast := sampleStats()
	anomalies.AnomalyRate = 0.3
	n := newNarrator(t)

	first := n.Narrate("Germany", "Measles", summary, anomalies, forecast)
	second := n.Narrate("Germany", "Measles", summary, anomalies, forecast)
	assert.Equal(t, first, second)
	assert.Equal(t, models.RiskHigh, first.RiskLevel)
	assert.Len(t, first.Recommendations, 5)

	// callers must not be able to corrupt the shared recommendation lists
	first.Recommendations[0] = "changed"
	third := n.Narrate("Germany", "Measles", summary, anomalies, forecast)
	assert.Equal(t, "Activate emergency response protocols", third.Recommendations[0])
}
