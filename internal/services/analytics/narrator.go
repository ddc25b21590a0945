package analytics

import (
	"fmt"
	"math"
	"strings"

	"EpiPulse/internal/domain/models"
	"EpiPulse/internal/domain/service"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	defaultMediumRiskRate = 0.1
	defaultHighRiskRate   = 0.2

	highConfidencePoints   = 90
	mediumConfidencePoints = 30

	increasingRecommendation = "Trend analysis suggests potential increase - prepare accordingly"
)

var recommendations = map[models.RiskLevel][]string{
	models.RiskHigh: {
		"Activate emergency response protocols",
		"Increase testing and surveillance capacity",
		"Prepare healthcare facilities for surge capacity",
		"Enhance public communication and awareness campaigns",
		"Consider targeted intervention measures",
	},
	models.RiskMedium: {
		"Maintain heightened surveillance",
		"Monitor key indicators daily",
		"Ensure adequate healthcare resources",
		"Prepare contingency plans",
	},
	models.RiskLow: {
		"Continue routine monitoring",
		"Maintain preventive measures",
		"Update response plans as needed",
	},
}

var riskParagraphs = map[models.RiskLevel]string{
	models.RiskHigh:   "HIGH RISK: Multiple outbreak signals detected. Enhanced monitoring and intervention measures recommended.",
	models.RiskMedium: "MEDIUM RISK: Some concerning patterns identified. Continued surveillance advised.",
	models.RiskLow:    "LOW RISK: Situation appears stable with no major outbreak indicators.",
}

// RiskNarratorOption configures RiskNarrator.
type RiskNarratorOption func(*RiskNarrator)

// WithRiskThresholds sets the anomaly rates at which risk becomes medium and high.
func WithRiskThresholds(medium, high float64) RiskNarratorOption {
	return func(n *RiskNarrator) {
		n.mediumRate = medium
		n.highRate = high
	}
}

// RiskNarrator turns summary, anomaly and forecast statistics into a report.
// It holds only configuration, so Narrate is deterministic.
type RiskNarrator struct {
	mediumRate float64
	highRate   float64
	printer    *message.Printer
}

var _ service.Narrator = (*RiskNarrator)(nil)

func NewRiskNarrator(opts ...RiskNarratorOption) (*RiskNarrator, error) {
	n := &RiskNarrator{
		mediumRate: defaultMediumRiskRate,
		highRate:   defaultHighRiskRate,
		printer:    message.NewPrinter(language.English),
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.mediumRate < 0 || n.highRate < 0 {
		return nil, fmt.Errorf("risk thresholds must be non-negative, got %v/%v", n.mediumRate, n.highRate)
	}
	if n.mediumRate > n.highRate {
		return nil, fmt.Errorf("medium risk threshold %v exceeds high threshold %v", n.mediumRate, n.highRate)
	}
	return n, nil
}

// RiskLevel classifies an anomaly rate and bumps it one step when the
// forecast is rising.
func (n *RiskNarrator) RiskLevel(anomalyRate float64, forecastTrend models.Trend) models.RiskLevel {
	level := models.RiskLow
	switch {
	case anomalyRate >= n.highRate:
		level = models.RiskHigh
	case anomalyRate >= n.mediumRate:
		level = models.RiskMedium
	}
	if forecastTrend == models.TrendIncreasing {
		level = level.Escalate()
	}
	return level
}

// ConfidenceFor grades trust in an analysis by how many days it covers.
func ConfidenceFor(dataPoints int) models.Confidence {
	switch {
	case dataPoints >= highConfidencePoints:
		return models.ConfidenceHigh
	case dataPoints >= mediumConfidencePoints:
		return models.ConfidenceMedium
	default:
		return models.ConfidenceLow
	}
}

func (n *RiskNarrator) Narrate(country, disease string, summary models.SummaryStats, anomalies models.AnomalyStats, forecast models.ForecastStats) models.Report {
	level := n.RiskLevel(anomalies.AnomalyRate, forecast.Trend)

	recs := append([]string(nil), recommendations[level]...)
	if forecast.Trend == models.TrendIncreasing {
		recs = append(recs, increasingRecommendation)
	}

	return models.Report{
		Summary:         n.summary(country, disease, summary, anomalies, forecast, level),
		RiskLevel:       level,
		Explanation:     n.explanation(summary, anomalies, forecast, level),
		Recommendations: recs,
		Confidence:      ConfidenceFor(summary.DataPoints),
	}
}

func (n *RiskNarrator) summary(country, disease string, s models.SummaryStats, a models.AnomalyStats, f models.ForecastStats, level models.RiskLevel) string {
	var b strings.Builder
	b.WriteString(n.printer.Sprintf("Analysis of %s in %s: Total of %d cases detected. ", disease, country, wholeCases(s.TotalCases)))
	fmt.Fprintf(&b, "The current trend is %s. ", s.Trend)
	if a.TotalAnomalies > 0 {
		fmt.Fprintf(&b, "Identified %d anomalous outbreak periods. ", a.TotalAnomalies)
	}
	fmt.Fprintf(&b, "Forecast indicates %s trend over next %d days. ", f.Trend, f.HorizonDays)
	fmt.Fprintf(&b, "Overall risk level: %s.", strings.ToUpper(string(level)))
	return b.String()
}

func (n *RiskNarrator) explanation(s models.SummaryStats, a models.AnomalyStats, f models.ForecastStats, level models.RiskLevel) string {
	parts := []string{
		fmt.Sprintf("The analysis covers %d days of data from %s to %s.", s.DataPoints, s.DateRange.Start, s.DateRange.End),
		fmt.Sprintf("Average daily cases: %.1f. ", s.MeanDailyCases) +
			n.printer.Sprintf("Peak daily cases: %d.", wholeCases(s.MaxDailyCases)),
	}
	if rate := a.AnomalyRate * 100; rate > 0 {
		parts = append(parts, fmt.Sprintf("Anomaly detection identified unusual patterns in %.1f%% of the data using both Z-score and Isolation Forest methods.", rate))
	} else {
		parts = append(parts, "No significant anomalies detected in the time series.")
	}
	parts = append(parts,
		fmt.Sprintf("The %d-day forecast predicts an average of %.1f daily cases, indicating a %s trajectory.", f.HorizonDays, f.MeanForecast, f.Trend),
		riskParagraphs[level],
	)
	return strings.Join(parts, " ")
}

func wholeCases(v float64) int64 {
	return int64(math.Round(v))
}
