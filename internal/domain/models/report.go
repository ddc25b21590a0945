package models

import "time"

type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Escalate moves one step up the low < medium < high lattice.
func (r RiskLevel) Escalate() RiskLevel {
	switch r {
	case RiskLow:
		return RiskMedium
	default:
		return RiskHigh
	}
}

type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Report is the narrative assessment of one analysis.
type Report struct {
	Summary         string     `json:"summary"`
	RiskLevel       RiskLevel  `json:"risk_level"`
	Explanation     string     `json:"explanation"`
	Recommendations []string   `json:"recommendations"`
	Confidence      Confidence `json:"confidence"`
}

// Analysis is the complete result of analyzing one country/disease series.
type Analysis struct {
	ID            string          `json:"id"`
	Country       string          `json:"country"`
	Disease       string          `json:"disease"`
	CleanedData   []CleanedPoint  `json:"cleaned_data"`
	Anomalies     []AnomalyRecord `json:"anomalies"`
	Forecast      []ForecastPoint `json:"forecast"`
	SummaryStats  SummaryStats    `json:"summary_stats"`
	AnomalyStats  AnomalyStats    `json:"anomaly_stats"`
	ForecastStats ForecastStats   `json:"forecast_stats"`
	Explanation   Report          `json:"ai_explanation"`
	GeneratedAt   time.Time       `json:"generated_at"`
}

// AnalysisEvent is published once an analysis completes.
type AnalysisEvent struct {
	ID             string         `json:"id"`
	Country        string         `json:"country"`
	Disease        string         `json:"disease"`
	Source         string         `json:"source"`
	RiskLevel      RiskLevel      `json:"risk_level"`
	Confidence     Confidence     `json:"confidence"`
	AnomalyRate    float64        `json:"anomaly_rate"`
	ForecastTrend  Trend          `json:"forecast_trend"`
	ForecastMethod ForecastMethod `json:"forecast_method"`
	Summary        string         `json:"summary"`
	GeneratedAt    time.Time      `json:"generated_at"`
}

// NewAnalysisEvent condenses a into its event form.
func NewAnalysisEvent(a *Analysis, source string) AnalysisEvent {
	return AnalysisEvent{
		ID:             a.ID,
		Country:        a.Country,
		Disease:        a.Disease,
		Source:         source,
		RiskLevel:      a.Explanation.RiskLevel,
		Confidence:     a.Explanation.Confidence,
		AnomalyRate:    a.AnomalyStats.AnomalyRate,
		ForecastTrend:  a.ForecastStats.Trend,
		ForecastMethod: a.ForecastStats.Method,
		Summary:        a.Explanation.Summary,
		GeneratedAt:    a.GeneratedAt,
	}
}
