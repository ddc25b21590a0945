package service

import (
	"EpiPulse/internal/domain/models"
)

// SeriesPreparer turns raw rows into a continuous daily series with rolling features.
type SeriesPreparer interface {
	Prepare(raw []models.CasePoint) (*models.PreparedSeries, error)
	Summarize(s *models.PreparedSeries) models.SummaryStats
}

// Detector scores every day of a prepared series and flags outliers.
type Detector interface {
	Name() string
	Score(s *models.PreparedSeries) (*models.DetectorResult, error)
}

// Forecaster projects a prepared series forward. Failures are reported in
// the result rather than as an error so callers can fall back explicitly.
type Forecaster interface {
	Name() models.ForecastMethod
	Forecast(s *models.PreparedSeries, horizon int) models.ForecastResult
}

// AnomalyDetector fuses the output of several Detectors.
type AnomalyDetector interface {
	Detect(s *models.PreparedSeries) ([]models.AnomalyRecord, models.AnomalyStats, error)
}

// ForecastProducer picks a strategy by name and falls back when it fails.
type ForecastProducer interface {
	Forecast(s *models.PreparedSeries, horizon int, method models.ForecastMethod) ([]models.ForecastPoint, models.ForecastStats, error)
}

// Narrator converts numeric signals into a report.
type Narrator interface {
	Narrate(country, disease string, summary models.SummaryStats, anomalies models.AnomalyStats, forecast models.ForecastStats) models.Report
}
