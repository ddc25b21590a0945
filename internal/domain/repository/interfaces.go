package repository

import (
	"context"
	"time"

	"EpiPulse/internal/domain/models"
)

// CaseQuery selects the rows a source should return. Dataset is the file
// name for file-backed sources and ignored elsewhere.
type CaseQuery struct {
	Dataset string
	Country string
	Disease string
	From    time.Time
	To      time.Time
}

// CaseSource loads raw case rows.
type CaseSource interface {
	Name() DataSource
	// Load returns every row of the dataset matching the query's country and
	// disease; date bounds are applied by the caller.
	Load(ctx context.Context, q CaseQuery) ([]models.CasePoint, error)
	// Countries lists distinct countries in the dataset, sorted.
	Countries(ctx context.Context, dataset string) ([]string, error)
}

// ReportPublisher announces completed analyses.
type ReportPublisher interface {
	PublishAnalysis(ctx context.Context, ev models.AnalysisEvent) error
	Close() error
}

type Metrics interface {
	RecordAnalysis(source, method string, risk string)
	RecordAnomalies(detector string, n int)
	RecordForecastFallback(reason string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
