package usecase

import (
	"fmt"
	"time"

	"EpiPulse/internal/domain/models"
	domrepo "EpiPulse/internal/domain/repository"
)

// ParamsFromRequest converts a validated AnalyzeRequest into pipeline
// parameters.
func ParamsFromRequest(req models.AnalyzeRequest) (AnalyzeParams, error) {
	p := AnalyzeParams{
		Country: req.Country,
		Disease: req.Disease,
		Source:  domrepo.NormalizeDataSource(req.DataSource),
		Dataset: req.CSVFilename,
		Method:  models.ForecastMethod(req.Method),
		Horizon: req.Horizon,
	}
	if !domrepo.IsValidDataSource(p.Source) {
		return p, fmt.Errorf("%w: %s", models.ErrUnknownDataSource, p.Source)
	}

	var err error
	if p.From, err = parseBound(req.StartDate, "start_date"); err != nil {
		return p, err
	}
	if p.To, err = parseBound(req.EndDate, "end_date"); err != nil {
		return p, err
	}
	return p, nil
}

func parseBound(s, field string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	d, err := models.ParseDate(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s: %v", models.ErrInvalidRequest, field, err)
	}
	return d.Time, nil
}
