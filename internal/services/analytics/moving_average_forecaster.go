package analytics

import (
	"errors"

	"EpiPulse/internal/domain/models"
	"EpiPulse/internal/domain/service"

	"gonum.org/v1/gonum/stat"
)

const (
	movingAverageWindow = 7
	movingAverageBand   = 0.2
)

// MovingAverageForecaster projects the mean of the trailing week flat over
// the horizon with a fixed +/-20% band. It succeeds on any non-empty series.
type MovingAverageForecaster struct {
	Window int
	Band   float64
}

var _ service.Forecaster = (*MovingAverageForecaster)(nil)

func NewMovingAverageForecaster() *MovingAverageForecaster {
	return &MovingAverageForecaster{Window: movingAverageWindow, Band: movingAverageBand}
}

func (f *MovingAverageForecaster) Name() models.ForecastMethod { return models.ForecastSimple }

func (f *MovingAverageForecaster) Forecast(s *models.PreparedSeries, horizon int) models.ForecastResult {
	if s.Len() == 0 {
		return models.ForecastFailure(f.Name(), errors.New("empty series"))
	}
	if horizon < 1 {
		return models.ForecastFailure(f.Name(), errors.New("horizon must be positive"))
	}

	cases := s.Cases()
	start := len(cases) - f.Window
	if start < 0 {
		start = 0
	}
	avg := stat.Mean(cases[start:], nil)
	if avg < 0 {
		avg = 0
	}

	last := s.Last()
	points := make([]models.ForecastPoint, horizon)
	for h := range points {
		points[h] = models.ForecastPoint{
			Date:       last.AddDays(h + 1),
			Forecast:   avg,
			LowerBound: avg * (1 - f.Band),
			UpperBound: avg * (1 + f.Band),
		}
	}
	return models.ForecastSuccess(f.Name(), points)
}
