package models

import "fmt"

// ForecastMethod names a forecasting strategy.
type ForecastMethod string

const (
	// ForecastProphet is the trend plus seasonality decomposition model.
	ForecastProphet ForecastMethod = "prophet"
	// ForecastSimple is the flat trailing moving average.
	ForecastSimple ForecastMethod = "simple"
)

func (m ForecastMethod) Valid() bool {
	return m == ForecastProphet || m == ForecastSimple
}

type ForecastPoint struct {
	Date       Date    `json:"date"`
	Forecast   float64 `json:"forecast"`
	LowerBound float64 `json:"lower_bound"`
	UpperBound float64 `json:"upper_bound"`
}

// ForecastResult is what a forecasting strategy returns: either points or
// the reason it could not produce them.
type ForecastResult struct {
	Method ForecastMethod
	Points []ForecastPoint
	Err    error
}

func (r ForecastResult) OK() bool { return r.Err == nil && r.Points != nil }

// ForecastSuccess wraps points produced by method.
func ForecastSuccess(method ForecastMethod, points []ForecastPoint) ForecastResult {
	return ForecastResult{Method: method, Points: points}
}

// ForecastFailure wraps err as a failed attempt of method.
func ForecastFailure(method ForecastMethod, err error) ForecastResult {
	return ForecastResult{Method: method, Err: fmt.Errorf("%w: %s: %v", ErrForecastFailed, method, err)}
}

type ForecastStats struct {
	HorizonDays  int            `json:"forecast_horizon_days"`
	MeanForecast float64        `json:"mean_forecast"`
	MaxForecast  float64        `json:"max_forecast"`
	MinForecast  float64        `json:"min_forecast"`
	Trend        Trend          `json:"trend"`
	Method       ForecastMethod `json:"method"`
}
