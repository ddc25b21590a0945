package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInsufficientData      = errors.New("insufficient data")
	ErrFeatureMismatch       = errors.New("feature mismatch")
	ErrForecastFailed        = errors.New("forecast failed")
	ErrUnknownForecastMethod = errors.New("unknown forecast method")
	ErrUnknownDataSource     = errors.New("unknown data source")
	ErrInvalidRequest        = errors.New("invalid request")
	ErrNoData                = errors.New("no data found")
	ErrDatasetNotFound       = errors.New("dataset not found")
	ErrSourceUnavailable     = errors.New("data source unavailable")
)

// InsufficientDataError is returned when a series is shorter than the
// configured minimum.
type InsufficientDataError struct {
	Got int
	Min int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: %d rows, minimum required: %d", e.Got, e.Min)
}

func (e *InsufficientDataError) Is(target error) bool { return target == ErrInsufficientData }

// FeatureMismatchError means a series reached a detector without the derived
// columns it needs. It indicates broken wiring, not bad user input.
type FeatureMismatchError struct {
	Missing []string
}

func (e *FeatureMismatchError) Error() string {
	return fmt.Sprintf("missing required columns: %s", strings.Join(e.Missing, ", "))
}

func (e *FeatureMismatchError) Is(target error) bool { return target == ErrFeatureMismatch }
