package analytics

import (
	"math"

	"EpiPulse/internal/domain/models"
	"EpiPulse/internal/domain/service"
)

// DeviationDetector flags days whose cases sit more than Threshold rolling
// standard deviations away from the rolling mean.
//
// The rolling window includes the scored day, so |z| can never exceed
// (w-1)/sqrt(w) for a window of w days: about 2.27 for w=7. With the
// default 2.5 threshold a single spike in a 7-day window is left to the
// model detector; lower the threshold or widen the window to see it here.
type DeviationDetector struct {
	Threshold float64
}

var _ service.Detector = (*DeviationDetector)(nil)

// NewDeviationDetector returns a detector with the given |z| threshold.
func NewDeviationDetector(threshold float64) *DeviationDetector {
	return &DeviationDetector{Threshold: threshold}
}

func (d *DeviationDetector) Name() string { return models.DetectorDeviation }

func (d *DeviationDetector) Score(s *models.PreparedSeries) (*models.DetectorResult, error) {
	if err := requireFeatures(s); err != nil {
		return nil, err
	}
	res := &models.DetectorResult{
		Scores: make([]float64, s.Len()),
		Flags:  make([]bool, s.Len()),
	}
	for i, p := range s.Points {
		z := 0.0
		if p.RollingStd > 0 {
			z = (p.Cases - p.RollingMean) / p.RollingStd
		}
		res.Scores[i] = z
		res.Flags[i] = math.Abs(z) > d.Threshold
	}
	return res, nil
}
