package analytics

import (
	"fmt"

	"EpiPulse/internal/domain/models"
	"EpiPulse/internal/domain/service"
	applogger "EpiPulse/pkg/logger"

	"gonum.org/v1/gonum/stat"
)

const defaultDeviationThreshold = 2.5

// AnomalyEngineOption configures AnomalyEngine.
type AnomalyEngineOption func(*AnomalyEngineConfig)

// AnomalyEngineConfig holds detector settings. When Detectors is empty the
// engine builds the deviation and model detectors from the other fields.
type AnomalyEngineConfig struct {
	Detectors          []service.Detector
	DeviationThreshold float64
	Contamination      float64
	Trees              int
	Seed               int64
	Logger             applogger.Interface
}

func WithDetectors(ds ...service.Detector) AnomalyEngineOption {
	return func(c *AnomalyEngineConfig) { c.Detectors = ds }
}

func WithDeviationThreshold(v float64) AnomalyEngineOption {
	return func(c *AnomalyEngineConfig) { c.DeviationThreshold = v }
}

func WithContamination(v float64) AnomalyEngineOption {
	return func(c *AnomalyEngineConfig) { c.Contamination = v }
}

func WithTrees(n int) AnomalyEngineOption {
	return func(c *AnomalyEngineConfig) { c.Trees = n }
}

func WithSeed(seed int64) AnomalyEngineOption {
	return func(c *AnomalyEngineConfig) { c.Seed = seed }
}

func WithAnomalyLogger(l applogger.Interface) AnomalyEngineOption {
	return func(c *AnomalyEngineConfig) { c.Logger = l }
}

// AnomalyEngine runs every detector over a series and marks a day
// anomalous when any detector flags it.
type AnomalyEngine struct {
	detectors []service.Detector
	logger    applogger.Interface
}

var _ service.AnomalyDetector = (*AnomalyEngine)(nil)

func NewAnomalyEngine(opts ...AnomalyEngineOption) (*AnomalyEngine, error) {
	cfg := AnomalyEngineConfig{
		DeviationThreshold: defaultDeviationThreshold,
		Contamination:      defaultContamination,
		Trees:              defaultTrees,
		Seed:               defaultSeed,
		Logger:             applogger.NewNop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = applogger.NewNop()
	}

	detectors := cfg.Detectors
	if len(detectors) == 0 {
		if cfg.DeviationThreshold <= 0 {
			return nil, fmt.Errorf("deviation threshold must be positive, got %v", cfg.DeviationThreshold)
		}
		model, err := NewModelDetector(
			WithForestTrees(cfg.Trees),
			WithForestContamination(cfg.Contamination),
			WithForestSeed(cfg.Seed),
			WithForestLogger(cfg.Logger),
		)
		if err != nil {
			return nil, err
		}
		detectors = []service.Detector{NewDeviationDetector(cfg.DeviationThreshold), model}
	}
	return &AnomalyEngine{detectors: detectors, logger: cfg.Logger}, nil
}

// Detection is the fused output of all detectors for one series.
type Detection struct {
	series  *models.PreparedSeries
	results map[string]*models.DetectorResult
	order   []string
	fused   []bool
}

// Fused reports whether day i was flagged by any detector.
func (d *Detection) Fused(i int) bool { return d.fused[i] }

// Result returns the raw output of the named detector, or nil.
func (d *Detection) Result(name string) *models.DetectorResult { return d.results[name] }

// Records lists anomalous days in series order.
func (d *Detection) Records() []models.AnomalyRecord {
	records := make([]models.AnomalyRecord, 0)
	for i, flagged := range d.fused {
		if !flagged {
			continue
		}
		p := d.series.Points[i]
		rec := models.AnomalyRecord{
			Date:        p.Date,
			Cases:       p.Cases,
			RollingMean: p.RollingMean,
			DetectedBy:  make([]string, 0, len(d.order)),
		}
		if r := d.results[models.DetectorDeviation]; r != nil {
			rec.DeviationScore = r.Scores[i]
		}
		if r := d.results[models.DetectorModel]; r != nil {
			rec.OutlierScore = r.Scores[i]
		}
		for _, name := range d.order {
			if d.results[name].Flags[i] {
				rec.DetectedBy = append(rec.DetectedBy, name)
			}
		}
		records = append(records, rec)
	}
	return records
}

// Stats aggregates the fused flags.
func (d *Detection) Stats() models.AnomalyStats {
	var magnitudes []float64
	for i, flagged := range d.fused {
		if flagged {
			magnitudes = append(magnitudes, d.series.Points[i].Cases)
		}
	}

	st := models.AnomalyStats{TotalAnomalies: len(magnitudes)}
	if n := d.series.Len(); n > 0 {
		st.AnomalyRate = float64(st.TotalAnomalies) / float64(n)
	}
	if r := d.results[models.DetectorDeviation]; r != nil {
		st.DeviationDetections = r.Flagged()
	}
	if r := d.results[models.DetectorModel]; r != nil {
		st.ModelDetections = r.Flagged()
	}
	if len(magnitudes) > 0 {
		st.AverageAnomalyMagnitude = stat.Mean(magnitudes, nil)
	}
	return st
}

// Run scores s with every detector and fuses the flags.
func (e *AnomalyEngine) Run(s *models.PreparedSeries) (*Detection, error) {
	if err := requireFeatures(s); err != nil {
		return nil, err
	}

	det := &Detection{
		series:  s,
		results: make(map[string]*models.DetectorResult, len(e.detectors)),
		fused:   make([]bool, s.Len()),
	}
	for _, d := range e.detectors {
		res, err := d.Score(s)
		if err != nil {
			return nil, fmt.Errorf("detector %s: %w", d.Name(), err)
		}
		if len(res.Flags) != s.Len() || len(res.Scores) != s.Len() {
			return nil, fmt.Errorf("detector %s returned %d flags for %d days", d.Name(), len(res.Flags), s.Len())
		}
		det.results[d.Name()] = res
		det.order = append(det.order, d.Name())
		for i, f := range res.Flags {
			det.fused[i] = det.fused[i] || f
		}
		e.logger.Info("detector finished",
			applogger.String("detector", d.Name()),
			applogger.Int("flagged", res.Flagged()),
		)
	}
	return det, nil
}

// Detect implements service.AnomalyDetector.
func (e *AnomalyEngine) Detect(s *models.PreparedSeries) ([]models.AnomalyRecord, models.AnomalyStats, error) {
	det, err := e.Run(s)
	if err != nil {
		return nil, models.AnomalyStats{}, err
	}
	stats := det.Stats()
	e.logger.Info("anomaly detection complete",
		applogger.Int("total", stats.TotalAnomalies),
		applogger.Float64("rate", stats.AnomalyRate),
	)
	return det.Records(), stats, nil
}
