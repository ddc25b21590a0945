package models

// Detector names reported in AnomalyRecord.DetectedBy.
const (
	DetectorDeviation = "deviation"
	DetectorModel     = "model"
)

// DetectorResult holds one detector's per-day output, aligned with the
// prepared series it scored.
type DetectorResult struct {
	Scores []float64
	Flags  []bool
}

// Flagged counts flagged days.
func (r *DetectorResult) Flagged() int {
	n := 0
	for _, f := range r.Flags {
		if f {
			n++
		}
	}
	return n
}

type AnomalyRecord struct {
	Date           Date     `json:"date"`
	Cases          float64  `json:"cases"`
	RollingMean    float64  `json:"rolling_mean"`
	DeviationScore float64  `json:"z_score"`
	OutlierScore   float64  `json:"anomaly_score"`
	DetectedBy     []string `json:"detected_by"`
}

type AnomalyStats struct {
	TotalAnomalies          int     `json:"total_anomalies"`
	AnomalyRate             float64 `json:"anomaly_rate"`
	DeviationDetections     int     `json:"z_score_detections"`
	ModelDetections         int     `json:"isolation_forest_detections"`
	AverageAnomalyMagnitude float64 `json:"average_anomaly_magnitude"`
}
