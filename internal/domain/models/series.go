package models

// Trend labels shared by series summaries and forecasts.
type Trend string

const (
	TrendIncreasing Trend = "increasing"
	TrendDecreasing Trend = "decreasing"
	TrendStable     Trend = "stable"
)

// CasePoint is one raw row as produced by a data source. Cases is NaN when
// the source value was missing or not numeric.
type CasePoint struct {
	Date    Date    `json:"date"`
	Cases   float64 `json:"cases"`
	Country string  `json:"country,omitempty"`
	Disease string  `json:"disease,omitempty"`
}

// PreparedPoint is a day of a continuous series with its rolling features.
type PreparedPoint struct {
	Date         Date    `json:"date"`
	Cases        float64 `json:"cases"`
	RollingMean  float64 `json:"rolling_mean"`
	RollingStd   float64 `json:"rolling_std"`
	RollingSlope float64 `json:"rolling_slope"`
}

// PreparedSeries is a gap-free daily series. It is built once per analysis
// and only read afterwards.
type PreparedSeries struct {
	Points []PreparedPoint
	Window int
}

func (s *PreparedSeries) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Points)
}

// First returns the earliest day. The series must not be empty.
func (s *PreparedSeries) First() Date { return s.Points[0].Date }

// Last returns the latest day. The series must not be empty.
func (s *PreparedSeries) Last() Date { return s.Points[len(s.Points)-1].Date }

// Cases copies the case column.
func (s *PreparedSeries) Cases() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Cases
	}
	return out
}

// FeatureMatrix returns one row per day: cases, rolling mean, rolling std, rolling slope.
func (s *PreparedSeries) FeatureMatrix() [][]float64 {
	out := make([][]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = []float64{p.Cases, p.RollingMean, p.RollingStd, p.RollingSlope}
	}
	return out
}

// FeatureNames lists the FeatureMatrix columns in order.
var FeatureNames = []string{"cases", "rolling_mean", "rolling_std", "rolling_slope"}

// CleanedPoint is the API projection of a prepared day.
type CleanedPoint struct {
	Date        Date    `json:"date"`
	Cases       float64 `json:"cases"`
	RollingMean float64 `json:"rolling_mean"`
	RollingStd  float64 `json:"rolling_std"`
}

type DateRange struct {
	Start Date `json:"start"`
	End   Date `json:"end"`
}

type SummaryStats struct {
	TotalCases     float64   `json:"total_cases"`
	MeanDailyCases float64   `json:"mean_daily_cases"`
	MaxDailyCases  float64   `json:"max_daily_cases"`
	MinDailyCases  float64   `json:"min_daily_cases"`
	StdDailyCases  float64   `json:"std_daily_cases"`
	DataPoints     int       `json:"data_points"`
	DateRange      DateRange `json:"date_range"`
	Trend          Trend     `json:"trend"`
}
