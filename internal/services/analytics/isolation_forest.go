package analytics

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"

	"EpiPulse/internal/domain/models"
	"EpiPulse/internal/domain/service"
	applogger "EpiPulse/pkg/logger"
)

const (
	defaultTrees         = 100
	defaultContamination = 0.1
	defaultSeed          = 42
	maxSubsample         = 256
	eulerGamma           = 0.5772156649015329
)

type isolationNode struct {
	feature int
	split   float64
	left    *isolationNode
	right   *isolationNode
	size    int
	leaf    bool
}

// IsolationForest is an ensemble of random partitioning trees. Points that
// are isolated in few splits get lower (more negative) scores.
type IsolationForest struct {
	trees     []*isolationNode
	numTrees  int
	subsample int
	maxDepth  int
	seed      int64
}

// NewIsolationForest returns an untrained forest.
func NewIsolationForest(numTrees int, seed int64) *IsolationForest {
	return &IsolationForest{numTrees: numTrees, seed: seed}
}

// Fit builds the trees. Each tree draws from its own generator seeded from
// the forest seed, so the result does not depend on goroutine scheduling.
func (f *IsolationForest) Fit(data [][]float64) error {
	if len(data) == 0 {
		return fmt.Errorf("isolation forest: empty training set")
	}
	f.subsample = len(data)
	if f.subsample > maxSubsample {
		f.subsample = maxSubsample
	}
	f.maxDepth = int(math.Ceil(math.Log2(math.Max(float64(f.subsample), 2))))
	f.trees = make([]*isolationNode, f.numTrees)

	var wg sync.WaitGroup
	for i := 0; i < f.numTrees; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(f.seed + int64(i)))
			f.trees[i] = f.buildTree(rng, sampleRows(rng, data, f.subsample), 0)
		}(i)
	}
	wg.Wait()
	return nil
}

// ScoreSamples returns -2^(-E[h(x)]/c(psi)) for every row.
func (f *IsolationForest) ScoreSamples(data [][]float64) []float64 {
	out := make([]float64, len(data))
	norm := averagePathLength(f.subsample)
	for i, row := range data {
		if len(f.trees) == 0 || norm == 0 {
			out[i] = -0.5
			continue
		}
		total := 0.0
		for _, t := range f.trees {
			total += pathLength(t, row, 0)
		}
		out[i] = -math.Pow(2, -(total/float64(len(f.trees)))/norm)
	}
	return out
}

func sampleRows(rng *rand.Rand, data [][]float64, n int) [][]float64 {
	idx := rng.Perm(len(data))[:n]
	out := make([][]float64, n)
	for i, j := range idx {
		out[i] = data[j]
	}
	return out
}

func (f *IsolationForest) buildTree(rng *rand.Rand, rows [][]float64, depth int) *isolationNode {
	if len(rows) <= 1 || depth >= f.maxDepth {
		return &isolationNode{size: len(rows), leaf: true}
	}

	// only features that still vary can split
	var candidates []int
	for j := range rows[0] {
		lo, hi := featureRange(rows, j)
		if hi > lo {
			candidates = append(candidates, j)
		}
	}
	if len(candidates) == 0 {
		return &isolationNode{size: len(rows), leaf: true}
	}

	feature := candidates[rng.Intn(len(candidates))]
	lo, hi := featureRange(rows, feature)
	split := lo + rng.Float64()*(hi-lo)

	var left, right [][]float64
	for _, r := range rows {
		if r[feature] < split {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return &isolationNode{size: len(rows), leaf: true}
	}

	return &isolationNode{
		feature: feature,
		split:   split,
		left:    f.buildTree(rng, left, depth+1),
		right:   f.buildTree(rng, right, depth+1),
		size:    len(rows),
	}
}

func featureRange(rows [][]float64, j int) (float64, float64) {
	lo, hi := rows[0][j], rows[0][j]
	for _, r := range rows[1:] {
		if r[j] < lo {
			lo = r[j]
		}
		if r[j] > hi {
			hi = r[j]
		}
	}
	return lo, hi
}

func pathLength(n *isolationNode, row []float64, depth int) float64 {
	if n.leaf {
		return float64(depth) + averagePathLength(n.size)
	}
	if row[n.feature] < n.split {
		return pathLength(n.left, row, depth+1)
	}
	return pathLength(n.right, row, depth+1)
}

// averagePathLength is c(n), the mean path length of an unsuccessful
// binary search tree lookup over n points.
func averagePathLength(n int) float64 {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	}
	m := float64(n)
	return 2*(math.Log(m-1)+eulerGamma) - 2*(m-1)/m
}

// ModelDetectorOption configures ModelDetector.
type ModelDetectorOption func(*ModelDetectorConfig)

// ModelDetectorConfig holds the isolation forest settings.
type ModelDetectorConfig struct {
	Trees         int
	Contamination float64
	Seed          int64
	Logger        applogger.Interface
}

func WithForestTrees(n int) ModelDetectorOption {
	return func(c *ModelDetectorConfig) { c.Trees = n }
}

func WithForestContamination(v float64) ModelDetectorOption {
	return func(c *ModelDetectorConfig) { c.Contamination = v }
}

func WithForestSeed(seed int64) ModelDetectorOption {
	return func(c *ModelDetectorConfig) { c.Seed = seed }
}

func WithForestLogger(l applogger.Interface) ModelDetectorOption {
	return func(c *ModelDetectorConfig) { c.Logger = l }
}

// ModelDetector flags the contamination share of days with the lowest
// isolation forest scores over the four prepared feature columns.
type ModelDetector struct {
	cfg ModelDetectorConfig
}

var _ service.Detector = (*ModelDetector)(nil)

func NewModelDetector(opts ...ModelDetectorOption) (*ModelDetector, error) {
	cfg := ModelDetectorConfig{
		Trees:         defaultTrees,
		Contamination: defaultContamination,
		Seed:          defaultSeed,
		Logger:        applogger.NewNop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Trees < 1 {
		return nil, fmt.Errorf("forest needs at least one tree, got %d", cfg.Trees)
	}
	if cfg.Contamination <= 0 || cfg.Contamination > 0.5 {
		return nil, fmt.Errorf("contamination must be in (0, 0.5], got %v", cfg.Contamination)
	}
	if cfg.Logger == nil {
		cfg.Logger = applogger.NewNop()
	}
	return &ModelDetector{cfg: cfg}, nil
}

func (d *ModelDetector) Name() string { return models.DetectorModel }

func (d *ModelDetector) Score(s *models.PreparedSeries) (*models.DetectorResult, error) {
	if err := requireFeatures(s); err != nil {
		return nil, err
	}
	X := s.FeatureMatrix()
	for _, row := range X {
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				row[j] = 0
			}
		}
	}

	forest := NewIsolationForest(d.cfg.Trees, d.cfg.Seed)
	if err := forest.Fit(X); err != nil {
		return nil, err
	}
	scores := forest.ScoreSamples(X)

	sorted := append([]float64(nil), scores...)
	sort.Float64s(sorted)
	threshold := percentile(sorted, d.cfg.Contamination)

	res := &models.DetectorResult{Scores: scores, Flags: make([]bool, len(scores))}
	for i, sc := range scores {
		res.Flags[i] = sc < threshold
	}

	d.cfg.Logger.Debug("isolation forest scored",
		applogger.Int("rows", len(X)),
		applogger.Float64("threshold", threshold),
		applogger.Int("flagged", res.Flagged()),
	)
	return res, nil
}

// percentile interpolates linearly at rank q*(n-1) of an ascending slice.
// With distinct scores, strict comparison against it flags ceil(q*(n-1))
// values, matching the contamination share of the sample.
func percentile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	pos := q * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if hi >= n {
		hi = n - 1
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}
