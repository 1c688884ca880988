// Package ml implements the classifier capability used by the training
// pipeline and the predictor: a random forest of CART trees with a JSON
// artifact format. Fitting is deterministic for a given seed, which is
// what makes training runs reproducible end to end.
package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
)

// Config holds the forest hyperparameters.
type Config struct {
	NumTrees int
	MaxDepth int
	Seed     int64
}

// Forest is an ensemble of CART trees over a fixed-width feature matrix.
// Once fitted (or loaded) it is read-only and safe for concurrent use.
type Forest struct {
	Trees        []tree `json:"trees"`
	Classes      []int  `json:"classes"`
	FeatureCount int    `json:"feature_count"`

	cfg Config
}

// New creates an unfitted forest with the given hyperparameters.
func New(cfg Config) *Forest {
	if cfg.NumTrees <= 0 {
		cfg.NumTrees = 100
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = 10
	}
	return &Forest{cfg: cfg}
}

// Fit grows the configured number of trees, each on a bootstrap sample of
// the training rows. All randomness comes from a single seeded source, so
// identical inputs and config produce an identical forest.
func (f *Forest) Fit(x [][]float64, y []int) error {
	if len(x) == 0 || len(y) == 0 {
		return errors.New("empty training data")
	}
	if len(x) != len(y) {
		return fmt.Errorf("feature rows %d do not match labels %d", len(x), len(y))
	}

	width := len(x[0])
	for i, row := range x {
		if len(row) != width {
			return fmt.Errorf("row %d has %d features, expected %d", i, len(row), width)
		}
	}

	classes, classIndex := distinctClasses(y)
	if len(classes) < 2 {
		return errors.New("training data contains a single class")
	}

	rng := rand.New(rand.NewSource(f.cfg.Seed))
	trees := make([]tree, f.cfg.NumTrees)
	for i := range trees {
		sample := bootstrapSample(len(x), rng)
		trees[i].fit(x, y, sample, classIndex, f.cfg.MaxDepth, rng)
	}

	f.Trees = trees
	f.Classes = classes
	f.FeatureCount = width
	return nil
}

// PredictProba returns the class probability vector for one feature row,
// averaged across the per-tree leaf distributions. The result is ordered
// by Classes and sums to 1.
func (f *Forest) PredictProba(features []float64) ([]float64, error) {
	if len(f.Trees) == 0 {
		return nil, errors.New("model not fitted")
	}
	if len(features) != f.FeatureCount {
		return nil, fmt.Errorf("expected %d features, got %d", f.FeatureCount, len(features))
	}

	probs := make([]float64, len(f.Classes))
	for ti := range f.Trees {
		counts, err := f.Trees[ti].classDistribution(features)
		if err != nil {
			return nil, fmt.Errorf("tree %d: %w", ti, err)
		}
		total := sum(counts)
		if total == 0 {
			continue
		}
		for c, count := range counts {
			probs[c] += float64(count) / float64(total)
		}
	}

	for c := range probs {
		probs[c] /= float64(len(f.Trees))
	}
	return probs, nil
}

// Predict returns the most probable class label for one feature row.
func (f *Forest) Predict(features []float64) (int, error) {
	probs, err := f.PredictProba(features)
	if err != nil {
		return 0, err
	}
	best := 0
	for c := 1; c < len(probs); c++ {
		if probs[c] > probs[best] {
			best = c
		}
	}
	return f.Classes[best], nil
}

// NumFeatures reports the input width the forest was fitted on.
func (f *Forest) NumFeatures() int {
	return f.FeatureCount
}

// Save serializes the fitted forest to path as JSON.
func (f *Forest) Save(path string) error {
	if len(f.Trees) == 0 {
		return errors.New("model not fitted")
	}
	payload, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal model: %w", err)
	}
	return os.WriteFile(path, payload, 0o600)
}

// Load reads a fitted forest artifact from path.
func Load(path string) (*Forest, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f Forest
	if err := json.Unmarshal(payload, &f); err != nil {
		return nil, fmt.Errorf("parse model artifact: %w", err)
	}
	if len(f.Trees) == 0 || f.FeatureCount <= 0 || len(f.Classes) < 2 {
		return nil, errors.New("model artifact incomplete")
	}
	return &f, nil
}

func distinctClasses(y []int) ([]int, map[int]int) {
	seen := map[int]bool{}
	classes := []int{}
	for _, label := range y {
		if !seen[label] {
			seen[label] = true
			classes = append(classes, label)
		}
	}
	for i := 1; i < len(classes); i++ {
		for j := i; j > 0 && classes[j-1] > classes[j]; j-- {
			classes[j-1], classes[j] = classes[j], classes[j-1]
		}
	}
	index := make(map[int]int, len(classes))
	for i, class := range classes {
		index[class] = i
	}
	return classes, index
}

func bootstrapSample(n int, rng *rand.Rand) []int {
	sample := make([]int, n)
	for i := range sample {
		sample[i] = rng.Intn(n)
	}
	return sample
}
