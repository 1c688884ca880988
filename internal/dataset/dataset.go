// Package dataset provides the built-in tabular dataset the classifier is
// trained on, plus deterministic feature selection and stratified
// splitting. The dataset is synthesized from a fixed seed so that every
// process observes byte-identical rows, which keeps training reproducible
// without shipping a data file.
package dataset

import (
	"fmt"
	"math/rand"
)

const (
	numSamples = 569
	numColumns = 30

	// generatorSeed fixes the dataset contents. It is deliberately
	// independent of the configured training seed: the data is a constant,
	// only the split and the model are seeded from config.
	generatorSeed = 1103

	negativeSamples = 212 // class 0
)

// Table is a feature matrix with aligned labels and ordered column names.
// Column order is part of the model contract: a fitted model encodes
// feature positions, not names.
type Table struct {
	Features [][]float64
	Labels   []int
	Columns  []string
}

// Load synthesizes the built-in two-class dataset. Repeated calls return
// identical data.
func Load() Table {
	rng := rand.New(rand.NewSource(generatorSeed))

	labels := make([]int, numSamples)
	for i := negativeSamples; i < numSamples; i++ {
		labels[i] = 1
	}
	rng.Shuffle(numSamples, func(i, j int) {
		labels[i], labels[j] = labels[j], labels[i]
	})

	features := make([][]float64, numSamples)
	for i := range features {
		row := make([]float64, numColumns)
		for c := 0; c < numColumns; c++ {
			row[c] = columnMean(c, labels[i]) + rng.NormFloat64()*columnStd(c)
		}
		features[i] = row
	}

	columns := make([]string, numColumns)
	for c := range columns {
		columns[c] = fmt.Sprintf("feature_%02d", c)
	}

	return Table{Features: features, Labels: labels, Columns: columns}
}

// columnMean returns the class-conditional mean for a column. The first
// ten columns carry most of the class separation; later ones are mostly
// noise, mirroring real tabular data where a feature subset does the work.
func columnMean(col, label int) float64 {
	base := 2.0 + 0.7*float64(col%7)
	if label == 0 {
		return base
	}
	if col < 10 {
		return base + 2.4
	}
	return base + 0.3
}

func columnStd(col int) float64 {
	return 1.0 + 0.1*float64(col%5)
}

// SelectFeatures restricts the table to its first n columns, preserving
// order. The fitted model's expected input width follows from n.
func (t Table) SelectFeatures(n int) (Table, error) {
	if n <= 0 || n > len(t.Columns) {
		return Table{}, fmt.Errorf("feature count %d outside [1,%d]", n, len(t.Columns))
	}

	features := make([][]float64, len(t.Features))
	for i, row := range t.Features {
		features[i] = row[:n:n]
	}

	return Table{
		Features: features,
		Labels:   t.Labels,
		Columns:  t.Columns[:n:n],
	}, nil
}

// StratifiedSplit partitions the table into disjoint train and test sets,
// sampling each class separately so both sides keep the source class
// proportions. Membership is deterministic for a given seed.
func StratifiedSplit(t Table, testSize float64, seed int64) (xTrain, xTest [][]float64, yTrain, yTest []int, err error) {
	if testSize <= 0 || testSize >= 1 {
		return nil, nil, nil, nil, fmt.Errorf("test size %v outside (0,1)", testSize)
	}
	if len(t.Features) != len(t.Labels) {
		return nil, nil, nil, nil, fmt.Errorf("feature rows %d do not match labels %d", len(t.Features), len(t.Labels))
	}

	byClass := map[int][]int{}
	classes := []int{}
	for i, label := range t.Labels {
		if _, seen := byClass[label]; !seen {
			classes = append(classes, label)
		}
		byClass[label] = append(byClass[label], i)
	}
	sortInts(classes)

	rng := rand.New(rand.NewSource(seed))
	isTest := make([]bool, len(t.Labels))
	for _, class := range classes {
		indices := byClass[class]
		rng.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
		take := int(float64(len(indices))*testSize + 0.5)
		if take == 0 {
			take = 1
		}
		if take >= len(indices) {
			return nil, nil, nil, nil, fmt.Errorf("class %d too small for test size %v", class, testSize)
		}
		for _, idx := range indices[:take] {
			isTest[idx] = true
		}
	}

	for i, row := range t.Features {
		if isTest[i] {
			xTest = append(xTest, row)
			yTest = append(yTest, t.Labels[i])
		} else {
			xTrain = append(xTrain, row)
			yTrain = append(yTrain, t.Labels[i])
		}
	}
	return xTrain, xTest, yTrain, yTest, nil
}

func sortInts(v []int) {
	for i := 1; i < len(v); i++ {
		for j := i; j > 0 && v[j-1] > v[j]; j-- {
			v[j-1], v[j] = v[j], v[j-1]
		}
	}
}

// ClassRatio returns the fraction of samples carrying the given label.
func ClassRatio(labels []int, class int) float64 {
	if len(labels) == 0 {
		return 0
	}
	count := 0
	for _, l := range labels {
		if l == class {
			count++
		}
	}
	return float64(count) / float64(len(labels))
}
