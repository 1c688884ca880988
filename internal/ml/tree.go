package ml

import (
	"errors"
	"math"
	"math/rand"
	"sort"
)

// treeNode is one node of a CART tree stored in a flattened array.
// Children are referenced by index; leaves carry the class count
// distribution observed during fitting, which is what probability
// estimates are built from.
type treeNode struct {
	FeatureIdx  int     `json:"feature_idx"`
	Threshold   float64 `json:"threshold"`
	LeftChild   int     `json:"left_child"`
	RightChild  int     `json:"right_child"`
	IsLeaf      bool    `json:"is_leaf"`
	ClassCounts []int   `json:"class_counts"`
}

type tree struct {
	Nodes []treeNode `json:"nodes"`
}

// fit grows the tree on the rows named by indices. classIndex maps raw
// labels to positions in the leaf count vectors.
func (t *tree) fit(x [][]float64, y []int, indices []int, classIndex map[int]int, maxDepth int, rng *rand.Rand) {
	t.Nodes = t.buildNode(x, y, indices, classIndex, 0, maxDepth, rng)
}

func (t *tree) buildNode(x [][]float64, y []int, indices []int, classIndex map[int]int, depth, maxDepth int, rng *rand.Rand) []treeNode {
	counts := classCounts(y, indices, classIndex)

	if depth >= maxDepth || isPure(counts) || len(indices) < 2 {
		return []treeNode{leaf(counts)}
	}

	featureIdx, threshold, ok := bestSplit(x, y, indices, classIndex, rng)
	if !ok {
		return []treeNode{leaf(counts)}
	}

	var left, right []int
	for _, i := range indices {
		if x[i][featureIdx] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return []treeNode{leaf(counts)}
	}

	leftNodes := t.buildNode(x, y, left, classIndex, depth+1, maxDepth, rng)
	rightNodes := t.buildNode(x, y, right, classIndex, depth+1, maxDepth, rng)

	root := treeNode{
		FeatureIdx: featureIdx,
		Threshold:  threshold,
		LeftChild:  1,
		RightChild: 1 + len(leftNodes),
	}

	nodes := make([]treeNode, 0, 1+len(leftNodes)+len(rightNodes))
	nodes = append(nodes, root)
	nodes = append(nodes, leftNodes...)
	nodes = append(nodes, rightNodes...)
	return nodes
}

func leaf(counts []int) treeNode {
	return treeNode{
		FeatureIdx:  -1,
		LeftChild:   -1,
		RightChild:  -1,
		IsLeaf:      true,
		ClassCounts: counts,
	}
}

// classDistribution walks the tree and returns the leaf's class count
// vector for the given feature row.
func (t *tree) classDistribution(features []float64) ([]int, error) {
	if len(t.Nodes) == 0 {
		return nil, errors.New("tree not fitted")
	}
	idx := 0
	for {
		node := t.Nodes[idx]
		if node.IsLeaf {
			return node.ClassCounts, nil
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= len(features) {
			return nil, errors.New("feature index out of range")
		}
		if features[node.FeatureIdx] <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
		if idx < 0 || idx >= len(t.Nodes) {
			return nil, errors.New("invalid tree state")
		}
	}
}

// bestSplit scans a random sqrt-sized feature subset and picks the
// threshold minimizing weighted gini impurity. Candidate thresholds are
// midpoints between consecutive distinct sorted values.
func bestSplit(x [][]float64, y []int, indices []int, classIndex map[int]int, rng *rand.Rand) (int, float64, bool) {
	featureCount := len(x[indices[0]])
	subset := featureSubset(featureCount, rng)

	bestFeature := -1
	bestThreshold := 0.0
	bestImpurity := math.MaxFloat64

	values := make([]float64, 0, len(indices))
	for _, featureIdx := range subset {
		values = values[:0]
		for _, i := range indices {
			values = append(values, x[i][featureIdx])
		}
		sort.Float64s(values)

		for v := 1; v < len(values); v++ {
			if values[v] == values[v-1] {
				continue
			}
			threshold := (values[v] + values[v-1]) / 2

			leftCounts := make([]int, len(classIndex))
			rightCounts := make([]int, len(classIndex))
			for _, i := range indices {
				if x[i][featureIdx] <= threshold {
					leftCounts[classIndex[y[i]]]++
				} else {
					rightCounts[classIndex[y[i]]]++
				}
			}

			impurity := weightedGini(leftCounts, rightCounts)
			if impurity < bestImpurity {
				bestImpurity = impurity
				bestFeature = featureIdx
				bestThreshold = threshold
			}
		}
	}

	if bestFeature == -1 {
		return -1, 0, false
	}
	return bestFeature, bestThreshold, true
}

// featureSubset draws ceil(sqrt(n)) distinct feature indices.
func featureSubset(n int, rng *rand.Rand) []int {
	k := int(math.Ceil(math.Sqrt(float64(n))))
	perm := rng.Perm(n)
	subset := perm[:k]
	sort.Ints(subset)
	return subset
}

func classCounts(y []int, indices []int, classIndex map[int]int) []int {
	counts := make([]int, len(classIndex))
	for _, i := range indices {
		counts[classIndex[y[i]]]++
	}
	return counts
}

func isPure(counts []int) bool {
	nonZero := 0
	for _, c := range counts {
		if c > 0 {
			nonZero++
		}
	}
	return nonZero <= 1
}

func weightedGini(leftCounts, rightCounts []int) float64 {
	leftTotal := sum(leftCounts)
	rightTotal := sum(rightCounts)
	total := float64(leftTotal + rightTotal)
	if total == 0 {
		return 0
	}
	return float64(leftTotal)/total*gini(leftCounts, leftTotal) +
		float64(rightTotal)/total*gini(rightCounts, rightTotal)
}

func gini(counts []int, total int) float64 {
	if total == 0 {
		return 0
	}
	impurity := 1.0
	for _, c := range counts {
		p := float64(c) / float64(total)
		impurity -= p * p
	}
	return impurity
}

func sum(v []int) int {
	s := 0
	for _, c := range v {
		s += c
	}
	return s
}
