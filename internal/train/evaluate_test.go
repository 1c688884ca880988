package train

import (
	"math"
	"math/rand"
	"testing"

	"modelgate/internal/ml"
)

func fittedModel(t *testing.T) (*ml.Forest, [][]float64, []int) {
	t.Helper()

	rng := rand.New(rand.NewSource(11))
	x := make([][]float64, 200)
	y := make([]int, 200)
	for i := range x {
		label := i % 2
		offset := float64(label) * 5.0
		x[i] = []float64{offset + rng.NormFloat64(), offset + rng.NormFloat64()}
		y[i] = label
	}

	model := ml.New(ml.Config{NumTrees: 20, MaxDepth: 5, Seed: 42})
	if err := model.Fit(x, y); err != nil {
		t.Fatalf("fit: %v", err)
	}
	return model, x, y
}

func TestEvaluatePerfectSeparation(t *testing.T) {
	model, x, y := fittedModel(t)

	m, err := Evaluate(model, x, y)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	for name, value := range map[string]float64{
		"accuracy":  m.Accuracy,
		"precision": m.Precision,
		"recall":    m.Recall,
		"f1_score":  m.F1Score,
	} {
		if value < 0.95 || value > 1.0 {
			t.Errorf("%s = %.4f, expected near-perfect on separable data", name, value)
		}
	}

	if m.Timestamp == "" {
		t.Error("expected a timestamp on the metrics record")
	}
}

func TestEvaluateRequiresModel(t *testing.T) {
	if _, err := Evaluate(nil, [][]float64{{1}}, []int{0}); err == nil {
		t.Error("expected error for nil model")
	}
}

func TestEvaluateRejectsBadTestSet(t *testing.T) {
	model, _, _ := fittedModel(t)

	if _, err := Evaluate(model, nil, nil); err == nil {
		t.Error("expected error for empty test set")
	}
	if _, err := Evaluate(model, [][]float64{{1, 2}}, []int{0, 1}); err == nil {
		t.Error("expected error for mismatched rows and labels")
	}
}

func TestWeightedScoresKnownConfusion(t *testing.T) {
	// 4 samples of class 0, 6 of class 1. Predictions confuse one each way:
	// class 0: 3 right, 1 predicted as 1; class 1: 5 right, 1 predicted as 0.
	actual := []int{0, 0, 0, 0, 1, 1, 1, 1, 1, 1}
	predicted := []int{0, 0, 0, 1, 1, 1, 1, 1, 1, 0}

	precision, recall, f1 := weightedScores(actual, predicted)

	// precision(0)=3/4, recall(0)=3/4, precision(1)=5/6, recall(1)=5/6.
	// Supports 0.4 and 0.6 give a weighted value of 0.8 for all three.
	for name, got := range map[string]float64{"precision": precision, "recall": recall, "f1": f1} {
		if math.Abs(got-0.8) > 1e-9 {
			t.Errorf("weighted %s = %.6f, want 0.8", name, got)
		}
	}
}

func TestWeightedScoresZeroDenominators(t *testing.T) {
	// Nothing predicted as class 1: its precision contribution is 0.
	actual := []int{0, 1}
	predicted := []int{0, 0}

	precision, recall, f1 := weightedScores(actual, predicted)
	if precision < 0 || precision > 1 || recall != 0.5 || f1 < 0 || f1 > 1 {
		t.Errorf("unexpected scores precision=%v recall=%v f1=%v", precision, recall, f1)
	}
}
