package train

import (
	"errors"
	"fmt"
	"time"

	"modelgate/internal/ml"
)

// Metrics is the evaluation record persisted next to a model artifact.
// It is created once per training run and immutable afterwards.
type Metrics struct {
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1Score   float64 `json:"f1_score"`
	Timestamp string  `json:"timestamp"`
}

// Value looks up a metric by the name used in gate keys. Both "f1" and
// "f1_score" resolve to the F1 value so gate configs can use either form.
func (m Metrics) Value(name string) (float64, bool) {
	switch name {
	case "accuracy":
		return m.Accuracy, true
	case "precision":
		return m.Precision, true
	case "recall":
		return m.Recall, true
	case "f1", "f1_score":
		return m.F1Score, true
	default:
		return 0, false
	}
}

// Evaluate predicts on the held-out rows and computes accuracy plus
// support-weighted precision, recall and F1. Weighting by class support
// keeps the metrics honest when the test split is imbalanced.
func Evaluate(model *ml.Forest, xTest [][]float64, yTest []int) (Metrics, error) {
	if model == nil {
		return Metrics{}, errors.New("no model to evaluate")
	}
	if len(xTest) == 0 || len(xTest) != len(yTest) {
		return Metrics{}, fmt.Errorf("bad test set: %d rows, %d labels", len(xTest), len(yTest))
	}

	predicted := make([]int, len(xTest))
	for i, row := range xTest {
		p, err := model.Predict(row)
		if err != nil {
			return Metrics{}, fmt.Errorf("predict test row %d: %w", i, err)
		}
		predicted[i] = p
	}

	correct := 0
	for i := range yTest {
		if predicted[i] == yTest[i] {
			correct++
		}
	}

	precision, recall, f1 := weightedScores(yTest, predicted)

	return Metrics{
		Accuracy:  float64(correct) / float64(len(yTest)),
		Precision: precision,
		Recall:    recall,
		F1Score:   f1,
		Timestamp: time.Now().Format(time.RFC3339),
	}, nil
}

// weightedScores computes per-class precision, recall and F1 and averages
// them weighted by class support in the true labels.
func weightedScores(actual, predicted []int) (precision, recall, f1 float64) {
	support := map[int]int{}
	truePos := map[int]int{}
	predPos := map[int]int{}

	for i := range actual {
		support[actual[i]]++
		predPos[predicted[i]]++
		if actual[i] == predicted[i] {
			truePos[actual[i]]++
		}
	}

	total := float64(len(actual))
	for class, count := range support {
		weight := float64(count) / total

		var p, r float64
		if predPos[class] > 0 {
			p = float64(truePos[class]) / float64(predPos[class])
		}
		if count > 0 {
			r = float64(truePos[class]) / float64(count)
		}
		var classF1 float64
		if p+r > 0 {
			classF1 = 2 * p * r / (p + r)
		}

		precision += weight * p
		recall += weight * r
		f1 += weight * classF1
	}
	return precision, recall, f1
}
