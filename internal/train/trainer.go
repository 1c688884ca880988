// Package train implements the training pipeline: load data, fit the
// classifier, evaluate it on the held-out split, enforce the configured
// quality gates and persist the model plus metrics artifacts. Stages run
// sequentially and the pipeline aborts at the first failure; a model that
// trains without error but misses a gate is not promoted.
package train

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"modelgate/internal/cfg"
	"modelgate/internal/dataset"
	"modelgate/internal/ml"
)

type Trainer struct {
	cfg       cfg.Config
	model     *ml.Forest
	metrics   Metrics
	evaluated bool
}

func New(c cfg.Config) *Trainer {
	return &Trainer{cfg: c}
}

// LoadData loads the built-in dataset, restricts it to the canonical
// feature columns and performs the stratified train/test split.
func (t *Trainer) LoadData() (xTrain, xTest [][]float64, yTrain, yTest []int, err error) {
	log.Info().Msg("loading training data")

	table, err := dataset.Load().SelectFeatures(cfg.FeatureCount)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("select features: %w", err)
	}

	xTrain, xTest, yTrain, yTest, err = dataset.StratifiedSplit(table, t.cfg.Training.TestSize, t.cfg.Training.RandomState)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("split dataset: %w", err)
	}

	log.Info().Int("train_samples", len(yTrain)).Int("test_samples", len(yTest)).Msg("data loaded")
	return xTrain, xTest, yTrain, yTest, nil
}

// TrainModel fits the forest with the configured hyperparameters and
// keeps it as trainer state for the later stages.
func (t *Trainer) TrainModel(xTrain [][]float64, yTrain []int) (*ml.Forest, error) {
	log.Info().
		Int("n_estimators", t.cfg.Model.NEstimators).
		Int("max_depth", t.cfg.Model.MaxDepth).
		Int64("random_state", t.cfg.Model.RandomState).
		Msg("training model")

	model := ml.New(ml.Config{
		NumTrees: t.cfg.Model.NEstimators,
		MaxDepth: t.cfg.Model.MaxDepth,
		Seed:     t.cfg.Model.RandomState,
	})
	if err := model.Fit(xTrain, yTrain); err != nil {
		return nil, fmt.Errorf("fit model: %w", err)
	}

	t.model = model
	log.Info().Msg("model training completed")
	return model, nil
}

// EvaluateModel computes the metrics record on the held-out split. It
// fails if called before a model exists.
func (t *Trainer) EvaluateModel(xTest [][]float64, yTest []int) (Metrics, error) {
	if t.model == nil {
		return Metrics{}, errors.New("no model trained yet")
	}

	log.Info().Msg("evaluating model")
	m, err := Evaluate(t.model, xTest, yTest)
	if err != nil {
		return Metrics{}, err
	}

	t.metrics = m
	t.evaluated = true
	log.Info().
		Float64("accuracy", m.Accuracy).
		Float64("precision", m.Precision).
		Float64("recall", m.Recall).
		Float64("f1_score", m.F1Score).
		Msg("model performance")
	return m, nil
}

// CheckQualityGates compares the evaluated metrics against the configured
// thresholds. It fails if called before evaluation.
func (t *Trainer) CheckQualityGates() (GateResult, error) {
	if !t.evaluated {
		return GateResult{}, errors.New("no metrics to gate, evaluate first")
	}

	log.Info().Msg("checking quality gates")
	return CheckGates(t.metrics, t.cfg.QualityGates), nil
}

// SaveModel persists the trained model and metrics record.
func (t *Trainer) SaveModel(path string) (string, error) {
	if t.model == nil {
		return "", errors.New("no model to save")
	}

	log.Info().Str("model_path", path).Msg("saving model")
	return SaveArtifacts(t.model, t.metrics, path)
}

// Metrics returns the metrics record of the last evaluation.
func (t *Trainer) Metrics() Metrics {
	return t.metrics
}

// Run executes the full pipeline. It returns the saved model path and
// metrics on success; any stage failure, including a gate violation,
// aborts the remaining stages.
func (t *Trainer) Run() (string, Metrics, error) {
	log.Info().Msg("starting training pipeline")

	xTrain, xTest, yTrain, yTest, err := t.LoadData()
	if err != nil {
		return "", Metrics{}, err
	}

	if _, err := t.TrainModel(xTrain, yTrain); err != nil {
		return "", Metrics{}, err
	}

	if _, err := t.EvaluateModel(xTest, yTest); err != nil {
		return "", Metrics{}, err
	}

	gates, err := t.CheckQualityGates()
	if err != nil {
		return "", Metrics{}, err
	}
	if err := gates.Err(); err != nil {
		return "", t.metrics, err
	}

	path, err := t.SaveModel(t.cfg.System.ModelPath)
	if err != nil {
		return "", t.metrics, err
	}

	log.Info().Str("model_path", path).Msg("training pipeline completed")
	return path, t.metrics, nil
}
