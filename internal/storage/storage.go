// Package storage provides optional persistent history for the model
// service using BoltDB: an audit log of served predictions and a record
// of training pipeline runs. The service works without it; a store is
// only opened when a data path is configured.
package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

const (
	predictionsBucket  = "predictions"
	trainingRunsBucket = "training_runs"
)

// PredictionRecord is one served prediction, kept for offline analysis
// of input and confidence drift.
type PredictionRecord struct {
	Timestamp     time.Time `json:"timestamp"`
	Features      []float64 `json:"features"`
	Prediction    int       `json:"prediction"`
	Probabilities []float64 `json:"probabilities"`
	Confidence    float64   `json:"confidence"`
	ModelVersion  string    `json:"model_version"`
}

// TrainingRunRecord is the outcome of one training pipeline run,
// including runs that failed their quality gates.
type TrainingRunRecord struct {
	Timestamp   time.Time          `json:"timestamp"`
	ModelPath   string             `json:"model_path"`
	Metrics     map[string]float64 `json:"metrics"`
	GatesPassed bool               `json:"gates_passed"`
	Error       string             `json:"error,omitempty"`
}

// Store wraps a BoltDB database holding the service history buckets.
type Store struct {
	db *bbolt.DB
}

// New opens (or creates) the database under dataPath and ensures the
// buckets exist.
func New(dataPath string) (*Store, error) {
	dbPath := filepath.Join(dataPath, "modelgate.db")

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(predictionsBucket)); err != nil {
			return fmt.Errorf("create predictions bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(trainingRunsBucket)); err != nil {
			return fmt.Errorf("create training runs bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// StorePrediction appends one prediction record, keyed by its timestamp
// so range queries stay cheap.
func (s *Store) StorePrediction(record PredictionRecord) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(predictionsBucket))

		data, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal prediction record: %w", err)
		}
		return b.Put(timeKey(record.Timestamp), data)
	})
}

// PredictionsInRange returns prediction records with timestamps in
// [start, end], oldest first.
func (s *Store) PredictionsInRange(start, end time.Time) ([]PredictionRecord, error) {
	var records []PredictionRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(predictionsBucket)).Cursor()
		endKey := timeKey(end)

		for k, v := c.Seek(timeKey(start)); k != nil && bytes.Compare(k, endKey) <= 0; k, v = c.Next() {
			var record PredictionRecord
			if err := json.Unmarshal(v, &record); err != nil {
				continue // skip malformed records
			}
			records = append(records, record)
		}
		return nil
	})

	return records, err
}

// StoreTrainingRun appends one training run record.
func (s *Store) StoreTrainingRun(record TrainingRunRecord) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(trainingRunsBucket))

		data, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal training run record: %w", err)
		}
		return b.Put(timeKey(record.Timestamp), data)
	})
}

// TrainingRuns returns all recorded training runs, oldest first.
func (s *Store) TrainingRuns() ([]TrainingRunRecord, error) {
	var records []TrainingRunRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(trainingRunsBucket)).ForEach(func(_, v []byte) error {
			var record TrainingRunRecord
			if err := json.Unmarshal(v, &record); err != nil {
				return nil // skip malformed records
			}
			records = append(records, record)
			return nil
		})
	})

	return records, err
}

// timeKey encodes a timestamp as a fixed-width sortable key.
func timeKey(t time.Time) []byte {
	return []byte(fmt.Sprintf("%020d", t.UnixNano()))
}
