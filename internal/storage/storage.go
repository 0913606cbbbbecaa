// Package storage provides persistent bookkeeping for the classifier. It uses
// BoltDB to keep a registry of training runs and an optional log of served
// predictions.
//
// Records are stored as JSON under time-ordered keys so that cursor scans
// return them chronologically.
package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

const (
	dbFileName = "classifier.db"

	runsBucket        = "training_runs" // Bucket name for training run records
	predictionsBucket = "predictions"   // Bucket name for served predictions
)

// Store provides persistent storage using BoltDB.
type Store struct {
	db   *bbolt.DB
	path string
}

// New opens (or creates) the database under dataPath. The directory is
// created when missing.
func New(dataPath string) (*Store, error) {
	if err := os.MkdirAll(dataPath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	dbPath := filepath.Join(dataPath, dbFileName)

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(runsBucket)); err != nil {
			return fmt.Errorf("create runs bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(predictionsBucket)); err != nil {
			return fmt.Errorf("create predictions bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, path: dbPath}, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database. Closing twice is not an error.
func (s *Store) Close() error {
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}

// RunRecord describes one completed training run.
type RunRecord struct {
	RunID        string         `json:"run_id"`
	DatasetPath  string         `json:"dataset_path"`
	ArtifactPath string         `json:"artifact_path"`
	StartedAt    time.Time      `json:"started_at"`
	FinishedAt   time.Time      `json:"finished_at"`
	Rows         int            `json:"rows"`
	TrainRows    int            `json:"train_rows"`
	TestRows     int            `json:"test_rows"`
	ClassCounts  map[string]int `json:"class_counts"`
	Accuracy     float64        `json:"accuracy"`
	MacroF1      float64        `json:"macro_f1"`
	NumTrees     int            `json:"num_trees"`
}

// Duration returns the wall-clock time of the run.
func (r RunRecord) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

func timeKey(ts time.Time, id string) []byte {
	return []byte(fmt.Sprintf("%020d_%s", ts.UnixNano(), id))
}

// RecordRun stores a training run keyed by its finish time.
func (s *Store) RecordRun(run RunRecord) error {
	if run.RunID == "" {
		return fmt.Errorf("run record has no run ID")
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(runsBucket))

		data, err := json.Marshal(run)
		if err != nil {
			return fmt.Errorf("marshal run record: %w", err)
		}

		return b.Put(timeKey(run.FinishedAt, run.RunID), data)
	})
}

// ListRuns returns up to limit runs, newest first. limit <= 0 returns all.
func (s *Store) ListRuns(limit int) ([]RunRecord, error) {
	var runs []RunRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(runsBucket)).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var run RunRecord
			if err := json.Unmarshal(v, &run); err != nil {
				continue // Skip malformed records
			}
			runs = append(runs, run)
			if limit > 0 && len(runs) >= limit {
				break
			}
		}
		return nil
	})
	return runs, err
}

// LatestRun returns the most recent run, or nil when none is recorded.
func (s *Store) LatestRun() (*RunRecord, error) {
	runs, err := s.ListRuns(1)
	if err != nil || len(runs) == 0 {
		return nil, err
	}
	return &runs[0], nil
}

// GetRun looks a run up by ID.
func (s *Store) GetRun(runID string) (*RunRecord, error) {
	var found *RunRecord
	suffix := []byte("_" + runID)
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(runsBucket)).ForEach(func(k, v []byte) error {
			if !bytes.HasSuffix(k, suffix) {
				return nil
			}
			var run RunRecord
			if err := json.Unmarshal(v, &run); err != nil {
				return fmt.Errorf("unmarshal run %s: %w", runID, err)
			}
			found = &run
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, fmt.Errorf("run %s not found", runID)
	}
	return found, nil
}
