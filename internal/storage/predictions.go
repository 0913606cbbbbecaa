package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

// PredictionRecord is one served prediction.
type PredictionRecord struct {
	RequestID     string             `json:"request_id"`
	RunID         string             `json:"run_id"`
	Timestamp     time.Time          `json:"timestamp"`
	Features      map[string]float64 `json:"features"`
	Label         string             `json:"label"`
	Probabilities map[string]float64 `json:"probabilities"`
	LatencyMs     float64            `json:"latency_ms"`
}

// RecordPrediction appends a prediction to the log.
func (s *Store) RecordPrediction(record PredictionRecord) error {
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(predictionsBucket))

		data, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal prediction record: %w", err)
		}

		return b.Put(timeKey(record.Timestamp, record.RequestID), data)
	})
}

// RecentPredictions returns up to limit predictions, newest first.
func (s *Store) RecentPredictions(limit int) ([]PredictionRecord, error) {
	var records []PredictionRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(predictionsBucket)).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var record PredictionRecord
			if err := json.Unmarshal(v, &record); err != nil {
				continue
			}
			records = append(records, record)
			if limit > 0 && len(records) >= limit {
				break
			}
		}
		return nil
	})
	return records, err
}

// PredictionsInRange returns predictions with start <= timestamp <= end in
// chronological order.
func (s *Store) PredictionsInRange(start, end time.Time) ([]PredictionRecord, error) {
	var records []PredictionRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(predictionsBucket)).Cursor()

		startKey := []byte(fmt.Sprintf("%020d", start.UnixNano()))
		endKey := []byte(fmt.Sprintf("%020d`", end.UnixNano())) // '`' sorts after '_'

		for k, v := c.Seek(startKey); k != nil && bytes.Compare(k, endKey) <= 0; k, v = c.Next() {
			var record PredictionRecord
			if err := json.Unmarshal(v, &record); err != nil {
				continue
			}
			records = append(records, record)
		}
		return nil
	})

	return records, err
}

// LabelCounts tallies logged predictions by label.
func (s *Store) LabelCounts() (map[string]int, error) {
	counts := make(map[string]int)
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(predictionsBucket)).ForEach(func(_, v []byte) error {
			var record PredictionRecord
			if err := json.Unmarshal(v, &record); err != nil {
				return nil
			}
			counts[record.Label]++
			return nil
		})
	})
	return counts, err
}

// PrunePredictions deletes predictions older than cutoff and returns how
// many were removed.
func (s *Store) PrunePredictions(cutoff time.Time) (int, error) {
	removed := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(predictionsBucket)).Cursor()
		limit := []byte(fmt.Sprintf("%020d", cutoff.UnixNano()))
		for k, _ := c.First(); k != nil && bytes.Compare(k, limit) < 0; k, _ = c.First() {
			if err := c.Delete(); err != nil {
				return fmt.Errorf("delete prediction: %w", err)
			}
			removed++
		}
		return nil
	})
	return removed, err
}
