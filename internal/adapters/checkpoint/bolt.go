// Package checkpoint persists ingestion progress so an interrupted run can resume.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

var bucketRuns = []byte("ingest_runs")

type runState struct {
	Processed int       `json:"processed"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BoltStore implements ports.CheckpointStore on a bbolt file.
type BoltStore struct {
	db *bbolt.DB
}

func NewBoltStore(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating checkpoint directory: %w", err)
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening checkpoint store: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketRuns)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Load returns the processed count saved for runKey, or 0.
func (s *BoltStore) Load(runKey string) (int, error) {
	var state runState
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketRuns).Get([]byte(runKey))
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &state)
	})
	if err != nil {
		return 0, err
	}
	return state.Processed, nil
}

func (s *BoltStore) Save(runKey string, processed int) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(runState{Processed: processed, UpdatedAt: time.Now().UTC()})
		if err != nil {
			return err
		}
		return tx.Bucket(bucketRuns).Put([]byte(runKey), data)
	})
}

func (s *BoltStore) Clear(runKey string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketRuns).Delete([]byte(runKey))
	})
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
