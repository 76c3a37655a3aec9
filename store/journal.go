// Package store persists a journal of download attempts in a bbolt database:
// which access point was used, where the bytes landed, and how the transfer
// ended.
package store

import (
	"encoding/json"
	"errors"
	"fmt"

	"go.etcd.io/bbolt"
)

var (
	// ErrNotFound is returned when a download record is not in the journal.
	ErrNotFound = errors.New("download record not found")
)

var downloadsBucket = []byte("downloads")

// DownloadState represents the current state of a download attempt.
type DownloadState string

const (
	StatePending    DownloadState = "Pending"
	StateInProgress DownloadState = "InProgress"
	StateCompleted  DownloadState = "Completed"
	StateFailed     DownloadState = "Failed"
)

// DownloadRecord is the journal entry for one download attempt.
type DownloadRecord struct {
	Key       string        `json:"key"`
	Provider  string        `json:"provider"`
	UID       string        `json:"uid"`
	LocalPath string        `json:"local_path,omitempty"`
	Bytes     int64         `json:"bytes,omitempty"`
	Checksum  uint64        `json:"checksum,omitempty"`
	State     DownloadState `json:"state"`
	Error     string        `json:"error,omitempty"`
}

// RecordKey builds the journal key for a (provider, uid) pair.
func RecordKey(provider, uid string) string {
	return provider + "|" + uid
}

// Journal is a bbolt-backed download journal.
type Journal struct {
	db *bbolt.DB
}

// Open creates or opens a journal at the given path.
func Open(path string) (*Journal, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open bbolt database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(downloadsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create downloads bucket: %w", err)
	}

	return &Journal{db: db}, nil
}

// Begin records a new in-progress download attempt and returns its key.
func (j *Journal) Begin(provider, uid string) (string, error) {
	rec := &DownloadRecord{
		Key:      RecordKey(provider, uid),
		Provider: provider,
		UID:      uid,
		State:    StateInProgress,
	}
	return rec.Key, j.save(rec)
}

// Complete marks a download attempt as finished.
func (j *Journal) Complete(key, localPath string, bytes int64, checksum uint64) error {
	rec, err := j.Get(key)
	if err != nil {
		return err
	}
	rec.State = StateCompleted
	rec.LocalPath = localPath
	rec.Bytes = bytes
	rec.Checksum = checksum
	rec.Error = ""
	return j.save(rec)
}

// Fail marks a download attempt as failed with the given message.
func (j *Journal) Fail(key, message string) error {
	rec, err := j.Get(key)
	if err != nil {
		return err
	}
	rec.State = StateFailed
	rec.Error = message
	return j.save(rec)
}

func (j *Journal) save(rec *DownloadRecord) error {
	return j.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(downloadsBucket)

		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal download record: %w", err)
		}

		if err := b.Put([]byte(rec.Key), data); err != nil {
			return fmt.Errorf("failed to put download record: %w", err)
		}
		return nil
	})
}

// Get retrieves a download record by key.
func (j *Journal) Get(key string) (*DownloadRecord, error) {
	var rec DownloadRecord
	err := j.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(downloadsBucket)
		data := b.Get([]byte(key))
		if data == nil {
			return ErrNotFound
		}
		if err := json.Unmarshal(data, &rec); err != nil {
			return fmt.Errorf("failed to unmarshal download record: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// List returns every record in the journal.
func (j *Journal) List() ([]*DownloadRecord, error) {
	var recs []*DownloadRecord
	err := j.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(downloadsBucket)
		return b.ForEach(func(_, data []byte) error {
			var rec DownloadRecord
			if err := json.Unmarshal(data, &rec); err != nil {
				return fmt.Errorf("failed to unmarshal download record: %w", err)
			}
			recs = append(recs, &rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return recs, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}
