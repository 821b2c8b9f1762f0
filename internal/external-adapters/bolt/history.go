// Package bolt persists scan results in a local bbolt database.
package bolt

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/ochairo/pkgguard/internal/domain/entities"
)

var (
	scansBucket = []byte("scans")
	// timeline keys are <unix nanos, big endian><id> so a reverse cursor walk is newest first
	timelineBucket = []byte("timeline")
)

// HistoryStore implements repositories.HistoryRepository and doubles as a result sink
type HistoryStore struct {
	db *bbolt.DB
}

// Open opens (or creates) the history database at path
func Open(path string) (*HistoryStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(scansBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(timelineBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize history buckets: %w", err)
	}
	return &HistoryStore{db: db}, nil
}

// Close releases the database file lock
func (s *HistoryStore) Close() error {
	return s.db.Close()
}

// Name identifies the store when used as a result sink
func (s *HistoryStore) Name() string { return "history" }

// Publish saves the result
func (s *HistoryStore) Publish(ctx context.Context, result *entities.ScanResult) error {
	return s.Save(ctx, result)
}

// Save stores result under its id
func (s *HistoryStore) Save(_ context.Context, result *entities.ScanResult) error {
	if result.ID == "" {
		return fmt.Errorf("scan result has no id")
	}
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode scan result: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(scansBucket).Put([]byte(result.ID), data); err != nil {
			return err
		}
		return tx.Bucket(timelineBucket).Put(timelineKey(result), []byte(result.ID))
	})
}

// Get loads one result by id
func (s *HistoryStore) Get(_ context.Context, id string) (*entities.ScanResult, error) {
	var result *entities.ScanResult
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(scansBucket).Get([]byte(id))
		if v == nil {
			return fmt.Errorf("scan %s: %w", id, entities.ErrNotFound)
		}
		result = &entities.ScanResult{}
		return json.Unmarshal(v, result)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// List returns up to limit results, newest first; name filters by subject
// name when non-empty and limit <= 0 means no limit
func (s *HistoryStore) List(_ context.Context, name string, limit int) ([]*entities.ScanResult, error) {
	var results []*entities.ScanResult
	err := s.db.View(func(tx *bbolt.Tx) error {
		scans := tx.Bucket(scansBucket)
		c := tx.Bucket(timelineBucket).Cursor()
		for k, id := c.Last(); k != nil; k, id = c.Prev() {
			v := scans.Get(id)
			if v == nil {
				continue
			}
			var r entities.ScanResult
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("failed to decode scan %s: %w", id, err)
			}
			if name != "" && r.Subject.Name != name {
				continue
			}
			results = append(results, &r)
			if limit > 0 && len(results) >= limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

func timelineKey(result *entities.ScanResult) []byte {
	var buf bytes.Buffer
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(result.Timestamp.UnixNano()))
	buf.Write(ts[:])
	buf.WriteString(result.ID)
	return buf.Bytes()
}
