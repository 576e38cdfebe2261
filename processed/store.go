package processed

import (
	"encoding/json"
	"fmt"
	"time"

	pebble "github.com/cockroachdb/pebble"
)

// Record marks one VOD as fully pipelined. The canonical path is the key;
// job and video ids are kept alongside so a completed run can be audited
// without replaying it.
type Record struct {
	Path        string    `json:"path"`
	CompletedAt time.Time `json:"completed_at"`
	ClipJobID   string    `json:"clip_job_id,omitempty"`
	VideoIDs    []string  `json:"video_ids,omitempty"`
}

// Store is the durable dedup ledger of fully completed VODs. Entries are
// only ever added; every write is synced before the caller proceeds.
type Store struct {
	db *pebble.DB
}

// Open opens (or creates) the ledger at dbPath.
func Open(dbPath string) (*Store, error) {
	db, err := pebble.Open(dbPath, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open processed store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Contains reports whether the canonical path has already been pipelined.
func (s *Store) Contains(path string) (bool, error) {
	_, closer, err := s.db.Get([]byte(path))
	if err == pebble.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	closer.Close()
	return true, nil
}

// Add records a completed VOD. The write is synced to durable storage
// before Add returns.
func (s *Store) Add(rec Record) error {
	if rec.Path == "" {
		return fmt.Errorf("record path must not be empty")
	}
	if rec.CompletedAt.IsZero() {
		rec.CompletedAt = time.Now()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal processed record: %w", err)
	}
	return s.db.Set([]byte(rec.Path), data, pebble.Sync)
}

// Get returns the record for a canonical path, or nil if absent.
func (s *Store) Get(path string) (*Record, error) {
	data, closer, err := s.db.Get([]byte(path))
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal processed record: %w", err)
	}
	return &rec, nil
}

// List returns all records, for startup logging and diagnostics.
func (s *Store) List() ([]Record, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var records []Record
	for iter.First(); iter.Valid(); iter.Next() {
		var rec Record
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			// Corrupt entries are skipped rather than failing startup.
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// Count returns the number of completed VODs in the ledger.
func (s *Store) Count() (int, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	n := 0
	for iter.First(); iter.Valid(); iter.Next() {
		n++
	}
	return n, nil
}
