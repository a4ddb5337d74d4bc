package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dmondal123/excel-chat/internal/domain/ingest"
)

// Dataset lookups fail with one of these; both mean the caller has to
// re-upload.
var (
	ErrDatasetNotFound = errors.New("dataset not found")
	ErrDatasetExpired  = errors.New("dataset expired")
)

// StoredDataset is a parsed upload held for follow-up optimization runs.
type StoredDataset struct {
	ID          string       `json:"id"`
	FileName    string       `json:"file_name"`
	Headers     []string     `json:"headers"`
	Rows        []ingest.Row `json:"rows"`
	RowsSkipped int          `json:"rows_skipped"`
	Fingerprint string       `json:"fingerprint"`
	CreatedAt   time.Time    `json:"created_at"`
	ExpiresAt   time.Time    `json:"expires_at"`
}

// Expired reports whether the dataset is past its TTL at the given instant.
func (d *StoredDataset) Expired(now time.Time) bool {
	return now.After(d.ExpiresAt)
}

// DatasetStore holds uploaded datasets between requests. Implementations must
// be safe for concurrent use.
type DatasetStore interface {
	Put(ctx context.Context, ds *StoredDataset) error
	Get(ctx context.Context, id string) (*StoredDataset, error)
	Delete(ctx context.Context, id string) error
	SweepExpired(ctx context.Context, now time.Time) (int, error)
	Count(ctx context.Context) (int, error)
}

// MemoryStore is the default in-process DatasetStore.
type MemoryStore struct {
	mu       sync.RWMutex
	datasets map[string]*StoredDataset
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{datasets: make(map[string]*StoredDataset)}
}

func (s *MemoryStore) Put(_ context.Context, ds *StoredDataset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.datasets[ds.ID] = ds
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*StoredDataset, error) {
	s.mu.RLock()
	ds, ok := s.datasets[id]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrDatasetNotFound
	}
	if ds.Expired(time.Now()) {
		return nil, ErrDatasetExpired
	}
	return ds, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.datasets, id)
	return nil
}

func (s *MemoryStore) SweepExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, ds := range s.datasets {
		if ds.Expired(now) {
			delete(s.datasets, id)
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.datasets), nil
}
