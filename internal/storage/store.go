// Package storage persists vendor datasets.
package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/soc-analytics/backend/internal/models"
)

// ErrNotFound is returned when a dataset id is unknown.
var ErrNotFound = errors.New("dataset not found")

// Store defines the interface for dataset persistence.
type Store interface {
	SaveDataset(ctx context.Context, ds *models.Dataset) error
	LoadDataset(ctx context.Context, id string) (*models.Dataset, error)
	ListDatasets(ctx context.Context, limit int) ([]*models.DatasetInfo, error)
	DeleteDataset(ctx context.Context, id string) error
	Close() error
}

// MemoryStore implements Store with a map. Nothing survives a restart.
type MemoryStore struct {
	mu       sync.RWMutex
	datasets map[string]*models.Dataset
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{datasets: make(map[string]*models.Dataset)}
}

// SaveDataset stores ds, replacing any dataset with the same id.
func (s *MemoryStore) SaveDataset(ctx context.Context, ds *models.Dataset) error {
	if ds == nil || ds.ID == "" {
		return errors.New("dataset id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.datasets[ds.ID] = cloneDataset(ds)
	return nil
}

// LoadDataset retrieves a dataset by id.
func (s *MemoryStore) LoadDataset(ctx context.Context, id string) (*models.Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ds, ok := s.datasets[id]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "load %s", id)
	}
	return cloneDataset(ds), nil
}

// ListDatasets returns the most recent datasets first.
func (s *MemoryStore) ListDatasets(ctx context.Context, limit int) ([]*models.DatasetInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]*models.DatasetInfo, 0, len(s.datasets))
	for _, ds := range s.datasets {
		list = append(list, ds.Info())
	}

	sortInfos(list)
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

// DeleteDataset removes a dataset.
func (s *MemoryStore) DeleteDataset(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.datasets[id]; !ok {
		return errors.Wrapf(ErrNotFound, "delete %s", id)
	}
	delete(s.datasets, id)
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}

// cloneDataset copies the dataset header and sheet map. Rows are shared;
// nothing in the backend mutates a stored row.
func cloneDataset(ds *models.Dataset) *models.Dataset {
	out := *ds
	out.Sheets = make(map[string][]models.Record, len(ds.Sheets))
	for name, rows := range ds.Sheets {
		out.Sheets[name] = rows
	}
	return &out
}

// sortInfos orders by CreatedAt desc, then id for a stable listing.
func sortInfos(list []*models.DatasetInfo) {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return list[i].ID < list[j].ID
	})
}
