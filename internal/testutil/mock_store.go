// Package testutil provides fixtures and store doubles shared by tests.
package testutil

import (
	"context"
	"sync"

	"github.com/soc-analytics/backend/internal/models"
	"github.com/soc-analytics/backend/internal/storage"
)

// MockStore wraps a MemoryStore with error injection and call counters.
type MockStore struct {
	*storage.MemoryStore

	mu      sync.Mutex
	SaveErr error
	LoadErr error
	saves   int
	loads   int
}

// NewMockStore creates an empty MockStore.
func NewMockStore() *MockStore {
	return &MockStore{MemoryStore: storage.NewMemoryStore()}
}

func (m *MockStore) SaveDataset(ctx context.Context, ds *models.Dataset) error {
	m.mu.Lock()
	m.saves++
	err := m.SaveErr
	m.mu.Unlock()
	if err != nil {
		return err
	}
	return m.MemoryStore.SaveDataset(ctx, ds)
}

func (m *MockStore) LoadDataset(ctx context.Context, id string) (*models.Dataset, error) {
	m.mu.Lock()
	m.loads++
	err := m.LoadErr
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return m.MemoryStore.LoadDataset(ctx, id)
}

// Saves returns how many times SaveDataset was called.
func (m *MockStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// Loads returns how many times LoadDataset was called.
func (m *MockStore) Loads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loads
}

var _ storage.Store = (*MockStore)(nil)
