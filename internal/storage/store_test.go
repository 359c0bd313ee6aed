package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soc-analytics/backend/internal/models"
)

// createTestDataset builds a small EDR dataset with an empty sheet.
func createTestDataset(id string, created time.Time) *models.Dataset {
	return &models.Dataset{
		ID:        id,
		Vendor:    models.VendorEDR,
		Name:      "edr-" + id,
		CreatedAt: created,
		Sheets: map[string][]models.Record{
			models.SheetEndpoints: {
				{"hostname": "web-01", "Date": "Completed(Apr 03, 2025 04:19:06 PM)", "risk": 2.5},
				{"hostname": "db-01", "Date": "03-04-2025", "agents": int64(3), "tags": map[string]any{"os": "linux"}},
			},
			models.SheetThreats: {
				{"name": "Trojan.Generic", "reported_time": "2025-04-02T10:00:00Z"},
			},
			"notes": {},
		},
	}
}

func storeContract(t *testing.T, store Store) {
	ctx := context.Background()
	base := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)

	t.Run("save and load", func(t *testing.T) {
		ds := createTestDataset("d1", base)
		require.NoError(t, store.SaveDataset(ctx, ds))

		got, err := store.LoadDataset(ctx, "d1")
		require.NoError(t, err)
		assert.Equal(t, ds.ID, got.ID)
		assert.Equal(t, ds.Vendor, got.Vendor)
		assert.Equal(t, ds.Name, got.Name)
		assert.True(t, ds.CreatedAt.Equal(got.CreatedAt))
		assert.Equal(t, ds.Sheets, got.Sheets)
	})

	t.Run("save replaces", func(t *testing.T) {
		ds := createTestDataset("d1", base)
		ds.Name = "renamed"
		ds.Sheets[models.SheetThreats] = nil
		require.NoError(t, store.SaveDataset(ctx, ds))

		got, err := store.LoadDataset(ctx, "d1")
		require.NoError(t, err)
		assert.Equal(t, "renamed", got.Name)
		assert.Empty(t, got.Sheets[models.SheetThreats])
		assert.Len(t, got.Sheets[models.SheetEndpoints], 2)
	})

	t.Run("list newest first", func(t *testing.T) {
		require.NoError(t, store.SaveDataset(ctx, createTestDataset("d2", base.Add(time.Hour))))
		require.NoError(t, store.SaveDataset(ctx, createTestDataset("d3", base.Add(2*time.Hour))))

		list, err := store.ListDatasets(ctx, 0)
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, "d3", list[0].ID)
		assert.Equal(t, "d2", list[1].ID)
		assert.Equal(t, "d1", list[2].ID)
		assert.Equal(t, []string{models.SheetEndpoints, "notes", models.SheetThreats}, list[1].Sheets)
		assert.Equal(t, 3, list[1].RecordCount)

		limited, err := store.ListDatasets(ctx, 2)
		require.NoError(t, err)
		assert.Len(t, limited, 2)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, store.DeleteDataset(ctx, "d2"))

		_, err := store.LoadDataset(ctx, "d2")
		assert.True(t, errors.Is(err, ErrNotFound))

		err = store.DeleteDataset(ctx, "d2")
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := store.LoadDataset(ctx, "missing")
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("id required", func(t *testing.T) {
		assert.Error(t, store.SaveDataset(ctx, &models.Dataset{}))
	})
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	storeContract(t, store)
}

func TestMemoryStore_Isolation(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	ds := createTestDataset("d1", time.Now())
	require.NoError(t, store.SaveDataset(ctx, ds))
	delete(ds.Sheets, models.SheetThreats)

	got, err := store.LoadDataset(ctx, "d1")
	require.NoError(t, err)
	assert.Contains(t, got.Sheets, models.SheetThreats)
}

func TestDuckStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "data", "datasets.duckdb")
	store, err := NewDuckStore(dbPath, nil)
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, dbPath, store.Path())
	storeContract(t, store)
}

func TestDuckStore_Reopen(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "datasets.duckdb")

	store, err := NewDuckStore(dbPath, nil)
	require.NoError(t, err)
	require.NoError(t, store.SaveDataset(ctx, createTestDataset("persisted", time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC))))
	require.NoError(t, store.Close())

	store, err = NewDuckStore(dbPath, nil)
	require.NoError(t, err)
	defer store.Close()

	got, err := store.LoadDataset(ctx, "persisted")
	require.NoError(t, err)
	assert.Len(t, got.Sheets[models.SheetEndpoints], 2)
	assert.Equal(t, "linux", got.Sheets[models.SheetEndpoints][1]["tags"].(map[string]any)["os"])
}
