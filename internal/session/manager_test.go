package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soc-analytics/backend/internal/cache"
	"github.com/soc-analytics/backend/internal/filter"
	"github.com/soc-analytics/backend/internal/models"
	"github.com/soc-analytics/backend/internal/storage"
	"github.com/soc-analytics/backend/internal/testutil"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestManager(t *testing.T, opts ...Option) (*Manager, *testutil.MockStore, *clock) {
	t.Helper()
	store := testutil.NewMockStore()
	m := NewManager(store, filter.New(), opts...)
	c := &clock{t: time.Date(2025, 4, 6, 12, 0, 0, 0, time.UTC)}
	m.now = c.now
	return m, store, c
}

type fakeFetcher struct {
	sheets map[string][]models.Record
	err    error
	calls  []models.Vendor
}

func (f *fakeFetcher) Fetch(ctx context.Context, vendor models.Vendor) (map[string][]models.Record, error) {
	f.calls = append(f.calls, vendor)
	return f.sheets, f.err
}

func TestManager_ImportGetList(t *testing.T) {
	ctx := context.Background()
	m, store, _ := newTestManager(t)

	info, err := m.Import(ctx, models.VendorEDR, "  april edr  ", testutil.EDRSheets())
	require.NoError(t, err)
	assert.NotEmpty(t, info.ID)
	assert.Equal(t, "april edr", info.Name)
	assert.Equal(t, 6, info.RecordCount)
	assert.Equal(t, []string{models.SheetEndpoints, models.SheetThreats}, info.Sheets)
	assert.Equal(t, 1, m.Loaded())

	ds, err := m.Get(ctx, info.ID)
	require.NoError(t, err)
	assert.Equal(t, models.VendorEDR, ds.Vendor)
	assert.Equal(t, 0, store.Loads(), "imported dataset should be served from memory")

	list, err := m.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, info.ID, list[0].ID)

	unnamed, err := m.Import(ctx, models.VendorSIEM, "", nil)
	require.NoError(t, err)
	assert.Equal(t, "siem-20250406-120000", unnamed.Name)
}

func TestManager_ImportErrors(t *testing.T) {
	ctx := context.Background()
	m, store, _ := newTestManager(t)

	_, err := m.Import(ctx, models.Vendor("splunk"), "x", nil)
	assert.ErrorContains(t, err, "unknown vendor")

	store.SaveErr = errors.New("disk full")
	_, err = m.Import(ctx, models.VendorEDR, "x", testutil.EDRSheets())
	assert.ErrorContains(t, err, "disk full")
	assert.Equal(t, 0, m.Loaded())
}

func TestManager_GetMissing(t *testing.T) {
	m, _, _ := newTestManager(t)

	_, err := m.Get(context.Background(), "nope")
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestManager_LoadThrough(t *testing.T) {
	ctx := context.Background()
	m, store, _ := newTestManager(t)

	require.NoError(t, store.MemoryStore.SaveDataset(ctx, testutil.Dataset("stored", models.VendorSIEM, testutil.SIEMSheets())))

	ds, err := m.Get(ctx, "stored")
	require.NoError(t, err)
	assert.Equal(t, "stored", ds.ID)
	assert.Equal(t, 1, store.Loads())

	_, err = m.Get(ctx, "stored")
	require.NoError(t, err)
	assert.Equal(t, 1, store.Loads(), "second Get should hit memory")
}

func TestManager_FilteredInactive(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t)

	info, err := m.Import(ctx, models.VendorSIEM, "siem", testutil.SIEMSheets())
	require.NoError(t, err)
	ds, err := m.Get(ctx, info.ID)
	require.NoError(t, err)

	res, err := m.Filtered(ctx, info.ID, models.DateRange{})
	require.NoError(t, err)
	assert.Same(t, ds, res.Dataset)
	assert.Equal(t, models.SheetCount{Total: 5, Filtered: 5}, res.Counts["alerts"])
	require.NotNil(t, res.KPIs.SIEM)
	assert.Equal(t, 5, res.KPIs.SIEM.Total)
}

func TestManager_FilteredEDR(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t)

	info, err := m.Import(ctx, models.VendorEDR, "edr", testutil.EDRSheets())
	require.NoError(t, err)

	res, err := m.Filtered(ctx, info.ID, testutil.Range("2025-04-01", "2025-04-05"))
	require.NoError(t, err)

	assert.Equal(t, models.SheetCount{Total: 3, Filtered: 2}, res.Counts[models.SheetEndpoints])
	assert.Equal(t, models.SheetCount{Total: 3, Filtered: 2}, res.Counts[models.SheetThreats])

	require.NotNil(t, res.KPIs.EDR)
	assert.Equal(t, 2, res.KPIs.EDR.Endpoints)
	assert.Equal(t, 2, res.KPIs.EDR.Threats)
	assert.Equal(t, 1, res.KPIs.EDR.ResolvedThreats)
	assert.Equal(t, 75, res.KPIs.EDR.SecurityScore)
	assert.Equal(t, 25, res.KPIs.EDR.RiskScore)

	ds, _ := m.Get(ctx, info.ID)
	assert.Len(t, ds.Sheets[models.SheetEndpoints], 3, "source dataset must not change")
}

func TestManager_FilteredCache(t *testing.T) {
	ctx := context.Background()
	c := cache.NewMemoryCache(0)
	m, store, clk := newTestManager(t, WithCache(c, time.Hour))

	info, err := m.Import(ctx, models.VendorSIEM, "siem", testutil.SIEMSheets())
	require.NoError(t, err)
	r := testutil.Range("2025-04-01", "2025-04-05")

	first, err := m.Filtered(ctx, info.ID, r)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Len())

	// Drop the dataset from memory; a cache hit must not touch the store.
	clk.advance(24 * time.Hour)
	require.Equal(t, 1, m.CleanupIdle(time.Hour))

	second, err := m.Filtered(ctx, info.ID, r)
	require.NoError(t, err)
	assert.Equal(t, 0, store.Loads())
	assert.Equal(t, first.Counts, second.Counts)
	assert.Equal(t, first.KPIs, second.KPIs)
	assert.True(t, first.Range.Start.Equal(second.Range.Start))
	require.Len(t, second.Dataset.Sheets["alerts"], 3)
	assert.Equal(t, "a2", second.Dataset.Sheets["alerts"][0]["id"])

	// Inactive ranges are never cached.
	_, err = m.Filtered(ctx, info.ID, models.DateRange{})
	require.NoError(t, err)
	assert.Equal(t, 1, c.Len())

	require.NoError(t, m.Delete(ctx, info.ID))
	assert.Equal(t, 0, c.Len())
	_, err = m.Filtered(ctx, info.ID, r)
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestManager_FilteredCacheKeyUsesFilterLocation(t *testing.T) {
	ctx := context.Background()
	c := cache.NewMemoryCache(0)
	m, _, _ := newTestManager(t, WithCache(c, time.Hour))

	info, err := m.Import(ctx, models.VendorSIEM, "siem", testutil.SIEMSheets())
	require.NoError(t, err)

	// 2025-04-01 23:00 at -05:00 is already 2025-04-02 in UTC.
	dayStart := models.DateRange{Start: time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)}
	lateEvening := models.DateRange{Start: time.Date(2025, 4, 1, 23, 0, 0, 0, time.FixedZone("EST", -5*3600))}

	first, err := m.Filtered(ctx, info.ID, dayStart)
	require.NoError(t, err)
	second, err := m.Filtered(ctx, info.ID, lateEvening)
	require.NoError(t, err)

	assert.Equal(t, 3, first.Counts["alerts"].Filtered)
	assert.Equal(t, 2, second.Counts["alerts"].Filtered)
	assert.Equal(t, 2, c.Len(), "ranges on different days must not share a cache entry")

	again, err := m.Filtered(ctx, info.ID, lateEvening)
	require.NoError(t, err)
	assert.Equal(t, 2, again.Counts["alerts"].Filtered)
}

func TestManager_Eviction(t *testing.T) {
	ctx := context.Background()
	m, store, clk := newTestManager(t, WithMaxDatasets(2))

	a, _ := m.Import(ctx, models.VendorSIEM, "a", testutil.SIEMSheets())
	clk.advance(time.Second)
	b, _ := m.Import(ctx, models.VendorSIEM, "b", testutil.SIEMSheets())
	clk.advance(time.Second)

	// Touch a so that b becomes the least recently used.
	assert.True(t, m.Touch(a.ID))
	clk.advance(time.Second)

	_, err := m.Import(ctx, models.VendorSIEM, "c", testutil.SIEMSheets())
	require.NoError(t, err)
	assert.Equal(t, 2, m.Loaded())
	assert.False(t, m.Touch(b.ID))

	_, err = m.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, store.Loads())
	assert.Equal(t, 2, m.Loaded())
}

func TestManager_CleanupIdle(t *testing.T) {
	ctx := context.Background()
	m, _, clk := newTestManager(t)

	old, _ := m.Import(ctx, models.VendorEDR, "old", testutil.EDRSheets())
	clk.advance(40 * time.Minute)
	fresh, _ := m.Import(ctx, models.VendorEDR, "fresh", testutil.EDRSheets())
	clk.advance(2 * time.Minute)

	assert.Equal(t, 1, m.CleanupIdle(30*time.Minute))
	assert.False(t, m.Touch(old.ID))
	assert.True(t, m.Touch(fresh.ID))

	// maxAge below the keep-alive window is raised to it.
	clk.advance(3 * time.Minute)
	assert.Equal(t, 0, m.CleanupIdle(time.Minute))
	assert.Equal(t, 1, m.Loaded())
}

func TestManager_Refresh(t *testing.T) {
	ctx := context.Background()

	m, _, _ := newTestManager(t)
	_, err := m.Refresh(ctx, models.VendorMeraki)
	assert.True(t, errors.Is(err, ErrUpstreamDisabled))

	f := &fakeFetcher{sheets: testutil.MerakiSheets()}
	m, _, _ = newTestManager(t, WithUpstream(f))
	info, err := m.Refresh(ctx, models.VendorMeraki)
	require.NoError(t, err)
	assert.Equal(t, []models.Vendor{models.VendorMeraki}, f.calls)
	assert.Equal(t, "live-meraki-20250406-120000", info.Name)

	res, err := m.Filtered(ctx, info.ID, testutil.Range("2025-04-01", "2025-04-02"))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Counts[models.SheetUsageOverTime].Filtered)
	require.NotNil(t, res.KPIs.Meraki)
	assert.Equal(t, 300.0, res.KPIs.Meraki.PeakBandwidth)

	f.err = errors.New("upstream down")
	_, err = m.Refresh(ctx, models.VendorMeraki)
	assert.ErrorContains(t, err, "upstream down")
}
