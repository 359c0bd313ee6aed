// Package session keeps recently used datasets in memory and serves
// date-filtered views of them.
package session

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"github.com/soc-analytics/backend/internal/cache"
	"github.com/soc-analytics/backend/internal/filter"
	"github.com/soc-analytics/backend/internal/kpi"
	"github.com/soc-analytics/backend/internal/logging"
	"github.com/soc-analytics/backend/internal/metrics"
	"github.com/soc-analytics/backend/internal/models"
	"github.com/soc-analytics/backend/internal/parser"
	"github.com/soc-analytics/backend/internal/storage"
)

// DefaultMaxDatasets limits how many datasets stay in memory at once.
const DefaultMaxDatasets = 20

// KeepAliveWindow protects datasets touched this recently from idle cleanup.
const KeepAliveWindow = 5 * time.Minute

// ErrUpstreamDisabled is returned by Refresh when no live-data source is set.
var ErrUpstreamDisabled = errors.New("live-data refresh is not configured")

// Fetcher downloads a live vendor snapshot.
type Fetcher interface {
	Fetch(ctx context.Context, vendor models.Vendor) (map[string][]models.Record, error)
}

// Manager loads datasets through the store, keeps the most recently used
// ones in memory and memoizes filtered views.
//
// Datasets handed out by the manager are shared. Callers must not modify
// them.
type Manager struct {
	mu          sync.RWMutex
	states      map[string]*state
	maxDatasets int

	store    storage.Store
	filter   *filter.Filter
	static   parser.DateParser
	cache    cache.Cache
	cacheTTL time.Duration
	upstream Fetcher
	logger   *zap.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

type state struct {
	dataset      *models.Dataset
	lastAccessed time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithCache memoizes filter results in c for ttl.
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(m *Manager) {
		m.cache = c
		m.cacheTTL = ttl
	}
}

// WithUpstream enables Refresh.
func WithUpstream(f Fetcher) Option {
	return func(m *Manager) {
		m.upstream = f
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithMetrics records cache lookups and the loaded dataset gauge.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) {
		m.metrics = mt
	}
}

// WithMaxDatasets bounds the in-memory working set.
func WithMaxDatasets(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxDatasets = n
		}
	}
}

// NewManager creates a manager over store, filtering with f.
func NewManager(store storage.Store, f *filter.Filter, opts ...Option) *Manager {
	m := &Manager{
		states:      make(map[string]*state),
		maxDatasets: DefaultMaxDatasets,
		store:       store,
		filter:      f,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = logging.OrNop(m.logger).With(zap.String("component", "session"))

	if p, err := f.Parsers().Get("meraki_static"); err == nil {
		m.static = p
	} else {
		m.static = parser.NewMerakiStaticDateParser(f.Location())
	}
	return m
}

// Import stores sheets as a new dataset and loads it.
func (m *Manager) Import(ctx context.Context, vendor models.Vendor, name string, sheets map[string][]models.Record) (*models.DatasetInfo, error) {
	if _, ok := models.ParseVendor(string(vendor)); !ok {
		return nil, fmt.Errorf("unknown vendor %q", vendor)
	}
	if sheets == nil {
		sheets = map[string][]models.Record{}
	}

	ds := &models.Dataset{
		ID:        uuid.New().String(),
		Vendor:    vendor,
		Name:      strings.TrimSpace(name),
		CreatedAt: m.now().UTC(),
		Sheets:    sheets,
	}
	if ds.Name == "" {
		ds.Name = fmt.Sprintf("%s-%s", vendor, ds.CreatedAt.Format("20060102-150405"))
	}

	if err := m.store.SaveDataset(ctx, ds); err != nil {
		return nil, errors.Wrap(err, "saving dataset")
	}
	m.admit(ds)

	m.logger.Info("dataset imported",
		zap.String("dataset", ds.ID),
		zap.String("vendor", string(vendor)),
		zap.Int("sheets", len(ds.Sheets)),
		zap.Int("records", ds.RecordCount()))
	return ds.Info(), nil
}

// Refresh imports the current live snapshot of vendor.
func (m *Manager) Refresh(ctx context.Context, vendor models.Vendor) (*models.DatasetInfo, error) {
	if m.upstream == nil {
		return nil, ErrUpstreamDisabled
	}
	sheets, err := m.upstream.Fetch(ctx, vendor)
	if err != nil {
		return nil, err
	}
	return m.Import(ctx, vendor, fmt.Sprintf("live-%s-%s", vendor, m.now().UTC().Format("20060102-150405")), sheets)
}

// Get returns a dataset, loading it from the store when it is not in memory.
func (m *Manager) Get(ctx context.Context, id string) (*models.Dataset, error) {
	m.mu.Lock()
	if st, ok := m.states[id]; ok {
		st.lastAccessed = m.now()
		m.mu.Unlock()
		return st.dataset, nil
	}
	m.mu.Unlock()

	ds, err := m.store.LoadDataset(ctx, id)
	if err != nil {
		return nil, err
	}
	m.admit(ds)
	m.logger.Debug("dataset loaded", zap.String("dataset", id))
	return ds, nil
}

// List returns stored dataset metadata, newest first.
func (m *Manager) List(ctx context.Context, limit int) ([]*models.DatasetInfo, error) {
	return m.store.ListDatasets(ctx, limit)
}

// Delete removes a dataset everywhere.
func (m *Manager) Delete(ctx context.Context, id string) error {
	if err := m.store.DeleteDataset(ctx, id); err != nil {
		return err
	}

	m.mu.Lock()
	delete(m.states, id)
	loaded := len(m.states)
	m.mu.Unlock()
	m.metrics.SetDatasetsLoaded(loaded)

	if m.cache != nil {
		if err := m.cache.Invalidate(ctx, cache.DatasetPrefix(id)); err != nil {
			m.logger.Warn("cache invalidation failed", zap.String("dataset", id), zap.Error(err))
		}
	}
	return nil
}

// Filtered narrows a dataset to r and recomputes its KPIs. With an
// inactive range the result carries the dataset itself.
func (m *Manager) Filtered(ctx context.Context, id string, r models.DateRange) (*models.FilterResult, error) {
	if r.IsActive() && m.cache != nil {
		if res, ok := m.cached(ctx, id, r); ok {
			m.Touch(id)
			return res, nil
		}
	}

	ds, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	filtered := m.filter.Dataset(ds, r)
	res := &models.FilterResult{
		Dataset: filtered,
		Range:   r,
		Counts:  filter.Counts(ds, filtered),
		KPIs:    kpi.ForDataset(filtered, m.static),
	}

	if r.IsActive() && m.cache != nil {
		m.remember(ctx, id, r, res)
	}
	return res, nil
}

func (m *Manager) cached(ctx context.Context, id string, r models.DateRange) (*models.FilterResult, bool) {
	data, ok, err := m.cache.Get(ctx, cache.FilterKey(id, r.KeyIn(m.filter.Location())))
	if err != nil {
		m.metrics.CacheLookup("error")
		m.logger.Warn("cache lookup failed", zap.String("dataset", id), zap.Error(err))
		return nil, false
	}
	if !ok {
		m.metrics.CacheLookup("miss")
		return nil, false
	}

	res, err := decodeResult(data)
	if err != nil {
		m.metrics.CacheLookup("error")
		m.logger.Warn("discarding undecodable cache entry", zap.String("dataset", id), zap.Error(err))
		return nil, false
	}
	m.metrics.CacheLookup("hit")
	return res, true
}

func (m *Manager) remember(ctx context.Context, id string, r models.DateRange, res *models.FilterResult) {
	data, err := encodeResult(res)
	if err != nil {
		m.logger.Warn("encoding filter result failed", zap.String("dataset", id), zap.Error(err))
		return
	}
	if err := m.cache.Set(ctx, cache.FilterKey(id, r.KeyIn(m.filter.Location())), data, m.cacheTTL); err != nil {
		m.logger.Warn("cache store failed", zap.String("dataset", id), zap.Error(err))
	}
}

// admit loads ds into memory, evicting the least recently used dataset
// when the working set is full.
func (m *Manager) admit(ds *models.Dataset) {
	m.mu.Lock()
	if _, exists := m.states[ds.ID]; !exists {
		for len(m.states) >= m.maxDatasets {
			m.evictOldestLocked()
		}
	}
	m.states[ds.ID] = &state{dataset: ds, lastAccessed: m.now()}
	loaded := len(m.states)
	m.mu.Unlock()

	m.metrics.SetDatasetsLoaded(loaded)
}

func (m *Manager) evictOldestLocked() {
	var (
		oldestID string
		oldest   time.Time
	)
	for id, st := range m.states {
		if oldestID == "" || st.lastAccessed.Before(oldest) {
			oldestID, oldest = id, st.lastAccessed
		}
	}
	if oldestID == "" {
		return
	}
	delete(m.states, oldestID)
	m.logger.Debug("evicted dataset from memory", zap.String("dataset", oldestID))
}

// Touch marks a dataset as in use. Returns false if it is not in memory.
func (m *Manager) Touch(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.states[id]
	if !ok {
		return false
	}
	st.lastAccessed = m.now()
	return true
}

// CleanupIdle drops in-memory datasets untouched for maxAge, never those
// used within KeepAliveWindow. Stored copies are kept. Returns the number
// of datasets dropped.
func (m *Manager) CleanupIdle(maxAge time.Duration) int {
	if maxAge < KeepAliveWindow {
		maxAge = KeepAliveWindow
	}
	cutoff := m.now().Add(-maxAge)

	m.mu.Lock()
	dropped := 0
	for id, st := range m.states {
		if st.lastAccessed.Before(cutoff) {
			delete(m.states, id)
			dropped++
		}
	}
	loaded := len(m.states)
	m.mu.Unlock()

	m.metrics.SetDatasetsLoaded(loaded)
	if dropped > 0 {
		m.logger.Info("idle datasets released", zap.Int("dropped", dropped), zap.Int("loaded", loaded))
	}
	return dropped
}

// Loaded returns the number of datasets held in memory.
func (m *Manager) Loaded() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.states)
}

// Parsers exposes the date parsers used for filtering.
func (m *Manager) Parsers() *parser.Registry {
	return m.filter.Parsers()
}

// Filter exposes the date filter.
func (m *Manager) Filter() *filter.Filter {
	return m.filter
}

func encodeResult(res *models.FilterResult) ([]byte, error) {
	return msgpack.Marshal(res)
}

func decodeResult(data []byte) (*models.FilterResult, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.UseLooseInterfaceDecoding(true)

	var res models.FilterResult
	if err := dec.Decode(&res); err != nil {
		return nil, err
	}
	return &res, nil
}
