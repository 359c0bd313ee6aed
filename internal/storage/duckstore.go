package storage

import (
	"bytes"
	"context"
	"database/sql"
	"database/sql/driver"
	"os"
	"path/filepath"
	"time"

	"github.com/marcboeker/go-duckdb"
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"github.com/soc-analytics/backend/internal/logging"
	"github.com/soc-analytics/backend/internal/models"
)

var schema = []string{`
CREATE TABLE IF NOT EXISTS datasets (
	id           VARCHAR NOT NULL,
	vendor       VARCHAR NOT NULL,
	name         VARCHAR NOT NULL,
	created_at   TIMESTAMP NOT NULL,
	sheets       BLOB NOT NULL,
	record_count INTEGER NOT NULL
)`, `
CREATE TABLE IF NOT EXISTS records (
	dataset_id VARCHAR NOT NULL,
	sheet      VARCHAR NOT NULL,
	position   INTEGER NOT NULL,
	payload    BLOB NOT NULL
)`,
}

// DuckStore persists datasets in a DuckDB file. Each record is stored as a
// msgpack blob alongside its sheet and position, and rows are written with
// the DuckDB Appender.
type DuckStore struct {
	db     *sql.DB
	dbPath string
	logger *zap.Logger

	// Semaphore to limit concurrent dataset loads
	querySem chan struct{}
}

// NewDuckStore opens (or creates) the database file at dbPath.
func NewDuckStore(dbPath string, logger *zap.Logger) (*DuckStore, error) {
	logger = logging.OrNop(logger).With(zap.String("component", "duckstore"))

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, errors.Wrap(err, "creating database directory")
	}

	connector, err := duckdb.NewConnector(dbPath, func(execer driver.ExecerContext) error {
		pragmas := []string{
			"PRAGMA memory_limit='1GB'",
			"PRAGMA threads=4",
			"PRAGMA enable_progress_bar=false",
		}
		for _, pragma := range pragmas {
			if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
				return errors.Wrapf(err, "executing %s", pragma)
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create DuckDB connector")
	}

	db := sql.OpenDB(connector)
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, errors.Wrap(err, "failed to create tables")
		}
	}

	logger.Info("dataset database ready", zap.String("path", dbPath))
	return &DuckStore{
		db:       db,
		dbPath:   dbPath,
		logger:   logger,
		querySem: make(chan struct{}, 3),
	}, nil
}

// SaveDataset writes ds, replacing any dataset with the same id.
func (s *DuckStore) SaveDataset(ctx context.Context, ds *models.Dataset) error {
	if ds == nil || ds.ID == "" {
		return errors.New("dataset id is required")
	}
	start := time.Now()

	sheets, err := encode(ds.SheetNames())
	if err != nil {
		return errors.Wrap(err, "encoding sheet names")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE dataset_id = ?`, ds.ID); err != nil {
		tx.Rollback()
		return errors.Wrap(err, "clearing records")
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM datasets WHERE id = ?`, ds.ID); err != nil {
		tx.Rollback()
		return errors.Wrap(err, "clearing dataset")
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO datasets (id, vendor, name, created_at, sheets, record_count) VALUES (?, ?, ?, ?, ?, ?)`,
		ds.ID, string(ds.Vendor), ds.Name, ds.CreatedAt.UTC(), sheets, ds.RecordCount(),
	); err != nil {
		tx.Rollback()
		return errors.Wrap(err, "inserting dataset")
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "commit dataset")
	}

	if err := s.appendRecords(ctx, ds); err != nil {
		// Leave no half-written dataset behind.
		if derr := s.DeleteDataset(context.Background(), ds.ID); derr != nil {
			s.logger.Warn("cleanup after failed save", zap.String("dataset", ds.ID), zap.Error(derr))
		}
		return err
	}

	s.logger.Info("dataset saved",
		zap.String("dataset", ds.ID),
		zap.String("vendor", string(ds.Vendor)),
		zap.Int("records", ds.RecordCount()),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

// appendRecords writes every row using the native Appender API.
func (s *DuckStore) appendRecords(ctx context.Context, ds *models.Dataset) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get connection")
	}
	defer conn.Close()

	return conn.Raw(func(driverConn any) error {
		dConn, ok := driverConn.(driver.Conn)
		if !ok {
			return errors.New("failed to cast to driver.Conn")
		}

		appender, err := duckdb.NewAppenderFromConn(dConn, "", "records")
		if err != nil {
			return errors.Wrap(err, "failed to create appender")
		}
		defer appender.Close()

		for _, sheet := range ds.SheetNames() {
			for i, rec := range ds.Sheets[sheet] {
				payload, err := encode(rec)
				if err != nil {
					return errors.Wrapf(err, "encoding %s row %d", sheet, i)
				}
				if err := appender.AppendRow(ds.ID, sheet, int32(i), payload); err != nil {
					return errors.Wrapf(err, "failed to append %s row %d", sheet, i)
				}
			}
		}
		return appender.Flush()
	})
}

// LoadDataset reads a dataset and all of its rows.
func (s *DuckStore) LoadDataset(ctx context.Context, id string) (*models.Dataset, error) {
	select {
	case s.querySem <- struct{}{}:
		defer func() { <-s.querySem }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	info, err := s.info(ctx, id)
	if err != nil {
		return nil, err
	}

	ds := &models.Dataset{
		ID:        info.ID,
		Vendor:    info.Vendor,
		Name:      info.Name,
		CreatedAt: info.CreatedAt,
		Sheets:    make(map[string][]models.Record, len(info.Sheets)),
	}
	for _, sheet := range info.Sheets {
		ds.Sheets[sheet] = []models.Record{}
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT sheet, payload FROM records WHERE dataset_id = ? ORDER BY sheet, position`, id)
	if err != nil {
		return nil, errors.Wrap(err, "querying records")
	}
	defer rows.Close()

	for rows.Next() {
		var sheet string
		var payload []byte
		if err := rows.Scan(&sheet, &payload); err != nil {
			return nil, errors.Wrap(err, "scanning record")
		}
		var rec models.Record
		if err := decode(payload, &rec); err != nil {
			return nil, errors.Wrapf(err, "decoding %s record", sheet)
		}
		ds.Sheets[sheet] = append(ds.Sheets[sheet], rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterating records")
	}
	return ds, nil
}

func (s *DuckStore) info(ctx context.Context, id string) (*models.DatasetInfo, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, vendor, name, created_at, sheets, record_count FROM datasets WHERE id = ?`, id)
	info, err := scanInfo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(ErrNotFound, "load %s", id)
	}
	return info, err
}

// ListDatasets returns the most recent datasets first.
func (s *DuckStore) ListDatasets(ctx context.Context, limit int) ([]*models.DatasetInfo, error) {
	query := `SELECT id, vendor, name, created_at, sheets, record_count FROM datasets ORDER BY created_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "listing datasets")
	}
	defer rows.Close()

	list := []*models.DatasetInfo{}
	for rows.Next() {
		info, err := scanInfo(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, info)
	}
	return list, errors.Wrap(rows.Err(), "iterating datasets")
}

// DeleteDataset removes a dataset and its rows.
func (s *DuckStore) DeleteDataset(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM datasets WHERE id = ?`, id)
	if err != nil {
		return errors.Wrap(err, "deleting dataset")
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE dataset_id = ?`, id); err != nil {
		return errors.Wrap(err, "deleting records")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.Wrapf(ErrNotFound, "delete %s", id)
	}
	return nil
}

// Close closes the database.
func (s *DuckStore) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *DuckStore) Path() string {
	return s.dbPath
}

type scanner interface {
	Scan(dest ...any) error
}

func scanInfo(row scanner) (*models.DatasetInfo, error) {
	var (
		info   models.DatasetInfo
		vendor string
		sheets []byte
		count  int64
	)
	if err := row.Scan(&info.ID, &vendor, &info.Name, &info.CreatedAt, &sheets, &count); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, errors.Wrap(err, "scanning dataset")
	}
	if err := decode(sheets, &info.Sheets); err != nil {
		return nil, errors.Wrap(err, "decoding sheet names")
	}
	info.Vendor = models.Vendor(vendor)
	info.RecordCount = int(count)
	info.CreatedAt = info.CreatedAt.UTC()
	return &info, nil
}

func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decode uses loose interface decoding so numbers come back as int64 and
// float64 rather than the narrowest wire type.
func decode(data []byte, v any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.UseLooseInterfaceDecoding(true)
	return dec.Decode(v)
}
