package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sipwell/nutrition-pipeline/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS batches (
	id           TEXT PRIMARY KEY,
	batch_id     TEXT NOT NULL,
	triggered_by TEXT NOT NULL DEFAULT 'manual',
	status       TEXT NOT NULL DEFAULT 'running',
	result       TEXT,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS brand_results (
	id          TEXT PRIMARY KEY,
	run_id      TEXT NOT NULL REFERENCES batches(id),
	brand       TEXT NOT NULL,
	status      TEXT NOT NULL,
	detail      TEXT,
	records     INTEGER NOT NULL DEFAULT 0,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS dispatches (
	id         TEXT PRIMARY KEY,
	batch_id   TEXT NOT NULL,
	status     TEXT NOT NULL,
	attempts   INTEGER NOT NULL,
	latency_ms INTEGER NOT NULL DEFAULT 0,
	error      TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS dispatch_dlq (
	id         TEXT PRIMARY KEY,
	batch_id   TEXT NOT NULL,
	payload    BLOB NOT NULL,
	error      TEXT NOT NULL,
	attempts   INTEGER NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_batches_status ON batches(status);
CREATE INDEX IF NOT EXISTS idx_batches_created_at ON batches(created_at);
CREATE INDEX IF NOT EXISTS idx_brand_results_run_id ON brand_results(run_id);
CREATE INDEX IF NOT EXISTS idx_dispatches_created_at ON dispatches(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateBatch(ctx context.Context, batchID, triggeredBy string) (*model.BatchRun, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO batches (id, batch_id, triggered_by, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, batchID, triggeredBy, string(model.BatchStatusRunning), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert batch")
	}

	return &model.BatchRun{
		ID:          id,
		BatchID:     batchID,
		TriggeredBy: triggeredBy,
		Status:      model.BatchStatusRunning,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (s *SQLiteStore) UpdateBatchStatus(ctx context.Context, runID string, status model.BatchStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE batches SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update batch status %s", runID)
	}
	return checkRowsAffected(res, "batch", runID)
}

func (s *SQLiteStore) SaveBatchResult(ctx context.Context, runID string, result *model.BatchResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal result")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE batches SET result = ?, status = ?, updated_at = ? WHERE id = ?`,
		string(resultJSON), string(result.Status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: save batch result %s", runID)
	}
	return checkRowsAffected(res, "batch", runID)
}

func (s *SQLiteStore) GetBatch(ctx context.Context, runID string) (*model.BatchRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, batch_id, triggered_by, status, result, created_at, updated_at FROM batches WHERE id = ?`,
		runID,
	)
	return scanBatch(row)
}

func (s *SQLiteStore) ListBatches(ctx context.Context, filter BatchFilter) ([]model.BatchRun, error) {
	query := `SELECT id, batch_id, triggered_by, status, result, created_at, updated_at FROM batches WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if !filter.CreatedAfter.IsZero() {
		query += ` AND created_at > ?`
		args = append(args, filter.CreatedAfter)
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list batches")
	}
	defer rows.Close() //nolint:errcheck

	var batches []model.BatchRun
	for rows.Next() {
		batch, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, *batch)
	}
	return batches, eris.Wrap(rows.Err(), "sqlite: iterate batches")
}

func (s *SQLiteStore) SaveBrandResult(ctx context.Context, runID string, result model.BrandResult) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO brand_results (id, run_id, brand, status, detail, records, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), runID, result.Brand, string(result.Status),
		result.Detail, result.Records, result.DurationMS, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: save brand result %s/%s", runID, result.Brand)
}

func (s *SQLiteStore) RecordDispatch(ctx context.Context, rec model.DispatchRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO dispatches (id, batch_id, status, attempts, latency_ms, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), rec.BatchID, rec.Status, rec.Attempts, rec.LatencyMS, rec.Error, time.Now().UTC(),
	)
	return eris.Wrap(err, "sqlite: record dispatch")
}

func (s *SQLiteStore) ListDispatches(ctx context.Context, since time.Time) ([]model.DispatchRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT batch_id, status, attempts, latency_ms, error, created_at FROM dispatches
		 WHERE created_at > ? ORDER BY created_at DESC`,
		since,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list dispatches")
	}
	defer rows.Close() //nolint:errcheck

	var records []model.DispatchRecord
	for rows.Next() {
		var rec model.DispatchRecord
		var errStr sql.NullString
		if err := rows.Scan(&rec.BatchID, &rec.Status, &rec.Attempts, &rec.LatencyMS, &errStr, &rec.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan dispatch")
		}
		rec.Error = errStr.String
		records = append(records, rec)
	}
	return records, eris.Wrap(rows.Err(), "sqlite: iterate dispatches")
}

func (s *SQLiteStore) EnqueueDLQ(ctx context.Context, entry model.DLQEntry) error {
	id := entry.ID
	if id == "" {
		id = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO dispatch_dlq (id, batch_id, payload, error, attempts, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, entry.BatchID, entry.Payload, entry.Error, entry.Attempts, time.Now().UTC(),
	)
	return eris.Wrap(err, "sqlite: enqueue dlq")
}

func (s *SQLiteStore) ListDLQ(ctx context.Context, limit int) ([]model.DLQEntry, error) {
	query := `SELECT id, batch_id, payload, error, attempts, created_at FROM dispatch_dlq ORDER BY created_at DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list dlq")
	}
	defer rows.Close() //nolint:errcheck

	var entries []model.DLQEntry
	for rows.Next() {
		var entry model.DLQEntry
		if err := rows.Scan(&entry.ID, &entry.BatchID, &entry.Payload, &entry.Error, &entry.Attempts, &entry.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan dlq entry")
		}
		entries = append(entries, entry)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: iterate dlq")
}

func (s *SQLiteStore) CountDLQ(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dispatch_dlq`).Scan(&count)
	return count, eris.Wrap(err, "sqlite: count dlq")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBatch(row rowScanner) (*model.BatchRun, error) {
	var batch model.BatchRun
	var status string
	var resultJSON sql.NullString

	if err := row.Scan(&batch.ID, &batch.BatchID, &batch.TriggeredBy, &status, &resultJSON, &batch.CreatedAt, &batch.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, eris.Wrap(err, "store: batch not found")
		}
		return nil, eris.Wrap(err, "store: scan batch")
	}

	batch.Status = model.BatchStatus(status)
	if resultJSON.Valid && resultJSON.String != "" {
		var result model.BatchResult
		if err := json.Unmarshal([]byte(resultJSON.String), &result); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal batch result")
		}
		batch.Result = &result
	}
	return &batch, nil
}

func checkRowsAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "store: rows affected")
	}
	if n == 0 {
		return eris.Errorf("store: %s %s not found", kind, id)
	}
	return nil
}
