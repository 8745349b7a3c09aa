package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sipwell/nutrition-pipeline/internal/model"
)

// Pool abstracts the pgx pool surface the store uses, so tests can swap in
// pgxmock.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool; used by tests.
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS batches (
	id           TEXT PRIMARY KEY,
	batch_id     TEXT NOT NULL,
	triggered_by TEXT NOT NULL DEFAULT 'manual',
	status       TEXT NOT NULL DEFAULT 'running',
	result       JSONB,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS brand_results (
	id          TEXT PRIMARY KEY,
	run_id      TEXT NOT NULL REFERENCES batches(id),
	brand       TEXT NOT NULL,
	status      TEXT NOT NULL,
	detail      TEXT,
	records     INTEGER NOT NULL DEFAULT 0,
	duration_ms BIGINT NOT NULL DEFAULT 0,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS dispatches (
	id         TEXT PRIMARY KEY,
	batch_id   TEXT NOT NULL,
	status     TEXT NOT NULL,
	attempts   INTEGER NOT NULL,
	latency_ms BIGINT NOT NULL DEFAULT 0,
	error      TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS dispatch_dlq (
	id         TEXT PRIMARY KEY,
	batch_id   TEXT NOT NULL,
	payload    BYTEA NOT NULL,
	error      TEXT NOT NULL,
	attempts   INTEGER NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_batches_status ON batches(status);
CREATE INDEX IF NOT EXISTS idx_batches_created_at ON batches(created_at);
CREATE INDEX IF NOT EXISTS idx_brand_results_run_id ON brand_results(run_id);
CREATE INDEX IF NOT EXISTS idx_dispatches_created_at ON dispatches(created_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateBatch(ctx context.Context, batchID, triggeredBy string) (*model.BatchRun, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO batches (id, batch_id, triggered_by, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, batchID, triggeredBy, string(model.BatchStatusRunning), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert batch")
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

func (s *PostgresStore) UpdateBatchStatus(ctx context.Context, runID string, status model.BatchStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE batches SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update batch status %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("store: batch %s not found", runID)
	}
	return nil
}

func (s *PostgresStore) SaveBatchResult(ctx context.Context, runID string, result *model.BatchResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal result")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE batches SET result = $1, status = $2, updated_at = $3 WHERE id = $4`,
		resultJSON, string(result.Status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: save batch result %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("store: batch %s not found", runID)
	}
	return nil
}

func (s *PostgresStore) GetBatch(ctx context.Context, runID string) (*model.BatchRun, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, batch_id, triggered_by, status, result, created_at, updated_at FROM batches WHERE id = $1`,
		runID,
	)
	return scanPgBatch(row)
}

func (s *PostgresStore) ListBatches(ctx context.Context, filter BatchFilter) ([]model.BatchRun, error) {
	query := `SELECT id, batch_id, triggered_by, status, result, created_at, updated_at FROM batches WHERE 1=1`
	var args []any

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += ` AND status = $1`
	}
	if !filter.CreatedAfter.IsZero() {
		args = append(args, filter.CreatedAfter)
		query += ` AND created_at > $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list batches")
	}
	defer rows.Close()

	var batches []model.BatchRun
	for rows.Next() {
		batch, err := scanPgBatch(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, *batch)
	}
	return batches, eris.Wrap(rows.Err(), "postgres: iterate batches")
}

func (s *PostgresStore) SaveBrandResult(ctx context.Context, runID string, result model.BrandResult) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO brand_results (id, run_id, brand, status, detail, records, duration_ms, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.New().String(), runID, result.Brand, string(result.Status),
		result.Detail, result.Records, result.DurationMS, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: save brand result %s/%s", runID, result.Brand)
}

func (s *PostgresStore) RecordDispatch(ctx context.Context, rec model.DispatchRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO dispatches (id, batch_id, status, attempts, latency_ms, error, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.New().String(), rec.BatchID, rec.Status, rec.Attempts, rec.LatencyMS, rec.Error, time.Now().UTC(),
	)
	return eris.Wrap(err, "postgres: record dispatch")
}

func (s *PostgresStore) ListDispatches(ctx context.Context, since time.Time) ([]model.DispatchRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT batch_id, status, attempts, latency_ms, error, created_at FROM dispatches
		 WHERE created_at > $1 ORDER BY created_at DESC`,
		since,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list dispatches")
	}
	defer rows.Close()

	var records []model.DispatchRecord
	for rows.Next() {
		var rec model.DispatchRecord
		var errStr sql.NullString
		if err := rows.Scan(&rec.BatchID, &rec.Status, &rec.Attempts, &rec.LatencyMS, &errStr, &rec.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan dispatch")
		}
		rec.Error = errStr.String
		records = append(records, rec)
	}
	return records, eris.Wrap(rows.Err(), "postgres: iterate dispatches")
}

func (s *PostgresStore) EnqueueDLQ(ctx context.Context, entry model.DLQEntry) error {
	id := entry.ID
	if id == "" {
		id = uuid.New().String()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO dispatch_dlq (id, batch_id, payload, error, attempts, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, entry.BatchID, entry.Payload, entry.Error, entry.Attempts, time.Now().UTC(),
	)
	return eris.Wrap(err, "postgres: enqueue dlq")
}

func (s *PostgresStore) ListDLQ(ctx context.Context, limit int) ([]model.DLQEntry, error) {
	query := `SELECT id, batch_id, payload, error, attempts, created_at FROM dispatch_dlq ORDER BY created_at DESC`
	var args []any
	if limit > 0 {
		args = append(args, limit)
		query += ` LIMIT $1`
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list dlq")
	}
	defer rows.Close()

	var entries []model.DLQEntry
	for rows.Next() {
		var entry model.DLQEntry
		if err := rows.Scan(&entry.ID, &entry.BatchID, &entry.Payload, &entry.Error, &entry.Attempts, &entry.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan dlq entry")
		}
		entries = append(entries, entry)
	}
	return entries, eris.Wrap(rows.Err(), "postgres: iterate dlq")
}

func (s *PostgresStore) CountDLQ(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM dispatch_dlq`).Scan(&count)
	return count, eris.Wrap(err, "postgres: count dlq")
}

func scanPgBatch(row pgx.Row) (*model.BatchRun, error) {
	var batch model.BatchRun
	var status string
	var resultJSON []byte

	if err := row.Scan(&batch.ID, &batch.BatchID, &batch.TriggeredBy, &status, &resultJSON, &batch.CreatedAt, &batch.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, eris.Wrap(err, "store: batch not found")
		}
		return nil, eris.Wrap(err, "store: scan batch")
	}

	batch.Status = model.BatchStatus(status)
	if len(resultJSON) > 0 {
		var result model.BatchResult
		if err := json.Unmarshal(resultJSON, &result); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal batch result")
		}
		batch.Result = &result
	}
	return &batch, nil
}
