package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sipwell/nutrition-pipeline/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewPostgresWithPool(mock), mock
}

func TestPostgresStore_CreateBatch(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO batches`).
		WithArgs(pgxmock.AnyArg(), "batch-1", "manual", "running", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run, err := s.CreateBatch(context.Background(), "batch-1", "manual")
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.BatchStatusRunning, run.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetBatch_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, batch_id, triggered_by, status, result, created_at, updated_at FROM batches WHERE id = \$1`).
		WithArgs("nonexistent").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetBatch(context.Background(), "nonexistent")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateBatchStatus_Missing(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE batches SET status`).
		WithArgs("partial", pgxmock.AnyArg(), "missing-run").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateBatchStatus(context.Background(), "missing-run", model.BatchStatusPartial)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveBatchResult(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE batches SET result`).
		WithArgs(pgxmock.AnyArg(), "completed", pgxmock.AnyArg(), "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.SaveBatchResult(context.Background(), "run-1", &model.BatchResult{
		BatchID: "batch-1",
		Status:  model.BatchStatusCompleted,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveBrandResult(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO brand_results`).
		WithArgs(pgxmock.AnyArg(), "run-1", "Starbucks", "completed", "", 42, int64(900), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.SaveBrandResult(context.Background(), "run-1", model.BrandResult{
		Brand:      "Starbucks",
		Status:     model.BrandStageCompleted,
		Records:    42,
		DurationMS: 900,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RecordDispatch(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO dispatches`).
		WithArgs(pgxmock.AnyArg(), "batch-1", "success", 1, int64(120), "", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.RecordDispatch(context.Background(), model.DispatchRecord{
		BatchID:   "batch-1",
		Status:    "success",
		Attempts:  1,
		LatencyMS: 120,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_EnqueueDLQ(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO dispatch_dlq`).
		WithArgs(pgxmock.AnyArg(), "batch-1", []byte(`{}`), "boom", 3, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.EnqueueDLQ(context.Background(), model.DLQEntry{
		BatchID:  "batch-1",
		Payload:  []byte(`{}`),
		Error:    "boom",
		Attempts: 3,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CountDLQ(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM dispatch_dlq`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(4))

	count, err := s.CountDLQ(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListBatches(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	rows := pgxmock.NewRows([]string{"id", "batch_id", "triggered_by", "status", "result", "created_at", "updated_at"}).
		AddRow("run-1", "batch-1", "manual", "completed", []byte(nil), now, now)
	mock.ExpectQuery(`SELECT id, batch_id, triggered_by, status, result, created_at, updated_at FROM batches`).
		WithArgs("completed", 5).
		WillReturnRows(rows)

	batches, err := s.ListBatches(context.Background(), BatchFilter{Status: model.BatchStatusCompleted, Limit: 5})
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, "run-1", batches[0].ID)
	assert.Nil(t, batches[0].Result)
	assert.NoError(t, mock.ExpectationsWereMet())
}
