// Package store is the run ledger: batch runs, per-brand stage results,
// dispatch outcomes, and the dispatch dead-letter queue, persisted to
// SQLite or Postgres.
package store

import (
	"context"
	"time"

	"github.com/sipwell/nutrition-pipeline/internal/model"
)

// BatchFilter specifies criteria for listing batch runs.
type BatchFilter struct {
	Status       model.BatchStatus `json:"status,omitempty"`
	CreatedAfter time.Time         `json:"created_after,omitempty"`
	Limit        int               `json:"limit,omitempty"`
}

// Store defines the persistence interface for the run ledger.
type Store interface {
	// Batches
	CreateBatch(ctx context.Context, batchID, triggeredBy string) (*model.BatchRun, error)
	UpdateBatchStatus(ctx context.Context, runID string, status model.BatchStatus) error
	SaveBatchResult(ctx context.Context, runID string, result *model.BatchResult) error
	GetBatch(ctx context.Context, runID string) (*model.BatchRun, error)
	ListBatches(ctx context.Context, filter BatchFilter) ([]model.BatchRun, error)

	// Per-brand stage outcomes
	SaveBrandResult(ctx context.Context, runID string, result model.BrandResult) error

	// Dispatch outcomes
	RecordDispatch(ctx context.Context, rec model.DispatchRecord) error
	ListDispatches(ctx context.Context, since time.Time) ([]model.DispatchRecord, error)

	// Dead-letter queue for exhausted dispatches
	EnqueueDLQ(ctx context.Context, entry model.DLQEntry) error
	ListDLQ(ctx context.Context, limit int) ([]model.DLQEntry, error)
	CountDLQ(ctx context.Context) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
