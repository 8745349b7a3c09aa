package model

import "time"

// BatchStatus is the overall status of one pipeline run.
type BatchStatus string

const (
	BatchStatusRunning   BatchStatus = "running"
	BatchStatusCompleted BatchStatus = "completed"
	BatchStatusPartial   BatchStatus = "partial"
)

// BrandStageStatus is the status of a single brand's stage chain.
type BrandStageStatus string

const (
	BrandStageCompleted BrandStageStatus = "completed"
	BrandStageFailed    BrandStageStatus = "failed"
)

// BrandResult is the per-brand outcome of one pipeline run. Failures are
// captured here as a status plus a human-readable detail; they never cross
// brand boundaries.
type BrandResult struct {
	Brand      string           `json:"brand"`
	Status     BrandStageStatus `json:"status"`
	Detail     string           `json:"detail"`
	Records    int              `json:"records"`
	DurationMS int64            `json:"duration_ms"`
}

// BatchResult aggregates the per-brand outcomes of one pipeline run.
// Status is completed only when every brand stage completed.
type BatchResult struct {
	BatchID string        `json:"batch_id"`
	Status  BatchStatus   `json:"status"`
	Brands  []BrandResult `json:"brands"`
}

// BatchRun is the run-ledger row for one pipeline execution.
type BatchRun struct {
	ID          string       `json:"id"`
	BatchID     string       `json:"batch_id"`
	TriggeredBy string       `json:"triggered_by"`
	Status      BatchStatus  `json:"status"`
	Result      *BatchResult `json:"result,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// DispatchRecord captures one dispatch outcome for the run ledger.
type DispatchRecord struct {
	BatchID   string    `json:"batch_id"`
	Status    string    `json:"status"`
	Attempts  int       `json:"attempts"`
	LatencyMS int64     `json:"latency_ms"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// DLQEntry parks a delivery payload whose dispatch exhausted all retries so
// it can be replayed manually once the downstream recovers.
type DLQEntry struct {
	ID        string    `json:"id"`
	BatchID   string    `json:"batch_id"`
	Payload   []byte    `json:"payload"`
	Error     string    `json:"error"`
	Attempts  int       `json:"attempts"`
	CreatedAt time.Time `json:"created_at"`
}
