package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sipwell/nutrition-pipeline/internal/model"
	"github.com/sipwell/nutrition-pipeline/internal/store"
)

// MetricsSnapshot holds a point-in-time view of pipeline health.
type MetricsSnapshot struct {
	// Batch metrics (within lookback window).
	BatchTotal   int     `json:"batch_total"`
	BatchDone    int     `json:"batch_done"`
	BatchPartial int     `json:"batch_partial"`
	BatchRunning int     `json:"batch_running"`
	PartialRate  float64 `json:"partial_rate"`

	// Dispatch metrics (within lookback window).
	DispatchTotal        int   `json:"dispatch_total"`
	DispatchSuccess      int   `json:"dispatch_success"`
	DispatchFailed       int   `json:"dispatch_failed"`
	DispatchAvgLatencyMS int64 `json:"dispatch_avg_latency_ms"`

	// DLQ depth.
	DLQDepth int `json:"dlq_depth"`

	// Metadata.
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Collector gathers metrics from the run ledger.
type Collector struct {
	store store.Store
}

// NewCollector creates a new metrics collector.
func NewCollector(st store.Store) *Collector {
	return &Collector{store: st}
}

// Collect gathers a snapshot of pipeline metrics over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   time.Now().UTC(),
	}

	cutoff := time.Now().UTC().Add(-time.Duration(lookbackHours) * time.Hour)

	batches, err := c.store.ListBatches(ctx, store.BatchFilter{
		CreatedAfter: cutoff,
		Limit:        10000,
	})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list batches")
	}

	snap.BatchTotal = len(batches)
	for _, b := range batches {
		switch b.Status {
		case model.BatchStatusCompleted:
			snap.BatchDone++
		case model.BatchStatusPartial:
			snap.BatchPartial++
		case model.BatchStatusRunning:
			snap.BatchRunning++
		}
	}
	if finished := snap.BatchDone + snap.BatchPartial; finished > 0 {
		snap.PartialRate = float64(snap.BatchPartial) / float64(finished)
	}

	dispatches, err := c.store.ListDispatches(ctx, cutoff)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list dispatches")
	}

	snap.DispatchTotal = len(dispatches)
	var totalLatency int64
	for _, d := range dispatches {
		switch d.Status {
		case "success":
			snap.DispatchSuccess++
			totalLatency += d.LatencyMS
		case "failed":
			snap.DispatchFailed++
		}
	}
	if snap.DispatchSuccess > 0 {
		snap.DispatchAvgLatencyMS = totalLatency / int64(snap.DispatchSuccess)
	}

	dlqCount, err := c.store.CountDLQ(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: count dlq")
	}
	snap.DLQDepth = dlqCount

	return snap, nil
}
