package pipeline

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sipwell/nutrition-pipeline/internal/config"
	"github.com/sipwell/nutrition-pipeline/internal/dispatch"
	"github.com/sipwell/nutrition-pipeline/internal/model"
	"github.com/sipwell/nutrition-pipeline/internal/source"
	"github.com/sipwell/nutrition-pipeline/internal/storage"
	"github.com/sipwell/nutrition-pipeline/internal/store"
)

// Pipeline orchestrates the bronze, silver and gold stages of one batch run.
type Pipeline struct {
	cfg        *config.Config
	store      store.Store
	storage    *storage.Store
	provider   source.Provider
	dispatcher *dispatch.Dispatcher
}

// New creates a Pipeline with all dependencies.
func New(
	cfg *config.Config,
	st store.Store,
	medallion *storage.Store,
	provider source.Provider,
	dispatcher *dispatch.Dispatcher,
) *Pipeline {
	return &Pipeline{
		cfg:        cfg,
		store:      st,
		storage:    medallion,
		provider:   provider,
		dispatcher: dispatcher,
	}
}

// Run executes one full batch: every configured brand through ingest,
// validation, normalization, snapshot and diff, then the cross-brand gold
// stage. A brand failure never crosses brand boundaries; the batch degrades
// to partial instead of failing. Gold stage errors are logged, never
// returned: the per-brand silver data is already durable by then.
func (p *Pipeline) Run(ctx context.Context, triggeredBy string) (*model.BatchResult, error) {
	batchID := time.Now().UTC().Format("20060102150405")
	log := zap.L().With(zap.String("batch_id", batchID))
	log.Info("pipeline: starting batch", zap.String("triggered_by", triggeredBy))

	run, err := p.store.CreateBatch(ctx, batchID, triggeredBy)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create batch")
	}

	result := &model.BatchResult{
		BatchID: batchID,
		Status:  model.BatchStatusCompleted,
	}

	// Stage tracking helper: runs one brand's stage chain, times it, and
	// records the outcome in the ledger and the batch result.
	trackBrand := func(brand config.BrandConfig, fn func() (int, error)) {
		start := time.Now()
		records, fnErr := fn()
		duration := time.Since(start).Milliseconds()

		brandResult := model.BrandResult{
			Brand:      brand.Name,
			Status:     model.BrandStageCompleted,
			Records:    records,
			DurationMS: duration,
		}
		if fnErr != nil {
			brandResult.Status = model.BrandStageFailed
			brandResult.Detail = fnErr.Error()
			result.Status = model.BatchStatusPartial
			log.Error("pipeline: brand stage failed",
				zap.String("brand", brand.Name),
				zap.Int64("duration_ms", duration),
				zap.Error(fnErr),
			)
		} else {
			log.Info("pipeline: brand stage complete",
				zap.String("brand", brand.Name),
				zap.Int("records", records),
				zap.Int64("duration_ms", duration),
			)
		}

		if saveErr := p.store.SaveBrandResult(ctx, run.ID, brandResult); saveErr != nil {
			log.Warn("pipeline: failed to save brand result", zap.Error(saveErr))
		}
		result.Brands = append(result.Brands, brandResult)
	}

	for _, brand := range p.cfg.Brands {
		brand := brand
		trackBrand(brand, func() (int, error) {
			return p.runBrand(ctx, brand, batchID)
		})
	}

	if saveErr := p.store.SaveBatchResult(ctx, run.ID, result); saveErr != nil {
		log.Warn("pipeline: failed to save batch result", zap.Error(saveErr))
	}

	// Gold consolidates whatever silver data exists, including snapshots
	// from earlier batches of brands that failed this time.
	p.runGold(ctx, batchID, log)

	log.Info("pipeline: batch finished", zap.String("status", string(result.Status)))
	return result, nil
}

// runBrand executes the bronze and silver stages for one brand and returns
// the number of canonical records persisted.
func (p *Pipeline) runBrand(ctx context.Context, brand config.BrandConfig, batchID string) (int, error) {
	log := zap.L().With(zap.String("brand", brand.Name), zap.String("batch_id", batchID))

	// Bronze: fetch and persist the raw batch append-only.
	raw, err := p.provider.Fetch(ctx, brand, batchID)
	if err != nil {
		return 0, eris.Wrapf(err, "pipeline: fetch %s", brand.Name)
	}
	// An empty feed fails the brand before anything is written: persisting
	// a zero-record snapshot would replace the brand's latest good data.
	if len(raw) == 0 {
		return 0, eris.Errorf("pipeline: empty ingest batch for %s", brand.Name)
	}
	if _, err := p.storage.WriteManifest(brand.Name, batchID, raw); err != nil {
		return 0, eris.Wrapf(err, "pipeline: write manifest for %s", brand.Name)
	}

	// Dedup and checksum findings are warnings, never drops.
	dedup := ValidateBatch(raw)
	if !dedup.Clean() {
		log.Warn("pipeline: bronze findings",
			zap.Strings("duplicates", dedup.Duplicates),
			zap.Strings("checksum_mismatches", dedup.ChecksumMismatches),
		)
	}

	// Silver: normalize, cross-check, snapshot.
	canonical, summary := NormalizeBatch(raw)

	report := RenderQualityReport(brand.Name, batchID, summary, dedup)
	if _, err := WriteReport(p.cfg.Storage.ReportsDir, brand.Name+"_quality_"+batchID+".md", report); err != nil {
		log.Warn("pipeline: failed to write quality report", zap.Error(err))
	}

	// The previous snapshot must be read before the latest pointer moves.
	var previous []model.CanonicalRecord
	prevSnap, err := p.storage.LoadLatest(brand.Name)
	switch {
	case err == nil:
		previous = prevSnap.Records
	case eris.Is(err, storage.ErrNoSnapshot):
		// First run for this brand.
	default:
		return 0, eris.Wrapf(err, "pipeline: load previous snapshot for %s", brand.Name)
	}

	if _, err := p.storage.PersistSnapshot(brand.Name, batchID, canonical); err != nil {
		return 0, eris.Wrapf(err, "pipeline: persist snapshot for %s", brand.Name)
	}

	diff := DiffSnapshots(previous, canonical)
	changeLog := RenderChangeLog(brand.Name, diff)
	if _, err := WriteReport(p.cfg.Storage.ReportsDir, brand.Name+"_changes_"+batchID+".md", changeLog); err != nil {
		log.Warn("pipeline: failed to write change log", zap.Error(err))
	}
	if !diff.FirstRun && !diff.Empty() {
		log.Info("pipeline: snapshot changed",
			zap.Int("new", len(diff.New)),
			zap.Int("removed", len(diff.Removed)),
			zap.Int("changed", len(diff.Changed)),
		)
	}

	return len(canonical), nil
}

// runGold merges the latest silver snapshot of every configured brand,
// applies the integrity policy, and dispatches and publishes the payload.
// Best effort throughout: every failure is logged and swallowed.
func (p *Pipeline) runGold(ctx context.Context, batchID string, log *zap.Logger) {
	var ordered []BrandRecords
	for _, brand := range p.cfg.Brands {
		snap, err := p.storage.LoadLatest(brand.Name)
		if err != nil {
			if !eris.Is(err, storage.ErrNoSnapshot) {
				log.Warn("pipeline: gold skipping brand",
					zap.String("brand", brand.Name), zap.Error(err))
			}
			continue
		}
		ordered = append(ordered, BrandRecords{Brand: brand.Name, Records: snap.Records})
	}
	if len(ordered) == 0 {
		log.Info("pipeline: gold skipped, no silver snapshots yet")
		return
	}

	merged := Merge(ordered)
	conflictReport := RenderConflictReport(merged.Conflicts)
	if _, err := WriteReport(p.cfg.Storage.ReportsDir, "conflicts_"+batchID+".md", conflictReport); err != nil {
		log.Warn("pipeline: failed to write conflict report", zap.Error(err))
	}

	valid, integrity := FilterRecords(merged.Records, p.cfg.SizeAllowlists())
	integrityReport := RenderIntegrityReport(integrity)
	if _, err := WriteReport(p.cfg.Storage.ReportsDir, "integrity_"+batchID+".md", integrityReport); err != nil {
		log.Warn("pipeline: failed to write integrity report", zap.Error(err))
	}
	log.Info("pipeline: gold integrity pass",
		zap.Int("inspected", integrity.Inspected),
		zap.Int("passed", integrity.Passed),
		zap.Int("blocked", len(integrity.Blocked)),
	)

	if len(valid) == 0 {
		log.Warn("pipeline: gold produced no valid records, skipping dispatch and publish")
		return
	}

	payload := BuildPayload(valid, p.cfg.BrandLabels(), time.Now().UTC())

	dispatchResult, dispatchErr := p.dispatcher.Dispatch(ctx, payload)
	record := model.DispatchRecord{
		BatchID:   batchID,
		Status:    string(dispatchResult.State),
		Attempts:  dispatchResult.Attempts,
		LatencyMS: dispatchResult.Latency.Milliseconds(),
	}
	if dispatchErr != nil {
		record.Error = dispatchErr.Error()
		log.Error("pipeline: dispatch failed", zap.Error(dispatchErr))

		if body, marshalErr := json.Marshal(payload); marshalErr == nil {
			dlqErr := p.store.EnqueueDLQ(ctx, model.DLQEntry{
				BatchID:  batchID,
				Payload:  body,
				Error:    dispatchErr.Error(),
				Attempts: dispatchResult.Attempts,
			})
			if dlqErr != nil {
				log.Error("pipeline: failed to park payload in dlq", zap.Error(dlqErr))
			}
		}
	}
	if err := p.store.RecordDispatch(ctx, record); err != nil {
		log.Warn("pipeline: failed to record dispatch", zap.Error(err))
	}

	published := Sanitize(payload)
	path, err := p.storage.PublishGold(published)
	if err != nil {
		log.Error("pipeline: failed to publish gold payload", zap.Error(err))
		return
	}
	log.Info("pipeline: gold published",
		zap.String("path", path),
		zap.Int("brands", len(published.Brands)),
	)
}
