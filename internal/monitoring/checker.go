package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sipwell/nutrition-pipeline/internal/config"
)

// Checker periodically samples pipeline health from the run ledger and pushes
// breached thresholds through the alerter. It is the background counterpart
// of the one-shot monitor command.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	cfg       config.MonitoringConfig
}

// NewChecker creates a background pipeline health checker.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	return &Checker{
		collector: collector,
		alerter:   alerter,
		cfg:       cfg,
	}
}

// Run checks once immediately, then on every interval tick until ctx is
// cancelled. An early check matters here: a serve process restarted after a
// bad batch should notice the backlog before the first tick.
func (c *Checker) Run(ctx context.Context) {
	interval := time.Duration(c.cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("starting pipeline health checker",
		zap.Duration("interval", interval),
		zap.Int("lookback_hours", c.cfg.LookbackWindowHours),
	)

	c.CheckOnce(ctx, log)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("pipeline health checker stopped")
			return
		case <-ticker.C:
			c.CheckOnce(ctx, log)
		}
	}
}

// CheckOnce runs a single collect-evaluate-send cycle and returns the number
// of alerts triggered.
func (c *Checker) CheckOnce(ctx context.Context, log *zap.Logger) int {
	snap, err := c.collector.Collect(ctx, c.cfg.LookbackWindowHours)
	if err != nil {
		log.Error("monitoring: failed to collect metrics", zap.Error(err))
		return 0
	}

	alerts := c.alerter.Evaluate(snap)
	if len(alerts) == 0 {
		log.Debug("monitoring: pipeline healthy",
			zap.Int("batches", snap.BatchTotal),
			zap.Float64("partial_rate", snap.PartialRate),
			zap.Int("dlq_depth", snap.DLQDepth),
		)
		return 0
	}

	sent := c.alerter.SendAlerts(ctx, alerts)
	log.Warn("monitoring: pipeline health check flagged issues",
		zap.Int("alerts_triggered", len(alerts)),
		zap.Int("alerts_sent", sent),
		zap.Int("batch_partial", snap.BatchPartial),
		zap.Int("dispatch_failed", snap.DispatchFailed),
		zap.Int64("dispatch_avg_latency_ms", snap.DispatchAvgLatencyMS),
		zap.Int("dlq_depth", snap.DLQDepth),
	)
	return len(alerts)
}
