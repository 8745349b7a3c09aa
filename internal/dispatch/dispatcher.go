// Package dispatch delivers the gold payload to the downstream consumer
// with bounded retry, capped exponential backoff, and latency SLO
// reporting. Without a configured endpoint it runs in dry-run mode, the
// default safe mode.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sipwell/nutrition-pipeline/internal/config"
	"github.com/sipwell/nutrition-pipeline/internal/model"
)

// State tracks a dispatch through its lifecycle:
// pending → attempting → {success | retrying | failed}.
type State string

const (
	StatePending    State = "pending"
	StateAttempting State = "attempting"
	StateRetrying   State = "retrying"
	StateSuccess    State = "success"
	StateFailed     State = "failed"
)

// backoffCap bounds the retry sleep: min(2^attempt, 5) seconds.
const backoffCap = 5 * time.Second

// Events receives dispatch lifecycle notifications. Implementations must
// tolerate being called from the dispatcher's blocking retry loop.
type Events interface {
	DispatchSucceeded(attempts int, latency time.Duration)
	DispatchFailed(attempt int, err error)
}

// Result reports the final outcome of a dispatch.
type Result struct {
	State    State
	Attempts int
	Latency  time.Duration
}

// Dispatcher sends serialized delivery payloads downstream.
type Dispatcher struct {
	cfg    config.DispatchConfig
	client *http.Client
	events Events

	// sleep is swapped out by tests to avoid real backoff waits.
	sleep func(ctx context.Context, d time.Duration)
}

// New creates a Dispatcher. events may be nil.
func New(cfg config.DispatchConfig, events Events) *Dispatcher {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	return &Dispatcher{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		events: events,
		sleep:  sleepCtx,
	}
}

// Dispatch serializes the payload and delivers it, retrying failed attempts
// with a capped exponential backoff up to the configured maximum. The retry
// loop blocks the calling goroutine for the backoff duration. Exhausting
// all attempts returns a fatal error carrying the attempt count and last
// cause alongside the failed Result.
func (d *Dispatcher) Dispatch(ctx context.Context, payload model.DeliveryPayload) (Result, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Result{State: StateFailed}, eris.Wrap(err, "dispatch: marshal payload")
	}

	log := zap.L().With(zap.String("component", "dispatch"))
	state := StatePending

	var lastErr error
	attempts := 0
	for attempts < d.cfg.MaxAttempts {
		attempts++
		state = StateAttempting

		start := time.Now()
		err := d.send(ctx, body)
		latency := time.Since(start)

		if err == nil {
			state = StateSuccess
			if d.events != nil {
				d.events.DispatchSucceeded(attempts, latency)
			}
			log.Info("dispatch: delivered",
				zap.Int("attempts", attempts),
				zap.Duration("latency", latency),
				zap.String("endpoint", d.endpointLabel()),
			)
			return Result{State: state, Attempts: attempts, Latency: latency}, nil
		}

		lastErr = err
		if d.events != nil {
			d.events.DispatchFailed(attempts, err)
		}
		log.Warn("dispatch: attempt failed",
			zap.Int("attempt", attempts),
			zap.Error(err),
		)

		if attempts >= d.cfg.MaxAttempts {
			break
		}
		state = StateRetrying
		d.sleep(ctx, backoff(attempts))
	}

	state = StateFailed
	return Result{State: state, Attempts: attempts},
		eris.Wrapf(lastErr, "dispatch: failed after %d attempts", attempts)
}

// send performs one delivery attempt. With no endpoint configured it logs
// the payload size and succeeds (dry run).
func (d *Dispatcher) send(ctx context.Context, body []byte) error {
	if d.cfg.Endpoint == "" {
		zap.L().Info("dispatch: dry run", zap.Int("payload_bytes", len(body)))
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return eris.Wrap(err, "dispatch: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	if d.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+d.cfg.Token)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "dispatch: send")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("dispatch: endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

func (d *Dispatcher) endpointLabel() string {
	if d.cfg.Endpoint == "" {
		return "dry-run"
	}
	return d.cfg.Endpoint
}

// backoff computes the sleep before the next attempt: min(2^attempt, 5)
// seconds for the attempt that just failed.
func backoff(attempt int) time.Duration {
	d := time.Duration(1<<uint(attempt)) * time.Second
	if d > backoffCap {
		return backoffCap
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
