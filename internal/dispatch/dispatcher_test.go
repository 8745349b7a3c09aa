package dispatch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sipwell/nutrition-pipeline/internal/config"
	"github.com/sipwell/nutrition-pipeline/internal/model"
)

func newTestDispatcher(cfg config.DispatchConfig, events Events) *Dispatcher {
	d := New(cfg, events)
	d.sleep = func(ctx context.Context, _ time.Duration) {}
	return d
}

func testPayload() model.DeliveryPayload {
	return model.DeliveryPayload{GeneratedAt: time.Now().UTC()}
}

func TestDispatch_DryRun(t *testing.T) {
	d := newTestDispatcher(config.DispatchConfig{MaxAttempts: 3}, nil)

	result, err := d.Dispatch(context.Background(), testPayload())
	require.NoError(t, err)
	assert.Equal(t, StateSuccess, result.State)
	assert.Equal(t, 1, result.Attempts)
}

func TestDispatch_RetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := newTestDispatcher(config.DispatchConfig{Endpoint: srv.URL, MaxAttempts: 5}, nil)

	result, err := d.Dispatch(context.Background(), testPayload())
	require.NoError(t, err)
	assert.Equal(t, StateSuccess, result.State)
	assert.Equal(t, 3, result.Attempts)
	assert.EqualValues(t, 3, calls.Load())
}

func TestDispatch_ExhaustsAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	d := newTestDispatcher(config.DispatchConfig{Endpoint: srv.URL, MaxAttempts: 3}, nil)

	result, err := d.Dispatch(context.Background(), testPayload())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed after 3 attempts")
	assert.Equal(t, StateFailed, result.State)
	assert.Equal(t, 3, result.Attempts)
	assert.EqualValues(t, 3, calls.Load())
}

func TestDispatch_SendsHeaders(t *testing.T) {
	var gotAuth, gotType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := newTestDispatcher(config.DispatchConfig{
		Endpoint:    srv.URL,
		Token:       "secret-token",
		MaxAttempts: 1,
	}, nil)

	_, err := d.Dispatch(context.Background(), testPayload())
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret-token", gotAuth)
	assert.Equal(t, "application/json", gotType)
}

type recordingEvents struct {
	succeededAttempts int
	failedAttempts    []int
}

func (r *recordingEvents) DispatchSucceeded(attempts int, _ time.Duration) {
	r.succeededAttempts = attempts
}

func (r *recordingEvents) DispatchFailed(attempt int, _ error) {
	r.failedAttempts = append(r.failedAttempts, attempt)
}

func TestDispatch_NotifiesEvents(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	events := &recordingEvents{}
	d := newTestDispatcher(config.DispatchConfig{Endpoint: srv.URL, MaxAttempts: 3}, events)

	_, err := d.Dispatch(context.Background(), testPayload())
	require.NoError(t, err)
	assert.Equal(t, []int{1}, events.failedAttempts)
	assert.Equal(t, 2, events.succeededAttempts)
}

func TestBackoff_Capped(t *testing.T) {
	assert.Equal(t, 2*time.Second, backoff(1))
	assert.Equal(t, 4*time.Second, backoff(2))
	assert.Equal(t, 5*time.Second, backoff(3))
	assert.Equal(t, 5*time.Second, backoff(10))
}
