package source

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sipwell/nutrition-pipeline/internal/config"
	"github.com/sipwell/nutrition-pipeline/internal/model"
	"github.com/sipwell/nutrition-pipeline/internal/resilience"
)

// HTTPProvider fetches brand feeds over HTTP with rate limiting and retries
// on transient failures.
type HTTPProvider struct {
	client  *http.Client
	limiter *rate.Limiter
	cfg     config.SourceConfig
}

// NewHTTPProvider creates an HTTPProvider from source configuration.
func NewHTTPProvider(cfg config.SourceConfig) *HTTPProvider {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	perSec := cfg.RatePerSec
	if perSec <= 0 {
		perSec = 5
	}
	return &HTTPProvider{
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(perSec), 1),
		cfg:     cfg,
	}
}

func (p *HTTPProvider) Fetch(ctx context.Context, brand config.BrandConfig, batchID string) ([]model.RawRecord, error) {
	if brand.Feed == "" {
		return nil, eris.Errorf("source: no feed configured for %s", brand.Name)
	}

	retryCfg := resilience.DefaultRetryConfig()
	if p.cfg.MaxRetries > 0 {
		retryCfg.MaxAttempts = p.cfg.MaxRetries
	}
	retryCfg.OnRetry = resilience.RetryLogger(brand.Name, "fetch_feed")

	body, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context) ([]byte, error) {
		return p.get(ctx, brand.Feed)
	})
	if err != nil {
		return nil, eris.Wrapf(err, "source: fetch feed for %s", brand.Name)
	}
	return decodeFeed(body, brand, batchID, brand.Feed)
}

func (p *HTTPProvider) get(ctx context.Context, url string) ([]byte, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "source: rate limit wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, eris.Wrap(err, "source: create request")
	}
	req.Header.Set("User-Agent", p.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "source: request feed")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("source: feed returned status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "source: read feed body")
	}
	return body, nil
}
