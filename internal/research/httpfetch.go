package research

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Compile-time interface check.
var _ Fetcher = (*HTTPFetcher)(nil)

// HTTPFetcherConfig tunes a live fetcher. Zero values fall back to the
// defaults documented on each field.
type HTTPFetcherConfig struct {
	// Timeout bounds a single request. Default 30s.
	Timeout time.Duration
	// RequestsPerSecond throttles outbound requests across all workers.
	// Default 3.
	RequestsPerSecond float64
	// Burst is the rate limiter's burst allowance. Default 3.
	Burst int
	// UserAgent identifies the tool to the sites it fetches.
	UserAgent string
	// MaxBodyBytes caps how much of a response body is retained.
	// Default 2 MiB.
	MaxBodyBytes int64
}

// HTTPFetcher retrieves source content over HTTP. All workers share one
// rate limiter, so the pipeline's fan-out width does not multiply the
// request rate.
type HTTPFetcher struct {
	client       *http.Client
	limiter      *rate.Limiter
	userAgent    string
	maxBodyBytes int64
}

// NewHTTPFetcher returns a fetcher with the given tuning.
func NewHTTPFetcher(cfg HTTPFetcherConfig) *HTTPFetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 3
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 3
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "dossier-research/1.0"
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 2 << 20
	}
	return &HTTPFetcher{
		client:       &http.Client{Timeout: cfg.Timeout},
		limiter:      rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		userAgent:    cfg.UserAgent,
		maxBodyBytes: cfg.MaxBodyBytes,
	}
}

// FetchContent implements Fetcher. Server-side failures (5xx) are retried
// once after a short backoff; client errors are not, since repeating a 404
// cannot help.
func (f *HTTPFetcher) FetchContent(ctx context.Context, src Source) (Document, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return Document{}, fmt.Errorf("research: rate limit wait for %s: %w", src.URL, err)
	}

	body, err := f.get(ctx, src.URL)
	if err != nil {
		var retryable *serverError
		if !errors.As(err, &retryable) {
			return Document{}, err
		}
		select {
		case <-time.After(500 * time.Millisecond):
		case <-ctx.Done():
			return Document{}, fmt.Errorf("research: fetch %s: %w", src.URL, ctx.Err())
		}
		if body, err = f.get(ctx, src.URL); err != nil {
			return Document{}, err
		}
	}

	return Document{
		URL:       src.URL,
		Title:     src.Title,
		Content:   string(body),
		FetchedAt: time.Now().UTC(),
	}, nil
}

// serverError marks a 5xx response, the only failure class worth retrying.
type serverError struct {
	url    string
	status int
}

func (e *serverError) Error() string {
	return fmt.Sprintf("research: fetch %s: server returned %d", e.url, e.status)
}

func (f *HTTPFetcher) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("research: build request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("research: fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, &serverError{url: url, status: resp.StatusCode}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("research: fetch %s: unexpected status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("research: read body of %s: %w", url, err)
	}
	return body, nil
}
