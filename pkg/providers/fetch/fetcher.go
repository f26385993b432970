// Package fetch implements the data-fetch collaborator over HTTP: web search,
// plain HTTP requests, RSS/Atom feeds and Coinbase spot prices.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/nova-hud/nova/pkg/humanize"
	"github.com/nova-hud/nova/pkg/models"
	"github.com/nova-hud/nova/pkg/protocol"
)

const (
	DefaultSearchEndpoint  = "https://api.search.brave.com/res/v1/web/search"
	DefaultCoinbaseBaseURL = "https://api.coinbase.com"
	DefaultTimeout         = 15 * time.Second
	DefaultUserAgent       = "nova-mission-engine/1.0"

	maxBodyBytes   = 2 << 20
	defaultResults = 10
	retryAttempts  = 3
)

var (
	// ErrUnsupportedKind is returned for a fetch kind this fetcher does not serve.
	ErrUnsupportedKind = errors.New("unsupported fetch kind")
	// ErrSearchNotConfigured is returned for web searches without an API key.
	ErrSearchNotConfigured = errors.New("web search is not configured")
	// ErrServerError marks a 5xx response that exhausted its retries.
	ErrServerError = errors.New("server error during fetch")
)

// Config holds the endpoints and credentials of the upstream services.
type Config struct {
	SearchEndpoint  string
	SearchAPIKey    string
	CoinbaseBaseURL string
	Timeout         time.Duration
	UserAgent       string
	RetryDelay      time.Duration
}

// Fetcher serves every protocol.FetchKind.
type Fetcher struct {
	cfg       Config
	client    *http.Client
	humanizer *humanize.Humanizer
	logger    *slog.Logger
}

// Option customises a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient replaces the default client.
func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) {
		f.client = client
	}
}

func New(cfg Config, logger *slog.Logger, opts ...Option) *Fetcher {
	if cfg.SearchEndpoint == "" {
		cfg.SearchEndpoint = DefaultSearchEndpoint
	}

	if cfg.CoinbaseBaseURL == "" {
		cfg.CoinbaseBaseURL = DefaultCoinbaseBaseURL
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}

	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}

	f := &Fetcher{
		cfg:       cfg,
		client:    &http.Client{Timeout: cfg.Timeout},
		humanizer: humanize.New(),
		logger:    logger.With("module", "fetcher"),
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

func (f *Fetcher) Fetch(ctx context.Context, req protocol.FetchRequest) (models.NodeOutput, error) {
	switch req.Kind {
	case protocol.FetchWebSearch:
		return f.search(ctx, req)
	case protocol.FetchHTTP:
		return f.httpRequest(ctx, req)
	case protocol.FetchRSS:
		return f.feed(ctx, req)
	case protocol.FetchCoinbase:
		return f.spotPrices(ctx, req)
	default:
		return models.NodeOutput{}, fmt.Errorf("%w: %q", ErrUnsupportedKind, req.Kind)
	}
}

// do sends the request built by build, retrying transport errors and 5xx
// responses. The caller owns the returned body.
func (f *Fetcher) do(ctx context.Context, build func(context.Context) (*http.Request, error)) (*http.Response, error) {
	var lastErr error

	for attempt := 1; attempt <= retryAttempts; attempt++ {
		if attempt > 1 {
			f.logger.DebugContext(ctx, "Retrying fetch", "attempt", attempt, "error", lastErr)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(f.cfg.RetryDelay):
			}
		}

		req, err := build(ctx)
		if err != nil {
			return nil, err
		}

		req.Header.Set("User-Agent", f.cfg.UserAgent)

		resp, err := f.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request failed: %w", err)
			if ctx.Err() != nil {
				return nil, lastErr
			}

			continue
		}

		if resp.StatusCode >= http.StatusInternalServerError && attempt < retryAttempts {
			drain(resp)

			lastErr = fmt.Errorf("%w: status %d", ErrServerError, resp.StatusCode)

			continue
		}

		return resp, nil
	}

	return nil, fmt.Errorf("all retry attempts failed, last error: %w", lastErr)
}

func (f *Fetcher) get(ctx context.Context, url string, headers map[string]string) (*http.Response, error) {
	return f.do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to build request: %w", err)
		}

		for k, v := range headers {
			req.Header.Set(k, v)
		}

		return req, nil
	})
}

func readBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return body, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
	_ = resp.Body.Close()
}

func limit(n, fallback int) int {
	if n <= 0 {
		return fallback
	}

	return n
}
