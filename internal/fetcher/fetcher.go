// Package fetcher retrieves page bodies through the rotating proxy
// executor, adding per-host rate limiting, a body size cap, and charset
// normalization. Retry policy lives entirely in the executor; this layer
// never re-issues a request.
package fetcher

import (
	"context"
	"io"
	"net/url"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/pagecrawl/internal/model"
	"github.com/sells-group/pagecrawl/internal/proxy"
)

// Options configures the page fetcher.
type Options struct {
	Strategy    proxy.Strategy
	MaxRetries  int
	UserAgent   string
	MaxBodyKB   int
	RatePerHost rate.Limit
	Burst       int
}

// Fetcher fetches pages through a proxy.Executor.
type Fetcher struct {
	exec *proxy.Executor
	opts Options

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// New creates a Fetcher over the given executor.
func New(exec *proxy.Executor, opts Options) *Fetcher {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.Strategy == "" {
		opts.Strategy = proxy.Sequential
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "Mozilla/5.0 (compatible; pagecrawl/1.0)"
	}
	if opts.MaxBodyKB <= 0 {
		opts.MaxBodyKB = 2048
	}
	if opts.RatePerHost <= 0 {
		opts.RatePerHost = 2
	}
	if opts.Burst <= 0 {
		opts.Burst = 4
	}
	return &Fetcher{
		exec:     exec,
		opts:     opts,
		limiters: make(map[string]*rate.Limiter),
	}
}

// limiterFor returns the rate limiter for the URL's host, creating one on
// first sight.
func (f *Fetcher) limiterFor(rawURL string) *rate.Limiter {
	host := ""
	if u, err := url.Parse(rawURL); err == nil {
		host = u.Host
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	lim, ok := f.limiters[host]
	if !ok {
		lim = rate.NewLimiter(f.opts.RatePerHost, f.opts.Burst)
		f.limiters[host] = lim
	}
	return lim
}

// FetchPage retrieves rawURL through the proxy pool and returns its body
// decoded to UTF-8. Non-2xx statuses are returned as errors here: the
// executor already recorded the attempt as a success (a response came
// back), but the page is not usable for extraction.
func (f *Fetcher) FetchPage(ctx context.Context, rawURL string) (*model.Document, error) {
	if err := f.limiterFor(rawURL).Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "fetcher: rate limiter wait")
	}

	start := time.Now()
	resp, endpoint, err := f.exec.Do(ctx, rawURL, f.opts.Strategy, f.opts.MaxRetries,
		proxy.WithHeader("User-Agent", f.opts.UserAgent),
		proxy.WithHeader("Accept", "text/html,application/xhtml+xml"),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: fetch %s", rawURL)
	}
	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(io.LimitReader(resp.Body, int64(f.opts.MaxBodyKB)*1024))
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: read body %s", rawURL)
	}

	if resp.StatusCode >= 300 {
		return nil, eris.Errorf("fetcher: status %d from %s", resp.StatusCode, rawURL)
	}

	body, err := decodeBody(raw, resp.Header.Get("Content-Type"))
	if err != nil {
		zap.L().Warn("charset decode failed, keeping raw body",
			zap.String("url", rawURL),
			zap.Error(err),
		)
		body = string(raw)
	}

	zap.L().Info("fetched page",
		zap.String("url", rawURL),
		zap.String("endpoint", string(endpoint)),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(raw)),
	)

	return &model.Document{
		URL:        rawURL,
		StatusCode: resp.StatusCode,
		Body:       body,
		Endpoint:   string(endpoint),
		Elapsed:    time.Since(start),
		FetchedAt:  time.Now().UTC(),
	}, nil
}
