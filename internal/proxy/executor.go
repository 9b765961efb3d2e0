package proxy

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrRetriesExhausted is returned by Do when every allowed attempt failed
// with a classified proxy failure. The caller gets no response and no
// endpoint reference.
var ErrRetriesExhausted = errors.New("proxy: all retries exhausted")

// DefaultTimeout bounds each individual request attempt.
const DefaultTimeout = 10 * time.Second

// RequestOption mutates the outgoing request before it is sent. Options
// are forwarded to every attempt unchanged.
type RequestOption func(*http.Request)

// WithHeader sets a header on the outgoing request.
func WithHeader(key, value string) RequestOption {
	return func(r *http.Request) { r.Header.Set(key, value) }
}

// ExecutorOption configures an Executor at construction.
type ExecutorOption func(*Executor)

// WithTimeout overrides the per-attempt timeout.
func WithTimeout(d time.Duration) ExecutorOption {
	return func(x *Executor) { x.timeout = d }
}

// Executor issues GET requests through pool endpoints with bounded
// retries. One attempt is outstanding at a time per Do call; there is no
// overall deadline across the retry loop beyond the caller's context, so
// the worst case is roughly maxRetries times the per-attempt timeout.
type Executor struct {
	pool    *Pool
	timeout time.Duration

	mu      sync.Mutex
	clients map[Endpoint]*http.Client
}

// NewExecutor wraps the pool with a request executor.
func NewExecutor(pool *Pool, opts ...ExecutorOption) *Executor {
	x := &Executor{
		pool:    pool,
		timeout: DefaultTimeout,
		clients: make(map[Endpoint]*http.Client),
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// Pool returns the endpoint pool the executor selects from.
func (x *Executor) Pool() *Pool { return x.pool }

// attemptOutcome is the closed classification set the transport adapter
// reports. The retry loop switches on this tag instead of sniffing error
// types at the call site.
type attemptOutcome int

const (
	// attemptOK: a response came back; any status code counts.
	attemptOK attemptOutcome = iota
	// attemptProxyFailure: the connection to or through the proxy failed
	// (transport error, timeout, malformed endpoint). Recorded against the
	// endpoint and retried.
	attemptProxyFailure
	// attemptFatal: anything else, e.g. an unparsable target URL or caller
	// cancellation. Propagated immediately, never recorded, never retried.
	attemptFatal
)

// Do requests rawURL through pool endpoints until one attempt succeeds or
// maxRetries attempts have failed. On success it returns the response
// (body unread, caller closes) and the endpoint that served it.
//
// Failed attempts stay visible in the pool stats even when Do itself
// returns an error; there is no rollback.
func (x *Executor) Do(ctx context.Context, rawURL string, strategy Strategy, maxRetries int, opts ...RequestOption) (*http.Response, Endpoint, error) {
	if x.pool.Len() == 0 {
		return nil, "", eris.Wrap(ErrNoEndpoints, "proxy: execute")
	}

	for attempt := 0; attempt < maxRetries; attempt++ {
		endpoint, err := x.pool.Select(strategy)
		if err != nil {
			return nil, "", eris.Wrap(err, "proxy: execute")
		}
		x.pool.MarkUsed(endpoint)

		start := time.Now()
		resp, outcome, err := x.attempt(ctx, rawURL, endpoint, opts)
		elapsed := time.Since(start)

		switch outcome {
		case attemptOK:
			x.pool.RecordOutcome(endpoint, true, elapsed)
			zap.L().Debug("request succeeded through proxy",
				zap.String("endpoint", string(endpoint)),
				zap.Int("status", resp.StatusCode),
				zap.Duration("elapsed", elapsed),
			)
			return resp, endpoint, nil

		case attemptProxyFailure:
			x.pool.RecordOutcome(endpoint, false, 0)
			zap.L().Warn("proxy attempt failed",
				zap.String("endpoint", string(endpoint)),
				zap.String("url", rawURL),
				zap.Int("attempt", attempt+1),
				zap.Error(err),
			)

		default:
			return nil, "", eris.Wrapf(err, "proxy: request %s", rawURL)
		}
	}

	return nil, "", eris.Wrapf(ErrRetriesExhausted, "proxy: request %s after %d attempts", rawURL, maxRetries)
}

// attempt is the transport adapter: it issues a single GET through one
// endpoint and classifies the result into the closed outcome set.
func (x *Executor) attempt(ctx context.Context, rawURL string, endpoint Endpoint, opts []RequestOption) (*http.Response, attemptOutcome, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		// A target URL that cannot even form a request is a caller bug,
		// not a proxy problem.
		return nil, attemptFatal, err
	}
	for _, opt := range opts {
		opt(req)
	}

	client, err := x.clientFor(endpoint)
	if err != nil {
		// Malformed endpoint strings are accepted at load time and only
		// surface here, as a failure charged to that endpoint.
		return nil, attemptProxyFailure, err
	}

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, attemptFatal, ctx.Err()
		}
		return nil, attemptProxyFailure, err
	}
	return resp, attemptOK, nil
}

// clientFor returns the cached HTTP client routed through the endpoint.
func (x *Executor) clientFor(e Endpoint) (*http.Client, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if c, ok := x.clients[e]; ok {
		return c, nil
	}
	proxyURL, err := e.URL()
	if err != nil {
		return nil, err
	}
	c := &http.Client{
		Timeout: x.timeout,
		Transport: &http.Transport{
			Proxy: http.ProxyURL(proxyURL),
		},
	}
	x.clients[e] = c
	return c, nil
}
