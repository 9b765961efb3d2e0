package proxy

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// startProxy runs an httptest server that plays the role of a forward
// proxy: plain-HTTP requests arrive with an absolute URI and it answers
// directly. Returns the server and its endpoint string.
func startProxy(t *testing.T, hits *atomic.Int64) (*httptest.Server, Endpoint) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "proxied ok")
	}))
	t.Cleanup(srv.Close)
	return srv, Endpoint(srv.URL)
}

// deadEndpoint returns an endpoint on a port that was just closed, so
// connections are refused.
func deadEndpoint(t *testing.T) Endpoint {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := l.Addr().String()
	_ = l.Close()
	return Endpoint("http://" + addr)
}

func TestDo_EmptyPoolFailsWithoutAttempting(t *testing.T) {
	var hits atomic.Int64
	_, _ = startProxy(t, &hits)

	x := NewExecutor(NewPool(nil))
	_, endpoint, err := x.Do(context.Background(), "http://target.test/", Sequential, 3)
	if !errors.Is(err, ErrNoEndpoints) {
		t.Fatalf("expected ErrNoEndpoints, got %v", err)
	}
	if endpoint != "" {
		t.Errorf("expected no endpoint, got %q", endpoint)
	}
	if hits.Load() != 0 {
		t.Errorf("expected zero network calls, got %d", hits.Load())
	}
}

func TestDo_SuccessReturnsResponseAndEndpoint(t *testing.T) {
	_, endpoint := startProxy(t, nil)

	pool := NewPool([]Endpoint{endpoint})
	x := NewExecutor(pool)

	resp, used, err := x.Do(context.Background(), "http://target.test/", Sequential, 3,
		WithHeader("User-Agent", "pagecrawl-test"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if used != endpoint {
		t.Errorf("used endpoint = %q, want %q", used, endpoint)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "proxied ok" {
		t.Errorf("body = %q", body)
	}

	st, _ := pool.StatsFor(endpoint)
	if st.Successes != 1 || st.Failures != 0 {
		t.Errorf("stats = %d/%d, want 1/0", st.Successes, st.Failures)
	}
	if st.AvgResponseSecs <= 0 {
		t.Error("expected positive recorded latency")
	}
	if st.LastUsedAt.IsZero() {
		t.Error("expected LastUsedAt stamp")
	}
}

func TestDo_ExhaustsRetriesAgainstFailingEndpoint(t *testing.T) {
	endpoint := deadEndpoint(t)
	pool := NewPool([]Endpoint{endpoint})
	x := NewExecutor(pool, WithTimeout(2*time.Second))

	_, used, err := x.Do(context.Background(), "http://target.test/", Sequential, 3)
	if !errors.Is(err, ErrRetriesExhausted) {
		t.Fatalf("expected ErrRetriesExhausted, got %v", err)
	}
	if used != "" {
		t.Errorf("exhaustion must not leak an endpoint, got %q", used)
	}

	st, _ := pool.StatsFor(endpoint)
	if st.Failures != 3 {
		t.Errorf("failures = %d, want exactly 3 (one per attempt)", st.Failures)
	}
	if st.Successes != 0 {
		t.Errorf("successes = %d, want 0", st.Successes)
	}
}

func TestDo_SecondAttemptSucceedsNoThirdMade(t *testing.T) {
	bad := deadEndpoint(t)
	var hits atomic.Int64
	_, good := startProxy(t, &hits)

	pool := NewPool([]Endpoint{bad, good})
	x := NewExecutor(pool, WithTimeout(2*time.Second))

	resp, used, err := x.Do(context.Background(), "http://target.test/", Sequential, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if used != good {
		t.Errorf("used = %q, want the good endpoint", used)
	}
	if hits.Load() != 1 {
		t.Errorf("good proxy hit %d times, want 1 (no third attempt)", hits.Load())
	}

	badStats, _ := pool.StatsFor(bad)
	goodStats, _ := pool.StatsFor(good)
	if badStats.Failures != 1 || badStats.Successes != 0 {
		t.Errorf("bad stats = %d/%d, want 0/1", badStats.Successes, badStats.Failures)
	}
	if goodStats.Successes != 1 || goodStats.Failures != 0 {
		t.Errorf("good stats = %d/%d, want 1/0", goodStats.Successes, goodStats.Failures)
	}
}

func TestDo_UnclassifiedErrorPropagatesWithoutStats(t *testing.T) {
	_, endpoint := startProxy(t, nil)
	pool := NewPool([]Endpoint{endpoint})
	x := NewExecutor(pool)

	// A target URL that cannot form a request at all: not a proxy failure.
	_, _, err := x.Do(context.Background(), "://missing-scheme", Sequential, 3)
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ErrRetriesExhausted) || errors.Is(err, ErrNoEndpoints) {
		t.Fatalf("unclassified error must propagate as itself, got %v", err)
	}

	st, _ := pool.StatsFor(endpoint)
	if st.Successes+st.Failures != 0 {
		t.Errorf("unclassified failure must not record outcomes, got %d/%d",
			st.Successes, st.Failures)
	}
}

func TestDo_CallerCancellationIsNotChargedToEndpoint(t *testing.T) {
	// A proxy that never answers within the test budget.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)
	endpoint := Endpoint(srv.URL)

	pool := NewPool([]Endpoint{endpoint})
	x := NewExecutor(pool, WithTimeout(30*time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, _, err := x.Do(ctx, "http://target.test/", Sequential, 3)
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ErrRetriesExhausted) {
		t.Fatalf("caller cancellation must bypass retries, got %v", err)
	}

	st, _ := pool.StatsFor(endpoint)
	if st.Failures != 0 {
		t.Errorf("cancellation must not count as endpoint failure, got %d", st.Failures)
	}
}

func TestDo_SingleEndpointPoolRetriesSameEndpoint(t *testing.T) {
	endpoint := deadEndpoint(t)
	pool := NewPool([]Endpoint{endpoint})
	x := NewExecutor(pool, WithTimeout(2*time.Second))

	_, _, err := x.Do(context.Background(), "http://target.test/", Performance, 2)
	if !errors.Is(err, ErrRetriesExhausted) {
		t.Fatalf("expected ErrRetriesExhausted, got %v", err)
	}
	st, _ := pool.StatsFor(endpoint)
	if st.Failures != 2 {
		t.Errorf("failures = %d, want 2", st.Failures)
	}
}

func TestDo_NonOKStatusIsStillSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)
	endpoint := Endpoint(srv.URL)

	pool := NewPool([]Endpoint{endpoint})
	x := NewExecutor(pool)

	resp, _, err := x.Do(context.Background(), "http://target.test/", Sequential, 1)
	if err != nil {
		t.Fatalf("a response is a response, regardless of status: %v", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}

	st, _ := pool.StatsFor(endpoint)
	if st.Successes != 1 {
		t.Errorf("successes = %d, want 1", st.Successes)
	}
}
