package main

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/sells-group/pagecrawl/internal/fetcher"
	"github.com/sells-group/pagecrawl/internal/proxy"
	"github.com/sells-group/pagecrawl/internal/store"
)

// resolveStrategy parses the --strategy flag, falling back to the
// configured default when the flag is unset.
func resolveStrategy(flag string) (proxy.Strategy, error) {
	if flag == "" {
		flag = cfg.Proxy.Strategy
	}
	return proxy.ParseStrategy(flag)
}

// initPool loads the endpoint file configured under proxy.file. A missing
// file is not an error; it yields a template file and an empty pool.
func initPool() (*proxy.Pool, error) {
	return proxy.LoadFile(cfg.Proxy.File)
}

func initExecutor(pool *proxy.Pool) *proxy.Executor {
	timeout := time.Duration(cfg.Proxy.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = proxy.DefaultTimeout
	}
	return proxy.NewExecutor(pool, proxy.WithTimeout(timeout))
}

func initFetcher(exec *proxy.Executor, strategy proxy.Strategy) *fetcher.Fetcher {
	return fetcher.New(exec, fetcher.Options{
		Strategy:    strategy,
		MaxRetries:  cfg.Proxy.MaxRetries,
		UserAgent:   cfg.Fetch.UserAgent,
		MaxBodyKB:   cfg.Fetch.MaxBodyKB,
		RatePerHost: rate.Limit(cfg.Fetch.RatePerHost),
		Burst:       cfg.Fetch.Burst,
	})
}

func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}
