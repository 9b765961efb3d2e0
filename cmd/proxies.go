package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/pagecrawl/internal/proxy"
)

var proxiesCmd = &cobra.Command{
	Use:   "proxies",
	Short: "Inspect and probe the proxy pool",
}

// -- proxies list --

var proxiesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured endpoints and their stats",
	RunE: func(cmd *cobra.Command, _ []string) error {
		pool, err := initPool()
		if err != nil {
			return err
		}
		if pool.Len() == 0 {
			fmt.Fprintf(os.Stderr, "No endpoints configured. Add proxies to %s.\n", cfg.Proxy.File)
			return nil
		}
		formatProxyStats(os.Stdout, pool.Snapshot())
		return nil
	},
}

// -- proxies check --

var proxiesCheckConcurrency int

var proxiesCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Probe every endpoint against the configured probe URL",
	Long:  "Issues one GET per endpoint through that endpoint only, records the outcome, and prints a health table. Dead proxies show up as failures.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		pool, err := initPool()
		if err != nil {
			return err
		}
		if pool.Len() == 0 {
			fmt.Fprintf(os.Stderr, "No endpoints configured. Add proxies to %s.\n", cfg.Proxy.File)
			return nil
		}

		probeAll(ctx, pool)
		formatProxyStats(os.Stdout, pool.Snapshot())
		return nil
	},
}

// probeAll checks every distinct endpoint concurrently. Each probe runs
// through a single-endpoint pool so selection cannot route around a dead
// proxy.
func probeAll(ctx context.Context, pool *proxy.Pool) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(proxiesCheckConcurrency)

	for _, row := range pool.Snapshot() {
		g.Go(func() error {
			single := proxy.NewExecutor(
				proxy.NewPool([]proxy.Endpoint{row.Endpoint}),
				proxy.WithTimeout(time.Duration(cfg.Proxy.TimeoutSecs)*time.Second),
			)

			start := time.Now()
			resp, _, err := single.Do(gctx, cfg.Proxy.ProbeURL, proxy.Sequential, 1)
			if err != nil {
				pool.RecordOutcome(row.Endpoint, false, 0)
				zap.L().Warn("probe failed",
					zap.String("endpoint", string(row.Endpoint)),
					zap.Error(err),
				)
				return nil
			}
			resp.Body.Close() //nolint:errcheck
			pool.RecordOutcome(row.Endpoint, true, time.Since(start))
			return nil
		})
	}
	g.Wait() //nolint:errcheck
}

// formatProxyStats writes a tabular view of endpoint stats to w.
func formatProxyStats(w io.Writer, rows []proxy.EndpointStats) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ENDPOINT\tSUCCESS\tFAILURE\tSCORE\tAVG RESP\tLAST USED")
	for _, row := range rows {
		lastUsed := "-"
		if !row.Stats.LastUsedAt.IsZero() {
			lastUsed = row.Stats.LastUsedAt.Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%.2f\t%.2fs\t%s\n",
			row.Endpoint,
			row.Stats.Successes,
			row.Stats.Failures,
			row.Stats.Score(),
			row.Stats.AvgResponseSecs,
			lastUsed,
		)
	}
	tw.Flush() //nolint:errcheck
}

func init() {
	proxiesCheckCmd.Flags().IntVar(&proxiesCheckConcurrency, "concurrency", 5, "parallel probes")
	proxiesCmd.AddCommand(proxiesListCmd)
	proxiesCmd.AddCommand(proxiesCheckCmd)
	rootCmd.AddCommand(proxiesCmd)
}
