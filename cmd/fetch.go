package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	fetchStrategy string
	fetchBody     bool
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <url>",
	Short: "Fetch a single URL through the proxy pool",
	Long:  "Issues one GET through the rotating proxy pool and prints the status and the endpoint that served it. Useful for checking pool health against a real target.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		strategy, err := resolveStrategy(fetchStrategy)
		if err != nil {
			return err
		}

		pool, err := initPool()
		if err != nil {
			return err
		}
		f := initFetcher(initExecutor(pool), strategy)

		doc, err := f.FetchPage(ctx, args[0])
		if err != nil {
			return err
		}

		fmt.Printf("status:   %d\n", doc.StatusCode)
		fmt.Printf("endpoint: %s\n", doc.Endpoint)
		fmt.Printf("elapsed:  %s\n", doc.Elapsed)
		fmt.Printf("bytes:    %d\n", len(doc.Body))
		if fetchBody {
			fmt.Fprintln(os.Stdout, doc.Body)
		}
		return nil
	},
}

func init() {
	fetchCmd.Flags().StringVar(&fetchStrategy, "strategy", "", "proxy selection strategy (default from config)")
	fetchCmd.Flags().BoolVar(&fetchBody, "body", false, "print the decoded body to stdout")
	rootCmd.AddCommand(fetchCmd)
}
