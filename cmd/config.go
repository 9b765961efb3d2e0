package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/pagecrawl/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter config.yaml with the built-in defaults",
	RunE: func(cmd *cobra.Command, _ []string) error {
		path := "config.yaml"
		if err := config.WriteDefault(path); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", path)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}
