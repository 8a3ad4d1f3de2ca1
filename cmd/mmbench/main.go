package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	rootCmd    = &cobra.Command{
		Use:   "mmbench",
		Short: "Multimodal safety benchmark runner",
		Long: `mmbench drives batches of image+text safety prompts through an
inference backend, retries transient failures, and records every result
in a crash-safe, append-only run log.`,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
