package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "themis",
	Short: "Themis - compliance policy lifecycle and acknowledgment engine",
	Long: `Themis manages versioned compliance policies and the acknowledgment
obligations they create.

It provides:
  - Policy version lifecycle with a single active version per policy
  - Sequential, role-gated approval workflows with full audit trails
  - Role-based acknowledgment campaign expansion
  - SLA breach detection and multi-level escalation
  - A durable notification outbox for reminders and escalations`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
