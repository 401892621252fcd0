package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mercator-hq/themis/pkg/config"
	"mercator-hq/themis/pkg/directory"
	"mercator-hq/themis/pkg/sla"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration and referenced data files",
	Long: `Validate the configuration file, and parse the SLA matrix file and
employee directory file it references, without starting the engine.

Examples:
  themis validate
  themis validate --config /etc/themis/config.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}
	fmt.Printf("✓ Configuration valid: %s\n", cfgFile)

	if cfg.SLA.MatrixPath != "" {
		if _, err := sla.LoadFileProvider(cfg.SLA.MatrixPath); err != nil {
			return err
		}
		fmt.Printf("✓ SLA matrix valid: %s\n", cfg.SLA.MatrixPath)
	}

	if cfg.Directory.Path != "" {
		if _, err := directory.LoadFileDirectory(cfg.Directory.Path); err != nil {
			return err
		}
		fmt.Printf("✓ Employee directory valid: %s\n", cfg.Directory.Path)
	}

	return nil
}
