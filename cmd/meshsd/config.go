package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/muurk/meshsd/internal/config"
	"github.com/muurk/meshsd/internal/ui"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the node configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Example: `  meshsd config init
  meshsd config init --config ./node.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := resolveConfigPath()
		if err != nil {
			return err
		}
		cfg, err := config.CreateDefaultConfig(path)
		if err != nil {
			return fmt.Errorf("failed to create config: %w", err)
		}

		printer := ui.NewPrinter(cmd.OutOrStdout())
		printer.PrintResult(ui.NewSuccessResult("Configuration written",
			ui.Detail{Key: "Path", Value: path},
			ui.Detail{Key: "Services", Value: fmt.Sprint(len(cfg.Services))},
			ui.Detail{Key: "Watches", Value: fmt.Sprint(len(cfg.Watch))},
		))
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Load, validate and print the configuration with defaults filled in.
A missing file prints the built-in defaults.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := loadConfig()
		if err != nil {
			return err
		}
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "# %s\n%s", path, data)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
