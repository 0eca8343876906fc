package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/meshsd/internal/config"
	"github.com/muurk/meshsd/internal/logging"
	"github.com/muurk/meshsd/internal/node"
	"github.com/muurk/meshsd/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the discovery node",
	Long: `Run the node: answer discovery queries for the configured services and
keep the watched services resolved.

The configuration file is re-read on SIGHUP. Services and watches are
replaced; listen addresses, table sizes and timing need a restart.`,
	Example: `  # Run with the default config file
  meshsd serve

  # Run with an explicit config and debug logging
  meshsd serve --config ./node.yaml --log-level debug

  # Reload after editing the config
  kill -HUP $(pidof meshsd)`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, path, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logging.Info("Configuration loaded", zap.String("path", path))

	n, err := node.New(cfg, node.Options{Version: version.Version})
	if err != nil {
		return fmt.Errorf("failed to create node: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go reloadOnHangup(ctx, n, path)

	return n.Run(ctx)
}

// reloadOnHangup applies the config file at path whenever SIGHUP arrives.
func reloadOnHangup(ctx context.Context, n *node.Node, path string) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			logging.Info("SIGHUP received, reloading configuration", zap.String("path", path))
			cfg, err := config.Load(path)
			if err != nil {
				logging.Error("Reload failed, keeping current configuration", zap.Error(err))
				continue
			}
			if err := n.Apply(cfg); err != nil {
				logging.Error("Configuration applied with errors", zap.Error(err))
			}
		}
	}
}
