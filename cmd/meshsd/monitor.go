package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/muurk/meshsd/internal/diag"
	"github.com/muurk/meshsd/internal/ui"
)

var monitorAddr string

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Watch a running node",
	Long: `Connect to a node's diagnostics server and show its scheduler live: which
services are resolved, where, and what the node waits for next.`,
	Example: `  # Node on this host, address taken from the config file
  meshsd monitor

  # Remote node
  meshsd monitor --addr [fd00::12]:8086`,
	RunE: runMonitor,
}

func init() {
	monitorCmd.Flags().StringVar(&monitorAddr, "addr", "", "Diagnostics address (default diag.listen from the config)")
	rootCmd.AddCommand(monitorCmd)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	addr := monitorAddr
	if addr == "" {
		cfg, _, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		addr = cfg.Diag.Listen
	}
	if addr == "" {
		return fmt.Errorf("no diagnostics address: pass --addr or set diag.listen")
	}

	client, err := diag.Dial(cmd.Context(), addr)
	if err != nil {
		return err
	}
	defer client.Close()

	if !ui.IsTerminal() {
		// No TTY: print one sample and exit.
		st, err := client.Next()
		if err != nil {
			return err
		}
		for _, e := range st.Scheduler.Entries {
			state := "searching"
			if e.Resolved {
				state = e.Addr
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s/%s\t%s\tmisses=%d\n", e.Name, e.Type, state, e.Misses)
		}
		return nil
	}
	return ui.RunMonitor(addr, client)
}
