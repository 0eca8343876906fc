package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/meshsd/internal/discovery"
	"github.com/muurk/meshsd/internal/ui"
)

var scanTimeout time.Duration

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "List meshsd nodes announced over mDNS",
	Long: `Browse the LAN for nodes registered as ` + discovery.ServiceType + ` and list their
endpoints and advertised services. Useful where IPv6 multicast does not
reach but mDNS does.`,
	Example: `  # Scan for 5 seconds (default)
  meshsd scan

  # Longer scan for busy networks
  meshsd scan --timeout 15s`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().DurationVar(&scanTimeout, "timeout", discovery.DefaultScanTimeout, "Scan timeout")
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	printer := ui.NewPrinter(cmd.OutOrStdout())
	printer.PrintHeader("Node scan", cmd.CommandPath(), map[string]string{
		"Service": discovery.ServiceType + "." + discovery.ServiceDomain,
		"Wait":    scanTimeout.String(),
	})

	nodes, err := discovery.ScanForNodes(cmd.Context(), scanTimeout)
	if err != nil {
		printer.PrintError("Scan failed", err, []string{
			"Ensure multicast is enabled on the network interface",
			"Check that UDP port 5353 is not firewalled",
		})
		return fmt.Errorf("scan failed: %w", err)
	}

	if len(nodes) == 0 {
		printer.PrintResult(ui.NewWarningResult("No nodes found",
			ui.Detail{Key: "Hint", Value: "nodes advertise only with node.advertise_mdns enabled"},
		))
		return nil
	}

	rows := make([]ui.NodeRow, 0, len(nodes))
	for _, n := range nodes {
		row := ui.NodeRow{Instance: n.Instance, Endpoint: n.Endpoint(), Version: n.Version}
		for _, svc := range n.Services {
			row.Services = append(row.Services, svc.String())
		}
		rows = append(rows, row)
	}

	printer.Newline()
	printer.PrintNodes(rows)
	printer.Newline()
	printer.PrintResult(ui.NewSuccessResult(fmt.Sprintf("%d node(s) found", len(nodes))))
	return nil
}
