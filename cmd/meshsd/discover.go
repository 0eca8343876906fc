package main

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/meshsd/internal/protocol"
	"github.com/muurk/meshsd/internal/sd"
	"github.com/muurk/meshsd/internal/transport"
	"github.com/muurk/meshsd/internal/ui"
)

// Discover command flags
var (
	discoverMesh      bool
	discoverTimeout   time.Duration
	discoverInterface string
	discoverHopLimit  int
)

var discoverCmd = &cobra.Command{
	Use:   "discover [name] [type]",
	Short: "Run one discovery round",
	Long: `Send one discovery query and list every service that answers before the
round ends. Name and type narrow the query; without them every node lists
all of its services.`,
	Example: `  # Everything on the site
  meshsd discover

  # Every node offering "ceiling" across the mesh
  meshsd discover ceiling --mesh

  # One specific service, waiting longer for slow links
  meshsd discover ceiling rgbw --mesh --timeout 10s`,
	Args: cobra.MaximumNArgs(2),
	RunE: runDiscover,
}

func init() {
	discoverCmd.Flags().BoolVar(&discoverMesh, "mesh", false, "Query the mesh-local group ff03::1 instead of the site-local ff05::1")
	discoverCmd.Flags().DurationVar(&discoverTimeout, "timeout", sd.DefaultRoundTimeout, "How long to collect answers")
	discoverCmd.Flags().StringVar(&discoverInterface, "interface", "", "Outgoing multicast interface")
	discoverCmd.Flags().IntVar(&discoverHopLimit, "hop-limit", transport.DefaultHopLimit, "Multicast hop limit")

	rootCmd.AddCommand(discoverCmd)
}

func runDiscover(cmd *cobra.Command, args []string) error {
	var name, typ string
	if len(args) > 0 {
		name = args[0]
	}
	if len(args) > 1 {
		typ = args[1]
	}
	for _, v := range []string{name, typ} {
		if v != "" {
			if err := protocol.ValidateName(v); err != nil {
				return err
			}
		}
	}

	printer := ui.NewPrinter(cmd.OutOrStdout())
	printer.PrintHeader("Service discovery", cmd.CommandPath(), map[string]string{
		"Query": queryLabel(name, typ),
		"Group": protocol.Destination(discoverMesh).String(),
		"Wait":  discoverTimeout.String(),
	})

	client := sd.NewClient(&transport.UDPDialer{Interface: discoverInterface, HopLimit: discoverHopLimit}, nil)
	client.SetRoundTimeout(discoverTimeout)

	var (
		mu   sync.Mutex
		rows []ui.ServiceRow
	)
	err := client.Discover(cmd.Context(), name, typ, discoverMesh, func(from netip.Addr, n, t string) {
		mu.Lock()
		defer mu.Unlock()
		rows = append(rows, ui.ServiceRow{From: from.String(), Name: n, Type: t})
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		printer.PrintError("Discovery failed", err, []string{
			"Check that the host has an IPv6 address on the mesh interface",
			"Pass --interface when several interfaces carry multicast",
			"Make sure UDP port 5683 is not filtered",
		})
		return err
	}

	if len(rows) == 0 {
		printer.PrintResult(ui.NewWarningResult("No service answered",
			ui.Detail{Key: "Query", Value: queryLabel(name, typ)},
			ui.Detail{Key: "Waited", Value: discoverTimeout.String()},
		))
		return nil
	}

	printer.Newline()
	printer.PrintServices(rows)
	printer.Newline()
	printer.PrintResult(ui.NewSuccessResult(fmt.Sprintf("%d answer(s)", len(rows))))
	return nil
}

func queryLabel(name, typ string) string {
	switch {
	case name == "" && typ == "":
		return "all services"
	case typ == "":
		return "name " + name
	case name == "":
		return "type " + typ
	default:
		return name + "/" + typ
	}
}
