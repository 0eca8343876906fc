package discovery

import (
	"fmt"
	"net"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/muurk/meshsd/internal/logging"
	"github.com/muurk/meshsd/internal/protocol"
)

// Advertiser keeps the node's DNS-SD registration alive.
type Advertiser struct {
	server   *zeroconf.Server
	instance string
	version  string
}

// Advertise registers instance as a ServiceType service on port. An empty
// ifname announces on every multicast interface.
func Advertise(instance, ifname string, port int, version string, services []protocol.Service) (*Advertiser, error) {
	var ifaces []net.Interface
	if ifname != "" {
		ifi, err := net.InterfaceByName(ifname)
		if err != nil {
			return nil, fmt.Errorf("unknown interface %q: %w", ifname, err)
		}
		ifaces = []net.Interface{*ifi}
	}

	server, err := zeroconf.Register(instance, ServiceType, ServiceDomain, port, TXTRecords(version, services), ifaces)
	if err != nil {
		return nil, fmt.Errorf("failed to register mDNS service: %w", err)
	}

	logging.Info("mDNS advertisement started",
		zap.String("instance", instance),
		zap.String("service", ServiceType),
		zap.Int("port", port),
		zap.Int("services", len(services)),
	)
	return &Advertiser{server: server, instance: instance, version: version}, nil
}

// Update republishes the TXT records after the registry changed.
func (a *Advertiser) Update(services []protocol.Service) {
	a.server.SetText(TXTRecords(a.version, services))
	logging.Debug("mDNS TXT records updated", zap.String("instance", a.instance), zap.Int("services", len(services)))
}

// Shutdown withdraws the registration.
func (a *Advertiser) Shutdown() {
	a.server.Shutdown()
	logging.Info("mDNS advertisement stopped", zap.String("instance", a.instance))
}
