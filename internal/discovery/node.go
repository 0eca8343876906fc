package discovery

import (
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/muurk/meshsd/internal/protocol"
)

// TXT record keys
const (
	txtVersionKey = "txtvers"
	txtBuildKey   = "version"
	txtServiceKey = "svc"

	txtVersion = "1"
)

// Node represents a meshsd node found on the network
type Node struct {
	// Instance is the DNS-SD instance name (e.g., "meshsd-kitchen")
	Instance string

	// Hostname is the mDNS hostname (e.g., "kitchen.local.")
	Hostname string

	// Addrs lists the advertised addresses, IPv6 first
	Addrs []netip.Addr

	// Port is the CoAP port (typically 5683)
	Port int

	// Version is the build version of the node, if published
	Version string

	// Services are the registry entries the node answers for
	Services []protocol.Service

	// Metadata contains the remaining TXT record data
	Metadata map[string]string

	// DiscoveredAt is when the node was discovered
	DiscoveredAt time.Time
}

// String returns a human-readable representation of the node
func (n *Node) String() string {
	return fmt.Sprintf("meshsd node %s (%s) at %s", n.Instance, n.Hostname, n.Endpoint())
}

// Endpoint returns host:port for the first advertised address, or an empty
// string when the node published none.
func (n *Node) Endpoint() string {
	if len(n.Addrs) == 0 {
		return ""
	}
	return net.JoinHostPort(n.Addrs[0].String(), strconv.Itoa(n.Port))
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (n *Node) GetMetadata(key string) string {
	if n.Metadata == nil {
		return ""
	}
	return n.Metadata[key]
}

// TXTRecords builds the TXT strings published for a node.
func TXTRecords(version string, services []protocol.Service) []string {
	txt := []string{txtVersionKey + "=" + txtVersion}
	if version != "" {
		txt = append(txt, txtBuildKey+"="+version)
	}
	for _, svc := range services {
		txt = append(txt, txtServiceKey+"="+svc.Name+"/"+svc.Type)
	}
	return txt
}

// parseTXT splits TXT strings into services, build version and the rest.
// svc values that do not hold a valid name/type pair are skipped.
func parseTXT(txt []string) (services []protocol.Service, version string, meta map[string]string) {
	meta = make(map[string]string)
	for _, record := range txt {
		key, value, _ := strings.Cut(record, "=")
		switch key {
		case txtServiceKey:
			name, typ, ok := strings.Cut(value, "/")
			if !ok || protocol.ValidatePair(name, typ) != nil {
				continue
			}
			services = append(services, protocol.Service{Name: name, Type: typ})
		case txtBuildKey:
			version = value
		default:
			meta[key] = value
		}
	}
	return services, version, meta
}
