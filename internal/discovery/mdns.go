package discovery

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/muurk/meshsd/internal/logging"
	"github.com/muurk/meshsd/internal/protocol"
)

const (
	// ServiceType is the DNS-SD service type nodes register under
	ServiceType = "_coap._udp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// DefaultScanTimeout is the default timeout for node discovery
	DefaultScanTimeout = 5 * time.Second
)

// Scanner handles mDNS node discovery
type Scanner struct {
	// Timeout is the maximum time to wait for node discovery
	Timeout time.Duration
}

// NewScanner creates a new mDNS scanner with default settings
func NewScanner() *Scanner {
	return &Scanner{
		Timeout: DefaultScanTimeout,
	}
}

// Scan lists every node answering within the timeout. Nodes announcing
// themselves more than once are reported once.
func (s *Scanner) Scan(ctx context.Context) ([]*Node, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	var (
		mu    sync.Mutex
		nodes []*Node
		seen  = make(map[string]bool)
	)
	err := s.browse(ctx, func(n *Node) bool {
		mu.Lock()
		defer mu.Unlock()
		if !seen[n.Instance] {
			seen[n.Instance] = true
			nodes = append(nodes, n)
		}
		return false
	})
	if err != nil {
		return nil, err
	}

	<-ctx.Done()

	mu.Lock()
	defer mu.Unlock()
	return append([]*Node(nil), nodes...), nil
}

// Find waits for the node registered as instance.
func (s *Scanner) Find(ctx context.Context, instance string) (*Node, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	found := make(chan *Node, 1)
	err := s.browse(ctx, func(n *Node) bool {
		if n.Instance != instance {
			return false
		}
		select {
		case found <- n:
		default:
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	select {
	case n := <-found:
		return n, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("node %s not found within timeout", instance)
	}
}

// browse feeds every parsed entry to visit until ctx ends or visit returns
// true.
func (s *Scanner) browse(ctx context.Context, visit func(*Node) bool) error {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	go func() {
		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				node := parseServiceEntry(entry)
				if node == nil {
					continue
				}
				logging.Debug("mDNS node found", zap.String("instance", node.Instance), zap.String("endpoint", node.Endpoint()))
				if visit(node) {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return fmt.Errorf("failed to browse for mDNS services: %w", err)
	}
	return nil
}

// parseServiceEntry converts a zeroconf service entry to a Node.
// Returns nil if the entry carries no usable address.
func parseServiceEntry(entry *zeroconf.ServiceEntry) *Node {
	if entry == nil || entry.Instance == "" {
		return nil
	}

	var addrs []netip.Addr
	for _, ips := range [][]net.IP{entry.AddrIPv6, entry.AddrIPv4} {
		for _, ip := range ips {
			if addr, ok := netip.AddrFromSlice(ip); ok {
				addrs = append(addrs, addr.Unmap())
			}
		}
	}
	if len(addrs) == 0 {
		return nil
	}

	port := entry.Port
	if port == 0 {
		port = protocol.Port
	}

	services, version, meta := parseTXT(entry.Text)
	return &Node{
		Instance:     entry.Instance,
		Hostname:     entry.HostName,
		Addrs:        addrs,
		Port:         port,
		Version:      version,
		Services:     services,
		Metadata:     meta,
		DiscoveredAt: time.Now(),
	}
}

// ScanForNodes is a convenience function to scan with a custom timeout
func ScanForNodes(ctx context.Context, timeout time.Duration) ([]*Node, error) {
	scanner := NewScanner()
	if timeout > 0 {
		scanner.Timeout = timeout
	}
	return scanner.Scan(ctx)
}
