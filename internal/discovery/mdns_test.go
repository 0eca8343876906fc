package discovery

import (
	"net"
	"net/netip"
	"reflect"
	"testing"

	"github.com/grandcat/zeroconf"

	"github.com/muurk/meshsd/internal/protocol"
)

func entryFor(instance string) *zeroconf.ServiceEntry {
	return &zeroconf.ServiceEntry{
		ServiceRecord: zeroconf.ServiceRecord{Instance: instance, Service: ServiceType, Domain: ServiceDomain},
	}
}

func TestParseServiceEntry(t *testing.T) {
	full := entryFor("kitchen")
	full.HostName = "kitchen.local."
	full.Port = 5683
	full.AddrIPv4 = []net.IP{net.ParseIP("192.168.4.16")}
	full.AddrIPv6 = []net.IP{net.ParseIP("fe80::2")}
	full.Text = []string{"txtvers=1", "version=1.2.0", "svc=lamp/rgbw", "svc=bad", "svc=toolongname/x", "path"}

	node := parseServiceEntry(full)
	if node == nil {
		t.Fatal("parseServiceEntry() = nil, want node")
	}
	if node.Instance != "kitchen" || node.Hostname != "kitchen.local." {
		t.Errorf("parseServiceEntry() identity = %s/%s", node.Instance, node.Hostname)
	}
	wantAddrs := []netip.Addr{netip.MustParseAddr("fe80::2"), netip.MustParseAddr("192.168.4.16")}
	if !reflect.DeepEqual(node.Addrs, wantAddrs) {
		t.Errorf("parseServiceEntry().Addrs = %v, want %v", node.Addrs, wantAddrs)
	}
	if node.Endpoint() != "[fe80::2]:5683" {
		t.Errorf("Endpoint() = %v, want [fe80::2]:5683", node.Endpoint())
	}
	if node.Version != "1.2.0" {
		t.Errorf("parseServiceEntry().Version = %q, want 1.2.0", node.Version)
	}
	wantServices := []protocol.Service{{Name: "lamp", Type: "rgbw"}}
	if !reflect.DeepEqual(node.Services, wantServices) {
		t.Errorf("parseServiceEntry().Services = %v, want %v", node.Services, wantServices)
	}
	if node.GetMetadata("txtvers") != "1" {
		t.Errorf("GetMetadata(txtvers) = %q, want 1", node.GetMetadata("txtvers"))
	}
	if _, ok := node.Metadata["path"]; !ok {
		t.Error("key without value missing from metadata")
	}
}

func TestParseServiceEntry_Rejects(t *testing.T) {
	noAddr := entryFor("kitchen")
	noAddr.Port = 5683

	anonymous := entryFor("")
	anonymous.AddrIPv4 = []net.IP{net.ParseIP("10.0.0.5")}

	tests := []struct {
		name  string
		entry *zeroconf.ServiceEntry
	}{
		{"nil entry", nil},
		{"no address", noAddr},
		{"no instance", anonymous},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseServiceEntry(tt.entry); got != nil {
				t.Errorf("parseServiceEntry() = %v, want nil", got)
			}
		})
	}
}

func TestParseServiceEntry_DefaultPort(t *testing.T) {
	entry := entryFor("desk")
	entry.AddrIPv4 = []net.IP{net.ParseIP("10.0.0.5")}

	node := parseServiceEntry(entry)
	if node == nil {
		t.Fatal("parseServiceEntry() = nil")
	}
	if node.Port != protocol.Port {
		t.Errorf("Port = %d, want %d", node.Port, protocol.Port)
	}
	if node.Endpoint() != "10.0.0.5:5683" {
		t.Errorf("Endpoint() = %v, want 10.0.0.5:5683", node.Endpoint())
	}
}

func TestTXTRecords(t *testing.T) {
	services := []protocol.Service{{Name: "lamp", Type: "rgbw"}, {Name: "fan", Type: "pwm"}}
	got := TXTRecords("1.2.0", services)
	want := []string{"txtvers=1", "version=1.2.0", "svc=lamp/rgbw", "svc=fan/pwm"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("TXTRecords() = %v, want %v", got, want)
	}

	parsed, version, _ := parseTXT(got)
	if version != "1.2.0" || !reflect.DeepEqual(parsed, services) {
		t.Errorf("parseTXT(TXTRecords()) = %v, %q", parsed, version)
	}

	if got := TXTRecords("", nil); !reflect.DeepEqual(got, []string{"txtvers=1"}) {
		t.Errorf("TXTRecords(empty) = %v", got)
	}
}

func TestNode_String(t *testing.T) {
	n := &Node{Instance: "kitchen", Hostname: "kitchen.local.", Addrs: []netip.Addr{netip.MustParseAddr("fe80::2")}, Port: 5683}
	want := "meshsd node kitchen (kitchen.local.) at [fe80::2]:5683"
	if got := n.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if (&Node{}).Endpoint() != "" {
		t.Error("Endpoint() without addresses should be empty")
	}
}
