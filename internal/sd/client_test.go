package sd

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"testing"

	coap "github.com/dustin/go-coap"
	"github.com/fxamacker/cbor/v2"

	"github.com/muurk/meshsd/internal/protocol"
	"github.com/muurk/meshsd/internal/transport"
	"github.com/muurk/meshsd/internal/transport/transporttest"
)

type found struct {
	from      netip.Addr
	name, typ string
}

func collect(out *[]found) FoundFunc {
	return func(from netip.Addr, name, typ string) {
		*out = append(*out, found{from: from, name: name, typ: typ})
	}
}

func listingFrom(t *testing.T, services ...protocol.Service) []byte {
	t.Helper()
	data, err := protocol.BuildListing(protocol.NewIDSource(), services)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func rawReply(t *testing.T, payload interface{}) []byte {
	t.Helper()
	body, err := cbor.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	msg := coap.Message{Type: coap.NonConfirmable, Code: coap.Content, MessageID: 7, Payload: body}
	msg.SetOption(coap.ContentFormat, protocol.ContentFormatCBOR)
	data, err := msg.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestDiscover_SendsFilteredQuery(t *testing.T) {
	dialer := &transporttest.Dialer{}
	client := NewClient(dialer, nil)

	if err := client.Discover(context.Background(), "ceiling", "rgbw", true, collect(new([]found))); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	conns := dialer.Opened()
	if len(conns) != 1 {
		t.Fatalf("Discover() opened %d endpoints, want 1", len(conns))
	}
	writes := conns[0].Writes()
	if len(writes) != 1 {
		t.Fatalf("Discover() sent %d queries, want 1", len(writes))
	}
	if got := writes[0].Addr.String(); got != "[ff03::1]:5683" {
		t.Errorf("query sent to %s, want [ff03::1]:5683", got)
	}

	msg, err := coap.ParseMessage(writes[0].Data)
	if err != nil {
		t.Fatal(err)
	}
	q, err := protocol.ParseQuery(msg)
	if err != nil {
		t.Fatalf("ParseQuery() error = %v", err)
	}
	if q.Name != "ceiling" || q.Type != "rgbw" {
		t.Errorf("query filter = %+v, want ceiling/rgbw", q)
	}
	if !conns[0].Closed() {
		t.Error("Discover() should close its endpoint")
	}
	if conns[0].Deadline().IsZero() {
		t.Error("Discover() should set a receive deadline")
	}
}

func TestDiscover_SiteScope(t *testing.T) {
	dialer := &transporttest.Dialer{}
	if err := NewClient(dialer, nil).Discover(context.Background(), "", "", false, collect(new([]found))); err != nil {
		t.Fatal(err)
	}
	if got := dialer.Opened()[0].Writes()[0].Addr.String(); got != "[ff05::1]:5683" {
		t.Errorf("query sent to %s, want [ff05::1]:5683", got)
	}
}

func TestDiscover_MultipleResponders(t *testing.T) {
	dialer := &transporttest.Dialer{
		Handler: func(data []byte, to net.Addr) []transporttest.Datagram {
			return []transporttest.Datagram{
				{Data: listingFrom(t, protocol.Service{Name: "ceiling", Type: "rgbw"}), Addr: transporttest.UDPAddr("fe80::2", 5683)},
				{Data: listingFrom(t, protocol.Service{Name: "ceiling", Type: "rgbw"}, protocol.Service{Name: "fan", Type: "hvac"}), Addr: transporttest.UDPAddr("fe80::3", 5683)},
				{Data: listingFrom(t, protocol.Service{Name: "desk", Type: "rgbw"}), Addr: transporttest.UDPAddr("fe80::4", 5683)},
			}
		},
	}

	var got []found
	if err := NewClient(dialer, nil).Discover(context.Background(), "ceiling", "", true, collect(&got)); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	want := []found{
		{from: netip.MustParseAddr("fe80::2"), name: "ceiling", typ: "rgbw"},
		{from: netip.MustParseAddr("fe80::3"), name: "ceiling", typ: "rgbw"},
	}
	if len(got) != len(want) {
		t.Fatalf("Discover() found %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("found[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestDiscover_SkipsMalformed(t *testing.T) {
	con := coap.Message{Type: coap.Confirmable, Code: coap.Content, MessageID: 9}
	con.SetOption(coap.ContentFormat, protocol.ContentFormatCBOR)
	con.Payload, _ = protocol.EncodeListing([]protocol.Service{{Name: "lamp", Type: "rgbw"}})
	conData, _ := con.MarshalBinary()

	dialer := &transporttest.Dialer{
		Handler: func(data []byte, to net.Addr) []transporttest.Datagram {
			from := transporttest.UDPAddr("fe80::5", 5683)
			return []transporttest.Datagram{
				{Data: []byte("garbage"), Addr: from},
				{Data: conData, Addr: from},
				{Data: rawReply(t, []string{"lamp"}), Addr: from},
				{Data: rawReply(t, map[string]interface{}{
					"lamp": map[string]string{"type": "rgbw"},
					"fan":  map[string]int{"type": 3},
				}), Addr: from},
			}
		},
	}

	var got []found
	if err := NewClient(dialer, nil).Discover(context.Background(), "", "", false, collect(&got)); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if len(got) != 1 || got[0].name != "lamp" || got[0].typ != "rgbw" {
		t.Errorf("Discover() found %v, want only lamp/rgbw", got)
	}
}

func TestDiscover_TypeFilter(t *testing.T) {
	dialer := &transporttest.Dialer{
		Handler: func(data []byte, to net.Addr) []transporttest.Datagram {
			return []transporttest.Datagram{{
				Data: listingFrom(t, protocol.Service{Name: "lamp", Type: "rgbw"}, protocol.Service{Name: "fan", Type: "hvac"}),
				Addr: transporttest.UDPAddr("fe80::6", 5683),
			}}
		},
	}

	var got []found
	if err := NewClient(dialer, nil).Discover(context.Background(), "", "hvac", false, collect(&got)); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].name != "fan" {
		t.Errorf("Discover() found %v, want only fan/hvac", got)
	}
}

func TestDiscover_Errors(t *testing.T) {
	openErr := errors.New("no route to mesh")
	if err := NewClient(&transporttest.Dialer{OpenErr: openErr}, nil).
		Discover(context.Background(), "", "", false, collect(new([]found))); !errors.Is(err, openErr) {
		t.Errorf("Discover() error = %v, want %v", err, openErr)
	}

	if err := NewClient(&transporttest.Dialer{}, nil).
		Discover(context.Background(), "toolongname", "", false, collect(new([]found))); !errors.Is(err, protocol.ErrNameBounds) {
		t.Errorf("Discover() error = %v, want ErrNameBounds", err)
	}
}

type failingDialer struct {
	conn *transporttest.Conn
}

func (d failingDialer) Open(ctx context.Context) (transport.PacketConn, error) {
	return d.conn, nil
}

func TestDiscover_ReceiveError(t *testing.T) {
	recvErr := errors.New("interface down")
	conn := &transporttest.Conn{ReadErr: recvErr}

	err := NewClient(failingDialer{conn: conn}, nil).Discover(context.Background(), "", "", false, collect(new([]found)))
	if !errors.Is(err, recvErr) {
		t.Errorf("Discover() error = %v, want %v", err, recvErr)
	}
}

func TestClient_RoundTimeout(t *testing.T) {
	c := NewClient(&transporttest.Dialer{}, nil)
	if c.RoundTimeout() != DefaultRoundTimeout {
		t.Errorf("RoundTimeout() = %v, want %v", c.RoundTimeout(), DefaultRoundTimeout)
	}
	c.SetRoundTimeout(0)
	if c.RoundTimeout() != DefaultRoundTimeout {
		t.Errorf("SetRoundTimeout(0) should restore the default")
	}
}
