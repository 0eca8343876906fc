package sd

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"testing"

	coap "github.com/dustin/go-coap"

	"github.com/muurk/meshsd/internal/protocol"
	"github.com/muurk/meshsd/internal/registry"
	"github.com/muurk/meshsd/internal/transport/transporttest"
)

func newTestRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg := registry.New(2)
	if err := reg.RegisterRsrc("lamp", "rgbw"); err != nil {
		t.Fatal(err)
	}
	if err := reg.RegisterRsrc("fan", "hvac"); err != nil {
		t.Fatal(err)
	}
	return reg
}

func queryMessage(t *testing.T, typ coap.COAPType, q protocol.Query) coap.Message {
	t.Helper()
	data, err := protocol.BuildQuery(protocol.NewIDSource(), q)
	if err != nil {
		t.Fatal(err)
	}
	msg, err := coap.ParseMessage(data)
	if err != nil {
		t.Fatal(err)
	}
	msg.Type = typ
	return msg
}

func TestMatch(t *testing.T) {
	records := []protocol.Service{{Name: "lamp", Type: "rgbw"}, {Name: "fan", Type: "hvac"}}

	tests := []struct {
		name  string
		query protocol.Query
		want  bool
	}{
		{name: "no filter", query: protocol.Query{}, want: true},
		{name: "name match", query: protocol.Query{Name: "lamp"}, want: true},
		{name: "unknown name", query: protocol.Query{Name: "shade"}, want: false},
		{name: "name is case sensitive", query: protocol.Query{Name: "Lamp"}, want: false},
		{name: "type match", query: protocol.Query{Type: "hvac"}, want: true},
		{name: "unknown type", query: protocol.Query{Type: "motor"}, want: false},
		{name: "matching pair", query: protocol.Query{Name: "fan", Type: "hvac"}, want: true},
		{name: "mismatched pair", query: protocol.Query{Name: "lamp", Type: "hvac"}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Match(records, tt.query); got != tt.want {
				t.Errorf("Match(%+v) = %v, want %v", tt.query, got, tt.want)
			}
		})
	}
}

func TestMatch_DuplicateNamesUseFirstType(t *testing.T) {
	records := []protocol.Service{{Name: "lamp", Type: "rgbw"}, {Name: "lamp", Type: "dim"}}

	if !Match(records, protocol.Query{Name: "lamp", Type: "rgbw"}) {
		t.Error("first record's type should match")
	}
	if Match(records, protocol.Query{Name: "lamp", Type: "dim"}) {
		t.Error("expected type comes from the first record with the name")
	}
}

func TestResponder_ListsWholeRegistry(t *testing.T) {
	r := NewResponder(newTestRegistry(t), nil)

	reply, err := r.Respond(queryMessage(t, coap.NonConfirmable, protocol.Query{Name: "lamp"}))
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}

	msg, err := coap.ParseMessage(reply)
	if err != nil {
		t.Fatalf("ParseMessage() error = %v", err)
	}
	if msg.Type != coap.NonConfirmable || msg.Code != coap.Content {
		t.Errorf("reply = %v %v, want NON 2.05", msg.Type, msg.Code)
	}

	services, _, err := protocol.ParseListing(reply)
	if err != nil {
		t.Fatalf("ParseListing() error = %v", err)
	}
	if len(services) != 2 {
		t.Fatalf("reply lists %v, want both registry entries", services)
	}
}

func TestResponder_SharedNameResolves(t *testing.T) {
	reg := registry.New(2)
	for _, svc := range []protocol.Service{{Name: "lamp", Type: "rgbw"}, {Name: "lamp", Type: "dim"}} {
		if err := reg.RegisterRsrc(svc.Name, svc.Type); err != nil {
			t.Fatal(err)
		}
	}
	mux := NewDiscoveryMux(NewResponder(reg, nil))

	dialer := &transporttest.Dialer{
		Handler: func(data []byte, to net.Addr) []transporttest.Datagram {
			req, err := coap.ParseMessage(data)
			if err != nil {
				return nil
			}
			reply, err := mux.Dispatch(req)
			if err != nil {
				return nil
			}
			return []transporttest.Datagram{{Data: reply, Addr: transporttest.UDPAddr("fe80::5", protocol.Port)}}
		},
	}

	var got []found
	if err := NewClient(dialer, nil).Discover(context.Background(), "lamp", "rgbw", true, collect(&got)); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	want := found{from: netip.MustParseAddr("fe80::5"), name: "lamp", typ: "rgbw"}
	if len(got) != 1 || got[0] != want {
		t.Errorf("Discover() found %v, want [%v]", got, want)
	}

	reply, err := mux.Dispatch(queryMessage(t, coap.NonConfirmable, protocol.Query{}))
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	services, _, err := protocol.ParseListing(reply)
	if err != nil {
		t.Fatalf("ParseListing() error = %v", err)
	}
	if len(services) != 2 || services[0].Type != "rgbw" || services[1].Type != "dim" {
		t.Errorf("listing = %v, want both lamp slots in slot order", services)
	}
}

func TestResponder_Rejects(t *testing.T) {
	r := NewResponder(newTestRegistry(t), nil)

	tests := []struct {
		name    string
		msg     coap.Message
		wantErr error
	}{
		{
			name:    "mismatched pair",
			msg:     queryMessage(t, coap.NonConfirmable, protocol.Query{Name: "lamp", Type: "hvac"}),
			wantErr: ErrNoMatch,
		},
		{
			name:    "confirmable",
			msg:     queryMessage(t, coap.Confirmable, protocol.Query{}),
			wantErr: protocol.ErrConfirmable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply, err := r.Respond(tt.msg)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Respond() error = %v, want %v", err, tt.wantErr)
			}
			if reply != nil {
				t.Errorf("Respond() reply = %x, want none", reply)
			}
		})
	}
}

func TestResponder_FreshIDs(t *testing.T) {
	r := NewResponder(newTestRegistry(t), nil)
	req := queryMessage(t, coap.NonConfirmable, protocol.Query{})

	a, err := r.Respond(req)
	if err != nil {
		t.Fatal(err)
	}
	b, err := r.Respond(req)
	if err != nil {
		t.Fatal(err)
	}
	ma, _ := coap.ParseMessage(a)
	mb, _ := coap.ParseMessage(b)
	if ma.MessageID == mb.MessageID {
		t.Errorf("replies share message id %d", ma.MessageID)
	}
	if ma.MessageID == req.MessageID {
		t.Error("reply reuses the request's message id")
	}
}

func TestMux_Dispatch(t *testing.T) {
	m := NewMux()
	called := false
	m.Handle(coap.GET, "sd", func(req coap.Message) ([]byte, error) {
		called = true
		return []byte("ok"), nil
	})

	get := coap.Message{Type: coap.NonConfirmable, Code: coap.GET}
	get.SetPathString("sd")
	if _, err := m.Dispatch(get); err != nil || !called {
		t.Errorf("Dispatch(GET sd) error = %v, called = %v", err, called)
	}

	post := coap.Message{Type: coap.NonConfirmable, Code: coap.POST}
	post.SetPathString("sd")
	if _, err := m.Dispatch(post); !errors.Is(err, ErrNoRoute) {
		t.Errorf("Dispatch(POST sd) error = %v, want ErrNoRoute", err)
	}

	other := coap.Message{Type: coap.NonConfirmable, Code: coap.GET}
	other.SetPathString("led")
	if _, err := m.Dispatch(other); !errors.Is(err, ErrNoRoute) {
		t.Errorf("Dispatch(GET led) error = %v, want ErrNoRoute", err)
	}
}
