package protocol

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"sync/atomic"

	coap "github.com/dustin/go-coap"
)

// ResourcePath is the CoAP path of the discovery resource.
const ResourcePath = "sd"

// ContentFormatCBOR is the CoAP Content-Format for application/cbor.
const ContentFormatCBOR coap.MediaType = 60

// TokenLen is the length of tokens generated for discovery messages.
const TokenLen = 4

// Validation errors for incoming discovery messages.
var (
	ErrConfirmable   = errors.New("confirmable discovery traffic is not served")
	ErrContentFormat = errors.New("payload is not CBOR")
	ErrNotDiscovery  = errors.New("not a discovery message")
)

// IDSource hands out CoAP message IDs and tokens. IDs are drawn from an
// atomic counter with a random starting point; tokens are random.
type IDSource struct {
	counter atomic.Uint32
}

// NewIDSource creates an IDSource with a random initial message ID.
func NewIDSource() *IDSource {
	s := &IDSource{}
	var seed [2]byte
	if _, err := rand.Read(seed[:]); err == nil {
		s.counter.Store(uint32(binary.BigEndian.Uint16(seed[:])))
	}
	return s
}

// NextID returns the next message ID.
func (s *IDSource) NextID() uint16 {
	return uint16(s.counter.Add(1))
}

// NewToken returns a fresh random token.
func (s *IDSource) NewToken() []byte {
	tok := make([]byte, TokenLen)
	if _, err := rand.Read(tok); err != nil {
		binary.BigEndian.PutUint32(tok, s.counter.Add(1))
	}
	return tok
}

// BuildQuery constructs the NON GET sd request with the optional filter.
func BuildQuery(ids *IDSource, q Query) ([]byte, error) {
	payload, err := EncodeQuery(q)
	if err != nil {
		return nil, err
	}

	msg := coap.Message{
		Type:      coap.NonConfirmable,
		Code:      coap.GET,
		MessageID: ids.NextID(),
		Token:     ids.NewToken(),
	}
	msg.SetPathString(ResourcePath)
	if payload != nil {
		msg.SetOption(coap.ContentFormat, ContentFormatCBOR)
		msg.Payload = payload
	}

	data, err := msg.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query: %w", err)
	}
	return data, nil
}

// BuildListing constructs the NON 2.05 reply listing every service.
func BuildListing(ids *IDSource, services []Service) ([]byte, error) {
	payload, err := EncodeListing(services)
	if err != nil {
		return nil, err
	}

	msg := coap.Message{
		Type:      coap.NonConfirmable,
		Code:      coap.Content,
		MessageID: ids.NextID(),
		Token:     ids.NewToken(),
		Payload:   payload,
	}
	msg.SetOption(coap.ContentFormat, ContentFormatCBOR)

	data, err := msg.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal listing: %w", err)
	}
	return data, nil
}

// IsCBOR reports whether the message declares Content-Format 60.
func IsCBOR(msg coap.Message) bool {
	cf, ok := msg.Option(coap.ContentFormat).(coap.MediaType)
	return ok && cf == ContentFormatCBOR
}

// ParseQuery validates a request already routed to the sd resource and
// decodes its filter.
func ParseQuery(msg coap.Message) (Query, error) {
	if msg.Type == coap.Confirmable {
		return Query{}, ErrConfirmable
	}
	if msg.Type != coap.NonConfirmable || msg.Code != coap.GET {
		return Query{}, fmt.Errorf("%w: %v %v", ErrNotDiscovery, msg.Type, msg.Code)
	}
	if len(msg.Payload) == 0 {
		return Query{}, nil
	}
	if !IsCBOR(msg) {
		return Query{}, ErrContentFormat
	}
	return DecodeQuery(msg.Payload)
}

// ParseListing validates a reply datagram and decodes its service map.
func ParseListing(data []byte) (services []Service, skipped int, err error) {
	msg, err := coap.ParseMessage(data)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if msg.Type != coap.NonConfirmable || msg.Code != coap.Content {
		return nil, 0, fmt.Errorf("%w: %v %v", ErrNotDiscovery, msg.Type, msg.Code)
	}
	if !IsCBOR(msg) {
		return nil, 0, ErrContentFormat
	}
	return DecodeListing(msg.Payload)
}
