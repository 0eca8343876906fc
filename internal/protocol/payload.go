package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/fxamacker/cbor/v2"
)

// ErrMalformed is returned when a discovery payload cannot be decoded or
// carries out-of-bounds fields.
var ErrMalformed = errors.New("malformed discovery payload")

// Service is a (name, type) pair as it appears on the wire.
type Service struct {
	Name string `json:"name" yaml:"name"`
	Type string `json:"type" yaml:"type"`
}

// String returns "name/type".
func (s Service) String() string {
	return s.Name + "/" + s.Type
}

// Query is the optional filter carried by a discovery request. Empty fields
// mean "no filter on this key".
type Query struct {
	Name string
	Type string
}

// IsZero reports whether the query filters nothing.
func (q Query) IsZero() bool {
	return q.Name == "" && q.Type == ""
}

// queryWire distinguishes absent keys from present-but-empty ones.
type queryWire struct {
	Name *string `cbor:"name,omitempty"`
	Type *string `cbor:"type,omitempty"`
}

type listingBody struct {
	Type *string `cbor:"type,omitempty"`
}

var encMode = mustEncMode()

func mustEncMode() cbor.EncMode {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("cbor: invalid canonical options: %v", err))
	}
	return em
}

// EncodeQuery encodes a request filter. A zero query encodes to nil so the
// request is sent without a payload.
func EncodeQuery(q Query) ([]byte, error) {
	if !validOptional(q.Name) || !validOptional(q.Type) {
		return nil, fmt.Errorf("%w: query %q/%q", ErrNameBounds, q.Name, q.Type)
	}
	if q.IsZero() {
		return nil, nil
	}
	var w queryWire
	if q.Name != "" {
		w.Name = &q.Name
	}
	if q.Type != "" {
		w.Type = &q.Type
	}
	data, err := encMode.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("failed to encode query: %w", err)
	}
	return data, nil
}

// DecodeQuery decodes a request filter. An empty payload is the unfiltered
// query. Present keys must hold 1..MaxNameLen bytes of text.
func DecodeQuery(data []byte) (Query, error) {
	if len(data) == 0 {
		return Query{}, nil
	}
	var w queryWire
	if err := cbor.Unmarshal(data, &w); err != nil {
		return Query{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	var q Query
	if w.Name != nil {
		if err := ValidateName(*w.Name); err != nil {
			return Query{}, fmt.Errorf("%w: name: %v", ErrMalformed, err)
		}
		q.Name = *w.Name
	}
	if w.Type != nil {
		if err := ValidateName(*w.Type); err != nil {
			return Query{}, fmt.Errorf("%w: type: %v", ErrMalformed, err)
		}
		q.Type = *w.Type
	}
	return q, nil
}

// EncodeListing encodes the responder's answer as name -> {"type": type},
// one pair per record in slot order. Records sharing a name produce
// repeated keys so every slot is advertised.
func EncodeListing(services []Service) ([]byte, error) {
	data := appendHeader(nil, majorMap, uint64(len(services)))
	for _, s := range services {
		t := s.Type
		key, err := encMode.Marshal(s.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to encode listing: %w", err)
		}
		body, err := encMode.Marshal(listingBody{Type: &t})
		if err != nil {
			return nil, fmt.Errorf("failed to encode listing: %w", err)
		}
		data = append(append(data, key...), body...)
	}
	return data, nil
}

// DecodeListing decodes a responder's answer. The top level must be a map
// keyed by text. Pairs are returned in wire order, repeated names included;
// entries whose name or body is malformed are skipped and counted in
// skipped.
func DecodeListing(data []byte) (services []Service, skipped int, err error) {
	n, indefinite, rest, err := readMapHeader(data)
	if err != nil {
		return nil, 0, err
	}

	for i := 0; indefinite || i < n; i++ {
		if indefinite {
			if len(rest) == 0 {
				return nil, 0, fmt.Errorf("%w: unterminated map", ErrMalformed)
			}
			if rest[0] == breakByte {
				rest = rest[1:]
				break
			}
		}

		var key, body cbor.RawMessage
		if rest, err = cbor.UnmarshalFirst(rest, &key); err != nil {
			return nil, 0, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if rest, err = cbor.UnmarshalFirst(rest, &body); err != nil {
			return nil, 0, fmt.Errorf("%w: %v", ErrMalformed, err)
		}

		var name string
		if err := cbor.Unmarshal(key, &name); err != nil {
			return nil, 0, fmt.Errorf("%w: map key is not text", ErrMalformed)
		}
		var b listingBody
		if ValidateName(name) != nil || cbor.Unmarshal(body, &b) != nil || b.Type == nil || ValidateName(*b.Type) != nil {
			skipped++
			continue
		}
		services = append(services, Service{Name: name, Type: *b.Type})
	}
	if len(rest) != 0 {
		return nil, 0, fmt.Errorf("%w: %d trailing bytes", ErrMalformed, len(rest))
	}
	return services, skipped, nil
}

const (
	majorMap  = 5
	breakByte = 0xff
)

// appendHeader appends a CBOR head for the given major type and argument.
func appendHeader(dst []byte, major byte, n uint64) []byte {
	m := major << 5
	switch {
	case n < 24:
		return append(dst, m|byte(n))
	case n <= math.MaxUint8:
		return append(dst, m|24, byte(n))
	case n <= math.MaxUint16:
		return binary.BigEndian.AppendUint16(append(dst, m|25), uint16(n))
	case n <= math.MaxUint32:
		return binary.BigEndian.AppendUint32(append(dst, m|26), uint32(n))
	default:
		return binary.BigEndian.AppendUint64(append(dst, m|27), n)
	}
}

// readMapHeader consumes the head of a CBOR map and returns its pair count,
// or indefinite for a streaming map closed by a break byte.
func readMapHeader(data []byte) (n int, indefinite bool, rest []byte, err error) {
	if len(data) == 0 || data[0]>>5 != majorMap {
		return 0, false, nil, fmt.Errorf("%w: not a map", ErrMalformed)
	}
	info, rest := data[0]&0x1f, data[1:]
	var size int
	switch {
	case info < 24:
		return int(info), false, rest, nil
	case info == 31:
		return 0, true, rest, nil
	case info <= 27:
		size = 1 << (info - 24)
	default:
		return 0, false, nil, fmt.Errorf("%w: bad map head 0x%02x", ErrMalformed, data[0])
	}
	if len(rest) < size {
		return 0, false, nil, fmt.Errorf("%w: truncated map head", ErrMalformed)
	}
	var v uint64
	for _, b := range rest[:size] {
		v = v<<8 | uint64(b)
	}
	// Each pair takes at least two bytes.
	if v > uint64(len(rest)-size)/2 {
		return 0, false, nil, fmt.Errorf("%w: map of %d pairs in %d bytes", ErrMalformed, v, len(rest)-size)
	}
	return int(v), false, rest[size:], nil
}
