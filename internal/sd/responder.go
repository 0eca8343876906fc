package sd

import (
	"errors"
	"fmt"

	coap "github.com/dustin/go-coap"

	"github.com/muurk/meshsd/internal/protocol"
)

// ErrNoMatch is returned when a query's filter matches nothing in the
// registry. No reply is sent.
var ErrNoMatch = errors.New("query does not match any local service")

// Services is the source of advertised services, normally a
// *registry.Registry.
type Services interface {
	Records() []protocol.Service
}

// Responder answers sd queries from the local registry.
type Responder struct {
	services Services
	ids      *protocol.IDSource
}

// NewResponder creates a responder. A nil ids allocates a new IDSource.
func NewResponder(services Services, ids *protocol.IDSource) *Responder {
	if ids == nil {
		ids = protocol.NewIDSource()
	}
	return &Responder{services: services, ids: ids}
}

// Respond validates req and returns the encoded reply. Requests that must
// not be answered return an error and no reply.
func (r *Responder) Respond(req coap.Message) ([]byte, error) {
	q, err := protocol.ParseQuery(req)
	if err != nil {
		return nil, err
	}

	records := r.services.Records()
	if !Match(records, q) {
		return nil, fmt.Errorf("%w: %q/%q", ErrNoMatch, q.Name, q.Type)
	}
	return protocol.BuildListing(r.ids, records)
}

// Handler adapts the responder to a Mux route.
func (r *Responder) Handler() HandlerFunc {
	return r.Respond
}

// Match applies a query filter to the registry content. A name filter must
// equal some record's name and fixes the expected type to that of the first
// such record. A type filter must equal the expected type, when one was
// fixed, and some record's type.
func Match(records []protocol.Service, q protocol.Query) bool {
	var expected string
	haveExpected := false

	if q.Name != "" {
		for _, rec := range records {
			if rec.Name == q.Name {
				expected = rec.Type
				haveExpected = true
				break
			}
		}
		if !haveExpected {
			return false
		}
	}

	if q.Type != "" {
		if haveExpected && q.Type != expected {
			return false
		}
		for _, rec := range records {
			if rec.Type == q.Type {
				return true
			}
		}
		return false
	}
	return true
}
