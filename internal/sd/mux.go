package sd

import (
	"errors"
	"fmt"
	"sync"

	coap "github.com/dustin/go-coap"
)

// ErrNoRoute is returned for requests no handler is registered for.
var ErrNoRoute = errors.New("no handler for resource")

// HandlerFunc answers one request. A nil reply with a nil error means
// "handled, nothing to send".
type HandlerFunc func(req coap.Message) ([]byte, error)

type route struct {
	method coap.COAPCode
	path   string
}

// Mux routes requests by method and path.
type Mux struct {
	mu     sync.RWMutex
	routes map[route]HandlerFunc
}

// NewMux creates an empty Mux.
func NewMux() *Mux {
	return &Mux{routes: make(map[route]HandlerFunc)}
}

// Handle registers h for method on path, replacing any previous handler.
func (m *Mux) Handle(method coap.COAPCode, path string, h HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routes[route{method: method, path: path}] = h
}

// Dispatch routes req to its handler.
func (m *Mux) Dispatch(req coap.Message) ([]byte, error) {
	m.mu.RLock()
	h, ok := m.routes[route{method: req.Code, path: req.PathString()}]
	m.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %v /%s", ErrNoRoute, req.Code, req.PathString())
	}
	return h(req)
}
