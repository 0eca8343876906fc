package registry

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/multierr"

	"github.com/muurk/meshsd/internal/protocol"
)

// DefaultCapacity is the number of slots used when none is configured.
const DefaultCapacity = 2

// ErrExhausted is returned when every slot is occupied.
var ErrExhausted = errors.New("service registry is full")

type slot struct {
	used bool
	svc  protocol.Service
}

// Registry is a fixed-capacity table of advertised services.
type Registry struct {
	mu    sync.RWMutex
	slots []slot
}

// New creates a registry with the given number of slots. A non-positive
// capacity selects DefaultCapacity.
func New(capacity int) *Registry {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Registry{slots: make([]slot, capacity)}
}

// Capacity returns the number of slots.
func (r *Registry) Capacity() int {
	return len(r.slots)
}

// RegisterRsrc inserts a service into the first free slot.
func (r *Registry) RegisterRsrc(name, typ string) error {
	if err := protocol.ValidatePair(name, typ); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.insertLocked(protocol.Service{Name: name, Type: typ})
}

func (r *Registry) insertLocked(svc protocol.Service) error {
	for i := range r.slots {
		if !r.slots[i].used {
			r.slots[i] = slot{used: true, svc: svc}
			return nil
		}
	}
	return fmt.Errorf("%w: cannot add %s (capacity %d)", ErrExhausted, svc, len(r.slots))
}

// ClearAllRsrcs empties every slot.
func (r *Registry) ClearAllRsrcs() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.slots {
		r.slots[i] = slot{}
	}
}

// Replace clears the table and inserts services in order. Invalid services
// are skipped; if there are more valid services than slots the table keeps
// the first ones and ErrExhausted is returned. Errors for skipped services
// are combined into the result.
func (r *Registry) Replace(services []protocol.Service) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.slots {
		r.slots[i] = slot{}
	}

	var errs error
	for _, svc := range services {
		if err := protocol.ValidatePair(svc.Name, svc.Type); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		errs = multierr.Append(errs, r.insertLocked(svc))
	}
	return errs
}

// Records returns the occupied slots in slot order.
func (r *Registry) Records() []protocol.Service {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]protocol.Service, 0, len(r.slots))
	for _, s := range r.slots {
		if s.used {
			out = append(out, s.svc)
		}
	}
	return out
}

// Len returns the number of occupied slots.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, s := range r.slots {
		if s.used {
			n++
		}
	}
	return n
}
