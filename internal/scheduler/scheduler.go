package scheduler

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/muurk/meshsd/internal/logging"
	"github.com/muurk/meshsd/internal/protocol"
	"github.com/muurk/meshsd/internal/sd"
)

// DefaultCapacity is the number of watch slots used when none is configured.
const DefaultCapacity = 2

// Errors returned by the watch table.
var (
	ErrAlreadyExists   = errors.New("service is already watched")
	ErrExhausted       = errors.New("watch table is full")
	ErrNotFound        = errors.New("service is not watched")
	ErrStillUnresolved = errors.New("service address is not resolved yet")
	ErrAlreadyRunning  = errors.New("scheduler loop is already running")
)

// Discoverer runs one discovery round. *sd.Client satisfies it.
type Discoverer interface {
	Discover(ctx context.Context, name, typ string, mesh bool, onFound sd.FoundFunc) error
}

// Config holds the scheduler configuration
type Config struct {
	Capacity int         // Number of watch slots (0 = DefaultCapacity)
	Timing   Timing      // Zero fields take the defaults
	Clock    clock.Clock // Defaults to the real clock
}

type entry struct {
	used         bool
	gen          uint64
	name         string
	typ          string
	mesh         bool
	addr         netip.Addr
	misses       int
	lastRequest  time.Time
	lastResponse time.Time
}

func (e *entry) resolved() bool {
	return e.addr.IsValid() && !e.addr.IsUnspecified()
}

func (e *entry) reset() {
	*e = entry{addr: protocol.Unspecified()}
}

type planKind int

const (
	planIdle planKind = iota
	planTimeout
	planRetry
)

// plan is the loop's next action: which slot, which deadline.
type plan struct {
	kind     planKind
	slot     int
	gen      uint64
	deadline time.Time
}

// round is the copy of an entry a discovery round works from.
type round struct {
	slot int
	gen  uint64
	name string
	typ  string
	mesh bool
}

// Scheduler tracks watched services and keeps their addresses fresh.
type Scheduler struct {
	mu      sync.Mutex
	entries []entry
	nextGen uint64

	phase    Phase
	target   *Target
	deadline time.Time
	outcome  Outcome

	wake    chan struct{}
	running bool

	disc   Discoverer
	clock  clock.Clock
	timing Timing
	log    *zap.Logger
}

// New creates a scheduler that runs rounds through disc.
func New(disc Discoverer, cfg Config) *Scheduler {
	capacity := cfg.Capacity
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}

	s := &Scheduler{
		entries: make([]entry, capacity),
		wake:    make(chan struct{}, 1),
		disc:    disc,
		clock:   clk,
		timing:  cfg.Timing.withDefaults(),
		log:     logging.Named("scheduler"),
	}
	for i := range s.entries {
		s.entries[i].reset()
	}
	return s
}

// Timing returns the intervals in effect.
func (s *Scheduler) Timing() Timing {
	return s.timing
}

// signal wakes the loop. Signals coalesce.
func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// findLocked returns the slot tracking (name, typ), or -1.
func (s *Scheduler) findLocked(name, typ string) int {
	for i := range s.entries {
		e := &s.entries[i]
		if e.used && e.name == name && e.typ == typ {
			return i
		}
	}
	return -1
}

// Register starts watching (name, typ). The first round is attempted
// immediately.
func (s *Scheduler) Register(name, typ string, mesh bool) error {
	if err := protocol.ValidatePair(name, typ); err != nil {
		return err
	}

	s.mu.Lock()
	if s.findLocked(name, typ) >= 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s/%s", ErrAlreadyExists, name, typ)
	}
	free := -1
	for i := range s.entries {
		if !s.entries[i].used {
			free = i
			break
		}
	}
	if free < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: cannot watch %s/%s (capacity %d)", ErrExhausted, name, typ, len(s.entries))
	}

	s.nextGen++
	s.entries[free] = entry{
		used: true,
		gen:  s.nextGen,
		name: name,
		typ:  typ,
		mesh: mesh,
		addr: protocol.Unspecified(),
	}
	s.mu.Unlock()

	s.log.Info("Watch registered",
		zap.String("name", name),
		zap.String("type", typ),
		zap.Bool("mesh", mesh),
		zap.Int("slot", free),
	)
	s.signal()
	return nil
}

// Unregister stops watching (name, typ).
func (s *Scheduler) Unregister(name, typ string) error {
	s.mu.Lock()
	i := s.findLocked(name, typ)
	if i < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s/%s", ErrNotFound, name, typ)
	}
	s.entries[i].reset()
	s.mu.Unlock()

	s.log.Info("Watch removed", zap.String("name", name), zap.String("type", typ))
	s.signal()
	return nil
}

// UnregisterAll stops watching everything.
func (s *Scheduler) UnregisterAll() {
	s.mu.Lock()
	for i := range s.entries {
		s.entries[i].reset()
	}
	s.mu.Unlock()

	s.log.Info("All watches removed")
	s.signal()
}

// GetAddr returns the cached address of (name, typ).
func (s *Scheduler) GetAddr(name, typ string) (netip.Addr, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.findLocked(name, typ)
	if i < 0 {
		return protocol.Unspecified(), fmt.Errorf("%w: %s/%s", ErrNotFound, name, typ)
	}
	if !s.entries[i].resolved() {
		return protocol.Unspecified(), fmt.Errorf("%w: %s/%s", ErrStillUnresolved, name, typ)
	}
	return s.entries[i].addr, nil
}

// GetAnyAddr returns the address of the first resolved entry in table order.
func (s *Scheduler) GetAnyAddr() (netip.Addr, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.entries {
		if s.entries[i].used && s.entries[i].resolved() {
			return s.entries[i].addr, nil
		}
	}
	return protocol.Unspecified(), ErrNotFound
}

// Snapshot returns a diagnostic copy of the scheduler state.
func (s *Scheduler) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Phase:       s.phase,
		Deadline:    s.deadline,
		LastOutcome: s.outcome,
		Capacity:    len(s.entries),
		Entries:     make([]EntryStatus, 0, len(s.entries)),
		TakenAt:     s.clock.Now(),
	}
	if s.target != nil {
		t := *s.target
		snap.Target = &t
	}
	for i := range s.entries {
		e := &s.entries[i]
		if !e.used {
			continue
		}
		st := EntryStatus{
			Slot:         i,
			Name:         e.name,
			Type:         e.typ,
			Mesh:         e.mesh,
			Resolved:     e.resolved(),
			Misses:       e.misses,
			LastRequest:  e.lastRequest,
			LastResponse: e.lastResponse,
		}
		if st.Resolved {
			st.Addr = e.addr.String()
		}
		snap.Entries = append(snap.Entries, st)
	}
	return snap
}

// planLocked scans the table for the earliest staleness deadline and the
// earliest retry deadline and picks whichever comes first. Ties go to the
// retry; among equal deadlines the lowest slot wins.
func (s *Scheduler) planLocked() plan {
	var (
		timeout, retry         plan
		haveTimeout, haveRetry bool
	)

	for i := range s.entries {
		e := &s.entries[i]
		if !e.used {
			continue
		}
		if due, ok := nextTimeoutDue(e, s.timing); ok && (!haveTimeout || due.Before(timeout.deadline)) {
			timeout = plan{kind: planTimeout, slot: i, gen: e.gen, deadline: due}
			haveTimeout = true
		}
		if due := nextRetryDue(e, s.timing); !haveRetry || due.Before(retry.deadline) {
			retry = plan{kind: planRetry, slot: i, gen: e.gen, deadline: due}
			haveRetry = true
		}
	}

	switch {
	case haveTimeout && (!haveRetry || timeout.deadline.Before(retry.deadline)):
		return timeout
	case haveRetry:
		return retry
	default:
		return plan{kind: planIdle, slot: -1}
	}
}

func (s *Scheduler) setPhaseLocked(p plan) {
	s.deadline = p.deadline
	s.target = nil
	switch p.kind {
	case planIdle:
		s.phase = PhaseIdle
		return
	case planTimeout:
		s.phase = PhaseWaitingForTimeout
	case planRetry:
		s.phase = PhaseWaitingForRetry
	}
	e := &s.entries[p.slot]
	s.target = &Target{Slot: p.slot, Name: e.name, Type: e.typ}
}

// Run drives the watch table until ctx is cancelled. Only one Run may be
// active at a time.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.phase = PhaseIdle
		s.target = nil
		s.deadline = time.Time{}
		s.mu.Unlock()
	}()

	s.log.Info("Scheduler started", zap.Int("capacity", len(s.entries)))
	for {
		s.mu.Lock()
		p := s.planLocked()
		s.setPhaseLocked(p)
		s.mu.Unlock()

		expired, err := s.wait(ctx, p)
		if err != nil {
			s.log.Info("Scheduler stopped")
			return err
		}

		s.mu.Lock()
		if !expired {
			s.outcome = OutcomeInterrupted
			s.mu.Unlock()
			continue
		}
		s.outcome = OutcomeExpired

		switch p.kind {
		case planTimeout:
			s.expireLocked(p)
			s.mu.Unlock()
		case planRetry:
			r, ok := s.beginRoundLocked(p)
			s.mu.Unlock()
			if ok {
				s.runRound(ctx, r)
			}
		default:
			s.mu.Unlock()
		}
	}
}

// wait sleeps until p's deadline, a wake signal or cancellation. expired is
// true only when the deadline was reached.
func (s *Scheduler) wait(ctx context.Context, p plan) (expired bool, err error) {
	if p.kind == planIdle {
		select {
		case <-s.wake:
			return false, nil
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}

	if err := ctx.Err(); err != nil {
		return false, err
	}
	d := p.deadline.Sub(s.clock.Now())
	if d <= 0 {
		return true, nil
	}

	timer := s.clock.Timer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true, nil
	case <-s.wake:
		return false, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// validLocked reports whether p still refers to the entry it was planned for.
func (s *Scheduler) validLocked(p plan) *entry {
	if p.slot < 0 || p.slot >= len(s.entries) {
		return nil
	}
	e := &s.entries[p.slot]
	if !e.used || e.gen != p.gen {
		return nil
	}
	return e
}

func (s *Scheduler) expireLocked(p plan) {
	e := s.validLocked(p)
	if e == nil {
		return
	}
	now := s.clock.Now()
	if due, ok := nextTimeoutDue(e, s.timing); !ok || due.After(now) {
		return
	}

	s.log.Info("Address went stale",
		zap.String("name", e.name),
		zap.String("type", e.typ),
		zap.Stringer("addr", e.addr),
		zap.Time("last_response", e.lastResponse),
	)
	e.addr = protocol.Unspecified()
}

func (s *Scheduler) beginRoundLocked(p plan) (round, bool) {
	e := s.validLocked(p)
	if e == nil {
		return round{}, false
	}
	now := s.clock.Now()
	if nextRetryDue(e, s.timing).After(now) {
		return round{}, false
	}

	e.misses++
	e.lastRequest = now
	s.phase = PhaseDiscovering
	return round{slot: p.slot, gen: e.gen, name: e.name, typ: e.typ, mesh: e.mesh}, true
}

// runRound performs one discovery round without holding the lock. The first
// matching answer is committed under the lock and wakes the loop.
func (s *Scheduler) runRound(ctx context.Context, r round) {
	committed := false
	var resolved netip.Addr

	err := s.disc.Discover(ctx, r.name, r.typ, r.mesh, func(from netip.Addr, name, typ string) {
		if committed || name != r.name || typ != r.typ {
			return
		}

		s.mu.Lock()
		e := s.validLocked(plan{slot: r.slot, gen: r.gen})
		if e == nil {
			s.mu.Unlock()
			return
		}
		e.lastResponse = s.clock.Now()
		e.addr = from
		e.misses = 0
		s.mu.Unlock()

		committed = true
		resolved = from
		s.signal()
	})
	logging.LogRound(r.name, r.typ, r.mesh, resolved, err)
}
