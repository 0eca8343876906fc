package scheduler

import (
	"fmt"
	"time"
)

// Phase is what the control loop is currently doing.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseWaitingForTimeout
	PhaseWaitingForRetry
	PhaseDiscovering
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseWaitingForTimeout:
		return "waiting-for-timeout"
	case PhaseWaitingForRetry:
		return "waiting-for-retry"
	case PhaseDiscovering:
		return "discovering"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// MarshalText renders the phase name in JSON.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText parses a phase name.
func (p *Phase) UnmarshalText(text []byte) error {
	for c := PhaseIdle; c <= PhaseDiscovering; c++ {
		if c.String() == string(text) {
			*p = c
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", text)
}

// Outcome is how the loop's last wait ended.
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeExpired
	OutcomeInterrupted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNone:
		return "none"
	case OutcomeExpired:
		return "expired"
	case OutcomeInterrupted:
		return "interrupted"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// MarshalText renders the outcome name in JSON.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText parses an outcome name.
func (o *Outcome) UnmarshalText(text []byte) error {
	for c := OutcomeNone; c <= OutcomeInterrupted; c++ {
		if c.String() == string(text) {
			*o = c
			return nil
		}
	}
	return fmt.Errorf("unknown outcome %q", text)
}

// Target identifies the entry the loop is waiting on.
type Target struct {
	Slot int    `json:"slot"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// EntryStatus is a copy of one tracked watch entry.
type EntryStatus struct {
	Slot         int       `json:"slot"`
	Name         string    `json:"name"`
	Type         string    `json:"type"`
	Mesh         bool      `json:"mesh"`
	Addr         string    `json:"addr,omitempty"`
	Resolved     bool      `json:"resolved"`
	Misses       int       `json:"misses"`
	LastRequest  time.Time `json:"last_request,omitempty"`
	LastResponse time.Time `json:"last_response,omitempty"`
}

// Snapshot is a read-only diagnostic view of the scheduler. Nothing in the
// scheduler itself reads it.
type Snapshot struct {
	Phase       Phase         `json:"phase"`
	Target      *Target       `json:"target,omitempty"`
	Deadline    time.Time     `json:"deadline,omitempty"`
	LastOutcome Outcome       `json:"last_outcome"`
	Capacity    int           `json:"capacity"`
	Entries     []EntryStatus `json:"entries"`
	TakenAt     time.Time     `json:"taken_at"`
}
