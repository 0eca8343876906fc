package scheduler

import "time"

// Default intervals.
const (
	DefaultMinInterval   = 10 * time.Second
	DefaultMaxInterval   = 10 * time.Minute
	DefaultStaleInterval = 31 * time.Minute
)

// Timing holds the backoff and staleness intervals.
type Timing struct {
	MinInterval   time.Duration `json:"min_interval" yaml:"min_interval"`
	MaxInterval   time.Duration `json:"max_interval" yaml:"max_interval"`
	StaleInterval time.Duration `json:"stale_interval" yaml:"stale_interval"`
}

// DefaultTiming returns the standard intervals.
func DefaultTiming() Timing {
	return Timing{
		MinInterval:   DefaultMinInterval,
		MaxInterval:   DefaultMaxInterval,
		StaleInterval: DefaultStaleInterval,
	}
}

// withDefaults fills zero fields.
func (t Timing) withDefaults() Timing {
	d := DefaultTiming()
	if t.MinInterval <= 0 {
		t.MinInterval = d.MinInterval
	}
	if t.MaxInterval <= 0 {
		t.MaxInterval = d.MaxInterval
	}
	if t.StaleInterval <= 0 {
		t.StaleInterval = d.StaleInterval
	}
	return t
}

// nextRetryDue returns when e should next be queried. A zero result means
// "now". It may decrement e.misses, see the package documentation.
func nextRetryDue(e *entry, t Timing) time.Time {
	if e.lastRequest.IsZero() {
		return time.Time{}
	}

	wait := t.MaxInterval
	if e.misses > 0 {
		wait = t.MinInterval * time.Duration(e.misses)
	}
	if wait > t.MaxInterval {
		wait = t.MaxInterval
		e.misses--
	}
	return e.lastRequest.Add(wait)
}

// nextTimeoutDue returns when e's address goes stale. ok is false when the
// entry holds no address.
func nextTimeoutDue(e *entry, t Timing) (due time.Time, ok bool) {
	if e.lastResponse.IsZero() || !e.resolved() {
		return time.Time{}, false
	}
	return e.lastResponse.Add(t.StaleInterval), true
}
