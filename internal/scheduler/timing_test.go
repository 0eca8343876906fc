package scheduler

import (
	"net/netip"
	"testing"
	"time"
)

func TestNextRetryDue_FirstRoundImmediate(t *testing.T) {
	e := &entry{used: true, name: "ceiling", typ: "rgbw"}
	if due := nextRetryDue(e, DefaultTiming()); !due.IsZero() {
		t.Errorf("nextRetryDue() = %v, want zero time", due)
	}
}

func TestNextRetryDue_LinearThenCapped(t *testing.T) {
	timing := DefaultTiming()
	base := time.Unix(1000, 0)

	tests := []struct {
		misses int
		want   time.Duration
	}{
		{0, 10 * time.Minute},
		{1, 10 * time.Second},
		{2, 20 * time.Second},
		{6, time.Minute},
		{60, 10 * time.Minute},
		{61, 10 * time.Minute},
		{200, 10 * time.Minute},
	}

	for _, tt := range tests {
		e := &entry{used: true, misses: tt.misses, lastRequest: base}
		if got := nextRetryDue(e, timing).Sub(base); got != tt.want {
			t.Errorf("nextRetryDue() with %d misses = %v, want %v", tt.misses, got, tt.want)
		}
	}
}

// A silent service is retried with growing gaps that never leave
// [MinInterval, MaxInterval], and the miss counter stays bounded.
func TestNextRetryDue_SilentServiceSequence(t *testing.T) {
	timing := DefaultTiming()
	limit := int(timing.MaxInterval/timing.MinInterval) + 1

	e := &entry{used: true, lastRequest: time.Unix(0, 0), misses: 1}
	var prev time.Duration
	for round := 0; round < 500; round++ {
		due := nextRetryDue(e, timing)
		gap := due.Sub(e.lastRequest)

		if gap < timing.MinInterval || gap > timing.MaxInterval {
			t.Fatalf("round %d: gap %v outside [%v, %v]", round, gap, timing.MinInterval, timing.MaxInterval)
		}
		if gap < prev {
			t.Fatalf("round %d: gap shrank from %v to %v", round, prev, gap)
		}
		prev = gap

		e.lastRequest = due
		e.misses++
		if e.misses > limit {
			t.Fatalf("round %d: misses = %d, want <= %d", round, e.misses, limit)
		}
	}
	if prev != timing.MaxInterval {
		t.Errorf("final gap = %v, want %v", prev, timing.MaxInterval)
	}
}

func TestNextTimeoutDue(t *testing.T) {
	timing := DefaultTiming()
	answered := time.Unix(500, 0)

	tests := []struct {
		name   string
		e      entry
		wantOK bool
	}{
		{"never answered", entry{used: true, addr: netip.IPv6Unspecified()}, false},
		{"answered but forgotten", entry{used: true, addr: netip.IPv6Unspecified(), lastResponse: answered}, false},
		{"resolved", entry{used: true, addr: netip.MustParseAddr("fe80::2"), lastResponse: answered}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			due, ok := nextTimeoutDue(&tt.e, timing)
			if ok != tt.wantOK {
				t.Fatalf("nextTimeoutDue() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && !due.Equal(answered.Add(31*time.Minute)) {
				t.Errorf("nextTimeoutDue() = %v, want %v", due, answered.Add(31*time.Minute))
			}
		})
	}
}

func TestTiming_WithDefaults(t *testing.T) {
	got := Timing{MinInterval: time.Second}.withDefaults()
	want := Timing{MinInterval: time.Second, MaxInterval: DefaultMaxInterval, StaleInterval: DefaultStaleInterval}
	if got != want {
		t.Errorf("withDefaults() = %+v, want %+v", got, want)
	}
}
