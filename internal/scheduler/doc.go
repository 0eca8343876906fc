// Package scheduler keeps a small set of (name, type) resolutions fresh.
//
// Consumers register the services they want to reach and read the cached
// address whenever they need it; GetAddr never blocks and never does I/O.
// A single control loop (Run) owns all discovery traffic. It always acts on
// the earliest deadline across the whole watch table:
//
//   - a retry deadline, computed with a capped linear backoff from the
//     number of consecutive rounds that found nothing, starts a discovery
//     round for that entry;
//   - a staleness deadline, StaleInterval after the last answer, forgets a
//     resolved address.
//
// Every mutation that can move the earliest deadline (registration,
// unregistration, an answer arriving) wakes the loop so it never sleeps past
// a changed target.
//
// # Backoff quirk
//
// Once misses*MinInterval exceeds MaxInterval the delay is pinned at
// MaxInterval and the miss counter is decremented, so the counter settles
// just above the cap instead of growing without bound.
package scheduler
