package config

import (
	"errors"
	"fmt"
	"net"

	"go.uber.org/multierr"

	"github.com/muurk/meshsd/internal/protocol"
)

// ErrUnsupportedVersion is returned for files written by an unknown format.
var ErrUnsupportedVersion = errors.New("unsupported config version")

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// Validate checks the whole configuration and reports every problem found.
func (c *Config) Validate() error {
	var errs []error

	if c.Version != CurrentVersion {
		errs = append(errs, fmt.Errorf("%w: %d (expected %d)", ErrUnsupportedVersion, c.Version, CurrentVersion))
	}

	if _, _, err := net.SplitHostPort(c.Node.Listen); err != nil {
		errs = append(errs, invalid("node.listen %q: %v", c.Node.Listen, err))
	}
	if c.Diag.Listen != "" {
		if _, _, err := net.SplitHostPort(c.Diag.Listen); err != nil {
			errs = append(errs, invalid("diag.listen %q: %v", c.Diag.Listen, err))
		}
	}

	if c.Limits.MaxServices < 1 {
		errs = append(errs, invalid("limits.max_services must be at least 1"))
	}
	if c.Limits.MaxWatches < 1 {
		errs = append(errs, invalid("limits.max_watches must be at least 1"))
	}
	if len(c.Services) > c.Limits.MaxServices {
		errs = append(errs, invalid("%d services exceed limits.max_services (%d)", len(c.Services), c.Limits.MaxServices))
	}
	if len(c.Watch) > c.Limits.MaxWatches {
		errs = append(errs, invalid("%d watches exceed limits.max_watches (%d)", len(c.Watch), c.Limits.MaxWatches))
	}

	for i, svc := range c.Services {
		if err := protocol.ValidatePair(svc.Name, svc.Type); err != nil {
			errs = append(errs, fmt.Errorf("services[%d]: %w", i, err))
		}
	}

	seen := make(map[protocol.Service]int)
	for i, w := range c.Watch {
		if err := protocol.ValidatePair(w.Name, w.Type); err != nil {
			errs = append(errs, fmt.Errorf("watch[%d]: %w", i, err))
			continue
		}
		key := protocol.Service{Name: w.Name, Type: w.Type}
		if j, dup := seen[key]; dup {
			errs = append(errs, invalid("watch[%d] repeats watch[%d] (%s)", i, j, key))
		}
		seen[key] = i
	}

	t := c.Timing
	if t.MinInterval <= 0 || t.MaxInterval <= 0 || t.StaleInterval <= 0 {
		errs = append(errs, invalid("timing intervals must be positive"))
	} else if t.MinInterval > t.MaxInterval {
		errs = append(errs, invalid("timing.min_interval %v exceeds timing.max_interval %v", t.MinInterval, t.MaxInterval))
	}
	if t.Jitter < 0 {
		errs = append(errs, invalid("timing.jitter must not be negative"))
	}
	if t.RoundTimeout <= 0 {
		errs = append(errs, invalid("timing.round_timeout must be positive"))
	}

	return multierr.Combine(errs...)
}
