package config

import (
	"time"

	"github.com/muurk/meshsd/internal/protocol"
	"github.com/muurk/meshsd/internal/registry"
	"github.com/muurk/meshsd/internal/scheduler"
	"github.com/muurk/meshsd/internal/sd"
)

// CurrentVersion is the only file format version understood.
const CurrentVersion = 1

// Config represents the entire node configuration file.
type Config struct {
	Version  int                `yaml:"version"`
	Node     Node               `yaml:"node"`
	Services []protocol.Service `yaml:"services,omitempty"` // Advertised by the responder
	Watch    []Watch            `yaml:"watch,omitempty"`    // Kept resolved by the scheduler
	Limits   Limits             `yaml:"limits"`
	Timing   Timing             `yaml:"timing"`
	Diag     Diag               `yaml:"diag"`
}

// Node holds the local endpoint settings.
type Node struct {
	Listen        string `yaml:"listen"`         // UDP listen address of the responder
	Interface     string `yaml:"interface"`      // Multicast interface, empty = system default
	AdvertiseMDNS bool   `yaml:"advertise_mdns"` // Announce the node as _coap._udp
	Instance      string `yaml:"instance"`       // DNS-SD instance name
}

// Watch is one service the scheduler keeps resolved.
type Watch struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
	Mesh bool   `yaml:"mesh"` // Query the mesh-local group instead of the site-local one
}

// Limits sizes the fixed tables.
type Limits struct {
	MaxServices int `yaml:"max_services"`
	MaxWatches  int `yaml:"max_watches"`
}

// Timing holds every protocol interval.
type Timing struct {
	MinInterval   time.Duration `yaml:"min_interval"`
	MaxInterval   time.Duration `yaml:"max_interval"`
	StaleInterval time.Duration `yaml:"stale_interval"`
	Jitter        time.Duration `yaml:"jitter"`
	RoundTimeout  time.Duration `yaml:"round_timeout"`
}

// Diag configures the diagnostics HTTP server.
type Diag struct {
	Listen string `yaml:"listen"` // Empty disables the server
}

// Default values
const (
	DefaultListen     = "[::]:5683"
	DefaultInstance   = "meshsd"
	DefaultDiagListen = "127.0.0.1:8086"
)

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Version: CurrentVersion,
		Node: Node{
			Listen:        DefaultListen,
			AdvertiseMDNS: true,
			Instance:      DefaultInstance,
		},
		Limits: Limits{
			MaxServices: registry.DefaultCapacity,
			MaxWatches:  scheduler.DefaultCapacity,
		},
		Timing: Timing{
			MinInterval:   scheduler.DefaultMinInterval,
			MaxInterval:   scheduler.DefaultMaxInterval,
			StaleInterval: scheduler.DefaultStaleInterval,
			Jitter:        sd.DefaultJitter,
			RoundTimeout:  sd.DefaultRoundTimeout,
		},
		Diag: Diag{
			Listen: DefaultDiagListen,
		},
	}
}

// Scheduler returns the scheduler intervals.
func (t Timing) Scheduler() scheduler.Timing {
	return scheduler.Timing{
		MinInterval:   t.MinInterval,
		MaxInterval:   t.MaxInterval,
		StaleInterval: t.StaleInterval,
	}
}

// fillDefaults replaces zero values left out of a partial file.
func (c *Config) fillDefaults() {
	d := NewConfig()

	if c.Node.Listen == "" {
		c.Node.Listen = d.Node.Listen
	}
	if c.Node.Instance == "" {
		c.Node.Instance = d.Node.Instance
	}
	if c.Limits.MaxServices == 0 {
		c.Limits.MaxServices = d.Limits.MaxServices
	}
	if c.Limits.MaxWatches == 0 {
		c.Limits.MaxWatches = d.Limits.MaxWatches
	}
	if c.Timing.MinInterval == 0 {
		c.Timing.MinInterval = d.Timing.MinInterval
	}
	if c.Timing.MaxInterval == 0 {
		c.Timing.MaxInterval = d.Timing.MaxInterval
	}
	if c.Timing.StaleInterval == 0 {
		c.Timing.StaleInterval = d.Timing.StaleInterval
	}
	if c.Timing.Jitter == 0 {
		c.Timing.Jitter = d.Timing.Jitter
	}
	if c.Timing.RoundTimeout == 0 {
		c.Timing.RoundTimeout = d.Timing.RoundTimeout
	}
}
