package node

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/muurk/meshsd/internal/config"
	"github.com/muurk/meshsd/internal/diag"
	"github.com/muurk/meshsd/internal/discovery"
	"github.com/muurk/meshsd/internal/logging"
	"github.com/muurk/meshsd/internal/protocol"
	"github.com/muurk/meshsd/internal/registry"
	"github.com/muurk/meshsd/internal/scheduler"
	"github.com/muurk/meshsd/internal/sd"
	"github.com/muurk/meshsd/internal/transport"
)

// shutdownTimeout bounds the diagnostics server shutdown.
const shutdownTimeout = 5 * time.Second

// ListenFunc opens the responder endpoint.
type ListenFunc func(ctx context.Context, addr, ifname string) (transport.PacketConn, error)

// Options replaces the network and time dependencies of a Node.
type Options struct {
	Version string
	Listen  ListenFunc       // Defaults to transport.Listen
	Dialer  transport.Dialer // Defaults to a transport.UDPDialer on the configured interface
	Clock   clock.Clock      // Defaults to the real clock
}

// Node is a running meshsd instance.
type Node struct {
	mu  sync.Mutex
	cfg *config.Config

	opts      Options
	ids       *protocol.IDSource
	registry  *registry.Registry
	server    *sd.Server
	client    *sd.Client
	scheduler *scheduler.Scheduler
	diag      *diag.Server
	adv       *discovery.Advertiser
	log       *zap.Logger
}

// New builds a node from cfg. Tables are sized from cfg.Limits and stay
// that size for the node's lifetime.
func New(cfg *config.Config, opts Options) (*Node, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.Listen == nil {
		opts.Listen = func(ctx context.Context, addr, ifname string) (transport.PacketConn, error) {
			l, err := transport.Listen(ctx, addr, ifname)
			if err != nil {
				return nil, err
			}
			return l, nil
		}
	}
	if opts.Dialer == nil {
		opts.Dialer = &transport.UDPDialer{Interface: cfg.Node.Interface}
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}

	n := &Node{
		cfg:      cfg,
		opts:     opts,
		ids:      protocol.NewIDSource(),
		registry: registry.New(cfg.Limits.MaxServices),
		log:      logging.Named("node"),
	}

	responder := sd.NewResponder(n.registry, n.ids)
	n.server = sd.NewServer(sd.NewDiscoveryMux(responder), sd.ServerConfig{
		Clock:  opts.Clock,
		Jitter: cfg.Timing.Jitter,
	})

	n.client = sd.NewClient(opts.Dialer, n.ids)
	n.client.SetRoundTimeout(cfg.Timing.RoundTimeout)
	n.scheduler = scheduler.New(n.client, scheduler.Config{
		Capacity: cfg.Limits.MaxWatches,
		Timing:   cfg.Timing.Scheduler(),
		Clock:    opts.Clock,
	})

	if cfg.Diag.Listen != "" {
		n.diag = diag.New(diag.Config{Listen: cfg.Diag.Listen, Clock: opts.Clock}, diag.Sources{
			Instance:  cfg.Node.Instance,
			Version:   opts.Version,
			Services:  n.registry,
			Scheduler: n.scheduler,
		})
	}

	if err := n.load(cfg); err != nil {
		return nil, err
	}
	return n, nil
}

// Registry returns the advertised service table.
func (n *Node) Registry() *registry.Registry {
	return n.registry
}

// Scheduler returns the watch scheduler.
func (n *Node) Scheduler() *scheduler.Scheduler {
	return n.scheduler
}

// Config returns the configuration in effect.
func (n *Node) Config() *config.Config {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.cfg
}

// load fills the registry and the watch table from cfg.
func (n *Node) load(cfg *config.Config) error {
	err := n.registry.Replace(cfg.Services)

	n.scheduler.UnregisterAll()
	for _, w := range cfg.Watch {
		err = multierr.Append(err, n.scheduler.Register(w.Name, w.Type, w.Mesh))
	}
	return err
}

// Apply switches to cfg: the registry is rebuilt and every watch is
// registered afresh. Table sizes, timing and endpoints keep their startup
// values.
func (n *Node) Apply(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if cfg.Limits != n.cfg.Limits || cfg.Timing != n.cfg.Timing || cfg.Node != n.cfg.Node || cfg.Diag != n.cfg.Diag {
		n.log.Warn("Only services and watches are reloaded; other changes need a restart")
	}

	err := n.load(cfg)
	if n.adv != nil {
		n.adv.Update(n.registry.Records())
	}
	n.cfg = cfg

	n.log.Info("Configuration applied",
		zap.Int("services", n.registry.Len()),
		zap.Int("watches", len(cfg.Watch)),
		zap.Error(err),
	)
	return err
}

// Run serves until ctx is cancelled or a component fails, then stops
// everything. Cancellation is a clean exit and returns nil.
func (n *Node) Run(ctx context.Context) error {
	n.mu.Lock()
	cfg := n.cfg
	n.mu.Unlock()

	conn, err := n.opts.Listen(ctx, cfg.Node.Listen, cfg.Node.Interface)
	if err != nil {
		return err
	}

	if n.diag != nil {
		if err := n.diag.Start(); err != nil {
			_ = conn.Close()
			return err
		}
	}

	if cfg.Node.AdvertiseMDNS {
		if err := n.advertise(cfg, conn); err != nil {
			// The node stays reachable over CoAP multicast.
			n.log.Warn("mDNS advertisement unavailable", zap.Error(err))
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg      sync.WaitGroup
		errMu   sync.Mutex
		runErrs error
	)
	record := func(component string, err error) {
		if err == nil || errors.Is(err, context.Canceled) {
			return
		}
		errMu.Lock()
		runErrs = multierr.Append(runErrs, fmt.Errorf("%s: %w", component, err))
		errMu.Unlock()
		cancel()
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		record("responder", n.server.Serve(ctx, conn))
	}()
	go func() {
		defer wg.Done()
		record("scheduler", n.scheduler.Run(ctx))
	}()

	n.log.Info("Node running",
		zap.String("instance", cfg.Node.Instance),
		zap.String("listen", cfg.Node.Listen),
		zap.Int("services", n.registry.Len()),
		zap.Int("watches", len(cfg.Watch)),
	)

	<-ctx.Done()
	wg.Wait()
	return multierr.Append(runErrs, n.shutdown())
}

func (n *Node) advertise(cfg *config.Config, conn transport.PacketConn) error {
	port := protocol.Port
	if pc, ok := conn.(interface{ LocalAddr() net.Addr }); ok {
		if _, p, err := net.SplitHostPort(pc.LocalAddr().String()); err == nil {
			if v, err := strconv.Atoi(p); err == nil {
				port = v
			}
		}
	}

	adv, err := discovery.Advertise(cfg.Node.Instance, cfg.Node.Interface, port, n.opts.Version, n.registry.Records())
	if err != nil {
		return err
	}
	n.mu.Lock()
	n.adv = adv
	n.mu.Unlock()
	return nil
}

func (n *Node) shutdown() error {
	var err error

	n.mu.Lock()
	if n.adv != nil {
		n.adv.Shutdown()
		n.adv = nil
	}
	n.mu.Unlock()

	if n.diag != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err = multierr.Append(err, n.diag.Shutdown(ctx))
	}

	n.log.Info("Node stopped", zap.Error(err))
	return err
}
