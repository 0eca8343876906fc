package sd

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	coap "github.com/dustin/go-coap"
	"go.uber.org/zap"

	"github.com/muurk/meshsd/internal/logging"
	"github.com/muurk/meshsd/internal/protocol"
	"github.com/muurk/meshsd/internal/transport"
)

// DefaultJitter bounds the random delay before a reply.
const DefaultJitter = 512 * time.Millisecond

// maxDatagram is the IPv6 minimum MTU; discovery messages are far smaller.
const maxDatagram = 1280

// Rand is the randomness used for reply jitter. *rand.Rand satisfies it.
type Rand interface {
	Int63n(n int64) int64
}

// ServerConfig holds the responder loop configuration
type ServerConfig struct {
	Clock  clock.Clock   // Defaults to the real clock
	Rand   Rand          // Defaults to a time-seeded source
	Jitter time.Duration // Upper bound (exclusive) of the reply delay, 0 = DefaultJitter
}

// Server reads requests from a listener, dispatches them through a Mux and
// writes replies after a jitter delay.
type Server struct {
	mux    *Mux
	clock  clock.Clock
	rand   Rand
	jitter time.Duration
	log    *zap.Logger

	wg sync.WaitGroup
}

// NewServer creates a Server for mux.
func NewServer(mux *Mux, cfg ServerConfig) *Server {
	s := &Server{
		mux:    mux,
		clock:  cfg.Clock,
		rand:   cfg.Rand,
		jitter: cfg.Jitter,
		log:    logging.Named("sd.server"),
	}
	if s.clock == nil {
		s.clock = clock.New()
	}
	if s.rand == nil {
		s.rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if s.jitter <= 0 {
		s.jitter = DefaultJitter
	}
	return s
}

// JitterDelay draws a reply delay uniformly from [0, Jitter).
func (s *Server) JitterDelay() time.Duration {
	return time.Duration(s.rand.Int63n(int64(s.jitter)))
}

// Serve reads from conn until it is closed or ctx is cancelled. Cancelling
// ctx closes conn. Pending replies are abandoned on cancellation.
func (s *Server) Serve(ctx context.Context, conn transport.PacketConn) error {
	stop := context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})
	defer stop()
	defer s.wg.Wait()

	s.log.Info("Discovery responder started")
	buf := make([]byte, maxDatagram)
	for {
		n, from, err := conn.ReadFrom(buf)
		if err != nil {
			if transport.IsTimeout(err) {
				continue
			}
			if transport.IsClosed(err) || ctx.Err() != nil {
				s.log.Info("Discovery responder stopped")
				return nil
			}
			return fmt.Errorf("responder receive failed: %w", err)
		}

		data := append([]byte(nil), buf[:n]...)
		s.handle(ctx, conn, data, from)
	}
}

func (s *Server) handle(ctx context.Context, conn transport.PacketConn, data []byte, from net.Addr) {
	peer := from.String()
	logging.LogDatagram("received", peer, data)

	req, err := coap.ParseMessage(data)
	if err != nil {
		logging.LogDropped(peer, err, data)
		return
	}

	reply, err := s.mux.Dispatch(req)
	switch {
	case errors.Is(err, protocol.ErrConfirmable):
		s.log.Debug("Refusing confirmable discovery request", zap.String("peer", peer))
		return
	case errors.Is(err, ErrNoMatch):
		s.log.Debug("Query matched no local service", zap.String("peer", peer), zap.Error(err))
		return
	case err != nil:
		logging.LogDropped(peer, err, data)
		return
	case reply == nil:
		return
	}

	delay := s.JitterDelay()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.replyAfter(ctx, conn, reply, from, delay)
	}()
}

func (s *Server) replyAfter(ctx context.Context, conn transport.PacketConn, reply []byte, to net.Addr, delay time.Duration) {
	if delay > 0 {
		timer := s.clock.Timer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}

	if _, err := conn.WriteTo(reply, to); err != nil {
		s.log.Warn("Failed to send discovery reply",
			zap.String("peer", to.String()),
			zap.Error(err),
		)
		return
	}
	logging.LogDatagram("sent", to.String(), reply)
}

// NewDiscoveryMux returns a Mux with the sd resource served by r.
func NewDiscoveryMux(r *Responder) *Mux {
	m := NewMux()
	m.Handle(coap.GET, protocol.ResourcePath, r.Handler())
	return m
}
