// Package visualiser streams rig and spawn events to render clients over
// gRPC. Each client gets its own event hub subscription; a slow client
// loses events rather than stalling the tick loop.
package visualiser

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/banshee-data/spraypaint/internal/events"
	"github.com/banshee-data/spraypaint/internal/monitoring"
)

// Config holds configuration for the visualiser gRPC server.
type Config struct {
	// ListenAddr is the address to listen on (e.g., "localhost:50061")
	ListenAddr string

	// MaxClients is the maximum number of concurrent streaming clients
	MaxClients int

	// ClientBuffer is the per-client event buffer
	ClientBuffer int
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		ListenAddr:   "localhost:50061",
		MaxClients:   8,
		ClientBuffer: 256,
	}
}

// Stats reports streaming counters.
type Stats struct {
	Clients int32  `json:"clients"`
	Sent    uint64 `json:"sent"`
}

// Server implements EventStreamServer over an events.Hub.
type Server struct {
	config Config
	hub    *events.Hub

	server   *grpc.Server
	listener net.Listener

	nextClient atomic.Uint64
	clients    atomic.Int32
	sent       atomic.Uint64

	running atomic.Bool
	wg      sync.WaitGroup

	logf func(format string, v ...interface{})
}

var _ EventStreamServer = (*Server)(nil)

// NewServer creates a server that streams events published on hub.
func NewServer(cfg Config, hub *events.Hub) *Server {
	def := DefaultConfig()
	if cfg.MaxClients <= 0 {
		cfg.MaxClients = def.MaxClients
	}
	if cfg.ClientBuffer <= 0 {
		cfg.ClientBuffer = def.ClientBuffer
	}
	return &Server{
		config: cfg,
		hub:    hub,
		logf:   monitoring.Component("visualiser"),
	}
}

// Subscribe streams hub events to one client until it goes away or the
// hub closes.
func (s *Server) Subscribe(req *structpb.Struct, stream grpc.ServerStream) error {
	kinds, err := kindsFromRequest(req)
	if err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}

	if n := s.clients.Add(1); int(n) > s.config.MaxClients {
		s.clients.Add(-1)
		return status.Errorf(codes.ResourceExhausted, "at most %d clients", s.config.MaxClients)
	}
	defer s.clients.Add(-1)

	name := fmt.Sprintf("grpc-%d", s.nextClient.Add(1))
	if label := req.GetFields()["client"].GetStringValue(); label != "" {
		name += "-" + label
	}
	ch, cancel := s.hub.Subscribe(name, s.config.ClientBuffer)
	defer cancel()

	s.logf("client %s connected", name)
	defer func() { s.logf("client %s disconnected (dropped %d)", name, s.hub.Dropped(name)) }()

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e, ok := <-ch:
			if !ok {
				return status.Error(codes.Unavailable, "event stream closed")
			}
			if kinds != nil && !kinds[e.Kind] {
				continue
			}
			msg, err := EventToStruct(e)
			if err != nil {
				s.logf("encode %v: %v", e.Kind, err)
				continue
			}
			if err := stream.SendMsg(msg); err != nil {
				return err
			}
			s.sent.Add(1)
		}
	}
}

// Stats returns the current streaming counters.
func (s *Server) Stats() Stats {
	return Stats{Clients: s.clients.Load(), Sent: s.sent.Load()}
}

// Start binds the listen address and serves in the background.
func (s *Server) Start() error {
	if s.running.Load() {
		return fmt.Errorf("visualiser already running")
	}

	lis, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return s.Serve(lis)
}

// Serve serves on an existing listener in the background.
func (s *Server) Serve(lis net.Listener) error {
	if !s.running.CompareAndSwap(false, true) {
		return fmt.Errorf("visualiser already running")
	}
	s.listener = lis
	s.server = grpc.NewServer()
	RegisterService(s.server, s)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logf("gRPC server listening on %s", lis.Addr())
		if err := s.server.Serve(lis); err != nil && s.running.Load() {
			s.logf("gRPC server error: %v", err)
		}
	}()
	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop ends every stream and stops the server.
func (s *Server) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}
	// Streams block on the hub; Stop rather than GracefulStop so they end.
	s.server.Stop()
	s.wg.Wait()
	s.logf("gRPC server stopped")
}

// Run starts the server and stops it when ctx is done.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	s.Stop()
	return nil
}
