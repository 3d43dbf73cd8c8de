package api

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/rpc"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/chargepal/chargepald/pkg/battery"
	"github.com/chargepal/chargepald/pkg/events"
	"github.com/chargepal/chargepald/pkg/livestore"
	"github.com/chargepal/chargepald/pkg/log"
	"github.com/chargepal/chargepald/pkg/metrics"
	"github.com/chargepal/chargepald/pkg/planner"
	"github.com/chargepal/chargepald/pkg/stations"
)

// Server exposes the fleet controller to robots over msgpack RPC. Every
// endpoint answers domain negatives in its reply type; errors reach the
// transport only when the connection itself is broken.
type Server struct {
	logger zerolog.Logger

	planner   *planner.Planner
	picker    *stations.Picker
	commander *battery.Commander
	live      *livestore.Store
	broker    *events.Broker

	rpcServer *rpc.Server
	listener  net.Listener

	ctx          context.Context
	cancel       context.CancelFunc
	shutdownCh   chan struct{}
	shutdownOnce sync.Once
}

// NewServer creates the RPC server and registers its endpoints. The events
// broker may be nil.
func NewServer(pln *planner.Planner, picker *stations.Picker, commander *battery.Commander, live *livestore.Store, broker *events.Broker) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		logger:     log.WithComponent("api"),
		planner:    pln,
		picker:     picker,
		commander:  commander,
		live:       live,
		broker:     broker,
		rpcServer:  rpc.NewServer(),
		ctx:        ctx,
		cancel:     cancel,
		shutdownCh: make(chan struct{}),
	}

	s.rpcServer.Register(&Jobs{srv: s})
	s.rpcServer.Register(&Stations{srv: s})
	s.rpcServer.Register(&Bookings{srv: s})
	s.rpcServer.Register(&Battery{srv: s})
	s.rpcServer.Register(&Data{srv: s})

	return s
}

// Start begins accepting robot connections on addr
func (s *Server) Start(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener
	s.logger.Info().Str("addr", listener.Addr().String()).Msg("RPC server listening")

	go s.listen()
	return nil
}

// Addr returns the bound listener address, nil before Start
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop closes the listener and tears down open connections. Safe to call
// more than once.
func (s *Server) Stop() {
	s.shutdownOnce.Do(func() {
		close(s.shutdownCh)
		s.cancel()
		if s.listener != nil {
			_ = s.listener.Close()
		}
	})
}

// listen accepts connections until the listener closes
func (s *Server) listen() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.shutdownCh:
				return
			default:
			}
			s.logger.Error().Err(err).Msg("Failed to accept RPC conn")
			continue
		}
		go s.handleConn(conn)
	}
}

// handleConn serves requests from one robot connection until it closes.
// Robots hold their connection open and issue calls sequentially.
func (s *Server) handleConn(conn net.Conn) {
	defer func() { _ = conn.Close() }()
	codec := NewServerCodec(conn)

	for {
		select {
		case <-s.shutdownCh:
			return
		default:
		}

		if err := s.rpcServer.ServeRequest(codec); err != nil {
			if err != io.EOF && !strings.Contains(err.Error(), "closed") {
				s.logger.Error().Err(err).
					Str("remote", conn.RemoteAddr().String()).
					Msg("RPC request failed")
			}
			return
		}
	}
}

// observe records one served RPC for the metrics endpoint
func observe(method string, start time.Time, success bool) {
	status := "ok"
	if !success {
		status = "negative"
	}
	metrics.RPCRequestsTotal.WithLabelValues(method, status).Inc()
	metrics.RPCRequestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
}
