package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/soheilhy/cmux"
	"go.graphsync.dev/core/task"
	"golang.org/x/net/netutil"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Server bundles gRPC & HTTP servers, multiplexed over a single bound TCP
// socket (using CMux). The gRPC server provides the standard health service,
// which reports NOT_SERVING until SetServing is called.
type Server struct {
	// RawListener is the bound TCP listener of the Server.
	RawListener *net.TCPListener
	// CMux wraps RawListener to provide connection protocol multiplexing over
	// a single bound socket. gRPC and HTTP Listeners are provided by default.
	CMux cmux.CMux
	// GRPCListener is a CMux Listener for gRPC connections.
	GRPCListener net.Listener
	// HTTPListener is a CMux Listener for HTTP connections.
	HTTPListener net.Listener
	// HTTPMux is the http.ServeMux which is served by QueueTasks.
	HTTPMux *http.ServeMux
	// HTTPServer serves HTTPMux over HTTPListener.
	HTTPServer *http.Server
	// GRPCServer is the gRPC server which is served by QueueTasks.
	GRPCServer *grpc.Server
	// Health is the health service of GRPCServer.
	Health *health.Server
	// Ctx is cancelled when the Server begins a graceful stop.
	Ctx context.Context

	cancel context.CancelFunc
}

// New builds and returns a Server of the given TCP network interface |iface|
// and |port|. |port| may be zero, in which case a random free port is assigned.
// If |maxConns| is non-zero, at most |maxConns| connections are served at once.
func New(iface string, port uint16, maxConns int) (*Server, error) {
	var addr = fmt.Sprintf("%s:%d", iface, port)
	var lc = net.ListenConfig{KeepAlive: keepAlivePeriod}

	var raw, err = lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to bind service address (%s)", addr)
	}
	var ln = raw
	if maxConns > 0 {
		ln = netutil.LimitListener(raw, maxConns)
	}

	var ctx, cancel = context.WithCancel(context.Background())
	var srv = &Server{
		RawListener: raw.(*net.TCPListener),
		HTTPMux:     http.DefaultServeMux,
		GRPCServer: grpc.NewServer(
			grpc.UnaryInterceptor(grpc_prometheus.UnaryServerInterceptor),
			grpc.StreamInterceptor(grpc_prometheus.StreamServerInterceptor),
		),
		Health: health.NewServer(),
		Ctx:    ctx,
		cancel: cancel,
	}
	srv.HTTPServer = &http.Server{
		Handler:           srv.HTTPMux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	healthpb.RegisterHealthServer(srv.GRPCServer, srv.Health)
	grpc_prometheus.Register(srv.GRPCServer)
	srv.SetServing(false)

	srv.CMux = cmux.New(ln)
	srv.CMux.HandleError(func(err error) bool {
		if _, ok := err.(net.Error); !ok {
			log.WithField("err", err).Warn("failed to CMux client connection to a listener")
		}
		return true // Continue serving RawListener.
	})

	// GRPCListener sniffs for HTTP/2 in-the-clear connections which have
	// "Content-Type: application/grpc". The matcher sends an initial empty
	// SETTINGS frame, as gRPC clients await the HTTP/2 handshake before
	// sending their first request.
	srv.GRPCListener = srv.CMux.MatchWithWriters(
		cmux.HTTP2MatchHeaderFieldSendSettings("content-type", "application/grpc"))
	// Connections sending HTTP/1 verbs (GET, POST etc) are assumed to be HTTP.
	srv.HTTPListener = srv.CMux.Match(cmux.HTTP1Fast())

	return srv, nil
}

// Endpoint of the Server.
func (s *Server) Endpoint() string {
	return "http://" + s.RawListener.Addr().String()
}

// SetServing updates the status reported by the health service.
func (s *Server) SetServing(serving bool) {
	var status = healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.Health.SetServingStatus("", status)
}

// QueueTasks serving the CMux, HTTP, and gRPC component servers onto the
// task.Group. Upon cancellation of the task.Group, the Server reports
// NOT_SERVING and then gracefully stops.
func (s *Server) QueueTasks(tg *task.Group) {
	tg.Queue("CMux.Serve", func() error {
		if err := s.CMux.Serve(); err != nil && s.Ctx.Err() == nil {
			return err
		}
		return nil // Swallow error after graceful stop.
	})
	tg.Queue("HTTPServer.Serve", func() error {
		if err := s.HTTPServer.Serve(s.HTTPListener); err != http.ErrServerClosed && s.Ctx.Err() == nil {
			return err
		}
		return nil
	})
	tg.Queue("GRPCServer.Serve", func() error {
		if err := s.GRPCServer.Serve(s.GRPCListener); err != grpc.ErrServerStopped && s.Ctx.Err() == nil {
			return err
		}
		return nil
	})
	tg.Queue("Server.GracefulStop", func() error {
		<-tg.Context().Done() // Block until task.Group is cancelled.
		s.GracefulStop()
		return nil
	})
}

// GracefulStop the Server, allowing in-flight requests to complete. Server.Ctx
// is cancelled first, so that Serve loops recognize a graceful closure.
func (s *Server) GracefulStop() {
	s.cancel()
	s.Health.Shutdown()

	var ctx, cancel = context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.HTTPServer.Shutdown(ctx); err != nil {
		log.WithField("err", err).Warn("failed to gracefully stop HTTP server")
	}
	s.GRPCServer.GracefulStop()
	_ = s.RawListener.Close() // May already be closed.
}

const (
	keepAlivePeriod   = 3 * time.Minute
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 30 * time.Second
)
