package grpctransport

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/spf13/viper"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
)

// ServiceName is the health service name reported for the fulfillment API.
const ServiceName = "fulfillment.v1.FulfillmentService"

const defaultCheckInterval = 10 * time.Second

// ReadinessCheck reports whether the service can take traffic.
type ReadinessCheck func(ctx context.Context) error

// GRPCTransport serves the grpc.health.v1 protocol for orchestrator health checks.
// The fulfillment status follows the readiness check when one is set.
type GRPCTransport struct {
	server        *grpc.Server
	listener      net.Listener
	health        *health.Server
	check         ReadinessCheck
	checkInterval time.Duration
	stopCh        chan struct{}
}

// Option configures a GRPCTransport.
type Option func(*GRPCTransport)

// WithReadinessCheck sets the check polled to drive the serving status.
func WithReadinessCheck(check ReadinessCheck) Option {
	return func(g *GRPCTransport) {
		g.check = check
	}
}

// NewGRPCTransport creates a new GRPCTransport listening on server.grpc.port.
func NewGRPCTransport(opts ...Option) *GRPCTransport {
	listener, err := net.Listen("tcp", ":"+viper.GetString("server.grpc.port"))
	if err != nil {
		panic(err)
	}

	return newTransport(listener, opts...)
}

func newTransport(listener net.Listener, opts ...Option) *GRPCTransport {
	interval := time.Duration(viper.GetInt("server.grpc.health_check_interval_seconds")) * time.Second
	if interval <= 0 {
		interval = defaultCheckInterval
	}

	g := &GRPCTransport{
		server:        newGRPCServer(),
		listener:      listener,
		health:        health.NewServer(),
		checkInterval: interval,
		stopCh:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(g)
	}

	healthpb.RegisterHealthServer(g.server, g.health)
	reflection.Register(g.server)

	return g
}

// Run starts the gRPC server.
func (g *GRPCTransport) Run() error {
	g.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	g.checkReadiness()
	if g.check != nil {
		go g.watch()
	}

	slog.Info("Starting gRPC server", "address", g.listener.Addr().String())

	return g.server.Serve(g.listener)
}

// Shutdown reports NOT_SERVING and gracefully stops the server.
func (g *GRPCTransport) Shutdown(ctx context.Context) error {
	close(g.stopCh)
	g.health.Shutdown()

	done := make(chan struct{})
	go func() {
		g.server.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		g.server.Stop()

		return ctx.Err()
	}
}

// SetServing flips the health status of the fulfillment service.
func (g *GRPCTransport) SetServing(serving bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		st = healthpb.HealthCheckResponse_SERVING
	}
	g.health.SetServingStatus(ServiceName, st)
}

func (g *GRPCTransport) watch() {
	ticker := time.NewTicker(g.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-g.stopCh:
			return
		case <-ticker.C:
			g.checkReadiness()
		}
	}
}

func (g *GRPCTransport) checkReadiness() {
	if g.check == nil {
		g.SetServing(true)

		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), g.checkInterval/2)
	defer cancel()

	err := g.check(ctx)
	if err != nil {
		slog.Warn("Readiness check failed", "error", err)
	}
	g.SetServing(err == nil)
}

func logUnary(
	ctx context.Context,
	req any,
	info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	slog.Debug("gRPC request",
		"method", info.FullMethod,
		"code", status.Code(err).String(),
		"duration", time.Since(start),
	)

	return resp, err
}

func newGRPCServer() *grpc.Server {
	seconds := func(key string) time.Duration {
		return time.Duration(viper.GetInt("server.grpc.keepalive."+key)) * time.Second
	}

	return grpc.NewServer(
		grpc.KeepaliveParams(keepalive.ServerParameters{
			MaxConnectionIdle:     seconds("max_connection_idle") * 60,
			MaxConnectionAge:      seconds("max_connection_age") * 60,
			MaxConnectionAgeGrace: seconds("max_connection_age_grace"),
			Time:                  seconds("time"),
			Timeout:               seconds("timeout"),
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             seconds("min_time"),
			PermitWithoutStream: viper.GetBool("server.grpc.keepalive.permit_without_stream"),
		}),
		grpc.ChainUnaryInterceptor(logUnary),
	)
}
