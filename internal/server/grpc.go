// Package server builds the gRPC and HTTP servers and wires handlers, interceptors and middleware.
package server

import (
	"log/slog"
	"net/netip"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/realip"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	healthhandler "studyassist/backend/internal/health/handler"
	"studyassist/backend/internal/server/interceptors"
	sessionhandler "studyassist/backend/internal/session/handler"
)

// Deps holds the dependencies shared by the gRPC and HTTP servers.
type Deps struct {
	// Sessions is the session cache. Required.
	Sessions sessionhandler.SessionManager
	// Health reports store readiness. If nil, a health server without a pinger is used.
	Health *healthhandler.Server
	// ClearCacheOnLogout drops the whole cache after each logout.
	ClearCacheOnLogout bool
	// Logger is used by interceptors, middleware and handlers. Defaults to slog.Default().
	Logger *slog.Logger
}

func (d Deps) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

func (d Deps) health() *healthhandler.Server {
	if d.Health == nil {
		return healthhandler.NewServer(nil, sessionhandler.SessionServiceName)
	}
	return d.Health
}

// PublicMethods are the gRPC methods callable without a session token.
func PublicMethods() map[string]bool {
	return map[string]bool{
		"/grpc.health.v1.Health/Check": true,
		"/grpc.health.v1.Health/Watch": true,
		"/grpc.health.v1.Health/List":  true,
	}
}

// NewGRPCServer returns a gRPC server with the interceptor chain
// (recovery, real ip, logging, auth), OTel stats and all services registered.
func NewGRPCServer(deps Deps, opts ...grpc.ServerOption) *grpc.Server {
	log := deps.logger()
	realIPOpts := []realip.Option{
		realip.WithTrustedPeers([]netip.Prefix{
			netip.MustParsePrefix("127.0.0.1/32"),
			netip.MustParsePrefix("::1/128"),
		}),
		realip.WithHeaders([]string{realip.XForwardedFor, realip.XRealIp}),
		realip.WithTrustedProxiesCount(1),
	}

	base := []grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			recovery.UnaryServerInterceptor(interceptors.RecoveryOptions(log)...),
			realip.UnaryServerInterceptorOpts(realIPOpts...),
			logging.UnaryServerInterceptor(interceptors.InterceptorLogger(log), interceptors.LoggingOptions()...),
			interceptors.AuthUnary(deps.Sessions, PublicMethods(), log),
		),
	}
	s := grpc.NewServer(append(base, opts...)...)
	RegisterServices(s, deps)
	return s
}

// RegisterServices registers the gRPC services with s.
//
//   - studyassist.session.v1.SessionService → internal/session/handler
//   - grpc.health.v1.Health                 → internal/health/handler
func RegisterServices(s grpc.ServiceRegistrar, deps Deps) {
	sessionhandler.RegisterSessionServiceServer(s, sessionhandler.NewServer(deps.Sessions, deps.ClearCacheOnLogout, deps.logger()))
	healthpb.RegisterHealthServer(s, deps.health())
}
