// Package handler reports readiness of the session store over HTTP and the standard gRPC health protocol.
package handler

import (
	"context"
	"net/http"
	"time"

	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"studyassist/backend/internal/server/response"
)

// pingTimeout bounds a single readiness probe.
const pingTimeout = 2 * time.Second

// Pinger is implemented by both session repositories.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server implements grpc.health.v1.Health. Only the overall service ("") and the
// names passed to NewServer are known; others return NotFound.
type Server struct {
	healthpb.UnimplementedHealthServer
	pinger   Pinger
	services map[string]bool
}

// NewServer returns a health server. If pinger is nil, Check always reports SERVING.
func NewServer(pinger Pinger, services ...string) *Server {
	known := map[string]bool{"": true}
	for _, s := range services {
		known[s] = true
	}
	return &Server{pinger: pinger, services: known}
}

// Check pings the store. A failed ping is reported as NOT_SERVING, not as an RPC error.
func (s *Server) Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	if !s.services[req.GetService()] {
		return nil, status.Error(codes.NotFound, "unknown service")
	}
	if err := s.ping(ctx); err != nil {
		return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_NOT_SERVING}, nil
	}
	return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING}, nil
}

// Healthz serves GET /healthz: 200 when the store answers, 503 otherwise.
func (s *Server) Healthz(w http.ResponseWriter, r *http.Request) {
	if err := s.ping(r.Context()); err != nil {
		response.Error(w, r, http.StatusServiceUnavailable, response.CodeDependencyUnready, "session store unavailable")
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) ping(ctx context.Context) error {
	if s.pinger == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return s.pinger.Ping(ctx)
}
