package interceptors

import (
	"context"
	"log/slog"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"studyassist/backend/internal/server/identity"
	"studyassist/backend/internal/session/domain"
)

const bearerPrefix = "bearer "

// SessionValidator resolves an opaque session token. Implemented by *cache.Cache.
type SessionValidator interface {
	ValidateSession(ctx context.Context, token string) (*domain.Session, bool)
}

// AuthUnary returns a unary server interceptor that validates the Bearer session token
// from gRPC metadata and puts the session in context for protected RPCs.
// publicMethods is the set of full method names that do not require a token (e.g. health checks);
// a token sent to a public method is ignored. Every rejection carries the same status.
func AuthUnary(validator SessionValidator, publicMethods map[string]bool, log *slog.Logger) grpc.UnaryServerInterceptor {
	if log == nil {
		log = slog.Default()
	}
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if publicMethods[info.FullMethod] {
			return handler(ctx, req)
		}
		token := extractBearer(ctx)
		if token == "" {
			return nil, status.Error(codes.Unauthenticated, "authentication required")
		}
		s, ok := validator.ValidateSession(ctx, token)
		if !ok {
			log.DebugContext(ctx, "grpc auth: rejected session",
				slog.String("method", info.FullMethod), slog.String("client_ip", ClientIP(ctx)))
			return nil, status.Error(codes.Unauthenticated, "authentication required")
		}
		return handler(identity.WithSession(ctx, s), req)
	}
}

// extractBearer returns the Bearer token from ctx metadata, or "" if missing or malformed.
func extractBearer(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	vals := md.Get("authorization")
	if len(vals) == 0 {
		return ""
	}
	v := strings.TrimSpace(vals[0])
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}
