package handler

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"studyassist/backend/internal/logger"
	"studyassist/backend/internal/server/identity"
)

// SessionServiceName is the fully qualified gRPC service name.
const SessionServiceName = "studyassist.session.v1.SessionService"

// Full method names, used by the auth interceptor and clients.
const (
	ValidateSessionMethod   = "/" + SessionServiceName + "/ValidateSession"
	InvalidateSessionMethod = "/" + SessionServiceName + "/InvalidateSession"
)

// SessionServiceServer is the server API for SessionService.
// Messages are well-known types so no generated code is needed.
type SessionServiceServer interface {
	ValidateSession(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	InvalidateSession(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
}

// SessionServiceDesc describes SessionService for grpc.ServiceRegistrar.
var SessionServiceDesc = grpc.ServiceDesc{
	ServiceName: SessionServiceName,
	HandlerType: (*SessionServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ValidateSession", Handler: validateSessionHandler},
		{MethodName: "InvalidateSession", Handler: invalidateSessionHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "studyassist/session/v1/session.proto",
}

// RegisterSessionServiceServer registers srv with s.
func RegisterSessionServiceServer(s grpc.ServiceRegistrar, srv SessionServiceServer) {
	s.RegisterService(&SessionServiceDesc, srv)
}

func validateSessionHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SessionServiceServer).ValidateSession(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ValidateSessionMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SessionServiceServer).ValidateSession(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func invalidateSessionHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SessionServiceServer).InvalidateSession(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: InvalidateSessionMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SessionServiceServer).InvalidateSession(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// Server implements SessionServiceServer on top of the session cache.
// Both RPCs are protected; the auth interceptor puts the session in context.
type Server struct {
	sessions      SessionManager
	clearOnLogout bool
	log           *slog.Logger
}

// NewServer returns a new Session gRPC server.
func NewServer(sessions SessionManager, clearOnLogout bool, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{sessions: sessions, clearOnLogout: clearOnLogout, log: log}
}

// ValidateSession returns the caller's user and current expiry.
func (s *Server) ValidateSession(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	ses, ok := identity.FromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "authentication required")
	}
	u := newUserView(ses)
	out, err := structpb.NewStruct(map[string]any{
		"user_id":    u.UserID,
		"username":   u.Username,
		"email":      u.Email,
		"expires_at": ses.ExpiresAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to encode session")
	}
	return out, nil
}

// InvalidateSession logs the caller out.
func (s *Server) InvalidateSession(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	token, ok := identity.GetToken(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "authentication required")
	}
	err := s.sessions.InvalidateSession(ctx, token)
	if s.clearOnLogout {
		s.sessions.ClearCache()
	}
	if err != nil {
		s.log.ErrorContext(ctx, "grpc logout failed", logger.TokenRef(token), logger.Err(err))
		return nil, status.Error(codes.Unavailable, "logout failed")
	}
	return &emptypb.Empty{}, nil
}
