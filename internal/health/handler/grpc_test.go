package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// mockPinger implements Pinger for tests.
type mockPinger struct {
	pingErr error
}

func (m *mockPinger) Ping(context.Context) error {
	return m.pingErr
}

func TestCheck(t *testing.T) {
	testCases := []struct {
		name   string
		pinger Pinger
		want   healthpb.HealthCheckResponse_ServingStatus
	}{
		{"nil pinger", nil, healthpb.HealthCheckResponse_SERVING},
		{"ping ok", &mockPinger{}, healthpb.HealthCheckResponse_SERVING},
		{"ping fails", &mockPinger{pingErr: errors.New("connection refused")}, healthpb.HealthCheckResponse_NOT_SERVING},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			srv := NewServer(tc.pinger)
			resp, err := srv.Check(context.Background(), &healthpb.HealthCheckRequest{})
			if err != nil {
				t.Fatalf("Check must not return an RPC error: %v", err)
			}
			if resp.GetStatus() != tc.want {
				t.Errorf("status = %v, want %v", resp.GetStatus(), tc.want)
			}
		})
	}
}

func TestCheck_KnownAndUnknownServices(t *testing.T) {
	srv := NewServer(&mockPinger{}, "studyassist.session.v1.SessionService")

	resp, err := srv.Check(context.Background(), &healthpb.HealthCheckRequest{Service: "studyassist.session.v1.SessionService"})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("status = %v, want SERVING", resp.GetStatus())
	}

	_, err = srv.Check(context.Background(), &healthpb.HealthCheckRequest{Service: "other.Service"})
	if status.Code(err) != codes.NotFound {
		t.Errorf("code = %v, want NotFound", status.Code(err))
	}
}

func TestHealthz(t *testing.T) {
	testCases := []struct {
		name       string
		pinger     Pinger
		wantStatus int
	}{
		{"ok", &mockPinger{}, http.StatusOK},
		{"store down", &mockPinger{pingErr: errors.New("down")}, http.StatusServiceUnavailable},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			NewServer(tc.pinger).Healthz(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			if rr.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d", rr.Code, tc.wantStatus)
			}
		})
	}
}
