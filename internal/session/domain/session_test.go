package domain

import (
	"testing"
	"time"
)

func TestSession_Valid(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	testCases := []struct {
		name string
		s    *Session
		want bool
	}{
		{"nil", nil, false},
		{"future expiry", &Session{ExpiresAt: now.Add(time.Second)}, true},
		{"expires exactly now", &Session{ExpiresAt: now}, false},
		{"expired", &Session{ExpiresAt: now.Add(-time.Second)}, false},
		{"consumed", &Session{ExpiresAt: now.Add(time.Hour), Consumed: true}, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.s.Valid(now); got != tc.want {
				t.Errorf("Valid() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSession_Clone(t *testing.T) {
	orig := &Session{Token: "tok", UserID: "u1", User: UserIdentity{ID: "u1", Username: "ann"}}
	c := orig.Clone()
	if c == orig {
		t.Fatal("Clone returned the same pointer")
	}
	c.ExpiresAt = time.Now()
	c.User.Username = "bob"
	if !orig.ExpiresAt.IsZero() || orig.User.Username != "ann" {
		t.Errorf("mutating clone changed original: %+v", orig)
	}

	var nilSession *Session
	if nilSession.Clone() != nil {
		t.Error("Clone of nil should be nil")
	}
}
