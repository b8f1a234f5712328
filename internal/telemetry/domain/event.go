package domain

import "time"

// Session lifecycle event types.
const (
	EventSessionInvalidated = "session_invalidated"
	EventSessionCacheClear  = "session_cache_cleared"
	EventSessionFlushDrop   = "session_flush_dropped"
)

// SessionEvent is a session lifecycle event. TokenRef is a short hash prefix of the token, never the token itself.
type SessionEvent struct {
	Type       string    `json:"event_type"`
	UserID     string    `json:"user_id,omitempty"`
	SessionID  string    `json:"session_id,omitempty"`
	TokenRef   string    `json:"token_ref,omitempty"`
	Source     string    `json:"source,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
