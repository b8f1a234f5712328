package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"studyassist/backend/internal/security"
	"studyassist/backend/internal/session/domain"
)

const findValidByTokenSQL = `
SELECT s.id, s.user_id, s.expires_at, s.last_active_at, s.created_at,
       u.id, u.username, u.email
FROM sessions s
JOIN users u ON u.id = s.user_id
WHERE s.token_hash = $1 AND s.consumed = FALSE AND s.expires_at > $2`

const extendExpirySQL = `
UPDATE sessions
SET expires_at = GREATEST(expires_at, $2),
    last_active_at = GREATEST(last_active_at, $3)
WHERE token_hash = $1 AND consumed = FALSE`

const markConsumedSQL = `
UPDATE sessions
SET consumed = TRUE, consumed_at = $2
WHERE token_hash = $1 AND consumed = FALSE`

const createSessionSQL = `
INSERT INTO sessions (id, token_hash, user_id, expires_at, last_active_at, consumed, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

const createUserSQL = `
INSERT INTO users (id, username, email, created_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (email) DO UPDATE SET username = EXCLUDED.username
RETURNING id`

// PostgresRepository stores sessions in the sessions table, joined with users on read.
type PostgresRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewPostgresRepository returns a session repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db, now: time.Now}
}

// FindValidByToken returns the valid session for token, or nil if not found, consumed or expired.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) FindValidByToken(ctx context.Context, token string) (*domain.Session, error) {
	if token == "" {
		return nil, nil
	}
	var s domain.Session
	err := r.db.QueryRowContext(ctx, findValidByTokenSQL, security.HashToken(token), r.now()).Scan(
		&s.ID, &s.UserID, &s.ExpiresAt, &s.LastActiveAt, &s.CreatedAt,
		&s.User.ID, &s.User.Username, &s.User.Email,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	s.Token = token
	return &s, nil
}

// ExtendExpiry moves expires_at and last_active_at forward. A consumed or unknown session is left alone.
func (r *PostgresRepository) ExtendExpiry(ctx context.Context, token string, expiresAt, lastActiveAt time.Time) error {
	_, err := r.db.ExecContext(ctx, extendExpirySQL, security.HashToken(token), expiresAt, lastActiveAt)
	return err
}

// MarkConsumed sets consumed for the session. Returns an error only if the update fails.
func (r *PostgresRepository) MarkConsumed(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	_, err := r.db.ExecContext(ctx, markConsumedSQL, security.HashToken(token), r.now())
	return err
}

// Create persists the session. The owning user must exist.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	if err := validateNew(s); err != nil {
		return err
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	now := r.now()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	if s.LastActiveAt.IsZero() {
		s.LastActiveAt = now
	}
	_, err := r.db.ExecContext(ctx, createSessionSQL,
		s.ID, security.HashToken(s.Token), s.UserID, s.ExpiresAt, s.LastActiveAt, s.Consumed, s.CreatedAt)
	return err
}

// CreateUser inserts the user, or renames the existing user with the same email.
// It sets u.ID to the stored id.
func (r *PostgresRepository) CreateUser(ctx context.Context, u *domain.UserIdentity) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return r.db.QueryRowContext(ctx, createUserSQL, u.ID, u.Username, u.Email, r.now()).Scan(&u.ID)
}

// Ping checks database connectivity.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
