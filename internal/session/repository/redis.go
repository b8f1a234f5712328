package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"studyassist/backend/internal/security"
	"studyassist/backend/internal/session/domain"
)

// ErrRedisUnavailable wraps every Redis transport failure.
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrSessionCorrupt is returned when a stored session hash cannot be decoded.
var ErrSessionCorrupt = errors.New("session record corrupt")

// DefaultRetention is how long a session key outlives its expiry before Redis drops it.
const DefaultRetention = 24 * time.Hour

const keyPrefix = "sess:"

// Hash fields. Times are unix milliseconds.
const (
	fieldID           = "id"
	fieldUserID       = "user_id"
	fieldUsername     = "username"
	fieldEmail        = "email"
	fieldExpiresAt    = "expires_at"
	fieldLastActiveAt = "last_active_at"
	fieldCreatedAt    = "created_at"
	fieldConsumed     = "consumed"
	fieldConsumedAt   = "consumed_at"
)

// KEYS[1] session key. ARGV: expires_at ms, last_active_at ms, retention ms, now ms.
const extendExpiryScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
if redis.call("HGET", KEYS[1], "consumed") == "1" then
  return 0
end
local exp = tonumber(redis.call("HGET", KEYS[1], "expires_at") or "0")
local next_exp = tonumber(ARGV[1])
if next_exp > exp then
  redis.call("HSET", KEYS[1], "expires_at", ARGV[1])
  exp = next_exp
end
local last = tonumber(redis.call("HGET", KEYS[1], "last_active_at") or "0")
if tonumber(ARGV[2]) > last then
  redis.call("HSET", KEYS[1], "last_active_at", ARGV[2])
end
local ttl = exp + tonumber(ARGV[3]) - tonumber(ARGV[4])
if ttl < 1000 then
  ttl = 1000
end
redis.call("PEXPIRE", KEYS[1], ttl)
return 1
`

var extendExpiryLua = redis.NewScript(extendExpiryScript)

// KEYS[1] session key. ARGV: consumed_at ms.
const markConsumedScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
if redis.call("HGET", KEYS[1], "consumed") == "1" then
  return 0
end
redis.call("HSET", KEYS[1], "consumed", "1", "consumed_at", ARGV[1])
return 1
`

var markConsumedLua = redis.NewScript(markConsumedScript)

// RedisRepository stores each session as a hash at sess:<token hash> with the user identity denormalised.
type RedisRepository struct {
	redis     redis.UniversalClient
	retention time.Duration
	now       func() time.Time
}

// NewRedisRepository returns a Redis-backed session repository. retention <= 0 uses DefaultRetention.
func NewRedisRepository(client redis.UniversalClient, retention time.Duration) *RedisRepository {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &RedisRepository{redis: client, retention: retention, now: time.Now}
}

func (r *RedisRepository) key(token string) string {
	return keyPrefix + security.HashToken(token)
}

// FindValidByToken returns the valid session for token, or nil if it is missing, consumed or expired.
func (r *RedisRepository) FindValidByToken(ctx context.Context, token string) (*domain.Session, error) {
	if token == "" {
		return nil, nil
	}
	fields, err := r.redis.HGetAll(ctx, r.key(token)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	s, err := decodeSession(fields)
	if err != nil {
		return nil, err
	}
	if !s.Valid(r.now()) {
		return nil, nil
	}
	s.Token = token
	return s, nil
}

// ExtendExpiry moves expiry and last activity forward atomically and pushes the key TTL out with it.
func (r *RedisRepository) ExtendExpiry(ctx context.Context, token string, expiresAt, lastActiveAt time.Time) error {
	err := extendExpiryLua.Run(ctx, r.redis, []string{r.key(token)},
		expiresAt.UnixMilli(), lastActiveAt.UnixMilli(), r.retention.Milliseconds(), r.now().UnixMilli(),
	).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// MarkConsumed flags the session consumed. Unknown and already consumed tokens are a no-op.
func (r *RedisRepository) MarkConsumed(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	err := markConsumedLua.Run(ctx, r.redis, []string{r.key(token)}, r.now().UnixMilli()).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Create writes the session hash and its TTL in one transaction.
func (r *RedisRepository) Create(ctx context.Context, s *domain.Session) error {
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
	consumed := "0"
	if s.Consumed {
		consumed = "1"
	}
	ttl := s.ExpiresAt.Sub(now) + r.retention
	if ttl < time.Second {
		ttl = time.Second
	}
	key := r.key(s.Token)
	_, err := r.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			fieldID, s.ID,
			fieldUserID, s.UserID,
			fieldUsername, s.User.Username,
			fieldEmail, s.User.Email,
			fieldExpiresAt, s.ExpiresAt.UnixMilli(),
			fieldLastActiveAt, s.LastActiveAt.UnixMilli(),
			fieldCreatedAt, s.CreatedAt.UnixMilli(),
			fieldConsumed, consumed,
		)
		pipe.PExpire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Ping checks Redis connectivity.
func (r *RedisRepository) Ping(ctx context.Context) error {
	if err := r.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func decodeSession(fields map[string]string) (*domain.Session, error) {
	expiresAt, err := parseMillis(fields[fieldExpiresAt])
	if err != nil {
		return nil, err
	}
	lastActiveAt, err := parseMillis(fields[fieldLastActiveAt])
	if err != nil {
		return nil, err
	}
	createdAt, err := parseMillis(fields[fieldCreatedAt])
	if err != nil {
		return nil, err
	}
	userID := fields[fieldUserID]
	if userID == "" {
		return nil, fmt.Errorf("%w: missing user_id", ErrSessionCorrupt)
	}
	return &domain.Session{
		ID:           fields[fieldID],
		UserID:       userID,
		ExpiresAt:    expiresAt,
		LastActiveAt: lastActiveAt,
		CreatedAt:    createdAt,
		Consumed:     fields[fieldConsumed] == "1",
		User: domain.UserIdentity{
			ID:       userID,
			Username: fields[fieldUsername],
			Email:    fields[fieldEmail],
		},
	}, nil
}

func parseMillis(v string) (time.Time, error) {
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrSessionCorrupt, err)
	}
	return time.UnixMilli(ms), nil
}
