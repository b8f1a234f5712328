// Package cache is the in-process session cache in front of the durable session store.
// It decides validity, slides expiry on every validated access and debounces durable
// activity writes to at most one per token per flush interval.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/singleflight"

	"studyassist/backend/internal/logger"
	"studyassist/backend/internal/session/domain"
	"studyassist/backend/internal/telemetry"
	telemetrydomain "studyassist/backend/internal/telemetry/domain"
)

// Defaults applied by New for zero Options fields.
const (
	DefaultRenewalWindow    = 5 * time.Minute
	DefaultFlushInterval    = 60 * time.Second
	DefaultLookupTimeout    = 2 * time.Second
	DefaultFlushTimeout     = 5 * time.Second
	DefaultFlushAttempts    = 3
	DefaultFlushBackoffBase = 100 * time.Millisecond
)

// Store is the durable session store the cache reads through and writes behind.
type Store interface {
	FindValidByToken(ctx context.Context, token string) (*domain.Session, error)
	ExtendExpiry(ctx context.Context, token string, expiresAt, lastActiveAt time.Time) error
	MarkConsumed(ctx context.Context, token string) error
}

// Options configures a Cache. Zero values take the package defaults.
type Options struct {
	RenewalWindow    time.Duration
	FlushInterval    time.Duration
	LookupTimeout    time.Duration
	FlushTimeout     time.Duration
	FlushAttempts    uint
	FlushBackoffBase time.Duration

	Logger *slog.Logger
	Events telemetry.EventEmitter
	Meter  metric.Meter
	Now    func() time.Time
}

// Cache maps tokens to session records. The zero value is not usable; call New.
type Cache struct {
	store         Store
	renewalWindow time.Duration
	flushInterval time.Duration
	lookupTimeout time.Duration
	now           func() time.Time
	log           *slog.Logger
	events        telemetry.EventEmitter

	mu      sync.Mutex
	entries map[string]*domain.Session
	// epoch is bumped by InvalidateSession and ClearCache; a miss only inserts if it is unchanged.
	epoch uint64

	group   singleflight.Group
	flusher *flusher
	metrics *metrics
}

// New returns a Cache in front of store.
func New(store Store, opts Options) (*Cache, error) {
	if store == nil {
		return nil, errors.New("session cache: store is nil")
	}
	if opts.RenewalWindow <= 0 {
		opts.RenewalWindow = DefaultRenewalWindow
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = DefaultFlushInterval
	}
	if opts.LookupTimeout <= 0 {
		opts.LookupTimeout = DefaultLookupTimeout
	}
	if opts.FlushTimeout <= 0 {
		opts.FlushTimeout = DefaultFlushTimeout
	}
	if opts.FlushAttempts == 0 {
		opts.FlushAttempts = DefaultFlushAttempts
	}
	if opts.FlushBackoffBase <= 0 {
		opts.FlushBackoffBase = DefaultFlushBackoffBase
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	c := &Cache{
		store:         store,
		renewalWindow: opts.RenewalWindow,
		flushInterval: opts.FlushInterval,
		lookupTimeout: opts.LookupTimeout,
		now:           opts.Now,
		log:           opts.Logger.With(slog.String("component", "session_cache")),
		events:        opts.Events,
		entries:       make(map[string]*domain.Session),
	}
	m, err := newMetrics(opts.Meter, c.Len)
	if err != nil {
		return nil, fmt.Errorf("session cache: metrics: %w", err)
	}
	c.metrics = m
	c.flusher = &flusher{
		store:       store,
		timeout:     opts.FlushTimeout,
		maxAttempts: opts.FlushAttempts,
		backoffBase: opts.FlushBackoffBase,
		log:         c.log,
		events:      opts.Events,
		metrics:     m,
	}
	return c, nil
}

// ValidateSession returns a copy of the session for token and true if it is valid now.
// A fresh cache hit slides the expiry and may schedule a background flush; a miss reads
// through to the store under the lookup timeout. Any store failure is reported as invalid.
func (c *Cache) ValidateSession(ctx context.Context, token string) (*domain.Session, bool) {
	if token == "" {
		return nil, false
	}
	now := c.now()

	c.mu.Lock()
	cached, ok := c.entries[token]
	if !ok {
		epoch := c.epoch
		c.mu.Unlock()
		return c.load(ctx, token, epoch)
	}
	if !cached.Valid(now) {
		delete(c.entries, token)
		c.mu.Unlock()
		c.metrics.lookup(ctx, resultStale)
		return nil, false
	}

	renewed := *cached
	if next := now.Add(c.renewalWindow); next.After(renewed.ExpiresAt) {
		renewed.ExpiresAt = next
	}
	flush := now.Sub(renewed.LastActiveAt) > c.flushInterval
	if flush {
		renewed.LastActiveAt = now
	}
	c.entries[token] = &renewed
	c.mu.Unlock()

	c.metrics.lookup(ctx, resultHit)
	if flush {
		c.flusher.schedule(token, renewed.UserID, renewed.ExpiresAt, now)
	}
	return renewed.Clone(), true
}

// load performs the collapsed store lookup for a miss observed at epoch.
func (c *Cache) load(ctx context.Context, token string, epoch uint64) (*domain.Session, bool) {
	key := strconv.FormatUint(epoch, 10) + ":" + token
	v, err, _ := c.group.Do(key, func() (any, error) {
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.lookupTimeout)
		defer cancel()
		s, err := c.store.FindValidByToken(lookupCtx, token)
		if err != nil {
			return nil, err
		}
		if s == nil || !s.Valid(c.now()) {
			return nil, nil
		}
		s.Token = token

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.epoch != epoch {
			return s, nil
		}
		if existing, ok := c.entries[token]; ok {
			return existing.Clone(), nil
		}
		c.entries[token] = s.Clone()
		return s, nil
	})
	if err != nil {
		c.metrics.lookup(ctx, resultError)
		c.log.ErrorContext(ctx, "session cache: store lookup failed",
			slog.String("op", "validate"), logger.TokenRef(token), logger.Err(err))
		return nil, false
	}
	s, _ := v.(*domain.Session)
	if s == nil {
		c.metrics.lookup(ctx, resultMiss)
		return nil, false
	}
	c.metrics.lookup(ctx, resultLoaded)
	return s.Clone(), true
}

// InvalidateSession marks the session consumed in the store and evicts it from the cache.
// The entry is evicted even when the store write fails; the store error is returned so that
// logout is never reported as successful while the durable session is still valid.
func (c *Cache) InvalidateSession(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	storeErr := c.store.MarkConsumed(ctx, token)

	c.mu.Lock()
	evicted, had := c.entries[token]
	delete(c.entries, token)
	c.epoch++
	c.mu.Unlock()

	if storeErr != nil {
		c.metrics.invalidation(ctx, false)
		c.log.ErrorContext(ctx, "session cache: invalidate failed",
			slog.String("op", "invalidate"), logger.TokenRef(token), logger.Err(storeErr))
		return fmt.Errorf("session cache: invalidate: %w", storeErr)
	}
	c.metrics.invalidation(ctx, true)

	event := &telemetrydomain.SessionEvent{
		Type:       telemetrydomain.EventSessionInvalidated,
		TokenRef:   logger.Ref(token),
		Source:     "session_cache",
		OccurredAt: c.now().UTC(),
	}
	if had {
		event.UserID = evicted.UserID
		event.SessionID = evicted.ID
	}
	telemetry.EmitAsync(c.events, c.log, event)
	return nil
}

// ClearCache drops every entry without touching the store and reports whether the cache is empty.
func (c *Cache) ClearCache() bool {
	c.mu.Lock()
	dropped := len(c.entries)
	c.entries = make(map[string]*domain.Session)
	c.epoch++
	empty := len(c.entries) == 0
	c.mu.Unlock()

	c.log.Debug("session cache: cleared", slog.Int("dropped", dropped))
	telemetry.EmitAsync(c.events, c.log, &telemetrydomain.SessionEvent{
		Type:       telemetrydomain.EventSessionCacheClear,
		Source:     "session_cache",
		Detail:     strconv.Itoa(dropped),
		OccurredAt: c.now().UTC(),
	})
	return empty
}

// Len returns the number of cached entries, including ones that have expired but not yet been evicted.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Drain waits for in-flight background flushes, or for ctx to be done.
func (c *Cache) Drain(ctx context.Context) error {
	return c.flusher.wait(ctx)
}
