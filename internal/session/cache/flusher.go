package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"studyassist/backend/internal/logger"
	"studyassist/backend/internal/telemetry"
	telemetrydomain "studyassist/backend/internal/telemetry/domain"
)

// flusher owns the detached durable activity writes scheduled by the renewal policy.
type flusher struct {
	store       Store
	timeout     time.Duration
	maxAttempts uint
	backoffBase time.Duration
	log         *slog.Logger
	events      telemetry.EventEmitter
	metrics     *metrics

	wg sync.WaitGroup
}

// schedule starts a background ExtendExpiry and returns immediately. The write runs under
// context.Background() with the flush timeout so request cancellation does not abort it.
func (f *flusher) schedule(token, userID string, expiresAt, lastActiveAt time.Time) {
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
		defer cancel()
		f.flush(ctx, token, userID, expiresAt, lastActiveAt)
	}()
}

func (f *flusher) flush(ctx context.Context, token, userID string, expiresAt, lastActiveAt time.Time) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = f.backoffBase
	b.MaxInterval = f.timeout

	attempts := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempts++
		return struct{}{}, f.store.ExtendExpiry(ctx, token, expiresAt, lastActiveAt)
	}, backoff.WithBackOff(b), backoff.WithMaxTries(f.maxAttempts))
	if err == nil {
		f.metrics.flush(ctx, true)
		f.log.Debug("session cache: flushed activity", logger.TokenRef(token), slog.Int("attempts", attempts))
		return
	}

	f.metrics.flush(ctx, false)
	f.log.Warn("session cache: flush dropped",
		slog.String("op", "flush"), logger.TokenRef(token), slog.Int("attempts", attempts), logger.Err(err))
	telemetry.EmitAsync(f.events, f.log, &telemetrydomain.SessionEvent{
		Type:       telemetrydomain.EventSessionFlushDrop,
		UserID:     userID,
		TokenRef:   logger.Ref(token),
		Source:     "session_cache",
		Detail:     err.Error(),
		OccurredAt: lastActiveAt.UTC(),
	})
}

func (f *flusher) wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		f.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
