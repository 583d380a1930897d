package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSweeper struct {
	expired int64
	err     error
	calls   int
}

func (s *stubSweeper) ExpireDue(context.Context) (int64, error) {
	s.calls++
	return s.expired, s.err
}

type stubCleaner struct {
	olderThan time.Duration
	err       error
}

func (s *stubCleaner) Cleanup(_ context.Context, olderThan time.Duration) error {
	s.olderThan = olderThan
	return s.err
}

func TestExpireSweepHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("runs the sweep", func(t *testing.T) {
		sweeper := &stubSweeper{expired: 3}
		handler := NewExpireSweepHandler(sweeper, nil, logger)
		require.NoError(t, handler(context.Background(), NewExpireSweepTask()))
		assert.Equal(t, 1, sweeper.calls)
	})

	t.Run("propagates sweep errors for retry", func(t *testing.T) {
		sweeper := &stubSweeper{err: errors.New("db down")}
		handler := NewExpireSweepHandler(sweeper, nil, logger)
		assert.Error(t, handler(context.Background(), NewExpireSweepTask()))
	})
}

func TestIdempotencyCleanupHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("parses retention from the payload", func(t *testing.T) {
		task, err := NewIdempotencyCleanupTask(24 * time.Hour)
		require.NoError(t, err)

		cleaner := &stubCleaner{}
		handler := NewIdempotencyCleanupHandler(cleaner, nil, logger)
		require.NoError(t, handler(context.Background(), task))
		assert.Equal(t, 24*time.Hour, cleaner.olderThan)
	})

	t.Run("skips retry on a malformed payload", func(t *testing.T) {
		cleaner := &stubCleaner{}
		handler := NewIdempotencyCleanupHandler(cleaner, nil, logger)
		err := handler(context.Background(), asynq.NewTask(TaskIdempotencyCleanup, []byte("{")))
		assert.ErrorIs(t, err, asynq.SkipRetry)
	})
}
