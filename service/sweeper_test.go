package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/sigverifier/adapters/store"
	"github.com/layer-3/sigverifier/internal/testutil"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSweeper_RunsJobsUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var calls atomic.Int32
	s := NewSweeper(discardLogger())
	s.Add("counter", 5*time.Millisecond, func(context.Context) (int, error) {
		calls.Add(1)
		return 1, nil
	})
	s.Start(ctx)

	require.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, time.Millisecond)

	cancel()
	s.Wait()
	after := calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, calls.Load(), "no runs after stop")
}

func TestSweeper_SkipsOverlappingRuns(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32

	s := NewSweeper(discardLogger())
	s.Add("slow", time.Hour, func(context.Context) (int, error) {
		calls.Add(1)
		<-release
		return 0, nil
	})

	done := make(chan struct{})
	go func() {
		s.RunOnce(context.Background())
		close(done)
	}()
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)

	s.RunOnce(context.Background())
	assert.Equal(t, int32(1), calls.Load(), "second run skipped while first is in progress")

	close(release)
	<-done
}

func TestSweeper_ErrorsDoNotStopTheJob(t *testing.T) {
	var calls atomic.Int32
	s := NewSweeper(discardLogger())
	s.Add("failing", time.Hour, func(context.Context) (int, error) {
		calls.Add(1)
		return 0, errors.New("boom")
	})

	s.RunOnce(context.Background())
	s.RunOnce(context.Background())
	assert.Equal(t, int32(2), calls.Load())
}

func TestSweeper_CleansStores(t *testing.T) {
	ctx := context.Background()
	clock := testutil.NewClock()
	sessions := store.NewMemorySessionStore(time.Hour, clock)
	limits := store.NewMemoryRateLimitStore(clock)

	_, err := sessions.Create(ctx, "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", "test", "0xsig")
	require.NoError(t, err)
	_, err = limits.Take(ctx, "1.2.3.4", 1, 5*time.Second)
	require.NoError(t, err)

	s := NewSweeper(discardLogger())
	s.Add("sessions", time.Hour, sessions.CleanupExpired)
	s.Add("ratelimit", 5*time.Minute, limits.Sweep)

	clock.Advance(2 * time.Hour)
	s.RunOnce(ctx)

	assert.Equal(t, 0, sessions.Len())
	assert.Equal(t, 0, limits.Len())
}
