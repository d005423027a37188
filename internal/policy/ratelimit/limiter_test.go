package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLimiter_WaitDelaysSecondRequest(t *testing.T) {
	t.Parallel()

	l := New(Config{DefaultRPS: 10, DefaultBurst: 1})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "https://archive.example.com/a.pdf"))

	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://archive.example.com/b.pdf"))
	require.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestLimiter_DifferentHostsAreIndependent(t *testing.T) {
	t.Parallel()

	l := New(Config{DefaultRPS: 1, DefaultBurst: 1})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "https://a.example.com/1.pdf"))
	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://b.example.com/1.pdf"))
	require.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestLimiter_ZeroRPSIsUnlimited(t *testing.T) {
	t.Parallel()

	l := New(Config{})
	start := time.Now()
	for i := 0; i < 20; i++ {
		require.NoError(t, l.Wait(context.Background(), "https://a.example.com/x.pdf"))
	}
	require.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestLimiter_CanceledContext(t *testing.T) {
	t.Parallel()

	l := New(Config{DefaultRPS: 0.1, DefaultBurst: 1})
	require.NoError(t, l.Wait(context.Background(), "https://a.example.com/x.pdf"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, l.Wait(ctx, "https://a.example.com/y.pdf"))
}
