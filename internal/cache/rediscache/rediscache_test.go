package rediscache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestStore_GetSetDelete(t *testing.T) {
	mr := miniredis.RunT(t)
	c := New(mr.Addr())
	t.Cleanup(func() { _ = c.Close() })

	ctx := context.Background()
	require.NoError(t, c.Ping(ctx))
	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))

	b, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v"), b)

	require.NoError(t, c.Delete(ctx, "k"))
	_, ok, err = c.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)

	// удаление отсутствующего ключа не ошибка
	require.NoError(t, c.Delete(ctx, "k"))
}

func TestStore_TTLExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	c := New(mr.Addr())

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "session:1", []byte("x"), time.Minute))
	mr.FastForward(2 * time.Minute)

	_, ok, err := c.Get(ctx, "session:1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStore_ErrorsWrapped(t *testing.T) {
	mr := miniredis.RunT(t)
	c := New(mr.Addr())
	mr.Close()

	ctx := context.Background()
	_, _, err := c.Get(ctx, "k")
	require.Error(t, err)
	require.Contains(t, err.Error(), "redis get")
	require.Error(t, c.Ping(ctx))
}

func TestRateLimiter_Allow(t *testing.T) {
	mr := miniredis.RunT(t)
	rl := NewRateLimiter(mr.Addr())

	ctx := context.Background()
	ok, n, err := rl.Allow(ctx, "rl:test", 2, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(1), n)

	ok, n, _ = rl.Allow(ctx, "rl:test", 2, time.Minute)
	require.True(t, ok)
	require.Equal(t, int64(2), n)

	ok, n, _ = rl.Allow(ctx, "rl:test", 2, time.Minute)
	require.False(t, ok)
	require.Equal(t, int64(3), n)

	// окно истекло, счётчик начинается заново
	mr.FastForward(2 * time.Minute)
	ok, n, _ = rl.Allow(ctx, "rl:test", 2, time.Minute)
	require.True(t, ok)
	require.Equal(t, int64(1), n)
}

func TestRateLimiter_WindowNotExtendedByRetries(t *testing.T) {
	mr := miniredis.RunT(t)
	rl := NewRateLimiter(mr.Addr())
	t.Cleanup(func() { _ = rl.Close() })
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, _, err := rl.Allow(ctx, "rl:login:a@b.c", 1, time.Minute)
		require.NoError(t, err)
	}
	mr.FastForward(40 * time.Second)
	ok, n, err := rl.Allow(ctx, "rl:login:a@b.c", 1, time.Minute)
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, int64(3), n)

	mr.FastForward(30 * time.Second)
	ok, n, err = rl.Allow(ctx, "rl:login:a@b.c", 1, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(1), n)
}

func TestRateLimiter_ErrorWrapped(t *testing.T) {
	mr := miniredis.RunT(t)
	rl := NewRateLimiter(mr.Addr())
	mr.Close()

	_, _, err := rl.Allow(context.Background(), "rl:x", 1, time.Minute)
	require.ErrorContains(t, err, "redis ratelimit rl:x")
}
