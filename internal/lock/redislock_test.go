package lock_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storefront-api/internal/lock"
)

func newClient(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestWithLockSerialisesBasketMutations(t *testing.T) {
	locker := lock.Locker{R: newClient(t), RetryBackoff: 5 * time.Millisecond}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	key := lock.BasketKey("b-1")
	var order []string
	var mu sync.Mutex
	firstDone := make(chan struct{})
	releaseFirst := make(chan struct{})
	errs := make(chan error, 2)

	go func() {
		errs <- locker.WithLock(ctx, key, 100*time.Millisecond, func(context.Context) error {
			mu.Lock()
			order = append(order, "first")
			mu.Unlock()
			close(firstDone)
			<-releaseFirst
			return nil
		})
	}()

	<-firstDone

	go func() {
		errs <- locker.WithLock(ctx, key, 100*time.Millisecond, func(context.Context) error {
			mu.Lock()
			order = append(order, "second")
			mu.Unlock()
			return nil
		})
	}()

	close(releaseFirst)
	require.NoError(t, <-errs)
	require.NoError(t, <-errs)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"first", "second"}, order)
}

func TestWithLockTimesOut(t *testing.T) {
	client := newClient(t)
	require.NoError(t, client.Set(context.Background(), "held", "other", time.Minute).Err())

	locker := lock.Locker{R: client, RetryBackoff: 5 * time.Millisecond, MaxWait: 20 * time.Millisecond}
	err := locker.WithLock(context.Background(), "held", time.Second, func(context.Context) error { return nil })
	require.ErrorIs(t, err, lock.ErrTimeout)
}

func TestWithLockReleasesOnError(t *testing.T) {
	client := newClient(t)
	locker := lock.Locker{R: client}
	boom := errors.New("boom")
	err := locker.WithLock(context.Background(), "k", time.Second, func(context.Context) error { return boom })
	require.ErrorIs(t, err, boom)

	exists, err := client.Exists(context.Background(), "k").Result()
	require.NoError(t, err)
	require.Zero(t, exists)
}

func TestWithLockWithoutRedisRunsCallback(t *testing.T) {
	called := false
	err := lock.Locker{}.WithLock(context.Background(), "k", 0, func(context.Context) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	require.True(t, called)
}

func TestReleaseKeepsForeignHolder(t *testing.T) {
	client := newClient(t)
	locker := lock.Locker{R: client}
	ctx := context.Background()

	err := locker.WithLock(ctx, "basket", time.Second, func(context.Context) error {
		// simulate expiry followed by another holder taking the key
		return client.Set(ctx, "basket", "someone-else", time.Minute).Err()
	})
	require.NoError(t, err)

	val, err := client.Get(ctx, "basket").Result()
	require.NoError(t, err)
	require.Equal(t, "someone-else", val)
}

func TestWithLockHonoursCancellation(t *testing.T) {
	client := newClient(t)
	require.NoError(t, client.Set(context.Background(), "busy", "other", time.Minute).Err())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := lock.Locker{R: client, RetryBackoff: 5 * time.Millisecond}.WithLock(ctx, "busy", time.Second, func(context.Context) error { return nil })
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
