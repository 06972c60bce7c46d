package attempts

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	redisv9 "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	mu      sync.Mutex
	values  map[string]int64
	ttls    map[string]time.Duration
	failGet bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{values: map[string]int64{}, ttls: map[string]time.Duration{}}
}

func (f *fakeBackend) Incr(_ context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key]++
	return f.values[key], nil
}

func (f *fakeBackend) PExpire(_ context.Context, key string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ttls[key] = ttl
	return nil
}

func (f *fakeBackend) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failGet {
		return "", errors.New("connection refused")
	}
	v, ok := f.values[key]
	if !ok {
		return "", redisv9.Nil
	}
	return strconv.FormatInt(v, 10), nil
}

func (f *fakeBackend) Del(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.values, k)
		delete(f.ttls, k)
	}
	return nil
}

func TestCounter_BlocksAfterLimit(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	c := New(backend, "auth:fail:", 3, time.Minute)

	for i := 1; i <= 3; i++ {
		blocked, err := c.Blocked(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.False(t, blocked, "attempt %d", i)

		n, err := c.Fail(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.Equal(t, int64(i), n)
	}

	blocked, err := c.Blocked(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, blocked)
	assert.Equal(t, time.Minute, backend.ttls["auth:fail:10.0.0.1"])

	// другие ключи не затронуты
	blocked, err = c.Blocked(ctx, "10.0.0.2")
	require.NoError(t, err)
	assert.False(t, blocked)
}

func TestCounter_ResetOnSuccess(t *testing.T) {
	ctx := context.Background()
	c := New(newFakeBackend(), "auth:fail:", 2, time.Minute)

	_, _ = c.Fail(ctx, "k")
	_, _ = c.Fail(ctx, "k")
	require.NoError(t, c.Reset(ctx, "k"))

	blocked, err := c.Blocked(ctx, "k")
	require.NoError(t, err)
	assert.False(t, blocked)
}

func TestCounter_ConcurrentFailuresAreCounted(t *testing.T) {
	ctx := context.Background()
	c := New(newFakeBackend(), "p:", 100, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.Fail(ctx, "same")
		}()
	}
	wg.Wait()

	n, err := c.Fail(ctx, "same")
	require.NoError(t, err)
	assert.Equal(t, int64(51), n)
}

func TestCounter_BackendError(t *testing.T) {
	backend := newFakeBackend()
	backend.failGet = true
	c := New(backend, "p:", 1, time.Minute)

	_, err := c.Blocked(context.Background(), "k")
	assert.Error(t, err)
}
