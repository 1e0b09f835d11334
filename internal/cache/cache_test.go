package cache_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/bugboard/internal/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis spins up a Redis container and returns a connected RedisCache + cleanup.
func setupRedis(t *testing.T) *cache.RedisCache {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, container.Terminate(ctx)) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	redisURL := "redis://" + host + ":" + port.Port()
	rc, err := cache.NewRedisCache(redisURL)
	require.NoError(t, err)
	t.Cleanup(func() { rc.Close() })

	return rc
}

// --- Ping ---

func TestPing(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	rc := setupRedis(t)
	err := rc.Ping(context.Background())
	assert.NoError(t, err)
}

// --- IncrWithExpiry ---

func TestIncrWithExpiry(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	rc := setupRedis(t)
	ctx := context.Background()
	key := "ratelimit:test:" + uuid.NewString()[:8]

	for want := int64(1); want <= 3; want++ {
		val, err := rc.IncrWithExpiry(ctx, key, 10*time.Second)
		require.NoError(t, err)
		assert.Equal(t, want, val)
	}
}

func TestIncrWithExpiry_Expires(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	rc := setupRedis(t)
	ctx := context.Background()
	key := "ratelimit:expiry:" + uuid.NewString()[:8]

	_, err := rc.IncrWithExpiry(ctx, key, 1*time.Second)
	require.NoError(t, err)

	time.Sleep(1500 * time.Millisecond)

	// After expiry, should start from 1 again
	val, err := rc.IncrWithExpiry(ctx, key, 10*time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(1), val)
}

// --- Locks ---

func TestAcquireLock_Exclusive(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	rc := setupRedis(t)
	ctx := context.Background()
	key := cache.SubmitLockKey("Alpha|http://x.com")

	ok, err := rc.AcquireLock(ctx, key, "owner-1", 10*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = rc.AcquireLock(ctx, key, "owner-2", 10*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, rc.ReleaseLock(ctx, key, "owner-1"))

	ok, err = rc.AcquireLock(ctx, key, "owner-2", 10*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestReleaseLock_WrongTokenKeepsLock(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	rc := setupRedis(t)
	ctx := context.Background()
	key := cache.SubmitLockKey("Beta|http://y.com")

	ok, err := rc.AcquireLock(ctx, key, "owner-1", 10*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, rc.ReleaseLock(ctx, key, "someone-else"))

	ok, err = rc.AcquireLock(ctx, key, "owner-2", 10*time.Second)
	require.NoError(t, err)
	assert.False(t, ok, "lock must survive a release by a non-owner")
}

func TestAcquireLock_Expires(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	rc := setupRedis(t)
	ctx := context.Background()
	key := cache.SubmitLockKey("Gamma|http://z.com")

	ok, err := rc.AcquireLock(ctx, key, "owner-1", 500*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)

	time.Sleep(1 * time.Second)

	ok, err = rc.AcquireLock(ctx, key, "owner-2", 10*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

// --- Cache Key Builders ---

func TestRateLimitKey(t *testing.T) {
	key := cache.RateLimitKey("bb_abcd1")
	assert.Equal(t, "ratelimit:bb_abcd1", key)
}

func TestSubmitLockKey(t *testing.T) {
	a := cache.SubmitLockKey("Alpha|http://x.com")
	b := cache.SubmitLockKey("Alpha|http://x.com")
	c := cache.SubmitLockKey("Beta|http://x.com")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.True(t, strings.HasPrefix(a, "lock:submit:"))
	assert.Len(t, a, len("lock:submit:")+64)
}
