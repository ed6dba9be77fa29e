package database

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T) (*RedisClient, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := NewRedisClient(&RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func TestTryClaimIsExclusive(t *testing.T) {
	client, mr := testClient(t)
	ctx := context.Background()

	ok, err := client.TryClaim(ctx, CooldownKey("process", "critical"), 300*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = client.TryClaim(ctx, CooldownKey("process", "critical"), 300*time.Second)
	require.NoError(t, err)
	assert.False(t, ok, "second claim inside the TTL must fail")

	// Orphaned keys self-heal once the TTL passes.
	mr.FastForward(301 * time.Second)
	ok, err = client.TryClaim(ctx, CooldownKey("process", "critical"), 300*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestReleaseFreesClaim(t *testing.T) {
	client, _ := testClient(t)
	ctx := context.Background()

	key := ExecLockKey("agent-001", "evt-1")
	ok, _ := client.TryClaim(ctx, key, time.Minute)
	require.True(t, ok)

	require.NoError(t, client.Release(ctx, key))

	ok, _ = client.TryClaim(ctx, key, time.Minute)
	assert.True(t, ok)
}

func TestIncrCounterMonotonic(t *testing.T) {
	client, _ := testClient(t)
	ctx := context.Background()

	var prev int64
	for i := 0; i < 5; i++ {
		n, err := client.IncrCounter(ctx, "agent-001", "proc:powershell.exe")
		require.NoError(t, err)
		assert.Greater(t, n, prev)
		prev = n
	}
	assert.Equal(t, int64(5), prev)

	n, err := client.GetCounter(ctx, "agent-001", "proc:powershell.exe")
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
}

func TestGetCounterMissingReadsZero(t *testing.T) {
	client, _ := testClient(t)

	n, err := client.GetCounter(context.Background(), "agent-001", "never")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestLookupCacheTTL(t *testing.T) {
	client, mr := testClient(t)
	ctx := context.Background()

	key := VTKey("44d88612fea8a8f36de82e1278abb02f")
	require.NoError(t, client.CacheLookup(ctx, key, `{"positives":67,"total":70}`))

	got, err := client.GetCachedLookup(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, `{"positives":67,"total":70}`, got)

	mr.FastForward(CacheTTL + time.Minute)

	got, err = client.GetCachedLookup(ctx, key)
	require.NoError(t, err)
	assert.Empty(t, got, "cache entries expire after 24h")
}

func TestKeyLayout(t *testing.T) {
	assert.Equal(t, "vt:abc", VTKey("abc"))
	assert.Equal(t, "otx:file:abc", OTXFileKey("abc"))
	assert.Equal(t, "otx:ip:1.2.3.4", OTXIPKey("1.2.3.4"))
	assert.Equal(t, "geoip:1.2.3.4", GeoIPKey("1.2.3.4"))
	assert.Equal(t, "counter:a:k", CounterKey("a", "k"))
	assert.Equal(t, "lock:exec:a:e", ExecLockKey("a", "e"))
	assert.Equal(t, "cooldown:process:critical", CooldownKey("process", "critical"))
}
