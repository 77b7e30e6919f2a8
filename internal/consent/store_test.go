package consent

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return mr, client
}

func TestRedisStoreRoundTrip(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()

	store := NewRedisStore(client, "vlm_consent", "2025-08-15")

	// Nothing stored reads as unset
	assert.Equal(t, Unset, store.Get(ctx, "v1"))

	require.NoError(t, store.Set(ctx, "v1", Accepted))
	assert.Equal(t, Accepted, store.Get(ctx, "v1"))

	// Simulated reload: a fresh store over the same backing data still
	// reads the persisted choice (no in-process caching).
	reloaded := NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "vlm_consent", "2025-08-15")
	assert.Equal(t, Accepted, reloaded.Get(ctx, "v1"))

	require.NoError(t, store.Set(ctx, "v1", Rejected))
	assert.Equal(t, Rejected, store.Get(ctx, "v1"))
	assert.Equal(t, Rejected, reloaded.Get(ctx, "v1"))
}

func TestRedisStoreRejectsUnsetWrite(t *testing.T) {
	_, client := setupTestRedis(t)
	store := NewRedisStore(client, "vlm_consent", "2025-08-15")

	assert.Error(t, store.Set(context.Background(), "v1", Unset))
	assert.Error(t, store.Set(context.Background(), "v1", Decision("maybe")))
}

func TestRedisStoreCorruptValueReadsAsUnset(t *testing.T) {
	mr, client := setupTestRedis(t)
	store := NewRedisStore(client, "vlm_consent", "2025-08-15")

	mr.Set("vlm_consent:v1", `{"decision":"???"`)
	assert.Equal(t, Unset, store.Get(context.Background(), "v1"))

	mr.Set("vlm_consent:v2", "garbage")
	assert.Equal(t, Unset, store.Get(context.Background(), "v2"))
}

func TestRedisStoreReadsLegacyFlatValue(t *testing.T) {
	mr, client := setupTestRedis(t)
	store := NewRedisStore(client, "vlm_consent", "2025-08-15")

	// Historical script variants stored the bare decision string.
	mr.Set("vlm_consent:v1", "accepted")
	assert.Equal(t, Accepted, store.Get(context.Background(), "v1"))

	mr.Set("vlm_consent:v2", "rejected")
	assert.Equal(t, Rejected, store.Get(context.Background(), "v2"))
}

func TestRedisStoreUnavailableReadsAsUnset(t *testing.T) {
	mr, client := setupTestRedis(t)
	store := NewRedisStore(client, "vlm_consent", "2025-08-15")

	require.NoError(t, store.Set(context.Background(), "v1", Accepted))
	mr.Close()

	// Get never fails upward, even with the backend gone.
	assert.Equal(t, Unset, store.Get(context.Background(), "v1"))
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore("2025-08-15")

	assert.Equal(t, Unset, store.Get(ctx, "v1"))
	require.NoError(t, store.Set(ctx, "v1", Accepted))
	assert.Equal(t, Accepted, store.Get(ctx, "v1"))
	assert.Equal(t, Unset, store.Get(ctx, "v2"))

	assert.Error(t, store.Set(ctx, "v1", Unset))
	assert.Equal(t, Accepted, store.Get(ctx, "v1"))
}

func TestParseDecision(t *testing.T) {
	assert.Equal(t, Accepted, ParseDecision("accepted"))
	assert.Equal(t, Rejected, ParseDecision("rejected"))
	assert.Equal(t, Unset, ParseDecision("unset"))
	assert.Equal(t, Unset, ParseDecision(""))
	assert.Equal(t, Unset, ParseDecision("ACCEPTED"))
	assert.Equal(t, Unset, ParseDecision("yes"))

	assert.True(t, Accepted.Granted())
	assert.False(t, Rejected.Granted())
	assert.False(t, Unset.Granted())
}
