package presence

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis creates a miniredis instance and a redis client for testing.
func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { client.Close() })

	return mr, client
}

func TestStore_ConnectAndGet(t *testing.T) {
	_, client := setupTestRedis(t)
	store := NewStoreWithClient(client, "gateway-1")
	ctx := context.Background()

	require.NoError(t, store.Connect(ctx, "user-1"))

	user, err := store.Get(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "user-1", user.ID)
	assert.Equal(t, StatusIdle, user.Status)
	assert.Equal(t, "gateway-1", user.Gateway)
	assert.Empty(t, user.RoomID)
}

func TestStore_GetMissing(t *testing.T) {
	_, client := setupTestRedis(t)
	store := NewStoreWithClient(client, "gateway-1")

	user, err := store.Get(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestStore_UpdateStatus(t *testing.T) {
	_, client := setupTestRedis(t)
	store := NewStoreWithClient(client, "gateway-1")
	ctx := context.Background()

	require.NoError(t, store.Connect(ctx, "user-1"))
	require.NoError(t, store.UpdateStatus(ctx, "user-1", StatusQueued))

	user, err := store.Get(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, StatusQueued, user.Status)
}

func TestStore_RoomLifecycle(t *testing.T) {
	_, client := setupTestRedis(t)
	store := NewStoreWithClient(client, "gateway-1")
	ctx := context.Background()

	require.NoError(t, store.Connect(ctx, "user-1"))
	require.NoError(t, store.SetRoom(ctx, "user-1", "room_abc"))

	user, err := store.Get(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "room_abc", user.RoomID)
	assert.Equal(t, StatusInSession, user.Status)

	require.NoError(t, store.ClearRoom(ctx, "user-1"))
	user, err = store.Get(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Empty(t, user.RoomID)
	assert.Equal(t, StatusIdle, user.Status)
}

func TestStore_Disconnect(t *testing.T) {
	_, client := setupTestRedis(t)
	store := NewStoreWithClient(client, "gateway-1")
	ctx := context.Background()

	require.NoError(t, store.Connect(ctx, "user-1"))
	require.NoError(t, store.Disconnect(ctx, "user-1"))

	user, err := store.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestStore_TouchExtendsTTL(t *testing.T) {
	mr, client := setupTestRedis(t)
	store := NewStoreWithClient(client, "gateway-1")
	ctx := context.Background()

	require.NoError(t, store.Connect(ctx, "user-1"))

	// Burn most of the TTL, then touch and verify it was reset.
	mr.FastForward(PresenceTTL - time.Minute)
	require.NoError(t, store.Touch(ctx, "user-1"))
	mr.FastForward(PresenceTTL - time.Minute)

	user, err := store.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.NotNil(t, user)
}

func TestRooms_RegisterGetDelete(t *testing.T) {
	_, client := setupTestRedis(t)
	rooms := NewRooms(client)
	ctx := context.Background()

	room := &Room{
		ID:            "room_m1",
		SessionID:     "session-1",
		InterviewerID: "alice",
		IntervieweeID: "bob",
		CreatedAt:     time.Now().Unix(),
	}
	require.NoError(t, rooms.Register(ctx, room))

	got, err := rooms.Get(ctx, "room_m1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "session-1", got.SessionID)
	assert.Equal(t, "alice", got.InterviewerID)
	assert.Equal(t, "bob", got.IntervieweeID)

	require.NoError(t, rooms.Delete(ctx, "room_m1"))
	got, err = rooms.Get(ctx, "room_m1")
	require.NoError(t, err)
	assert.Nil(t, got)
}
