// Package presence tracks which gateway owns each connected user and what
// the user is currently doing, plus the registry of active interview rooms.
// All state lives in Redis so every service instance sees the same view.
package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// UserPrefix is the Redis key prefix for all user presence hashes.
	UserPrefix = "presence:user:"

	// PresenceTTL is the time-to-live for presence keys in Redis.
	PresenceTTL = 1 * time.Hour

	// Status constants for the user presence state machine.
	StatusIdle      = "idle"
	StatusQueued    = "queued"
	StatusMatched   = "matched"
	StatusInSession = "in_session"
)

// User represents a connected user's presence state stored in Redis.
type User struct {
	ID          string `redis:"id"`
	Status      string `redis:"status"`       // idle | queued | matched | in_session
	Gateway     string `redis:"gateway"`      // which wsserver instance owns the socket
	RoomID      string `redis:"room_id"`      // empty unless in a session
	ConnectedAt int64  `redis:"connected_at"` // unix timestamp
	LastActive  int64  `redis:"last_active"`  // unix timestamp
}

// Store manages user presence state in Redis.
type Store struct {
	client      *redis.Client
	gatewayName string // identifier for this gateway instance
}

// NewStore creates a new presence store connected to Redis.
func NewStore(redisAddr string, gatewayName string) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	// Verify connection.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("presence: redis connection failed: %w", err)
	}

	return &Store{client: client, gatewayName: gatewayName}, nil
}

// NewStoreWithClient wraps an existing Redis client, for services that share
// one connection across stores.
func NewStoreWithClient(client *redis.Client, gatewayName string) *Store {
	return &Store{client: client, gatewayName: gatewayName}
}

// Connect records a freshly connected user with idle status and 1h TTL.
func (s *Store) Connect(ctx context.Context, userID string) error {
	key := UserPrefix + userID
	now := time.Now().Unix()

	user := map[string]interface{}{
		"id":           userID,
		"status":       StatusIdle,
		"gateway":      s.gatewayName,
		"room_id":      "",
		"connected_at": now,
		"last_active":  now,
	}

	pipe := s.client.Pipeline()
	pipe.HSet(ctx, key, user)
	pipe.Expire(ctx, key, PresenceTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// Get retrieves a user's presence from Redis. Returns nil if not found.
func (s *Store) Get(ctx context.Context, userID string) (*User, error) {
	key := UserPrefix + userID
	var user User
	err := s.client.HGetAll(ctx, key).Scan(&user)
	if err != nil {
		return nil, err
	}
	if user.ID == "" {
		return nil, nil // not found
	}
	return &user, nil
}

// UpdateStatus updates the presence status and refreshes the TTL.
func (s *Store) UpdateStatus(ctx context.Context, userID string, status string) error {
	key := UserPrefix + userID
	pipe := s.client.Pipeline()
	pipe.HSet(ctx, key, "status", status, "last_active", time.Now().Unix())
	pipe.Expire(ctx, key, PresenceTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// SetRoom records the room the user entered and marks them in_session.
func (s *Store) SetRoom(ctx context.Context, userID string, roomID string) error {
	key := UserPrefix + userID
	return s.client.HSet(ctx, key, "room_id", roomID, "status", StatusInSession, "last_active", time.Now().Unix()).Err()
}

// ClearRoom removes the room association and resets status to idle.
func (s *Store) ClearRoom(ctx context.Context, userID string) error {
	key := UserPrefix + userID
	return s.client.HSet(ctx, key, "room_id", "", "status", StatusIdle, "last_active", time.Now().Unix()).Err()
}

// Touch extends the presence TTL and refreshes the activity timestamp.
func (s *Store) Touch(ctx context.Context, userID string) error {
	key := UserPrefix + userID
	pipe := s.client.Pipeline()
	pipe.HSet(ctx, key, "last_active", time.Now().Unix())
	pipe.Expire(ctx, key, PresenceTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// Disconnect removes a user's presence from Redis.
func (s *Store) Disconnect(ctx context.Context, userID string) error {
	key := UserPrefix + userID
	return s.client.Del(ctx, key).Err()
}

// Close closes the Redis connection.
func (s *Store) Close() error {
	return s.client.Close()
}

// Client returns the underlying Redis client for use by other packages.
func (s *Store) Client() *redis.Client {
	return s.client
}
