package presence

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// RoomPrefix is the Redis key prefix for interview room hashes.
	RoomPrefix = "room:"

	// RoomTTL bounds how long a room record may outlive its session. Rooms
	// are normally deleted explicitly on session teardown.
	RoomTTL = 3 * time.Hour
)

// Room is the signaling layer's view of an active interview room.
type Room struct {
	ID            string `redis:"id"`
	SessionID     string `redis:"session_id"`
	InterviewerID string `redis:"interviewer_id"`
	IntervieweeID string `redis:"interviewee_id"`
	CreatedAt     int64  `redis:"created_at"` // unix timestamp
}

// Rooms manages the registry of active interview rooms in Redis.
type Rooms struct {
	client *redis.Client
}

// NewRooms creates a room registry over an existing Redis client.
func NewRooms(client *redis.Client) *Rooms {
	return &Rooms{client: client}
}

// Register stores a new room so the signaling layer can admit both users.
func (r *Rooms) Register(ctx context.Context, room *Room) error {
	key := RoomPrefix + room.ID

	fields := map[string]interface{}{
		"id":             room.ID,
		"session_id":     room.SessionID,
		"interviewer_id": room.InterviewerID,
		"interviewee_id": room.IntervieweeID,
		"created_at":     room.CreatedAt,
	}

	pipe := r.client.Pipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, RoomTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// Get retrieves a room from the registry. Returns nil if not found.
func (r *Rooms) Get(ctx context.Context, roomID string) (*Room, error) {
	key := RoomPrefix + roomID
	var room Room
	err := r.client.HGetAll(ctx, key).Scan(&room)
	if err != nil {
		return nil, err
	}
	if room.ID == "" {
		return nil, nil // not found
	}
	return &room, nil
}

// Delete removes a room from the registry.
func (r *Rooms) Delete(ctx context.Context, roomID string) error {
	return r.client.Del(ctx, RoomPrefix+roomID).Err()
}
