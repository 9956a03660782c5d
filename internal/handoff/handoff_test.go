package handoff

import (
	"context"
	"errors"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peerdrill/interview-app/internal/matching"
	"github.com/peerdrill/interview-app/internal/presence"
	"github.com/peerdrill/interview-app/internal/session"
)

type fakeSessions struct {
	created []*session.Record
	err     error
}

func (f *fakeSessions) Create(_ context.Context, rec *session.Record) error {
	if f.err != nil {
		return f.err
	}
	f.created = append(f.created, rec)
	return nil
}

type fakeRooms struct {
	registered []*presence.Room
	err        error
}

func (f *fakeRooms) Register(_ context.Context, room *presence.Room) error {
	if f.err != nil {
		return f.err
	}
	f.registered = append(f.registered, room)
	return nil
}

func testMatch() *matching.PendingMatch {
	return &matching.PendingMatch{
		MatchID: "m1",
		RoomID:  "room_m1",
		A: matching.Participant{
			UserID: "alice",
			Preferences: matching.Preferences{
				Role:            matching.RoleInterviewee,
				InterviewType:   matching.InterviewTechnical,
				DurationMinutes: 60,
				Difficulty:      matching.DifficultyMedium,
			},
		},
		B: matching.Participant{
			UserID: "bob",
			Preferences: matching.Preferences{
				Role:            matching.RoleInterviewer,
				InterviewType:   matching.InterviewTechnical,
				DurationMinutes: 45,
				Difficulty:      matching.DifficultyMedium,
			},
		},
		Score: matching.Score{Percentage: 75},
	}
}

func TestCreateSession(t *testing.T) {
	sessions := &fakeSessions{}
	rooms := &fakeRooms{}
	svc := NewService(sessions, rooms, "room-secret")

	result, err := svc.CreateSession(context.Background(), testMatch())
	require.NoError(t, err)
	assert.NotEmpty(t, result.SessionID)
	assert.Equal(t, "room_m1", result.RoomID)

	require.Len(t, sessions.created, 1)
	rec := sessions.created[0]
	assert.Equal(t, "bob", rec.InterviewerID)
	assert.Equal(t, "alice", rec.IntervieweeID)
	assert.Equal(t, "technical", rec.InterviewType)
	assert.Equal(t, 45, rec.DurationMinutes, "shorter requested duration wins")
	assert.Equal(t, 75.0, rec.CompatibilityScore)

	require.Len(t, rooms.registered, 1)
	assert.Equal(t, result.SessionID, rooms.registered[0].SessionID)
}

func TestCreateSession_TokensParseBack(t *testing.T) {
	svc := NewService(&fakeSessions{}, &fakeRooms{}, "room-secret")

	result, err := svc.CreateSession(context.Background(), testMatch())
	require.NoError(t, err)
	require.Len(t, result.Tokens, 2)

	for _, userID := range []string{"alice", "bob"} {
		tokenStr, ok := result.Tokens[userID]
		require.True(t, ok, "missing token for %s", userID)

		token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
			return []byte("room-secret"), nil
		})
		require.NoError(t, err)
		require.True(t, token.Valid)

		claims, ok := token.Claims.(jwt.MapClaims)
		require.True(t, ok)
		assert.Equal(t, userID, claims["sub"])
		assert.Equal(t, "room_m1", claims["room"])
		assert.Equal(t, result.SessionID, claims["session"])
	}
}

func TestCreateSession_PersistenceFailure(t *testing.T) {
	sessions := &fakeSessions{err: errors.New("db down")}
	rooms := &fakeRooms{}
	svc := NewService(sessions, rooms, "room-secret")

	_, err := svc.CreateSession(context.Background(), testMatch())
	require.Error(t, err)
	assert.Empty(t, rooms.registered, "no room registered when persistence fails")
}

func TestCreateSession_RoomRegistrationFailureNotFatal(t *testing.T) {
	sessions := &fakeSessions{}
	rooms := &fakeRooms{err: errors.New("redis down")}
	svc := NewService(sessions, rooms, "room-secret")

	result, err := svc.CreateSession(context.Background(), testMatch())
	require.NoError(t, err)
	assert.NotEmpty(t, result.SessionID)
	assert.Len(t, sessions.created, 1)
}
