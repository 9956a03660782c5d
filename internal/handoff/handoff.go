// Package handoff turns a fully accepted match into a live interview
// session: a durable Postgres row, a registered signaling room, and a signed
// room token for each participant.
package handoff

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/peerdrill/interview-app/internal/matching"
	"github.com/peerdrill/interview-app/internal/presence"
	"github.com/peerdrill/interview-app/internal/session"
)

// RoomTokenTTL bounds how long a room token admits its holder.
const RoomTokenTTL = 24 * time.Hour

// Sessions is the durable store the handoff writes to.
type Sessions interface {
	Create(ctx context.Context, rec *session.Record) error
}

// Rooms is the signaling room registry.
type Rooms interface {
	Register(ctx context.Context, room *presence.Room) error
}

// Service implements the coordinator's session handoff.
type Service struct {
	sessions Sessions
	rooms    Rooms
	secret   []byte
	now      func() time.Time
}

// NewService creates a handoff service signing room tokens with the given
// shared secret.
func NewService(sessions Sessions, rooms Rooms, secret string) *Service {
	return &Service{
		sessions: sessions,
		rooms:    rooms,
		secret:   []byte(secret),
		now:      time.Now,
	}
}

// CreateSession persists the interview session for an accepted match and
// mints per-user room tokens. A persistence error means nothing usable was
// created; room registration failure is logged but not fatal, since the
// signaling layer can fall back to the session row.
func (s *Service) CreateSession(ctx context.Context, match *matching.PendingMatch) (matching.HandoffResult, error) {
	interviewer, interviewee := resolveRoles(&match.A, &match.B)
	sessionID := uuid.New().String()

	rec := &session.Record{
		SessionID:          sessionID,
		RoomID:             match.RoomID,
		InterviewerID:      interviewer.UserID,
		IntervieweeID:      interviewee.UserID,
		InterviewType:      string(interviewer.Preferences.InterviewType),
		DurationMinutes:    sessionDuration(interviewer, interviewee),
		Difficulty:         string(interviewer.Preferences.Difficulty),
		CompatibilityScore: match.Score.Percentage,
	}
	if err := s.sessions.Create(ctx, rec); err != nil {
		return matching.HandoffResult{}, fmt.Errorf("handoff: persist session: %w", err)
	}

	tokens := make(map[string]string, 2)
	for _, p := range []*matching.Participant{interviewer, interviewee} {
		token, err := s.roomToken(match.RoomID, sessionID, p.UserID)
		if err != nil {
			return matching.HandoffResult{}, fmt.Errorf("handoff: sign room token for %s: %w", p.UserID, err)
		}
		tokens[p.UserID] = token
	}

	room := &presence.Room{
		ID:            match.RoomID,
		SessionID:     sessionID,
		InterviewerID: interviewer.UserID,
		IntervieweeID: interviewee.UserID,
		CreatedAt:     s.now().Unix(),
	}
	if err := s.rooms.Register(ctx, room); err != nil {
		log.Printf("[handoff] register room %s: %v", match.RoomID, err)
	}

	return matching.HandoffResult{
		SessionID: sessionID,
		RoomID:    match.RoomID,
		Tokens:    tokens,
	}, nil
}

func (s *Service) roomToken(roomID, sessionID, userID string) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"sub":     userID,
		"room":    roomID,
		"session": sessionID,
		"exp":     now.Add(RoomTokenTTL).Unix(),
		"iat":     now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// resolveRoles orders the pair by declared role. Role complementarity is a
// hard scoring gate, so exactly one side is the interviewer.
func resolveRoles(a, b *matching.Participant) (interviewer, interviewee *matching.Participant) {
	if a.Preferences.Role == matching.RoleInterviewer {
		return a, b
	}
	return b, a
}

// sessionDuration takes the shorter of the two requested durations.
func sessionDuration(a, b *matching.Participant) int {
	if b.Preferences.DurationMinutes < a.Preferences.DurationMinutes {
		return b.Preferences.DurationMinutes
	}
	return a.Preferences.DurationMinutes
}
