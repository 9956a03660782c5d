// Package session provides PostgreSQL-backed storage for interview sessions.
// A row is created at match handoff and tracks the session through its
// lifecycle; the matchmaking state itself never touches the database.
package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Session status values, matching the CHECK constraint on the
// interview_sessions table.
const (
	StatusScheduled  = "scheduled"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

var validStatuses = map[string]bool{
	StatusScheduled:  true,
	StatusInProgress: true,
	StatusCompleted:  true,
	StatusCancelled:  true,
}

// ErrNotFound is returned when the requested session does not exist.
var ErrNotFound = errors.New("session: not found")

// Record is one durable interview session.
type Record struct {
	SessionID          string
	RoomID             string
	InterviewerID      string
	IntervieweeID      string
	InterviewType      string
	DurationMinutes    int
	Difficulty         string
	CompatibilityScore float64
	Status             string
	CreatedAt          time.Time
}

// Store manages interview sessions in PostgreSQL.
type Store struct {
	db *sql.DB
}

// NewStore creates a new session store backed by the given database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create inserts a new session row with scheduled status.
func (s *Store) Create(ctx context.Context, rec *Record) error {
	const query = `
		INSERT INTO interview_sessions
			(session_id, room_id, interviewer_id, interviewee_id,
			 interview_type, duration_minutes, difficulty, compatibility_score, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.db.ExecContext(ctx, query,
		rec.SessionID,
		rec.RoomID,
		rec.InterviewerID,
		rec.IntervieweeID,
		rec.InterviewType,
		rec.DurationMinutes,
		rec.Difficulty,
		rec.CompatibilityScore,
		StatusScheduled,
	)
	if err != nil {
		return fmt.Errorf("session: insert: %w", err)
	}
	return nil
}

// Get fetches a session by id.
func (s *Store) Get(ctx context.Context, sessionID string) (*Record, error) {
	const query = `
		SELECT session_id, room_id, interviewer_id, interviewee_id,
		       interview_type, duration_minutes, difficulty, compatibility_score,
		       status, created_at
		FROM interview_sessions
		WHERE session_id = $1`

	var rec Record
	err := s.db.QueryRowContext(ctx, query, sessionID).Scan(
		&rec.SessionID,
		&rec.RoomID,
		&rec.InterviewerID,
		&rec.IntervieweeID,
		&rec.InterviewType,
		&rec.DurationMinutes,
		&rec.Difficulty,
		&rec.CompatibilityScore,
		&rec.Status,
		&rec.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session: select: %w", err)
	}
	return &rec, nil
}

// GetByRoom fetches the session owning a room.
func (s *Store) GetByRoom(ctx context.Context, roomID string) (*Record, error) {
	const query = `
		SELECT session_id, room_id, interviewer_id, interviewee_id,
		       interview_type, duration_minutes, difficulty, compatibility_score,
		       status, created_at
		FROM interview_sessions
		WHERE room_id = $1
		ORDER BY created_at DESC
		LIMIT 1`

	var rec Record
	err := s.db.QueryRowContext(ctx, query, roomID).Scan(
		&rec.SessionID,
		&rec.RoomID,
		&rec.InterviewerID,
		&rec.IntervieweeID,
		&rec.InterviewType,
		&rec.DurationMinutes,
		&rec.Difficulty,
		&rec.CompatibilityScore,
		&rec.Status,
		&rec.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session: select by room: %w", err)
	}
	return &rec, nil
}

// UpdateStatus moves a session to a new lifecycle status.
func (s *Store) UpdateStatus(ctx context.Context, sessionID string, status string) error {
	if !validStatuses[status] {
		return fmt.Errorf("session: invalid status %q", status)
	}

	const query = `UPDATE interview_sessions SET status = $2 WHERE session_id = $1`

	res, err := s.db.ExecContext(ctx, query, sessionID, status)
	if err != nil {
		return fmt.Errorf("session: update status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
