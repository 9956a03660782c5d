package matching

import "context"

// Event types delivered to participants through their per-user subject.
const (
	EventQueueJoined    = "queue_joined"
	EventMatchProposed  = "match_proposed"
	EventMatchAccepted  = "match_accepted"
	EventMatchCancelled = "match_cancelled"
	EventSessionReady   = "session_ready"
	EventQueueLeft      = "queue_left"
	EventQueueExpired   = "queue_expired"
	EventError          = "error"
)

// Error codes carried by EventError payloads.
const (
	ErrCodeInvalidPreferences = "invalid_preferences"
	ErrCodeUnknownMatch       = "unknown_match"
	ErrCodeHandoffFailed      = "handoff_failed"
)

// Match cancellation reasons.
const (
	CancelReasonRejected     = "partner_rejected"
	CancelReasonLeft         = "partner_left"
	CancelReasonDisconnected = "partner_disconnected"
	CancelReasonTimeout      = "acceptance_timeout"
)

// QueueJoinedEvent confirms pool admission. Estimated wait assumes roughly
// two minutes per participant ahead in the queue.
type QueueJoinedEvent struct {
	Position             int `json:"position"`
	EstimatedWaitMinutes int `json:"estimated_wait_minutes"`
	TotalWaiting         int `json:"total_waiting"`
}

// MatchProposedEvent offers a candidate pairing to both sides.
type MatchProposedEvent struct {
	MatchID               string             `json:"match_id"`
	RoomID                string             `json:"room_id"`
	Partner               Summary            `json:"partner"`
	CompatibilityScore    float64            `json:"compatibility_score"`
	Breakdown             map[string]float64 `json:"breakdown"`
	Reasons               []string           `json:"reasons"`
	AcceptDeadlineSeconds int                `json:"accept_deadline_seconds"`
}

// MatchAcceptedEvent tells a participant their partner accepted first.
type MatchAcceptedEvent struct {
	MatchID string `json:"match_id"`
}

// MatchCancelledEvent tells a participant their pending match is gone.
type MatchCancelledEvent struct {
	MatchID string `json:"match_id"`
	Reason  string `json:"reason"`
}

// SessionReadyEvent carries everything a client needs to enter the interview
// room. RoomToken is specific to the receiving user.
type SessionReadyEvent struct {
	MatchID   string `json:"match_id"`
	SessionID string `json:"session_id"`
	RoomID    string `json:"room_id"`
	RoomToken string `json:"room_token"`
}

// QueueLeftEvent confirms voluntary removal from the pool.
type QueueLeftEvent struct{}

// QueueExpiredEvent tells a participant they were evicted for missed
// heartbeats and must rejoin.
type QueueExpiredEvent struct{}

// ErrorEvent reports a failed operation. Retryable errors leave the
// participant able to try again without rejoining.
type ErrorEvent struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// Notifier delivers a typed event to one participant, wherever their socket
// lives. Implementations must not block the coordinator for long.
type Notifier interface {
	Notify(userID, eventType string, payload interface{}) error
}

// HandoffResult is the durable session created for an accepted match.
// Tokens maps each participant's userId to their room token.
type HandoffResult struct {
	SessionID string
	RoomID    string
	Tokens    map[string]string
}

// SessionHandoff turns a fully accepted match into a durable interview
// session. A returned error means nothing usable was created and both
// participants can safely retry.
type SessionHandoff interface {
	CreateSession(ctx context.Context, match *PendingMatch) (HandoffResult, error)
}
