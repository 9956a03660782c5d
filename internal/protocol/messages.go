// Package protocol defines the WebSocket message types and structures used for
// communication between the client and the gateway. All messages are
// serialized as JSON and follow a consistent envelope format with a type
// discriminator.
package protocol

import (
	"encoding/json"
	"fmt"
)

// ---------------------------------------------------------------------------
// Message type constants
// ---------------------------------------------------------------------------

// Client -> Server message types.
const (
	TypeJoinQueue   = "join_queue"
	TypeLeaveQueue  = "leave_queue"
	TypeHeartbeat   = "heartbeat"
	TypeAcceptMatch = "accept_match"
	TypeRejectMatch = "reject_match"
	TypePing        = "ping"
)

// Server -> Client message types.
const (
	TypeQueueJoined    = "queue_joined"
	TypeMatchProposed  = "match_proposed"
	TypeMatchAccepted  = "match_accepted"
	TypeMatchCancelled = "match_cancelled"
	TypeSessionReady   = "session_ready"
	TypeQueueLeft      = "queue_left"
	TypeQueueExpired   = "queue_expired"
	TypeRateLimited    = "rate_limited"
	TypeError          = "error"
	TypePong           = "pong"
)

// ---------------------------------------------------------------------------
// Envelope — used for initial JSON parsing to extract the type discriminator.
// ---------------------------------------------------------------------------

// Envelope holds the message type and the raw JSON payload for deferred
// parsing into a concrete struct.
type Envelope struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"-"`
}

// UnmarshalJSON implements the json.Unmarshaler interface. It captures the
// full raw bytes and extracts only the "type" field so that the rest of the
// payload can be decoded later into the appropriate concrete struct.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	// Capture the full raw message for deferred parsing.
	e.Raw = make(json.RawMessage, len(data))
	copy(e.Raw, data)

	// Extract only the type field.
	var partial struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &partial); err != nil {
		return fmt.Errorf("protocol: failed to unmarshal envelope: %w", err)
	}
	if partial.Type == "" {
		return fmt.Errorf("protocol: missing or empty \"type\" field")
	}
	e.Type = partial.Type
	return nil
}

// ---------------------------------------------------------------------------
// Client -> Server message structs
// ---------------------------------------------------------------------------

// JoinQueueMsg is sent by the client to enter the matchmaking queue. The
// preferences and profile blocks are passed through to the matcher, which
// owns their validation.
type JoinQueueMsg struct {
	Type        string          `json:"type"`
	Preferences json.RawMessage `json:"preferences"`
	Profile     json.RawMessage `json:"profile"`
}

// LeaveQueueMsg is sent by the client to leave the matchmaking queue.
type LeaveQueueMsg struct {
	Type string `json:"type"`
}

// HeartbeatMsg is sent by the client to signal it is still waiting.
type HeartbeatMsg struct {
	Type string `json:"type"`
}

// AcceptMatchMsg is sent by the client to accept a proposed match.
type AcceptMatchMsg struct {
	Type    string `json:"type"`
	MatchID string `json:"match_id"`
}

// RejectMatchMsg is sent by the client to reject a proposed match.
type RejectMatchMsg struct {
	Type    string `json:"type"`
	MatchID string `json:"match_id"`
}

// PingMsg is a client-initiated keepalive ping.
type PingMsg struct {
	Type string `json:"type"`
}

// ---------------------------------------------------------------------------
// Server -> Client message structs
// ---------------------------------------------------------------------------

// QueueJoinedMsg confirms the client has entered the matchmaking queue.
type QueueJoinedMsg struct {
	Type                 string `json:"type"`
	Position             int    `json:"position"`
	EstimatedWaitMinutes int    `json:"estimated_wait_minutes"`
	TotalWaiting         int    `json:"total_waiting"`
}

// PartnerSummary is the partner-facing slice of a matched participant.
type PartnerSummary struct {
	UserID          string   `json:"user_id"`
	Role            string   `json:"role"`
	ExperienceYears int      `json:"experience_years"`
	Skills          []string `json:"skills,omitempty"`
}

// MatchProposedMsg is sent when a compatible partner has been found. Both
// sides must accept before the deadline for the session to start.
type MatchProposedMsg struct {
	Type                  string             `json:"type"`
	MatchID               string             `json:"match_id"`
	RoomID                string             `json:"room_id"`
	Partner               PartnerSummary     `json:"partner"`
	CompatibilityScore    float64            `json:"compatibility_score"`
	Breakdown             map[string]float64 `json:"breakdown"`
	Reasons               []string           `json:"reasons"`
	AcceptDeadlineSeconds int                `json:"accept_deadline_seconds"`
}

// MatchAcceptedMsg is sent when the partner accepted and the client's own
// acceptance is still outstanding.
type MatchAcceptedMsg struct {
	Type    string `json:"type"`
	MatchID string `json:"match_id"`
}

// MatchCancelledMsg is sent when a proposed match fell through.
type MatchCancelledMsg struct {
	Type    string `json:"type"`
	MatchID string `json:"match_id"`
	Reason  string `json:"reason"`
}

// SessionReadyMsg is sent when both sides accepted and the interview session
// exists. The room token is specific to the receiving user.
type SessionReadyMsg struct {
	Type      string `json:"type"`
	MatchID   string `json:"match_id"`
	SessionID string `json:"session_id"`
	RoomID    string `json:"room_id"`
	RoomToken string `json:"room_token"`
}

// QueueLeftMsg confirms the client left the matchmaking queue.
type QueueLeftMsg struct {
	Type string `json:"type"`
}

// QueueExpiredMsg is sent when the client was evicted from the queue for
// missed heartbeats and must rejoin.
type QueueExpiredMsg struct {
	Type string `json:"type"`
}

// RateLimitedMsg is sent by the server when the client has been rate-limited.
type RateLimitedMsg struct {
	Type       string `json:"type"`
	RetryAfter int    `json:"retry_after"`
}

// ErrorMsg is sent by the server to communicate an error condition.
type ErrorMsg struct {
	Type      string `json:"type"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// PongMsg is the server's response to a client ping.
type PongMsg struct {
	Type string `json:"type"`
}

// ---------------------------------------------------------------------------
// Helper functions
// ---------------------------------------------------------------------------

// ParseClientMessage parses raw WebSocket bytes into a typed client message.
// It returns the message type string, the decoded struct, and any error
// encountered during parsing. An error is returned for unknown or
// server-only message types.
func ParseClientMessage(data []byte) (string, interface{}, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("protocol: failed to parse message: %w", err)
	}

	var (
		msg interface{}
		err error
	)

	switch env.Type {
	case TypeJoinQueue:
		var m JoinQueueMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeLeaveQueue:
		var m LeaveQueueMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeHeartbeat:
		var m HeartbeatMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeAcceptMatch:
		var m AcceptMatchMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeRejectMatch:
		var m RejectMatchMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypePing:
		var m PingMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	default:
		return env.Type, nil, fmt.Errorf("protocol: unknown client message type: %q", env.Type)
	}

	if err != nil {
		return env.Type, nil, fmt.Errorf("protocol: failed to decode %q payload: %w", env.Type, err)
	}
	return env.Type, msg, nil
}

// NewServerMessage creates a JSON-encoded byte slice for a server message.
// The msgType is injected into the payload under the "type" key. The payload
// should be one of the Server*Msg structs; this function marshals it to JSON,
// injects the type field, and returns the final bytes.
func NewServerMessage(msgType string, payload interface{}) ([]byte, error) {
	// Marshal the payload struct to a generic map so we can ensure the "type"
	// field is present and correct.
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal payload: %w", err)
	}

	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("protocol: failed to unmarshal payload into map: %w", err)
	}

	m["type"] = msgType

	out, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal server message: %w", err)
	}
	return out, nil
}
