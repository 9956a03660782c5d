package matching

import (
	"encoding/json"
	"fmt"

	"github.com/peerdrill/interview-app/internal/messaging"
)

// EventEnvelope is the wire form of a matchmaking event on the per-user
// match.event.<user_id> subject.
type EventEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NATSNotifier delivers coordinator events to participants over their
// per-user NATS subject; the owning gateway relays them down the socket.
type NATSNotifier struct {
	nats *messaging.NATSClient
}

// NewNATSNotifier creates a notifier over the given NATS client.
func NewNATSNotifier(nats *messaging.NATSClient) *NATSNotifier {
	return &NATSNotifier{nats: nats}
}

// Notify publishes one typed event to the user's subject.
func (n *NATSNotifier) Notify(userID, eventType string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("matching: marshal %s payload: %w", eventType, err)
	}
	data, err := json.Marshal(EventEnvelope{Type: eventType, Payload: body})
	if err != nil {
		return fmt.Errorf("matching: marshal %s envelope: %w", eventType, err)
	}
	if err := n.nats.PublishMatchEvent(userID, data); err != nil {
		return fmt.Errorf("matching: publish %s for %s: %w", eventType, userID, err)
	}
	return nil
}
