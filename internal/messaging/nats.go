// Package messaging provides a NATS client wrapper for pub/sub messaging
// between the PeerDrill gateway and matcher services. It handles connection
// lifecycle, subject-based subscriptions, and convenience methods for the
// matchmaking channels.
package messaging

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// NATS subject patterns used across PeerDrill services.
const (
	SubjectMatchJoin       = "match.join"
	SubjectMatchLeave      = "match.leave"
	SubjectMatchHeartbeat  = "match.heartbeat"
	SubjectMatchAccept     = "match.accept"
	SubjectMatchReject     = "match.reject"
	SubjectMatchDisconnect = "match.disconnect"
	SubjectMatchEvent      = "match.event"   // + .<user_id> (matcher -> gateway)
	SubjectSessionEnded    = "session.ended" // room teardown from the signaling layer
)

// NATSClient wraps the NATS connection with helper methods for pub/sub.
type NATSClient struct {
	conn *nats.Conn
	mu   sync.Mutex
	subs map[string]*nats.Subscription
}

// NATSConfig holds NATS connection settings.
type NATSConfig struct {
	URL           string        // nats://localhost:4222
	Name          string        // client name for identification
	ReconnectWait time.Duration // time between reconnect attempts
	MaxReconnects int           // max reconnect attempts (-1 for infinite)
}

// DefaultNATSConfig returns sensible defaults.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           "nats://localhost:4222",
		Name:          "peerdrill",
		ReconnectWait: 2 * time.Second,
		MaxReconnects: -1, // infinite reconnects
	}
}

// NewNATSClient connects to NATS with the given config and returns a ready client.
// It returns an error if the initial connection fails.
func NewNATSClient(config NATSConfig) (*NATSClient, error) {
	opts := []nats.Option{
		nats.Name(config.Name),
		nats.ReconnectWait(config.ReconnectWait),
		nats.MaxReconnects(config.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("[nats] disconnected: %v", err)
			} else {
				log.Printf("[nats] disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("[nats] reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Printf("[nats] connection closed")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	log.Printf("[nats] connected to %s", nc.ConnectedUrl())

	return &NATSClient{
		conn: nc,
		subs: make(map[string]*nats.Subscription),
	}, nil
}

// Publish sends data to the given NATS subject.
func (c *NATSClient) Publish(subject string, data []byte) error {
	return c.conn.Publish(subject, data)
}

// Subscribe registers a handler for the given subject and stores the
// subscription internally for later cleanup.
func (c *NATSClient) Subscribe(subject string, handler func(msg *nats.Msg)) error {
	sub, err := c.conn.Subscribe(subject, handler)
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", subject, err)
	}

	c.mu.Lock()
	c.subs[subject] = sub
	c.mu.Unlock()

	return nil
}

// PublishMatchJoin publishes a queue join request to the matcher.
func (c *NATSClient) PublishMatchJoin(data []byte) error {
	return c.Publish(SubjectMatchJoin, data)
}

// PublishMatchLeave publishes a queue leave request to the matcher.
func (c *NATSClient) PublishMatchLeave(data []byte) error {
	return c.Publish(SubjectMatchLeave, data)
}

// PublishMatchHeartbeat publishes a liveness ping to the matcher.
func (c *NATSClient) PublishMatchHeartbeat(data []byte) error {
	return c.Publish(SubjectMatchHeartbeat, data)
}

// PublishMatchAccept publishes a match acceptance to the matcher.
func (c *NATSClient) PublishMatchAccept(data []byte) error {
	return c.Publish(SubjectMatchAccept, data)
}

// PublishMatchReject publishes a match rejection to the matcher.
func (c *NATSClient) PublishMatchReject(data []byte) error {
	return c.Publish(SubjectMatchReject, data)
}

// PublishMatchDisconnect tells the matcher a user's socket is gone.
func (c *NATSClient) PublishMatchDisconnect(data []byte) error {
	return c.Publish(SubjectMatchDisconnect, data)
}

// SubscribeMatchJoin subscribes to queue join requests from gateways.
func (c *NATSClient) SubscribeMatchJoin(handler func(data []byte)) error {
	return c.Subscribe(SubjectMatchJoin, func(msg *nats.Msg) {
		handler(msg.Data)
	})
}

// SubscribeMatchLeave subscribes to queue leave requests from gateways.
func (c *NATSClient) SubscribeMatchLeave(handler func(data []byte)) error {
	return c.Subscribe(SubjectMatchLeave, func(msg *nats.Msg) {
		handler(msg.Data)
	})
}

// SubscribeMatchHeartbeat subscribes to liveness pings from gateways.
func (c *NATSClient) SubscribeMatchHeartbeat(handler func(data []byte)) error {
	return c.Subscribe(SubjectMatchHeartbeat, func(msg *nats.Msg) {
		handler(msg.Data)
	})
}

// SubscribeMatchAccept subscribes to match acceptances from gateways.
func (c *NATSClient) SubscribeMatchAccept(handler func(data []byte)) error {
	return c.Subscribe(SubjectMatchAccept, func(msg *nats.Msg) {
		handler(msg.Data)
	})
}

// SubscribeMatchReject subscribes to match rejections from gateways.
func (c *NATSClient) SubscribeMatchReject(handler func(data []byte)) error {
	return c.Subscribe(SubjectMatchReject, func(msg *nats.Msg) {
		handler(msg.Data)
	})
}

// SubscribeMatchDisconnect subscribes to socket-gone notices from gateways.
func (c *NATSClient) SubscribeMatchDisconnect(handler func(data []byte)) error {
	return c.Subscribe(SubjectMatchDisconnect, func(msg *nats.Msg) {
		handler(msg.Data)
	})
}

// PublishMatchEvent publishes a matchmaking event to one user's subject.
func (c *NATSClient) PublishMatchEvent(userID string, data []byte) error {
	return c.Publish(SubjectMatchEvent+"."+userID, data)
}

// SubscribeMatchEvent subscribes to matchmaking events for a specific user.
func (c *NATSClient) SubscribeMatchEvent(userID string, handler func(data []byte)) error {
	subject := SubjectMatchEvent + "." + userID
	return c.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Data)
	})
}

// UnsubscribeMatchEvent unsubscribes from a user's matchmaking events.
func (c *NATSClient) UnsubscribeMatchEvent(userID string) error {
	return c.unsubscribe(SubjectMatchEvent + "." + userID)
}

// PublishSessionEnded announces that an interview session's room is done.
func (c *NATSClient) PublishSessionEnded(data []byte) error {
	return c.Publish(SubjectSessionEnded, data)
}

// SubscribeSessionEnded subscribes to session teardown announcements.
func (c *NATSClient) SubscribeSessionEnded(handler func(data []byte)) error {
	return c.Subscribe(SubjectSessionEnded, func(msg *nats.Msg) {
		handler(msg.Data)
	})
}

// Close drains all active subscriptions and closes the NATS connection.
func (c *NATSClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for subject, sub := range c.subs {
		if err := sub.Drain(); err != nil {
			log.Printf("[nats] drain %s: %v", subject, err)
		}
	}
	c.subs = make(map[string]*nats.Subscription)

	if err := c.conn.Drain(); err != nil {
		log.Printf("[nats] connection drain: %v", err)
	}

	log.Printf("[nats] client closed")
}

// unsubscribe removes and unsubscribes from a specific subject.
func (c *NATSClient) unsubscribe(subject string) error {
	c.mu.Lock()
	sub, ok := c.subs[subject]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("nats: no subscription for subject %s", subject)
	}
	delete(c.subs, subject)
	c.mu.Unlock()

	if err := sub.Unsubscribe(); err != nil {
		return fmt.Errorf("nats unsubscribe %s: %w", subject, err)
	}
	return nil
}
