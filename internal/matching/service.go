package matching

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/peerdrill/interview-app/internal/messaging"
)

// JoinRequest is the NATS payload sent by a gateway when a user joins the queue.
type JoinRequest struct {
	UserID      string      `json:"user_id"`
	Gateway     string      `json:"gateway"`
	Preferences Preferences `json:"preferences"`
	Profile     Profile     `json:"profile"`
}

// LeaveRequest is the NATS payload sent when a user leaves the queue.
type LeaveRequest struct {
	UserID string `json:"user_id"`
}

// HeartbeatRequest is the NATS payload for a liveness ping.
type HeartbeatRequest struct {
	UserID string `json:"user_id"`
}

// AcceptRequest is the NATS payload sent when a user accepts a proposal.
type AcceptRequest struct {
	UserID  string `json:"user_id"`
	MatchID string `json:"match_id"`
}

// RejectRequest is the NATS payload sent when a user rejects a proposal.
type RejectRequest struct {
	UserID  string `json:"user_id"`
	MatchID string `json:"match_id"`
}

// DisconnectRequest is the NATS payload sent when a user's socket is gone.
type DisconnectRequest struct {
	UserID string `json:"user_id"`
}

// Service wires the coordinator to the NATS subjects the gateways publish on
// and runs the background sweeper.
type Service struct {
	coord  *Coordinator
	nats   *messaging.NATSClient
	sweep  SweepConfig
	ctx    context.Context
	cancel context.CancelFunc
}

// SweepConfig tunes the sweeper loop.
type SweepConfig struct {
	Interval time.Duration
}

// NewService creates the matchmaking service around an existing coordinator.
func NewService(coord *Coordinator, nats *messaging.NATSClient, sweep SweepConfig) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		coord:  coord,
		nats:   nats,
		sweep:  sweep,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start subscribes to the matchmaking subjects and starts the sweeper.
func (s *Service) Start() error {
	if err := s.nats.SubscribeMatchJoin(s.handleJoin); err != nil {
		return err
	}
	if err := s.nats.SubscribeMatchLeave(s.handleLeave); err != nil {
		return err
	}
	if err := s.nats.SubscribeMatchHeartbeat(s.handleHeartbeat); err != nil {
		return err
	}
	if err := s.nats.SubscribeMatchAccept(s.handleAccept); err != nil {
		return err
	}
	if err := s.nats.SubscribeMatchReject(s.handleReject); err != nil {
		return err
	}
	if err := s.nats.SubscribeMatchDisconnect(s.handleDisconnect); err != nil {
		return err
	}

	go StartSweeper(s.ctx, s.coord, s.sweep.Interval)

	log.Println("[matcher] service started")
	return nil
}

// Stop gracefully shuts down the matchmaking service.
func (s *Service) Stop() {
	s.cancel()
	log.Println("[matcher] service stopped")
}

// Coordinator exposes the underlying coordinator for the HTTP stats surface.
func (s *Service) Coordinator() *Coordinator {
	return s.coord
}

func (s *Service) handleJoin(data []byte) {
	var req JoinRequest
	if err := json.Unmarshal(data, &req); err != nil {
		log.Printf("[matcher] invalid join request: %v", err)
		return
	}
	if req.UserID == "" {
		log.Printf("[matcher] join request without user_id")
		return
	}

	rec := &Participant{
		UserID:      req.UserID,
		Gateway:     req.Gateway,
		Preferences: req.Preferences,
		Profile:     req.Profile,
	}
	if err := s.coord.Join(rec); err != nil {
		log.Printf("[matcher] join %s rejected: %v", req.UserID, err)
		return
	}
	log.Printf("[matcher] %s joined the queue (size: %d)", req.UserID, s.coord.QueueSize())
}

func (s *Service) handleLeave(data []byte) {
	var req LeaveRequest
	if err := json.Unmarshal(data, &req); err != nil {
		log.Printf("[matcher] invalid leave request: %v", err)
		return
	}
	s.coord.Leave(req.UserID)
	log.Printf("[matcher] %s left the queue", req.UserID)
}

func (s *Service) handleHeartbeat(data []byte) {
	var req HeartbeatRequest
	if err := json.Unmarshal(data, &req); err != nil {
		log.Printf("[matcher] invalid heartbeat: %v", err)
		return
	}
	s.coord.Heartbeat(req.UserID)
}

func (s *Service) handleAccept(data []byte) {
	var req AcceptRequest
	if err := json.Unmarshal(data, &req); err != nil {
		log.Printf("[matcher] invalid accept request: %v", err)
		return
	}
	s.coord.Accept(s.ctx, req.MatchID, req.UserID)
}

func (s *Service) handleReject(data []byte) {
	var req RejectRequest
	if err := json.Unmarshal(data, &req); err != nil {
		log.Printf("[matcher] invalid reject request: %v", err)
		return
	}
	s.coord.Reject(req.MatchID, req.UserID)
}

func (s *Service) handleDisconnect(data []byte) {
	var req DisconnectRequest
	if err := json.Unmarshal(data, &req); err != nil {
		log.Printf("[matcher] invalid disconnect notice: %v", err)
		return
	}
	s.coord.Disconnect(req.UserID)
}
