package matching

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/peerdrill/interview-app/internal/metrics"
)

const (
	// DefaultAcceptTimeout is how long both sides have to accept a proposal.
	DefaultAcceptTimeout = 30 * time.Second
	// DefaultHeartbeatTimeout is how long a waiting participant may go
	// without a heartbeat before the sweeper evicts them.
	DefaultHeartbeatTimeout = 90 * time.Second

	// estimatedWaitPerPosition is the rough wait cost of each participant
	// ahead in the queue, surfaced in queue_joined events.
	estimatedWaitPerPosition = 2 * time.Minute
)

// CoordinatorConfig carries the tunable timeouts of the match lifecycle.
type CoordinatorConfig struct {
	AcceptTimeout    time.Duration
	HeartbeatTimeout time.Duration
}

func (c *CoordinatorConfig) defaults() {
	if c.AcceptTimeout <= 0 {
		c.AcceptTimeout = DefaultAcceptTimeout
	}
	if c.HeartbeatTimeout <= 0 {
		c.HeartbeatTimeout = DefaultHeartbeatTimeout
	}
}

// PendingMatch is a proposed pairing awaiting acceptance from both sides.
// The participant snapshots are the claimed pool records; they re-enter the
// pool only if the match falls through.
type PendingMatch struct {
	MatchID    string
	RoomID     string
	A, B       Participant
	Score      Score
	AcceptedBy map[string]bool
	CreatedAt  time.Time
	Deadline   time.Time
}

func (m *PendingMatch) other(userID string) *Participant {
	if m.A.UserID == userID {
		return &m.B
	}
	return &m.A
}

func (m *PendingMatch) involves(userID string) bool {
	return m.A.UserID == userID || m.B.UserID == userID
}

// Coordinator drives each participant through the match lifecycle:
// waiting, proposed, accepted, and finally paired or released. All pending-
// match mutations serialize on the coordinator mutex; pool membership is
// serialized by the pool itself.
type Coordinator struct {
	pool     *Pool
	notifier Notifier
	handoff  SessionHandoff
	cfg      CoordinatorConfig

	mu      sync.Mutex
	pending map[string]*PendingMatch // matchID -> match
	byUser  map[string]string        // userID -> matchID
	now     func() time.Time
}

// NewCoordinator creates a coordinator over the given pool and collaborators.
func NewCoordinator(pool *Pool, notifier Notifier, handoff SessionHandoff, cfg CoordinatorConfig) *Coordinator {
	cfg.defaults()
	return &Coordinator{
		pool:     pool,
		notifier: notifier,
		handoff:  handoff,
		cfg:      cfg,
		pending:  make(map[string]*PendingMatch),
		byUser:   make(map[string]string),
		now:      time.Now,
	}
}

// Join validates the request, admits the participant to the pool (replacing
// any previous entry for the same user), confirms with queue_joined, and
// immediately tries to find them a match. Invalid preferences produce an
// error event and no pool entry.
func (c *Coordinator) Join(rec *Participant) error {
	if err := rec.Preferences.Validate(); err != nil {
		c.notify(rec.UserID, EventError, ErrorEvent{
			Code:      ErrCodeInvalidPreferences,
			Message:   err.Error(),
			Retryable: false,
		})
		return err
	}

	// Joining while a proposal is pending supersedes it: the old match is
	// rejected on this user's behalf before the new pool entry is created.
	if matchID, ok := c.matchFor(rec.UserID); ok {
		c.resolveRejection(matchID, rec.UserID, CancelReasonRejected, false)
	}

	now := c.now()
	rec.JoinedAt = now
	rec.LastHeartbeat = now
	replaced := c.pool.Upsert(rec)
	if replaced {
		log.Printf("[coordinator] %s rejoined, previous entry replaced", rec.UserID)
	}
	metrics.QueueSize.Set(float64(c.pool.Len()))

	pos, total := c.pool.QueuePosition(rec.UserID)
	ahead := pos - 1
	if ahead < 0 {
		ahead = 0
	}
	c.notify(rec.UserID, EventQueueJoined, QueueJoinedEvent{
		Position:             pos,
		EstimatedWaitMinutes: ahead * int(estimatedWaitPerPosition.Minutes()),
		TotalWaiting:         total,
	})

	c.tryFindAndClaim(rec.UserID)
	return nil
}

// Leave removes the participant from the pool, or resolves their pending
// match as a rejection if one is in flight. The leaving user gets a
// queue_left confirmation either way.
func (c *Coordinator) Leave(userID string) {
	if matchID, ok := c.matchFor(userID); ok {
		c.resolveRejection(matchID, userID, CancelReasonLeft, true)
		return
	}
	if c.pool.Remove(userID) {
		metrics.QueueSize.Set(float64(c.pool.Len()))
	}
	c.notify(userID, EventQueueLeft, QueueLeftEvent{})
}

// Disconnect is Leave for a vanished socket: same cleanup, but nothing is
// sent to the departed user.
func (c *Coordinator) Disconnect(userID string) {
	if matchID, ok := c.matchFor(userID); ok {
		c.resolveRejectionSilent(matchID, userID, CancelReasonDisconnected)
		return
	}
	if c.pool.Remove(userID) {
		metrics.QueueSize.Set(float64(c.pool.Len()))
	}
}

// Heartbeat refreshes the participant's liveness timestamp.
func (c *Coordinator) Heartbeat(userID string) {
	c.pool.Touch(userID, c.now())
}

// Accept records one side's acceptance. The first accept notifies the
// partner; the second triggers session handoff. Handoff failure is
// recoverable: both sides re-enter the pool and are told to retry.
func (c *Coordinator) Accept(ctx context.Context, matchID, userID string) {
	c.mu.Lock()
	match, ok := c.pending[matchID]
	if !ok || !match.involves(userID) {
		c.mu.Unlock()
		c.notify(userID, EventError, ErrorEvent{
			Code:      ErrCodeUnknownMatch,
			Message:   fmt.Sprintf("no pending match %s", matchID),
			Retryable: false,
		})
		return
	}
	if match.AcceptedBy[userID] {
		c.mu.Unlock()
		return
	}
	match.AcceptedBy[userID] = true
	partner := match.other(userID)
	both := match.AcceptedBy[partner.UserID]
	if both {
		c.removePendingLocked(match)
	}
	c.mu.Unlock()

	if !both {
		c.notify(partner.UserID, EventMatchAccepted, MatchAcceptedEvent{MatchID: matchID})
		return
	}
	c.completeMatch(ctx, match)
}

// Reject resolves the match against the rejecting user: the partner is
// released back to the pool and re-scanned, the rejecter is removed and must
// rejoin explicitly.
func (c *Coordinator) Reject(matchID, userID string) {
	c.mu.Lock()
	match, ok := c.pending[matchID]
	if !ok || !match.involves(userID) {
		c.mu.Unlock()
		c.notify(userID, EventError, ErrorEvent{
			Code:      ErrCodeUnknownMatch,
			Message:   fmt.Sprintf("no pending match %s", matchID),
			Retryable: false,
		})
		return
	}
	c.mu.Unlock()
	c.resolveRejection(matchID, userID, CancelReasonRejected, true)
}

// ExpirePending cancels every pending match past its acceptance deadline.
// A pair where neither side answered is released back to waiting. When one
// side accepted, the accepter is re-admitted and re-scanned; the silent side
// is treated as a rejecter and dropped.
func (c *Coordinator) ExpirePending(now time.Time) int {
	c.mu.Lock()
	var expired []*PendingMatch
	for _, match := range c.pending {
		if now.After(match.Deadline) {
			expired = append(expired, match)
		}
	}
	for _, match := range expired {
		c.removePendingLocked(match)
	}
	c.mu.Unlock()

	for _, match := range expired {
		log.Printf("[coordinator] match %s expired (accepted: %d/2)",
			match.MatchID, len(match.AcceptedBy))
		metrics.MatchOutcomes.WithLabelValues("expired").Inc()

		neitherAccepted := len(match.AcceptedBy) == 0
		for _, side := range []*Participant{&match.A, &match.B} {
			c.notify(side.UserID, EventMatchCancelled, MatchCancelledEvent{
				MatchID: match.MatchID,
				Reason:  CancelReasonTimeout,
			})
			if neitherAccepted || match.AcceptedBy[side.UserID] {
				c.readmit(side)
			}
		}
		// Accepters are re-scanned immediately, like the partner released by
		// a reject. A fully silent pair is not: the best candidate either
		// side would find is the partner whose proposal just timed out.
		for _, side := range []*Participant{&match.A, &match.B} {
			if match.AcceptedBy[side.UserID] {
				c.tryFindAndClaim(side.UserID)
			}
		}
	}
	return len(expired)
}

// ExpireStale evicts waiting participants whose heartbeat is older than the
// liveness timeout and informs each one.
func (c *Coordinator) ExpireStale(now time.Time) int {
	evicted := c.pool.ExpireStale(now.Add(-c.cfg.HeartbeatTimeout))
	if len(evicted) == 0 {
		return 0
	}
	metrics.QueueSize.Set(float64(c.pool.Len()))
	metrics.SweeperEvictions.Add(float64(len(evicted)))
	for i := range evicted {
		c.notify(evicted[i].UserID, EventQueueExpired, QueueExpiredEvent{})
	}
	return len(evicted)
}

// QueueSize returns the number of waiting participants.
func (c *Coordinator) QueueSize() int {
	return c.pool.Len()
}

// PendingCount returns the number of proposals awaiting acceptance.
func (c *Coordinator) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// tryFindAndClaim scans for the best viable partner and walks the ranked
// list until a claim succeeds. Losing a claim to a concurrent scan is
// expected; losers are skipped without telling anyone.
func (c *Coordinator) tryFindAndClaim(userID string) {
	rec, ok := c.pool.Get(userID)
	if !ok {
		return
	}

	for _, cand := range c.pool.ScanCandidates(&rec) {
		a, b, err := c.pool.TryClaimPair(userID, cand.UserID)
		if err != nil {
			claimErr, _ := err.(*ClaimError)
			if claimErr != nil && claimErr.UserID == userID {
				// Someone claimed us while scanning; their proposal wins.
				return
			}
			metrics.ClaimContention.Inc()
			continue
		}

		// The claimed records are authoritative; the scan scored a
		// snapshot that may have been replaced since.
		score := Compatibility(a, b)
		if !score.Viable() {
			c.readmit(a)
			c.readmit(b)
			continue
		}

		metrics.QueueSize.Set(float64(c.pool.Len()))
		c.propose(a, b, score)
		return
	}
}

// propose registers a pending match for the claimed pair and offers it to
// both sides.
func (c *Coordinator) propose(a, b *Participant, score Score) {
	matchID := uuid.New().String()
	now := c.now()
	match := &PendingMatch{
		MatchID:    matchID,
		RoomID:     "room_" + matchID,
		A:          *a,
		B:          *b,
		Score:      score,
		AcceptedBy: make(map[string]bool),
		CreatedAt:  now,
		Deadline:   now.Add(c.cfg.AcceptTimeout),
	}

	c.mu.Lock()
	c.pending[matchID] = match
	c.byUser[a.UserID] = matchID
	c.byUser[b.UserID] = matchID
	c.mu.Unlock()

	metrics.MatchesProposed.Inc()
	log.Printf("[coordinator] proposed match %s: %s <-> %s (%.1f%%)",
		matchID, a.UserID, b.UserID, score.Percentage)

	deadline := int(c.cfg.AcceptTimeout.Seconds())
	c.notify(a.UserID, EventMatchProposed, MatchProposedEvent{
		MatchID:               matchID,
		RoomID:                match.RoomID,
		Partner:               b.Summarize(),
		CompatibilityScore:    score.Percentage,
		Breakdown:             score.Breakdown.AsMap(),
		Reasons:               score.Reasons(),
		AcceptDeadlineSeconds: deadline,
	})
	c.notify(b.UserID, EventMatchProposed, MatchProposedEvent{
		MatchID:               matchID,
		RoomID:                match.RoomID,
		Partner:               a.Summarize(),
		CompatibilityScore:    score.Percentage,
		Breakdown:             score.Breakdown.AsMap(),
		Reasons:               score.Reasons(),
		AcceptDeadlineSeconds: deadline,
	})
}

// completeMatch runs session handoff for a fully accepted match. The
// coordinator lock is not held here: handoff talks to Postgres and Redis.
func (c *Coordinator) completeMatch(ctx context.Context, match *PendingMatch) {
	start := c.now()
	result, err := c.handoff.CreateSession(ctx, match)
	metrics.HandoffDuration.Observe(c.now().Sub(start).Seconds())
	if err != nil {
		log.Printf("[coordinator] handoff failed for match %s: %v", match.MatchID, err)
		metrics.MatchOutcomes.WithLabelValues("handoff_failed").Inc()
		for _, side := range []*Participant{&match.A, &match.B} {
			c.readmit(side)
			c.notify(side.UserID, EventError, ErrorEvent{
				Code:      ErrCodeHandoffFailed,
				Message:   "could not create the interview session, you are back in the queue",
				Retryable: true,
			})
		}
		c.tryFindAndClaim(match.A.UserID)
		c.tryFindAndClaim(match.B.UserID)
		return
	}

	metrics.MatchOutcomes.WithLabelValues("accepted").Inc()
	log.Printf("[coordinator] match %s paired as session %s", match.MatchID, result.SessionID)
	for _, side := range []*Participant{&match.A, &match.B} {
		c.notify(side.UserID, EventSessionReady, SessionReadyEvent{
			MatchID:   match.MatchID,
			SessionID: result.SessionID,
			RoomID:    result.RoomID,
			RoomToken: result.Tokens[side.UserID],
		})
	}
}

// resolveRejection cancels the match against userID: the partner is told,
// re-admitted, and re-scanned. When notifyUser is set the rejecting user
// gets a queue_left confirmation.
func (c *Coordinator) resolveRejection(matchID, userID, reason string, notifyUser bool) {
	partner, ok := c.takePending(matchID, userID)
	if !ok {
		return
	}
	metrics.MatchOutcomes.WithLabelValues("rejected").Inc()

	c.notify(partner.UserID, EventMatchCancelled, MatchCancelledEvent{
		MatchID: matchID,
		Reason:  reason,
	})
	c.readmit(partner)
	if notifyUser {
		c.notify(userID, EventQueueLeft, QueueLeftEvent{})
	}
	c.tryFindAndClaim(partner.UserID)
}

// resolveRejectionSilent is resolveRejection for disconnects.
func (c *Coordinator) resolveRejectionSilent(matchID, userID, reason string) {
	c.resolveRejection(matchID, userID, reason, false)
}

// takePending removes the match from the pending maps and returns the
// partner's snapshot.
func (c *Coordinator) takePending(matchID, userID string) (*Participant, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	match, ok := c.pending[matchID]
	if !ok || !match.involves(userID) {
		return nil, false
	}
	c.removePendingLocked(match)
	partner := *match.other(userID)
	return &partner, true
}

func (c *Coordinator) removePendingLocked(match *PendingMatch) {
	delete(c.pending, match.MatchID)
	delete(c.byUser, match.A.UserID)
	delete(c.byUser, match.B.UserID)
}

func (c *Coordinator) matchFor(userID string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	matchID, ok := c.byUser[userID]
	return matchID, ok
}

// readmit puts a claimed participant back into the pool with their original
// join time, so a failed match never costs queue position.
func (c *Coordinator) readmit(rec *Participant) {
	cp := *rec
	cp.Status = StatusWaiting
	cp.LastHeartbeat = c.now()
	c.pool.Upsert(&cp)
	metrics.QueueSize.Set(float64(c.pool.Len()))
}

func (c *Coordinator) notify(userID, eventType string, payload interface{}) {
	if err := c.notifier.Notify(userID, eventType, payload); err != nil {
		log.Printf("[coordinator] notify %s (%s): %v", userID, eventType, err)
	}
}
