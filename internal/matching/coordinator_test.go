package matching

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type recordedEvent struct {
	userID    string
	eventType string
	payload   interface{}
}

// fakeNotifier records every event the coordinator emits.
type fakeNotifier struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (f *fakeNotifier) Notify(userID, eventType string, payload interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, recordedEvent{userID, eventType, payload})
	return nil
}

func (f *fakeNotifier) of(userID, eventType string) []recordedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []recordedEvent
	for _, ev := range f.events {
		if ev.userID == userID && ev.eventType == eventType {
			out = append(out, ev)
		}
	}
	return out
}

// fakeHandoff stands in for the Postgres/Redis session handoff.
type fakeHandoff struct {
	err   error
	calls int
}

func (f *fakeHandoff) CreateSession(_ context.Context, match *PendingMatch) (HandoffResult, error) {
	f.calls++
	if f.err != nil {
		return HandoffResult{}, f.err
	}
	return HandoffResult{
		SessionID: "sess-1",
		RoomID:    match.RoomID,
		Tokens: map[string]string{
			match.A.UserID: "token-" + match.A.UserID,
			match.B.UserID: "token-" + match.B.UserID,
		},
	}, nil
}

func newTestCoordinator() (*Coordinator, *fakeNotifier, *fakeHandoff) {
	notifier := &fakeNotifier{}
	handoff := &fakeHandoff{}
	coord := NewCoordinator(NewPool(), notifier, handoff, CoordinatorConfig{})
	return coord, notifier, handoff
}

func joinParticipant(id string, role Role) *Participant {
	return &Participant{
		UserID:  id,
		Gateway: "gw-1",
		Preferences: Preferences{
			Role:            role,
			InterviewType:   InterviewTechnical,
			DurationMinutes: 60,
			Difficulty:      DifficultyMedium,
			PreferredTopics: []string{"algorithms"},
			Experience:      ExperienceRange{MinYears: 0, MaxYears: 10},
		},
		Profile: Profile{
			ExperienceYears: 5,
			Domains:         []string{"backend"},
		},
	}
}

func proposedMatch(t *testing.T, notifier *fakeNotifier, userID string) MatchProposedEvent {
	t.Helper()
	evs := notifier.of(userID, EventMatchProposed)
	if len(evs) == 0 {
		t.Fatalf("no match_proposed event for %s", userID)
	}
	ev, ok := evs[len(evs)-1].payload.(MatchProposedEvent)
	if !ok {
		t.Fatalf("match_proposed payload has type %T", evs[len(evs)-1].payload)
	}
	return ev
}

func TestJoin_ConfirmsQueueEntry(t *testing.T) {
	coord, notifier, _ := newTestCoordinator()

	if err := coord.Join(joinParticipant("alice", RoleInterviewer)); err != nil {
		t.Fatalf("join failed: %v", err)
	}

	evs := notifier.of("alice", EventQueueJoined)
	if len(evs) != 1 {
		t.Fatalf("queue_joined events = %d, want 1", len(evs))
	}
	joined := evs[0].payload.(QueueJoinedEvent)
	if joined.Position != 1 || joined.TotalWaiting != 1 || joined.EstimatedWaitMinutes != 0 {
		t.Errorf("queue_joined = %+v, want position 1 of 1 with no wait", joined)
	}
	if coord.QueueSize() != 1 {
		t.Errorf("queue size = %d, want 1", coord.QueueSize())
	}
}

func TestJoin_InvalidPreferences(t *testing.T) {
	coord, notifier, _ := newTestCoordinator()

	rec := joinParticipant("alice", RoleInterviewer)
	rec.Preferences.DurationMinutes = 5

	if err := coord.Join(rec); err == nil {
		t.Fatal("expected validation error")
	}
	if coord.QueueSize() != 0 {
		t.Errorf("invalid join must not enter the pool, size = %d", coord.QueueSize())
	}

	evs := notifier.of("alice", EventError)
	if len(evs) != 1 {
		t.Fatalf("error events = %d, want 1", len(evs))
	}
	errEv := evs[0].payload.(ErrorEvent)
	if errEv.Code != ErrCodeInvalidPreferences || errEv.Retryable {
		t.Errorf("error event = %+v", errEv)
	}
}

func TestJoin_ProposesCompatiblePair(t *testing.T) {
	coord, notifier, _ := newTestCoordinator()

	coord.Join(joinParticipant("alice", RoleInterviewer))
	coord.Join(joinParticipant("bob", RoleInterviewee))

	aliceEv := proposedMatch(t, notifier, "alice")
	bobEv := proposedMatch(t, notifier, "bob")

	if aliceEv.MatchID != bobEv.MatchID {
		t.Errorf("match ids differ: %s vs %s", aliceEv.MatchID, bobEv.MatchID)
	}
	if aliceEv.Partner.UserID != "bob" || bobEv.Partner.UserID != "alice" {
		t.Errorf("partner summaries wrong: %+v / %+v", aliceEv.Partner, bobEv.Partner)
	}
	if aliceEv.RoomID != "room_"+aliceEv.MatchID {
		t.Errorf("room id = %s", aliceEv.RoomID)
	}
	if aliceEv.CompatibilityScore < ViableThreshold {
		t.Errorf("proposed score %.1f below threshold", aliceEv.CompatibilityScore)
	}
	if coord.QueueSize() != 0 {
		t.Errorf("both sides should be claimed out of the pool, size = %d", coord.QueueSize())
	}
	if coord.PendingCount() != 1 {
		t.Errorf("pending matches = %d, want 1", coord.PendingCount())
	}
}

func TestJoin_SameRoleNeverMatches(t *testing.T) {
	coord, notifier, _ := newTestCoordinator()

	coord.Join(joinParticipant("alice", RoleInterviewer))
	coord.Join(joinParticipant("carol", RoleInterviewer))

	if evs := notifier.of("alice", EventMatchProposed); len(evs) != 0 {
		t.Errorf("same-role participants must not be proposed, got %d events", len(evs))
	}
	if coord.QueueSize() != 2 {
		t.Errorf("queue size = %d, want 2", coord.QueueSize())
	}
}

func TestAccept_FirstNotifiesPartner(t *testing.T) {
	coord, notifier, handoff := newTestCoordinator()
	coord.Join(joinParticipant("alice", RoleInterviewer))
	coord.Join(joinParticipant("bob", RoleInterviewee))
	matchID := proposedMatch(t, notifier, "alice").MatchID

	coord.Accept(context.Background(), matchID, "alice")

	if evs := notifier.of("bob", EventMatchAccepted); len(evs) != 1 {
		t.Errorf("partner match_accepted events = %d, want 1", len(evs))
	}
	if handoff.calls != 0 {
		t.Errorf("handoff must wait for both acceptances, calls = %d", handoff.calls)
	}

	// Duplicate acceptance is a no-op.
	coord.Accept(context.Background(), matchID, "alice")
	if evs := notifier.of("bob", EventMatchAccepted); len(evs) != 1 {
		t.Errorf("duplicate accept produced extra events: %d", len(evs))
	}
}

func TestAccept_BothCreatesSession(t *testing.T) {
	coord, notifier, handoff := newTestCoordinator()
	coord.Join(joinParticipant("alice", RoleInterviewer))
	coord.Join(joinParticipant("bob", RoleInterviewee))
	matchID := proposedMatch(t, notifier, "alice").MatchID

	coord.Accept(context.Background(), matchID, "alice")
	coord.Accept(context.Background(), matchID, "bob")

	if handoff.calls != 1 {
		t.Fatalf("handoff calls = %d, want 1", handoff.calls)
	}
	for _, user := range []string{"alice", "bob"} {
		evs := notifier.of(user, EventSessionReady)
		if len(evs) != 1 {
			t.Fatalf("session_ready events for %s = %d, want 1", user, len(evs))
		}
		ready := evs[0].payload.(SessionReadyEvent)
		if ready.SessionID != "sess-1" || ready.RoomToken != "token-"+user {
			t.Errorf("session_ready for %s = %+v", user, ready)
		}
	}
	if coord.PendingCount() != 0 {
		t.Errorf("pending matches = %d, want 0", coord.PendingCount())
	}
}

func TestAccept_UnknownMatch(t *testing.T) {
	coord, notifier, _ := newTestCoordinator()

	coord.Accept(context.Background(), "nope", "alice")

	evs := notifier.of("alice", EventError)
	if len(evs) != 1 {
		t.Fatalf("error events = %d, want 1", len(evs))
	}
	if code := evs[0].payload.(ErrorEvent).Code; code != ErrCodeUnknownMatch {
		t.Errorf("error code = %s, want %s", code, ErrCodeUnknownMatch)
	}
}

func TestReject_ReleasesPartner(t *testing.T) {
	coord, notifier, _ := newTestCoordinator()
	coord.Join(joinParticipant("alice", RoleInterviewer))
	coord.Join(joinParticipant("bob", RoleInterviewee))
	matchID := proposedMatch(t, notifier, "alice").MatchID

	coord.Reject(matchID, "alice")

	evs := notifier.of("bob", EventMatchCancelled)
	if len(evs) != 1 {
		t.Fatalf("partner match_cancelled events = %d, want 1", len(evs))
	}
	if reason := evs[0].payload.(MatchCancelledEvent).Reason; reason != CancelReasonRejected {
		t.Errorf("cancel reason = %s, want %s", reason, CancelReasonRejected)
	}
	if evs := notifier.of("alice", EventQueueLeft); len(evs) != 1 {
		t.Errorf("rejecter queue_left events = %d, want 1", len(evs))
	}

	// The partner goes back to waiting; the rejecter must rejoin explicitly.
	if coord.QueueSize() != 1 {
		t.Errorf("queue size = %d, want 1", coord.QueueSize())
	}
	if _, ok := coord.pool.Get("bob"); !ok {
		t.Error("partner should be back in the pool")
	}
}

func TestDisconnect_CancelsPendingMatch(t *testing.T) {
	coord, notifier, _ := newTestCoordinator()
	coord.Join(joinParticipant("alice", RoleInterviewer))
	coord.Join(joinParticipant("bob", RoleInterviewee))
	proposedMatch(t, notifier, "alice")

	coord.Disconnect("alice")

	evs := notifier.of("bob", EventMatchCancelled)
	if len(evs) != 1 {
		t.Fatalf("partner match_cancelled events = %d, want 1", len(evs))
	}
	if reason := evs[0].payload.(MatchCancelledEvent).Reason; reason != CancelReasonDisconnected {
		t.Errorf("cancel reason = %s, want %s", reason, CancelReasonDisconnected)
	}
	// Nothing is sent to the vanished socket.
	if evs := notifier.of("alice", EventQueueLeft); len(evs) != 0 {
		t.Errorf("disconnected user should get no events, got %d", len(evs))
	}
}

func TestHandoffFailure_ReadmitsBothSides(t *testing.T) {
	coord, notifier, handoff := newTestCoordinator()
	handoff.err = errors.New("postgres down")

	coord.Join(joinParticipant("alice", RoleInterviewer))
	coord.Join(joinParticipant("bob", RoleInterviewee))
	matchID := proposedMatch(t, notifier, "alice").MatchID

	coord.Accept(context.Background(), matchID, "alice")
	coord.Accept(context.Background(), matchID, "bob")

	for _, user := range []string{"alice", "bob"} {
		evs := notifier.of(user, EventError)
		if len(evs) != 1 {
			t.Fatalf("error events for %s = %d, want 1", user, len(evs))
		}
		errEv := evs[0].payload.(ErrorEvent)
		if errEv.Code != ErrCodeHandoffFailed || !errEv.Retryable {
			t.Errorf("error event for %s = %+v", user, errEv)
		}
	}

	// Both re-entered the pool and, still being compatible, were proposed
	// to each other again.
	if evs := notifier.of("alice", EventMatchProposed); len(evs) != 2 {
		t.Errorf("alice proposals = %d, want a fresh one after the failure", len(evs))
	}
}

func TestExpirePending_DropsNonAccepters(t *testing.T) {
	coord, notifier, _ := newTestCoordinator()

	base := time.Now()
	coord.now = func() time.Time { return base }

	coord.Join(joinParticipant("alice", RoleInterviewer))
	coord.Join(joinParticipant("bob", RoleInterviewee))
	matchID := proposedMatch(t, notifier, "alice").MatchID

	// Only alice answers before the deadline.
	coord.Accept(context.Background(), matchID, "alice")

	expired := coord.ExpirePending(base.Add(DefaultAcceptTimeout + time.Second))
	if expired != 1 {
		t.Fatalf("expired = %d, want 1", expired)
	}
	for _, user := range []string{"alice", "bob"} {
		evs := notifier.of(user, EventMatchCancelled)
		if len(evs) != 1 {
			t.Fatalf("match_cancelled for %s = %d, want 1", user, len(evs))
		}
		if reason := evs[0].payload.(MatchCancelledEvent).Reason; reason != CancelReasonTimeout {
			t.Errorf("cancel reason for %s = %s", user, reason)
		}
	}

	// Alice accepted, so she keeps her place; bob is dropped.
	if _, ok := coord.pool.Get("alice"); !ok {
		t.Error("accepting side should be readmitted")
	}
	if _, ok := coord.pool.Get("bob"); ok {
		t.Error("silent side should be dropped")
	}
	if coord.PendingCount() != 0 {
		t.Errorf("pending matches = %d, want 0", coord.PendingCount())
	}
}

func TestExpirePending_NeitherAcceptedReleasesBoth(t *testing.T) {
	coord, notifier, _ := newTestCoordinator()

	base := time.Now()
	coord.now = func() time.Time { return base }

	coord.Join(joinParticipant("alice", RoleInterviewer))
	coord.Join(joinParticipant("bob", RoleInterviewee))
	proposedMatch(t, notifier, "alice")

	if expired := coord.ExpirePending(base.Add(DefaultAcceptTimeout + time.Second)); expired != 1 {
		t.Fatalf("expired = %d, want 1", expired)
	}

	// Nobody answered, so nobody loses their place in the queue.
	for _, user := range []string{"alice", "bob"} {
		if _, ok := coord.pool.Get(user); !ok {
			t.Errorf("%s should be back in the pool", user)
		}
		if evs := notifier.of(user, EventMatchCancelled); len(evs) != 1 {
			t.Errorf("match_cancelled for %s = %d, want 1", user, len(evs))
		}
		// No immediate re-proposal of the pair that just timed out.
		if evs := notifier.of(user, EventMatchProposed); len(evs) != 1 {
			t.Errorf("proposals for %s = %d, want only the original", user, len(evs))
		}
	}
	if coord.QueueSize() != 2 {
		t.Errorf("queue size = %d, want 2", coord.QueueSize())
	}
	if coord.PendingCount() != 0 {
		t.Errorf("pending matches = %d, want 0", coord.PendingCount())
	}
}

func TestExpirePending_RescansReadmittedAccepter(t *testing.T) {
	coord, notifier, _ := newTestCoordinator()

	base := time.Now()
	coord.now = func() time.Time { return base }

	coord.Join(joinParticipant("alice", RoleInterviewer))
	coord.Join(joinParticipant("bob", RoleInterviewee))
	matchID := proposedMatch(t, notifier, "alice").MatchID

	// Carol joins while alice and bob are claimed, so she waits alone.
	coord.Join(joinParticipant("carol", RoleInterviewee))
	if evs := notifier.of("carol", EventMatchProposed); len(evs) != 0 {
		t.Fatalf("carol should be waiting, got %d proposals", len(evs))
	}

	coord.Accept(context.Background(), matchID, "alice")
	if expired := coord.ExpirePending(base.Add(DefaultAcceptTimeout + time.Second)); expired != 1 {
		t.Fatalf("expired = %d, want 1", expired)
	}

	// Alice accepted, so her readmission immediately pairs her with carol.
	carolEv := proposedMatch(t, notifier, "carol")
	if carolEv.Partner.UserID != "alice" {
		t.Errorf("carol's partner = %s, want alice", carolEv.Partner.UserID)
	}
	if coord.PendingCount() != 1 {
		t.Errorf("pending matches = %d, want 1", coord.PendingCount())
	}
	if coord.QueueSize() != 0 {
		t.Errorf("queue size = %d, want 0", coord.QueueSize())
	}
}

func TestExpireStale_EvictsSilentParticipants(t *testing.T) {
	coord, notifier, _ := newTestCoordinator()

	base := time.Now()
	coord.now = func() time.Time { return base }
	coord.Join(joinParticipant("alice", RoleInterviewer))

	if n := coord.ExpireStale(base.Add(time.Minute)); n != 0 {
		t.Errorf("premature sweep evicted %d", n)
	}

	if n := coord.ExpireStale(base.Add(DefaultHeartbeatTimeout + time.Second)); n != 1 {
		t.Fatalf("sweep evicted %d, want 1", n)
	}
	if evs := notifier.of("alice", EventQueueExpired); len(evs) != 1 {
		t.Errorf("queue_expired events = %d, want 1", len(evs))
	}
	if coord.QueueSize() != 0 {
		t.Errorf("queue size = %d, want 0", coord.QueueSize())
	}
}

func TestHeartbeat_KeepsParticipantAlive(t *testing.T) {
	coord, _, _ := newTestCoordinator()

	clock := time.Now()
	coord.now = func() time.Time { return clock }
	coord.Join(joinParticipant("alice", RoleInterviewer))

	clock = clock.Add(time.Minute)
	coord.Heartbeat("alice")

	if n := coord.ExpireStale(clock.Add(time.Minute)); n != 0 {
		t.Errorf("heartbeat should have kept alice alive, evicted %d", n)
	}
}

func TestJoin_SupersedesPendingMatch(t *testing.T) {
	coord, notifier, _ := newTestCoordinator()
	coord.Join(joinParticipant("alice", RoleInterviewer))
	coord.Join(joinParticipant("bob", RoleInterviewee))
	first := proposedMatch(t, notifier, "alice").MatchID

	// Alice joins again while the proposal is open: the old match resolves
	// against her, bob is released, and a fresh proposal is made.
	coord.Join(joinParticipant("alice", RoleInterviewer))

	evs := notifier.of("bob", EventMatchCancelled)
	if len(evs) != 1 {
		t.Fatalf("bob match_cancelled events = %d, want 1", len(evs))
	}
	second := proposedMatch(t, notifier, "alice").MatchID
	if second == first {
		t.Error("rejoin should produce a fresh match id")
	}
}

func TestLeave_FromQueue(t *testing.T) {
	coord, notifier, _ := newTestCoordinator()
	coord.Join(joinParticipant("alice", RoleInterviewer))

	coord.Leave("alice")

	if evs := notifier.of("alice", EventQueueLeft); len(evs) != 1 {
		t.Errorf("queue_left events = %d, want 1", len(evs))
	}
	if coord.QueueSize() != 0 {
		t.Errorf("queue size = %d, want 0", coord.QueueSize())
	}
}
