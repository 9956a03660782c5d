package matching

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func poolParticipant(id string, role Role, joinedAt time.Time) *Participant {
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
		Status:        StatusWaiting,
		JoinedAt:      joinedAt,
		LastHeartbeat: joinedAt,
	}
}

func TestPool_UpsertReplaces(t *testing.T) {
	pool := NewPool()
	now := time.Now()

	if replaced := pool.Upsert(poolParticipant("alice", RoleInterviewer, now)); replaced {
		t.Error("first upsert should not report a replacement")
	}
	if replaced := pool.Upsert(poolParticipant("alice", RoleInterviewee, now)); !replaced {
		t.Error("second upsert for the same user should report a replacement")
	}
	if pool.Len() != 1 {
		t.Errorf("pool size = %d, want 1", pool.Len())
	}

	rec, ok := pool.Get("alice")
	if !ok || rec.Preferences.Role != RoleInterviewee {
		t.Errorf("upsert did not replace the record: %+v", rec)
	}
}

func TestPool_QueuePosition(t *testing.T) {
	pool := NewPool()
	base := time.Now()
	pool.Upsert(poolParticipant("first", RoleInterviewer, base))
	pool.Upsert(poolParticipant("second", RoleInterviewer, base.Add(time.Second)))
	pool.Upsert(poolParticipant("third", RoleInterviewer, base.Add(2*time.Second)))

	pos, total := pool.QueuePosition("second")
	if pos != 2 || total != 3 {
		t.Errorf("position = %d/%d, want 2/3", pos, total)
	}

	pos, total = pool.QueuePosition("missing")
	if pos != 0 || total != 3 {
		t.Errorf("missing user position = %d/%d, want 0/3", pos, total)
	}
}

func TestPool_QueuePositionTieBreaksOnUserID(t *testing.T) {
	pool := NewPool()
	now := time.Now()
	pool.Upsert(poolParticipant("beta", RoleInterviewer, now))
	pool.Upsert(poolParticipant("alpha", RoleInterviewer, now))

	seen := make(map[int]string)
	for _, id := range []string{"alpha", "beta"} {
		pos, total := pool.QueuePosition(id)
		if total != 2 {
			t.Fatalf("total = %d, want 2", total)
		}
		if prev, dup := seen[pos]; dup {
			t.Fatalf("%s and %s share position %d", prev, id, pos)
		}
		seen[pos] = id
	}
	if seen[1] != "alpha" || seen[2] != "beta" {
		t.Errorf("positions = %v, want alpha first", seen)
	}
}

func TestPool_ScanCandidatesOrdering(t *testing.T) {
	pool := NewPool()
	base := time.Now()

	seeker := poolParticipant("seeker", RoleInterviewer, base)
	pool.Upsert(seeker)

	// strong: aligned on everything. weak: viable but loses the topic,
	// domain and duration factors.
	strong := poolParticipant("strong", RoleInterviewee, base.Add(time.Second))
	weak := poolParticipant("weak", RoleInterviewee, base)
	weak.Preferences.PreferredTopics = nil
	weak.Profile.Domains = nil
	weak.Preferences.DurationMinutes = 90
	pool.Upsert(strong)
	pool.Upsert(weak)

	// Same role as the seeker: never a candidate.
	pool.Upsert(poolParticipant("peer", RoleInterviewer, base))

	cands := pool.ScanCandidates(seeker)
	if len(cands) != 2 {
		t.Fatalf("candidates = %d, want 2", len(cands))
	}
	if cands[0].UserID != "strong" || cands[1].UserID != "weak" {
		t.Errorf("order = [%s %s], want [strong weak]", cands[0].UserID, cands[1].UserID)
	}
	if cands[0].Score.Percentage <= cands[1].Score.Percentage {
		t.Errorf("scores not descending: %v then %v", cands[0].Score.Percentage, cands[1].Score.Percentage)
	}
}

func TestPool_ScanCandidatesTiesBreakOnJoinTime(t *testing.T) {
	pool := NewPool()
	base := time.Now()

	seeker := poolParticipant("seeker", RoleInterviewer, base)
	pool.Upsert(seeker)
	pool.Upsert(poolParticipant("late", RoleInterviewee, base.Add(time.Minute)))
	pool.Upsert(poolParticipant("early", RoleInterviewee, base))

	cands := pool.ScanCandidates(seeker)
	if len(cands) != 2 || cands[0].UserID != "early" {
		t.Errorf("equal scores should prefer the earlier join, got %+v", cands)
	}
}

func TestPool_TryClaimPair(t *testing.T) {
	pool := NewPool()
	now := time.Now()
	pool.Upsert(poolParticipant("alice", RoleInterviewer, now))
	pool.Upsert(poolParticipant("bob", RoleInterviewee, now))

	a, b, err := pool.TryClaimPair("alice", "bob")
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if a.Status != StatusProposed || b.Status != StatusProposed {
		t.Errorf("claimed records should be proposed, got %s/%s", a.Status, b.Status)
	}
	if pool.Len() != 0 {
		t.Errorf("pool size after claim = %d, want 0", pool.Len())
	}
}

func TestPool_TryClaimPairMissingUser(t *testing.T) {
	pool := NewPool()
	now := time.Now()
	pool.Upsert(poolParticipant("alice", RoleInterviewer, now))

	_, _, err := pool.TryClaimPair("alice", "bob")
	var claimErr *ClaimError
	if !errors.As(err, &claimErr) {
		t.Fatalf("expected ClaimError, got %v", err)
	}
	if claimErr.UserID != "bob" || claimErr.Reason != ClaimReasonMissing {
		t.Errorf("claim error = %+v, want bob/%s", claimErr, ClaimReasonMissing)
	}
	if pool.Len() != 1 {
		t.Errorf("failed claim must not mutate the pool, size = %d", pool.Len())
	}
}

func TestPool_TryClaimPairExactlyOneWinner(t *testing.T) {
	pool := NewPool()
	now := time.Now()
	pool.Upsert(poolParticipant("alice", RoleInterviewer, now))
	pool.Upsert(poolParticipant("bob", RoleInterviewee, now))

	const racers = 32
	var wg sync.WaitGroup
	wins := make(chan struct{}, racers)

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := pool.TryClaimPair("alice", "bob"); err == nil {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	won := 0
	for range wins {
		won++
	}
	if won != 1 {
		t.Errorf("claim winners = %d, want exactly 1", won)
	}
}

func TestPool_ExpireStale(t *testing.T) {
	pool := NewPool()
	base := time.Now()

	stale := poolParticipant("stale", RoleInterviewer, base.Add(-2*time.Minute))
	fresh := poolParticipant("fresh", RoleInterviewee, base)
	pool.Upsert(stale)
	pool.Upsert(fresh)

	evicted := pool.ExpireStale(base.Add(-90 * time.Second))
	if len(evicted) != 1 || evicted[0].UserID != "stale" {
		t.Fatalf("evicted = %+v, want only stale", evicted)
	}
	if _, ok := pool.Get("fresh"); !ok {
		t.Error("fresh participant should survive the sweep")
	}
}
