package matching

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Claim failure reasons.
const (
	ClaimReasonMissing    = "not in pool"
	ClaimReasonNotWaiting = "not waiting"
)

// ClaimError reports why TryClaimPair could not claim a pair. The pool is
// left untouched when it is returned.
type ClaimError struct {
	UserID string
	Reason string
}

func (e *ClaimError) Error() string {
	return fmt.Sprintf("matching: cannot claim %s: %s", e.UserID, e.Reason)
}

// Candidate is one viable pairing option produced by a pool scan. The
// snapshot is advisory: the scan holds no claim, so the candidate must be
// re-validated through TryClaimPair before anything acts on it.
type Candidate struct {
	UserID   string
	Score    Score
	JoinedAt time.Time
}

// Pool is the set of participants currently waiting for a match. All
// claim-affecting operations serialize on the pool mutex; TryClaimPair is the
// only way two records leave the pool together, so a participant can never be
// committed to two matches at once.
type Pool struct {
	mu      sync.Mutex
	records map[string]*Participant
}

// NewPool creates an empty waiting pool.
func NewPool() *Pool {
	return &Pool{records: make(map[string]*Participant)}
}

// Upsert adds the participant to the pool, replacing any existing record for
// the same user. It reports whether a record was replaced.
func (p *Pool) Upsert(rec *Participant) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, replaced := p.records[rec.UserID]
	cp := *rec
	cp.Status = StatusWaiting
	p.records[rec.UserID] = &cp
	return replaced
}

// Remove deletes the user's record and reports whether one existed.
func (p *Pool) Remove(userID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, ok := p.records[userID]
	delete(p.records, userID)
	return ok
}

// Get returns a copy of the user's record, if present.
func (p *Pool) Get(userID string) (Participant, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	rec, ok := p.records[userID]
	if !ok {
		return Participant{}, false
	}
	return *rec, true
}

// Len returns the number of participants in the pool.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.records)
}

// Touch refreshes the user's heartbeat timestamp. It reports whether the
// user is in the pool.
func (p *Pool) Touch(userID string, now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	rec, ok := p.records[userID]
	if !ok {
		return false
	}
	rec.LastHeartbeat = now
	return true
}

// QueuePosition returns the user's 1-based position by join time, ties
// broken on userId, and the total pool size. Position 0 means the user is
// not in the pool.
func (p *Pool) QueuePosition(userID string) (pos, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	rec, ok := p.records[userID]
	total = len(p.records)
	if !ok {
		return 0, total
	}
	pos = 1
	for _, other := range p.records {
		if other.UserID == userID {
			continue
		}
		if other.JoinedAt.Before(rec.JoinedAt) ||
			(other.JoinedAt.Equal(rec.JoinedAt) && other.UserID < rec.UserID) {
			pos++
		}
	}
	return pos, total
}

// ScanCandidates ranks every viable opposite-role participant against rec,
// best first: highest percentage, then earliest join, then userId for a
// stable order. Snapshots are taken under the lock but scoring happens on
// copies outside it, so the result can be stale. Callers must re-validate
// through TryClaimPair before committing to a candidate.
func (p *Pool) ScanCandidates(rec *Participant) []Candidate {
	p.mu.Lock()
	snapshot := make([]Participant, 0, len(p.records))
	for _, other := range p.records {
		if other.UserID == rec.UserID || other.Status != StatusWaiting {
			continue
		}
		snapshot = append(snapshot, *other)
	}
	p.mu.Unlock()

	var out []Candidate
	for i := range snapshot {
		score := Compatibility(rec, &snapshot[i])
		if !score.Viable() {
			continue
		}
		out = append(out, Candidate{
			UserID:   snapshot[i].UserID,
			Score:    score,
			JoinedAt: snapshot[i].JoinedAt,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score.Percentage != out[j].Score.Percentage {
			return out[i].Score.Percentage > out[j].Score.Percentage
		}
		if !out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].JoinedAt.Before(out[j].JoinedAt)
		}
		return out[i].UserID < out[j].UserID
	})
	return out
}

// TryClaimPair atomically removes both users from the pool if, and only if,
// both are present with status waiting. On success it returns copies of both
// records with status proposed. On failure it returns a ClaimError naming
// the first user that failed the check, and the pool is unchanged. Losing a
// claim race surfaces here as an error; it is expected under contention, not
// a fault.
func (p *Pool) TryClaimPair(aID, bID string) (*Participant, *Participant, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	a, err := p.claimable(aID)
	if err != nil {
		return nil, nil, err
	}
	b, err := p.claimable(bID)
	if err != nil {
		return nil, nil, err
	}

	delete(p.records, aID)
	delete(p.records, bID)

	ca, cb := *a, *b
	ca.Status = StatusProposed
	cb.Status = StatusProposed
	return &ca, &cb, nil
}

func (p *Pool) claimable(userID string) (*Participant, error) {
	rec, ok := p.records[userID]
	if !ok {
		return nil, &ClaimError{UserID: userID, Reason: ClaimReasonMissing}
	}
	if rec.Status != StatusWaiting {
		return nil, &ClaimError{UserID: userID, Reason: ClaimReasonNotWaiting}
	}
	return rec, nil
}

// ExpireStale removes every record whose last heartbeat is older than the
// cutoff and returns copies of the evicted records so callers can notify
// the owning gateways.
func (p *Pool) ExpireStale(cutoff time.Time) []Participant {
	p.mu.Lock()
	defer p.mu.Unlock()

	var evicted []Participant
	for id, rec := range p.records {
		if rec.LastHeartbeat.Before(cutoff) {
			evicted = append(evicted, *rec)
			delete(p.records, id)
		}
	}
	return evicted
}
