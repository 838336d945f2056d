// Package reconcile merges locally predicted spells with the canonical
// spells the server broadcasts. The client renders a predicted spell the
// moment it is cast; once the server echoes the cast with its own id, the
// prediction is replaced and any hit detected against it is resubmitted
// under the canonical id. Damage is never computed here: server HP always
// wins.
package reconcile

import (
	"time"

	"github.com/google/uuid"

	"quiz-arena/internal/game"
)

// DefaultWindow is how far apart a prediction and its echo may be in time
// and still be considered the same cast.
const DefaultWindow = time.Second

// Predicted is a client-local, unconfirmed spell. Its TempID is client
// generated and never leaves the client.
type Predicted struct {
	TempID    string
	CasterID  string
	Type      game.SpellType
	Direction game.Direction
	CreatedAt time.Time
}

// HitClaim is a spell-hit the client should submit to the server, keyed by
// the canonical spell id.
type HitClaim struct {
	SpellID     string
	HitPlayerID string
}

type pendingHit struct {
	hitPlayerID string
	detectedAt  time.Time
}

// Match returns the index of the predicted spell a canonical spell confirms,
// or -1. The match key is (caster, type, time proximity within window); the
// id cannot participate because it is unknown at prediction time. When more
// than one prediction qualifies, the closest in time wins.
func Match(pending []Predicted, confirmed game.Spell, window time.Duration) int {
	best := -1
	var bestDelta time.Duration
	for i, p := range pending {
		if p.CasterID != confirmed.CasterID || p.Type != confirmed.Type {
			continue
		}
		delta := confirmed.CreatedAt.Sub(p.CreatedAt)
		if delta < 0 {
			delta = -delta
		}
		if delta > window {
			continue
		}
		if best == -1 || delta < bestDelta {
			best = i
			bestDelta = delta
		}
	}
	return best
}

// Tracker owns the predicted-spell list and pending hits for one client in
// one match. It is not safe for concurrent use; a client drives it from a
// single loop.
type Tracker struct {
	window  time.Duration
	pending []Predicted
	hits    map[string]pendingHit
}

func NewTracker(window time.Duration) *Tracker {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Tracker{window: window, hits: map[string]pendingHit{}}
}

// Predict registers a locally cast spell and returns it for rendering.
func (t *Tracker) Predict(casterID string, typ game.SpellType, dir game.Direction, now time.Time) Predicted {
	p := Predicted{
		TempID:    uuid.NewString(),
		CasterID:  casterID,
		Type:      typ,
		Direction: dir,
		CreatedAt: now,
	}
	t.pending = append(t.pending, p)
	return p
}

// MarkHit records a locally detected collision against a still-unconfirmed
// spell. The claim is held until Confirm learns the canonical id.
func (t *Tracker) MarkHit(tempID, hitPlayerID string, now time.Time) bool {
	for _, p := range t.pending {
		if p.TempID == tempID {
			t.hits[tempID] = pendingHit{hitPlayerID: hitPlayerID, detectedAt: now}
			return true
		}
	}
	return false
}

// Confirm reconciles a canonical spell against the predictions. It returns
// the replaced prediction (nil when the spell was never predicted locally,
// e.g. the opponent's cast) and, if a hit was already detected against the
// prediction, the claim to resubmit under the canonical id.
func (t *Tracker) Confirm(confirmed game.Spell) (*Predicted, *HitClaim) {
	i := Match(t.pending, confirmed, t.window)
	if i < 0 {
		return nil, nil
	}
	matched := t.pending[i]
	t.pending = append(t.pending[:i], t.pending[i+1:]...)

	var claim *HitClaim
	if h, ok := t.hits[matched.TempID]; ok {
		delete(t.hits, matched.TempID)
		claim = &HitClaim{SpellID: confirmed.ID, HitPlayerID: h.hitPlayerID}
	}
	return &matched, claim
}

// GC drops predictions (and their pending hits) whose reconciliation window
// has expired, returning them so the client can stop rendering them.
func (t *Tracker) GC(now time.Time) []Predicted {
	var expired []Predicted
	kept := t.pending[:0]
	for _, p := range t.pending {
		if now.Sub(p.CreatedAt) > t.window {
			expired = append(expired, p)
			delete(t.hits, p.TempID)
			continue
		}
		kept = append(kept, p)
	}
	t.pending = kept
	return expired
}

// Pending returns the outstanding predictions, oldest first.
func (t *Tracker) Pending() []Predicted {
	out := make([]Predicted, len(t.pending))
	copy(out, t.pending)
	return out
}
