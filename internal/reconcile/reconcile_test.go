package reconcile

import (
	"testing"
	"time"

	"quiz-arena/internal/game"
)

func TestMatchKey(t *testing.T) {
	base := time.Now()
	pending := []Predicted{
		{TempID: "t1", CasterID: "s-1", Type: game.SpellFire, CreatedAt: base},
		{TempID: "t2", CasterID: "s-1", Type: game.SpellIce, CreatedAt: base},
		{TempID: "t3", CasterID: "s-2", Type: game.SpellFire, CreatedAt: base},
	}

	cases := []struct {
		name      string
		confirmed game.Spell
		want      int
	}{
		{
			name:      "same caster and type within window",
			confirmed: game.Spell{ID: "c1", CasterID: "s-1", Type: game.SpellFire, CreatedAt: base.Add(200 * time.Millisecond)},
			want:      0,
		},
		{
			name:      "different type never matches",
			confirmed: game.Spell{ID: "c2", CasterID: "s-1", Type: game.SpellBolt, CreatedAt: base},
			want:      -1,
		},
		{
			name:      "different caster never matches",
			confirmed: game.Spell{ID: "c3", CasterID: "s-3", Type: game.SpellFire, CreatedAt: base},
			want:      -1,
		},
		{
			name:      "outside the window",
			confirmed: game.Spell{ID: "c4", CasterID: "s-1", Type: game.SpellFire, CreatedAt: base.Add(1500 * time.Millisecond)},
			want:      -1,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Match(pending, tc.confirmed, DefaultWindow); got != tc.want {
				t.Fatalf("Match = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestMatchPrefersClosestInTime(t *testing.T) {
	base := time.Now()
	pending := []Predicted{
		{TempID: "t1", CasterID: "s-1", Type: game.SpellFire, CreatedAt: base},
		{TempID: "t2", CasterID: "s-1", Type: game.SpellFire, CreatedAt: base.Add(600 * time.Millisecond)},
	}
	confirmed := game.Spell{ID: "c1", CasterID: "s-1", Type: game.SpellFire, CreatedAt: base.Add(500 * time.Millisecond)}
	if got := Match(pending, confirmed, DefaultWindow); got != 1 {
		t.Fatalf("Match = %d, want 1 (closest in time)", got)
	}
}

func TestConfirmReplacesPredictionAndResubmitsHit(t *testing.T) {
	now := time.Now()
	tr := NewTracker(0)

	p := tr.Predict("s-1", game.SpellFire, game.DirRight, now)
	if p.TempID == "" {
		t.Fatal("expected a temp id")
	}
	// Local collision detected before the server echo arrives.
	if !tr.MarkHit(p.TempID, "s-2", now.Add(100*time.Millisecond)) {
		t.Fatal("MarkHit should find the prediction")
	}

	confirmed := game.Spell{ID: "spell_1", CasterID: "s-1", Type: game.SpellFire, CreatedAt: now.Add(150 * time.Millisecond)}
	matched, claim := tr.Confirm(confirmed)
	if matched == nil || matched.TempID != p.TempID {
		t.Fatalf("expected prediction %q replaced, got %+v", p.TempID, matched)
	}
	if claim == nil || claim.SpellID != "spell_1" || claim.HitPlayerID != "s-2" {
		t.Fatalf("expected hit resubmitted with canonical id, got %+v", claim)
	}
	if len(tr.Pending()) != 0 {
		t.Fatalf("prediction should be gone, have %d", len(tr.Pending()))
	}

	// The claim is one-shot.
	if matched, claim := tr.Confirm(confirmed); matched != nil || claim != nil {
		t.Fatalf("second confirm should be a no-op, got %+v %+v", matched, claim)
	}
}

func TestConfirmOpponentSpellIsRenderedFresh(t *testing.T) {
	tr := NewTracker(0)
	confirmed := game.Spell{ID: "spell_9", CasterID: "s-2", Type: game.SpellIce, CreatedAt: time.Now()}
	matched, claim := tr.Confirm(confirmed)
	if matched != nil || claim != nil {
		t.Fatalf("opponent cast must not consume a prediction: %+v %+v", matched, claim)
	}
}

func TestGCDropsExpiredPredictionsAndHits(t *testing.T) {
	now := time.Now()
	tr := NewTracker(0)
	p := tr.Predict("s-1", game.SpellFire, game.DirLeft, now)
	tr.MarkHit(p.TempID, "s-2", now)
	fresh := tr.Predict("s-1", game.SpellIce, game.DirLeft, now.Add(900*time.Millisecond))

	expired := tr.GC(now.Add(1100 * time.Millisecond))
	if len(expired) != 1 || expired[0].TempID != p.TempID {
		t.Fatalf("expected %q expired, got %+v", p.TempID, expired)
	}
	left := tr.Pending()
	if len(left) != 1 || left[0].TempID != fresh.TempID {
		t.Fatalf("expected %q kept, got %+v", fresh.TempID, left)
	}

	// The dropped prediction's hit claim must not resurface later.
	confirmed := game.Spell{ID: "spell_1", CasterID: "s-1", Type: game.SpellFire, CreatedAt: now.Add(1200 * time.Millisecond)}
	if matched, claim := tr.Confirm(confirmed); matched != nil || claim != nil {
		t.Fatalf("expired prediction must not match, got %+v %+v", matched, claim)
	}
}
