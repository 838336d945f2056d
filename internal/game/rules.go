package game

import (
	"errors"
	"time"
)

var ErrRoundNotStarted = errors.New("round_not_started")
var ErrUnknownSpell = errors.New("unknown_spell")
var ErrSpellCooldown = errors.New("spell_cooldown")
var ErrStaleSpell = errors.New("stale_spell")
var ErrInvalidTarget = errors.New("invalid_target")
var ErrImplausibleHit = errors.New("implausible_hit")

// ValidateCast checks a cast attempt against the caster's cooldown. The
// coordinator has already checked the round is in progress.
func ValidateCast(caster *PlayerState, typ SpellType, at time.Time, rules Rules) error {
	if !ValidSpellType(typ) {
		return ErrUnknownSpell
	}
	if !caster.LastCastAt.IsZero() && at.Sub(caster.LastCastAt) < rules.SpellCooldown {
		return ErrSpellCooldown
	}
	return nil
}

// ValidateHit is the authoritative plausibility check for a claimed spell hit.
// The client's own overlap test is never trusted: the spell must still be
// live, the target must be the caster's opponent, and projecting the spell
// from its origin at SpellSpeed must place it within HitTolerance of the
// target's last reported position.
func ValidateHit(sp Spell, caster, target *PlayerState, at time.Time, rules Rules) error {
	if target.StudentID == sp.CasterID {
		return ErrInvalidTarget
	}
	age := at.Sub(sp.CreatedAt)
	if age < 0 {
		age = 0
	}
	if age > rules.SpellTTL {
		return ErrStaleSpell
	}
	projected := sp.Origin + sp.Direction.sign()*rules.SpellSpeed*age.Seconds()
	if projected < -rules.HitTolerance || projected > rules.ArenaWidth+rules.HitTolerance {
		return ErrStaleSpell
	}
	if diff := projected - target.X; diff > rules.HitTolerance || diff < -rules.HitTolerance {
		return ErrImplausibleHit
	}
	return nil
}

// ApplyHit deducts the caster's damage stat from the target. HP never goes
// below zero and never increases.
func ApplyHit(caster, target *PlayerState) {
	dmg := caster.Damage
	if dmg > target.HP {
		dmg = target.HP
	}
	target.HP -= dmg
	caster.DamageDealt += dmg
	target.DamageReceived += dmg
}
