// duel-bot is a headless practice opponent. It joins a session, grinds the
// card phase with guesses, queues up and plays matches with the same
// predict-then-reconcile spell flow a real client uses.
package main

import (
	"encoding/json"
	"math/rand"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"quiz-arena/internal/config"
	"quiz-arena/internal/game"
	"quiz-arena/internal/logging"
	"quiz-arena/internal/protocol"
	"quiz-arena/internal/reconcile"
)

type bot struct {
	conn    *websocket.Conn
	cfg     config.BotConfig
	tracker *reconcile.Tracker

	matchID    string
	opponentID string
	opponentX  float64
	myX        float64
	inRound    bool
	lastCast   time.Time
	dueClaims  []dueClaim
}

type dueClaim struct {
	claim reconcile.HitClaim
	at    time.Time
}

func main() {
	logCfg, err := config.LoadLog()
	if err != nil {
		panic(err)
	}
	logging.Init(logCfg)
	cfg, err := config.LoadBot()
	if err != nil {
		log.Fatal().Err(err).Msg("load bot config failed")
	}

	conn, _, err := websocket.DefaultDialer.Dial(cfg.WSURL, nil)
	if err != nil {
		log.Fatal().Err(err).Str("url", cfg.WSURL).Msg("dial failed")
	}
	defer conn.Close()

	b := &bot{conn: conn, cfg: cfg, tracker: reconcile.NewTracker(reconcile.DefaultWindow)}
	b.send(map[string]any{
		"type":        protocol.MsgJoinSession,
		"sessionCode": cfg.SessionCode,
		"studentId":   cfg.StudentID,
		"nickname":    cfg.Nickname,
	})
	b.run()
}

func (b *bot) run() {
	ticker := time.NewTicker(300 * time.Millisecond)
	defer ticker.Stop()
	frames := make(chan map[string]any, 32)
	go func() {
		defer close(frames)
		for {
			_, msg, err := b.conn.ReadMessage()
			if err != nil {
				return
			}
			var frame map[string]any
			if err := json.Unmarshal(msg, &frame); err != nil {
				continue
			}
			frames <- frame
		}
	}()

	for {
		select {
		case frame, ok := <-frames:
			if !ok {
				return
			}
			if done := b.handle(frame); done {
				return
			}
		case <-ticker.C:
			b.tick()
		}
	}
}

func (b *bot) handle(frame map[string]any) bool {
	switch frame["type"] {
	case protocol.EvtCharacterSelection:
		b.pickCharacter(frame)
	case protocol.EvtCharacterSelected:
		if frame["studentId"] == b.cfg.StudentID {
			b.send(map[string]any{"type": protocol.MsgJoinLobby})
		}
	case protocol.EvtStartCardPhase:
		b.answerCards(frame)
	case protocol.EvtMatchFound:
		b.matchID, _ = frame["matchId"].(string)
		if opp, ok := frame["opponent"].(map[string]any); ok {
			b.opponentID, _ = opp["studentId"].(string)
		}
		b.inRound = false
		b.send(map[string]any{"type": protocol.MsgRoundReady, "matchId": b.matchID})
	case protocol.EvtRoundStart:
		b.inRound = true
		b.myX = 200
	case protocol.EvtRoundEnd:
		b.inRound = false
		b.send(map[string]any{"type": protocol.MsgRoundReady, "matchId": b.matchID})
	case protocol.EvtOpponentMove:
		b.opponentX, _ = frame["x"].(float64)
	case protocol.EvtSpellCast:
		b.reconcileCast(frame)
	case protocol.EvtMatchEnd:
		b.inRound = false
		if frame["winnerId"] != b.cfg.StudentID {
			log.Info().Msg("eliminated, leaving")
			return true
		}
	case protocol.EvtTournamentEnd:
		log.Info().Any("winner", frame["winnerId"]).Msg("tournament over")
		return true
	case protocol.EvtError:
		log.Warn().Any("message", frame["message"]).Msg("server rejected action")
	}
	return false
}

func (b *bot) pickCharacter(frame map[string]any) {
	taken, _ := frame["taken"].(map[string]any)
	chars, _ := frame["characters"].([]any)
	for _, raw := range chars {
		c, _ := raw.(string)
		if _, used := taken[c]; !used && c != "" {
			b.send(map[string]any{"type": protocol.MsgCharacterSelected, "character": c})
			return
		}
	}
}

func (b *bot) answerCards(frame map[string]any) {
	questions, _ := frame["questions"].([]any)
	for _, raw := range questions {
		q, _ := raw.(map[string]any)
		id, _ := q["id"].(string)
		options, _ := q["options"].([]any)
		if id == "" || len(options) == 0 {
			continue
		}
		b.send(map[string]any{
			"type":       protocol.MsgCardAnswered,
			"questionId": id,
			"option":     rand.Intn(len(options)),
		})
	}
}

// tick drives movement and spellcasting while a round is live.
func (b *bot) tick() {
	if !b.inRound || b.matchID == "" {
		return
	}
	now := time.Now()
	b.tracker.GC(now)
	b.flushClaims(now)

	b.myX += float64(rand.Intn(120) - 60)
	if b.myX < 0 {
		b.myX = 0
	}
	if b.myX > 800 {
		b.myX = 800
	}
	b.send(map[string]any{"type": protocol.MsgPlayerMove, "matchId": b.matchID, "x": b.myX})

	if now.Sub(b.lastCast) < 600*time.Millisecond {
		return
	}
	b.lastCast = now
	dir := game.DirRight
	if b.opponentX < b.myX {
		dir = game.DirLeft
	}
	types := []game.SpellType{game.SpellFire, game.SpellIce, game.SpellBolt}
	typ := types[rand.Intn(len(types))]

	// Predict locally first; the canonical id arrives with the echoed
	// spell-cast and is matched by (caster, type, time proximity).
	predicted := b.tracker.Predict(b.cfg.StudentID, typ, dir, now)
	b.send(map[string]any{
		"type":      protocol.MsgSpellCast,
		"matchId":   b.matchID,
		"spellType": string(typ),
		"direction": string(dir),
	})
	// The bot has no physics, so it optimistically records a collision on
	// its own prediction; the claim is resubmitted once the id is known.
	if b.opponentID != "" {
		b.tracker.MarkHit(predicted.TempID, b.opponentID, now)
	}
}

func (b *bot) reconcileCast(frame map[string]any) {
	raw, err := json.Marshal(frame["spell"])
	if err != nil {
		return
	}
	var spell game.Spell
	if err := json.Unmarshal(raw, &spell); err != nil {
		return
	}
	if spell.CasterID != b.cfg.StudentID {
		return
	}
	_, claim := b.tracker.Confirm(spell)
	if claim == nil {
		return
	}
	// Hold the claim for the projectile's travel time so the authoritative
	// plausibility check can accept it.
	distance := b.opponentX - b.myX
	if distance < 0 {
		distance = -distance
	}
	delay := time.Duration(distance / 300 * float64(time.Second))
	b.dueClaims = append(b.dueClaims, dueClaim{claim: *claim, at: time.Now().Add(delay)})
}

func (b *bot) flushClaims(now time.Time) {
	kept := b.dueClaims[:0]
	for _, d := range b.dueClaims {
		if now.Before(d.at) {
			kept = append(kept, d)
			continue
		}
		b.send(map[string]any{
			"type":        protocol.MsgSpellHit,
			"matchId":     b.matchID,
			"spellId":     d.claim.SpellID,
			"hitPlayerId": d.claim.HitPlayerID,
		})
	}
	b.dueClaims = kept
}

func (b *bot) send(v map[string]any) {
	if err := b.conn.WriteJSON(v); err != nil {
		log.Error().Err(err).Msg("write failed")
	}
}
