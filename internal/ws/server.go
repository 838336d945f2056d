// Package ws is the connection gateway: it upgrades sockets, decodes the
// JSON envelope and routes frames into the session registry. One goroutine
// reads per connection, one writes; all writes to a socket go through the
// client's send channel so frame order is preserved.
package ws

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"quiz-arena/internal/protocol"
	"quiz-arena/internal/session"
)

type Client struct {
	conn      *websocket.Conn
	send      chan []byte
	code      string
	studentID string
}

type Server struct {
	registry *session.Registry
	upgrader websocket.Upgrader
	mu       sync.Mutex
	clients  map[string]*Client // sessionCode+"/"+studentID
}

func NewServer(registry *session.Registry) *Server {
	s := &Server{
		registry: registry,
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		clients:  map[string]*Client{},
	}
	registry.SetSender(s)
	return s
}

func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	client := &Client{conn: conn, send: make(chan []byte, 32)}

	go s.writeLoop(client)
	s.readLoop(client)
}

func (s *Server) readLoop(c *Client) {
	defer func() {
		s.unregister(c)
		_ = c.conn.Close()
	}()

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var base struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(msg, &base); err != nil {
			s.sendError(c, "malformed_message")
			continue
		}
		if base.Type == protocol.MsgJoinSession {
			s.handleJoin(c, msg)
			continue
		}
		if c.code == "" {
			s.sendError(c, "join_required")
			continue
		}
		s.dispatch(c, base.Type, msg)
	}
}

func (s *Server) writeLoop(c *Client) {
	for msg := range c.send {
		_ = c.conn.WriteMessage(websocket.TextMessage, msg)
	}
}

func (s *Server) handleJoin(c *Client, msg []byte) {
	var join protocol.JoinSession
	if err := json.Unmarshal(msg, &join); err != nil || join.SessionCode == "" || join.StudentID == "" {
		s.sendError(c, "malformed_message")
		return
	}
	// One identity per socket. Rebinding would leave the old clients map
	// entry pointing at this connection.
	if c.code != "" && (c.code != join.SessionCode || c.studentID != join.StudentID) {
		s.sendError(c, "already_joined")
		return
	}
	sess, err := s.registry.Get(join.SessionCode)
	if err != nil {
		s.sendError(c, err.Error())
		return
	}
	s.register(c, join.SessionCode, join.StudentID)
	if err := sess.Join(join.StudentID, join.Nickname); err != nil {
		s.sendError(c, err.Error())
	}
}

func (s *Server) dispatch(c *Client, msgType string, msg []byte) {
	sess, err := s.registry.Get(c.code)
	if err != nil {
		s.sendError(c, err.Error())
		return
	}

	switch msgType {
	case protocol.MsgCharacterSelected:
		var m protocol.CharacterSelected
		if json.Unmarshal(msg, &m) == nil {
			err = sess.CharacterSelected(c.studentID, m.Character)
		}
	case protocol.MsgJoinLobby:
		err = sess.JoinLobby(c.studentID)
	case protocol.MsgCardAnswered:
		var m protocol.CardAnswered
		if json.Unmarshal(msg, &m) == nil {
			err = sess.CardAnswered(c.studentID, m.QuestionID, m.Option)
		}
	case protocol.MsgEnterQueue:
		err = sess.EnterQueue(c.studentID)
	case protocol.MsgRoundReady:
		var m protocol.RoundReady
		if json.Unmarshal(msg, &m) == nil {
			err = sess.RoundReady(c.studentID, m.MatchID)
		}
	case protocol.MsgPlayerMove:
		var m protocol.PlayerMove
		if json.Unmarshal(msg, &m) == nil {
			err = sess.PlayerMove(c.studentID, m.MatchID, m.X)
		}
	case protocol.MsgSpellCast:
		var m protocol.SpellCast
		if json.Unmarshal(msg, &m) == nil {
			err = sess.SpellCast(c.studentID, m.MatchID, m.SpellType, m.Direction)
		}
	case protocol.MsgSpellHit:
		var m protocol.SpellHit
		if json.Unmarshal(msg, &m) == nil {
			err = sess.SpellHit(c.studentID, m.MatchID, m.SpellID, m.HitPlayerID)
		}
	default:
		s.sendError(c, "unknown_message_type")
		return
	}
	if err != nil {
		s.sendError(c, err.Error())
	}
}

// register binds the connection to a student. A second socket for the same
// student replaces the first; the stale one is closed so the reconnect path
// in the session sees a single live connection.
func (s *Server) register(c *Client, code, studentID string) {
	key := code + "/" + studentID
	s.mu.Lock()
	if old := s.clients[key]; old != nil && old != c {
		safeClose(old.send)
		_ = old.conn.Close()
	}
	c.code = code
	c.studentID = studentID
	s.clients[key] = c
	s.mu.Unlock()
}

func (s *Server) unregister(c *Client) {
	if c.code == "" {
		safeClose(c.send)
		return
	}
	key := c.code + "/" + c.studentID
	current := false
	s.mu.Lock()
	if s.clients[key] == c {
		delete(s.clients, key)
		current = true
	}
	s.mu.Unlock()
	safeClose(c.send)

	if !current {
		return
	}
	if sess, err := s.registry.Get(c.code); err == nil {
		sess.Disconnect(c.studentID)
	}
}

// Send implements session.Sender. Frames to a student with no live socket
// are dropped; the session replays state on reconnect.
func (s *Server) Send(code, studentID, event string, payload any) {
	s.mu.Lock()
	c := s.clients[code+"/"+studentID]
	s.mu.Unlock()
	if c == nil {
		return
	}
	msg, err := encode(event, payload)
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("encode failed")
		return
	}
	safeSend(c.send, msg)
}

func (s *Server) sendError(c *Client, message string) {
	msg, _ := encode(protocol.EvtError, protocol.ErrorMsg{Message: message})
	safeSend(c.send, msg)
}

// encode flattens the payload and injects the "type" discriminator.
func encode(event string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	m := map[string]any{}
	if len(raw) > 0 && raw[0] == '{' {
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
	}
	m["type"] = event
	return json.Marshal(m)
}

func safeClose(ch chan []byte) {
	defer func() {
		_ = recover()
	}()
	close(ch)
}

// safeSend never blocks: a client that stopped draining its buffer loses
// frames instead of stalling the session that is broadcasting.
func safeSend(ch chan []byte, msg []byte) {
	defer func() {
		_ = recover()
	}()
	select {
	case ch <- msg:
	default:
	}
}
