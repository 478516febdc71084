package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/reversus-game/reversus-server-go/internal/game"
	"github.com/reversus-game/reversus-server-go/internal/game/cards"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = (pongWait * 9) / 10
	sendBuffer   = 64
)

// Message types on the websocket.
const (
	MsgCreateMatch  = "create_match"
	MsgMatchCreated = "match_created"
	MsgJoin         = "join"
	MsgJoined       = "joined"
	MsgWatch        = "watch"
	MsgAction       = "action"
	MsgActionResult = "action_result"
	MsgSnapshot     = "snapshot"
	MsgError        = "error"
)

// WSMessage is the envelope for every websocket frame.
type WSMessage struct {
	Type    string            `json:"type"`
	MatchID string            `json:"match_id,omitempty"`
	SeatID  string            `json:"seat_id,omitempty"`
	Token   string            `json:"token,omitempty"`
	Config  *game.MatchConfig `json:"config,omitempty"`
	Action  *game.Action      `json:"action,omitempty"`
	Code    string            `json:"code,omitempty"`
	Error   string            `json:"error,omitempty"`
	Data    any               `json:"data,omitempty"`
}

// WebSocketServer speaks the match protocol over gorilla websockets.
type WebSocketServer struct {
	hub             *Hub
	logger          *zap.Logger
	rules           game.Rules
	maxMessageBytes int64
	upgrader        websocket.Upgrader
}

// NewWebSocketServer creates the handler. rules fill in match configs that
// arrive without their own tuning.
func NewWebSocketServer(hub *Hub, rules game.Rules, maxMessageBytes int64, logger *zap.Logger) *WebSocketServer {
	return &WebSocketServer{
		hub:             hub,
		logger:          logger,
		rules:           rules,
		maxMessageBytes: maxMessageBytes,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Handler returns the HTTP routes: /ws for the protocol, /healthz for health checks.
func (s *WebSocketServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/ws", s)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// ServeHTTP upgrades the connection and starts the client pumps.
func (s *WebSocketServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		if s.logger != nil {
			s.logger.Debug("websocket upgrade failed", zap.Error(err))
		}
		return
	}
	c := &client{
		server: s,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
	}
	go c.writePump()
	c.readPump()
}

// client is one websocket connection. It is bound to at most one seat of one
// match; actions it sends are always attributed to that seat.
type client struct {
	server *WebSocketServer
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}

	mu      sync.Mutex
	matchID string
	seatID  string
	unsub   func()
}

func (c *client) readPump() {
	defer c.close()

	if c.server.maxMessageBytes > 0 {
		c.conn.SetReadLimit(c.server.maxMessageBytes)
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) && c.server.logger != nil {
				c.server.logger.Debug("websocket read error", zap.Error(err))
			}
			return
		}
		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.reply(WSMessage{Type: MsgError, Code: "bad_message", Error: err.Error()})
			continue
		}
		c.handle(msg)
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *client) close() {
	c.mu.Lock()
	unsub := c.unsub
	c.unsub = nil
	c.mu.Unlock()
	if unsub != nil {
		unsub()
	}
	close(c.done)
}

func (c *client) reply(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		if c.server.logger != nil {
			c.server.logger.Error("failed to encode message", zap.String("type", msg.Type), zap.Error(err))
		}
		return
	}
	select {
	case c.send <- data:
	case <-c.done:
	}
}

func (c *client) fail(code string, err error) {
	c.reply(WSMessage{Type: MsgError, Code: code, Error: err.Error()})
}

func (c *client) handle(msg WSMessage) {
	ctx := context.Background()
	switch msg.Type {
	case MsgCreateMatch:
		if msg.Config == nil {
			c.fail("bad_message", errors.New("config is required"))
			return
		}
		cfg := *msg.Config
		if cfg.Rules == (game.Rules{}) {
			cfg.Rules = c.server.rules
		}
		ticket, err := c.server.hub.CreateMatch(ctx, cfg)
		if err != nil {
			c.fail("create_failed", err)
			return
		}
		c.reply(WSMessage{Type: MsgMatchCreated, MatchID: ticket.MatchID, Data: ticket})

	case MsgJoin:
		if err := c.server.hub.ClaimSeat(msg.MatchID, msg.SeatID, msg.Token); err != nil {
			c.fail("join_failed", err)
			return
		}
		if err := c.follow(msg.MatchID, msg.SeatID); err != nil {
			c.fail("join_failed", err)
			return
		}
		c.reply(WSMessage{Type: MsgJoined, MatchID: msg.MatchID, SeatID: msg.SeatID})
		c.pushSnapshot(msg.MatchID, msg.SeatID)

	case MsgWatch:
		if err := c.follow(msg.MatchID, ""); err != nil {
			c.fail("watch_failed", err)
			return
		}
		c.pushSnapshot(msg.MatchID, "")

	case MsgAction:
		c.mu.Lock()
		matchID, seatID := c.matchID, c.seatID
		c.mu.Unlock()
		if seatID == "" {
			c.fail("not_seated", errors.New("join a seat before acting"))
			return
		}
		if msg.Action == nil {
			c.fail("bad_message", errors.New("action is required"))
			return
		}
		action := *msg.Action
		action.PlayerID = seatID
		switch action.Type {
		case game.ActionTimeout:
			c.fail("bad_message", errors.New("timeouts are issued by the server"))
			return
		case game.ActionFieldEffect:
			// field effects come from the board and boss scripts, never a seat
			c.fail("bad_message", errors.New("field effects are bound by the server"))
			return
		}
		res, err := c.server.hub.Submit(ctx, matchID, action)
		if err != nil {
			var rej *game.RejectionError
			if errors.As(err, &rej) {
				c.reply(WSMessage{Type: MsgError, MatchID: matchID, Code: rej.Code, Error: rej.Message})
				return
			}
			c.fail("action_failed", err)
			return
		}
		c.reply(WSMessage{Type: MsgActionResult, MatchID: matchID, Data: res})

	default:
		c.fail("bad_message", errors.New("unknown message type "+msg.Type))
	}
}

// follow binds the connection to a match, replacing any earlier binding.
func (c *client) follow(matchID, seatID string) error {
	updates, cancel, err := c.server.hub.Subscribe(matchID)
	if err != nil {
		return err
	}
	c.mu.Lock()
	prev := c.unsub
	c.matchID, c.seatID, c.unsub = matchID, seatID, cancel
	c.mu.Unlock()
	if prev != nil {
		prev()
	}

	go func() {
		for u := range updates {
			c.reply(WSMessage{Type: MsgSnapshot, MatchID: matchID, Data: Redact(u.Snapshot, seatID)})
		}
	}()
	return nil
}

func (c *client) pushSnapshot(matchID, seatID string) {
	s, err := c.server.hub.Snapshot(matchID)
	if err != nil {
		c.fail("snapshot_failed", err)
		return
	}
	c.reply(WSMessage{Type: MsgSnapshot, MatchID: matchID, Data: Redact(s, seatID)})
}

// Redact returns a copy of s as seen from seatID: other players' hands and
// both draw piles are hidden. An empty seatID hides every hand.
func Redact(s *game.Snapshot, seatID string) *game.Snapshot {
	out := *s
	out.Players = make([]game.Player, len(s.Players))
	for i, p := range s.Players {
		if p.ID != seatID {
			p.Hand = hideCards(p.Hand)
		}
		out.Players[i] = p
	}
	out.ValueDeck.Draw = hidePile(s.ValueDeck.Draw)
	out.EffectDeck.Draw = hidePile(s.EffectDeck.Draw)
	return &out
}

func hideCards(hand []*cards.Card) []*cards.Card {
	out := make([]*cards.Card, len(hand))
	for i, c := range hand {
		out[i] = &cards.Card{ID: "hidden", Kind: c.Kind}
	}
	return out
}

func hidePile(pile []cards.Card) []cards.Card {
	out := make([]cards.Card, len(pile))
	for i, c := range pile {
		out[i] = cards.Card{ID: "hidden", Kind: c.Kind}
	}
	return out
}
