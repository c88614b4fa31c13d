package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"climb-server/internal/climb"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const teardownTimeout = 5 * time.Second

// wsSession adapts a websocket connection to Session.
type wsSession struct {
	id   string
	conn *websocket.Conn
}

func (ws *wsSession) Send(ctx context.Context, data []byte) error {
	return ws.conn.Write(ctx, websocket.MessageText, data)
}

func (ws *wsSession) Close(reason string) error {
	return ws.conn.Close(websocket.StatusNormalClosure, reason)
}

// connection is one authenticated player socket inside a game room.
type connection struct {
	session *wsSession
	gameID  uuid.UUID
	user    climb.User
	limiter *rate.Limiter
}

func (s *Server) websocketHandler(w http.ResponseWriter, r *http.Request) {
	gameID, err := pathUUID(r, "gameId")
	if err != nil {
		writeError(w, err)
		return
	}

	token := r.URL.Query().Get("token")
	if token == "" {
		token = bearerToken(r)
	}
	user, err := s.auth.Verify(r.Context(), token)
	if err != nil {
		writeError(w, err)
		return
	}

	snap, err := s.games.Get(r.Context(), gameID)
	if err != nil {
		writeError(w, err)
		return
	}
	var playerID uuid.UUID
	for _, p := range snap.Players {
		if p.UserID == user.ID {
			playerID = p.ID
		}
	}
	if playerID == uuid.Nil {
		writeError(w, climb.ErrNotInGame)
		return
	}

	origins := s.cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	socket, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: origins})
	if err != nil {
		log.Printf("Failed to accept websocket for user %s: %v", user.ID, err)
		return
	}
	defer socket.Close(websocket.StatusGoingAway, "Server closing")

	ctx := r.Context()
	c := &connection{
		session: &wsSession{id: uuid.New().String(), conn: socket},
		gameID:  gameID,
		user:    user,
		limiter: rate.NewLimiter(rate.Limit(s.cfg.WSRate), s.cfg.WSBurst),
	}
	log.Printf("New connection %s: user %s in game %s", c.session.id, user.Username, gameID)

	if previous := s.registry.Register(gameID, user.ID, c.session); previous != nil {
		go s.replaceSession(gameID, previous)
	}
	defer s.disconnect(c)

	s.sendMessage(ctx, c, newServerMessage(MsgConnectionEstablished, gameID, ConnectionEstablishedPayload{
		UserID:   user.ID,
		PlayerID: playerID,
		Username: user.Username,
	}))
	s.publishPresence(ctx, c, MsgPlayerConnected)
	if err := s.games.SetConnected(ctx, gameID, user.ID, true); err != nil {
		log.Printf("Failed to mark user %s connected: %v", user.ID, err)
	}

	for {
		msgType, data, err := socket.Read(ctx)
		if err != nil {
			log.Printf("Connection %s read error: %v", c.session.id, err)
			return
		}

		if msgType != websocket.MessageText {
			log.Printf("Non-text input from %s", c.session.id)
			continue
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.sendError(ctx, c, "INVALID_JSON", "Invalid JSON")
			continue
		}
		if err := ValidateMessageType(msg.Type); err != nil {
			s.sendError(ctx, c, "INVALID_MESSAGE_TYPE", fmt.Sprintf("Unknown message type: %s", msg.Type))
			continue
		}
		if !c.limiter.Allow() {
			s.sendError(ctx, c, "RATE_LIMITED", "Too many messages. Slow down.")
			continue
		}

		if done := s.handleMessage(ctx, c, msg); done {
			return
		}
	}
}

// handleMessage runs one client message and reports whether the connection
// should close.
func (s *Server) handleMessage(ctx context.Context, c *connection, msg ClientMessage) bool {
	var err error
	switch msg.Type {
	case MsgPing:
		s.sendMessage(ctx, c, newServerMessage(MsgPong, c.gameID, struct{}{}))

	case MsgReady:
		_, err = s.games.MarkReady(ctx, c.gameID, c.user.ID)

	case MsgRollDice:
		_, err = s.games.RollDice(ctx, c.gameID, c.user.ID)

	case MsgDrawCard:
		_, err = s.games.Draw(ctx, c.gameID, c.user.ID)

	case MsgPlayCard:
		var p PlayCardPayload
		if err = decodePayload(msg.Payload, &p); err == nil {
			_, err = s.games.Play(ctx, c.gameID, c.user.ID, p.CardID, p.TargetPlayerID)
		}

	case MsgChat:
		var p ChatPayload
		if err = decodePayload(msg.Payload, &p); err == nil {
			_, err = s.games.SendChat(ctx, c.gameID, c.user.ID, p.Message)
		}

	case MsgLeave:
		if _, err = s.games.Leave(ctx, c.gameID, c.user.ID); err == nil {
			return true
		}

	case MsgRelay:
		s.relay(ctx, c, msg.Payload)
	}

	if err != nil {
		status, e := errorMessage(err)
		if status == http.StatusInternalServerError {
			log.Printf("Message %s from %s failed: %v", msg.Type, c.session.id, err)
		}
		s.sendError(ctx, c, e.Code, e.Message)
	}
	return false
}

func decodePayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return climb.Validation("Missing payload")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return climb.Validation("Invalid payload")
	}
	return nil
}

// relay forwards an opaque payload to the rest of the room.
func (s *Server) relay(ctx context.Context, c *connection, payload json.RawMessage) {
	data, err := json.Marshal(newServerMessage(MsgRelay, c.gameID, RelayPayload{From: c.user.ID, Data: payload}))
	if err != nil {
		log.Printf("Failed to marshal relay from %s: %v", c.session.id, err)
		return
	}
	s.registry.Broadcast(ctx, c.gameID, data, c.user.ID)
}

// replaceSession tells the old socket it was superseded and closes it.
func (s *Server) replaceSession(gameID uuid.UUID, previous Session) {
	data, err := json.Marshal(newServerMessage(MsgDisconnectedElsewhere, gameID, ErrorMessage{
		Code:    "DISCONNECTED_ELSEWHERE",
		Message: "Connected from another device",
	}))
	if err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), defaultWriteTimeout)
		if err := previous.Send(ctx, data); err != nil {
			log.Printf("Failed to notify replaced session: %v", err)
		}
		cancel()
	}
	if err := previous.Close("disconnected elsewhere"); err != nil {
		log.Printf("Failed to close replaced session: %v", err)
	}
}

// disconnect tears the connection down unless a newer one replaced it.
func (s *Server) disconnect(c *connection) {
	log.Printf("Connection closed: %s", c.session.id)
	if !s.registry.UnregisterSession(c.gameID, c.user.ID, c.session) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
	defer cancel()

	s.publishPresence(ctx, c, MsgPlayerDisconnected)
	err := s.games.SetConnected(ctx, c.gameID, c.user.ID, false)
	if err != nil && !errors.Is(err, climb.ErrNotInGame) && !errors.Is(err, climb.ErrGameNotFound) {
		log.Printf("Error marking user %s disconnected: %v", c.user.ID, err)
	}
}

func (s *Server) publishPresence(ctx context.Context, c *connection, msgType string) {
	data, err := json.Marshal(newServerMessage(msgType, c.gameID, PlayerPresencePayload{
		UserID:   c.user.ID,
		Username: c.user.Username,
	}))
	if err != nil {
		log.Printf("Failed to marshal %s: %v", msgType, err)
		return
	}
	s.registry.Broadcast(ctx, c.gameID, data, c.user.ID)
}

func (s *Server) sendMessage(ctx context.Context, c *connection, msg ServerMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Failed to marshal %s: %v", msg.Type, err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, defaultWriteTimeout)
	defer cancel()
	if err := c.session.Send(ctx, data); err != nil {
		log.Printf("Failed to send %s to %s: %v", msg.Type, c.session.id, err)
	}
}

func (s *Server) sendError(ctx context.Context, c *connection, code, message string) {
	s.sendMessage(ctx, c, newServerMessage(MsgError, c.gameID, ErrorMessage{Code: code, Message: message}))
}
