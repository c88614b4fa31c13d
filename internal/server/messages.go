package server

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Client -> server message types.
const (
	MsgPing     = "ping"
	MsgReady    = "ready"
	MsgRollDice = "roll_dice"
	MsgDrawCard = "draw_card"
	MsgPlayCard = "play_card"
	MsgChat     = "chat"
	MsgLeave    = "leave"
	MsgRelay    = "relay"
)

// Server -> client message types not covered by game events.
const (
	MsgConnectionEstablished = "connection_established"
	MsgPlayerConnected       = "player_connected"
	MsgPlayerDisconnected    = "player_disconnected"
	MsgGameUpdated           = "game_updated"
	MsgPong                  = "pong"
	MsgError                 = "error"
	MsgDisconnectedElsewhere = "disconnected_elsewhere"
)

type ClientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type ServerMessage struct {
	Type      string    `json:"type"`
	GameID    uuid.UUID `json:"gameId"`
	Game      *GameView `json:"game,omitempty"`
	Payload   any       `json:"payload,omitempty"`
	Timestamp int64     `json:"timestamp"`
}

func newServerMessage(msgType string, gameID uuid.UUID, payload any) ServerMessage {
	return ServerMessage{
		Type:      msgType,
		GameID:    gameID,
		Payload:   payload,
		Timestamp: time.Now().UnixMilli(),
	}
}
