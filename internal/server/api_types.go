package server

import (
	"encoding/json"
	"time"

	"climb-server/internal/climb"
	"climb-server/internal/game"

	"github.com/google/uuid"
)

// ============================================================================
// ERROR RESPONSES
// ============================================================================
// tygo:generate
type ErrorMessage struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ============================================================================
// USERS
// ============================================================================
// tygo:generate
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	DeviceID string `json:"deviceId"`
}

// tygo:generate
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	DeviceID string `json:"deviceId"`
}

// tygo:generate
type UserView struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// tygo:generate
type AuthResponse struct {
	Token string   `json:"token"`
	User  UserView `json:"user"`
}

func newUserView(u climb.User) UserView {
	return UserView{ID: u.ID, Username: u.Username, Email: u.Email, CreatedAt: u.CreatedAt}
}

// ============================================================================
// GAMES
// ============================================================================
// tygo:generate
type CreateGameRequest struct {
	MaxPlayers int   `json:"maxPlayers"`
	IsPublic   *bool `json:"isPublic"`
}

// JoinGameRequest joins by code. An empty code falls back to public matchmaking.
// tygo:generate
type JoinGameRequest struct {
	Code string `json:"code"`
}

// tygo:generate
type PlayerView struct {
	PlayerID    uuid.UUID `json:"playerId"`
	UserID      uuid.UUID `json:"userId"`
	Username    string    `json:"username"`
	Character   int       `json:"character"`
	Position    int       `json:"position"`
	IsReady     bool      `json:"isReady"`
	Connected   bool      `json:"connected"`
	PlayerIndex int       `json:"playerIndex"`
	CardsInHand int       `json:"cardsInHand"`
}

// GameView is the public state of a room as pushed in game_updated.
// tygo:generate
type GameView struct {
	ID               uuid.UUID        `json:"id"`
	Code             string           `json:"code"`
	MaxPlayers       int              `json:"maxPlayers"`
	Status           climb.GameStatus `json:"status"`
	IsStarted        bool             `json:"isStarted"`
	IsPublic         bool             `json:"isPublic"`
	CurrentTurnIndex int              `json:"currentTurnIndex"`
	BoardSize        int              `json:"boardSize"`
	WinnerPlayerID   *uuid.UUID       `json:"winnerPlayerId"`
	Players          []PlayerView     `json:"players"`
}

func newGameView(snap game.Snapshot) GameView {
	g := snap.Game
	view := GameView{
		ID:               g.ID,
		Code:             g.Code,
		MaxPlayers:       g.MaxPlayers,
		Status:           g.Status,
		IsStarted:        g.IsStarted,
		IsPublic:         g.IsPublic,
		CurrentTurnIndex: g.CurrentTurnIndex,
		BoardSize:        g.BoardSize,
		WinnerPlayerID:   g.WinnerPlayerID,
		Players:          make([]PlayerView, 0, len(snap.Players)),
	}
	for _, p := range snap.Players {
		view.Players = append(view.Players, PlayerView{
			PlayerID:    p.ID,
			UserID:      p.UserID,
			Username:    p.Username,
			Character:   p.Character,
			Position:    p.Position,
			IsReady:     p.IsReady,
			Connected:   p.Connected,
			PlayerIndex: p.PlayerIndex,
			CardsInHand: p.CardsInHand,
		})
	}
	return view
}

// tygo:generate
type GameResponse struct {
	Game    GameView `json:"game"`
	Created bool     `json:"created,omitempty"`
}

// tygo:generate
type GameSummary struct {
	ID          uuid.UUID        `json:"id"`
	Code        string           `json:"code"`
	Status      climb.GameStatus `json:"status"`
	MaxPlayers  int              `json:"maxPlayers"`
	PlayerCount int              `json:"playerCount,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
}

func newGameSummary(g climb.Game, playerCount int) GameSummary {
	return GameSummary{
		ID:          g.ID,
		Code:        g.Code,
		Status:      g.Status,
		MaxPlayers:  g.MaxPlayers,
		PlayerCount: playerCount,
		CreatedAt:   g.CreatedAt,
	}
}

// tygo:generate
type ReadyResponse struct {
	Started bool `json:"started"`
}

// tygo:generate
type LeaveResponse struct {
	GameDeleted bool `json:"gameDeleted"`
}

// ============================================================================
// CARDS
// ============================================================================
// tygo:generate
type HandResponse struct {
	Cards []climb.CardDefinition `json:"cards"`
}

func newHandResponse(cardIDs []int) HandResponse {
	resp := HandResponse{Cards: make([]climb.CardDefinition, 0, len(cardIDs))}
	for _, id := range cardIDs {
		if def, err := climb.CardByID(id); err == nil {
			resp.Cards = append(resp.Cards, def)
		}
	}
	return resp
}

// tygo:generate
type DrawCardRequest struct {
	GameID uuid.UUID `json:"gameId"`
}

// tygo:generate
type PlayCardRequest struct {
	GameID         uuid.UUID  `json:"gameId"`
	CardID         int        `json:"cardId"`
	TargetPlayerID *uuid.UUID `json:"targetPlayerId"`
}

// PlayCardPayload is the play_card websocket payload.
// tygo:generate
type PlayCardPayload struct {
	CardID         int        `json:"cardId"`
	TargetPlayerID *uuid.UUID `json:"targetPlayerId"`
}

// ============================================================================
// CHAT
// ============================================================================
// tygo:generate
type ChatSendRequest struct {
	GameID  uuid.UUID `json:"gameId"`
	Message string    `json:"message"`
}

// tygo:generate
type ChatPayload struct {
	Message string `json:"message"`
}

// ============================================================================
// WEBSOCKET
// ============================================================================
// tygo:generate
type ConnectionEstablishedPayload struct {
	UserID   uuid.UUID `json:"userId"`
	PlayerID uuid.UUID `json:"playerId"`
	Username string    `json:"username"`
}

// tygo:generate
type PlayerPresencePayload struct {
	UserID   uuid.UUID `json:"userId"`
	Username string    `json:"username"`
}

// tygo:generate
type RelayPayload struct {
	From uuid.UUID       `json:"from"`
	Data json.RawMessage `json:"data"`
}
