package climb

import (
	"time"

	"github.com/google/uuid"
)

type GameStatus string

const (
	StatusWaiting    GameStatus = "WAITING"
	StatusInProgress GameStatus = "IN_PROGRESS"
	StatusFinished   GameStatus = "FINISHED"
)

const (
	MinPlayers       = 2
	MaxPlayers       = 6
	PublicMaxPlayers = 6
	HandSize         = 3
	StartPosition    = 1
	DefaultBoardSize = 112
	CharacterCount   = 6
)

type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Session is the single active login of a user.
type Session struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	DeviceID       string
	Token          string
	LastActivityAt time.Time
	CreatedAt      time.Time
}

type Game struct {
	ID               uuid.UUID  `json:"id"`
	Code             string     `json:"code"`
	MaxPlayers       int        `json:"maxPlayers"`
	Status           GameStatus `json:"status"`
	CurrentTurnIndex int        `json:"currentTurnIndex"`
	BoardSize        int        `json:"boardSize"`
	IsStarted        bool       `json:"isStarted"`
	IsPublic         bool       `json:"isPublic"`
	WinnerPlayerID   *uuid.UUID `json:"winnerPlayerId"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// Active reports whether the game still holds its players' seats.
func (g Game) Active() bool {
	return g.Status != StatusFinished
}

type Player struct {
	ID          uuid.UUID `json:"id"`
	GameID      uuid.UUID `json:"gameId"`
	UserID      uuid.UUID `json:"userId"`
	PlayerIndex int       `json:"playerIndex"`
	Character   int       `json:"character"`
	Position    int       `json:"position"`
	IsReady     bool      `json:"isReady"`
	Connected   bool      `json:"connected"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Hand holds at most HandSize card ids.
type Hand struct {
	GameID   uuid.UUID `json:"gameId"`
	PlayerID uuid.UUID `json:"playerId"`
	Cards    []int     `json:"cards"`
}

func (h Hand) Full() bool {
	return len(h.Cards) >= HandSize
}

func (h Hand) Contains(cardID int) bool {
	for _, c := range h.Cards {
		if c == cardID {
			return true
		}
	}
	return false
}

// Remove drops one instance of cardID and reports whether it was there.
func (h *Hand) Remove(cardID int) bool {
	for i, c := range h.Cards {
		if c == cardID {
			h.Cards = append(h.Cards[:i], h.Cards[i+1:]...)
			return true
		}
	}
	return false
}

type ChatMessage struct {
	ID        uuid.UUID  `json:"id"`
	GameID    uuid.UUID  `json:"gameId"`
	PlayerID  *uuid.UUID `json:"playerId"`
	Message   string     `json:"message"`
	CreatedAt time.Time  `json:"createdAt"`
}

// SeatedPlayer is a Player joined with its user's name and hand size, the shape
// broadcast to clients.
type SeatedPlayer struct {
	Player
	Username    string `json:"username"`
	CardsInHand int    `json:"cardsInHand"`
}
