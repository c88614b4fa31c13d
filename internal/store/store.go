// Package store persists users, sessions, games, seats, decks, hands and chat.
//
// Every read and write happens inside a transaction obtained from Store.RunTx.
// A returned error rolls the whole transaction back.
package store

import (
	"context"
	"errors"
	"time"

	"climb-server/internal/climb"

	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("unique constraint violated")
)

type Store interface {
	// RunTx runs fn in a single transaction and commits if fn returns nil.
	// Implementations may call fn more than once when the backend reports a
	// serialization failure, so fn must not have side effects outside tx.
	RunTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Ping(ctx context.Context) error
	Close()
}

// Tx is the set of typed operations available inside a transaction.
type Tx interface {
	UserTx
	SessionTx
	GameTx
	PlayerTx
	CardTx
	ChatTx
}

type UserTx interface {
	InsertUser(ctx context.Context, u climb.User) error
	GetUserByID(ctx context.Context, id uuid.UUID) (climb.User, error)
	GetUserByUsername(ctx context.Context, username string) (climb.User, error)
	// LockUser serializes seat changes of one user across transactions.
	LockUser(ctx context.Context, id uuid.UUID) error
}

type SessionTx interface {
	InsertSession(ctx context.Context, s climb.Session) error
	GetSessionByToken(ctx context.Context, token string) (climb.Session, error)
	DeleteSessionsForUser(ctx context.Context, userID uuid.UUID) error
}

type GameTx interface {
	InsertGame(ctx context.Context, g climb.Game) error
	GetGame(ctx context.Context, id uuid.UUID) (climb.Game, error)
	// LockGame reads a game and holds its row until the transaction ends.
	LockGame(ctx context.Context, id uuid.UUID) (climb.Game, error)
	GetGameByCode(ctx context.Context, code string) (climb.Game, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	// ListWaitingGames returns WAITING games ordered by (createdAt, id).
	ListWaitingGames(ctx context.Context, publicOnly bool) ([]climb.Game, error)
	ListActiveGamesForUser(ctx context.Context, userID uuid.UUID) ([]climb.Game, error)
	UpdateGame(ctx context.Context, g climb.Game) error
	// DeleteGame removes the game with its seats, hands, deck and chat.
	DeleteGame(ctx context.Context, id uuid.UUID) error
	// DeleteFinishedGames removes FINISHED games last updated before cutoff and
	// returns how many were deleted.
	DeleteFinishedGames(ctx context.Context, cutoff time.Time) (int, error)
}

type PlayerTx interface {
	InsertPlayer(ctx context.Context, p climb.Player) error
	UpdatePlayer(ctx context.Context, p climb.Player) error
	DeletePlayer(ctx context.Context, id uuid.UUID) error
	// ListPlayers returns a game's seats ordered by playerIndex.
	ListPlayers(ctx context.Context, gameID uuid.UUID) ([]climb.Player, error)
	ListSeatedPlayers(ctx context.Context, gameID uuid.UUID) ([]climb.SeatedPlayer, error)
	GetPlayerByUser(ctx context.Context, gameID, userID uuid.UUID) (climb.Player, error)
	// FindActiveSeat returns the user's seat in a game that is not FINISHED.
	FindActiveSeat(ctx context.Context, userID uuid.UUID) (climb.Player, error)
}

type CardTx interface {
	InsertDeck(ctx context.Context, d climb.Deck) error
	GetDeck(ctx context.Context, gameID uuid.UUID) (climb.Deck, error)
	UpdateDeck(ctx context.Context, d climb.Deck) error
	// GetHand returns an empty hand when the player has none stored.
	GetHand(ctx context.Context, playerID uuid.UUID) (climb.Hand, error)
	UpsertHand(ctx context.Context, h climb.Hand) error
	DeleteHand(ctx context.Context, playerID uuid.UUID) error
	ListHands(ctx context.Context, gameID uuid.UUID) ([]climb.Hand, error)
}

type ChatTx interface {
	InsertChatMessage(ctx context.Context, m climb.ChatMessage) error
	// ListChatMessages returns a game's messages oldest first.
	ListChatMessages(ctx context.Context, gameID uuid.UUID) ([]climb.ChatMessage, error)
}

// WithTx runs fn in a transaction and returns its result.
func WithTx[T any](ctx context.Context, s Store, fn func(ctx context.Context, tx Tx) (T, error)) (T, error) {
	var out T
	err := s.RunTx(ctx, func(ctx context.Context, tx Tx) error {
		v, err := fn(ctx, tx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

func cards(c []int) []int {
	if c == nil {
		return []int{}
	}
	return c
}
