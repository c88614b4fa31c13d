// Package game coordinates rooms, turns, cards and chat on top of the store.
//
// Every operation runs in one store transaction. Listeners are notified only
// after the transaction commits.
package game

import (
	"context"
	"errors"
	"fmt"
	"time"

	"climb-server/internal/climb"
	"climb-server/internal/store"

	"github.com/google/uuid"
)

// Event types pushed to a room besides full snapshots.
const (
	EventDiceRolled  = "dice_rolled"
	EventCardPlayed  = "card_played"
	EventCardDrawn   = "card_drawn"
	EventChatMessage = "chat_message"
)

type Event struct {
	Type    string
	Payload any
}

// Notifier receives post-commit changes. Delivery is best effort and never
// reports failures back.
type Notifier interface {
	GameUpdated(ctx context.Context, gameID uuid.UUID)
	Publish(ctx context.Context, gameID, exclude uuid.UUID, event Event)
	PublishTo(ctx context.Context, gameID, userID uuid.UUID, event Event)
	PlayerLeft(ctx context.Context, gameID, userID uuid.UUID)
}

type Service struct {
	store    store.Store
	notifier Notifier
	rng      climb.Randomizer
	effects  map[int]CardEffect
	now      func() time.Time
}

type Option func(*Service)

func WithRandom(r climb.Randomizer) Option {
	return func(s *Service) { s.rng = r }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithEffect registers or replaces the effect run when cardID is played.
func WithEffect(cardID int, effect CardEffect) Option {
	return func(s *Service) { s.effects[cardID] = effect }
}

func NewService(s store.Store, n Notifier, opts ...Option) *Service {
	if n == nil {
		n = nopNotifier{}
	}
	svc := &Service{
		store:    s,
		notifier: n,
		rng:      climb.DefaultRandom,
		effects:  DefaultEffects(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

func (s *Service) timestamp() time.Time {
	return s.now().UTC()
}

// Snapshot is the full public state of a room.
type Snapshot struct {
	Game    climb.Game
	Players []climb.SeatedPlayer
}

// LoadSnapshot reads a room's current state in its own transaction.
func LoadSnapshot(ctx context.Context, s store.Store, gameID uuid.UUID) (Snapshot, error) {
	return store.WithTx(ctx, s, func(ctx context.Context, tx store.Tx) (Snapshot, error) {
		g, err := tx.GetGame(ctx, gameID)
		if err != nil {
			return Snapshot{}, gameErr(err)
		}
		players, err := tx.ListSeatedPlayers(ctx, gameID)
		if err != nil {
			return Snapshot{}, fmt.Errorf("failed to list players: %w", err)
		}
		return Snapshot{Game: g, Players: players}, nil
	})
}

func (s *Service) Get(ctx context.Context, gameID uuid.UUID) (Snapshot, error) {
	return LoadSnapshot(ctx, s.store, gameID)
}

// Active lists the unfinished games the user is seated in.
func (s *Service) Active(ctx context.Context, userID uuid.UUID) ([]climb.Game, error) {
	return store.WithTx(ctx, s.store, func(ctx context.Context, tx store.Tx) ([]climb.Game, error) {
		return tx.ListActiveGamesForUser(ctx, userID)
	})
}

// AvailableGame is a public room that still has free seats.
type AvailableGame struct {
	Game        climb.Game
	PlayerCount int
}

func (s *Service) Available(ctx context.Context) ([]AvailableGame, error) {
	return store.WithTx(ctx, s.store, func(ctx context.Context, tx store.Tx) ([]AvailableGame, error) {
		waiting, err := tx.ListWaitingGames(ctx, true)
		if err != nil {
			return nil, fmt.Errorf("failed to list waiting games: %w", err)
		}
		out := make([]AvailableGame, 0, len(waiting))
		for _, g := range waiting {
			players, err := tx.ListPlayers(ctx, g.ID)
			if err != nil {
				return nil, fmt.Errorf("failed to list players: %w", err)
			}
			if len(players) < g.MaxPlayers {
				out = append(out, AvailableGame{Game: g, PlayerCount: len(players)})
			}
		}
		return out, nil
	})
}

// SetConnected records whether the user has a live socket in the game.
func (s *Service) SetConnected(ctx context.Context, gameID, userID uuid.UUID, connected bool) error {
	err := s.store.RunTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := lockGame(ctx, tx, gameID); err != nil {
			return err
		}
		p, err := requireSeat(ctx, tx, gameID, userID)
		if err != nil {
			return err
		}
		if p.Connected == connected {
			return nil
		}
		p.Connected = connected
		return tx.UpdatePlayer(ctx, p)
	})
	if err != nil {
		return err
	}

	s.notifier.GameUpdated(ctx, gameID)
	return nil
}

// PruneFinished deletes finished games untouched for longer than age.
func (s *Service) PruneFinished(ctx context.Context, age time.Duration) (int, error) {
	return store.WithTx(ctx, s.store, func(ctx context.Context, tx store.Tx) (int, error) {
		return tx.DeleteFinishedGames(ctx, s.timestamp().Add(-age))
	})
}

func lockGame(ctx context.Context, tx store.Tx, gameID uuid.UUID) (climb.Game, error) {
	g, err := tx.LockGame(ctx, gameID)
	if err != nil {
		return climb.Game{}, gameErr(err)
	}
	return g, nil
}

func lockUser(ctx context.Context, tx store.Tx, userID uuid.UUID) error {
	err := tx.LockUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return climb.ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to lock user: %w", err)
	}
	return nil
}

func requireSeat(ctx context.Context, tx store.Tx, gameID, userID uuid.UUID) (climb.Player, error) {
	p, err := tx.GetPlayerByUser(ctx, gameID, userID)
	if errors.Is(err, store.ErrNotFound) {
		return climb.Player{}, climb.ErrNotInGame
	}
	if err != nil {
		return climb.Player{}, fmt.Errorf("failed to load seat: %w", err)
	}
	return p, nil
}

// ensureFree fails when the user already sits in an unfinished game.
func ensureFree(ctx context.Context, tx store.Tx, userID uuid.UUID) error {
	_, err := tx.FindActiveSeat(ctx, userID)
	if err == nil {
		return climb.ErrAlreadyInGame
	}
	if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("failed to check active seat: %w", err)
	}
	return nil
}

func gameErr(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return climb.ErrGameNotFound
	}
	return fmt.Errorf("failed to load game: %w", err)
}

type nopNotifier struct{}

func (nopNotifier) GameUpdated(context.Context, uuid.UUID)                 {}
func (nopNotifier) Publish(context.Context, uuid.UUID, uuid.UUID, Event)   {}
func (nopNotifier) PublishTo(context.Context, uuid.UUID, uuid.UUID, Event) {}
func (nopNotifier) PlayerLeft(context.Context, uuid.UUID, uuid.UUID)       {}
