package game

import (
	"context"
	"fmt"

	"climb-server/internal/climb"
	"climb-server/internal/store"

	"github.com/google/uuid"
)

// ReadyResult reports whether marking ready started the game.
type ReadyResult struct {
	Game    climb.Game
	Started bool
}

// MarkReady flags the caller as ready. Once every seated player is ready and
// there are at least two of them the game starts. Calling it after the start
// is a no-op.
func (s *Service) MarkReady(ctx context.Context, gameID, userID uuid.UUID) (ReadyResult, error) {
	res, err := store.WithTx(ctx, s.store, func(ctx context.Context, tx store.Tx) (ReadyResult, error) {
		g, err := lockGame(ctx, tx, gameID)
		if err != nil {
			return ReadyResult{}, err
		}
		p, err := requireSeat(ctx, tx, gameID, userID)
		if err != nil {
			return ReadyResult{}, err
		}
		if g.Status != climb.StatusWaiting {
			return ReadyResult{Game: g}, nil
		}

		if !p.IsReady {
			p.IsReady = true
			if err := tx.UpdatePlayer(ctx, p); err != nil {
				return ReadyResult{}, fmt.Errorf("failed to mark ready: %w", err)
			}
		}

		players, err := tx.ListPlayers(ctx, gameID)
		if err != nil {
			return ReadyResult{}, fmt.Errorf("failed to list players: %w", err)
		}
		started, err := s.startIfReady(ctx, tx, &g, players)
		if err != nil {
			return ReadyResult{}, err
		}
		return ReadyResult{Game: g, Started: started}, nil
	})
	if err != nil {
		return ReadyResult{}, err
	}

	s.notifier.GameUpdated(ctx, gameID)
	return res, nil
}

// startIfReady starts g when it is full or when at least two players are
// seated and all of them are ready. It does nothing unless g is WAITING, so
// both triggers may fire without dealing twice.
func (s *Service) startIfReady(ctx context.Context, tx store.Tx, g *climb.Game, players []climb.Player) (bool, error) {
	if g.Status != climb.StatusWaiting {
		return false, nil
	}

	full := len(players) >= g.MaxPlayers
	allReady := len(players) >= climb.MinPlayers
	for _, p := range players {
		if !p.IsReady {
			allReady = false
			break
		}
	}
	if !full && !allReady {
		return false, nil
	}

	if err := s.start(ctx, tx, g, players); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) start(ctx context.Context, tx store.Tx, g *climb.Game, players []climb.Player) error {
	for _, p := range players {
		if p.IsReady {
			continue
		}
		p.IsReady = true
		if err := tx.UpdatePlayer(ctx, p); err != nil {
			return fmt.Errorf("failed to mark ready: %w", err)
		}
	}

	if err := s.deal(ctx, tx, g.ID, players); err != nil {
		return err
	}

	g.Status = climb.StatusInProgress
	g.IsStarted = true
	g.CurrentTurnIndex = 0
	g.UpdatedAt = s.timestamp()
	if err := tx.UpdateGame(ctx, *g); err != nil {
		return fmt.Errorf("failed to start game: %w", err)
	}
	return nil
}

// DiceResult is the outcome of one roll.
type DiceResult struct {
	PlayerID      uuid.UUID  `json:"playerId"`
	Dice          [2]int     `json:"dice"`
	Total         int        `json:"total"`
	NewPosition   int        `json:"newPosition"`
	NextTurnIndex int        `json:"nextTurnIndex"`
	WinnerID      *uuid.UUID `json:"winnerPlayerId,omitempty"`
}

// RollDice moves the player whose turn it is by two dice and passes the turn.
// Reaching the last square while holding the Key card wins the game.
func (s *Service) RollDice(ctx context.Context, gameID, userID uuid.UUID) (DiceResult, error) {
	res, err := store.WithTx(ctx, s.store, func(ctx context.Context, tx store.Tx) (DiceResult, error) {
		g, err := lockGame(ctx, tx, gameID)
		if err != nil {
			return DiceResult{}, err
		}
		if g.Status != climb.StatusInProgress {
			return DiceResult{}, climb.ErrInvalidState
		}
		p, err := requireSeat(ctx, tx, gameID, userID)
		if err != nil {
			return DiceResult{}, err
		}
		if p.PlayerIndex != g.CurrentTurnIndex {
			return DiceResult{}, climb.ErrNotYourTurn
		}

		players, err := tx.ListPlayers(ctx, gameID)
		if err != nil {
			return DiceResult{}, fmt.Errorf("failed to list players: %w", err)
		}

		res := DiceResult{PlayerID: p.ID}
		res.Dice = [2]int{climb.RollDie(s.rng), climb.RollDie(s.rng)}
		res.Total = res.Dice[0] + res.Dice[1]

		p.Position = climb.Advance(p.Position, res.Total, g.BoardSize)
		res.NewPosition = p.Position
		if err := tx.UpdatePlayer(ctx, p); err != nil {
			return DiceResult{}, fmt.Errorf("failed to move player: %w", err)
		}

		if p.Position >= g.BoardSize {
			hand, err := tx.GetHand(ctx, p.ID)
			if err != nil {
				return DiceResult{}, fmt.Errorf("failed to load hand: %w", err)
			}
			if hand.Contains(climb.CardKey) {
				g.Status = climb.StatusFinished
				g.WinnerPlayerID = &p.ID
				res.WinnerID = &p.ID
			}
		}

		g.CurrentTurnIndex = climb.NextTurn(p.PlayerIndex, len(players))
		g.UpdatedAt = s.timestamp()
		res.NextTurnIndex = g.CurrentTurnIndex
		if err := tx.UpdateGame(ctx, g); err != nil {
			return DiceResult{}, fmt.Errorf("failed to advance turn: %w", err)
		}
		return res, nil
	})
	if err != nil {
		return DiceResult{}, err
	}

	s.notifier.Publish(ctx, gameID, uuid.Nil, Event{Type: EventDiceRolled, Payload: res})
	s.notifier.GameUpdated(ctx, gameID)
	return res, nil
}
