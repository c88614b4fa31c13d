package game

import (
	"context"
	"errors"
	"fmt"

	"climb-server/internal/climb"
	"climb-server/internal/store"

	"github.com/google/uuid"
)

// CreateRoom opens a WAITING room with the caller seated as host.
func (s *Service) CreateRoom(ctx context.Context, userID uuid.UUID, maxPlayers int, isPublic bool) (climb.Game, error) {
	if maxPlayers < climb.MinPlayers || maxPlayers > climb.MaxPlayers {
		return climb.Game{}, climb.ErrInvalidMaxPlayers
	}

	g, err := store.WithTx(ctx, s.store, func(ctx context.Context, tx store.Tx) (climb.Game, error) {
		if err := lockUser(ctx, tx, userID); err != nil {
			return climb.Game{}, err
		}
		if err := ensureFree(ctx, tx, userID); err != nil {
			return climb.Game{}, err
		}
		return s.createRoom(ctx, tx, userID, maxPlayers, isPublic)
	})
	if err != nil {
		return climb.Game{}, err
	}

	s.notifier.GameUpdated(ctx, g.ID)
	return g, nil
}

func (s *Service) createRoom(ctx context.Context, tx store.Tx, userID uuid.UUID, maxPlayers int, isPublic bool) (climb.Game, error) {
	code, err := climb.GenerateRoomCode(s.rng, func(code string) (bool, error) {
		return tx.CodeExists(ctx, code)
	})
	if err != nil {
		return climb.Game{}, fmt.Errorf("failed to generate room code: %w", err)
	}

	now := s.timestamp()
	g := climb.Game{
		ID:         uuid.New(),
		Code:       code,
		MaxPlayers: maxPlayers,
		Status:     climb.StatusWaiting,
		BoardSize:  climb.DefaultBoardSize,
		IsPublic:   isPublic,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := tx.InsertGame(ctx, g); err != nil {
		return climb.Game{}, fmt.Errorf("failed to create game: %w", err)
	}

	host := climb.Player{
		ID:          uuid.New(),
		GameID:      g.ID,
		UserID:      userID,
		PlayerIndex: 0,
		Character:   climb.RandomCharacter(s.rng),
		Position:    climb.StartPosition,
		IsReady:     true,
		Connected:   true,
		CreatedAt:   now,
	}
	if err := tx.InsertPlayer(ctx, host); err != nil {
		return climb.Game{}, fmt.Errorf("failed to seat host: %w", err)
	}

	deck := climb.Deck{
		GameID:   g.ID,
		DrawPile: climb.BuildInitialDeck(s.rng, climb.CardTypeCount, climb.CopiesPerType),
		Discard:  []int{},
	}
	if err := tx.InsertDeck(ctx, deck); err != nil {
		return climb.Game{}, fmt.Errorf("failed to create deck: %w", err)
	}

	return g, nil
}

// MatchResult is the room FindOrCreate placed the caller in.
type MatchResult struct {
	Game    climb.Game
	Created bool
}

// FindOrCreate seats the caller in the oldest public room with a free seat,
// or opens a new public room when none has one.
func (s *Service) FindOrCreate(ctx context.Context, userID uuid.UUID) (MatchResult, error) {
	res, err := store.WithTx(ctx, s.store, func(ctx context.Context, tx store.Tx) (MatchResult, error) {
		if err := lockUser(ctx, tx, userID); err != nil {
			return MatchResult{}, err
		}
		if err := ensureFree(ctx, tx, userID); err != nil {
			return MatchResult{}, err
		}

		candidates, err := tx.ListWaitingGames(ctx, true)
		if err != nil {
			return MatchResult{}, fmt.Errorf("failed to list waiting games: %w", err)
		}
		for _, c := range candidates {
			// The listing is unlocked; re-check under the row lock.
			g, err := tx.LockGame(ctx, c.ID)
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			if err != nil {
				return MatchResult{}, gameErr(err)
			}
			if g.Status != climb.StatusWaiting {
				continue
			}
			players, err := tx.ListPlayers(ctx, g.ID)
			if err != nil {
				return MatchResult{}, fmt.Errorf("failed to list players: %w", err)
			}
			if len(players) >= g.MaxPlayers {
				continue
			}
			g, err = s.seat(ctx, tx, g, players, userID)
			if err != nil {
				return MatchResult{}, err
			}
			return MatchResult{Game: g}, nil
		}

		g, err := s.createRoom(ctx, tx, userID, climb.PublicMaxPlayers, true)
		if err != nil {
			return MatchResult{}, err
		}
		return MatchResult{Game: g, Created: true}, nil
	})
	if err != nil {
		return MatchResult{}, err
	}

	s.notifier.GameUpdated(ctx, res.Game.ID)
	return res, nil
}

// JoinByCode seats the caller in the room with the given code.
func (s *Service) JoinByCode(ctx context.Context, userID uuid.UUID, code string) (climb.Game, error) {
	code = climb.NormalizeRoomCode(code)
	if err := climb.ValidateRoomCode(code); err != nil {
		return climb.Game{}, err
	}

	g, err := store.WithTx(ctx, s.store, func(ctx context.Context, tx store.Tx) (climb.Game, error) {
		if err := lockUser(ctx, tx, userID); err != nil {
			return climb.Game{}, err
		}
		if err := ensureFree(ctx, tx, userID); err != nil {
			return climb.Game{}, err
		}

		found, err := tx.GetGameByCode(ctx, code)
		if err != nil {
			return climb.Game{}, gameErr(err)
		}
		g, err := lockGame(ctx, tx, found.ID)
		if err != nil {
			return climb.Game{}, err
		}
		if g.Status != climb.StatusWaiting {
			return climb.Game{}, climb.ErrAlreadyStarted
		}

		players, err := tx.ListPlayers(ctx, g.ID)
		if err != nil {
			return climb.Game{}, fmt.Errorf("failed to list players: %w", err)
		}
		if len(players) >= g.MaxPlayers {
			return climb.Game{}, climb.ErrRoomFull
		}

		return s.seat(ctx, tx, g, players, userID)
	})
	if err != nil {
		return climb.Game{}, err
	}

	s.notifier.GameUpdated(ctx, g.ID)
	return g, nil
}

// seat adds the user at the lowest free index and character, then starts the
// game if that filled it. g must be locked.
func (s *Service) seat(ctx context.Context, tx store.Tx, g climb.Game, players []climb.Player, userID uuid.UUID) (climb.Game, error) {
	idx := climb.LowestUnusedIndex(players, g.MaxPlayers)
	character := climb.LowestUnusedCharacter(players)
	if idx < 0 || character < 0 {
		return climb.Game{}, climb.ErrRoomFull
	}

	p := climb.Player{
		ID:          uuid.New(),
		GameID:      g.ID,
		UserID:      userID,
		PlayerIndex: idx,
		Character:   character,
		Position:    climb.StartPosition,
		Connected:   true,
		CreatedAt:   s.timestamp(),
	}
	if err := tx.InsertPlayer(ctx, p); err != nil {
		return climb.Game{}, fmt.Errorf("failed to seat player: %w", err)
	}
	players = append(players, p)

	if _, err := s.startIfReady(ctx, tx, &g, players); err != nil {
		return climb.Game{}, err
	}
	return g, nil
}

// LeaveResult reports whether the caller was the last one out.
type LeaveResult struct {
	GameDeleted bool
}

// Leave removes the caller's seat. Their cards go to the discard pile and the
// remaining seats are renumbered. The last player out deletes the room.
func (s *Service) Leave(ctx context.Context, gameID, userID uuid.UUID) (LeaveResult, error) {
	res, err := store.WithTx(ctx, s.store, func(ctx context.Context, tx store.Tx) (LeaveResult, error) {
		if err := lockUser(ctx, tx, userID); err != nil {
			return LeaveResult{}, err
		}
		g, err := lockGame(ctx, tx, gameID)
		if err != nil {
			return LeaveResult{}, err
		}
		leaver, err := requireSeat(ctx, tx, gameID, userID)
		if err != nil {
			return LeaveResult{}, err
		}

		hand, err := tx.GetHand(ctx, leaver.ID)
		if err != nil {
			return LeaveResult{}, fmt.Errorf("failed to load hand: %w", err)
		}
		if err := tx.DeleteHand(ctx, leaver.ID); err != nil {
			return LeaveResult{}, fmt.Errorf("failed to delete hand: %w", err)
		}
		if err := tx.DeletePlayer(ctx, leaver.ID); err != nil {
			return LeaveResult{}, fmt.Errorf("failed to delete seat: %w", err)
		}

		players, err := tx.ListPlayers(ctx, gameID)
		if err != nil {
			return LeaveResult{}, fmt.Errorf("failed to list players: %w", err)
		}
		if len(players) == 0 {
			if err := tx.DeleteGame(ctx, gameID); err != nil {
				return LeaveResult{}, fmt.Errorf("failed to delete game: %w", err)
			}
			return LeaveResult{GameDeleted: true}, nil
		}

		if len(hand.Cards) > 0 {
			deck, err := tx.GetDeck(ctx, gameID)
			if err != nil {
				return LeaveResult{}, fmt.Errorf("failed to load deck: %w", err)
			}
			deck.DiscardCards(hand.Cards...)
			if err := tx.UpdateDeck(ctx, deck); err != nil {
				return LeaveResult{}, fmt.Errorf("failed to update deck: %w", err)
			}
		}

		for _, p := range climb.Renumber(players) {
			if err := tx.UpdatePlayer(ctx, p); err != nil {
				return LeaveResult{}, fmt.Errorf("failed to renumber seat: %w", err)
			}
		}

		if g.Status == climb.StatusInProgress {
			g.CurrentTurnIndex = turnAfterLeave(g.CurrentTurnIndex, leaver.PlayerIndex, len(players))
			if len(players) < climb.MinPlayers {
				g.Status = climb.StatusFinished
				g.WinnerPlayerID = nil
			}
		}
		g.UpdatedAt = s.timestamp()
		if err := tx.UpdateGame(ctx, g); err != nil {
			return LeaveResult{}, fmt.Errorf("failed to update game: %w", err)
		}
		return LeaveResult{}, nil
	})
	if err != nil {
		return LeaveResult{}, err
	}

	s.notifier.PlayerLeft(ctx, gameID, userID)
	if !res.GameDeleted {
		s.notifier.GameUpdated(ctx, gameID)
	}
	return res, nil
}

// turnAfterLeave keeps the turn with the same next player once the seat at
// leftIndex is gone and the others have shifted down.
func turnAfterLeave(current, leftIndex, remaining int) int {
	switch {
	case leftIndex < current:
		current--
	case current >= remaining:
		current = 0
	}
	return current
}
