package game

import (
	"context"
	"fmt"
	"slices"

	"climb-server/internal/climb"
	"climb-server/internal/store"

	"github.com/google/uuid"
)

// deal tops up every hand to HandSize from the front of the draw pile, in
// seat order. A short pile deals fewer cards.
func (s *Service) deal(ctx context.Context, tx store.Tx, gameID uuid.UUID, players []climb.Player) error {
	deck, err := tx.GetDeck(ctx, gameID)
	if err != nil {
		return fmt.Errorf("failed to load deck: %w", err)
	}

	seated := slices.Clone(players)
	slices.SortFunc(seated, func(a, b climb.Player) int { return a.PlayerIndex - b.PlayerIndex })

	for _, p := range seated {
		hand, err := tx.GetHand(ctx, p.ID)
		if err != nil {
			return fmt.Errorf("failed to load hand: %w", err)
		}
		need := climb.HandSize - len(hand.Cards)
		if need <= 0 {
			continue
		}
		hand.Cards = append(hand.Cards, deck.Draw(need)...)
		if err := tx.UpsertHand(ctx, hand); err != nil {
			return fmt.Errorf("failed to save hand: %w", err)
		}
	}

	if err := tx.UpdateDeck(ctx, deck); err != nil {
		return fmt.Errorf("failed to save deck: %w", err)
	}
	return nil
}

// DrawResult is what the drawing player learns about the draw.
type DrawResult struct {
	CardID     int   `json:"cardId"`
	Hand       []int `json:"hand"`
	Reshuffled bool  `json:"reshuffled"`
}

// Draw moves the top card of the draw pile into the caller's hand. An empty
// draw pile is refilled from the shuffled discard pile first.
func (s *Service) Draw(ctx context.Context, gameID, userID uuid.UUID) (DrawResult, error) {
	res, err := store.WithTx(ctx, s.store, func(ctx context.Context, tx store.Tx) (DrawResult, error) {
		g, err := lockGame(ctx, tx, gameID)
		if err != nil {
			return DrawResult{}, err
		}
		if g.Status != climb.StatusInProgress {
			return DrawResult{}, climb.ErrInvalidState
		}
		p, err := requireSeat(ctx, tx, gameID, userID)
		if err != nil {
			return DrawResult{}, err
		}

		hand, err := tx.GetHand(ctx, p.ID)
		if err != nil {
			return DrawResult{}, fmt.Errorf("failed to load hand: %w", err)
		}
		if hand.Full() {
			return DrawResult{}, climb.ErrHandFull
		}

		deck, err := tx.GetDeck(ctx, gameID)
		if err != nil {
			return DrawResult{}, fmt.Errorf("failed to load deck: %w", err)
		}

		var res DrawResult
		if deck.Count() == 0 {
			if len(deck.Discard) == 0 {
				return DrawResult{}, climb.ErrNoCardsInGame
			}
			deck.Reshuffle(s.rng)
			res.Reshuffled = true
		}

		res.CardID = deck.Draw(1)[0]
		hand.Cards = append(hand.Cards, res.CardID)
		res.Hand = hand.Cards

		if err := tx.UpsertHand(ctx, hand); err != nil {
			return DrawResult{}, fmt.Errorf("failed to save hand: %w", err)
		}
		if err := tx.UpdateDeck(ctx, deck); err != nil {
			return DrawResult{}, fmt.Errorf("failed to save deck: %w", err)
		}
		return res, nil
	})
	if err != nil {
		return DrawResult{}, err
	}

	s.notifier.PublishTo(ctx, gameID, userID, Event{Type: EventCardDrawn, Payload: res})
	s.notifier.GameUpdated(ctx, gameID)
	return res, nil
}

// PlayResult describes a played card.
type PlayResult struct {
	PlayerID       uuid.UUID            `json:"playerId"`
	Card           climb.CardDefinition `json:"card"`
	TargetPlayerID *uuid.UUID           `json:"targetPlayerId,omitempty"`
	Hand           []int                `json:"-"`
	GameFinished   bool                 `json:"gameFinished"`
}

// Play discards one copy of cardID from the caller's hand and applies the
// card's effect. Counter cards may be played on any turn.
func (s *Service) Play(ctx context.Context, gameID, userID uuid.UUID, cardID int, target *uuid.UUID) (PlayResult, error) {
	def, err := climb.CardByID(cardID)
	if err != nil {
		return PlayResult{}, err
	}

	res, err := store.WithTx(ctx, s.store, func(ctx context.Context, tx store.Tx) (PlayResult, error) {
		g, err := lockGame(ctx, tx, gameID)
		if err != nil {
			return PlayResult{}, err
		}
		if g.Status != climb.StatusInProgress {
			return PlayResult{}, climb.ErrInvalidState
		}
		p, err := requireSeat(ctx, tx, gameID, userID)
		if err != nil {
			return PlayResult{}, err
		}

		hand, err := tx.GetHand(ctx, p.ID)
		if err != nil {
			return PlayResult{}, fmt.Errorf("failed to load hand: %w", err)
		}
		if !hand.Remove(cardID) {
			return PlayResult{}, climb.ErrCardNotInHand
		}
		if !def.Counter && p.PlayerIndex != g.CurrentTurnIndex {
			return PlayResult{}, climb.ErrNotYourTurn
		}

		pc := &PlayContext{Tx: tx, Game: &g, Player: p, Card: def}
		if target != nil {
			tp, err := findTarget(ctx, tx, gameID, *target)
			if err != nil {
				return PlayResult{}, err
			}
			pc.Target = &tp
		}

		deck, err := tx.GetDeck(ctx, gameID)
		if err != nil {
			return PlayResult{}, fmt.Errorf("failed to load deck: %w", err)
		}
		deck.DiscardCards(cardID)
		if err := tx.UpsertHand(ctx, hand); err != nil {
			return PlayResult{}, fmt.Errorf("failed to save hand: %w", err)
		}
		if err := tx.UpdateDeck(ctx, deck); err != nil {
			return PlayResult{}, fmt.Errorf("failed to save deck: %w", err)
		}

		if effect, ok := s.effects[cardID]; ok {
			if err := effect(ctx, pc); err != nil {
				return PlayResult{}, err
			}
		}

		g.UpdatedAt = s.timestamp()
		if err := tx.UpdateGame(ctx, g); err != nil {
			return PlayResult{}, fmt.Errorf("failed to update game: %w", err)
		}

		return PlayResult{
			PlayerID:       p.ID,
			Card:           def,
			TargetPlayerID: target,
			Hand:           hand.Cards,
			GameFinished:   g.Status == climb.StatusFinished,
		}, nil
	})
	if err != nil {
		return PlayResult{}, err
	}

	s.notifier.Publish(ctx, gameID, uuid.Nil, Event{Type: EventCardPlayed, Payload: res})
	s.notifier.GameUpdated(ctx, gameID)
	return res, nil
}

// Hand returns the caller's cards in the game.
func (s *Service) Hand(ctx context.Context, gameID, userID uuid.UUID) (climb.Hand, error) {
	return store.WithTx(ctx, s.store, func(ctx context.Context, tx store.Tx) (climb.Hand, error) {
		if _, err := tx.GetGame(ctx, gameID); err != nil {
			return climb.Hand{}, gameErr(err)
		}
		p, err := requireSeat(ctx, tx, gameID, userID)
		if err != nil {
			return climb.Hand{}, err
		}
		hand, err := tx.GetHand(ctx, p.ID)
		if err != nil {
			return climb.Hand{}, fmt.Errorf("failed to load hand: %w", err)
		}
		return hand, nil
	})
}

func findTarget(ctx context.Context, tx store.Tx, gameID, playerID uuid.UUID) (climb.Player, error) {
	players, err := tx.ListPlayers(ctx, gameID)
	if err != nil {
		return climb.Player{}, fmt.Errorf("failed to list players: %w", err)
	}
	for _, p := range players {
		if p.ID == playerID {
			return p, nil
		}
	}
	return climb.Player{}, climb.Validation("Target player is not in this game")
}

// PlayContext is what a card effect may read and change. Effects mutate Game
// in place; the caller persists it.
type PlayContext struct {
	Tx     store.Tx
	Game   *climb.Game
	Player climb.Player
	Target *climb.Player
	Card   climb.CardDefinition
}

// CardEffect runs after a card has left the hand and reached the discard pile.
type CardEffect func(ctx context.Context, pc *PlayContext) error

// DefaultEffects returns the built-in card effects keyed by card id.
func DefaultEffects() map[int]CardEffect {
	return map[int]CardEffect{
		climb.CardQuarantine: quarantine,
	}
}

// quarantine ends the game with no winner.
func quarantine(_ context.Context, pc *PlayContext) error {
	pc.Game.Status = climb.StatusFinished
	pc.Game.WinnerPlayerID = nil
	return nil
}

