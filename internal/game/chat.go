package game

import (
	"context"
	"fmt"
	"unicode/utf8"

	"climb-server/internal/auth"
	"climb-server/internal/climb"
	"climb-server/internal/store"

	"github.com/google/uuid"
)

const MaxChatLength = 500

// SendChat stores a message from a seated player and pushes it to the room.
func (s *Service) SendChat(ctx context.Context, gameID, userID uuid.UUID, text string) (climb.ChatMessage, error) {
	text = auth.SanitizeText(text)
	if text == "" {
		return climb.ChatMessage{}, climb.Validation("Message cannot be empty")
	}
	if utf8.RuneCountInString(text) > MaxChatLength {
		return climb.ChatMessage{}, climb.Validation(fmt.Sprintf("Message cannot exceed %d characters", MaxChatLength))
	}

	msg, err := store.WithTx(ctx, s.store, func(ctx context.Context, tx store.Tx) (climb.ChatMessage, error) {
		if _, err := tx.GetGame(ctx, gameID); err != nil {
			return climb.ChatMessage{}, gameErr(err)
		}
		p, err := requireSeat(ctx, tx, gameID, userID)
		if err != nil {
			return climb.ChatMessage{}, err
		}

		msg := climb.ChatMessage{
			ID:        uuid.New(),
			GameID:    gameID,
			PlayerID:  &p.ID,
			Message:   text,
			CreatedAt: s.timestamp(),
		}
		if err := tx.InsertChatMessage(ctx, msg); err != nil {
			return climb.ChatMessage{}, fmt.Errorf("failed to save message: %w", err)
		}
		return msg, nil
	})
	if err != nil {
		return climb.ChatMessage{}, err
	}

	s.notifier.Publish(ctx, gameID, uuid.Nil, Event{Type: EventChatMessage, Payload: msg})
	return msg, nil
}

// ChatHistory returns the room's messages oldest first. Only seated players
// may read it.
func (s *Service) ChatHistory(ctx context.Context, gameID, userID uuid.UUID) ([]climb.ChatMessage, error) {
	return store.WithTx(ctx, s.store, func(ctx context.Context, tx store.Tx) ([]climb.ChatMessage, error) {
		if _, err := tx.GetGame(ctx, gameID); err != nil {
			return nil, gameErr(err)
		}
		if _, err := requireSeat(ctx, tx, gameID, userID); err != nil {
			return nil, err
		}
		return tx.ListChatMessages(ctx, gameID)
	})
}
