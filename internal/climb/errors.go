package climb

import (
	"errors"
	"fmt"
)

// Kind groups errors by how a caller should react to them.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindConflict
	KindNotFound
	KindState
	KindUnauthorized
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindState:
		return "state"
	case KindUnauthorized:
		return "unauthorized"
	default:
		return "internal"
	}
}

// Error is a business-rule failure with a stable code.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newError(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

var (
	ErrValidation         = newError(KindValidation, "VALIDATION", "Invalid request")
	ErrInvalidMaxPlayers  = newError(KindValidation, "VALIDATION", "Max players must be between 2 and 6")
	ErrInvalidRoomCode    = newError(KindValidation, "VALIDATION", "Room code must be 6 characters A-Z or 0-9")
	ErrAlreadyInGame      = newError(KindConflict, "ALREADY_IN_GAME", "You are already in another active game")
	ErrRoomFull           = newError(KindConflict, "ROOM_FULL", "Game is full")
	ErrAlreadyStarted     = newError(KindConflict, "GAME_ALREADY_STARTED", "Game has already started")
	ErrUserExists         = newError(KindConflict, "USER_EXISTS", "Username or email already exists")
	ErrGameNotFound       = newError(KindNotFound, "GAME_NOT_FOUND", "Game not found")
	ErrCardNotFound       = newError(KindNotFound, "CARD_NOT_FOUND", "Card not found")
	ErrSquareNotFound     = newError(KindNotFound, "SQUARE_NOT_FOUND", "Square not found")
	ErrUserNotFound       = newError(KindNotFound, "USER_NOT_FOUND", "User not found")
	ErrNotInGame          = newError(KindState, "NOT_IN_GAME", "You are not in this game")
	ErrNotYourTurn        = newError(KindState, "NOT_YOUR_TURN", "It is not your turn")
	ErrInvalidState       = newError(KindState, "INVALID_STATE", "Game is not in progress")
	ErrHandFull           = newError(KindState, "HAND_FULL", "You already have 3 cards in your hand")
	ErrNoCardsInGame      = newError(KindState, "NO_CARDS_IN_GAME", "No cards left to draw")
	ErrCardNotInHand      = newError(KindState, "CARD_NOT_IN_HAND", "You do not have that card in your hand")
	ErrInvalidCredentials = newError(KindUnauthorized, "INVALID_CREDENTIALS", "Invalid username or password")
	ErrInvalidToken       = newError(KindUnauthorized, "INVALID_TOKEN", "Invalid or expired token")
)

// Validation builds a validation error with a specific message.
func Validation(message string) *Error {
	return newError(KindValidation, "VALIDATION", message)
}

// KindOf classifies err. Anything that is not a *Error is internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// AsError returns the coded error inside err, if any.
func AsError(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
