// Package auth registers users, verifies passwords and manages the single
// active session each user may hold.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"climb-server/internal/climb"
	"climb-server/internal/store"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	MinUsernameLength = 3
	MaxUsernameLength = 20
	MinPasswordLength = 6
	// bcrypt only accepts 72 bytes of input.
	MaxPasswordLength = 72
)

var (
	ErrInvalidUsername = climb.Validation("Username must be between 3 and 20 characters")
	ErrInvalidPassword = climb.Validation("Password must be at least 6 characters")
	ErrPasswordTooLong = climb.Validation("Password cannot exceed 72 bytes")
	ErrInvalidEmail    = climb.Validation("Email is not valid")
)

type Service struct {
	store  store.Store
	tokens *TokenIssuer
	now    func() time.Time
}

func NewService(s store.Store, tokens *TokenIssuer) *Service {
	return &Service{store: s, tokens: tokens, now: time.Now}
}

// Result is what a successful register or login hands back to the client.
type Result struct {
	User  climb.User `json:"user"`
	Token string     `json:"token"`
}

func (s *Service) Register(ctx context.Context, username, email, password, deviceID string) (Result, error) {
	username = SanitizeUsername(username)
	if err := validateUsername(username); err != nil {
		return Result{}, err
	}
	if len(password) < MinPasswordLength {
		return Result{}, ErrInvalidPassword
	}
	if len(password) > MaxPasswordLength {
		return Result{}, ErrPasswordTooLong
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return Result{}, ErrInvalidEmail
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Result{}, fmt.Errorf("failed to hash password: %w", err)
	}

	user := climb.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    s.now().UTC(),
	}
	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return Result{}, err
	}

	err = s.store.RunTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.InsertUser(ctx, user); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return climb.ErrUserExists
			}
			return fmt.Errorf("failed to create user: %w", err)
		}
		return s.replaceSession(ctx, tx, user.ID, token, deviceID)
	})
	if err != nil {
		return Result{}, err
	}

	return Result{User: user, Token: token}, nil
}

// Login verifies the password and replaces any session the user already had.
func (s *Service) Login(ctx context.Context, username, password, deviceID string) (Result, error) {
	username = SanitizeUsername(username)

	var result Result
	err := s.store.RunTx(ctx, func(ctx context.Context, tx store.Tx) error {
		user, err := tx.GetUserByUsername(ctx, username)
		if errors.Is(err, store.ErrNotFound) {
			return climb.ErrInvalidCredentials
		}
		if err != nil {
			return fmt.Errorf("failed to get user: %w", err)
		}

		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
			return climb.ErrInvalidCredentials
		}

		token, err := s.tokens.Issue(user.ID)
		if err != nil {
			return err
		}
		if err := s.replaceSession(ctx, tx, user.ID, token, deviceID); err != nil {
			return err
		}

		result = Result{User: user, Token: token}
		return nil
	})
	return result, err
}

func (s *Service) replaceSession(ctx context.Context, tx store.Tx, userID uuid.UUID, token, deviceID string) error {
	if err := tx.DeleteSessionsForUser(ctx, userID); err != nil {
		return fmt.Errorf("failed to clear sessions: %w", err)
	}
	now := s.now().UTC()
	err := tx.InsertSession(ctx, climb.Session{
		ID:             uuid.New(),
		UserID:         userID,
		DeviceID:       deviceID,
		Token:          token,
		LastActivityAt: now,
		CreatedAt:      now,
	})
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (s *Service) Logout(ctx context.Context, userID uuid.UUID) error {
	return s.store.RunTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.DeleteSessionsForUser(ctx, userID)
	})
}

// Verify accepts a token only while it is signed correctly and still the
// user's current session.
func (s *Service) Verify(ctx context.Context, token string) (climb.User, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return climb.User{}, climb.ErrInvalidToken
	}

	return store.WithTx(ctx, s.store, func(ctx context.Context, tx store.Tx) (climb.User, error) {
		session, err := tx.GetSessionByToken(ctx, token)
		if errors.Is(err, store.ErrNotFound) || (err == nil && session.UserID != claims.UserID) {
			return climb.User{}, climb.ErrInvalidToken
		}
		if err != nil {
			return climb.User{}, fmt.Errorf("failed to load session: %w", err)
		}

		user, err := tx.GetUserByID(ctx, claims.UserID)
		if errors.Is(err, store.ErrNotFound) {
			return climb.User{}, climb.ErrInvalidToken
		}
		return user, err
	})
}

func (s *Service) Profile(ctx context.Context, userID uuid.UUID) (climb.User, error) {
	return store.WithTx(ctx, s.store, func(ctx context.Context, tx store.Tx) (climb.User, error) {
		user, err := tx.GetUserByID(ctx, userID)
		if errors.Is(err, store.ErrNotFound) {
			return climb.User{}, climb.ErrUserNotFound
		}
		return user, err
	})
}

func validateUsername(username string) error {
	if len(username) < MinUsernameLength || len(username) > MaxUsernameLength {
		return ErrInvalidUsername
	}
	return nil
}
