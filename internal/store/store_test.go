package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"climb-server/internal/climb"
	"climb-server/internal/database/databasetest"
	"climb-server/internal/store"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	testStore(t, func(t *testing.T) store.Store { return store.NewMemory() })
}

func TestPostgresStore(t *testing.T) {
	pool := databasetest.NewPool(t)
	testStore(t, func(t *testing.T) store.Store {
		_, err := pool.Exec(context.Background(),
			`TRUNCATE users, sessions, games, players, decks, hands, chat_messages CASCADE`)
		require.NoError(t, err)
		return store.NewPostgres(pool)
	})
}

func testStore(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Run("users", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("sessions", func(t *testing.T) { testSessions(t, newStore(t)) })
	t.Run("games and seats", func(t *testing.T) { testGamesAndSeats(t, newStore(t)) })
	t.Run("deck and hands", func(t *testing.T) { testDeckAndHands(t, newStore(t)) })
	t.Run("chat", func(t *testing.T) { testChat(t, newStore(t)) })
	t.Run("finished cleanup", func(t *testing.T) { testFinishedCleanup(t, newStore(t)) })
	t.Run("rollback", func(t *testing.T) { testRollback(t, newStore(t)) })
}

var now = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func newUser(name string) climb.User {
	return climb.User{
		ID:           uuid.New(),
		Username:     name,
		Email:        name + "@example.com",
		PasswordHash: "hash",
		CreatedAt:    now,
	}
}

func newGame(code string, created time.Time) climb.Game {
	return climb.Game{
		ID:         uuid.New(),
		Code:       code,
		MaxPlayers: 4,
		Status:     climb.StatusWaiting,
		BoardSize:  climb.DefaultBoardSize,
		IsPublic:   true,
		CreatedAt:  created,
		UpdatedAt:  created,
	}
}

func newPlayer(g climb.Game, u climb.User, idx int) climb.Player {
	return climb.Player{
		ID:          uuid.New(),
		GameID:      g.ID,
		UserID:      u.ID,
		PlayerIndex: idx,
		Character:   idx + 1,
		Position:    climb.StartPosition,
		CreatedAt:   now,
	}
}

func run(t *testing.T, s store.Store, fn func(ctx context.Context, tx store.Tx) error) {
	t.Helper()
	require.NoError(t, s.RunTx(context.Background(), fn))
}

func testUsers(t *testing.T, s store.Store) {
	alice := newUser("alice")

	run(t, s, func(ctx context.Context, tx store.Tx) error {
		return tx.InsertUser(ctx, alice)
	})

	err := s.RunTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		dup := newUser("alice")
		return tx.InsertUser(ctx, dup)
	})
	assert.ErrorIs(t, err, store.ErrConflict)

	run(t, s, func(ctx context.Context, tx store.Tx) error {
		got, err := tx.GetUserByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, alice.ID, got.ID)
		assert.Equal(t, "hash", got.PasswordHash)

		_, err = tx.GetUserByID(ctx, uuid.New())
		assert.ErrorIs(t, err, store.ErrNotFound)

		assert.NoError(t, tx.LockUser(ctx, alice.ID))
		return nil
	})
}

func testSessions(t *testing.T, s store.Store) {
	alice := newUser("alice")
	session := climb.Session{ID: uuid.New(), UserID: alice.ID, Token: "tok-1", LastActivityAt: now, CreatedAt: now}

	run(t, s, func(ctx context.Context, tx store.Tx) error {
		require.NoError(t, tx.InsertUser(ctx, alice))
		return tx.InsertSession(ctx, session)
	})

	run(t, s, func(ctx context.Context, tx store.Tx) error {
		got, err := tx.GetSessionByToken(ctx, "tok-1")
		require.NoError(t, err)
		assert.Equal(t, alice.ID, got.UserID)

		require.NoError(t, tx.DeleteSessionsForUser(ctx, alice.ID))
		_, err = tx.GetSessionByToken(ctx, "tok-1")
		assert.ErrorIs(t, err, store.ErrNotFound)
		return nil
	})
}

func testGamesAndSeats(t *testing.T, s store.Store) {
	alice, bob := newUser("alice"), newUser("bob")
	older := newGame("AAAAAA", now)
	newer := newGame("BBBBBB", now.Add(time.Second))
	private := newGame("CCCCCC", now.Add(-time.Second))
	private.IsPublic = false

	run(t, s, func(ctx context.Context, tx store.Tx) error {
		require.NoError(t, tx.InsertUser(ctx, alice))
		require.NoError(t, tx.InsertUser(ctx, bob))
		require.NoError(t, tx.InsertGame(ctx, newer))
		require.NoError(t, tx.InsertGame(ctx, older))
		require.NoError(t, tx.InsertGame(ctx, private))
		require.NoError(t, tx.InsertPlayer(ctx, newPlayer(older, bob, 1)))
		return tx.InsertPlayer(ctx, newPlayer(older, alice, 0))
	})

	run(t, s, func(ctx context.Context, tx store.Tx) error {
		public, err := tx.ListWaitingGames(ctx, true)
		require.NoError(t, err)
		require.Len(t, public, 2)
		assert.Equal(t, "AAAAAA", public[0].Code)
		assert.Equal(t, "BBBBBB", public[1].Code)

		all, err := tx.ListWaitingGames(ctx, false)
		require.NoError(t, err)
		assert.Len(t, all, 3)

		exists, err := tx.CodeExists(ctx, "AAAAAA")
		require.NoError(t, err)
		assert.True(t, exists)
		exists, err = tx.CodeExists(ctx, "ZZZZZZ")
		require.NoError(t, err)
		assert.False(t, exists)

		players, err := tx.ListPlayers(ctx, older.ID)
		require.NoError(t, err)
		require.Len(t, players, 2)
		assert.Equal(t, alice.ID, players[0].UserID)

		seated, err := tx.ListSeatedPlayers(ctx, older.ID)
		require.NoError(t, err)
		assert.Equal(t, "alice", seated[0].Username)
		assert.Equal(t, 0, seated[0].CardsInHand)

		seat, err := tx.FindActiveSeat(ctx, bob.ID)
		require.NoError(t, err)
		assert.Equal(t, older.ID, seat.GameID)

		active, err := tx.ListActiveGamesForUser(ctx, bob.ID)
		require.NoError(t, err)
		assert.Len(t, active, 1)

		// Swapping two indexes passes once the transaction commits.
		players[0].PlayerIndex, players[1].PlayerIndex = 1, 0
		require.NoError(t, tx.UpdatePlayer(ctx, players[0]))
		return tx.UpdatePlayer(ctx, players[1])
	})

	run(t, s, func(ctx context.Context, tx store.Tx) error {
		g, err := tx.LockGame(ctx, older.ID)
		require.NoError(t, err)
		g.Status = climb.StatusFinished
		g.IsStarted = true
		winner := uuid.New()
		g.WinnerPlayerID = &winner
		require.NoError(t, tx.UpdateGame(ctx, g))

		_, err = tx.FindActiveSeat(ctx, bob.ID)
		assert.ErrorIs(t, err, store.ErrNotFound)

		got, err := tx.GetGameByCode(ctx, "AAAAAA")
		require.NoError(t, err)
		require.NotNil(t, got.WinnerPlayerID)
		assert.Equal(t, winner, *got.WinnerPlayerID)
		return nil
	})

	run(t, s, func(ctx context.Context, tx store.Tx) error {
		require.NoError(t, tx.DeleteGame(ctx, older.ID))
		players, err := tx.ListPlayers(ctx, older.ID)
		require.NoError(t, err)
		assert.Empty(t, players)
		_, err = tx.GetGame(ctx, older.ID)
		assert.ErrorIs(t, err, store.ErrNotFound)
		return nil
	})
}

func testDeckAndHands(t *testing.T, s store.Store) {
	alice := newUser("alice")
	g := newGame("DDDDDD", now)
	p := newPlayer(g, alice, 0)

	run(t, s, func(ctx context.Context, tx store.Tx) error {
		require.NoError(t, tx.InsertUser(ctx, alice))
		require.NoError(t, tx.InsertGame(ctx, g))
		require.NoError(t, tx.InsertPlayer(ctx, p))
		return tx.InsertDeck(ctx, climb.Deck{GameID: g.ID, DrawPile: []int{5, 6, 7, 8}})
	})

	run(t, s, func(ctx context.Context, tx store.Tx) error {
		hand, err := tx.GetHand(ctx, p.ID)
		require.NoError(t, err)
		assert.NotNil(t, hand.Cards)
		assert.Empty(t, hand.Cards)

		deck, err := tx.GetDeck(ctx, g.ID)
		require.NoError(t, err)
		assert.Equal(t, []int{5, 6, 7, 8}, deck.DrawPile)
		assert.NotNil(t, deck.Discard)

		hand.Cards = deck.Draw(3)
		require.NoError(t, tx.UpsertHand(ctx, hand))
		return tx.UpdateDeck(ctx, deck)
	})

	run(t, s, func(ctx context.Context, tx store.Tx) error {
		hand, err := tx.GetHand(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, []int{5, 6, 7}, hand.Cards)

		hands, err := tx.ListHands(ctx, g.ID)
		require.NoError(t, err)
		assert.Len(t, hands, 1)

		seated, err := tx.ListSeatedPlayers(ctx, g.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, seated[0].CardsInHand)

		deck, err := tx.GetDeck(ctx, g.ID)
		require.NoError(t, err)
		assert.Equal(t, []int{8}, deck.DrawPile)

		require.NoError(t, tx.DeleteHand(ctx, p.ID))
		hands, err = tx.ListHands(ctx, g.ID)
		require.NoError(t, err)
		assert.Empty(t, hands)
		return nil
	})
}

func testChat(t *testing.T, s store.Store) {
	alice := newUser("alice")
	g := newGame("EEEEEE", now)
	p := newPlayer(g, alice, 0)

	run(t, s, func(ctx context.Context, tx store.Tx) error {
		require.NoError(t, tx.InsertUser(ctx, alice))
		require.NoError(t, tx.InsertGame(ctx, g))
		require.NoError(t, tx.InsertPlayer(ctx, p))
		require.NoError(t, tx.InsertChatMessage(ctx, climb.ChatMessage{
			ID: uuid.New(), GameID: g.ID, PlayerID: &p.ID, Message: "second", CreatedAt: now.Add(time.Second),
		}))
		return tx.InsertChatMessage(ctx, climb.ChatMessage{
			ID: uuid.New(), GameID: g.ID, Message: "first", CreatedAt: now,
		})
	})

	run(t, s, func(ctx context.Context, tx store.Tx) error {
		msgs, err := tx.ListChatMessages(ctx, g.ID)
		require.NoError(t, err)
		require.Len(t, msgs, 2)
		assert.Equal(t, "first", msgs[0].Message)
		assert.Nil(t, msgs[0].PlayerID)
		assert.Equal(t, "second", msgs[1].Message)

		require.NoError(t, tx.DeletePlayer(ctx, p.ID))
		msgs, err = tx.ListChatMessages(ctx, g.ID)
		require.NoError(t, err)
		assert.Nil(t, msgs[1].PlayerID)
		return nil
	})
}

func testFinishedCleanup(t *testing.T, s store.Store) {
	alice := newUser("alice")
	stale := newGame("AAAAAA", now.Add(-48*time.Hour))
	stale.Status = climb.StatusFinished
	recent := newGame("BBBBBB", now)
	recent.Status = climb.StatusFinished
	waiting := newGame("CCCCCC", now.Add(-48*time.Hour))
	seat := newPlayer(stale, alice, 0)

	run(t, s, func(ctx context.Context, tx store.Tx) error {
		require.NoError(t, tx.InsertUser(ctx, alice))
		for _, g := range []climb.Game{stale, recent, waiting} {
			require.NoError(t, tx.InsertGame(ctx, g))
		}
		return tx.InsertPlayer(ctx, seat)
	})

	run(t, s, func(ctx context.Context, tx store.Tx) error {
		deleted, err := tx.DeleteFinishedGames(ctx, now.Add(-24*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 1, deleted)

		_, err = tx.GetGame(ctx, stale.ID)
		assert.ErrorIs(t, err, store.ErrNotFound)
		_, err = tx.GetPlayerByUser(ctx, stale.ID, alice.ID)
		assert.ErrorIs(t, err, store.ErrNotFound)
		_, err = tx.GetGame(ctx, recent.ID)
		assert.NoError(t, err)
		_, err = tx.GetGame(ctx, waiting.ID)
		assert.NoError(t, err)
		return nil
	})
}

func testRollback(t *testing.T, s store.Store) {
	boom := errors.New("boom")
	alice := newUser("alice")

	err := s.RunTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		require.NoError(t, tx.InsertUser(ctx, alice))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	run(t, s, func(ctx context.Context, tx store.Tx) error {
		_, err := tx.GetUserByID(ctx, alice.ID)
		assert.ErrorIs(t, err, store.ErrNotFound)
		return nil
	})

	g := newGame("FFFFFF", now)
	p := newPlayer(g, alice, 0)
	run(t, s, func(ctx context.Context, tx store.Tx) error {
		require.NoError(t, tx.InsertUser(ctx, alice))
		require.NoError(t, tx.InsertGame(ctx, g))
		require.NoError(t, tx.InsertPlayer(ctx, p))
		require.NoError(t, tx.InsertDeck(ctx, climb.Deck{GameID: g.ID, DrawPile: []int{1, 2}, Discard: []int{}}))
		require.NoError(t, tx.UpsertHand(ctx, climb.Hand{GameID: g.ID, PlayerID: p.ID, Cards: []int{3}}))
		return tx.InsertChatMessage(ctx, climb.ChatMessage{
			ID: uuid.New(), GameID: g.ID, PlayerID: &p.ID, Message: "hi", CreatedAt: now,
		})
	})

	// Every table touched by a failed transaction keeps its committed rows.
	err = s.RunTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		changed := g
		changed.Status = climb.StatusFinished
		require.NoError(t, tx.UpdateGame(ctx, changed))
		require.NoError(t, tx.UpdateDeck(ctx, climb.Deck{GameID: g.ID, DrawPile: []int{}, Discard: []int{1, 2}}))
		require.NoError(t, tx.InsertChatMessage(ctx, climb.ChatMessage{
			ID: uuid.New(), GameID: g.ID, Message: "lost", CreatedAt: now.Add(time.Second),
		}))
		require.NoError(t, tx.DeletePlayer(ctx, p.ID))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	run(t, s, func(ctx context.Context, tx store.Tx) error {
		got, err := tx.GetGame(ctx, g.ID)
		require.NoError(t, err)
		assert.Equal(t, climb.StatusWaiting, got.Status)

		deck, err := tx.GetDeck(ctx, g.ID)
		require.NoError(t, err)
		assert.Equal(t, []int{1, 2}, deck.DrawPile)

		hand, err := tx.GetHand(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, []int{3}, hand.Cards)

		msgs, err := tx.ListChatMessages(ctx, g.ID)
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		assert.Equal(t, "hi", msgs[0].Message)
		require.NotNil(t, msgs[0].PlayerID)
		assert.Equal(t, p.ID, *msgs[0].PlayerID)
		return nil
	})
}

func TestWithTx(t *testing.T) {
	s := store.NewMemory()
	alice := newUser("alice")

	got, err := store.WithTx(context.Background(), s, func(ctx context.Context, tx store.Tx) (climb.User, error) {
		if err := tx.InsertUser(ctx, alice); err != nil {
			return climb.User{}, err
		}
		return tx.GetUserByID(ctx, alice.ID)
	})

	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
}
