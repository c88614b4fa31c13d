package game_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"climb-server/internal/climb"
	"climb-server/internal/climb/climbtest"
	"climb-server/internal/game"
	"climb-server/internal/store"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu      sync.Mutex
	updates []uuid.UUID
	events  []game.Event
	direct  map[uuid.UUID][]game.Event
	left    []uuid.UUID
}

func newRecorder() *recorder {
	return &recorder{direct: make(map[uuid.UUID][]game.Event)}
}

func (r *recorder) GameUpdated(_ context.Context, gameID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, gameID)
}

func (r *recorder) Publish(_ context.Context, _, _ uuid.UUID, event game.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recorder) PublishTo(_ context.Context, _, userID uuid.UUID, event game.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.direct[userID] = append(r.direct[userID], event)
}

func (r *recorder) PlayerLeft(_ context.Context, _, userID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.left = append(r.left, userID)
}

func (r *recorder) updateCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.updates)
}

func (r *recorder) eventTypes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

// clock hands out strictly increasing timestamps.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type fixture struct {
	svc   *game.Service
	store store.Store
	rec   *recorder
	rng   *climbtest.Scripted
}

func newFixture(t *testing.T, opts ...game.Option) *fixture {
	t.Helper()
	return newFixtureWithStore(t, store.NewMemory(), opts...)
}

func newFixtureWithStore(t *testing.T, s store.Store, opts ...game.Option) *fixture {
	t.Helper()
	rec := newRecorder()
	rng := climbtest.NewScripted()
	c := &clock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	opts = append([]game.Option{game.WithRandom(rng), game.WithClock(c.Now)}, opts...)
	return &fixture{
		svc:   game.NewService(s, rec, opts...),
		store: s,
		rec:   rec,
		rng:   rng,
	}
}

func (f *fixture) user(t *testing.T, name string) uuid.UUID {
	t.Helper()
	u := climb.User{
		ID:           uuid.New(),
		Username:     name,
		Email:        name + "@example.com",
		PasswordHash: "x",
		CreatedAt:    time.Now(),
	}
	require.NoError(t, f.store.RunTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		return tx.InsertUser(ctx, u)
	}))
	return u.ID
}

// startedGame returns a two-player game that is already IN_PROGRESS.
func (f *fixture) startedGame(t *testing.T) (climb.Game, uuid.UUID, uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	u1, u2 := f.user(t, "alice"), f.user(t, "bob")

	g, err := f.svc.CreateRoom(ctx, u1, 2, true)
	require.NoError(t, err)
	g, err = f.svc.JoinByCode(ctx, u2, g.Code)
	require.NoError(t, err)
	require.Equal(t, climb.StatusInProgress, g.Status)
	return g, u1, u2
}

type tableState struct {
	deck    climb.Deck
	hands   []climb.Hand
	players []climb.Player
}

func (f *fixture) table(t *testing.T, gameID uuid.UUID) tableState {
	t.Helper()
	var ts tableState
	require.NoError(t, f.store.RunTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		var err error
		if ts.deck, err = tx.GetDeck(ctx, gameID); err != nil {
			return err
		}
		if ts.hands, err = tx.ListHands(ctx, gameID); err != nil {
			return err
		}
		ts.players, err = tx.ListPlayers(ctx, gameID)
		return err
	}))
	return ts
}

func (f *fixture) setDeck(t *testing.T, gameID uuid.UUID, draw, discard []int) {
	t.Helper()
	require.NoError(t, f.store.RunTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		return tx.UpdateDeck(ctx, climb.Deck{GameID: gameID, DrawPile: draw, Discard: discard})
	}))
}

func (f *fixture) setHand(t *testing.T, gameID, userID uuid.UUID, cards ...int) {
	t.Helper()
	require.NoError(t, f.store.RunTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		p, err := tx.GetPlayerByUser(ctx, gameID, userID)
		if err != nil {
			return err
		}
		return tx.UpsertHand(ctx, climb.Hand{GameID: gameID, PlayerID: p.ID, Cards: cards})
	}))
}

func (f *fixture) setPosition(t *testing.T, gameID, userID uuid.UUID, position int) {
	t.Helper()
	require.NoError(t, f.store.RunTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		p, err := tx.GetPlayerByUser(ctx, gameID, userID)
		if err != nil {
			return err
		}
		p.Position = position
		return tx.UpdatePlayer(ctx, p)
	}))
}

func assertConserved(t *testing.T, ts tableState) {
	t.Helper()
	total := len(ts.deck.DrawPile) + len(ts.deck.Discard)
	for _, h := range ts.hands {
		total += len(h.Cards)
		assert.LessOrEqual(t, len(h.Cards), climb.HandSize)
	}
	assert.Equal(t, climb.DeckSize, total, "cards must be conserved")
}

func assertDense(t *testing.T, ts tableState) {
	t.Helper()
	assert.True(t, climb.IndexesDense(ts.players), "player indexes must be 0..n-1")
}
