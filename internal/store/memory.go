package store

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"
	"time"

	"climb-server/internal/climb"

	"github.com/google/uuid"
)

// Memory is an in-process Store for development and tests. Transactions run
// one at a time. Each one starts from the committed tables and copies a table
// only when it first writes to it; the result replaces the committed data on
// commit.
type Memory struct {
	mu   sync.Mutex
	data *memData
}

type memData struct {
	users    map[uuid.UUID]climb.User
	sessions map[uuid.UUID]climb.Session
	games    map[uuid.UUID]climb.Game
	players  map[uuid.UUID]climb.Player
	decks    map[uuid.UUID]climb.Deck
	hands    map[uuid.UUID]climb.Hand
	chat     []climb.ChatMessage
}

func NewMemory() *Memory {
	return &Memory{data: &memData{
		users:    make(map[uuid.UUID]climb.User),
		sessions: make(map[uuid.UUID]climb.Session),
		games:    make(map[uuid.UUID]climb.Game),
		players:  make(map[uuid.UUID]climb.Player),
		decks:    make(map[uuid.UUID]climb.Deck),
		hands:    make(map[uuid.UUID]climb.Hand),
	}}
}

// Deck and hand values are cloned on the way in and out, so a shallow map
// copy never shares card slices with a caller.
func cloneDeck(d climb.Deck) climb.Deck {
	d.DrawPile = cards(slices.Clone(d.DrawPile))
	d.Discard = cards(slices.Clone(d.Discard))
	return d
}

func cloneHand(h climb.Hand) climb.Hand {
	h.Cards = cards(slices.Clone(h.Cards))
	return h
}

func (m *Memory) RunTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memTx{d: *m.data}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	m.data = &tx.d
	return nil
}

func (m *Memory) Ping(ctx context.Context) error { return ctx.Err() }

func (m *Memory) Close() {}

type table uint8

const (
	tableUsers table = 1 << iota
	tableSessions
	tableGames
	tablePlayers
	tableDecks
	tableHands
	tableChat
)

type memTx struct {
	d     memData
	owned table
}

// own gives the transaction a private copy of the named tables before its
// first write to them. Chat inserts only append, so they skip the copy.
func (t *memTx) own(tables table) {
	missing := tables &^ t.owned
	t.owned |= tables
	if missing&tableUsers != 0 {
		t.d.users = maps.Clone(t.d.users)
	}
	if missing&tableSessions != 0 {
		t.d.sessions = maps.Clone(t.d.sessions)
	}
	if missing&tableGames != 0 {
		t.d.games = maps.Clone(t.d.games)
	}
	if missing&tablePlayers != 0 {
		t.d.players = maps.Clone(t.d.players)
	}
	if missing&tableDecks != 0 {
		t.d.decks = maps.Clone(t.d.decks)
	}
	if missing&tableHands != 0 {
		t.d.hands = maps.Clone(t.d.hands)
	}
	if missing&tableChat != 0 {
		t.d.chat = slices.Clone(t.d.chat)
	}
}

func (t *memTx) InsertUser(_ context.Context, u climb.User) error {
	for _, existing := range t.d.users {
		if existing.Username == u.Username || (u.Email != "" && existing.Email == u.Email) {
			return ErrConflict
		}
	}
	t.own(tableUsers)
	t.d.users[u.ID] = u
	return nil
}

func (t *memTx) GetUserByID(_ context.Context, id uuid.UUID) (climb.User, error) {
	u, ok := t.d.users[id]
	if !ok {
		return climb.User{}, ErrNotFound
	}
	return u, nil
}

func (t *memTx) GetUserByUsername(_ context.Context, username string) (climb.User, error) {
	for _, u := range t.d.users {
		if u.Username == username {
			return u, nil
		}
	}
	return climb.User{}, ErrNotFound
}

func (t *memTx) LockUser(_ context.Context, id uuid.UUID) error {
	if _, ok := t.d.users[id]; !ok {
		return ErrNotFound
	}
	return nil
}

func (t *memTx) InsertSession(_ context.Context, s climb.Session) error {
	for _, existing := range t.d.sessions {
		if existing.Token == s.Token {
			return ErrConflict
		}
	}
	t.own(tableSessions)
	t.d.sessions[s.ID] = s
	return nil
}

func (t *memTx) GetSessionByToken(_ context.Context, token string) (climb.Session, error) {
	for _, s := range t.d.sessions {
		if s.Token == token {
			return s, nil
		}
	}
	return climb.Session{}, ErrNotFound
}

func (t *memTx) DeleteSessionsForUser(_ context.Context, userID uuid.UUID) error {
	t.own(tableSessions)
	maps.DeleteFunc(t.d.sessions, func(_ uuid.UUID, s climb.Session) bool {
		return s.UserID == userID
	})
	return nil
}

func (t *memTx) InsertGame(_ context.Context, g climb.Game) error {
	for _, existing := range t.d.games {
		if existing.Code == g.Code {
			return ErrConflict
		}
	}
	t.own(tableGames)
	t.d.games[g.ID] = g
	return nil
}

func (t *memTx) GetGame(_ context.Context, id uuid.UUID) (climb.Game, error) {
	g, ok := t.d.games[id]
	if !ok {
		return climb.Game{}, ErrNotFound
	}
	return g, nil
}

func (t *memTx) LockGame(ctx context.Context, id uuid.UUID) (climb.Game, error) {
	return t.GetGame(ctx, id)
}

func (t *memTx) GetGameByCode(_ context.Context, code string) (climb.Game, error) {
	for _, g := range t.d.games {
		if g.Code == code {
			return g, nil
		}
	}
	return climb.Game{}, ErrNotFound
}

func (t *memTx) CodeExists(ctx context.Context, code string) (bool, error) {
	_, err := t.GetGameByCode(ctx, code)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func sortGames(games []climb.Game) {
	slices.SortFunc(games, func(a, b climb.Game) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return slices.Compare(a.ID[:], b.ID[:])
	})
}

func (t *memTx) ListWaitingGames(_ context.Context, publicOnly bool) ([]climb.Game, error) {
	var out []climb.Game
	for _, g := range t.d.games {
		if g.Status == climb.StatusWaiting && (!publicOnly || g.IsPublic) {
			out = append(out, g)
		}
	}
	sortGames(out)
	return out, nil
}

func (t *memTx) ListActiveGamesForUser(_ context.Context, userID uuid.UUID) ([]climb.Game, error) {
	var out []climb.Game
	for _, p := range t.d.players {
		if p.UserID != userID {
			continue
		}
		if g, ok := t.d.games[p.GameID]; ok && g.Active() {
			out = append(out, g)
		}
	}
	sortGames(out)
	return out, nil
}

func (t *memTx) UpdateGame(_ context.Context, g climb.Game) error {
	if _, ok := t.d.games[g.ID]; !ok {
		return ErrNotFound
	}
	t.own(tableGames)
	t.d.games[g.ID] = g
	return nil
}

func (t *memTx) DeleteGame(_ context.Context, id uuid.UUID) error {
	if _, ok := t.d.games[id]; !ok {
		return ErrNotFound
	}
	t.own(tableGames | tableDecks | tablePlayers | tableHands | tableChat)
	delete(t.d.games, id)
	delete(t.d.decks, id)
	maps.DeleteFunc(t.d.players, func(_ uuid.UUID, p climb.Player) bool { return p.GameID == id })
	maps.DeleteFunc(t.d.hands, func(_ uuid.UUID, h climb.Hand) bool { return h.GameID == id })
	t.d.chat = slices.DeleteFunc(t.d.chat, func(m climb.ChatMessage) bool { return m.GameID == id })
	return nil
}

func (t *memTx) DeleteFinishedGames(ctx context.Context, cutoff time.Time) (int, error) {
	var stale []uuid.UUID
	for id, g := range t.d.games {
		if g.Status == climb.StatusFinished && g.UpdatedAt.Before(cutoff) {
			stale = append(stale, id)
		}
	}
	for _, id := range stale {
		if err := t.DeleteGame(ctx, id); err != nil {
			return 0, err
		}
	}
	return len(stale), nil
}

func (t *memTx) InsertPlayer(_ context.Context, p climb.Player) error {
	if _, ok := t.d.games[p.GameID]; !ok {
		return ErrNotFound
	}
	for _, existing := range t.d.players {
		if existing.GameID == p.GameID && existing.UserID == p.UserID {
			return ErrConflict
		}
	}
	t.own(tablePlayers)
	t.d.players[p.ID] = p
	return nil
}

func (t *memTx) UpdatePlayer(_ context.Context, p climb.Player) error {
	if _, ok := t.d.players[p.ID]; !ok {
		return ErrNotFound
	}
	t.own(tablePlayers)
	t.d.players[p.ID] = p
	return nil
}

func (t *memTx) DeletePlayer(_ context.Context, id uuid.UUID) error {
	if _, ok := t.d.players[id]; !ok {
		return ErrNotFound
	}
	t.own(tablePlayers | tableHands | tableChat)
	delete(t.d.players, id)
	delete(t.d.hands, id)
	for i := range t.d.chat {
		if pid := t.d.chat[i].PlayerID; pid != nil && *pid == id {
			t.d.chat[i].PlayerID = nil
		}
	}
	return nil
}

func (t *memTx) ListPlayers(_ context.Context, gameID uuid.UUID) ([]climb.Player, error) {
	var out []climb.Player
	for _, p := range t.d.players {
		if p.GameID == gameID {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b climb.Player) int { return a.PlayerIndex - b.PlayerIndex })
	return out, nil
}

func (t *memTx) ListSeatedPlayers(ctx context.Context, gameID uuid.UUID) ([]climb.SeatedPlayer, error) {
	players, _ := t.ListPlayers(ctx, gameID)
	out := make([]climb.SeatedPlayer, 0, len(players))
	for _, p := range players {
		out = append(out, climb.SeatedPlayer{
			Player:      p,
			Username:    t.d.users[p.UserID].Username,
			CardsInHand: len(t.d.hands[p.ID].Cards),
		})
	}
	return out, nil
}

func (t *memTx) GetPlayerByUser(_ context.Context, gameID, userID uuid.UUID) (climb.Player, error) {
	for _, p := range t.d.players {
		if p.GameID == gameID && p.UserID == userID {
			return p, nil
		}
	}
	return climb.Player{}, ErrNotFound
}

func (t *memTx) FindActiveSeat(_ context.Context, userID uuid.UUID) (climb.Player, error) {
	for _, p := range t.d.players {
		if p.UserID != userID {
			continue
		}
		if g, ok := t.d.games[p.GameID]; ok && g.Active() {
			return p, nil
		}
	}
	return climb.Player{}, ErrNotFound
}

func (t *memTx) InsertDeck(_ context.Context, d climb.Deck) error {
	if _, ok := t.d.decks[d.GameID]; ok {
		return ErrConflict
	}
	t.own(tableDecks)
	t.d.decks[d.GameID] = cloneDeck(d)
	return nil
}

func (t *memTx) GetDeck(_ context.Context, gameID uuid.UUID) (climb.Deck, error) {
	d, ok := t.d.decks[gameID]
	if !ok {
		return climb.Deck{}, ErrNotFound
	}
	return cloneDeck(d), nil
}

func (t *memTx) UpdateDeck(_ context.Context, d climb.Deck) error {
	if _, ok := t.d.decks[d.GameID]; !ok {
		return ErrNotFound
	}
	t.own(tableDecks)
	t.d.decks[d.GameID] = cloneDeck(d)
	return nil
}

func (t *memTx) GetHand(_ context.Context, playerID uuid.UUID) (climb.Hand, error) {
	h, ok := t.d.hands[playerID]
	if !ok {
		p, seated := t.d.players[playerID]
		if !seated {
			return climb.Hand{}, ErrNotFound
		}
		return climb.Hand{GameID: p.GameID, PlayerID: playerID, Cards: []int{}}, nil
	}
	return cloneHand(h), nil
}

func (t *memTx) UpsertHand(_ context.Context, h climb.Hand) error {
	if _, ok := t.d.players[h.PlayerID]; !ok {
		return ErrNotFound
	}
	t.own(tableHands)
	t.d.hands[h.PlayerID] = cloneHand(h)
	return nil
}

func (t *memTx) DeleteHand(_ context.Context, playerID uuid.UUID) error {
	t.own(tableHands)
	delete(t.d.hands, playerID)
	return nil
}

func (t *memTx) ListHands(_ context.Context, gameID uuid.UUID) ([]climb.Hand, error) {
	var out []climb.Hand
	for _, h := range t.d.hands {
		if h.GameID == gameID {
			out = append(out, cloneHand(h))
		}
	}
	return out, nil
}

func (t *memTx) InsertChatMessage(_ context.Context, m climb.ChatMessage) error {
	if _, ok := t.d.games[m.GameID]; !ok {
		return ErrNotFound
	}
	t.d.chat = append(t.d.chat, m)
	return nil
}

func (t *memTx) ListChatMessages(_ context.Context, gameID uuid.UUID) ([]climb.ChatMessage, error) {
	var out []climb.ChatMessage
	for _, m := range t.d.chat {
		if m.GameID == gameID {
			out = append(out, m)
		}
	}
	slices.SortStableFunc(out, func(a, b climb.ChatMessage) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}
