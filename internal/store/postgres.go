package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"climb-server/internal/climb"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const maxTxAttempts = 3

// Postgres is a Store backed by a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// RunTx retries fn when Postgres aborts the transaction with a serialization
// failure or a deadlock.
func (p *Postgres) RunTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = pgx.BeginTxFunc(ctx, p.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
			return fn(ctx, &pgTx{tx: tx})
		})
		if !retryable(err) {
			return err
		}
		log.Printf("Transaction attempt %d aborted, retrying: %v", attempt, err)
	}
	return err
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *Postgres) Close() {
	p.pool.Close()
}

func retryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}

// mapErr turns driver errors into the package sentinels.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", ErrConflict, pgErr.ConstraintName)
	}
	return err
}

func expectOne(tag pgconn.CommandTag, err error) error {
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type pgTx struct {
	tx pgx.Tx
}

const userColumns = `id, username, email, password_hash, created_at`

func scanUser(row pgx.Row) (climb.User, error) {
	var u climb.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt)
	return u, mapErr(err)
}

func (t *pgTx) InsertUser(ctx context.Context, u climb.User) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES ($1, $2, $3, $4, $5)`,
		u.ID, u.Username, u.Email, u.PasswordHash, u.CreatedAt)
	return mapErr(err)
}

func (t *pgTx) GetUserByID(ctx context.Context, id uuid.UUID) (climb.User, error) {
	return scanUser(t.tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (t *pgTx) GetUserByUsername(ctx context.Context, username string) (climb.User, error) {
	return scanUser(t.tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username))
}

func (t *pgTx) LockUser(ctx context.Context, id uuid.UUID) error {
	var locked uuid.UUID
	err := t.tx.QueryRow(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
	return mapErr(err)
}

func (t *pgTx) InsertSession(ctx context.Context, s climb.Session) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO sessions (id, user_id, device_id, token, last_activity_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		s.ID, s.UserID, s.DeviceID, s.Token, s.LastActivityAt, s.CreatedAt)
	return mapErr(err)
}

func (t *pgTx) GetSessionByToken(ctx context.Context, token string) (climb.Session, error) {
	var s climb.Session
	err := t.tx.QueryRow(ctx, `
		SELECT id, user_id, device_id, token, last_activity_at, created_at
		FROM sessions WHERE token = $1`, token).
		Scan(&s.ID, &s.UserID, &s.DeviceID, &s.Token, &s.LastActivityAt, &s.CreatedAt)
	return s, mapErr(err)
}

func (t *pgTx) DeleteSessionsForUser(ctx context.Context, userID uuid.UUID) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
	return mapErr(err)
}

const gameColumns = `id, code, max_players, status, current_turn_index, board_size,
	is_started, is_public, winner_player_id, created_at, updated_at`

func scanGame(row pgx.Row) (climb.Game, error) {
	var g climb.Game
	err := row.Scan(&g.ID, &g.Code, &g.MaxPlayers, &g.Status, &g.CurrentTurnIndex, &g.BoardSize,
		&g.IsStarted, &g.IsPublic, &g.WinnerPlayerID, &g.CreatedAt, &g.UpdatedAt)
	return g, mapErr(err)
}

func collectGames(rows pgx.Rows, err error) ([]climb.Game, error) {
	if err != nil {
		return nil, mapErr(err)
	}
	games, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (climb.Game, error) {
		return scanGame(row)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read games: %w", err)
	}
	return games, nil
}

func (t *pgTx) InsertGame(ctx context.Context, g climb.Game) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO games (`+gameColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		g.ID, g.Code, g.MaxPlayers, g.Status, g.CurrentTurnIndex, g.BoardSize,
		g.IsStarted, g.IsPublic, g.WinnerPlayerID, g.CreatedAt, g.UpdatedAt)
	return mapErr(err)
}

func (t *pgTx) GetGame(ctx context.Context, id uuid.UUID) (climb.Game, error) {
	return scanGame(t.tx.QueryRow(ctx, `SELECT `+gameColumns+` FROM games WHERE id = $1`, id))
}

func (t *pgTx) LockGame(ctx context.Context, id uuid.UUID) (climb.Game, error) {
	return scanGame(t.tx.QueryRow(ctx, `SELECT `+gameColumns+` FROM games WHERE id = $1 FOR UPDATE`, id))
}

func (t *pgTx) GetGameByCode(ctx context.Context, code string) (climb.Game, error) {
	return scanGame(t.tx.QueryRow(ctx, `SELECT `+gameColumns+` FROM games WHERE code = $1`, code))
}

func (t *pgTx) CodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM games WHERE code = $1)`, code).Scan(&exists)
	return exists, mapErr(err)
}

func (t *pgTx) ListWaitingGames(ctx context.Context, publicOnly bool) ([]climb.Game, error) {
	return collectGames(t.tx.Query(ctx, `
		SELECT `+gameColumns+` FROM games
		WHERE status = $1 AND (is_public OR NOT $2)
		ORDER BY created_at, id`, climb.StatusWaiting, publicOnly))
}

func (t *pgTx) ListActiveGamesForUser(ctx context.Context, userID uuid.UUID) ([]climb.Game, error) {
	return collectGames(t.tx.Query(ctx, `
		SELECT `+gameColumns+` FROM games
		WHERE status <> $1 AND id IN (SELECT game_id FROM players WHERE user_id = $2)
		ORDER BY created_at, id`, climb.StatusFinished, userID))
}

func (t *pgTx) UpdateGame(ctx context.Context, g climb.Game) error {
	return expectOne(t.tx.Exec(ctx, `
		UPDATE games SET max_players = $2, status = $3, current_turn_index = $4, board_size = $5,
			is_started = $6, is_public = $7, winner_player_id = $8, updated_at = $9
		WHERE id = $1`,
		g.ID, g.MaxPlayers, g.Status, g.CurrentTurnIndex, g.BoardSize,
		g.IsStarted, g.IsPublic, g.WinnerPlayerID, g.UpdatedAt))
}

func (t *pgTx) DeleteGame(ctx context.Context, id uuid.UUID) error {
	return expectOne(t.tx.Exec(ctx, `DELETE FROM games WHERE id = $1`, id))
}

func (t *pgTx) DeleteFinishedGames(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := t.tx.Exec(ctx, `DELETE FROM games WHERE status = 'FINISHED' AND updated_at < $1`, cutoff)
	if err != nil {
		return 0, mapErr(err)
	}
	return int(tag.RowsAffected()), nil
}

const playerColumns = `id, game_id, user_id, player_index, character_id, position, is_ready, connected, created_at`

func scanPlayer(row pgx.Row) (climb.Player, error) {
	var p climb.Player
	err := row.Scan(&p.ID, &p.GameID, &p.UserID, &p.PlayerIndex, &p.Character, &p.Position,
		&p.IsReady, &p.Connected, &p.CreatedAt)
	return p, mapErr(err)
}

func (t *pgTx) InsertPlayer(ctx context.Context, p climb.Player) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO players (`+playerColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID, p.GameID, p.UserID, p.PlayerIndex, p.Character, p.Position, p.IsReady, p.Connected, p.CreatedAt)
	return mapErr(err)
}

func (t *pgTx) UpdatePlayer(ctx context.Context, p climb.Player) error {
	return expectOne(t.tx.Exec(ctx, `
		UPDATE players SET player_index = $2, character_id = $3, position = $4, is_ready = $5, connected = $6
		WHERE id = $1`,
		p.ID, p.PlayerIndex, p.Character, p.Position, p.IsReady, p.Connected))
}

func (t *pgTx) DeletePlayer(ctx context.Context, id uuid.UUID) error {
	return expectOne(t.tx.Exec(ctx, `DELETE FROM players WHERE id = $1`, id))
}

func (t *pgTx) ListPlayers(ctx context.Context, gameID uuid.UUID) ([]climb.Player, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT `+playerColumns+` FROM players WHERE game_id = $1 ORDER BY player_index`, gameID)
	if err != nil {
		return nil, mapErr(err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (climb.Player, error) {
		return scanPlayer(row)
	})
}

func (t *pgTx) ListSeatedPlayers(ctx context.Context, gameID uuid.UUID) ([]climb.SeatedPlayer, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT p.id, p.game_id, p.user_id, p.player_index, p.character_id, p.position,
			p.is_ready, p.connected, p.created_at, u.username, COALESCE(cardinality(h.cards), 0)
		FROM players p
		JOIN users u ON u.id = p.user_id
		LEFT JOIN hands h ON h.player_id = p.id
		WHERE p.game_id = $1
		ORDER BY p.player_index`, gameID)
	if err != nil {
		return nil, mapErr(err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (climb.SeatedPlayer, error) {
		var sp climb.SeatedPlayer
		err := row.Scan(&sp.ID, &sp.GameID, &sp.UserID, &sp.PlayerIndex, &sp.Character, &sp.Position,
			&sp.IsReady, &sp.Connected, &sp.CreatedAt, &sp.Username, &sp.CardsInHand)
		return sp, err
	})
}

func (t *pgTx) GetPlayerByUser(ctx context.Context, gameID, userID uuid.UUID) (climb.Player, error) {
	return scanPlayer(t.tx.QueryRow(ctx,
		`SELECT `+playerColumns+` FROM players WHERE game_id = $1 AND user_id = $2`, gameID, userID))
}

func (t *pgTx) FindActiveSeat(ctx context.Context, userID uuid.UUID) (climb.Player, error) {
	return scanPlayer(t.tx.QueryRow(ctx, `
		SELECT `+playerColumns+` FROM players
		WHERE user_id = $1 AND game_id IN (SELECT id FROM games WHERE status <> $2)
		LIMIT 1`, userID, climb.StatusFinished))
}

func (t *pgTx) InsertDeck(ctx context.Context, d climb.Deck) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO decks (game_id, draw_pile, discard) VALUES ($1, $2, $3)`,
		d.GameID, cards(d.DrawPile), cards(d.Discard))
	return mapErr(err)
}

func (t *pgTx) GetDeck(ctx context.Context, gameID uuid.UUID) (climb.Deck, error) {
	d := climb.Deck{GameID: gameID}
	err := t.tx.QueryRow(ctx, `SELECT draw_pile, discard FROM decks WHERE game_id = $1`, gameID).
		Scan(&d.DrawPile, &d.Discard)
	d.DrawPile, d.Discard = cards(d.DrawPile), cards(d.Discard)
	return d, mapErr(err)
}

func (t *pgTx) UpdateDeck(ctx context.Context, d climb.Deck) error {
	return expectOne(t.tx.Exec(ctx, `UPDATE decks SET draw_pile = $2, discard = $3 WHERE game_id = $1`,
		d.GameID, cards(d.DrawPile), cards(d.Discard)))
}

func (t *pgTx) GetHand(ctx context.Context, playerID uuid.UUID) (climb.Hand, error) {
	h := climb.Hand{PlayerID: playerID}
	err := t.tx.QueryRow(ctx, `
		SELECT p.game_id, COALESCE(h.cards, '{}')
		FROM players p LEFT JOIN hands h ON h.player_id = p.id
		WHERE p.id = $1`, playerID).Scan(&h.GameID, &h.Cards)
	h.Cards = cards(h.Cards)
	return h, mapErr(err)
}

func (t *pgTx) UpsertHand(ctx context.Context, h climb.Hand) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO hands (player_id, game_id, cards) VALUES ($1, $2, $3)
		ON CONFLICT (player_id) DO UPDATE SET cards = EXCLUDED.cards`,
		h.PlayerID, h.GameID, cards(h.Cards))
	return mapErr(err)
}

func (t *pgTx) DeleteHand(ctx context.Context, playerID uuid.UUID) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM hands WHERE player_id = $1`, playerID)
	return mapErr(err)
}

func (t *pgTx) ListHands(ctx context.Context, gameID uuid.UUID) ([]climb.Hand, error) {
	rows, err := t.tx.Query(ctx, `SELECT player_id, game_id, cards FROM hands WHERE game_id = $1`, gameID)
	if err != nil {
		return nil, mapErr(err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (climb.Hand, error) {
		var h climb.Hand
		err := row.Scan(&h.PlayerID, &h.GameID, &h.Cards)
		h.Cards = cards(h.Cards)
		return h, err
	})
}

func (t *pgTx) InsertChatMessage(ctx context.Context, m climb.ChatMessage) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO chat_messages (id, game_id, player_id, message, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		m.ID, m.GameID, m.PlayerID, m.Message, m.CreatedAt)
	return mapErr(err)
}

func (t *pgTx) ListChatMessages(ctx context.Context, gameID uuid.UUID) ([]climb.ChatMessage, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id, game_id, player_id, message, created_at
		FROM chat_messages WHERE game_id = $1
		ORDER BY created_at, id`, gameID)
	if err != nil {
		return nil, mapErr(err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (climb.ChatMessage, error) {
		var m climb.ChatMessage
		err := row.Scan(&m.ID, &m.GameID, &m.PlayerID, &m.Message, &m.CreatedAt)
		return m, err
	})
}
