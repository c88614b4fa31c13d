package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"climb-server/internal/climb/climbtest"
	"climb-server/internal/config"
	"climb-server/internal/game"
	"climb-server/internal/store"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:   "test-secret",
		JWTIssuer:   "climb-test",
		JWTAudience: "climb-test-clients",
		TokenTTL:    time.Hour,
		HTTPRate:    1000,
		HTTPBurst:   1000,
		WSRate:      1000,
		WSBurst:     1000,
	}
}

// setupTestServer starts the full HTTP stack over an in-memory store.
func setupTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	s := New(testConfig(), store.NewMemory(), nil, game.WithRandom(climbtest.NewScripted()))
	server := httptest.NewServer(s.RegisterRoutes())
	t.Cleanup(func() {
		_ = s.Shutdown(context.Background())
		server.Close()
		s.Close()
	})
	return s, server
}

func mustMarshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}

func doJSON(t *testing.T, method, url, token string, body any) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(mustMarshal(body))
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func registerUser(t *testing.T, server *httptest.Server, name string) AuthResponse {
	t.Helper()
	resp := doJSON(t, http.MethodPost, server.URL+"/users/register", "", RegisterRequest{
		Username: name,
		Email:    name + "@example.com",
		Password: "secret1",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decodeBody[AuthResponse](t, resp)
}

func createGame(t *testing.T, server *httptest.Server, token string, maxPlayers int) GameView {
	t.Helper()
	resp := doJSON(t, http.MethodPost, server.URL+"/games/create", token, CreateGameRequest{MaxPlayers: maxPlayers})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decodeBody[GameResponse](t, resp).Game
}

func joinGame(t *testing.T, server *httptest.Server, token, code string) GameView {
	t.Helper()
	resp := doJSON(t, http.MethodPost, server.URL+"/games/join", token, JoinGameRequest{Code: code})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return decodeBody[GameResponse](t, resp).Game
}

// startedGame returns a running two-player game. alice holds turn 0.
func startedGame(t *testing.T, server *httptest.Server) (GameView, AuthResponse, AuthResponse) {
	t.Helper()
	alice := registerUser(t, server, "alice")
	bob := registerUser(t, server, "bob")
	g := createGame(t, server, alice.Token, 2)
	g = joinGame(t, server, bob.Token, g.Code)
	require.Equal(t, "IN_PROGRESS", string(g.Status))
	return g, alice, bob
}

func wsURL(server *httptest.Server, gameID uuid.UUID, token string) string {
	return fmt.Sprintf("ws%s/ws/game/%s?token=%s", strings.TrimPrefix(server.URL, "http"), gameID, token)
}

func dialGame(t *testing.T, server *httptest.Server, gameID uuid.UUID, token string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, wsURL(server, gameID, token), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

// wireMessage is ServerMessage as a client decodes it.
type wireMessage struct {
	Type      string          `json:"type"`
	GameID    uuid.UUID       `json:"gameId"`
	Game      *GameView       `json:"game"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp int64           `json:"timestamp"`
}

func send(t *testing.T, conn *websocket.Conn, msgType string, payload any) {
	t.Helper()
	msg := ClientMessage{Type: msgType}
	if payload != nil {
		msg.Payload = mustMarshal(payload)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, conn.Write(ctx, websocket.MessageText, mustMarshal(msg)))
}

func readMessage(t *testing.T, conn *websocket.Conn) wireMessage {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var msg wireMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

// readUntil skips messages until one of msgType arrives and returns it along
// with the types skipped on the way.
func readUntil(t *testing.T, conn *websocket.Conn, msgType string) (wireMessage, []string) {
	t.Helper()
	var skipped []string
	for {
		msg := readMessage(t, conn)
		if msg.Type == msgType {
			return msg, skipped
		}
		skipped = append(skipped, msg.Type)
	}
}

// readGameUpdate waits for a game_updated push matching ok.
func readGameUpdate(t *testing.T, conn *websocket.Conn, ok func(GameView) bool) GameView {
	t.Helper()
	for {
		msg, _ := readUntil(t, conn, MsgGameUpdated)
		require.NotNil(t, msg.Game)
		if ok(*msg.Game) {
			return *msg.Game
		}
	}
}

func decodePayloadAs[T any](t *testing.T, msg wireMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(msg.Payload, &v))
	return v
}

func playerOf(g GameView, userID uuid.UUID) PlayerView {
	for _, p := range g.Players {
		if p.UserID == userID {
			return p
		}
	}
	return PlayerView{}
}
