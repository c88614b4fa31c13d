package server

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"climb-server/internal/game"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func messageTypes(t *testing.T, raw []string) []string {
	t.Helper()
	types := make([]string, 0, len(raw))
	for _, m := range raw {
		var msg wireMessage
		require.NoError(t, json.Unmarshal([]byte(m), &msg))
		types = append(types, msg.Type)
	}
	return types
}

// A caller that hangs up after its change committed must not cost the other
// players their update.
func TestNotifier_IgnoresCallerCancellation(t *testing.T) {
	assert := assert.New(t)
	s, server := setupTestServer(t)
	g, alice, bob := startedGame(t, server)

	bobSession := &fakeSession{}
	s.registry.Register(g.ID, bob.User.ID, bobSession)
	n := NewNotifier(s.registry, s.store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n.Publish(ctx, g.ID, alice.User.ID, game.Event{Type: game.EventDiceRolled, Payload: game.DiceResult{}})
	n.GameUpdated(ctx, g.ID)
	n.PublishTo(ctx, g.ID, bob.User.ID, game.Event{Type: game.EventCardDrawn, Payload: game.DrawResult{}})

	assert.Equal([]string{game.EventDiceRolled, MsgGameUpdated, game.EventCardDrawn}, messageTypes(t, bobSession.messages()))

	var update wireMessage
	require.NoError(t, json.Unmarshal([]byte(bobSession.messages()[1]), &update))
	require.NotNil(t, update.Game)
	assert.Equal(g.ID, update.Game.ID)
	assert.Len(update.Game.Players, 2)
}

func TestNotifier_PublishExcludes(t *testing.T) {
	s, server := setupTestServer(t)
	g, alice, bob := startedGame(t, server)

	aliceSession, bobSession := &fakeSession{}, &fakeSession{}
	s.registry.Register(g.ID, alice.User.ID, aliceSession)
	s.registry.Register(g.ID, bob.User.ID, bobSession)
	n := NewNotifier(s.registry, s.store)

	n.Publish(context.Background(), g.ID, alice.User.ID, game.Event{Type: game.EventChatMessage, Payload: "hi"})

	assert.Empty(t, aliceSession.messages())
	assert.Equal(t, []string{game.EventChatMessage}, messageTypes(t, bobSession.messages()))
}

func TestNotifier_PlayerLeftClosesSession(t *testing.T) {
	s, server := setupTestServer(t)
	g, _, bob := startedGame(t, server)

	bobSession := &fakeSession{}
	s.registry.Register(g.ID, bob.User.ID, bobSession)
	n := NewNotifier(s.registry, s.store)

	n.PlayerLeft(context.Background(), g.ID, bob.User.ID)

	assert.False(t, s.registry.IsConnected(g.ID, bob.User.ID))
	assert.Eventually(t, func() bool {
		return bobSession.closeReason() == "left game"
	}, time.Second, 10*time.Millisecond)
}
