package server

import (
	"context"
	"encoding/json"
	"log"

	"climb-server/internal/game"
	"climb-server/internal/store"

	"github.com/google/uuid"
)

// Notifier pushes committed game changes to the connected players of a room.
// Snapshots are rebuilt from the store on every push. Pushes follow a commit,
// so they ignore cancellation of the caller's context; the registry's write
// timeout bounds each send.
type Notifier struct {
	registry *ConnectionRegistry
	store    store.Store
}

func NewNotifier(registry *ConnectionRegistry, s store.Store) *Notifier {
	return &Notifier{registry: registry, store: s}
}

func (n *Notifier) GameUpdated(ctx context.Context, gameID uuid.UUID) {
	if n.registry.Count(gameID) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)

	snap, err := game.LoadSnapshot(ctx, n.store, gameID)
	if err != nil {
		log.Printf("Failed to load snapshot for game %s: %v", gameID, err)
		return
	}

	msg := newServerMessage(MsgGameUpdated, gameID, nil)
	view := newGameView(snap)
	msg.Game = &view
	n.broadcast(ctx, gameID, uuid.Nil, msg)
}

func (n *Notifier) Publish(ctx context.Context, gameID, exclude uuid.UUID, event game.Event) {
	n.broadcast(context.WithoutCancel(ctx), gameID, exclude, newServerMessage(event.Type, gameID, event.Payload))
}

func (n *Notifier) PublishTo(ctx context.Context, gameID, userID uuid.UUID, event game.Event) {
	data, err := json.Marshal(newServerMessage(event.Type, gameID, event.Payload))
	if err != nil {
		log.Printf("Failed to marshal %s: %v", event.Type, err)
		return
	}
	n.registry.SendToUser(context.WithoutCancel(ctx), gameID, userID, data)
}

// PlayerLeft drops the user's connection to a room they no longer sit in.
// The close handshake runs in the background.
func (n *Notifier) PlayerLeft(_ context.Context, gameID, userID uuid.UUID) {
	session := n.registry.Unregister(gameID, userID)
	if session == nil {
		return
	}
	go func() {
		if err := session.Close("left game"); err != nil {
			log.Printf("Failed to close session of user %s: %v", userID, err)
		}
	}()
}

func (n *Notifier) broadcast(ctx context.Context, gameID, exclude uuid.UUID, msg ServerMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Failed to marshal %s: %v", msg.Type, err)
		return
	}
	n.registry.Broadcast(ctx, gameID, data, exclude)
}
