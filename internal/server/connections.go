package server

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	defaultWriteTimeout = 5 * time.Second
	defaultFanout       = 16
)

// Session is one live client connection.
type Session interface {
	Send(ctx context.Context, data []byte) error
	Close(reason string) error
}

type room struct {
	mu    sync.RWMutex
	users map[uuid.UUID]Session
}

// ConnectionRegistry tracks which users of which games hold a live
// connection. Each user has at most one session per game; the last one
// registered wins.
type ConnectionRegistry struct {
	rooms        map[uuid.UUID]*room
	mu           sync.RWMutex
	writeTimeout time.Duration
	fanout       int
}

func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{
		rooms:        make(map[uuid.UUID]*room),
		writeTimeout: defaultWriteTimeout,
		fanout:       defaultFanout,
	}
}

// Register stores session for the user and returns the session it replaced,
// if any, so the caller can close it.
func (cr *ConnectionRegistry) Register(gameID, userID uuid.UUID, session Session) Session {
	cr.mu.Lock()
	defer cr.mu.Unlock()

	rm, ok := cr.rooms[gameID]
	if !ok {
		rm = &room{users: make(map[uuid.UUID]Session)}
		cr.rooms[gameID] = rm
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()
	previous := rm.users[userID]
	rm.users[userID] = session
	return previous
}

// Unregister drops the user's session and returns it. Empty rooms are removed.
func (cr *ConnectionRegistry) Unregister(gameID, userID uuid.UUID) Session {
	cr.mu.Lock()
	defer cr.mu.Unlock()
	return cr.removeLocked(gameID, userID, nil)
}

// UnregisterSession removes the user's entry only while it still points at
// session, so a stale connection cannot evict its replacement.
func (cr *ConnectionRegistry) UnregisterSession(gameID, userID uuid.UUID, session Session) bool {
	cr.mu.Lock()
	defer cr.mu.Unlock()
	return cr.removeLocked(gameID, userID, session) != nil
}

func (cr *ConnectionRegistry) removeLocked(gameID, userID uuid.UUID, only Session) Session {
	rm, ok := cr.rooms[gameID]
	if !ok {
		return nil
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()
	current, ok := rm.users[userID]
	if !ok || (only != nil && current != only) {
		return nil
	}
	delete(rm.users, userID)
	if len(rm.users) == 0 {
		delete(cr.rooms, gameID)
	}
	return current
}

type recipient struct {
	userID  uuid.UUID
	session Session
}

func (cr *ConnectionRegistry) recipients(gameID, exclude uuid.UUID) []recipient {
	cr.mu.RLock()
	rm, ok := cr.rooms[gameID]
	cr.mu.RUnlock()
	if !ok {
		return nil
	}

	rm.mu.RLock()
	defer rm.mu.RUnlock()
	out := make([]recipient, 0, len(rm.users))
	for userID, session := range rm.users {
		if userID != exclude {
			out = append(out, recipient{userID, session})
		}
	}
	return out
}

// Broadcast sends data to every user of the game except exclude (uuid.Nil
// excludes nobody). Failed sends are logged and do not affect the others.
func (cr *ConnectionRegistry) Broadcast(ctx context.Context, gameID uuid.UUID, data []byte, exclude uuid.UUID) {
	targets := cr.recipients(gameID, exclude)
	if len(targets) == 0 {
		return
	}

	var g errgroup.Group
	g.SetLimit(cr.fanout)
	for _, t := range targets {
		g.Go(func() error {
			cr.send(ctx, gameID, t.userID, t.session, data)
			return nil
		})
	}
	_ = g.Wait()
}

// SendToUser delivers data to one user if connected.
func (cr *ConnectionRegistry) SendToUser(ctx context.Context, gameID, userID uuid.UUID, data []byte) {
	cr.mu.RLock()
	rm, ok := cr.rooms[gameID]
	cr.mu.RUnlock()
	if !ok {
		return
	}

	rm.mu.RLock()
	session, ok := rm.users[userID]
	rm.mu.RUnlock()
	if !ok {
		return
	}

	cr.send(ctx, gameID, userID, session, data)
}

func (cr *ConnectionRegistry) send(ctx context.Context, gameID, userID uuid.UUID, session Session, data []byte) {
	ctx, cancel := context.WithTimeout(ctx, cr.writeTimeout)
	defer cancel()
	if err := session.Send(ctx, data); err != nil {
		log.Printf("Failed to send to user %s in game %s: %v", userID, gameID, err)
	}
}

func (cr *ConnectionRegistry) Count(gameID uuid.UUID) int {
	cr.mu.RLock()
	defer cr.mu.RUnlock()
	rm, ok := cr.rooms[gameID]
	if !ok {
		return 0
	}
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return len(rm.users)
}

func (cr *ConnectionRegistry) IsConnected(gameID, userID uuid.UUID) bool {
	cr.mu.RLock()
	defer cr.mu.RUnlock()
	rm, ok := cr.rooms[gameID]
	if !ok {
		return false
	}
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	_, ok = rm.users[userID]
	return ok
}

func (cr *ConnectionRegistry) ListUsers(gameID uuid.UUID) []uuid.UUID {
	targets := cr.recipients(gameID, uuid.Nil)
	users := make([]uuid.UUID, len(targets))
	for i, t := range targets {
		users[i] = t.userID
	}
	return users
}

// CloseAll closes every session and empties the registry. It returns once
// every close has finished.
func (cr *ConnectionRegistry) CloseAll(reason string) {
	cr.mu.Lock()
	rooms := cr.rooms
	cr.rooms = make(map[uuid.UUID]*room)
	cr.mu.Unlock()

	var g errgroup.Group
	g.SetLimit(cr.fanout)
	for _, rm := range rooms {
		rm.mu.RLock()
		for _, session := range rm.users {
			g.Go(func() error {
				if err := session.Close(reason); err != nil {
					log.Printf("Failed to close session: %v", err)
				}
				return nil
			})
		}
		rm.mu.RUnlock()
	}
	_ = g.Wait()
}
