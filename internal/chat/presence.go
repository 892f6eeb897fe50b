package chat

import (
	"context"
	"log"
	"sync"
)

// Conn is the minimal interface a live connection must satisfy. The WebSocket
// handler wraps each connection in a buffered writer that preserves the order
// events were pushed in.
type Conn interface {
	WriteJSON(v any) error
}

// VisibilityStore answers which of the given user ids have their active
// status hidden. Satisfied by the user store.
type VisibilityStore interface {
	HiddenUserIDs(ctx context.Context, userIDs []string) (map[string]bool, error)
}

// Registry is the in-memory presence map: user id → single live connection.
// A new connection for the same user replaces the previous one
// (last-connection-wins). Entries are never persisted; a restart shows
// everyone offline until they reconnect.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]Conn
	users VisibilityStore
}

func NewRegistry(users VisibilityStore) *Registry {
	return &Registry{
		conns: make(map[string]Conn),
		users: users,
	}
}

// Connect registers or replaces the connection for a user and broadcasts the
// updated online set to every live connection.
func (r *Registry) Connect(ctx context.Context, userID string, c Conn) {
	r.mu.Lock()
	r.conns[userID] = c
	r.mu.Unlock()

	r.BroadcastOnline(ctx)
}

// Disconnect removes the mapping only when c is still the registered
// connection, so a stale disconnect cannot race a newer connect for the same
// user. Returns whether the mapping was removed.
func (r *Registry) Disconnect(ctx context.Context, userID string, c Conn) bool {
	r.mu.Lock()
	current, ok := r.conns[userID]
	if !ok || current != c {
		r.mu.Unlock()
		return false
	}
	delete(r.conns, userID)
	r.mu.Unlock()

	r.BroadcastOnline(ctx)
	return true
}

// Lookup returns the live connection for a user, if any.
func (r *Registry) Lookup(userID string) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[userID]
	return c, ok
}

// Push delivers an event to a user's connection. Best-effort: an offline
// target is a silent no-op and write errors never fail the caller.
func (r *Registry) Push(userID string, evt Event) bool {
	c, ok := r.Lookup(userID)
	if !ok {
		return false
	}
	if err := c.WriteJSON(evt); err != nil {
		log.Printf("error pushing %s event to %s: %v", evt.Name, userID, err)
		return false
	}
	return true
}

// Online returns a snapshot of all connected user ids.
func (r *Registry) Online() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	return ids
}

// VisibleOnline returns the connected user ids minus those with
// hideActiveStatus set. A store failure degrades to an empty set rather than
// failing the connection.
func (r *Registry) VisibleOnline(ctx context.Context) []string {
	online := r.Online()
	if len(online) == 0 {
		return []string{}
	}

	hidden, err := r.users.HiddenUserIDs(ctx, online)
	if err != nil {
		log.Printf("error resolving hidden users for online broadcast: %v", err)
		return []string{}
	}

	visible := make([]string, 0, len(online))
	for _, id := range online {
		if !hidden[id] {
			visible = append(visible, id)
		}
	}
	return visible
}

// BroadcastOnline recomputes the visible online set and pushes it to all
// connected users. O(connected-count) per connect/disconnect; fine for a
// single-process registry.
func (r *Registry) BroadcastOnline(ctx context.Context) {
	evt := OnlineUsersEvent(r.VisibleOnline(ctx))

	r.mu.RLock()
	conns := make([]Conn, 0, len(r.conns))
	for _, c := range r.conns {
		conns = append(conns, c)
	}
	r.mu.RUnlock()

	for _, c := range conns {
		if err := c.WriteJSON(evt); err != nil {
			log.Printf("error broadcasting online users: %v", err)
		}
	}
}
