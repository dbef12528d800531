package core

import (
	"slices"
	"sync"
	"time"

	"github.com/samber/lo"
)

// Connection is a live session bound to an identity inside a room.
type Connection struct {
	SessionID  string
	IdentityID int64
	Room       string
	JoinedAt   time.Time

	client *Client
}

// Change describes a committed register or unregister.
type Change struct {
	Joined     bool
	Room       string
	IdentityID int64
	Client     *Client
}

// Registry tracks active connections. An identity holds at most one session.
// The notifier runs synchronously after every successful mutation, outside the registry lock.
type Registry struct {
	mu         sync.RWMutex
	sessions   map[string]*Connection
	identities map[int64]string
	rooms      map[string]map[string]*Connection
	notify     func(Change)
	now        func() time.Time
}

// NewRegistry builds an empty registry. notify may be nil.
func NewRegistry(notify func(Change)) *Registry {
	return &Registry{
		sessions:   make(map[string]*Connection),
		identities: make(map[int64]string),
		rooms:      make(map[string]map[string]*Connection),
		notify:     notify,
		now:        time.Now,
	}
}

// Register binds the client session to identityID in room.
// Returns ErrDuplicateIdentity when the identity already has a session and
// ErrSessionExists when the session is already registered; nothing changes in either case.
func (r *Registry) Register(room string, c *Client, identityID int64) error {
	r.mu.Lock()
	if _, ok := r.sessions[c.ID]; ok {
		r.mu.Unlock()
		return ErrSessionExists
	}
	if _, ok := r.identities[identityID]; ok {
		r.mu.Unlock()
		return ErrDuplicateIdentity
	}
	conn := &Connection{
		SessionID:  c.ID,
		IdentityID: identityID,
		Room:       room,
		JoinedAt:   r.now(),
		client:     c,
	}
	r.sessions[c.ID] = conn
	r.identities[identityID] = c.ID
	members, ok := r.rooms[room]
	if !ok {
		members = make(map[string]*Connection)
		r.rooms[room] = members
	}
	members[c.ID] = conn
	r.mu.Unlock()

	if r.notify != nil {
		r.notify(Change{Joined: true, Room: room, IdentityID: identityID, Client: c})
	}
	return nil
}

// Unregister removes a session. Unknown sessions are a no-op returning false.
func (r *Registry) Unregister(sessionID string) (int64, bool) {
	r.mu.Lock()
	conn, ok := r.sessions[sessionID]
	if !ok {
		r.mu.Unlock()
		return 0, false
	}
	delete(r.sessions, sessionID)
	delete(r.identities, conn.IdentityID)
	if members := r.rooms[conn.Room]; members != nil {
		delete(members, sessionID)
		if len(members) == 0 {
			delete(r.rooms, conn.Room)
		}
	}
	r.mu.Unlock()

	if r.notify != nil {
		r.notify(Change{Joined: false, Room: conn.Room, IdentityID: conn.IdentityID, Client: conn.client})
	}
	return conn.IdentityID, true
}

// Lookup returns the identity bound to a session.
func (r *Registry) Lookup(sessionID string) (int64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.sessions[sessionID]
	if !ok {
		return 0, false
	}
	return conn.IdentityID, true
}

// ActiveIdentities returns the identities with an active session, ascending.
func (r *Registry) ActiveIdentities() []int64 {
	r.mu.RLock()
	ids := lo.Keys(r.identities)
	r.mu.RUnlock()
	slices.Sort(ids)
	return ids
}

// IsActive reports whether the identity has an active session.
func (r *Registry) IsActive(identityID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.identities[identityID]
	return ok
}

// Connections returns the connections of room ordered by join time.
func (r *Registry) Connections(room string) []Connection {
	r.mu.RLock()
	conns := lo.MapToSlice(r.rooms[room], func(_ string, c *Connection) Connection { return *c })
	r.mu.RUnlock()
	slices.SortFunc(conns, func(a, b Connection) int { return a.JoinedAt.Compare(b.JoinedAt) })
	return conns
}

// Targets returns the clients currently in room.
func (r *Registry) Targets(room string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.MapToSlice(r.rooms[room], func(_ string, c *Connection) *Client { return c.client })
}

// Len returns the number of active sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
