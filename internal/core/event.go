package core

import "github.com/vovakirdan/wireroom/internal/store"

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventJoinSuccess confirms a join to the joining connection.
	EventJoinSuccess EventKind = iota
	// EventJoinError rejects a join; the connection closes afterwards.
	EventJoinError
	// EventUserJoined notifies other connections about a join.
	EventUserJoined
	// EventUserLeft notifies remaining connections about a leave.
	EventUserLeft
	// EventPresence carries a full presence snapshot.
	EventPresence
	// EventHistory replays recent chat events to a joined connection.
	EventHistory
	// EventNewMessage delivers one appended chat event.
	EventNewMessage
	// EventError notifies a client about a domain error.
	EventError
)

// Identity is the public view of a chat participant.
type Identity struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"display_name"`
	AvatarRef   string `json:"avatar_ref"`
	IsOnline    bool   `json:"is_online"`
}

// PresenceEntry is one row of a presence snapshot.
type PresenceEntry = Identity

// Message is a chat event as delivered to connections.
type Message struct {
	store.ChatEvent
	Avatar string `json:"avatar_ref,omitempty"`
}

// Event is sent to clients to describe what happened in the room.
type Event struct {
	Kind     EventKind
	Room     string
	Identity *Identity
	Presence []PresenceEntry
	History  []Message
	Message  *Message
	IsSelf   bool
	Error    *CoreError
}

func identityView(id *store.Identity, online bool) *Identity {
	return &Identity{
		ID:          id.ID,
		DisplayName: id.Username,
		AvatarRef:   id.Avatar,
		IsOnline:    online,
	}
}
