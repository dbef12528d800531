package proto

import (
	"encoding/json"
	"time"
)

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	ProtocolVersion = 1

	InboundTypeJoin     = "join"
	InboundTypeMessage  = "message"
	InboundTypeLeave    = "leave"
	InboundTypePresence = "presence"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventNameJoinSuccess = "join_success"
	EventNameJoinError   = "join_error"
	EventNameUserJoined  = "user_joined"
	EventNameUserLeft    = "user_left"
	EventNamePresence    = "presence_snapshot"
	EventNameHistory     = "history"
	EventNameNewMessage  = "new_message"
)

// JoinData binds the connection to an identity. IdentityRef is a join token or,
// when the server allows it, a plain username.
type JoinData struct {
	IdentityRef string `json:"identity_ref"`
	Protocol    int    `json:"protocol,omitempty"`
}

// MessageData is a chat message from the client.
type MessageData struct {
	Body            string `json:"body"`
	ClientTimestamp int64  `json:"client_timestamp,omitempty"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// Identity is the public view of a participant.
type Identity struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"display_name"`
	AvatarRef   string `json:"avatar_ref"`
	IsOnline    bool   `json:"is_online"`
}

// ChatEvent is one entry of the room history.
type ChatEvent struct {
	SeqID           int64           `json:"seq_id"`
	IdentityID      int64           `json:"identity_id"`
	DisplayName     string          `json:"display_name"`
	AvatarRef       string          `json:"avatar_ref,omitempty"`
	Body            string          `json:"body"`
	Kind            string          `json:"kind"`
	CommandResult   json.RawMessage `json:"command_result,omitempty"`
	ClientTimestamp int64           `json:"client_timestamp,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// EventJoinSuccess confirms the join.
type EventJoinSuccess struct {
	Room     string   `json:"room"`
	Identity Identity `json:"identity"`
}

// EventJoinError rejects the join. The server closes the connection afterwards.
type EventJoinError struct {
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

// EventUserJoined notifies that a user joined the room.
type EventUserJoined struct {
	Room     string   `json:"room"`
	Identity Identity `json:"identity"`
}

// EventUserLeft notifies that a user left the room.
type EventUserLeft struct {
	Room     string   `json:"room"`
	Identity Identity `json:"identity"`
}

// EventPresence lists every known identity with its online status.
type EventPresence struct {
	Entries []Identity `json:"entries"`
}

// EventHistory replays the most recent chat events, oldest first.
type EventHistory struct {
	Room   string      `json:"room"`
	Events []ChatEvent `json:"events"`
}

// EventNewMessage delivers one chat event. IsSelf is true on the author's connection.
type EventNewMessage struct {
	Event  ChatEvent `json:"event"`
	IsSelf bool      `json:"is_self"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
