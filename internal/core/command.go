package core

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandJoin binds the connection to an identity and enters the room.
	CommandJoin CommandKind = iota
	// CommandSend posts a chat message, possibly an "@command".
	CommandSend
	// CommandLeave leaves the room and closes the connection.
	CommandLeave
	// CommandPresence requests a presence snapshot for this connection only.
	CommandPresence
)

// Command represents an action requested by a client.
type Command struct {
	Kind     CommandKind
	Ref      string // identity reference for CommandJoin
	Body     string
	ClientTS int64
}
