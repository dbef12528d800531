package core

import (
	"sync"
	"sync/atomic"
)

// State is the lifecycle stage of a connection.
type State int32

const (
	// StateOpen is a connected transport that has not asked to join.
	StateOpen State = iota
	// StateJoining is a connection whose identity is being resolved.
	StateJoining
	// StateActive is a joined connection that receives room traffic.
	StateActive
	// StateClosed is terminal.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateJoining:
		return "joining"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// DefaultClientBuffer is the outbound event buffer of a connection.
const DefaultClientBuffer = 64

// Client is one transport session as seen by the core layer.
type Client struct {
	ID       string
	Commands chan *Command
	Events   chan *Event

	state    atomic.Int32
	identity atomic.Pointer[Identity]
	done     chan struct{}
	once     sync.Once
}

// NewClient constructs a client in the Open state with initialized channels.
func NewClient(sessionID string, buffer int) *Client {
	if buffer <= 0 {
		buffer = DefaultClientBuffer
	}
	return &Client{
		ID:       sessionID,
		Commands: make(chan *Command, 8),
		Events:   make(chan *Event, buffer),
		done:     make(chan struct{}),
	}
}

// State returns the current lifecycle stage.
func (c *Client) State() State {
	return State(c.state.Load())
}

// Identity returns the joined identity, or nil before join.
func (c *Client) Identity() *Identity {
	return c.identity.Load()
}

// IdentityID returns the joined identity id, or 0 before join.
func (c *Client) IdentityID() int64 {
	if id := c.identity.Load(); id != nil {
		return id.ID
	}
	return 0
}

// Done is closed when the client reaches the Closed state.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) transition(from, to State) bool {
	return c.state.CompareAndSwap(int32(from), int32(to))
}

// close moves the client to Closed from any state. Reports whether this call closed it.
func (c *Client) close() bool {
	closed := false
	c.once.Do(func() {
		c.state.Store(int32(StateClosed))
		close(c.done)
		closed = true
	})
	return closed
}
