package core

import "github.com/rs/zerolog"

// Fanout delivers events to connections without blocking on slow consumers.
type Fanout struct {
	log *zerolog.Logger
}

// NewFanout builds a fan-out. A nil logger discards drop warnings.
func NewFanout(logger *zerolog.Logger) *Fanout {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Fanout{log: logger}
}

// Deliver sends a per-target copy of ev to every target and returns how many accepted it.
// For chat messages IsSelf is set on the copy going to the author's connection.
func (f *Fanout) Deliver(ev *Event, targets []*Client) int {
	delivered := 0
	for _, target := range targets {
		view := *ev
		if ev.Message != nil {
			view.IsSelf = target.IdentityID() == ev.Message.IdentityID
		}
		if f.Send(target, &view) {
			delivered++
		}
	}
	return delivered
}

// Send enqueues ev for one client. A full buffer drops the event; a closed client is skipped.
func (f *Fanout) Send(c *Client, ev *Event) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.Events <- ev:
		return true
	default:
		f.log.Warn().
			Str("session_id", c.ID).
			Int("event_kind", int(ev.Kind)).
			Msg("client buffer full, event dropped")
		return false
	}
}
