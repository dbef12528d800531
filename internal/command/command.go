// Package command parses "@command" directives in chat messages and runs them
// through registered handlers with a bounded timeout.
package command

import (
	"context"
	"errors"
)

// Kind is the type of a chat event.
type Kind string

const (
	KindText    Kind = "text"
	KindMovie   Kind = "movie"
	KindAI      Kind = "ai"
	KindWeather Kind = "weather"
	KindNews    Kind = "news"
	KindMusic   Kind = "music"
)

// Status is the outcome of a command.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Display hints used by clients for theming weather results.
const (
	HintSunny        = "sunny"
	HintRainy        = "rainy"
	HintCloudy       = "cloudy"
	HintSnowy        = "snowy"
	HintPartlyCloudy = "partly-cloudy"
	HintFoggy        = "foggy"
	HintDefault      = "default"
)

// ErrTimeout is reported when a handler does not finish within the dispatcher timeout.
var ErrTimeout = errors.New("command timed out")

// Result is attached to the chat event produced by a command.
// On error, Payload is the user-facing message string.
type Result struct {
	Status      Status `json:"status"`
	Payload     any    `json:"payload"`
	DisplayHint string `json:"display_hint,omitempty"`
}

// ErrorMessage returns the user-facing message of an error result.
func (r Result) ErrorMessage() string {
	if r.Status != StatusError {
		return ""
	}
	msg, _ := r.Payload.(string)
	return msg
}

// Handler executes one command. Invoke must honour ctx cancellation.
type Handler interface {
	// Kind is the event kind produced by this handler.
	Kind() Kind
	// ArgumentRequired reports whether an empty argument degrades the message to plain text.
	ArgumentRequired() bool
	Invoke(ctx context.Context, arg string) (any, error)
}

// Hinter is implemented by payloads that carry rendering metadata.
type Hinter interface {
	DisplayHint() string
}

// HandlerError is a failure with a message safe to show to chat users.
type HandlerError struct {
	Message string
	Err     error
}

func (e *HandlerError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

func userError(msg string, err error) *HandlerError {
	return &HandlerError{Message: msg, Err: err}
}
