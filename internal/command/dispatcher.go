package command

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultTimeout bounds every handler call.
const DefaultTimeout = 10 * time.Second

const (
	msgTimeout     = "请求超时，请稍后再试。"
	msgUnavailable = "指令处理失败，请稍后再试。"
)

var commandPattern = regexp.MustCompile(`(?s)^@(\S+)(?:\s+(.*))?$`)

// Invocation is a parsed command ready to execute.
type Invocation struct {
	Name    string
	Kind    Kind
	Arg     string
	handler Handler
}

// Info describes a registered command.
type Info struct {
	Kind             Kind     `json:"kind"`
	Names            []string `json:"names"`
	ArgumentRequired bool     `json:"argument_required"`
}

// Dispatcher maps command names to handlers. Register all handlers before serving traffic.
type Dispatcher struct {
	handlers map[string]Handler
	timeout  time.Duration
	log      *zerolog.Logger
}

// NewDispatcher builds a dispatcher with the given per-call timeout.
func NewDispatcher(timeout time.Duration, logger *zerolog.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Dispatcher{
		handlers: make(map[string]Handler),
		timeout:  timeout,
		log:      logger,
	}
}

// Register binds h to every name. Names are matched case-insensitively.
func (d *Dispatcher) Register(h Handler, names ...string) {
	for _, name := range names {
		d.handlers[strings.ToLower(name)] = h
	}
}

// Commands lists the registered commands grouped by kind.
func (d *Dispatcher) Commands() []Info {
	byKind := make(map[Kind]*Info)
	for name, h := range d.handlers {
		info, ok := byKind[h.Kind()]
		if !ok {
			info = &Info{Kind: h.Kind(), ArgumentRequired: h.ArgumentRequired()}
			byKind[h.Kind()] = info
		}
		info.Names = append(info.Names, name)
	}
	out := make([]Info, 0, len(byKind))
	for _, info := range byKind {
		sort.Strings(info.Names)
		out = append(out, *info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out
}

// Parse reports whether body is a recognised command. Unknown commands and
// commands missing a required argument are plain text.
func (d *Dispatcher) Parse(body string) (Invocation, bool) {
	m := commandPattern.FindStringSubmatch(body)
	if m == nil {
		return Invocation{}, false
	}
	name := strings.ToLower(m[1])
	h, ok := d.handlers[name]
	if !ok {
		return Invocation{}, false
	}
	arg := strings.TrimSpace(m[2])
	if arg == "" && h.ArgumentRequired() {
		return Invocation{}, false
	}
	return Invocation{Name: name, Kind: h.Kind(), Arg: arg, handler: h}, true
}

// Execute runs the invocation under the dispatcher timeout. It always returns a
// result: errors, timeouts and panics become an error result with a user-facing message.
func (d *Dispatcher) Execute(ctx context.Context, inv Invocation) Result {
	if inv.handler == nil {
		return Result{Status: StatusError, Payload: msgUnavailable}
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	type outcome struct {
		payload any
		err     error
	}
	done := make(chan outcome, 1)
	started := time.Now()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("handler panic: %v", r)}
			}
		}()
		payload, err := inv.handler.Invoke(ctx, inv.Arg)
		done <- outcome{payload: payload, err: err}
	}()

	var out outcome
	select {
	case out = <-done:
	case <-ctx.Done():
		out = outcome{err: fmt.Errorf("%w: %w", ErrTimeout, ctx.Err())}
	}

	logEvent := d.log.Debug()
	if out.err != nil {
		logEvent = d.log.Warn().Err(out.err)
	}
	logEvent.
		Str("command", inv.Name).
		Str("kind", string(inv.Kind)).
		Dur("elapsed", time.Since(started)).
		Msg("command executed")

	if out.err != nil {
		return Result{Status: StatusError, Payload: userMessage(out.err)}
	}

	res := Result{Status: StatusSuccess, Payload: out.payload}
	if h, ok := out.payload.(Hinter); ok {
		res.DisplayHint = h.DisplayHint()
	}
	return res
}

func userMessage(err error) string {
	var he *HandlerError
	if errors.As(err, &he) && he.Message != "" {
		return he.Message
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return msgTimeout
	}
	return msgUnavailable
}
