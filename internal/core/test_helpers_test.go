package core

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vovakirdan/wireroom/internal/auth"
	"github.com/vovakirdan/wireroom/internal/command"
	"github.com/vovakirdan/wireroom/internal/history"
	"github.com/vovakirdan/wireroom/internal/store/sqlite"
)

func mustEvent(t testing.TB, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

type testEnv struct {
	hub        Hub
	identities *auth.Service
	log        *history.Log
	store      *sqlite.SQLiteStore
	gate       *gateHandler
}

func newTestEnv(t testing.TB, names ...string) *testEnv {
	t.Helper()

	st, err := sqlite.NewWithSetup(":memory:", sqlite.ApplySchema)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	identities := auth.NewService(st, &auth.JWTConfig{
		Secret:   []byte("test-secret"),
		Issuer:   "test",
		Audience: "test",
		TTL:      time.Hour,
	}, true)
	for _, name := range names {
		if _, _, err := identities.Register(context.Background(), name, name+".png"); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}

	hist, err := history.Open(context.Background(), st)
	if err != nil {
		t.Fatalf("open history: %v", err)
	}

	gate := newGateHandler()
	dispatcher := command.NewDispatcher(time.Second, nil)
	dispatcher.Register(echoHandler{}, "echo")
	dispatcher.Register(gate, "gate")

	h := NewHub(Config{Room: "general"}, Deps{
		Identities: identities,
		History:    hist,
		Dispatcher: dispatcher,
		Activities: st,
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = h.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		gate.release()
		cancel()
		<-done
	})

	return &testEnv{hub: h, identities: identities, log: hist, store: st, gate: gate}
}

// connect registers a new client and joins it with ref, draining the join sequence.
func (e *testEnv) connect(t testing.TB, session, ref string) *Client {
	t.Helper()

	c := NewClient(session, 256)
	e.hub.RegisterClient(c)
	c.Commands <- &Command{Kind: CommandJoin, Ref: ref}
	mustEvent(t, c.Events, EventJoinSuccess)
	mustEvent(t, c.Events, EventHistory)
	return c
}

func waitFor(t testing.TB, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

type echoHandler struct{}

func (echoHandler) Kind() command.Kind     { return command.Kind("echo") }
func (echoHandler) ArgumentRequired() bool { return true }
func (echoHandler) Invoke(_ context.Context, arg string) (any, error) {
	return map[string]string{"echo": strings.ToUpper(arg)}, nil
}

// gateHandler blocks every invocation until release is called.
type gateHandler struct {
	started chan struct{}
	open    chan struct{}
	once    sync.Once
}

func newGateHandler() *gateHandler {
	return &gateHandler{started: make(chan struct{}, 16), open: make(chan struct{})}
}

func (g *gateHandler) release() { g.once.Do(func() { close(g.open) }) }

func (*gateHandler) Kind() command.Kind     { return command.Kind("gate") }
func (*gateHandler) ArgumentRequired() bool { return false }
func (g *gateHandler) Invoke(ctx context.Context, arg string) (any, error) {
	g.started <- struct{}{}
	select {
	case <-g.open:
		return map[string]string{"gate": arg}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
