package http

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wireroom/internal/auth"
	"github.com/vovakirdan/wireroom/internal/command"
	"github.com/vovakirdan/wireroom/internal/config"
	"github.com/vovakirdan/wireroom/internal/core"
	"github.com/vovakirdan/wireroom/internal/history"
	"github.com/vovakirdan/wireroom/internal/proto"
	"github.com/vovakirdan/wireroom/internal/store/sqlite"
)

var testJWT = &auth.JWTConfig{
	Secret:   []byte("test-secret"),
	Issuer:   "wireroom-test",
	Audience: "wireroom-test",
	TTL:      time.Hour,
}

type testServer struct {
	ts         *httptest.Server
	identities *auth.Service
	history    *history.Log
}

// startTestServer wires the full stack over an in-memory store. mutate may adjust the config.
func startTestServer(t *testing.T, mutate func(*config.Config)) *testServer {
	t.Helper()

	cfg := config.Default()
	if mutate != nil {
		mutate(&cfg)
	}

	st, err := sqlite.NewWithSetup(":memory:", sqlite.ApplySchema)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	identities := auth.NewService(st, testJWT, cfg.AllowPlainIdentity)
	hist, err := history.Open(context.Background(), st)
	if err != nil {
		t.Fatalf("open history: %v", err)
	}

	logger := zerolog.Nop()
	dispatcher := command.NewDispatcher(cfg.Commands.Timeout, &logger)
	if err := command.RegisterBuiltins(dispatcher, command.Providers{}, command.Options{
		MovieParserTemplate: cfg.Commands.MovieParserTemplate,
	}); err != nil {
		t.Fatalf("register commands: %v", err)
	}

	hub := core.NewHub(core.Config{
		Room:        cfg.Room,
		ReplayLimit: cfg.History.ReplayLimit,
		Workers:     cfg.Commands.Workers,
	}, core.Deps{
		Identities: identities,
		History:    hist,
		Dispatcher: dispatcher,
		Activities: st,
	}, &logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = hub.Run(ctx)
		close(done)
	}()

	server := NewServer(Services{
		Hub:        hub,
		Identities: identities,
		History:    hist,
		Commands:   dispatcher,
	}, &cfg, &logger)

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(func() {
		ts.Close()
		cancel()
		<-done
	})

	return &testServer{ts: ts, identities: identities, history: hist}
}

func (s *testServer) register(t *testing.T, username string) string {
	t.Helper()

	_, token, err := s.identities.Register(context.Background(), username, username+".png")
	if err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
	return token
}

func (s *testServer) dial(t *testing.T, ctx context.Context) *websocket.Conn {
	t.Helper()

	wsURL := strings.Replace(s.ts.URL, "http", "ws", 1) + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

// wireOutbound mirrors proto.Outbound with the payload left undecoded.
type wireOutbound struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func send(t *testing.T, ctx context.Context, conn *websocket.Conn, typ string, data any) {
	t.Helper()

	payload, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal %s: %v", typ, err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: payload}); err != nil {
		t.Fatalf("send %s: %v", typ, err)
	}
}

// readUntil reads frames until an event named name arrives, or an error frame when name is "error".
func readUntil(t *testing.T, ctx context.Context, conn *websocket.Conn, name string) wireOutbound {
	t.Helper()

	for {
		var out wireOutbound
		if err := wsjson.Read(ctx, conn, &out); err != nil {
			t.Fatalf("waiting for %s: %v", name, err)
		}
		if name == proto.OutboundTypeError && out.Type == proto.OutboundTypeError {
			return out
		}
		if out.Type == proto.OutboundTypeEvent && out.Event == name {
			return out
		}
	}
}

func decode[T any](t *testing.T, out wireOutbound) T {
	t.Helper()

	var v T
	if err := json.Unmarshal(out.Data, &v); err != nil {
		t.Fatalf("decode %s payload: %v", out.Event, err)
	}
	return v
}

// join sends a join and waits for the history replay that completes the join sequence.
func join(t *testing.T, ctx context.Context, conn *websocket.Conn, ref string) proto.EventJoinSuccess {
	t.Helper()

	send(t, ctx, conn, proto.InboundTypeJoin, proto.JoinData{IdentityRef: ref, Protocol: proto.ProtocolVersion})
	success := decode[proto.EventJoinSuccess](t, readUntil(t, ctx, conn, proto.EventNameJoinSuccess))
	readUntil(t, ctx, conn, proto.EventNameHistory)
	return success
}
