package core

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"golang.org/x/sync/semaphore"

	"github.com/vovakirdan/wireroom/internal/auth"
	"github.com/vovakirdan/wireroom/internal/command"
	"github.com/vovakirdan/wireroom/internal/store"
)

// DefaultRoom is the room every connection joins.
const DefaultRoom = "lobby"

const (
	defaultReplayLimit = 50
	defaultWorkers     = 8
	maxBodyRunes       = 4000
)

// Identities is the identity collaborator of the hub.
type Identities interface {
	IdentityLister
	Resolve(ctx context.Context, ref string) (*store.Identity, error)
	SetOnline(ctx context.Context, identityID int64, online bool) error
	Avatar(ctx context.Context, identityID int64) (string, error)
}

// HistoryLog assigns sequence numbers and replays recent events.
type HistoryLog interface {
	Append(ctx context.Context, ev store.ChatEvent) (store.ChatEvent, error)
	Tail(ctx context.Context, n int) ([]store.ChatEvent, error)
}

// Dispatcher recognises and runs "@command" messages.
type Dispatcher interface {
	Parse(body string) (command.Invocation, bool)
	Execute(ctx context.Context, inv command.Invocation) command.Result
}

// Config tunes the hub.
type Config struct {
	Room        string
	ReplayLimit int
	Workers     int
}

// Deps are the collaborators of the hub. Dispatcher and Activities are optional.
type Deps struct {
	Identities Identities
	History    HistoryLog
	Dispatcher Dispatcher
	Activities store.ActivityStore
}

// Hub coordinates connections of the chat room.
type Hub interface {
	// Run blocks until ctx is done, then disconnects every client and waits for
	// in-flight commands to be appended.
	Run(ctx context.Context) error
	// RegisterClient starts consuming the client's commands.
	RegisterClient(c *Client)
	// UnregisterClient closes the client. It is idempotent.
	UnregisterClient(c *Client)
	// Presence returns the current presence snapshot.
	Presence(ctx context.Context) ([]PresenceEntry, error)
}

type hub struct {
	cfg  Config
	deps Deps
	log  *zerolog.Logger

	registry *Registry
	presence *Presence
	fanout   *Fanout

	// publishMu orders append and fan-out so every connection sees seq_id order.
	publishMu sync.Mutex
	// presenceMu keeps snapshot and delivery together so the last snapshot delivered is the newest.
	presenceMu sync.Mutex
	// onlineMu orders durable online flag writes; the flag written is read from the registry under it.
	onlineMu sync.Mutex

	workers  *semaphore.Weighted
	inflight sync.WaitGroup
	clients  sync.WaitGroup
	mu       sync.Mutex
	stopped  bool

	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub creates a new chat hub instance.
func NewHub(cfg Config, deps Deps, logger *zerolog.Logger) Hub {
	if cfg.Room == "" {
		cfg.Room = DefaultRoom
	}
	if cfg.ReplayLimit <= 0 {
		cfg.ReplayLimit = defaultReplayLimit
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	h := &hub{
		cfg:     cfg,
		deps:    deps,
		log:     logger,
		fanout:  NewFanout(logger),
		workers: semaphore.NewWeighted(int64(cfg.Workers)),
	}
	h.registry = NewRegistry(h.onRegistryChange)
	h.presence = NewPresence(deps.Identities, h.registry)
	h.ctx, h.cancel = context.WithCancel(context.Background())
	return h
}

func (h *hub) Run(ctx context.Context) error {
	select {
	case <-ctx.Done():
	case <-h.ctx.Done():
	}
	h.mu.Lock()
	h.stopped = true
	h.mu.Unlock()
	h.cancel()
	h.clients.Wait()
	h.inflight.Wait()
	h.log.Info().Msg("hub stopped")
	return nil
}

func (h *hub) RegisterClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		c.close()
		return
	}
	h.clients.Add(1)
	go h.serve(c)
}

func (h *hub) UnregisterClient(c *Client) {
	h.disconnect(c)
}

func (h *hub) Presence(ctx context.Context) ([]PresenceEntry, error) {
	return h.presence.Snapshot(ctx)
}

func (h *hub) serve(c *Client) {
	defer h.clients.Done()
	for {
		select {
		case cmd := <-c.Commands:
			if cmd != nil {
				h.handle(c, cmd)
			}
		case <-c.done:
			return
		case <-h.ctx.Done():
			h.disconnect(c)
			return
		}
	}
}

func (h *hub) handle(c *Client, cmd *Command) {
	switch cmd.Kind {
	case CommandJoin:
		h.join(c, cmd.Ref)
	case CommandSend:
		h.send(c, cmd)
	case CommandLeave:
		h.leave(c)
	case CommandPresence:
		h.sendPresence(c)
	default:
		h.sendError(c, coreError(ErrCodeBadRequest, "未知的请求类型"))
	}
}

// join runs Open -> Joining -> Active. Any failure sends join_error and closes the client
// without leaving a registry entry.
func (h *hub) join(c *Client, ref string) {
	if !c.transition(StateOpen, StateJoining) {
		h.sendError(c, coreError(ErrCodeAlreadyJoined, "已加入聊天室"))
		return
	}

	rec, err := h.deps.Identities.Resolve(h.ctx, ref)
	if err != nil {
		if !errors.Is(err, auth.ErrUnknownIdentity) {
			h.log.Error().Err(err).Str("session_id", c.ID).Msg("resolve identity")
			h.rejectJoin(c, coreError(ErrCodeUnavailable, "暂时无法加入聊天室，请稍后再试"))
			return
		}
		h.log.Info().Err(err).Str("session_id", c.ID).Msg("join rejected")
		h.rejectJoin(c, ErrUnknownIdentity)
		return
	}
	view := identityView(rec, true)
	c.identity.Store(view)

	// Holding publishMu from register to history replay keeps the joiner from missing
	// or duplicating messages published meanwhile.
	h.publishMu.Lock()
	defer h.publishMu.Unlock()

	if err := h.registry.Register(h.cfg.Room, c, rec.ID); err != nil {
		h.log.Info().Err(err).Str("session_id", c.ID).Int64("identity_id", rec.ID).Msg("join rejected")
		c.identity.Store(nil)
		var ce *CoreError
		if !errors.As(err, &ce) {
			ce = coreError(ErrCodeUnavailable, "加入聊天室失败")
		}
		h.rejectJoin(c, ce)
		return
	}
	if !c.transition(StateJoining, StateActive) {
		// Closed while joining.
		h.registry.Unregister(c.ID)
		return
	}

	h.fanout.Send(c, &Event{Kind: EventJoinSuccess, Room: h.cfg.Room, Identity: view})
	h.sendPresence(c)

	history, err := h.replay(h.ctx)
	if err != nil {
		h.log.Warn().Err(err).Str("session_id", c.ID).Msg("history replay failed")
	}
	h.fanout.Send(c, &Event{Kind: EventHistory, Room: h.cfg.Room, History: history})

	h.log.Info().Str("session_id", c.ID).Int64("identity_id", rec.ID).Str("user", rec.Username).Msg("client joined")
}

func (h *hub) rejectJoin(c *Client, reason *CoreError) {
	h.fanout.Send(c, &Event{Kind: EventJoinError, Room: h.cfg.Room, Error: reason})
	c.close()
}

func (h *hub) leave(c *Client) {
	if c.State() != StateActive {
		h.sendError(c, coreError(ErrCodeNotJoined, "尚未加入聊天室"))
		return
	}
	h.disconnect(c)
}

// disconnect moves the client to Closed and unregisters it. Repeated calls are no-ops.
func (h *hub) disconnect(c *Client) {
	if !c.close() {
		return
	}
	if id, ok := h.registry.Unregister(c.ID); ok {
		h.log.Info().Str("session_id", c.ID).Int64("identity_id", id).Msg("client left")
	}
}

// onRegistryChange runs synchronously inside Register and Unregister.
func (h *hub) onRegistryChange(ch Change) {
	ctx := context.WithoutCancel(h.ctx)

	h.syncOnline(ctx, ch.IdentityID)

	kind, activity := EventUserLeft, store.ActivityLogout
	if ch.Joined {
		kind, activity = EventUserJoined, store.ActivityLogin
	}
	if id := ch.Client.Identity(); id != nil {
		view := *id
		view.IsOnline = ch.Joined
		others := lo.Filter(h.activeTargets(ch.Room), func(t *Client, _ int) bool { return t != ch.Client })
		h.fanout.Deliver(&Event{Kind: kind, Room: ch.Room, Identity: &view}, others)
	}

	h.broadcastPresence(ctx, ch.Room)
	h.recordActivity(ctx, ch.IdentityID, activity, map[string]any{"session_id": ch.Client.ID})
}

func (h *hub) broadcastPresence(ctx context.Context, room string) {
	h.presenceMu.Lock()
	defer h.presenceMu.Unlock()

	snapshot, err := h.presence.Snapshot(ctx)
	if err != nil {
		h.log.Warn().Err(err).Msg("presence snapshot failed")
		return
	}
	h.fanout.Deliver(&Event{Kind: EventPresence, Room: room, Presence: snapshot}, h.activeTargets(room))
}

// activeTargets skips connections still joining; they get their own snapshot after join_success.
func (h *hub) activeTargets(room string) []*Client {
	return lo.Filter(h.registry.Targets(room), func(t *Client, _ int) bool { return t.State() == StateActive })
}

// syncOnline writes the durable online flag from the registry, so concurrent joins and
// leaves of one identity cannot leave it stale.
func (h *hub) syncOnline(ctx context.Context, identityID int64) {
	h.onlineMu.Lock()
	defer h.onlineMu.Unlock()

	if err := h.deps.Identities.SetOnline(ctx, identityID, h.registry.IsActive(identityID)); err != nil {
		h.log.Warn().Err(err).Int64("identity_id", identityID).Msg("update online flag")
	}
}

func (h *hub) sendPresence(c *Client) {
	if c.State() != StateActive {
		h.sendError(c, coreError(ErrCodeNotJoined, "尚未加入聊天室"))
		return
	}

	h.presenceMu.Lock()
	defer h.presenceMu.Unlock()

	snapshot, err := h.presence.Snapshot(h.ctx)
	if err != nil {
		h.log.Warn().Err(err).Str("session_id", c.ID).Msg("presence snapshot failed")
		h.sendError(c, coreError(ErrCodeUnavailable, "获取在线列表失败"))
		return
	}
	h.fanout.Send(c, &Event{Kind: EventPresence, Room: h.cfg.Room, Presence: snapshot})
}

func (h *hub) send(c *Client, cmd *Command) {
	if c.State() != StateActive {
		h.sendError(c, coreError(ErrCodeNotJoined, "尚未加入聊天室"))
		return
	}
	body := strings.TrimSpace(cmd.Body)
	if body == "" {
		h.sendError(c, coreError(ErrCodeBadRequest, "消息不能为空"))
		return
	}
	if len([]rune(body)) > maxBodyRunes {
		h.sendError(c, coreError(ErrCodeBadRequest, "消息过长"))
		return
	}

	author := c.Identity()
	ev := store.ChatEvent{
		IdentityID:  author.ID,
		DisplayName: author.DisplayName,
		Body:        body,
		Kind:        string(command.KindText),
		ClientTS:    cmd.ClientTS,
	}

	if h.deps.Dispatcher != nil {
		if inv, ok := h.deps.Dispatcher.Parse(body); ok {
			h.offload(c, ev, author.AvatarRef, inv)
			return
		}
	}
	h.publish(c, ev, author.AvatarRef)
}

// offload runs the command off the connection goroutine. The event gets its seq_id
// only once the handler finished or timed out.
func (h *hub) offload(c *Client, ev store.ChatEvent, avatar string, inv command.Invocation) {
	h.inflight.Add(1)
	go func() {
		defer h.inflight.Done()

		res := h.execute(inv)
		ev.Kind = string(inv.Kind)
		raw, err := json.Marshal(res)
		if err != nil {
			h.log.Error().Err(err).Str("command", inv.Name).Msg("encode command result")
			raw, _ = json.Marshal(command.Result{Status: command.StatusError, Payload: "指令结果无法显示"})
		}
		ev.Result = raw

		h.publish(c, ev, avatar)
		h.recordActivity(context.WithoutCancel(h.ctx), ev.IdentityID, activityFor(inv.Kind), map[string]any{
			"command": inv.Name,
			"arg":     inv.Arg,
			"status":  res.Status,
		})
	}()
}

func (h *hub) execute(inv command.Invocation) command.Result {
	if err := h.workers.Acquire(h.ctx, 1); err != nil {
		return command.Result{Status: command.StatusError, Payload: "服务正在关闭，指令未执行。"}
	}
	defer h.workers.Release(1)
	return h.deps.Dispatcher.Execute(h.ctx, inv)
}

// publish appends ev and fans it out to the room. origin only receives the error
// when the append fails.
func (h *hub) publish(origin *Client, ev store.ChatEvent, avatar string) {
	ctx := context.WithoutCancel(h.ctx)

	h.publishMu.Lock()
	defer h.publishMu.Unlock()

	appended, err := h.deps.History.Append(ctx, ev)
	if err != nil {
		h.log.Error().Err(err).Int64("identity_id", ev.IdentityID).Msg("append chat event")
		h.sendError(origin, coreError(ErrCodeUnavailable, "消息发送失败，请稍后再试"))
		return
	}

	msg := &Message{ChatEvent: appended, Avatar: avatar}
	n := h.fanout.Deliver(&Event{Kind: EventNewMessage, Room: h.cfg.Room, Message: msg}, h.registry.Targets(h.cfg.Room))
	h.log.Debug().Int64("seq_id", appended.Seq).Str("kind", appended.Kind).Int("delivered", n).Msg("published")
}

func (h *hub) replay(ctx context.Context) ([]Message, error) {
	events, err := h.deps.History.Tail(ctx, h.cfg.ReplayLimit)
	if err != nil {
		return []Message{}, err
	}
	avatars := make(map[int64]string)
	return lo.Map(events, func(ev store.ChatEvent, _ int) Message {
		avatar, ok := avatars[ev.IdentityID]
		if !ok {
			var lookupErr error
			avatar, lookupErr = h.deps.Identities.Avatar(ctx, ev.IdentityID)
			if lookupErr != nil && !errors.Is(lookupErr, store.ErrNotFound) {
				h.log.Debug().Err(lookupErr).Int64("identity_id", ev.IdentityID).Msg("avatar lookup")
			}
			avatars[ev.IdentityID] = avatar
		}
		return Message{ChatEvent: ev, Avatar: avatar}
	}), nil
}

func (h *hub) sendError(c *Client, err *CoreError) {
	h.fanout.Send(c, &Event{Kind: EventError, Room: h.cfg.Room, Error: err})
}

func (h *hub) recordActivity(ctx context.Context, identityID int64, typ store.ActivityType, data map[string]any) {
	if h.deps.Activities == nil || typ == "" {
		return
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return
	}
	if err := h.deps.Activities.RecordActivity(ctx, &store.Activity{IdentityID: identityID, Type: typ, Data: raw}); err != nil {
		h.log.Warn().Err(err).Int64("identity_id", identityID).Str("activity", string(typ)).Msg("record activity")
	}
}

func activityFor(kind command.Kind) store.ActivityType {
	switch kind {
	case command.KindMovie:
		return store.ActivityMoviePlay
	case command.KindAI:
		return store.ActivityAIChat
	case command.KindWeather:
		return store.ActivityWeatherSearch
	case command.KindNews:
		return store.ActivityNewsSearch
	case command.KindMusic:
		return store.ActivityMusicPlay
	default:
		return ""
	}
}
