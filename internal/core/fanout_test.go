package core

import (
	"testing"

	"github.com/vovakirdan/wireroom/internal/store"
)

func TestFanoutMarksSelfAndKeepsSeq(t *testing.T) {
	f := NewFanout(nil)

	clients := make([]*Client, 3)
	for i := range clients {
		clients[i] = NewClient(string(rune('a'+i)), 4)
		clients[i].identity.Store(&Identity{ID: int64(i + 1)})
	}

	ev := &Event{Kind: EventNewMessage, Message: &Message{ChatEvent: store.ChatEvent{Seq: 42, IdentityID: 2, Body: "hi"}}}
	if n := f.Deliver(ev, clients); n != 3 {
		t.Fatalf("expected 3 deliveries, got %d", n)
	}

	for i, c := range clients {
		got := <-c.Events
		if got.Message.Seq != 42 {
			t.Fatalf("client %d: seq %d", i, got.Message.Seq)
		}
		if wantSelf := i == 1; got.IsSelf != wantSelf {
			t.Fatalf("client %d: is_self=%v want %v", i, got.IsSelf, wantSelf)
		}
	}
	if ev.IsSelf {
		t.Fatalf("source event must not be mutated")
	}
}

func TestFanoutIsolatesSlowAndClosedClients(t *testing.T) {
	f := NewFanout(nil)

	slow := NewClient("slow", 1)
	closed := NewClient("closed", 4)
	healthy := NewClient("healthy", 4)
	closed.close()

	slow.Events <- &Event{Kind: EventPresence}

	ev := &Event{Kind: EventUserJoined, Identity: &Identity{ID: 9}}
	if n := f.Deliver(ev, []*Client{slow, closed, healthy}); n != 1 {
		t.Fatalf("expected exactly one delivery, got %d", n)
	}
	if got := <-healthy.Events; got.Kind != EventUserJoined {
		t.Fatalf("unexpected event: %+v", got)
	}
	if len(closed.Events) != 0 {
		t.Fatalf("closed client must not receive events")
	}
}
