// Package history implements the append-only chat log that assigns seq_id values
// and replays the most recent events to newly joined connections.
package history

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vovakirdan/wireroom/internal/store"
)

// DefaultReplayLimit is the number of events replayed to a joining connection.
const DefaultReplayLimit = 50

// Log is the ordering authority for chat events. Append is a linearization point:
// seq_id values are assigned under the log's own lock and persisted before the lock is released.
type Log struct {
	mu    sync.Mutex
	store store.EventStore
	last  int64
	now   func() time.Time
}

// Open builds a log on top of st, resuming numbering after the last stored event.
func Open(ctx context.Context, st store.EventStore) (*Log, error) {
	last, err := st.LastSeq(ctx)
	if err != nil {
		return nil, fmt.Errorf("load last seq: %w", err)
	}
	return &Log{store: st, last: last, now: time.Now}, nil
}

// Append assigns the next seq_id and created_at to ev and persists it.
// On a storage error the seq_id is not consumed.
func (l *Log) Append(ctx context.Context, ev store.ChatEvent) (store.ChatEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ev.Seq = l.last + 1
	ev.CreatedAt = l.now().UTC()
	if err := l.store.AppendEvent(ctx, &ev); err != nil {
		return store.ChatEvent{}, fmt.Errorf("append seq %d: %w", ev.Seq, err)
	}
	l.last = ev.Seq
	return ev, nil
}

// Tail returns up to n most recent events, oldest first.
func (l *Log) Tail(ctx context.Context, n int) ([]store.ChatEvent, error) {
	events, err := l.store.TailEvents(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("tail %d: %w", n, err)
	}
	out := make([]store.ChatEvent, 0, len(events))
	for _, ev := range events {
		out = append(out, *ev)
	}
	return out, nil
}

// LastSeq returns the seq_id of the most recent append.
func (l *Log) LastSeq() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.last
}
