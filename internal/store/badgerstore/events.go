// Package badgerstore stores the chat event log in BadgerDB.
package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"

	"github.com/vovakirdan/wireroom/internal/store"
)

const eventPrefix = "evt:"

// EventStore implements store.EventStore on BadgerDB.
//
// Keys are "evt:{seq_id padded to 20 digits}" so lexicographic order equals seq order
// and a reverse prefix scan yields the newest events first.
type EventStore struct {
	db *badger.DB
}

var _ store.EventStore = (*EventStore)(nil)

// Open opens (or creates) a badger database at path. An empty path opens an in-memory database.
func Open(path string) (*EventStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &EventStore{db: db}, nil
}

// Close closes the database.
func (s *EventStore) Close() error {
	return s.db.Close()
}

func eventKey(seq int64) []byte {
	return []byte(fmt.Sprintf("%s%020d", eventPrefix, seq))
}

// AppendEvent stores ev under its seq key. An existing key is never overwritten.
func (s *EventStore) AppendEvent(_ context.Context, ev *store.ChatEvent) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal chat event: %w", err)
	}
	key := eventKey(ev.Seq)
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err == nil {
			return fmt.Errorf("chat event %d already stored", ev.Seq)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(key, value)
	})
}

// LastSeq returns the highest stored seq, or 0.
func (s *EventStore) LastSeq(ctx context.Context) (int64, error) {
	events, err := s.TailEvents(ctx, 1)
	if err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}
	return events[0].Seq, nil
}

// TailEvents returns up to n newest events, oldest first.
func (s *EventStore) TailEvents(_ context.Context, n int) ([]*store.ChatEvent, error) {
	if n <= 0 {
		return nil, nil
	}
	var events []*store.ChatEvent
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte(eventPrefix)
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		// '~' sorts after every digit, so seeking there lands on the newest key.
		for it.Seek(append(prefix, '~')); it.ValidForPrefix(prefix) && len(events) < n; it.Next() {
			var ev store.ChatEvent
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &ev)
			}); err != nil {
				return fmt.Errorf("decode chat event: %w", err)
			}
			events = append(events, &ev)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return lo.Reverse(events), nil
}
