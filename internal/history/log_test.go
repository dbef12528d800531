package history

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/wireroom/internal/store"
	"github.com/vovakirdan/wireroom/internal/store/badgerstore"
	"github.com/vovakirdan/wireroom/internal/store/sqlite"
)

func backends(t *testing.T) map[string]store.EventStore {
	t.Helper()

	sq, err := sqlite.NewWithSetup(":memory:", sqlite.ApplySchema)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sq.Close() })

	bg, err := badgerstore.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = bg.Close() })

	return map[string]store.EventStore{"sqlite": sq, "badger": bg}
}

func TestLog_ConcurrentAppendAssignsDistinctContiguousSeq(t *testing.T) {
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			req := require.New(t)
			ctx := context.Background()
			log, err := Open(ctx, st)
			req.NoError(err)

			const n = 64
			var (
				wg   sync.WaitGroup
				mu   sync.Mutex
				seqs []int64
			)
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					ev, err := log.Append(ctx, store.ChatEvent{IdentityID: 1, Body: "hi", Kind: "text"})
					if err != nil {
						t.Errorf("append: %v", err)
						return
					}
					mu.Lock()
					seqs = append(seqs, ev.Seq)
					mu.Unlock()
				}()
			}
			wg.Wait()

			req.Len(seqs, n)
			sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })
			for i, seq := range seqs {
				req.Equal(int64(i+1), seq, "no gaps and no duplicates")
			}
			req.Equal(int64(n), log.LastSeq())
		})
	}
}

func TestLog_TailAfterHundredAppends(t *testing.T) {
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			req := require.New(t)
			ctx := context.Background()
			log, err := Open(ctx, st)
			req.NoError(err)

			for i := 0; i < 100; i++ {
				_, err := log.Append(ctx, store.ChatEvent{IdentityID: 1, Body: "m", Kind: "text"})
				req.NoError(err)
			}

			tail, err := log.Tail(ctx, DefaultReplayLimit)
			req.NoError(err)
			req.Len(tail, 50)
			for i, ev := range tail {
				req.Equal(int64(51+i), ev.Seq)
			}

			short, err := log.Tail(ctx, 500)
			req.NoError(err)
			req.Len(short, 100)
		})
	}
}

func TestLog_ResumesNumberingFromStore(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	st, err := badgerstore.Open("")
	req.NoError(err)
	t.Cleanup(func() { _ = st.Close() })

	first, err := Open(ctx, st)
	req.NoError(err)
	for i := 0; i < 3; i++ {
		_, err := first.Append(ctx, store.ChatEvent{Kind: "text"})
		req.NoError(err)
	}

	second, err := Open(ctx, st)
	req.NoError(err)
	ev, err := second.Append(ctx, store.ChatEvent{Kind: "text"})
	req.NoError(err)
	req.Equal(int64(4), ev.Seq)
}

type failingStore struct {
	store.EventStore
	fail bool
}

func (f *failingStore) AppendEvent(ctx context.Context, ev *store.ChatEvent) error {
	if f.fail {
		return errors.New("disk full")
	}
	return f.EventStore.AppendEvent(ctx, ev)
}

func TestLog_FailedAppendDoesNotConsumeSeq(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	inner, err := badgerstore.Open("")
	req.NoError(err)
	t.Cleanup(func() { _ = inner.Close() })

	st := &failingStore{EventStore: inner, fail: true}
	log, err := Open(ctx, st)
	req.NoError(err)

	_, err = log.Append(ctx, store.ChatEvent{Kind: "text"})
	req.Error(err)

	st.fail = false
	ev, err := log.Append(ctx, store.ChatEvent{Kind: "text"})
	req.NoError(err)
	req.Equal(int64(1), ev.Seq)
}
