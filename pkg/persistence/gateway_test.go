package persistence_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/final221/Prompt-Assembler/pkg/adapters/memory"
	"github.com/final221/Prompt-Assembler/pkg/domain"
	"github.com/final221/Prompt-Assembler/pkg/persistence"
	"github.com/final221/Prompt-Assembler/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// staticSource serves a fixed working set and counts reads.
type staticSource struct {
	mu    sync.Mutex
	ws    domain.WorkingSet
	reads atomic.Int32
}

func (s *staticSource) WorkingSet() domain.WorkingSet {
	s.reads.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ws
}

func (s *staticSource) set(ws domain.WorkingSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ws = ws
}

// flakyStore fails Set for keys in failing, a limited number of times each.
type flakyStore struct {
	ports.KeyValueStore
	mu       sync.Mutex
	failing  map[string]int
	attempts map[string]int
}

func newFlakyStore(failing map[string]int) *flakyStore {
	return &flakyStore{
		KeyValueStore: memory.NewStore(),
		failing:       failing,
		attempts:      map[string]int{},
	}
}

func (s *flakyStore) Set(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	s.attempts[key]++
	if s.failing[key] > 0 {
		s.failing[key]--
		s.mu.Unlock()
		return errors.New("disk full")
	}
	s.mu.Unlock()
	return s.KeyValueStore.Set(ctx, key, value)
}

func twoParts() domain.WorkingSet {
	return domain.WorkingSet{
		Order: []string{"a", "b"},
		Parts: map[string]domain.Part{
			"a": {ID: "a", Content: "hello", Name: "Intro"},
			"b": {ID: "b", Content: "world", Name: "Part 2", Collapsed: true},
		},
	}
}

func TestGateway_FlushAndLoad(t *testing.T) {
	store := memory.NewStore()
	gw := persistence.NewGateway(store)
	ctx := context.Background()

	require.NoError(t, gw.FlushWorkingSet(ctx, &staticSource{ws: twoParts()}))

	order, ok := gw.LoadOrder(ctx)
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, order)

	assert.Equal(t, domain.Part{ID: "a", Content: "hello", Name: "Intro"}, gw.LoadPart(ctx, "a", 1))
	assert.Equal(t, domain.Part{ID: "b", Content: "world", Name: "Part 2", Collapsed: true}, gw.LoadPart(ctx, "b", 2))

	raw, err := store.Get(ctx, "v1:part:content:a")
	require.NoError(t, err)
	assert.Equal(t, `"hello"`, string(raw))
}

func TestGateway_FlushEmptyOrderStillWrites(t *testing.T) {
	store := memory.NewStore()
	gw := persistence.NewGateway(store)
	ctx := context.Background()

	require.NoError(t, gw.FlushWorkingSet(ctx, &staticSource{}))

	raw, err := store.Get(ctx, persistence.KeyOrder)
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(raw))

	order, ok := gw.LoadOrder(ctx)
	assert.True(t, ok)
	assert.Empty(t, order)
}

func TestGateway_LoadDefaults(t *testing.T) {
	gw := persistence.NewGateway(memory.NewStore())
	ctx := context.Background()

	_, ok := gw.LoadOrder(ctx)
	assert.False(t, ok)

	assert.Equal(t, domain.Part{ID: "x", Name: "Part 3"}, gw.LoadPart(ctx, "x", 3))

	st := gw.LoadUIState(ctx)
	assert.True(t, st.Visible)
	assert.Equal(t, domain.ModeTransfer, st.Mode)
	assert.True(t, st.Position.IsZero())

	assert.Empty(t, gw.LoadSlotNames(ctx))
}

func TestGateway_CorruptValuesFallBack(t *testing.T) {
	store := memory.NewStore()
	gw := persistence.NewGateway(store)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, persistence.KeyOrder, []byte(`{not json`)))
	require.NoError(t, store.Set(ctx, persistence.KeyMode, []byte(`7`)))
	require.NoError(t, store.Set(ctx, persistence.KeySlotNames, []byte(`"oops"`)))

	_, ok := gw.LoadOrder(ctx)
	assert.False(t, ok)
	assert.Equal(t, domain.DefaultMode, gw.LoadUIState(ctx).Mode)
	assert.Empty(t, gw.LoadSlotNames(ctx))
}

func TestGateway_UIScalars(t *testing.T) {
	gw := persistence.NewGateway(memory.NewStore())
	ctx := context.Background()

	require.NoError(t, gw.SetVisible(ctx, false))
	require.NoError(t, gw.SetMode(ctx, domain.ModeExecute))
	require.NoError(t, gw.SetPosition(ctx, domain.Position{Top: "10px", Left: "20px"}))

	st := gw.LoadUIState(ctx)
	assert.False(t, st.Visible)
	assert.Equal(t, domain.ModeExecute, st.Mode)
	assert.Equal(t, domain.Position{Top: "10px", Left: "20px"}, st.Position)
}

func TestGateway_DeletePart(t *testing.T) {
	store := memory.NewStore()
	gw := persistence.NewGateway(store)
	ctx := context.Background()

	require.NoError(t, gw.FlushWorkingSet(ctx, &staticSource{ws: twoParts()}))
	require.NoError(t, gw.DeletePart(ctx, "a"))

	keys, err := store.List(ctx, "v1:part:")
	require.NoError(t, err)
	for _, k := range keys {
		assert.NotContains(t, k, ":a")
	}
	assert.Len(t, keys, 3)
}

// stallingStore holds the first write of key until release is closed.
type stallingStore struct {
	ports.KeyValueStore
	key     string
	stalled atomic.Bool
	reached chan struct{}
	release chan struct{}
}

func (s *stallingStore) Set(ctx context.Context, key string, value []byte) error {
	if key == s.key && s.stalled.CompareAndSwap(false, true) {
		close(s.reached)
		<-s.release
	}
	return s.KeyValueStore.Set(ctx, key, value)
}

func TestGateway_DeleteAndFlushWaitsForRunningFlush(t *testing.T) {
	store := &stallingStore{
		KeyValueStore: memory.NewStore(),
		key:           persistence.KeyOrder,
		reached:       make(chan struct{}),
		release:       make(chan struct{}),
	}
	gw := persistence.NewGateway(store)
	ctx := context.Background()
	src := &staticSource{ws: twoParts()}

	first := make(chan error, 1)
	go func() { first <- gw.FlushWorkingSet(ctx, src) }()
	<-store.reached

	ws := twoParts()
	ws.Order = []string{"a"}
	delete(ws.Parts, "b")
	src.set(ws)

	second := make(chan error, 1)
	go func() { second <- gw.DeleteAndFlush(ctx, src, "b") }()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), src.reads.Load(), "second flush must not read while the first runs")
	close(store.release)

	require.NoError(t, <-first)
	require.NoError(t, <-second)

	order, ok := gw.LoadOrder(ctx)
	require.True(t, ok)
	assert.Equal(t, []string{"a"}, order)

	keys, err := store.List(ctx, "v1:part:")
	require.NoError(t, err)
	for _, k := range keys {
		assert.NotContains(t, k, ":b")
	}
}

func TestGateway_RetriesTransientFailures(t *testing.T) {
	store := newFlakyStore(map[string]int{persistence.ContentKey("a"): 2})
	gw := persistence.NewGateway(store, persistence.WithRetryInterval(time.Millisecond))
	ctx := context.Background()

	require.NoError(t, gw.FlushWorkingSet(ctx, &staticSource{ws: twoParts()}))
	assert.Equal(t, 3, store.attempts[persistence.ContentKey("a")])
	assert.Equal(t, "hello", gw.LoadPart(ctx, "a", 1).Content)
}

func TestGateway_FlushReportsPersistentFailure(t *testing.T) {
	store := newFlakyStore(map[string]int{persistence.NameKey("b"): 100})
	gw := persistence.NewGateway(store,
		persistence.WithRetries(2),
		persistence.WithRetryInterval(time.Millisecond),
	)
	ctx := context.Background()

	err := gw.FlushWorkingSet(ctx, &staticSource{ws: twoParts()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), persistence.NameKey("b"))
	assert.Equal(t, 2, store.attempts[persistence.NameKey("b")])

	// Every other field still landed.
	order, ok := gw.LoadOrder(ctx)
	assert.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, order)
}

func TestGateway_ScheduledFlushCoalesces(t *testing.T) {
	store := memory.NewStore()
	gw := persistence.NewGateway(store, persistence.WithDebounce(20*time.Millisecond))
	src := &staticSource{ws: twoParts()}

	for i := 0; i < 5; i++ {
		gw.ScheduleFlush(src)
	}
	assert.True(t, gw.Pending())

	// The latest state is what gets written.
	ws := twoParts()
	p := ws.Parts["a"]
	p.Content = "edited"
	ws.Parts["a"] = p
	src.set(ws)

	assert.Eventually(t, func() bool { return !gw.Pending() }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool {
		return gw.LoadPart(context.Background(), "a", 1).Content == "edited"
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), src.reads.Load())
}

func TestGateway_CancelFlush(t *testing.T) {
	store := memory.NewStore()
	gw := persistence.NewGateway(store, persistence.WithDebounce(10*time.Millisecond))
	src := &staticSource{ws: twoParts()}

	gw.ScheduleFlush(src)
	gw.CancelFlush()
	time.Sleep(40 * time.Millisecond)

	assert.Zero(t, store.Len())
	assert.Zero(t, src.reads.Load())
}

func TestGateway_FlushNowAndClose(t *testing.T) {
	ctx := context.Background()

	t.Run("FlushNow cancels the pending flush", func(t *testing.T) {
		gw := persistence.NewGateway(memory.NewStore(), persistence.WithDebounce(time.Hour))
		src := &staticSource{ws: twoParts()}
		gw.ScheduleFlush(src)

		require.NoError(t, gw.FlushNow(ctx, src))
		assert.False(t, gw.Pending())
		_, ok := gw.LoadOrder(ctx)
		assert.True(t, ok)
	})

	t.Run("Close flushes pending work", func(t *testing.T) {
		gw := persistence.NewGateway(memory.NewStore(), persistence.WithDebounce(time.Hour))
		gw.ScheduleFlush(&staticSource{ws: twoParts()})

		require.NoError(t, gw.Close(ctx))
		order, ok := gw.LoadOrder(ctx)
		assert.True(t, ok)
		assert.Len(t, order, 2)
	})

	t.Run("Close without pending work is a no-op", func(t *testing.T) {
		store := memory.NewStore()
		gw := persistence.NewGateway(store)
		require.NoError(t, gw.Close(ctx))
		assert.Zero(t, store.Len())
	})
}

func TestGateway_Slots(t *testing.T) {
	store := memory.NewStore()
	gw := persistence.NewGateway(store)
	ctx := context.Background()

	entries := []domain.SnapshotEntry{{Name: "Intro", Content: "hi"}}
	require.NoError(t, gw.SaveSnapshot(ctx, "slot:1700000000000", entries))
	require.NoError(t, gw.SaveSlotNames(ctx, map[string]string{"slot:1700000000000": "Greeting"}))
	require.NoError(t, store.Set(ctx, "slot:notanumber", []byte(`[]`)))

	raw, ok := gw.LoadSnapshot(ctx, "slot:1700000000000")
	require.True(t, ok)
	assert.Equal(t, []any{map[string]any{"name": "Intro", "content": "hi"}}, raw)

	keys, err := gw.ListSlotKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"slot:1700000000000"}, keys)

	assert.Equal(t, map[string]string{"slot:1700000000000": "Greeting"}, gw.LoadSlotNames(ctx))

	require.NoError(t, gw.DeleteSnapshot(ctx, "slot:1700000000000"))
	_, ok = gw.LoadSnapshot(ctx, "slot:1700000000000")
	assert.False(t, ok)
}
