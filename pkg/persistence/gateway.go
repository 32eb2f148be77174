package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/final221/Prompt-Assembler/internal/logging"
	"github.com/final221/Prompt-Assembler/pkg/domain"
	"github.com/final221/Prompt-Assembler/pkg/ports"
	"golang.org/x/sync/errgroup"
)

// Defaults applied by NewGateway.
const (
	DefaultDebounce      = 500 * time.Millisecond
	DefaultRetries       = 3
	DefaultRetryInterval = 50 * time.Millisecond

	flushConcurrency = 8
)

// WorkingSetSource supplies the working set to persist at flush time.
type WorkingSetSource interface {
	WorkingSet() domain.WorkingSet
}

// UIState groups the persisted panel scalars.
type UIState struct {
	Visible  bool
	Mode     domain.ExecutionMode
	Position domain.Position
}

// Gateway reads and writes the assembler's records.
type Gateway struct {
	store         ports.KeyValueStore
	logger        *slog.Logger
	retries       uint
	retryInterval time.Duration
	delay         time.Duration

	debounce *Debouncer

	// flushMu keeps flushes from overlapping. A flush reads the working set only
	// after taking it, so the last flush to finish wrote the newest state.
	flushMu sync.Mutex

	mu  sync.Mutex
	src WorkingSetSource
}

// Option configures the Gateway.
type Option func(*Gateway)

// WithLogger configures a logger for the Gateway.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// WithDebounce sets the quiet period before a scheduled flush runs.
func WithDebounce(d time.Duration) Option {
	return func(g *Gateway) {
		g.delay = d
	}
}

// WithRetries sets how many times a failed write is attempted in total.
func WithRetries(n uint) Option {
	return func(g *Gateway) {
		if n == 0 {
			n = 1
		}
		g.retries = n
	}
}

// WithRetryInterval sets the first backoff interval between write attempts.
func WithRetryInterval(d time.Duration) Option {
	return func(g *Gateway) {
		g.retryInterval = d
	}
}

// NewGateway creates a Gateway over store.
func NewGateway(store ports.KeyValueStore, opts ...Option) *Gateway {
	g := &Gateway{
		store:         store,
		logger:        logging.NewNop(),
		retries:       DefaultRetries,
		retryInterval: DefaultRetryInterval,
		delay:         DefaultDebounce,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.debounce = NewDebouncer(g.delay, g.flushScheduled)
	return g
}

// --- Working set ---

// FlushWorkingSet writes every field of every ordered part and then the order list.
// The working set is read from src once no other flush is running.
func (g *Gateway) FlushWorkingSet(ctx context.Context, src WorkingSetSource) error {
	g.flushMu.Lock()
	defer g.flushMu.Unlock()
	return g.flushWorkingSet(ctx, src)
}

func (g *Gateway) flushWorkingSet(ctx context.Context, src WorkingSetSource) error {
	ws := src.WorkingSet()

	var (
		mu   sync.Mutex
		errs []error
	)
	eg := new(errgroup.Group)
	eg.SetLimit(flushConcurrency)

	write := func(key string, v any) {
		eg.Go(func() error {
			if err := g.put(ctx, key, v); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}

	for _, p := range ws.Ordered() {
		write(ContentKey(p.ID), p.Content)
		write(NameKey(p.ID), p.Name)
		write(CollapsedKey(p.ID), p.Collapsed)
	}
	_ = eg.Wait()

	order := ws.Order
	if order == nil {
		order = []string{}
	}
	if err := g.put(ctx, KeyOrder, order); err != nil {
		errs = append(errs, err)
	}

	if err := errors.Join(errs...); err != nil {
		g.logger.Error("working set flush incomplete", "parts", len(ws.Order), "failed", len(errs), "err", err)
		return fmt.Errorf("failed to flush working set: %w", err)
	}
	g.logger.Debug("working set flushed", "parts", len(ws.Order))
	return nil
}

// ScheduleFlush arms the trailing-edge flush for src.
func (g *Gateway) ScheduleFlush(src WorkingSetSource) {
	g.mu.Lock()
	g.src = src
	g.mu.Unlock()
	g.debounce.Call()
}

// FlushNow cancels any scheduled flush and flushes src synchronously.
func (g *Gateway) FlushNow(ctx context.Context, src WorkingSetSource) error {
	g.debounce.Cancel()
	return g.FlushWorkingSet(ctx, src)
}

// DeleteAndFlush removes the keys of ids and then flushes src, with no other
// flush running in between. src must no longer hold ids.
// A flush error wins over a delete error.
func (g *Gateway) DeleteAndFlush(ctx context.Context, src WorkingSetSource, ids ...string) error {
	g.debounce.Cancel()

	g.flushMu.Lock()
	defer g.flushMu.Unlock()

	var delErr error
	for _, id := range ids {
		if err := g.DeletePart(ctx, id); err != nil && delErr == nil {
			delErr = err
		}
	}
	if err := g.flushWorkingSet(ctx, src); err != nil {
		return err
	}
	return delErr
}

// CancelFlush drops the scheduled flush, if any.
func (g *Gateway) CancelFlush() {
	g.debounce.Cancel()
}

// Pending reports whether a scheduled flush has not run yet.
func (g *Gateway) Pending() bool {
	return g.debounce.Pending()
}

// Close runs the scheduled flush now, if there is one.
func (g *Gateway) Close(ctx context.Context) error {
	if !g.debounce.Cancel() {
		return nil
	}
	g.mu.Lock()
	src := g.src
	g.mu.Unlock()
	if src == nil {
		return nil
	}
	return g.FlushWorkingSet(ctx, src)
}

func (g *Gateway) flushScheduled() {
	g.mu.Lock()
	src := g.src
	g.mu.Unlock()
	if src == nil {
		return
	}
	// Errors are already logged by FlushWorkingSet.
	_ = g.FlushWorkingSet(context.Background(), src)
}

// LoadOrder returns the persisted order. ok is false when no order was ever written.
func (g *Gateway) LoadOrder(ctx context.Context) (order []string, ok bool) {
	if !g.get(ctx, KeyOrder, &order) {
		return nil, false
	}
	if order == nil {
		order = []string{}
	}
	return order, true
}

// LoadPart reads the fields of part id, filling defaults for the 1-based position.
func (g *Gateway) LoadPart(ctx context.Context, id string, pos int) domain.Part {
	p := domain.Part{ID: id}
	var (
		name    string
		hasName bool
	)

	eg := new(errgroup.Group)
	eg.Go(func() error {
		g.get(ctx, ContentKey(id), &p.Content)
		return nil
	})
	eg.Go(func() error {
		hasName = g.get(ctx, NameKey(id), &name)
		return nil
	})
	eg.Go(func() error {
		g.get(ctx, CollapsedKey(id), &p.Collapsed)
		return nil
	})
	_ = eg.Wait()

	if !hasName || name == "" {
		name = domain.DefaultPartName(pos)
	}
	p.Name = name
	return p
}

// DeletePart removes every key owned by part id.
func (g *Gateway) DeletePart(ctx context.Context, id string) error {
	var errs []error
	for _, key := range PartKeys(id) {
		if err := g.store.Delete(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("failed to delete %s: %w", key, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		g.logger.Error("part delete incomplete", "part", id, "err", err)
		return err
	}
	return nil
}

// SaveOrder writes the order list alone.
func (g *Gateway) SaveOrder(ctx context.Context, order []string) error {
	if order == nil {
		order = []string{}
	}
	return g.logWrite(KeyOrder, g.put(ctx, KeyOrder, order))
}

// SetCollapsed persists the collapse flag of part id.
func (g *Gateway) SetCollapsed(ctx context.Context, id string, collapsed bool) error {
	key := CollapsedKey(id)
	return g.logWrite(key, g.put(ctx, key, collapsed))
}

// --- UI scalars ---

// LoadUIState reads the panel scalars, falling back to defaults.
func (g *Gateway) LoadUIState(ctx context.Context) UIState {
	st := UIState{Visible: true, Mode: domain.DefaultMode}

	var visible bool
	if g.get(ctx, KeyVisible, &visible) {
		st.Visible = visible
	}

	var mode int
	if g.get(ctx, KeyMode, &mode) {
		if m := domain.ExecutionMode(mode); m.Valid() {
			st.Mode = m
		} else {
			g.logger.Warn("ignoring unknown execution mode", "mode", mode)
		}
	}

	var pos domain.Position
	if g.get(ctx, KeyPosition, &pos) && !pos.IsZero() {
		st.Position = pos
	}
	return st
}

// SetVisible persists panel visibility.
func (g *Gateway) SetVisible(ctx context.Context, visible bool) error {
	return g.logWrite(KeyVisible, g.put(ctx, KeyVisible, visible))
}

// SetMode persists the execution mode.
func (g *Gateway) SetMode(ctx context.Context, mode domain.ExecutionMode) error {
	return g.logWrite(KeyMode, g.put(ctx, KeyMode, int(mode)))
}

// SetPosition persists the panel position.
func (g *Gateway) SetPosition(ctx context.Context, pos domain.Position) error {
	return g.logWrite(KeyPosition, g.put(ctx, KeyPosition, pos))
}

// --- Slots ---

// SaveSnapshot writes the snapshot stored under a slot key.
func (g *Gateway) SaveSnapshot(ctx context.Context, key string, entries []domain.SnapshotEntry) error {
	return g.logWrite(key, g.put(ctx, key, entries))
}

// LoadSnapshot returns the raw decoded value stored under a slot key.
// Callers validate its shape.
func (g *Gateway) LoadSnapshot(ctx context.Context, key string) (any, bool) {
	var raw any
	if !g.get(ctx, key, &raw) {
		return nil, false
	}
	return raw, true
}

// DeleteSnapshot removes a slot snapshot.
func (g *Gateway) DeleteSnapshot(ctx context.Context, key string) error {
	if err := g.store.Delete(ctx, key); err != nil {
		g.logger.Error("snapshot delete failed", "key", key, "err", err)
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// LoadSlotNames returns the slot display-name index.
func (g *Gateway) LoadSlotNames(ctx context.Context) map[string]string {
	names := map[string]string{}
	if !g.get(ctx, KeySlotNames, &names) || names == nil {
		return map[string]string{}
	}
	return names
}

// SaveSlotNames replaces the slot display-name index.
func (g *Gateway) SaveSlotNames(ctx context.Context, names map[string]string) error {
	if names == nil {
		names = map[string]string{}
	}
	return g.logWrite(KeySlotNames, g.put(ctx, KeySlotNames, names))
}

// ListSlotKeys returns every stored slot key, sorted.
func (g *Gateway) ListSlotKeys(ctx context.Context) ([]string, error) {
	keys, err := g.store.List(ctx, SlotPrefix)
	if err != nil {
		g.logger.Error("slot listing failed", "err", err)
		return nil, fmt.Errorf("failed to list slots: %w", err)
	}
	out := keys[:0]
	for _, k := range keys {
		if IsSlotKey(k) {
			out = append(out, k)
		}
	}
	return out, nil
}

// --- helpers ---

// get decodes key into target. It reports false on a miss or any failure.
func (g *Gateway) get(ctx context.Context, key string, target any) bool {
	raw, err := g.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrKeyNotFound) {
			g.logger.Warn("read failed, using default", "key", key, "err", err)
		}
		return false
	}
	if err := json.Unmarshal(raw, target); err != nil {
		g.logger.Warn("undecodable value, using default", "key", key, "err", err)
		return false
	}
	return true
}

// put encodes v and writes it, retrying with exponential backoff.
func (g *Gateway) put(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = g.retryInterval
	b.MaxInterval = 10 * g.retryInterval

	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, g.store.Set(ctx, key, data)
	}, backoff.WithBackOff(b), backoff.WithMaxTries(g.retries))
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func (g *Gateway) logWrite(key string, err error) error {
	if err != nil {
		g.logger.Error("write failed", "key", key, "err", err)
	}
	return err
}
