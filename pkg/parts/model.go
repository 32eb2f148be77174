// Package parts holds the live working set of prompt parts and keeps it in sync
// with the persistence gateway.
package parts

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/final221/Prompt-Assembler/internal/logging"
	"github.com/final221/Prompt-Assembler/pkg/domain"
	"github.com/final221/Prompt-Assembler/pkg/persistence"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Field selects the part attribute changed by Update.
type Field int

const (
	FieldContent Field = iota
	FieldName
)

func (f Field) String() string {
	switch f {
	case FieldContent:
		return "content"
	case FieldName:
		return "name"
	default:
		return fmt.Sprintf("field(%d)", int(f))
	}
}

// Model is the ordered collection of parts.
// Mutations are synchronous; keystroke edits are persisted through the
// gateway's debounced flush, structural edits immediately.
type Model struct {
	gw     *persistence.Gateway
	logger *slog.Logger
	newID  func() string

	mu    sync.RWMutex
	order []string
	parts map[string]domain.Part
}

// Option configures the Model.
type Option func(*Model)

// WithLogger configures a logger for the Model.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Model) {
		m.logger = logger
	}
}

// WithIDGenerator replaces the UUID generator used for new parts.
func WithIDGenerator(fn func() string) Option {
	return func(m *Model) {
		m.newID = fn
	}
}

// New creates an empty Model bound to gw. Call Load to restore persisted parts.
func New(gw *persistence.Gateway, opts ...Option) *Model {
	m := &Model{
		gw:     gw,
		logger: logging.NewNop(),
		newID:  uuid.NewString,
		parts:  make(map[string]domain.Part),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Load restores the working set. A store that never saw an order gets one fresh part.
func (m *Model) Load(ctx context.Context) error {
	order, ok := m.gw.LoadOrder(ctx)
	if !ok {
		m.mu.Lock()
		id := m.newID()
		m.order = []string{id}
		m.parts = map[string]domain.Part{id: {ID: id, Name: domain.DefaultPartName(1)}}
		m.mu.Unlock()
		return m.gw.FlushNow(ctx, m)
	}

	order = dedupe(order)
	loaded := make([]domain.Part, len(order))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, id := range order {
		eg.Go(func() error {
			loaded[i] = m.gw.LoadPart(egCtx, id, i+1)
			return nil
		})
	}
	_ = eg.Wait()

	parts := make(map[string]domain.Part, len(order))
	for _, p := range loaded {
		parts[p.ID] = p
	}

	m.mu.Lock()
	m.order = order
	m.parts = parts
	m.mu.Unlock()

	m.logger.Debug("parts loaded", "count", len(order))
	return nil
}

// Add appends a fresh part and persists the working set.
func (m *Model) Add(ctx context.Context) (domain.Part, error) {
	m.mu.Lock()
	id := m.newID()
	p := domain.Part{ID: id, Name: domain.DefaultPartName(len(m.order) + 1)}
	m.order = append(m.order, id)
	m.parts[id] = p
	m.mu.Unlock()

	return p, m.gw.FlushNow(ctx, m)
}

// Update changes one field of part id and schedules a flush.
// It reports false when id is unknown.
func (m *Model) Update(id string, field Field, value string) bool {
	m.mu.Lock()
	p, ok := m.parts[id]
	if !ok {
		m.mu.Unlock()
		m.logger.Warn("update for unknown part ignored", "part", id, "field", field)
		return false
	}
	switch field {
	case FieldContent:
		p.Content = value
	case FieldName:
		p.Name = value
	default:
		m.mu.Unlock()
		m.logger.Warn("update for unknown field ignored", "part", id, "field", field)
		return false
	}
	m.parts[id] = p
	m.mu.Unlock()

	m.gw.ScheduleFlush(m)
	return true
}

// ToggleCollapse flips the collapse flag of part id and persists it.
func (m *Model) ToggleCollapse(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	p, ok := m.parts[id]
	if !ok {
		m.mu.Unlock()
		return false, fmt.Errorf("%w: %s", domain.ErrPartNotFound, id)
	}
	p.Collapsed = !p.Collapsed
	m.parts[id] = p
	m.mu.Unlock()

	return p.Collapsed, m.gw.SetCollapsed(ctx, id, p.Collapsed)
}

// Remove deletes part id from the working set and the store.
func (m *Model) Remove(ctx context.Context, id string) error {
	m.mu.Lock()
	if _, ok := m.parts[id]; !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", domain.ErrPartNotFound, id)
	}
	delete(m.parts, id)
	order := make([]string, 0, len(m.order))
	for _, o := range m.order {
		if o != id {
			order = append(order, o)
		}
	}
	m.order = order
	m.relabel()
	m.mu.Unlock()

	return m.gw.DeleteAndFlush(ctx, m, id)
}

// Reorder replaces the order. It must be a permutation of the current ids.
func (m *Model) Reorder(order []string) error {
	m.mu.Lock()
	if !isPermutation(order, m.parts) {
		m.mu.Unlock()
		return fmt.Errorf("%w: expected a permutation of %d ids", domain.ErrInvalidOrder, len(m.parts))
	}
	m.order = append([]string(nil), order...)
	m.relabel()
	m.mu.Unlock()

	m.gw.ScheduleFlush(m)
	return nil
}

// Snapshot returns the ordered entries worth saving.
// Parts holding nothing but their defaults are left out.
func (m *Model) Snapshot() []domain.SnapshotEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.SnapshotEntry, 0, len(m.order))
	for i, id := range m.order {
		p := m.parts[id]
		if p.IsUntouched(i + 1) {
			continue
		}
		out = append(out, p.Entry())
	}
	return out
}

// Replace discards every part and rebuilds the working set from entries.
func (m *Model) Replace(ctx context.Context, entries []domain.SnapshotEntry) error {
	m.mu.Lock()
	old := m.order
	m.order = make([]string, 0, len(entries))
	m.parts = make(map[string]domain.Part, len(entries))
	for i, e := range entries {
		id := m.newID()
		name := e.Name
		if name == "" {
			name = domain.DefaultPartName(i + 1)
		}
		m.order = append(m.order, id)
		m.parts[id] = domain.Part{ID: id, Name: name, Content: e.Content}
	}
	m.mu.Unlock()

	return m.gw.DeleteAndFlush(ctx, m, old...)
}

// Clear removes every part.
func (m *Model) Clear(ctx context.Context) error {
	m.mu.Lock()
	old := m.order
	m.order = []string{}
	m.parts = make(map[string]domain.Part)
	m.mu.Unlock()

	return m.gw.DeleteAndFlush(ctx, m, old...)
}

// Flush persists the working set now.
func (m *Model) Flush(ctx context.Context) error {
	return m.gw.FlushNow(ctx, m)
}

// Parts returns the parts in order.
func (m *Model) Parts() []domain.Part {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return domain.WorkingSet{Order: m.order, Parts: m.parts}.Ordered()
}

// Get returns part id.
func (m *Model) Get(id string) (domain.Part, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.parts[id]
	return p, ok
}

// Len returns the number of parts.
func (m *Model) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.order)
}

// WorkingSet returns a copy of the current order and parts.
func (m *Model) WorkingSet() domain.WorkingSet {
	m.mu.RLock()
	defer m.mu.RUnlock()

	parts := make(map[string]domain.Part, len(m.parts))
	for id, p := range m.parts {
		parts[id] = p
	}
	return domain.WorkingSet{
		Order: append([]string{}, m.order...),
		Parts: parts,
	}
}

// relabel renames auto-named parts after their position. Caller holds mu.
func (m *Model) relabel() {
	for i, id := range m.order {
		p := m.parts[id]
		if domain.IsAutoName(p.Name) {
			p.Name = domain.DefaultPartName(i + 1)
			m.parts[id] = p
		}
	}
}

func isPermutation(order []string, parts map[string]domain.Part) bool {
	if len(order) != len(parts) {
		return false
	}
	seen := make(map[string]struct{}, len(order))
	for _, id := range order {
		if _, ok := parts[id]; !ok {
			return false
		}
		if _, dup := seen[id]; dup {
			return false
		}
		seen[id] = struct{}{}
	}
	return true
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
