// Package slots manages named snapshots of the working set.
package slots

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/final221/Prompt-Assembler/internal/logging"
	"github.com/final221/Prompt-Assembler/pkg/domain"
	"github.com/final221/Prompt-Assembler/pkg/persistence"
	"github.com/mitchellh/mapstructure"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Registry keeps the slot name index and reads and writes slot snapshots.
type Registry struct {
	gw     *persistence.Gateway
	logger *slog.Logger
	now    func() time.Time

	// writeMu serializes index rewrites so each one starts from the last persisted index.
	writeMu sync.Mutex

	mu       sync.Mutex
	names    map[string]string
	lastKey  int64
	collator *collate.Collator
}

// Option configures the Registry.
type Option func(*Registry)

// WithLogger configures a logger for the Registry.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithClock replaces the clock used to mint slot keys.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// WithLanguage sets the collation language for List. Defaults to the root locale.
func WithLanguage(tag language.Tag) Option {
	return func(r *Registry) {
		r.collator = collate.New(tag, collate.IgnoreCase)
	}
}

// New creates a Registry. Call Refresh to load the name index.
func New(gw *persistence.Gateway, opts ...Option) *Registry {
	r := &Registry{
		gw:       gw,
		logger:   logging.NewNop(),
		now:      time.Now,
		names:    map[string]string{},
		collator: collate.New(language.Und, collate.IgnoreCase),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Refresh reloads the name index. Stored snapshots missing from the index
// are listed under their key.
func (r *Registry) Refresh(ctx context.Context) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	names := r.gw.LoadSlotNames(ctx)
	for key := range names {
		if !persistence.IsSlotKey(key) {
			r.logger.Warn("ignoring malformed slot key in index", "key", key)
			delete(names, key)
		}
	}

	keys, err := r.gw.ListSlotKeys(ctx)
	if err != nil {
		r.logger.Warn("slot listing unavailable, using index only", "err", err)
	}
	for _, key := range keys {
		if _, ok := names[key]; !ok {
			r.logger.Info("recovered unindexed slot", "key", key)
			names[key] = key
		}
	}

	r.mu.Lock()
	r.names = names
	r.mu.Unlock()
}

// Save stores snapshot under a fresh key and indexes it as name.
func (r *Registry) Save(ctx context.Context, snapshot []domain.SnapshotEntry, name string) (string, error) {
	name = strings.TrimSpace(name)
	if len(snapshot) == 0 {
		return "", domain.ErrEmptySnapshot
	}
	if name == "" {
		return "", domain.ErrEmptyName
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	r.mu.Lock()
	key := r.nextKey()
	names := r.copyNames()
	r.mu.Unlock()

	if err := r.gw.SaveSnapshot(ctx, key, snapshot); err != nil {
		return "", fmt.Errorf("failed to save slot snapshot: %w", err)
	}

	names[key] = name
	if err := r.gw.SaveSlotNames(ctx, names); err != nil {
		if delErr := r.gw.DeleteSnapshot(ctx, key); delErr != nil {
			r.logger.Error("slot rollback failed", "key", key, "err", delErr)
		}
		return "", fmt.Errorf("failed to index slot: %w", err)
	}

	r.mu.Lock()
	r.names[key] = name
	r.mu.Unlock()

	r.logger.Info("slot saved", "key", key, "name", name, "parts", len(snapshot))
	return key, nil
}

// Load returns the snapshot stored under key.
func (r *Registry) Load(ctx context.Context, key string) ([]domain.SnapshotEntry, error) {
	raw, ok := r.gw.LoadSnapshot(ctx, key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSlotNotFound, key)
	}
	if _, isSeq := raw.([]any); !isSeq {
		return nil, fmt.Errorf("%w: %s is not a snapshot", domain.ErrSlotNotFound, key)
	}

	var entries []domain.SnapshotEntry
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &entries,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create snapshot decoder: %w", err)
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrSlotNotFound, key, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", domain.ErrSlotNotFound, key)
	}
	return entries, nil
}

// Delete removes the snapshot, then its index entry.
func (r *Registry) Delete(ctx context.Context, key string) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	if err := r.gw.DeleteSnapshot(ctx, key); err != nil {
		return fmt.Errorf("failed to delete slot: %w", err)
	}

	r.mu.Lock()
	names := r.copyNames()
	r.mu.Unlock()
	delete(names, key)

	if err := r.gw.SaveSlotNames(ctx, names); err != nil {
		return fmt.Errorf("failed to update slot index: %w", err)
	}

	r.mu.Lock()
	delete(r.names, key)
	r.mu.Unlock()

	r.logger.Info("slot deleted", "key", key)
	return nil
}

// Rename changes the display name of key.
func (r *Registry) Rename(ctx context.Context, key, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.ErrEmptyName
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	r.mu.Lock()
	if _, ok := r.names[key]; !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", domain.ErrSlotNotFound, key)
	}
	names := r.copyNames()
	r.mu.Unlock()

	names[key] = name
	if err := r.gw.SaveSlotNames(ctx, names); err != nil {
		return fmt.Errorf("failed to update slot index: %w", err)
	}

	r.mu.Lock()
	r.names[key] = name
	r.mu.Unlock()
	return nil
}

// Name returns the display name of key.
func (r *Registry) Name(key string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name, ok := r.names[key]
	return name, ok
}

// List returns the indexed slots sorted by display name, then key.
func (r *Registry) List() []domain.SlotInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.SlotInfo, 0, len(r.names))
	for key, name := range r.names {
		out = append(out, domain.SlotInfo{Key: key, DisplayName: name})
	}
	// Collator buffers are not safe for concurrent use; mu is held.
	sort.SliceStable(out, func(i, j int) bool {
		if c := r.collator.CompareString(out[i].DisplayName, out[j].DisplayName); c != 0 {
			return c < 0
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// nextKey mints a key strictly greater than any minted before. Caller holds mu.
func (r *Registry) nextKey() string {
	ms := r.now().UnixMilli()
	if ms <= r.lastKey {
		ms = r.lastKey + 1
	}
	for {
		if _, taken := r.names[persistence.SlotKey(ms)]; !taken {
			break
		}
		ms++
	}
	r.lastKey = ms
	return persistence.SlotKey(ms)
}

func (r *Registry) copyNames() map[string]string {
	out := make(map[string]string, len(r.names)+1)
	for k, v := range r.names {
		out[k] = v
	}
	return out
}
