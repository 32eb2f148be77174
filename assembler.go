package assembler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/final221/Prompt-Assembler/internal/logging"
	"github.com/final221/Prompt-Assembler/pkg/compose"
	"github.com/final221/Prompt-Assembler/pkg/domain"
	"github.com/final221/Prompt-Assembler/pkg/loadout"
	"github.com/final221/Prompt-Assembler/pkg/parts"
	"github.com/final221/Prompt-Assembler/pkg/persistence"
	"github.com/final221/Prompt-Assembler/pkg/ports"
	"github.com/final221/Prompt-Assembler/pkg/slots"
	"github.com/final221/Prompt-Assembler/pkg/workflow"
)

// Version is stamped into loadout exports. Overridden at build time with -ldflags.
var Version = "0.1.0"

// Assembler is one prompt-assembly session over a key/value store.
type Assembler struct {
	store    ports.KeyValueStore
	gw       *persistence.Gateway
	model    *parts.Model
	engine   *compose.Engine
	registry *slots.Registry
	flow     *workflow.Workflow

	notifier  ports.Notifier
	collector ports.ValueCollector
	sink      ports.TextSink
	locker    ports.DistributedLocker
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string
	debounce  time.Duration
	cooldown  time.Duration
	retries   uint

	mu sync.RWMutex
	ui persistence.UIState
}

// Open restores the session persisted in store.
func Open(ctx context.Context, store ports.KeyValueStore, opts ...Option) (*Assembler, error) {
	a := &Assembler{
		store:    store,
		logger:   logging.NewNop(),
		now:      time.Now,
		debounce: persistence.DefaultDebounce,
		cooldown: workflow.DefaultCooldown,
		retries:  persistence.DefaultRetries,
	}
	for _, opt := range opts {
		opt(a)
	}

	a.gw = persistence.NewGateway(store,
		persistence.WithLogger(a.logger.With("component", "persistence")),
		persistence.WithDebounce(a.debounce),
		persistence.WithRetries(a.retries),
	)

	modelOpts := []parts.Option{parts.WithLogger(a.logger.With("component", "parts"))}
	if a.newID != nil {
		modelOpts = append(modelOpts, parts.WithIDGenerator(a.newID))
	}
	a.model = parts.New(a.gw, modelOpts...)
	a.engine = compose.NewEngine(a.model)
	a.registry = slots.New(a.gw,
		slots.WithLogger(a.logger.With("component", "slots")),
		slots.WithClock(a.now),
	)

	flowOpts := []workflow.Option{
		workflow.WithLogger(a.logger.With("component", "workflow")),
		workflow.WithCooldown(a.cooldown),
		workflow.WithCollector(a.collector),
		workflow.WithSink(a.sink),
	}
	if a.locker != nil {
		flowOpts = append(flowOpts, workflow.WithLocker(a.locker, "", 0))
	}
	a.flow = workflow.New(a.model, a.engine, a.Mode, flowOpts...)

	if err := a.model.Load(ctx); err != nil {
		return nil, fmt.Errorf("failed to load parts: %w", err)
	}
	a.registry.Refresh(ctx)
	a.ui = a.gw.LoadUIState(ctx)

	a.logger.Debug("session opened", "parts", a.model.Len(), "slots", len(a.registry.List()), "mode", a.ui.Mode)
	return a, nil
}

// Close flushes pending edits.
func (a *Assembler) Close(ctx context.Context) error {
	return a.gw.Close(ctx)
}

// --- Parts ---

// Parts returns the parts in order.
func (a *Assembler) Parts() []domain.Part {
	return a.model.Parts()
}

// Part returns part id.
func (a *Assembler) Part(id string) (domain.Part, bool) {
	return a.model.Get(id)
}

// AddPart appends an empty part.
func (a *Assembler) AddPart(ctx context.Context) (domain.Part, error) {
	return a.model.Add(ctx)
}

// SetContent edits the content of part id. Persistence is debounced.
func (a *Assembler) SetContent(id, content string) bool {
	return a.model.Update(id, parts.FieldContent, content)
}

// SetName edits the name of part id. Persistence is debounced.
func (a *Assembler) SetName(id, name string) bool {
	return a.model.Update(id, parts.FieldName, name)
}

// ToggleCollapse flips the collapse flag of part id.
func (a *Assembler) ToggleCollapse(ctx context.Context, id string) (bool, error) {
	return a.model.ToggleCollapse(ctx, id)
}

// RemovePart deletes part id.
func (a *Assembler) RemovePart(ctx context.Context, id string) error {
	return a.model.Remove(ctx, id)
}

// Reorder replaces the part order.
func (a *Assembler) Reorder(order []string) error {
	return a.model.Reorder(order)
}

// MovePart moves part id to the 0-based index to.
func (a *Assembler) MovePart(id string, to int) error {
	order := a.model.WorkingSet().Order
	from := -1
	for i, o := range order {
		if o == id {
			from = i
			break
		}
	}
	if from < 0 {
		return fmt.Errorf("%w: %s", domain.ErrPartNotFound, id)
	}
	if to < 0 || to >= len(order) {
		return fmt.Errorf("%w: position %d out of range", domain.ErrInvalidOrder, to)
	}

	order = append(order[:from], order[from+1:]...)
	order = append(order[:to], append([]string{id}, order[to:]...)...)
	return a.model.Reorder(order)
}

// Flush persists the working set now.
func (a *Assembler) Flush(ctx context.Context) error {
	return a.model.Flush(ctx)
}

// ClearAll deletes every part after confirmation.
func (a *Assembler) ClearAll(ctx context.Context) domain.Outcome {
	if out, ok := a.confirm(ctx, "This will delete ALL current prompt parts. Are you sure?", "Delete All Parts"); !ok {
		return out
	}
	if err := a.model.Clear(ctx); err != nil {
		return domain.Failure(domain.ReasonStorageFailed, err)
	}
	return domain.Success(domain.ReasonCleared)
}

// --- Composition ---

// Compose assembles the current parts.
func (a *Assembler) Compose() compose.Composition {
	return a.engine.Compose()
}

// Preview renders the composition with values, leaving unknown variables empty.
func (a *Assembler) Preview(values map[string]string) string {
	return a.engine.Compose().Render(values)
}

// Run composes and delivers with the configured collector and sink.
func (a *Assembler) Run(ctx context.Context) domain.Outcome {
	return a.flow.Run(ctx)
}

// RunWith composes and delivers with the given collector and sink.
func (a *Assembler) RunWith(ctx context.Context, collector ports.ValueCollector, sink ports.TextSink) domain.Outcome {
	return a.flow.RunWith(ctx, collector, sink)
}

// Executing reports whether a composition run or its cool-down is in progress.
func (a *Assembler) Executing() bool {
	return a.flow.Executing()
}

// --- UI scalars ---

// Mode returns the execution mode.
func (a *Assembler) Mode() domain.ExecutionMode {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.ui.Mode
}

// SetMode persists the execution mode.
func (a *Assembler) SetMode(ctx context.Context, mode domain.ExecutionMode) error {
	if !mode.Valid() {
		return fmt.Errorf("invalid execution mode %d", int(mode))
	}
	a.mu.Lock()
	a.ui.Mode = mode
	a.mu.Unlock()
	return a.gw.SetMode(ctx, mode)
}

// CycleMode advances to the next execution mode.
func (a *Assembler) CycleMode(ctx context.Context) (domain.ExecutionMode, error) {
	a.mu.Lock()
	a.ui.Mode = a.ui.Mode.Next()
	mode := a.ui.Mode
	a.mu.Unlock()
	return mode, a.gw.SetMode(ctx, mode)
}

// Visible reports whether the panel is shown.
func (a *Assembler) Visible() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.ui.Visible
}

// SetVisible persists panel visibility.
func (a *Assembler) SetVisible(ctx context.Context, visible bool) error {
	a.mu.Lock()
	a.ui.Visible = visible
	a.mu.Unlock()
	return a.gw.SetVisible(ctx, visible)
}

// Position returns the persisted panel position.
func (a *Assembler) Position() domain.Position {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.ui.Position
}

// SetPosition persists the panel position.
func (a *Assembler) SetPosition(ctx context.Context, pos domain.Position) error {
	a.mu.Lock()
	a.ui.Position = pos
	a.mu.Unlock()
	return a.gw.SetPosition(ctx, pos)
}

// --- Slots ---

// Slots lists saved slots by display name.
func (a *Assembler) Slots() []domain.SlotInfo {
	return a.registry.List()
}

// SaveSlot flushes the working set and saves its snapshot as name.
func (a *Assembler) SaveSlot(ctx context.Context, name string) (string, domain.Outcome) {
	if err := a.model.Flush(ctx); err != nil {
		a.logger.Warn("flush before save failed, continuing", "err", err)
	}
	return a.saveSnapshot(ctx, a.model.Snapshot(), name)
}

func (a *Assembler) saveSnapshot(ctx context.Context, snapshot []domain.SnapshotEntry, name string) (string, domain.Outcome) {
	key, err := a.registry.Save(ctx, snapshot, name)
	switch {
	case errors.Is(err, domain.ErrEmptySnapshot):
		return "", domain.Warning(domain.ReasonEmpty, err)
	case errors.Is(err, domain.ErrEmptyName):
		return "", domain.Warning(domain.ReasonInvalid, err)
	case err != nil:
		return "", domain.Failure(domain.ReasonStorageFailed, err)
	}
	return key, domain.Success(domain.ReasonSaved)
}

// LoadSlot replaces the working set with slot key after confirmation.
func (a *Assembler) LoadSlot(ctx context.Context, key string) domain.Outcome {
	entries, err := a.registry.Load(ctx, key)
	if err != nil {
		a.alert(ctx, fmt.Sprintf("Load failed: %v", err))
		return domain.Warning(domain.ReasonNotFound, err)
	}

	name, ok := a.registry.Name(key)
	if !ok {
		name = "this configuration"
	}
	if out, ok := a.confirm(ctx, fmt.Sprintf("Load %q? This will REPLACE all current parts.", name), "Confirm Load"); !ok {
		return out
	}

	if err := a.model.Replace(ctx, entries); err != nil {
		a.alert(ctx, fmt.Sprintf("Load failed: %v", err))
		return domain.Failure(domain.ReasonStorageFailed, err)
	}
	return domain.Success(domain.ReasonLoaded)
}

// DeleteSlot removes slot key after confirmation.
func (a *Assembler) DeleteSlot(ctx context.Context, key string) domain.Outcome {
	name, ok := a.registry.Name(key)
	if !ok {
		return domain.Warning(domain.ReasonNotFound, fmt.Errorf("%w: %s", domain.ErrSlotNotFound, key))
	}
	if out, ok := a.confirm(ctx, fmt.Sprintf("Permanently delete %q?", name), "Confirm Deletion"); !ok {
		return out
	}
	if err := a.registry.Delete(ctx, key); err != nil {
		return domain.Failure(domain.ReasonStorageFailed, err)
	}
	return domain.Success(domain.ReasonDeleted)
}

// RenameSlot changes the display name of slot key.
func (a *Assembler) RenameSlot(ctx context.Context, key, name string) error {
	return a.registry.Rename(ctx, key, name)
}

// Export is a rendered loadout ready to be written to a file.
type Export struct {
	FileName string
	Text     string
}

// ExportSlot renders slot key in the loadout text format.
func (a *Assembler) ExportSlot(ctx context.Context, key string) (Export, domain.Outcome) {
	entries, err := a.registry.Load(ctx, key)
	if err != nil {
		a.alert(ctx, fmt.Sprintf("Export failed: %v", err))
		return Export{}, domain.Warning(domain.ReasonNotFound, err)
	}
	name, _ := a.registry.Name(key)
	text := loadout.Encode(loadout.Loadout{
		Name:       name,
		Version:    Version,
		ExportedAt: a.now(),
		Parts:      entries,
	})
	return Export{FileName: loadout.FileName(name), Text: text}, domain.Success(domain.ReasonExported)
}

// ImportLoadout replaces the working set with a loadout after confirmation and saves
// it as a slot named after fileName.
func (a *Assembler) ImportLoadout(ctx context.Context, fileName, text string) domain.Outcome {
	if out, ok := a.confirm(ctx,
		"Importing will REPLACE current parts AND automatically save the imported configuration as a new slot. Continue?",
		"Confirm Import"); !ok {
		return out
	}

	entries, err := loadout.Decode(text)
	if err != nil {
		a.alert(ctx, fmt.Sprintf("Loadout import failed: %v", err))
		return domain.Failure(domain.ReasonInvalid, err)
	}
	if err := a.model.Replace(ctx, entries); err != nil {
		a.alert(ctx, fmt.Sprintf("Loadout import failed: %v", err))
		return domain.Failure(domain.ReasonStorageFailed, err)
	}

	name := loadout.NameFromFile(fileName)
	if strings.TrimSpace(name) == "" {
		name = "Imported Loadout"
	}
	if _, out := a.saveSnapshot(ctx, entries, name); !out.OK() {
		a.logger.Warn("imported loadout not saved as slot", "name", name, "err", out.Err)
		return domain.Warning(domain.ReasonImportSaveFailed, out.Err)
	}
	return domain.Success(domain.ReasonImported)
}

// confirm asks the notifier. ok is false when the action must stop, with out describing why.
func (a *Assembler) confirm(ctx context.Context, message, title string) (out domain.Outcome, ok bool) {
	if a.notifier == nil {
		return domain.Warning(domain.ReasonDeclined, nil), false
	}
	yes, err := a.notifier.Confirm(ctx, message, title)
	if err != nil {
		if ctx.Err() != nil {
			return domain.Warning(domain.ReasonCancelled, err), false
		}
		return domain.Failure(domain.ReasonInvalid, fmt.Errorf("failed to confirm: %w", err)), false
	}
	if !yes {
		return domain.Warning(domain.ReasonDeclined, nil), false
	}
	return domain.Outcome{}, true
}

func (a *Assembler) alert(ctx context.Context, message string) {
	if a.notifier == nil {
		return
	}
	if err := a.notifier.Alert(ctx, message, "Error"); err != nil {
		a.logger.Warn("alert not shown", "err", err)
	}
}
