package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/final221/Prompt-Assembler/internal/logging"
	"github.com/final221/Prompt-Assembler/pkg/compose"
	"github.com/final221/Prompt-Assembler/pkg/domain"
	"github.com/final221/Prompt-Assembler/pkg/ports"
)

// Defaults applied by New.
const (
	DefaultCooldown = 1500 * time.Millisecond
	DefaultLockKey  = "compose"
	DefaultLockTTL  = 30 * time.Second
	DefaultLockWait = 250 * time.Millisecond
)

// Flusher persists the working set.
type Flusher interface {
	Flush(ctx context.Context) error
}

// Composer assembles the working set.
type Composer interface {
	Compose() compose.Composition
}

// ModeFunc reports the execution mode to deliver with.
type ModeFunc func() domain.ExecutionMode

// Workflow runs compositions one at a time.
type Workflow struct {
	flusher   Flusher
	composer  Composer
	mode      ModeFunc
	collector ports.ValueCollector
	sink      ports.TextSink
	gate      *Gate
	logger    *slog.Logger
	cooldown  time.Duration

	locker   ports.DistributedLocker
	lockKey  string
	lockTTL  time.Duration
	lockWait time.Duration

	mu        sync.Mutex
	state     State
	executing bool
}

// Option configures the Workflow.
type Option func(*Workflow)

// WithLogger configures a logger for the Workflow.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Workflow) {
		w.logger = logger
	}
}

// WithCooldown sets how long the workflow stays busy after a run.
func WithCooldown(d time.Duration) Option {
	return func(w *Workflow) {
		w.cooldown = d
	}
}

// WithCollector sets the default value collector.
func WithCollector(c ports.ValueCollector) Option {
	return func(w *Workflow) {
		w.collector = c
	}
}

// WithSink sets the default text sink.
func WithSink(s ports.TextSink) Option {
	return func(w *Workflow) {
		w.sink = s
	}
}

// WithLocker guards runs across processes sharing one store.
// A run that cannot take the lock within wait reports busy.
func WithLocker(locker ports.DistributedLocker, key string, wait time.Duration) Option {
	return func(w *Workflow) {
		w.locker = locker
		if key != "" {
			w.lockKey = key
		}
		if wait > 0 {
			w.lockWait = wait
		}
	}
}

// New creates a Workflow.
func New(flusher Flusher, composer Composer, mode ModeFunc, opts ...Option) *Workflow {
	w := &Workflow{
		flusher:  flusher,
		composer: composer,
		mode:     mode,
		gate:     NewGate(),
		logger:   logging.NewNop(),
		cooldown: DefaultCooldown,
		lockKey:  DefaultLockKey,
		lockTTL:  DefaultLockTTL,
		lockWait: DefaultLockWait,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// State returns the current stage.
func (w *Workflow) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Executing reports whether a run or its cool-down is in progress.
func (w *Workflow) Executing() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.executing
}

// Run composes with the default collector and sink.
func (w *Workflow) Run(ctx context.Context) domain.Outcome {
	return w.RunWith(ctx, w.collector, w.sink)
}

// RunWith composes using the given collector and sink.
func (w *Workflow) RunWith(ctx context.Context, collector ports.ValueCollector, sink ports.TextSink) domain.Outcome {
	if !w.begin() {
		return domain.Warning(domain.ReasonBusy, domain.ErrBusy)
	}
	defer w.finish()

	if w.locker != nil {
		unlock, err := w.lock(ctx)
		if err != nil {
			w.logger.Info("composition held by another process", "key", w.lockKey, "err", err)
			return domain.Warning(domain.ReasonBusy, fmt.Errorf("%w: %v", domain.ErrBusy, err))
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				w.logger.Warn("failed to release composition lock", "key", w.lockKey, "err", err)
			}
		}()
	}

	w.setState(StateSaving)
	if err := w.flusher.Flush(ctx); err != nil {
		w.logger.Warn("flush before composition failed, continuing", "err", err)
	}

	w.setState(StateAssembling)
	c := w.composer.Compose()
	if c.Raw == "" {
		return domain.Warning(domain.ReasonEmpty, nil)
	}

	text := c.Raw
	if c.HasVariables() {
		w.setState(StateCollectingVariables)
		if collector == nil {
			return domain.Failure(domain.ReasonInvalid, errors.New("no value collector configured"))
		}
		col, err := w.gate.Collect(ctx, collector, c.Variables)
		switch {
		case errors.Is(err, domain.ErrRequestPending):
			return domain.Warning(domain.ReasonBusy, err)
		case err != nil:
			w.logger.Error("variable collection failed", "err", err)
			return domain.Failure(domain.ReasonInvalid, fmt.Errorf("failed to collect variables: %w", err))
		case col.Cancelled:
			return domain.Warning(domain.ReasonCancelled, nil)
		}
		text = c.Render(col.Values)
	}

	w.setState(StateDelivering)
	if sink == nil {
		return domain.Failure(domain.ReasonDeliveryFailed, errors.New("no text sink configured"))
	}
	return w.deliver(ctx, sink, w.mode(), text)
}

func (w *Workflow) deliver(ctx context.Context, sink ports.TextSink, mode domain.ExecutionMode, text string) domain.Outcome {
	switch mode {
	case domain.ModeClipboard:
		if err := sink.CopyToClipboard(ctx, text); err != nil {
			w.logger.Error("clipboard copy failed", "err", err)
			return domain.Failure(domain.ReasonDeliveryFailed, err)
		}
		return domain.Success(domain.ReasonCopied)
	case domain.ModeExecute:
		if sink.DeliverAndTrigger(ctx, text) {
			return domain.Success(domain.ReasonExecuted)
		}
	default:
		if sink.Deliver(ctx, text) {
			return domain.Success(domain.ReasonTransferred)
		}
	}

	w.logger.Info("target unavailable, falling back to clipboard", "mode", mode)
	if err := sink.CopyToClipboard(ctx, text); err != nil {
		w.logger.Error("clipboard fallback failed", "err", err)
		return domain.Failure(domain.ReasonDeliveryFailed, err)
	}
	return domain.Warning(domain.ReasonFallback, nil)
}

func (w *Workflow) lock(ctx context.Context) (ports.UnlockFunc, error) {
	lockCtx, cancel := context.WithTimeout(ctx, w.lockWait)
	defer cancel()
	return w.locker.Lock(lockCtx, w.lockKey, w.lockTTL)
}

func (w *Workflow) begin() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.executing {
		return false
	}
	w.executing = true
	w.state = StateSaving
	return true
}

// finish starts the cool-down. It runs on every exit path, panics included.
func (w *Workflow) finish() {
	if w.cooldown <= 0 {
		w.reset()
		return
	}
	w.setState(StateCoolingDown)
	time.AfterFunc(w.cooldown, w.reset)
}

func (w *Workflow) reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state = StateIdle
	w.executing = false
}

func (w *Workflow) setState(s State) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state = s
}
