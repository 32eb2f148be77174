package assembler

import (
	"log/slog"
	"time"

	"github.com/final221/Prompt-Assembler/pkg/ports"
)

// Option defines a functional option for configuring the Assembler.
type Option func(*Assembler)

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Assembler) {
		a.logger = logger
	}
}

// WithNotifier sets the confirmation and alert collaborator.
// Without one, every confirmation is declined.
func WithNotifier(n ports.Notifier) Option {
	return func(a *Assembler) {
		a.notifier = n
	}
}

// WithCollector sets the variable value collector used by Run.
func WithCollector(c ports.ValueCollector) Option {
	return func(a *Assembler) {
		a.collector = c
	}
}

// WithSink sets the text sink used by Run.
func WithSink(s ports.TextSink) Option {
	return func(a *Assembler) {
		a.sink = s
	}
}

// WithDebounce sets the quiet period before keystroke edits are flushed.
func WithDebounce(d time.Duration) Option {
	return func(a *Assembler) {
		a.debounce = d
	}
}

// WithCooldown sets how long Run stays busy after a composition.
func WithCooldown(d time.Duration) Option {
	return func(a *Assembler) {
		a.cooldown = d
	}
}

// WithFlushRetries sets how many attempts each store write gets.
func WithFlushRetries(n uint) Option {
	return func(a *Assembler) {
		a.retries = n
	}
}

// WithClock replaces the clock used for slot keys and export dates.
func WithClock(now func() time.Time) Option {
	return func(a *Assembler) {
		a.now = now
	}
}

// WithLocker makes Run exclusive across every process sharing the store.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(a *Assembler) {
		a.locker = locker
	}
}

// WithIDGenerator replaces the generator of part IDs.
func WithIDGenerator(fn func() string) Option {
	return func(a *Assembler) {
		a.newID = fn
	}
}
