package ports

import "context"

// Collection is the answer of a ValueCollector.
// Values is only meaningful when Cancelled is false.
type Collection struct {
	Cancelled bool
	Values    map[string]string
}

// ValueCollector asks the user for the values of template variables.
// Callers must not issue a second Collect while one is outstanding.
type ValueCollector interface {
	Collect(ctx context.Context, names []string) (Collection, error)
}

// Notifier confirms actions and displays alerts.
type Notifier interface {
	Confirm(ctx context.Context, message, title string) (bool, error)
	Alert(ctx context.Context, message, title string) error
}

// TextSink delivers the assembled text to the target application.
type TextSink interface {
	// Deliver hands the text to the target. It reports whether the target accepted it.
	Deliver(ctx context.Context, text string) bool

	// DeliverAndTrigger hands the text over and triggers it. It reports whether the trigger fired.
	DeliverAndTrigger(ctx context.Context, text string) bool

	// CopyToClipboard places the text on the clipboard.
	CopyToClipboard(ctx context.Context, text string) error
}

// CollectorFunc adapts a function to the ValueCollector interface.
type CollectorFunc func(ctx context.Context, names []string) (Collection, error)

// Collect calls f.
func (f CollectorFunc) Collect(ctx context.Context, names []string) (Collection, error) {
	return f(ctx, names)
}

// StaticValues returns a collector that answers every request with the given values.
func StaticValues(values map[string]string) ValueCollector {
	return CollectorFunc(func(ctx context.Context, names []string) (Collection, error) {
		out := make(map[string]string, len(names))
		for _, n := range names {
			if v, ok := values[n]; ok {
				out[n] = v
			}
		}
		return Collection{Values: out}, nil
	})
}
