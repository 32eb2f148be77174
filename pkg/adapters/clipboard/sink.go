// Package clipboard delivers assembled prompts to the system clipboard.
package clipboard

import (
	"context"
	"errors"

	"github.com/atotto/clipboard"
)

// ErrUnsupported is returned when no clipboard utility is available.
var ErrUnsupported = errors.New("system clipboard is not available")

// Sink implements ports.TextSink with the system clipboard only.
// There is no target application, so Deliver and DeliverAndTrigger always
// report false and the workflow falls back to CopyToClipboard.
type Sink struct {
	write       func(string) error
	unsupported bool
}

// Option configures the Sink.
type Option func(*Sink)

// WithWriter replaces the clipboard writer.
func WithWriter(write func(string) error) Option {
	return func(s *Sink) {
		s.write = write
		s.unsupported = false
	}
}

// NewSink creates a Sink writing to the system clipboard.
func NewSink(opts ...Option) *Sink {
	s := &Sink{
		write:       clipboard.WriteAll,
		unsupported: clipboard.Unsupported,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Deliver reports false: there is no target besides the clipboard.
func (s *Sink) Deliver(ctx context.Context, text string) bool {
	return false
}

// DeliverAndTrigger reports false: there is no target besides the clipboard.
func (s *Sink) DeliverAndTrigger(ctx context.Context, text string) bool {
	return false
}

// CopyToClipboard writes text to the clipboard.
func (s *Sink) CopyToClipboard(ctx context.Context, text string) error {
	if s.unsupported {
		return ErrUnsupported
	}
	return s.write(text)
}

// Copy is CopyToClipboard as a plain function, for other sinks to fall back on.
func (s *Sink) Copy(ctx context.Context, text string) error {
	return s.CopyToClipboard(ctx, text)
}
