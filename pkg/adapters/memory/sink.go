package memory

import (
	"context"
	"errors"
	"sync"
)

// ErrClipboardUnavailable is returned by Sink.CopyToClipboard when FailClipboard is set.
var ErrClipboardUnavailable = errors.New("clipboard unavailable")

// Sink implements ports.TextSink by recording every delivery.
// The Reject* and FailClipboard switches simulate an unavailable target.
type Sink struct {
	mu sync.Mutex

	RejectDeliver bool
	RejectTrigger bool
	FailClipboard bool

	Delivered []string
	Triggered []string
	Clipboard []string
}

// NewSink creates a sink that accepts everything.
func NewSink() *Sink {
	return &Sink{}
}

// Deliver records the text unless RejectDeliver is set.
func (s *Sink) Deliver(ctx context.Context, text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.RejectDeliver {
		return false
	}
	s.Delivered = append(s.Delivered, text)
	return true
}

// DeliverAndTrigger records the text unless RejectTrigger is set.
func (s *Sink) DeliverAndTrigger(ctx context.Context, text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.RejectTrigger {
		return false
	}
	s.Triggered = append(s.Triggered, text)
	return true
}

// CopyToClipboard records the text unless FailClipboard is set.
func (s *Sink) CopyToClipboard(ctx context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailClipboard {
		return ErrClipboardUnavailable
	}
	s.Clipboard = append(s.Clipboard, text)
	return nil
}

// Last returns the most recent text that reached any channel of the sink.
func (s *Sink) Last() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range [][]string{s.Triggered, s.Delivered, s.Clipboard} {
		if len(ch) > 0 {
			return ch[len(ch)-1]
		}
	}
	return ""
}

// Calls returns the total number of accepted deliveries.
func (s *Sink) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Delivered) + len(s.Triggered) + len(s.Clipboard)
}
