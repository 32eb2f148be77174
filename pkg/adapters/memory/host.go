package memory

import (
	"context"
	"sync"

	"github.com/final221/Prompt-Assembler/pkg/ports"
)

// Collector implements ports.ValueCollector with canned answers.
// When Block is non-nil, Collect waits on it (or on ctx) before answering,
// which lets tests observe a pending request.
type Collector struct {
	mu sync.Mutex

	Values    map[string]string
	Cancelled bool
	Err       error
	Block     chan struct{}

	Requests [][]string
}

// Collect records the requested names and returns the canned answer.
func (c *Collector) Collect(ctx context.Context, names []string) (ports.Collection, error) {
	c.mu.Lock()
	c.Requests = append(c.Requests, append([]string(nil), names...))
	block := c.Block
	c.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ports.Collection{Cancelled: true}, nil
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return ports.Collection{}, c.Err
	}
	if c.Cancelled {
		return ports.Collection{Cancelled: true}, nil
	}
	return ports.Collection{Values: c.Values}, nil
}

// RequestCount returns how many times Collect was called.
func (c *Collector) RequestCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Requests)
}

// Notifier implements ports.Notifier with a fixed answer.
type Notifier struct {
	mu sync.Mutex

	Answer bool
	Err    error

	Confirms []string
	Alerts   []string
}

// Confirm records the message and returns Answer.
func (n *Notifier) Confirm(ctx context.Context, message, title string) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Confirms = append(n.Confirms, message)
	return n.Answer, n.Err
}

// Alert records the message.
func (n *Notifier) Alert(ctx context.Context, message, title string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Alerts = append(n.Alerts, message)
	return nil
}

// AutoConfirm is a Notifier that approves every confirmation and drops alerts.
type AutoConfirm struct{}

// Confirm always returns true.
func (AutoConfirm) Confirm(ctx context.Context, message, title string) (bool, error) {
	return true, nil
}

// Alert does nothing.
func (AutoConfirm) Alert(ctx context.Context, message, title string) error {
	return nil
}
