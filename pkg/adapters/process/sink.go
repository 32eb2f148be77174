// Package process delivers assembled prompts to external programs.
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/final221/Prompt-Assembler/internal/logging"
)

// ErrNoClipboard is returned by CopyToClipboard when the sink has no clipboard func.
var ErrNoClipboard = errors.New("no clipboard configured")

// Defaults applied by NewSink.
const (
	DefaultTimeout = 10 * time.Second
	DefaultSettle  = 50 * time.Millisecond
)

// ClipboardFunc places text on the clipboard.
type ClipboardFunc func(ctx context.Context, text string) error

// Sink implements ports.TextSink by piping the text to configured commands.
// Commands get the text on stdin and the stage name in PROMPTASM_STAGE.
type Sink struct {
	cmds      Commands
	clipboard ClipboardFunc
	timeout   time.Duration
	settle    time.Duration
	logger    *slog.Logger
}

// SinkOption configures the sink.
type SinkOption func(*Sink)

// WithClipboard sets the clipboard used by CopyToClipboard.
func WithClipboard(fn ClipboardFunc) SinkOption {
	return func(s *Sink) {
		s.clipboard = fn
	}
}

// WithTimeout bounds each command run.
func WithTimeout(d time.Duration) SinkOption {
	return func(s *Sink) {
		s.timeout = d
	}
}

// WithSettle sets the pause between delivering and triggering.
func WithSettle(d time.Duration) SinkOption {
	return func(s *Sink) {
		s.settle = d
	}
}

// WithLogger configures a logger for the sink.
func WithLogger(logger *slog.Logger) SinkOption {
	return func(s *Sink) {
		s.logger = logger
	}
}

// NewSink creates a Sink running cmds.
func NewSink(cmds Commands, opts ...SinkOption) *Sink {
	s := &Sink{
		cmds:    cmds,
		timeout: DefaultTimeout,
		settle:  DefaultSettle,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Deliver runs the deliver command. It reports false when none is configured or it fails.
func (s *Sink) Deliver(ctx context.Context, text string) bool {
	if s.cmds.Deliver.IsZero() {
		return false
	}
	return s.run(ctx, "deliver", s.cmds.Deliver, text) == nil
}

// DeliverAndTrigger runs deliver, waits for the target to settle, then runs trigger.
func (s *Sink) DeliverAndTrigger(ctx context.Context, text string) bool {
	if s.cmds.Trigger.IsZero() || !s.Deliver(ctx, text) {
		return false
	}

	select {
	case <-time.After(s.settle):
	case <-ctx.Done():
		return false
	}
	return s.run(ctx, "trigger", s.cmds.Trigger, text) == nil
}

// CopyToClipboard forwards to the configured clipboard.
func (s *Sink) CopyToClipboard(ctx context.Context, text string) error {
	if s.clipboard == nil {
		return ErrNoClipboard
	}
	return s.clipboard(ctx, text)
}

func (s *Sink) run(ctx context.Context, stage string, c Command, text string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.Command, c.Args...)
	cmd.Dir = c.Dir
	cmd.Stdin = strings.NewReader(text)

	env := []string{"PROMPTASM_STAGE=" + stage}
	for k, v := range c.Environment {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	cmd.Env = append(cmd.Environ(), env...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		s.logger.Warn("sink command failed",
			"stage", stage,
			"command", c.Command,
			"err", err,
			"stderr", strings.TrimSpace(stderr.String()),
		)
		return fmt.Errorf("%s command failed: %w", stage, err)
	}
	s.logger.Debug("sink command succeeded", "stage", stage, "command", c.Command)
	return nil
}
