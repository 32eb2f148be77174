// Package terminal provides interactive ValueCollector and Notifier
// implementations backed by survey prompts.
package terminal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/final221/Prompt-Assembler/pkg/ports"
	"github.com/plandex-ai/survey/v2"
	"github.com/plandex-ai/survey/v2/terminal"
)

// AskFunc asks a single prompt and stores the answer in response.
type AskFunc func(p survey.Prompt, response any) error

// Option configures the Collector and Notifier.
type Option func(*options)

type options struct {
	ask AskFunc
	out io.Writer
}

// WithAsk replaces the function used to ask prompts.
func WithAsk(ask AskFunc) Option {
	return func(o *options) {
		o.ask = ask
	}
}

// WithOutput sets where alerts are printed.
func WithOutput(w io.Writer) Option {
	return func(o *options) {
		o.out = w
	}
}

func newOptions(opts []Option) options {
	o := options{
		ask: func(p survey.Prompt, response any) error {
			return survey.AskOne(p, response, survey.WithStdio(os.Stdin, os.Stdout, os.Stderr))
		},
		out: os.Stderr,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func isInterrupt(err error) bool {
	return errors.Is(err, terminal.InterruptErr)
}

// Collector asks for one value per template variable.
type Collector struct {
	opts options
}

// NewCollector creates a terminal Collector.
func NewCollector(opts ...Option) *Collector {
	return &Collector{opts: newOptions(opts)}
}

// Collect prompts for every name in order. Ctrl-C cancels the whole request.
func (c *Collector) Collect(ctx context.Context, names []string) (ports.Collection, error) {
	values := make(map[string]string, len(names))
	for _, name := range names {
		if ctx.Err() != nil {
			return ports.Collection{Cancelled: true}, nil
		}
		var v string
		prompt := &survey.Input{
			Message: color.New(color.FgHiMagenta, color.Bold).Sprintf("[[%s]]", name),
		}
		if err := c.opts.ask(prompt, &v); err != nil {
			if isInterrupt(err) {
				return ports.Collection{Cancelled: true}, nil
			}
			return ports.Collection{}, fmt.Errorf("failed to read value for %s: %w", name, err)
		}
		values[name] = v
	}
	return ports.Collection{Values: values}, nil
}

// Notifier confirms with a yes/no prompt and prints alerts.
type Notifier struct {
	opts options
}

// NewNotifier creates a terminal Notifier.
func NewNotifier(opts ...Option) *Notifier {
	return &Notifier{opts: newOptions(opts)}
}

// Confirm asks a yes/no question defaulting to no. Ctrl-C declines.
func (n *Notifier) Confirm(ctx context.Context, message, title string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	msg := message
	if title != "" {
		msg = color.New(color.Bold).Sprint(title) + ": " + message
	}
	var ok bool
	if err := n.opts.ask(&survey.Confirm{Message: msg}, &ok); err != nil {
		if isInterrupt(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to confirm: %w", err)
	}
	return ok, nil
}

// Alert prints the message in red.
func (n *Notifier) Alert(ctx context.Context, message, title string) error {
	prefix := "Error"
	if title != "" {
		prefix = title
	}
	_, err := fmt.Fprintf(n.opts.out, "%s %s\n", color.New(color.FgRed, color.Bold).Sprint(prefix+":"), message)
	return err
}
