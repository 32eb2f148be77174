package clipboard_test

import (
	"context"
	"errors"
	"testing"

	"github.com/final221/Prompt-Assembler/pkg/adapters/clipboard"
	"github.com/final221/Prompt-Assembler/pkg/adapters/process"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSink_ClipboardOnly(t *testing.T) {
	var written []string
	sink := clipboard.NewSink(clipboard.WithWriter(func(s string) error {
		written = append(written, s)
		return nil
	}))
	ctx := context.Background()

	assert.False(t, sink.Deliver(ctx, "x"))
	assert.False(t, sink.DeliverAndTrigger(ctx, "x"))
	require.NoError(t, sink.CopyToClipboard(ctx, "hello"))
	assert.Equal(t, []string{"hello"}, written)
}

func TestSink_WriterError(t *testing.T) {
	sink := clipboard.NewSink(clipboard.WithWriter(func(string) error { return errors.New("xclip missing") }))
	assert.Error(t, sink.CopyToClipboard(context.Background(), "x"))
}

func TestSink_AsProcessFallback(t *testing.T) {
	var written string
	clip := clipboard.NewSink(clipboard.WithWriter(func(s string) error {
		written = s
		return nil
	}))
	sink := process.NewSink(process.Commands{}, process.WithClipboard(clip.Copy))

	require.NoError(t, sink.CopyToClipboard(context.Background(), "fallback"))
	assert.Equal(t, "fallback", written)
}
