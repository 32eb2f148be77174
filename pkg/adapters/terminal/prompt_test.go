package terminal

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/fatih/color"
	"github.com/plandex-ai/survey/v2"
	"github.com/plandex-ai/survey/v2/terminal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	color.NoColor = true
}

func scripted(answers ...any) (AskFunc, *[]string) {
	var asked []string
	i := 0
	return func(p survey.Prompt, response any) error {
		switch q := p.(type) {
		case *survey.Input:
			asked = append(asked, q.Message)
		case *survey.Confirm:
			asked = append(asked, q.Message)
		}
		if i >= len(answers) {
			return errors.New("no more answers")
		}
		a := answers[i]
		i++
		switch v := a.(type) {
		case error:
			return v
		case string:
			*response.(*string) = v
		case bool:
			*response.(*bool) = v
		}
		return nil
	}, &asked
}

func TestCollector_Collect(t *testing.T) {
	ask, asked := scripted("Ada", "Paris")
	c := NewCollector(WithAsk(ask))

	res, err := c.Collect(context.Background(), []string{"NAME", "CITY"})
	require.NoError(t, err)
	assert.False(t, res.Cancelled)
	assert.Equal(t, map[string]string{"NAME": "Ada", "CITY": "Paris"}, res.Values)
	assert.Equal(t, []string{"[[NAME]]", "[[CITY]]"}, *asked)
}

func TestCollector_Interrupt(t *testing.T) {
	ask, _ := scripted("Ada", terminal.InterruptErr)
	c := NewCollector(WithAsk(ask))

	res, err := c.Collect(context.Background(), []string{"NAME", "CITY"})
	require.NoError(t, err)
	assert.True(t, res.Cancelled)
}

func TestCollector_ContextCancelled(t *testing.T) {
	ask, asked := scripted("Ada")
	c := NewCollector(WithAsk(ask))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := c.Collect(ctx, []string{"NAME"})
	require.NoError(t, err)
	assert.True(t, res.Cancelled)
	assert.Empty(t, *asked)
}

func TestCollector_Error(t *testing.T) {
	ask, _ := scripted(errors.New("tty gone"))
	c := NewCollector(WithAsk(ask))

	_, err := c.Collect(context.Background(), []string{"NAME"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NAME")
}

func TestNotifier_Confirm(t *testing.T) {
	ask, asked := scripted(true, false, terminal.InterruptErr)
	n := NewNotifier(WithAsk(ask))
	ctx := context.Background()

	ok, err := n.Confirm(ctx, "Delete it?", "Slots")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Slots: Delete it?", (*asked)[0])

	ok, err = n.Confirm(ctx, "Again?", "")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = n.Confirm(ctx, "Interrupted?", "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNotifier_Alert(t *testing.T) {
	var buf bytes.Buffer
	n := NewNotifier(WithOutput(&buf))

	require.NoError(t, n.Alert(context.Background(), "slot is empty", "Load failed"))
	require.NoError(t, n.Alert(context.Background(), "boom", ""))
	assert.Equal(t, "Load failed: slot is empty\nError: boom\n", buf.String())
}
