package domain_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/final221/Prompt-Assembler/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutionMode_Next(t *testing.T) {
	assert.Equal(t, domain.ModeTransfer, domain.ModeClipboard.Next())
	assert.Equal(t, domain.ModeExecute, domain.ModeTransfer.Next())
	assert.Equal(t, domain.ModeClipboard, domain.ModeExecute.Next())
	assert.Equal(t, domain.DefaultMode, domain.ExecutionMode(9).Next())
	assert.False(t, domain.ExecutionMode(-1).Valid())
}

func TestExecutionMode_Text(t *testing.T) {
	for _, m := range []domain.ExecutionMode{domain.ModeClipboard, domain.ModeTransfer, domain.ModeExecute} {
		parsed, err := domain.ParseMode(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, parsed)
	}

	_, err := domain.ParseMode("teleport")
	assert.Error(t, err)

	raw, err := json.Marshal(struct {
		Mode domain.ExecutionMode `json:"mode"`
	}{domain.ModeExecute})
	require.NoError(t, err)
	assert.JSONEq(t, `{"mode":"execute"}`, string(raw))

	var back struct {
		Mode domain.ExecutionMode `json:"mode"`
	}
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, domain.ModeExecute, back.Mode)
}

func TestOutcome(t *testing.T) {
	assert.True(t, domain.Success(domain.ReasonCopied).OK())
	assert.False(t, domain.Warning(domain.ReasonFallback, nil).OK())

	out := domain.Failure(domain.ReasonDeliveryFailed, errors.New("no clipboard"))
	assert.Equal(t, "failure: delivery_failed (no clipboard)", out.String())

	raw, err := json.Marshal(domain.Warning(domain.ReasonCancelled, nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"warning","reason":"cancelled"}`, string(raw))
}
