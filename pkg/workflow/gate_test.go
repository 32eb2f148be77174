package workflow_test

import (
	"context"
	"testing"
	"time"

	"github.com/final221/Prompt-Assembler/pkg/adapters/memory"
	"github.com/final221/Prompt-Assembler/pkg/domain"
	"github.com/final221/Prompt-Assembler/pkg/ports"
	"github.com/final221/Prompt-Assembler/pkg/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGate_SingleOutstandingRequest(t *testing.T) {
	gate := workflow.NewGate()
	collector := &memory.Collector{Block: make(chan struct{}), Values: map[string]string{"A": "1"}}

	done := make(chan ports.Collection, 1)
	go func() {
		col, _ := gate.Collect(context.Background(), collector, []string{"A"})
		done <- col
	}()
	require.Eventually(t, gate.Pending, time.Second, 5*time.Millisecond)

	_, err := gate.Collect(context.Background(), collector, []string{"A"})
	assert.ErrorIs(t, err, domain.ErrRequestPending)

	close(collector.Block)
	assert.Equal(t, map[string]string{"A": "1"}, (<-done).Values)
	assert.False(t, gate.Pending())

	col, err := gate.Collect(context.Background(), collector, []string{"A"})
	require.NoError(t, err)
	assert.Equal(t, "1", col.Values["A"])
}

func TestGate_CancelledContext(t *testing.T) {
	gate := workflow.NewGate()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	col, err := gate.Collect(ctx, ports.StaticValues(map[string]string{"A": "1"}), []string{"A"})
	require.NoError(t, err)
	assert.True(t, col.Cancelled)
}

// stuckCollector never answers and ignores ctx.
type stuckCollector struct {
	called chan struct{}
}

func (c stuckCollector) Collect(context.Context, []string) (ports.Collection, error) {
	close(c.called)
	select {}
}

func TestGate_CancelDoesNotWaitForCollector(t *testing.T) {
	gate := workflow.NewGate()
	collector := stuckCollector{called: make(chan struct{})}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan ports.Collection, 1)
	go func() {
		col, _ := gate.Collect(ctx, collector, []string{"A"})
		done <- col
	}()
	<-collector.called
	cancel()

	select {
	case col := <-done:
		assert.True(t, col.Cancelled)
	case <-time.After(time.Second):
		t.Fatal("collection still waiting after cancel")
	}
	assert.False(t, gate.Pending())
}
