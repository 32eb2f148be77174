package workflow

import (
	"context"

	"github.com/final221/Prompt-Assembler/pkg/domain"
	"github.com/final221/Prompt-Assembler/pkg/ports"
)

// Gate allows a single outstanding variable-collection request.
type Gate struct {
	slot chan struct{}
}

// NewGate creates an open Gate.
func NewGate() *Gate {
	return &Gate{slot: make(chan struct{}, 1)}
}

// Collect forwards the request to c unless another one is outstanding,
// in which case it returns domain.ErrRequestPending.
// A cancelled ctx reports the collection as cancelled without waiting for c;
// a late answer from c is dropped.
func (g *Gate) Collect(ctx context.Context, c ports.ValueCollector, names []string) (ports.Collection, error) {
	select {
	case g.slot <- struct{}{}:
	default:
		return ports.Collection{}, domain.ErrRequestPending
	}
	defer func() { <-g.slot }()

	type answer struct {
		col ports.Collection
		err error
	}
	answered := make(chan answer, 1)
	go func() {
		col, err := c.Collect(ctx, names)
		answered <- answer{col, err}
	}()

	select {
	case a := <-answered:
		if ctx.Err() != nil {
			return ports.Collection{Cancelled: true}, nil
		}
		return a.col, a.err
	case <-ctx.Done():
		return ports.Collection{Cancelled: true}, nil
	}
}

// Pending reports whether a request is outstanding.
func (g *Gate) Pending() bool {
	return len(g.slot) > 0
}
