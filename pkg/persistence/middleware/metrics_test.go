package middleware_test

import (
	"context"
	"testing"

	"github.com/final221/Prompt-Assembler/pkg/adapters/memory"
	"github.com/final221/Prompt-Assembler/pkg/persistence/middleware"
	"github.com/final221/Prompt-Assembler/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsMiddleware_Contract(t *testing.T) {
	mw := middleware.NewMetricsMiddleware(prometheus.NewRegistry())
	ports.RunKeyValueStoreContract(t, mw(memory.NewStore()))
}

func TestMetricsMiddleware_CountsResults(t *testing.T) {
	metrics := middleware.NewStoreMetrics(prometheus.NewRegistry())
	store := metrics.Middleware()(memory.NewStore())
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "v1:order", []byte(`[]`)))
	_, err := store.Get(ctx, "v1:order")
	require.NoError(t, err)
	_, err = store.Get(ctx, "missing")
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Ops.WithLabelValues("set", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Ops.WithLabelValues("get", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Ops.WithLabelValues("get", "not_found")))
	assert.Equal(t, 2, testutil.CollectAndCount(metrics.Duration))
}

func TestChain_Order(t *testing.T) {
	underlying := memory.NewStore()
	metrics := middleware.NewStoreMetrics(nil)
	store := middleware.Chain(underlying,
		metrics.Middleware(),
		middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: make([]byte, 32)}),
	)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", []byte("plain")))

	raw, err := underlying.Get(ctx, "k")
	require.NoError(t, err)
	assert.NotEqual(t, "plain", string(raw), "encryption sits below metrics")

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "plain", string(got))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Ops.WithLabelValues("get", "ok")))
}
