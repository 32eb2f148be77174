package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/final221/Prompt-Assembler/pkg/domain"
	"github.com/final221/Prompt-Assembler/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
)

// Result label values.
const (
	resultOK       = "ok"
	resultNotFound = "not_found"
	resultError    = "error"
)

// StoreMetrics holds the collectors recorded by the metrics middleware.
type StoreMetrics struct {
	Ops      *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

// NewStoreMetrics creates the store collectors and registers them on reg when it is not nil.
func NewStoreMetrics(reg prometheus.Registerer) *StoreMetrics {
	m := &StoreMetrics{
		Ops: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "promptasm_store_ops_total",
				Help: "Total number of key/value store operations",
			},
			[]string{"op", "result"},
		),
		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "promptasm_store_op_duration_seconds",
				Help:    "Duration of key/value store operations",
				Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
			},
			[]string{"op"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.Ops, m.Duration)
	}
	return m
}

// NewMetricsMiddleware records operation counts and latencies on reg.
func NewMetricsMiddleware(reg prometheus.Registerer) Middleware {
	return NewStoreMetrics(reg).Middleware()
}

// Middleware returns a decorator recording into m.
func (m *StoreMetrics) Middleware() Middleware {
	return func(next ports.KeyValueStore) ports.KeyValueStore {
		return &metricsMiddleware{next: next, metrics: m}
	}
}

type metricsMiddleware struct {
	next    ports.KeyValueStore
	metrics *StoreMetrics
}

func (m *metricsMiddleware) observe(op string, start time.Time, err error) {
	result := resultOK
	switch {
	case errors.Is(err, domain.ErrKeyNotFound):
		result = resultNotFound
	case err != nil:
		result = resultError
	}
	m.metrics.Ops.WithLabelValues(op, result).Inc()
	m.metrics.Duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (m *metricsMiddleware) Get(ctx context.Context, key string) (value []byte, err error) {
	defer func(start time.Time) { m.observe("get", start, err) }(time.Now())
	return m.next.Get(ctx, key)
}

func (m *metricsMiddleware) Set(ctx context.Context, key string, value []byte) (err error) {
	defer func(start time.Time) { m.observe("set", start, err) }(time.Now())
	return m.next.Set(ctx, key, value)
}

func (m *metricsMiddleware) Delete(ctx context.Context, key string) (err error) {
	defer func(start time.Time) { m.observe("delete", start, err) }(time.Now())
	return m.next.Delete(ctx, key)
}

func (m *metricsMiddleware) List(ctx context.Context, prefix string) (keys []string, err error) {
	defer func(start time.Time) { m.observe("list", start, err) }(time.Now())
	return m.next.List(ctx, prefix)
}
