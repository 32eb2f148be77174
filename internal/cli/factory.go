package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	assembler "github.com/final221/Prompt-Assembler"
	"github.com/final221/Prompt-Assembler/internal/config"
	"github.com/final221/Prompt-Assembler/internal/logging"
	"github.com/final221/Prompt-Assembler/pkg/adapters/clipboard"
	"github.com/final221/Prompt-Assembler/pkg/adapters/file"
	"github.com/final221/Prompt-Assembler/pkg/adapters/memory"
	"github.com/final221/Prompt-Assembler/pkg/adapters/process"
	"github.com/final221/Prompt-Assembler/pkg/adapters/redis"
	"github.com/final221/Prompt-Assembler/pkg/persistence/middleware"
	"github.com/final221/Prompt-Assembler/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
)

// Options carries the interactive collaborators of a CLI session.
type Options struct {
	Notifier  ports.Notifier
	Collector ports.ValueCollector
	// Logger overrides the logger built from the config.
	Logger *slog.Logger
}

// Session is an opened assembler plus everything it owns.
type Session struct {
	Assembler *assembler.Assembler
	Sink      ports.TextSink
	Metrics   *prometheus.Registry
	Logger    *slog.Logger

	closers []io.Closer
}

// Close flushes pending edits and releases the store and log file.
func (s *Session) Close(ctx context.Context) error {
	errs := []error{s.Assembler.Close(ctx)}
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i].Close())
	}
	return errors.Join(errs...)
}

// OpenSession builds the store, sink and assembler described by cfg.
func OpenSession(ctx context.Context, cfg config.Config, opts Options) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	s := &Session{Metrics: prometheus.NewRegistry(), Logger: opts.Logger}
	if s.Logger == nil {
		logger, closer, err := NewLogger(cfg.Log)
		if err != nil {
			return nil, err
		}
		s.Logger = logger
		if closer != nil {
			s.closers = append(s.closers, closer)
		}
	}

	store, locker, closer, err := NewStore(cfg.Store, s.Metrics)
	if err != nil {
		_ = s.closeAll()
		return nil, err
	}
	if closer != nil {
		s.closers = append(s.closers, closer)
	}

	sink, err := NewSink(cfg.Sink, s.Logger)
	if err != nil {
		_ = s.closeAll()
		return nil, err
	}
	s.Sink = sink

	asmOpts := []assembler.Option{
		assembler.WithLogger(s.Logger),
		assembler.WithSink(s.Sink),
		assembler.WithDebounce(cfg.Session.Debounce),
		assembler.WithCooldown(cfg.Session.Cooldown),
		assembler.WithFlushRetries(cfg.Session.Retries),
	}
	if opts.Notifier != nil {
		asmOpts = append(asmOpts, assembler.WithNotifier(opts.Notifier))
	}
	if opts.Collector != nil {
		asmOpts = append(asmOpts, assembler.WithCollector(opts.Collector))
	}
	if locker != nil {
		asmOpts = append(asmOpts, assembler.WithLocker(locker))
	}

	a, err := assembler.Open(ctx, store, asmOpts...)
	if err != nil {
		_ = s.closeAll()
		return nil, err
	}
	s.Assembler = a
	return s, nil
}

func (s *Session) closeAll() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i].Close())
	}
	return errors.Join(errs...)
}

// NewStore creates the configured backend wrapped in the metrics and, when a key is
// set, encryption middleware. locker and closer may be nil.
func NewStore(cfg config.StoreConfig, reg prometheus.Registerer) (store ports.KeyValueStore, locker ports.DistributedLocker, closer io.Closer, err error) {
	switch cfg.Backend {
	case config.BackendMemory:
		store = memory.NewStore()
	case config.BackendFile:
		if err := os.MkdirAll(filepath.Clean(cfg.Path), 0o755); err != nil {
			return nil, nil, nil, fmt.Errorf("failed to create store directory: %w", err)
		}
		store = file.New(cfg.Path)
	case config.BackendRedis:
		rs := redis.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, redis.WithPrefix(cfg.Prefix))
		store, closer = rs, rs
		if cfg.Lock {
			locker = rs.Locker()
		}
	default:
		return nil, nil, nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}

	mws := []middleware.Middleware{middleware.NewMetricsMiddleware(reg)}
	active, fallback, err := cfg.Keys()
	if err != nil {
		return nil, nil, closer, err
	}
	if active != nil {
		mws = append(mws, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
			ActiveKey:    active,
			FallbackKeys: fallback,
		}))
	}
	return middleware.Chain(store, mws...), locker, closer, nil
}

// NewSink creates the process sink with the system clipboard as fallback.
func NewSink(cfg config.SinkConfig, logger *slog.Logger) (ports.TextSink, error) {
	cmds, err := cfg.Commands()
	if err != nil {
		return nil, err
	}

	clip := clipboard.NewSink()
	opts := []process.SinkOption{
		process.WithClipboard(clip.Copy),
		process.WithLogger(logger.With("component", "sink")),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, process.WithTimeout(cfg.Timeout))
	}
	if cfg.Settle > 0 {
		opts = append(opts, process.WithSettle(cfg.Settle))
	}
	return process.NewSink(cmds, opts...), nil
}

// NewLogger creates the stderr or file logger. closer is nil for stderr.
func NewLogger(cfg config.LogConfig) (*slog.Logger, io.Closer, error) {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}
	if cfg.File == "" {
		return logging.New(level), nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	logger, closer := logging.NewFile(cfg.File, level)
	return logger, closer, nil
}
