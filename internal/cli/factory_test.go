package cli

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/final221/Prompt-Assembler/internal/config"
	"github.com/final221/Prompt-Assembler/internal/logging"
	"github.com/final221/Prompt-Assembler/pkg/adapters/memory"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Store.Path = filepath.Join(t.TempDir(), "store")
	cfg.Session.Cooldown = 0
	return cfg
}

func TestOpenSession_FileBackendPersists(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	s, err := OpenSession(ctx, cfg, Options{Logger: logging.NewNop()})
	require.NoError(t, err)
	id := s.Assembler.Parts()[0].ID
	s.Assembler.SetContent(id, "persisted")
	require.NoError(t, s.Close(ctx))

	s2, err := OpenSession(ctx, cfg, Options{Logger: logging.NewNop()})
	require.NoError(t, err)
	defer s2.Close(ctx)
	assert.Equal(t, "persisted", s2.Assembler.Parts()[0].Content)

	gathered, err := s2.Metrics.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, gathered)
}

func TestOpenSession_EncryptedStore(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Store.EncryptionKey = base64.StdEncoding.EncodeToString([]byte(strings.Repeat("k", 32)))

	s, err := OpenSession(ctx, cfg, Options{Logger: logging.NewNop(), Notifier: memory.AutoConfirm{}})
	require.NoError(t, err)
	s.Assembler.SetContent(s.Assembler.Parts()[0].ID, "secret words")
	require.NoError(t, s.Close(ctx))

	entries, err := os.ReadDir(cfg.Store.Path)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	for _, e := range entries {
		data, err := os.ReadFile(filepath.Join(cfg.Store.Path, e.Name()))
		require.NoError(t, err)
		assert.NotContains(t, string(data), "secret words")
		assert.Contains(t, string(data), "__encrypted__")
	}
}

func TestOpenSession_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store.Backend = "tape"

	_, err := OpenSession(context.Background(), cfg, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestNewStore_MemoryCountsOps(t *testing.T) {
	reg := prometheus.NewRegistry()
	store, locker, closer, err := NewStore(config.StoreConfig{Backend: config.BackendMemory}, reg)
	require.NoError(t, err)
	assert.Nil(t, locker)
	assert.Nil(t, closer)

	require.NoError(t, store.Set(context.Background(), "k", []byte(`1`)))
	assert.Equal(t, 1, testutil.CollectAndCount(reg, "promptasm_store_ops_total"))
}

func TestNewStore_UnknownBackend(t *testing.T) {
	_, _, _, err := NewStore(config.StoreConfig{Backend: "tape"}, prometheus.NewRegistry())
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	logger, closer, err := NewLogger(config.LogConfig{Level: "debug"})
	require.NoError(t, err)
	assert.NotNil(t, logger)
	assert.Nil(t, closer)

	path := filepath.Join(t.TempDir(), "logs", "promptasm.log")
	logger, closer, err = NewLogger(config.LogConfig{Level: "info", File: path})
	require.NoError(t, err)
	logger.Info("hello")
	require.NoError(t, closer.Close())
	_, err = os.Stat(path)
	assert.NoError(t, err)

	_, _, err = NewLogger(config.LogConfig{Level: "loud"})
	assert.Error(t, err)
}

func TestNewSink_FallsBackToClipboardFunc(t *testing.T) {
	sink, err := NewSink(config.SinkConfig{}, logging.NewNop())
	require.NoError(t, err)
	assert.False(t, sink.Deliver(context.Background(), "text"))
}
