// Package config loads promptasm settings from a YAML or TOML file and the environment.
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/final221/Prompt-Assembler/internal/logging"
	"github.com/final221/Prompt-Assembler/pkg/adapters/process"
	"github.com/mitchellh/mapstructure"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PROMPTASM_"

// Config is the complete promptasm configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" toml:"store" mapstructure:"store"`
	Session SessionConfig `yaml:"session" toml:"session" mapstructure:"session"`
	Sink    SinkConfig    `yaml:"sink" toml:"sink" mapstructure:"sink"`
	Log     LogConfig     `yaml:"log" toml:"log" mapstructure:"log"`
	Server  ServerConfig  `yaml:"server" toml:"server" mapstructure:"server"`
}

// StoreConfig selects and configures the key/value backend.
type StoreConfig struct {
	Backend       string   `yaml:"backend" toml:"backend" mapstructure:"backend"`
	Path          string   `yaml:"path" toml:"path" mapstructure:"path"`
	RedisAddr     string   `yaml:"redis_addr" toml:"redis_addr" mapstructure:"redis_addr"`
	RedisPassword string   `yaml:"redis_password" toml:"redis_password" mapstructure:"redis_password"`
	RedisDB       int      `yaml:"redis_db" toml:"redis_db" mapstructure:"redis_db"`
	Prefix        string   `yaml:"prefix" toml:"prefix" mapstructure:"prefix"`
	Lock          bool     `yaml:"lock" toml:"lock" mapstructure:"lock"`
	EncryptionKey string   `yaml:"encryption_key" toml:"encryption_key" mapstructure:"encryption_key"`
	FallbackKeys  []string `yaml:"fallback_keys" toml:"fallback_keys" mapstructure:"fallback_keys"`
}

// SessionConfig tunes the assembler session.
type SessionConfig struct {
	Debounce time.Duration `yaml:"debounce" toml:"debounce" mapstructure:"debounce"`
	Cooldown time.Duration `yaml:"cooldown" toml:"cooldown" mapstructure:"cooldown"`
	Retries  uint          `yaml:"retries" toml:"retries" mapstructure:"retries"`
}

// SinkConfig configures delivery of the assembled text.
type SinkConfig struct {
	Deliver process.Command `yaml:"deliver" toml:"deliver" mapstructure:"deliver"`
	Trigger process.Command `yaml:"trigger" toml:"trigger" mapstructure:"trigger"`
	Timeout time.Duration   `yaml:"timeout" toml:"timeout" mapstructure:"timeout"`
	Settle  time.Duration   `yaml:"settle" toml:"settle" mapstructure:"settle"`
	// CommandsFile names a YAML or JSON file whose commands replace Deliver and Trigger.
	CommandsFile string `yaml:"commands_file" toml:"commands_file" mapstructure:"commands_file"`
}

// LogConfig configures logging. An empty File logs to stderr.
type LogConfig struct {
	Level string `yaml:"level" toml:"level" mapstructure:"level"`
	File  string `yaml:"file" toml:"file" mapstructure:"file"`
}

// ServerConfig configures the HTTP and MCP servers.
type ServerConfig struct {
	Addr    string `yaml:"addr" toml:"addr" mapstructure:"addr"`
	Metrics bool   `yaml:"metrics" toml:"metrics" mapstructure:"metrics"`
	MCPPort int    `yaml:"mcp_port" toml:"mcp_port" mapstructure:"mcp_port"`
}

// envMapping maps environment variables to config paths.
var envMapping = map[string]string{
	EnvPrefix + "STORE":          "store.backend",
	EnvPrefix + "STORE_PATH":     "store.path",
	EnvPrefix + "REDIS_ADDR":     "store.redis_addr",
	EnvPrefix + "REDIS_PASSWORD": "store.redis_password",
	EnvPrefix + "REDIS_DB":       "store.redis_db",
	EnvPrefix + "STORE_PREFIX":   "store.prefix",
	EnvPrefix + "STORE_LOCK":     "store.lock",
	EnvPrefix + "ENCRYPTION_KEY": "store.encryption_key",
	EnvPrefix + "FALLBACK_KEYS":  "store.fallback_keys",
	EnvPrefix + "DEBOUNCE":       "session.debounce",
	EnvPrefix + "COOLDOWN":       "session.cooldown",
	EnvPrefix + "RETRIES":        "session.retries",
	EnvPrefix + "SINK_COMMANDS":  "sink.commands_file",
	EnvPrefix + "LOG_LEVEL":      "log.level",
	EnvPrefix + "LOG_FILE":       "log.file",
	EnvPrefix + "ADDR":           "server.addr",
	EnvPrefix + "METRICS":        "server.metrics",
	EnvPrefix + "MCP_PORT":       "server.mcp_port",
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Store: StoreConfig{
			Backend:   BackendFile,
			Path:      filepath.Join(DefaultDir(), "store"),
			RedisAddr: "localhost:6379",
			Prefix:    "promptasm:kv:",
		},
		Session: SessionConfig{
			Debounce: 500 * time.Millisecond,
			Cooldown: 1500 * time.Millisecond,
			Retries:  3,
		},
		Sink: SinkConfig{
			Timeout: 10 * time.Second,
			Settle:  50 * time.Millisecond,
		},
		Log: LogConfig{Level: "info"},
		Server: ServerConfig{
			Addr:    ":8080",
			Metrics: true,
			MCPPort: 8081,
		},
	}
}

// DefaultDir is the per-user directory holding config and data.
func DefaultDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "promptasm")
}

// DefaultPath returns the config file looked up when none is given.
func DefaultPath() string {
	return filepath.Join(DefaultDir(), "config.yaml")
}

// Load reads path (YAML or TOML by extension) over the defaults and applies
// environment overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	raw := map[string]any{}
	if path != "" {
		fileRaw, err := readFile(path)
		if err != nil {
			return Config{}, err
		}
		if fileRaw != nil {
			raw = fileRaw
		}
	}
	applyEnv(raw, os.LookupEnv)

	cfg := Default()
	if err := decode(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

func readFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	raw := map[string]any{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(data, &raw)
	case ".yaml", ".yml", "":
		err = yaml.Unmarshal(data, &raw)
	default:
		return nil, fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return raw, nil
}

func applyEnv(raw map[string]any, lookup func(string) (string, bool)) {
	for env, path := range envMapping {
		if val, ok := lookup(env); ok {
			setByPath(raw, path, val)
		}
	}
}

// setByPath sets a dotted path, creating intermediate sections.
func setByPath(m map[string]any, path string, value any) {
	keys := strings.Split(path, ".")
	for _, k := range keys[:len(keys)-1] {
		next, ok := m[k].(map[string]any)
		if !ok {
			next = map[string]any{}
			m[k] = next
		}
		m = next
	}
	m[keys[len(keys)-1]] = value
}

func decode(raw map[string]any, cfg *Config) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return err
	}
	return dec.Decode(raw)
}

// Validate checks the configuration for values the commands cannot run with.
func (c Config) Validate() error {
	var errs []error

	switch c.Store.Backend {
	case BackendFile:
		if strings.TrimSpace(c.Store.Path) == "" {
			errs = append(errs, errors.New("store.path is required for the file backend"))
		}
	case BackendRedis:
		if strings.TrimSpace(c.Store.RedisAddr) == "" {
			errs = append(errs, errors.New("store.redis_addr is required for the redis backend"))
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown store backend %q", c.Store.Backend))
	}
	if c.Store.Lock && c.Store.Backend != BackendRedis {
		errs = append(errs, errors.New("store.lock requires the redis backend"))
	}
	if _, _, err := c.Store.Keys(); err != nil {
		errs = append(errs, err)
	}

	if c.Session.Debounce < 0 || c.Session.Cooldown < 0 {
		errs = append(errs, errors.New("session durations must not be negative"))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if !c.Sink.Trigger.IsZero() && c.Sink.Deliver.IsZero() {
		errs = append(errs, errors.New("sink.trigger requires sink.deliver"))
	}
	return errors.Join(errs...)
}

// Keys decodes the base64 encryption keys. active is nil when encryption is off.
func (s StoreConfig) Keys() (active []byte, fallback [][]byte, err error) {
	if strings.TrimSpace(s.EncryptionKey) == "" {
		if len(s.FallbackKeys) > 0 {
			return nil, nil, errors.New("store.fallback_keys requires store.encryption_key")
		}
		return nil, nil, nil
	}
	active, err = decodeKey(s.EncryptionKey)
	if err != nil {
		return nil, nil, fmt.Errorf("store.encryption_key: %w", err)
	}
	for i, k := range s.FallbackKeys {
		if strings.TrimSpace(k) == "" {
			continue
		}
		key, err := decodeKey(k)
		if err != nil {
			return nil, nil, fmt.Errorf("store.fallback_keys[%d]: %w", i, err)
		}
		fallback = append(fallback, key)
	}
	return active, fallback, nil
}

func decodeKey(s string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("invalid base64: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("key must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}

// Commands returns the process sink commands. Commands set in CommandsFile win over inline ones.
func (s SinkConfig) Commands() (process.Commands, error) {
	cmds := process.Commands{Deliver: s.Deliver, Trigger: s.Trigger}
	if s.CommandsFile == "" {
		return cmds, nil
	}
	loaded, err := process.LoadCommands(s.CommandsFile)
	if err != nil {
		return process.Commands{}, err
	}
	if !loaded.Deliver.IsZero() {
		cmds.Deliver = loaded.Deliver
	}
	if !loaded.Trigger.IsZero() {
		cmds.Trigger = loaded.Trigger
	}
	return cmds, nil
}
