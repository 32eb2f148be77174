package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/final221/Prompt-Assembler/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// Store implements ports.KeyValueStore using Redis.
// Every key is also recorded in a sorted set (all scores 0) so prefix listing
// is a lexicographic range instead of a SCAN over the keyspace.
type Store struct {
	client *backend.Client
	prefix string
}

// Option configures the Store.
type Option func(*Store)

// WithPrefix sets the namespace prefix for keys.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: "promptasm:kv:",
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func (s *Store) key(key string) string {
	return s.prefix + key
}

func (s *Store) indexKey() string {
	return s.prefix + "__index__"
}

// Get retrieves the value from Redis.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.client.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrKeyNotFound
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}
	return val, nil
}

// Set stores the value and indexes the key in one transaction.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.key(key), value, 0)
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{Score: 0, Member: key})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// Delete removes the key and its index entry.
func (s *Store) Delete(ctx context.Context, key string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.key(key))
	pipe.ZRem(ctx, s.indexKey(), key)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete from redis: %w", err)
	}
	return nil
}

// List returns indexed keys with the given prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	rng := &backend.ZRangeBy{Min: "-", Max: "+"}
	if prefix != "" {
		// UTF-8 never contains 0xff, so it bounds every key sharing the prefix.
		rng = &backend.ZRangeBy{Min: "[" + prefix, Max: "(" + prefix + "\xff"}
	}

	keys, err := s.client.ZRangeByLex(ctx, s.indexKey(), rng).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	if keys == nil {
		keys = []string{}
	}
	return keys, nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
