package ports

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/final221/Prompt-Assembler/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunKeyValueStoreContract runs a suite of tests to verify that a KeyValueStore implementation
// adheres to the defined interface contract.
func RunKeyValueStoreContract(t *testing.T, store KeyValueStore) {
	ctx := context.Background()
	ns := "contract-" + time.Now().Format("20060102150405") + ":"

	t.Run("Set and Get", func(t *testing.T) {
		key := ns + "greeting"
		err := store.Set(ctx, key, []byte(`"hello"`))
		require.NoError(t, err, "Set should not return error")

		got, err := store.Get(ctx, key)
		require.NoError(t, err, "Get should not return error")
		assert.Equal(t, `"hello"`, string(got))
	})

	t.Run("Overwrite", func(t *testing.T) {
		key := ns + "counter"
		require.NoError(t, store.Set(ctx, key, []byte("1")))
		require.NoError(t, store.Set(ctx, key, []byte("2")))

		got, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "2", string(got))
	})

	t.Run("Get Non-Existent", func(t *testing.T) {
		_, err := store.Get(ctx, ns+"missing")
		assert.ErrorIs(t, err, domain.ErrKeyNotFound)
	})

	t.Run("Keys With Separators", func(t *testing.T) {
		key := ns + "part:content:3f2a/b c"
		require.NoError(t, store.Set(ctx, key, []byte(`"x"`)))

		got, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, `"x"`, string(got))
	})

	t.Run("Delete", func(t *testing.T) {
		key := ns + "doomed"
		require.NoError(t, store.Set(ctx, key, []byte("true")))

		err := store.Delete(ctx, key)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Get(ctx, key)
		assert.ErrorIs(t, err, domain.ErrKeyNotFound, "Get after Delete should return ErrKeyNotFound")

		assert.NoError(t, store.Delete(ctx, key), "Delete of a missing key is idempotent")
	})

	t.Run("List", func(t *testing.T) {
		prefix := ns + "list:"
		for i := 3; i >= 1; i-- {
			require.NoError(t, store.Set(ctx, fmt.Sprintf("%s%d", prefix, i), []byte("null")))
		}
		require.NoError(t, store.Set(ctx, ns+"other", []byte("null")))

		defer func() {
			for i := 1; i <= 3; i++ {
				_ = store.Delete(ctx, fmt.Sprintf("%s%d", prefix, i))
			}
		}()

		keys, err := store.List(ctx, prefix)
		require.NoError(t, err)
		assert.Equal(t, []string{prefix + "1", prefix + "2", prefix + "3"}, keys)
		assert.NotContains(t, keys, ns+"other")
	})
}
