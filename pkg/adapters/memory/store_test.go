package memory_test

import (
	"context"
	"testing"

	"github.com/final221/Prompt-Assembler/pkg/adapters/memory"
	"github.com/final221/Prompt-Assembler/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Contract(t *testing.T) {
	store := memory.NewStore()
	ports.RunKeyValueStoreContract(t, store)
}

func TestMemoryStore_CopyOnRead(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", []byte("abc")))
	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	got[0] = 'z'

	again, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(again))
}
