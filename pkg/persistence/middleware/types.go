package middleware

import "github.com/final221/Prompt-Assembler/pkg/ports"

// Middleware allows wrapping a KeyValueStore to add behavior.
type Middleware func(ports.KeyValueStore) ports.KeyValueStore

// Chain wraps store with mws. The first middleware is the outermost.
func Chain(store ports.KeyValueStore, mws ...Middleware) ports.KeyValueStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}
