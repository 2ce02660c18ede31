package scopelock

import (
	"context"
	"sync"
)

// KeyedMutex serializes critical sections per scope key while letting
// unrelated scopes proceed concurrently. Mutex entries live for the process
// lifetime; the scope vocabulary is small and bounded.
type KeyedMutex struct {
	mu     sync.Mutex
	scopes map[string]*sync.Mutex
}

func New() *KeyedMutex {
	return &KeyedMutex{scopes: make(map[string]*sync.Mutex)}
}

func (k *KeyedMutex) WithinScope(ctx context.Context, scope string, fn func(ctx context.Context) error) error {
	k.mu.Lock()
	lock, ok := k.scopes[scope]
	if !ok {
		lock = &sync.Mutex{}
		k.scopes[scope] = lock
	}
	k.mu.Unlock()

	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx)
}
