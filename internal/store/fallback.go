package store

import (
	"context"
	"log/slog"
	"sync"
)

// Fallback wraps a durable Store and degrades to an in-memory store for
// the remainder of the session once the backend fails. Login must remain
// possible even when history cannot be durably tracked, so storage errors
// are absorbed here rather than propagated to the guard.
type Fallback struct {
	mu       sync.Mutex
	primary  Store
	memory   *Memory
	logger   *slog.Logger
	degraded bool
}

// NewFallback wraps primary with in-memory degradation.
func NewFallback(primary Store, logger *slog.Logger) *Fallback {
	return &Fallback{
		primary: primary,
		memory:  NewMemory(),
		logger:  logger,
	}
}

// Degraded reports whether the store has switched to in-memory operation.
func (f *Fallback) Degraded() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.degraded
}

func (f *Fallback) degrade(op string, err error) {
	if !f.degraded {
		f.degraded = true
		f.logger.Warn("store backend failed, degrading to in-memory state for this session",
			slog.String("op", op),
			slog.Any("error", err))
	}
}

func (f *Fallback) Get(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.degraded {
		return f.memory.Get(ctx, key)
	}
	value, err := f.primary.Get(ctx, key)
	if err != nil && !isNotFound(err) {
		f.degrade("get", err)
		return f.memory.Get(ctx, key)
	}
	return value, err
}

func (f *Fallback) Set(ctx context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.degraded {
		return f.memory.Set(ctx, key, value)
	}
	if err := f.primary.Set(ctx, key, value); err != nil {
		f.degrade("set", err)
		return f.memory.Set(ctx, key, value)
	}
	return nil
}

func (f *Fallback) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.degraded {
		return f.memory.Delete(ctx, key)
	}
	if err := f.primary.Delete(ctx, key); err != nil {
		f.degrade("delete", err)
		return f.memory.Delete(ctx, key)
	}
	return nil
}

func (f *Fallback) Keys(ctx context.Context, prefix string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.degraded {
		return f.memory.Keys(ctx, prefix)
	}
	keys, err := f.primary.Keys(ctx, prefix)
	if err != nil {
		f.degrade("keys", err)
		return f.memory.Keys(ctx, prefix)
	}
	return keys, nil
}
