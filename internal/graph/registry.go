package graph

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Config selects and configures a Store backend.
type Config struct {
	// Kind is the registered backend name: memory, sqlite, mssql, postgres,
	// neo4j.
	Kind string
	// DSN is the backend-specific connection string.
	DSN string
	// Username and Password are used by backends whose DSN does not carry
	// credentials (neo4j).
	Username string
	Password string
	// MaxConns caps pooled connections; 0 lets the backend choose.
	MaxConns int
}

// Factory opens a Store for a Config.
type Factory func(ctx context.Context, cfg Config) (Store, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register registers (or replaces) the factory for kind. Backends call it
// from init.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = f
}

// Kinds lists the registered backend kinds.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Open opens the Store registered for cfg.Kind. Failures to reach the store
// wrap ErrConnection.
func Open(ctx context.Context, cfg Config) (Store, error) {
	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no graph store registered for kind=%q (have %v)", cfg.Kind, Kinds())
	}
	s, err := f(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConnection, cfg.Kind, err)
	}
	return s, nil
}
