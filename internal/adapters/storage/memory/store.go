// Package memory provides an in-process key-value store.
// It backs session storage (lost when the process exits) and doubles as a
// durable-store stand-in for local runs and tests.
package memory

import (
	"context"
	"maps"
	"sync"

	"github.com/jsamuelsen/quoteboard/internal/domain"
)

// Store implements ports.KeyValueStore on a map.
type Store struct {
	name string
	mu   sync.RWMutex
	data map[string]string
}

// New creates an empty store. The name is reported by the health check.
func New(name string) *Store {
	return &Store{
		name: name,
		data: make(map[string]string),
	}
}

// Get implements ports.KeyValueStore.
func (s *Store) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[key]
	if !ok {
		return "", domain.NewNotFoundError("storage key", key)
	}

	return v, nil
}

// Set implements ports.KeyValueStore.
func (s *Store) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = value

	return nil
}

// Snapshot returns a copy of the stored values.
func (s *Store) Snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return maps.Clone(s.data)
}

// Name implements ports.HealthChecker.
func (s *Store) Name() string {
	return s.name
}

// Check implements ports.HealthChecker. A map is always reachable.
func (s *Store) Check(context.Context) error {
	return nil
}
