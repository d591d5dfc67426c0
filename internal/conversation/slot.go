package conversation

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound is returned by a Slot when no snapshot exists under a key.
var ErrNotFound = errors.New("conversation: not found")

// Slot is a named key-value backend holding serialized conversation
// snapshots. The store mirrors every conversation into two slots with a
// fixed precedence: the session-scoped slot wins on read, the durable
// slot is the fallback.
type Slot interface {
	Name() string
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// MemorySlot is an in-process Slot, used in tests and as a last-resort
// backend when no external store is configured.
type MemorySlot struct {
	name string

	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemorySlot(name string) *MemorySlot {
	return &MemorySlot{name: name, data: make(map[string][]byte)}
}

func (s *MemorySlot) Name() string { return s.name }

func (s *MemorySlot) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (s *MemorySlot) Put(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := make([]byte, len(value))
	copy(v, value)
	s.data[key] = v
	return nil
}

func (s *MemorySlot) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}
