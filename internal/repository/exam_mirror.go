package repository

import (
	"context"
	"errors"
	"sync"
)

// ErrMirrorMiss is returned by Load when no snapshot is stored under the key.
var ErrMirrorMiss = errors.New("mirror: no entry")

// ExamMirror is the durable key/value store holding the serialized student
// exam. Store overwrites, the last write wins.
type ExamMirror interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Store(ctx context.Context, key string, payload []byte) error
	Remove(ctx context.Context, key string) error
}

// MemoryExamMirror keeps snapshots in process memory. It backs tests and
// runs where durability is not wanted.
type MemoryExamMirror struct {
	mu      sync.Mutex
	entries map[string][]byte
	writes  int
}

// NewMemoryExamMirror creates an empty MemoryExamMirror.
func NewMemoryExamMirror() *MemoryExamMirror {
	return &MemoryExamMirror{entries: make(map[string][]byte)}
}

func (m *MemoryExamMirror) Load(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	payload, ok := m.entries[key]
	if !ok {
		return nil, ErrMirrorMiss
	}
	return append([]byte(nil), payload...), nil
}

func (m *MemoryExamMirror) Store(_ context.Context, key string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = append([]byte(nil), payload...)
	m.writes++
	return nil
}

func (m *MemoryExamMirror) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// Writes returns how many times Store was called.
func (m *MemoryExamMirror) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}
