// Package memory keeps movement files in memory for tests and dry runs.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/JakeFAU/harbour-movements/internal/storage"
)

// Store keeps the content of each closed object keyed by its path.
type Store struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{data: make(map[string][]byte)}
}

// Create returns a writer whose content is stored when it is closed.
func (s *Store) Create(_ context.Context, at time.Time) (io.WriteCloser, string, error) {
	key := storage.ObjectPath("", at)
	return &object{store: s, key: key}, fmt.Sprintf("memory://%s", key), nil
}

// Object returns a copy of the stored content for key.
func (s *Store) Object(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.data[key]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), data...), true
}

// Keys returns the stored object keys.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys
}

type object struct {
	store *Store
	key   string
	buf   bytes.Buffer
}

func (o *object) Write(p []byte) (int, error) {
	return o.buf.Write(p)
}

func (o *object) Close() error {
	o.store.mu.Lock()
	defer o.store.mu.Unlock()
	o.store.data[o.key] = append([]byte(nil), o.buf.Bytes()...)
	return nil
}
