package storage

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Memory is an in-process Store used by tests and local development.
type Memory struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{objects: map[string][]byte{}}
}

func (m *Memory) Put(_ context.Context, key string, body []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := make([]byte, len(body))
	copy(copied, body)
	m.objects[key] = copied
	return nil
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	body, ok := m.objects[key]
	if !ok {
		return nil, ErrNotFound
	}
	copied := make([]byte, len(body))
	copy(copied, body)
	return copied, nil
}

func (m *Memory) GetText(ctx context.Context, key string) (string, error) {
	body, err := m.Get(ctx, key)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *Memory) Head(_ context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[key]
	return ok, nil
}

func (m *Memory) PresignGet(key string, expiry time.Duration) (string, error) {
	return fmt.Sprintf("memory://%s?expires_in=%d", key, int(expiry.Seconds())), nil
}

func (m *Memory) Ping(context.Context) error {
	return nil
}

// Len reports how many objects the store holds.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
