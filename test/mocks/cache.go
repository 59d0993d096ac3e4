package mocks

import (
	"context"
	"sync"
	"time"
)

// MockCache is an in-memory mock implementation of the cache.Cache interface.
// Used for testing without requiring a real Redis instance.
type MockCache struct {
	data map[string]interface{}
	mu   sync.RWMutex

	// Err, when set, is returned by every operation.
	Err error
	// SetCalls counts successful Set calls.
	SetCalls int
}

// NewMockCache creates a new mock cache instance
func NewMockCache() *MockCache {
	return &MockCache{
		data: make(map[string]interface{}),
	}
}

// Get retrieves a value from the mock cache
func (m *MockCache) Get(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.Err != nil {
		return "", m.Err
	}

	val, exists := m.data[key]
	if !exists {
		return "", nil // Return empty string for non-existent keys (like Redis)
	}

	if strVal, ok := val.(string); ok {
		return strVal, nil
	}
	return "", nil
}

// Set stores a value in the mock cache
func (m *MockCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}

	m.data[key] = value
	m.SetCalls++
	// Note: expiration is ignored in mock (no TTL implementation)
	return nil
}

// Del deletes keys from the mock cache
func (m *MockCache) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}

	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}
