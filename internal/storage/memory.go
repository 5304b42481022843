package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore is an in-memory ObjectStore used in tests and as a stand-in
// when no real backend is wanted
type MemoryStore struct {
	mu         sync.RWMutex
	containers map[string]map[string][]byte

	// FailPut, FailGet and FailDelete force the corresponding operation to
	// fail, for exercising error paths in tests.
	FailPut    bool
	FailGet    bool
	FailDelete bool
}

// NewMemoryStore creates a new in-memory object store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		containers: make(map[string]map[string][]byte),
	}
}

// Put stores a blob
func (ms *MemoryStore) Put(ctx context.Context, container, key string, data []byte) error {
	if ms.FailPut {
		return fmt.Errorf("put %s/%s: simulated failure", container, key)
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	if ms.containers[container] == nil {
		ms.containers[container] = make(map[string][]byte)
	}

	stored := make([]byte, len(data))
	copy(stored, data)
	ms.containers[container][key] = stored

	return nil
}

// Get retrieves a blob
func (ms *MemoryStore) Get(ctx context.Context, container, key string) ([]byte, error) {
	if ms.FailGet {
		return nil, fmt.Errorf("get %s/%s: simulated failure", container, key)
	}

	ms.mu.RLock()
	defer ms.mu.RUnlock()

	data, ok := ms.containers[container][key]
	if !ok {
		return nil, fmt.Errorf("blob %s not found in container %s", key, container)
	}

	result := make([]byte, len(data))
	copy(result, data)
	return result, nil
}

// Exists reports whether a blob is present
func (ms *MemoryStore) Exists(ctx context.Context, container, key string) (bool, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	_, ok := ms.containers[container][key]
	return ok, nil
}

// Delete removes a blob
func (ms *MemoryStore) Delete(ctx context.Context, container, key string) error {
	if ms.FailDelete {
		return fmt.Errorf("delete %s/%s: simulated failure", container, key)
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, ok := ms.containers[container][key]; !ok {
		return fmt.Errorf("blob %s not found in container %s", key, container)
	}
	delete(ms.containers[container], key)

	return nil
}

// List returns the keys of all blobs in a container, sorted
func (ms *MemoryStore) List(ctx context.Context, container string) ([]string, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	keys := make([]string, 0, len(ms.containers[container]))
	for key := range ms.containers[container] {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	return keys, nil
}

// EnsureContainer creates the container if it doesn't exist
func (ms *MemoryStore) EnsureContainer(ctx context.Context, container string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if ms.containers[container] == nil {
		ms.containers[container] = make(map[string][]byte)
	}
	return nil
}
