package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LocalStore implements ObjectStore on the local file system. Containers map
// to directories under the base path.
type LocalStore struct {
	basePath    string
	permissions os.FileMode
}

// NewLocalStore creates a new LocalStore instance
func NewLocalStore(config *LocalConfig) (*LocalStore, error) {
	if config == nil || config.BasePath == "" {
		return nil, fmt.Errorf("local storage requires a base path")
	}

	permissions := config.Permissions
	if permissions == 0 {
		permissions = 0755
	}

	store := &LocalStore{
		basePath:    config.BasePath,
		permissions: permissions,
	}

	if err := os.MkdirAll(config.BasePath, permissions); err != nil {
		return nil, fmt.Errorf("failed to create base directory %s: %w", config.BasePath, err)
	}

	return store, nil
}

// Put writes a blob, creating the container directory as needed
func (ls *LocalStore) Put(ctx context.Context, container, key string, data []byte) error {
	if err := ls.EnsureContainer(ctx, container); err != nil {
		return err
	}

	path, err := ls.blobPath(container, key)
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write blob %s: %w", key, err)
	}

	return nil
}

// Get reads a blob
func (ls *LocalStore) Get(ctx context.Context, container, key string) ([]byte, error) {
	path, err := ls.blobPath(container, key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read blob %s: %w", key, err)
	}

	return data, nil
}

// Exists reports whether a blob is present
func (ls *LocalStore) Exists(ctx context.Context, container, key string) (bool, error) {
	path, err := ls.blobPath(container, key)
	if err != nil {
		return false, err
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat blob %s: %w", key, err)
	}

	return true, nil
}

// Delete removes a blob
func (ls *LocalStore) Delete(ctx context.Context, container, key string) error {
	path, err := ls.blobPath(container, key)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to delete blob %s: %w", key, err)
	}

	return nil
}

// List returns the keys of all blobs in a container, sorted
func (ls *LocalStore) List(ctx context.Context, container string) ([]string, error) {
	dir := filepath.Join(ls.basePath, sanitizeName(container))

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list container %s: %w", container, err)
	}

	var keys []string
	for _, entry := range entries {
		if !entry.IsDir() {
			keys = append(keys, entry.Name())
		}
	}
	sort.Strings(keys)

	return keys, nil
}

// EnsureContainer creates the container directory if it doesn't exist
func (ls *LocalStore) EnsureContainer(ctx context.Context, container string) error {
	dir := filepath.Join(ls.basePath, sanitizeName(container))
	if err := os.MkdirAll(dir, ls.permissions); err != nil {
		return fmt.Errorf("failed to create container %s: %w", container, err)
	}
	return nil
}

// BasePath returns the base path of the store
func (ls *LocalStore) BasePath() string {
	return ls.basePath
}

func (ls *LocalStore) blobPath(container, key string) (string, error) {
	clean := sanitizeName(key)
	if clean == "" {
		return "", fmt.Errorf("blob key cannot be empty")
	}
	return filepath.Join(ls.basePath, sanitizeName(container), clean), nil
}

// sanitizeName removes path separators so container/key names can never
// escape the base path
func sanitizeName(name string) string {
	sanitized := strings.ReplaceAll(name, "/", "_")
	sanitized = strings.ReplaceAll(sanitized, "\\", "_")
	sanitized = strings.ReplaceAll(sanitized, "..", "_")
	return sanitized
}
