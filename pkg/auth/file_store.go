package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// FileStore keeps the cookie jar as a plain JSON array on disk.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a JSON file backed store.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file location.
func (f *FileStore) Path() string {
	return f.path
}

func (f *FileStore) Load(ctx context.Context) ([]Cookie, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Cookie{}, nil
		}
		return nil, fmt.Errorf("failed to read cookie file: %w", err)
	}

	var cookies []Cookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		return nil, fmt.Errorf("failed to parse cookie file %s: %w", f.path, err)
	}
	if cookies == nil {
		cookies = []Cookie{}
	}
	return cookies, nil
}

func (f *FileStore) Save(ctx context.Context, cookies []Cookie) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := json.MarshalIndent(Normalize(cookies), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cookies: %w", err)
	}
	return writeFileAtomic(f.path, data)
}

func (f *FileStore) Clear(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return removeIfExists(f.path)
}
