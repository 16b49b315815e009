package kvstore

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/theduckymomoo/HomeIQ---Smart-Energy-Security-Manager---96-Bulls-sub001/internal/core"
)

const fileExt = ".json"

// FilesystemStore stores one file per key under root.
// File names are the base64url encoding of the key so any key is a valid name.
type FilesystemStore struct {
	root      string
	writeLock sync.Mutex
}

// NewFilesystemStore creates a filesystem-backed store rooted at root.
// An empty root uses <data root>/kv.
func NewFilesystemStore(root string) (*FilesystemStore, error) {
	if root == "" {
		root = filepath.Join(core.DataRoot(), "kv")
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &FilesystemStore{root: root}, nil
}

// Path returns the filesystem path for key.
func (s *FilesystemStore) Path(key string) string {
	return filepath.Join(s.root, base64.RawURLEncoding.EncodeToString([]byte(key))+fileExt)
}

// Get returns the value stored for key.
func (s *FilesystemStore) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	data, err := os.ReadFile(s.Path(key))
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return string(data), true, nil
}

// Set persists value atomically using temp file + rename.
func (s *FilesystemStore) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := s.Path(key)

	s.writeLock.Lock()
	defer s.writeLock.Unlock()

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, []byte(value), 0644); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

// Remove deletes the file for key.
func (s *FilesystemStore) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.writeLock.Lock()
	defer s.writeLock.Unlock()

	if err := os.Remove(s.Path(key)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// ListKeys decodes every entry file name under root.
func (s *FilesystemStore) ListKeys(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	files, err := os.ReadDir(s.root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(files))
	for _, file := range files {
		name := file.Name()
		if file.IsDir() || filepath.Ext(name) != fileExt {
			continue
		}
		raw, err := base64.RawURLEncoding.DecodeString(strings.TrimSuffix(name, fileExt))
		if err != nil {
			// Not one of ours
			continue
		}
		keys = append(keys, string(raw))
	}
	return keys, nil
}

// Close is a no-op; files are closed after every operation.
func (s *FilesystemStore) Close() error {
	return nil
}
