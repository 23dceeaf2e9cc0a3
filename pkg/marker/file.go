package marker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	filePrefix = "noreg_"
	fileSuffix = ".txt"
	// fileContent is written into every marker so an operator finding one
	// knows what it is for.
	fileContent = "This file is created to prevent further email sending.\n"
)

// FileStore represents each key as an empty-ish file
// <dir>/noreg_<sanitized key>.txt. The directory is created on first Set.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) *FileStore {
	if dir == "" {
		dir = "."
	}
	return &FileStore{dir: dir}
}

// Path returns the marker file path for key.
func (s *FileStore) Path(key string) string {
	return filepath.Join(s.dir, filePrefix+SanitizeKey(key)+fileSuffix)
}

func (s *FileStore) IsSet(_ context.Context, key string) (bool, error) {
	_, err := os.Stat(s.Path(key))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("stat marker for %s: %w", key, err)
}

func (s *FileStore) Set(ctx context.Context, key string) error {
	set, err := s.IsSet(ctx, key)
	if err != nil || set {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create marker directory %s: %w", s.dir, err)
	}
	if err := os.WriteFile(s.Path(key), []byte(fileContent), 0o644); err != nil {
		return fmt.Errorf("write marker for %s: %w", key, err)
	}
	return nil
}

func (s *FileStore) Clear(_ context.Context, key string) error {
	err := os.Remove(s.Path(key))
	if err == nil || os.IsNotExist(err) {
		return nil
	}
	return fmt.Errorf("remove marker for %s: %w", key, err)
}

// List returns the keys of all marker files in the directory. A file name
// that does not decode is returned as it appears on disk.
func (s *FileStore) List(_ context.Context) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, filePrefix+"*"+fileSuffix))
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(matches))
	for _, m := range matches {
		name := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(m), filePrefix), fileSuffix)
		if key, err := UnsanitizeKey(name); err == nil {
			name = key
		}
		keys = append(keys, name)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *FileStore) Close() error { return nil }
