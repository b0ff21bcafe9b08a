package store

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"reminder-server/models"
)

const recordExt = ".json"

// FileStore persists one JSON record per reminder in a directory. File
// names are the path-escaped reminder id, so any id is a safe name.
type FileStore struct {
	dir string
	mu  sync.RWMutex
}

// NewFileStore creates dir if it does not exist.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create reminder directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(id string) string {
	name := url.PathEscape(id)
	if strings.HasPrefix(name, ".") {
		name = "%2E" + name[1:]
	}
	return filepath.Join(s.dir, name+recordExt)
}

// Save writes through a temp file and a rename so a crash never leaves a
// half-written record behind.
func (s *FileStore) Save(_ context.Context, r models.Reminder) (models.Reminder, error) {
	data, err := encodeRecord(r)
	if err != nil {
		return models.Reminder{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return models.Reminder{}, err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return models.Reminder{}, err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return models.Reminder{}, err
	}
	if err := os.Rename(tmp.Name(), s.path(r.ID)); err != nil {
		os.Remove(tmp.Name())
		return models.Reminder{}, err
	}
	return r, nil
}

func (s *FileStore) FindByID(_ context.Context, id string) (models.Reminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return models.Reminder{}, ErrNotFound
	}
	if err != nil {
		return models.Reminder{}, err
	}
	return decodeRecord(data)
}

func (s *FileStore) FindByName(ctx context.Context, name string) ([]models.Reminder, error) {
	all, err := s.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	return filterByName(all, name), nil
}

// FindAll fails on the first unreadable record rather than skipping it.
func (s *FileStore) FindAll(_ context.Context) ([]models.Reminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names, err := s.recordFiles()
	if err != nil {
		return nil, err
	}

	out := make([]models.Reminder, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			return nil, err
		}
		r, err := decodeRecord(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		out = append(out, r)
	}
	sortReminders(out)
	return out, nil
}

func (s *FileStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path(id))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *FileStore) DeleteAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	names, err := s.recordFiles()
	if err != nil {
		return err
	}
	for _, name := range names {
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) recordFiles() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, recordExt) {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}
