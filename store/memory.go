package store

import (
	"context"
	"sync"

	"reminder-server/models"
)

// MemoryStore keeps reminders for the lifetime of the process only.
type MemoryStore struct {
	mu        sync.RWMutex
	reminders map[string]models.Reminder
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{reminders: make(map[string]models.Reminder)}
}

func (s *MemoryStore) Save(_ context.Context, r models.Reminder) (models.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reminders[r.ID] = r
	return r, nil
}

func (s *MemoryStore) FindByID(_ context.Context, id string) (models.Reminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reminders[id]
	if !ok {
		return models.Reminder{}, ErrNotFound
	}
	return r, nil
}

func (s *MemoryStore) FindByName(ctx context.Context, name string) ([]models.Reminder, error) {
	all, err := s.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	return filterByName(all, name), nil
}

func (s *MemoryStore) FindAll(_ context.Context) ([]models.Reminder, error) {
	s.mu.RLock()
	out := make([]models.Reminder, 0, len(s.reminders))
	for _, r := range s.reminders {
		out = append(out, r)
	}
	s.mu.RUnlock()

	sortReminders(out)
	return out, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.reminders, id)
	return nil
}

func (s *MemoryStore) DeleteAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reminders = make(map[string]models.Reminder)
	return nil
}

func (s *MemoryStore) Close() error { return nil }
