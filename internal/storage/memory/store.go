// Package memory is an in-memory prompt store for development and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tracelens/playground/internal/storage"
)

// Store keeps saved prompts in a map. Safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	prompts map[string]*storage.SavedPrompt
}

var _ storage.PromptStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{prompts: make(map[string]*storage.SavedPrompt)}
}

// SavePrompt inserts or updates a prompt by id.
func (s *Store) SavePrompt(_ context.Context, prompt *storage.SavedPrompt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *prompt
	s.prompts[prompt.ID] = &copied
	return nil
}

// GetPrompt retrieves a prompt by id.
func (s *Store) GetPrompt(_ context.Context, id string) (*storage.SavedPrompt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prompt, ok := s.prompts[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copied := *prompt
	return &copied, nil
}

// ListPrompts returns prompts ordered by most recently updated.
func (s *Store) ListPrompts(_ context.Context, limit int) ([]*storage.SavedPrompt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}

	prompts := make([]*storage.SavedPrompt, 0, len(s.prompts))
	for _, prompt := range s.prompts {
		copied := *prompt
		prompts = append(prompts, &copied)
	}
	sort.Slice(prompts, func(i, j int) bool {
		return prompts[i].UpdatedAt.After(prompts[j].UpdatedAt)
	})
	if len(prompts) > limit {
		prompts = prompts[:limit]
	}
	return prompts, nil
}

// DeletePrompt removes a prompt by id.
func (s *Store) DeletePrompt(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.prompts[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.prompts, id)
	return nil
}

// DeleteOlderThan removes prompts not updated since cutoff.
func (s *Store) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for id, prompt := range s.prompts {
		if prompt.UpdatedAt.Before(cutoff) {
			delete(s.prompts, id)
			removed++
		}
	}
	return removed, nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}
