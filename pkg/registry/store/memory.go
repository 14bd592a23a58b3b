package store

import (
	"context"
	"strings"
	"sync"

	"github.com/matzehuels/nativepkg/pkg/manifest"
)

// MemoryStore keeps manifests in process memory. It backs tests and
// throwaway local mirrors.
type MemoryStore struct {
	mu       sync.RWMutex
	packages map[string]map[string]*manifest.Manifest // lower id -> key -> manifest
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{packages: make(map[string]map[string]*manifest.Manifest)}
}

// Versions implements [Store].
func (s *MemoryStore) Versions(ctx context.Context, id string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.packages[strings.ToLower(id)]
	if len(entries) == 0 {
		return nil, ErrNotFound
	}
	raw := make([]string, 0, len(entries))
	for _, m := range entries {
		raw = append(raw, m.Version)
	}
	return sortDesc(raw), nil
}

// Get implements [Store].
func (s *MemoryStore) Get(ctx context.Context, id, ver string) (*manifest.Manifest, error) {
	k, err := key(id, ver)
	if err != nil {
		return nil, ErrNotFound
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.packages[strings.ToLower(id)][k]
	if !ok {
		return nil, ErrNotFound
	}
	return m.Clone(), nil
}

// Put implements [Store].
func (s *MemoryStore) Put(ctx context.Context, m *manifest.Manifest) (bool, error) {
	k, err := key(m.ID, m.Version)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := strings.ToLower(m.ID)
	if s.packages[id] == nil {
		s.packages[id] = make(map[string]*manifest.Manifest)
	}
	_, exists := s.packages[id][k]
	s.packages[id][k] = m.Clone()
	return !exists, nil
}

// Close does nothing.
func (s *MemoryStore) Close(ctx context.Context) error { return nil }

var _ Store = (*MemoryStore)(nil)
