// Package catalogtest provides an in-memory catalog for tests.
package catalogtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/delta10/wms-probe/internal/catalog"
)

var _ catalog.Store = (*Store)(nil)

// Store is a catalog.Store kept in a map.
type Store struct {
	mu        sync.Mutex
	resources map[string]catalog.Resource
	updates   int
}

func NewStore(resources ...catalog.Resource) *Store {
	s := &Store{resources: make(map[string]catalog.Resource, len(resources))}
	for _, r := range resources {
		s.resources[r.ID] = r
	}

	return s
}

func (s *Store) Show(_ context.Context, id string) (*catalog.Resource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.resources[id]
	if !ok {
		return nil, fmt.Errorf("show %s: %w", id, catalog.ErrNotFound)
	}

	return &r, nil
}

func (s *Store) Update(_ context.Context, resource *catalog.Resource) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.resources[resource.ID]; !ok {
		return fmt.Errorf("update %s: %w", resource.ID, catalog.ErrNotFound)
	}

	s.resources[resource.ID] = *resource
	s.updates++

	return nil
}

// Updates returns how many times Update succeeded.
func (s *Store) Updates() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.updates
}
