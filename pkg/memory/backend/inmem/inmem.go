// Package inmem provides an in-process implementation of the memory backend,
// used for tests and single-node development.
package inmem

import (
	"context"
	"sort"
	"sync"

	"github.com/somnus/somnus/pkg/memory/backend"
)

// Store implements backend.Backend with in-memory maps.
type Store struct {
	mu   sync.RWMutex
	docs map[string]map[backend.Tier][]byte // userID -> tier -> document
}

// New creates an empty in-memory backend.
func New() *Store {
	return &Store{docs: make(map[string]map[backend.Tier][]byte)}
}

// Get returns a copy of the stored document.
func (s *Store) Get(ctx context.Context, userID string, tier backend.Tier) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, &backend.UnavailableError{Cause: err}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	tiers, ok := s.docs[userID]
	if !ok {
		return nil, &backend.NotFoundError{UserID: userID, Tier: tier}
	}
	data, ok := tiers[tier]
	if !ok {
		return nil, &backend.NotFoundError{UserID: userID, Tier: tier}
	}

	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Put stores a copy of the document.
func (s *Store) Put(ctx context.Context, userID string, tier backend.Tier, data []byte) error {
	if err := ctx.Err(); err != nil {
		return &backend.UnavailableError{Cause: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tiers, ok := s.docs[userID]
	if !ok {
		tiers = make(map[backend.Tier][]byte)
		s.docs[userID] = tiers
	}
	stored := make([]byte, len(data))
	copy(stored, data)
	tiers[tier] = stored
	return nil
}

// Delete removes a document; missing documents are ignored.
func (s *Store) Delete(ctx context.Context, userID string, tier backend.Tier) error {
	if err := ctx.Err(); err != nil {
		return &backend.UnavailableError{Cause: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if tiers, ok := s.docs[userID]; ok {
		delete(tiers, tier)
		if len(tiers) == 0 {
			delete(s.docs, userID)
		}
	}
	return nil
}

// Users lists user IDs in stable order.
func (s *Store) Users(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, &backend.UnavailableError{Cause: err}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]string, 0, len(s.docs))
	for id := range s.docs {
		users = append(users, id)
	}
	sort.Strings(users)
	return users, nil
}

// Close is a no-op for the in-memory backend.
func (s *Store) Close() error { return nil }
