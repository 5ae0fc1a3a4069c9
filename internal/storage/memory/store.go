// Package memory provides the in-memory token store.
//
// It implements the primary storage interface using concurrent-safe
// data structures with sharded locking for high performance.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/MirrorDNA-Reflection-Protocol/glyph-engine/internal/core/domain"
	"github.com/MirrorDNA-Reflection-Protocol/glyph-engine/pkg/cmap"
)

// Store provides in-memory token storage with a class index.
//
// Get returns tokens whose TTL has elapsed; lazy expiry is the
// caller's responsibility and needs the stored snapshot to do it.
type Store struct {
	// Primary index: TokenID -> Token
	tokens *cmap.Map[*domain.Token]

	// Secondary index: TokenClass -> set of TokenIDs
	classIndex *ClassIndex

	// Global lock for operations requiring atomicity across indexes
	mu sync.RWMutex
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		tokens:     cmap.New[*domain.Token](),
		classIndex: NewClassIndex(),
	}
}

// Get retrieves a token by ID.
func (s *Store) Get(_ context.Context, id string) (*domain.Token, error) {
	token, ok := s.tokens.Get(id)
	if !ok {
		return nil, domain.ErrTokenNotFound
	}

	// Return a clone to prevent external modification
	return token.Clone(), nil
}

// Create stores a new token.
func (s *Store) Create(_ context.Context, token *domain.Token) error {
	if err := token.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Check for ID conflict
	if s.tokens.Has(token.ID) {
		return domain.ErrTokenConflict
	}

	// Store token (clone to prevent external modification)
	clone := token.Clone()
	s.tokens.Set(token.ID, clone)
	s.classIndex.Add(token.Class, token.ID)

	return nil
}

// Update replaces a token snapshot with optimistic locking. The given
// token carries the new version; expectedVersion is the version the
// caller read before mutating.
func (s *Store) Update(_ context.Context, token *domain.Token, expectedVersion uint64) error {
	if err := token.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.tokens.Get(token.ID)
	if !ok {
		return domain.ErrTokenNotFound
	}

	// Optimistic locking: check version
	if existing.Version != expectedVersion {
		return domain.ErrTokenVersionConflict
	}

	// Handle class change
	if existing.Class != token.Class {
		s.classIndex.Remove(existing.Class, token.ID)
		s.classIndex.Add(token.Class, token.ID)
	}

	s.tokens.Set(token.ID, token.Clone())
	return nil
}

// Delete removes a token.
func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok := s.tokens.Get(id)
	if !ok {
		return domain.ErrTokenNotFound
	}

	s.tokens.Delete(id)
	s.classIndex.Remove(token.Class, id)

	return nil
}

// List retrieves all stored tokens sorted by creation time, then ID.
// Expired tokens that have not been purged are included.
func (s *Store) List(_ context.Context) ([]*domain.Token, error) {
	tokens := make([]*domain.Token, 0, s.tokens.Count())
	s.tokens.Range(func(_ string, token *domain.Token) bool {
		tokens = append(tokens, token.Clone())
		return true
	})

	sort.Slice(tokens, func(i, j int) bool {
		if tokens[i].CreatedAt != tokens[j].CreatedAt {
			return tokens[i].CreatedAt < tokens[j].CreatedAt
		}
		return tokens[i].ID < tokens[j].ID
	})

	return tokens, nil
}

// Count returns the total number of stored tokens.
func (s *Store) Count(_ context.Context) (int, error) {
	return s.tokens.Count(), nil
}

// ListByClass returns all tokens of one class.
func (s *Store) ListByClass(_ context.Context, class domain.TokenClass) ([]*domain.Token, error) {
	ids := s.classIndex.Get(class)
	if len(ids) == 0 {
		return nil, nil
	}

	tokens := make([]*domain.Token, 0, len(ids))
	for _, id := range ids {
		token, ok := s.tokens.Get(id)
		if !ok {
			continue // Skip if token was deleted
		}
		tokens = append(tokens, token.Clone())
	}

	sort.Slice(tokens, func(i, j int) bool {
		if tokens[i].CreatedAt != tokens[j].CreatedAt {
			return tokens[i].CreatedAt < tokens[j].CreatedAt
		}
		return tokens[i].ID < tokens[j].ID
	})

	return tokens, nil
}

// CountsByClass returns per-class token counts.
func (s *Store) CountsByClass() map[domain.TokenClass]int {
	return s.classIndex.Counts()
}

// Scan iterates over all tokens.
// The callback receives a clone of each token.
// Return false from the callback to stop iteration.
func (s *Store) Scan(fn func(*domain.Token) bool) {
	s.tokens.Range(func(_ string, token *domain.Token) bool {
		return fn(token.Clone())
	})
}

// All returns all tokens as a slice.
// Used for snapshot creation.
func (s *Store) All() []*domain.Token {
	tokens := make([]*domain.Token, 0, s.tokens.Count())
	s.tokens.Range(func(_ string, token *domain.Token) bool {
		tokens = append(tokens, token.Clone())
		return true
	})
	return tokens
}

// LoadFromSnapshot rebuilds the store from a list of tokens.
// This clears existing data and rebuilds the class index.
func (s *Store) LoadFromSnapshot(tokens []*domain.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tokens.Clear()
	s.classIndex = NewClassIndex()

	for _, token := range tokens {
		s.tokens.Set(token.ID, token.Clone())
		s.classIndex.Add(token.Class, token.ID)
	}

	return nil
}

// CleanupExpired removes all tokens whose TTL has elapsed.
// Returns the IDs of the tokens removed.
func (s *Store) CleanupExpired() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var toDelete []string
	s.tokens.Range(func(id string, token *domain.Token) bool {
		if token.IsExpired() {
			toDelete = append(toDelete, id)
		}
		return true
	})

	for _, id := range toDelete {
		token, ok := s.tokens.Get(id)
		if !ok {
			continue
		}
		s.tokens.Delete(id)
		s.classIndex.Remove(token.Class, id)
	}

	return toDelete
}
