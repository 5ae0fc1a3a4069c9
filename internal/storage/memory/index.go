package memory

import (
	"sync"

	"github.com/MirrorDNA-Reflection-Protocol/glyph-engine/internal/core/domain"
	"github.com/MirrorDNA-Reflection-Protocol/glyph-engine/pkg/cmap"
)

// TokenSet is a concurrent-safe set of token IDs.
type TokenSet struct {
	mu    sync.RWMutex
	items map[string]struct{}
}

// NewTokenSet creates a new token set.
func NewTokenSet() *TokenSet {
	return &TokenSet{
		items: make(map[string]struct{}),
	}
}

// Add adds a token ID to the set.
func (s *TokenSet) Add(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[id] = struct{}{}
}

// Remove removes a token ID from the set.
func (s *TokenSet) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
}

// Contains checks if a token ID is in the set.
func (s *TokenSet) Contains(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.items[id]
	return ok
}

// Len returns the number of items in the set.
func (s *TokenSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Items returns a copy of all token IDs.
func (s *TokenSet) Items() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]string, 0, len(s.items))
	for id := range s.items {
		items = append(items, id)
	}
	return items
}

// ClassIndex provides secondary indexing for tokens by class.
//
// It maintains a mapping from TokenClass to a set of token IDs,
// enabling efficient per-class lookups and counts.
type ClassIndex struct {
	index *cmap.Map[*TokenSet]
}

// NewClassIndex creates a new class index.
func NewClassIndex() *ClassIndex {
	return &ClassIndex{
		index: cmap.New[*TokenSet](),
	}
}

// Add adds a token to the class's set.
func (i *ClassIndex) Add(class domain.TokenClass, tokenID string) {
	key := string(class)
	set, ok := i.index.Get(key)
	if !ok {
		i.index.SetIfAbsent(key, NewTokenSet())
		set, _ = i.index.Get(key)
	}
	set.Add(tokenID)
}

// Remove removes a token from the class's set.
func (i *ClassIndex) Remove(class domain.TokenClass, tokenID string) {
	set, ok := i.index.Get(string(class))
	if !ok {
		return
	}

	set.Remove(tokenID)

	// Clean up empty sets
	if set.Len() == 0 {
		i.index.Delete(string(class))
	}
}

// Get returns all token IDs for a class.
func (i *ClassIndex) Get(class domain.TokenClass) []string {
	set, ok := i.index.Get(string(class))
	if !ok {
		return nil
	}
	return set.Items()
}

// Count returns the number of tokens for a class.
func (i *ClassIndex) Count(class domain.TokenClass) int {
	set, ok := i.index.Get(string(class))
	if !ok {
		return 0
	}
	return set.Len()
}

// Counts returns per-class token counts.
func (i *ClassIndex) Counts() map[domain.TokenClass]int {
	counts := make(map[domain.TokenClass]int)
	i.index.Range(func(key string, set *TokenSet) bool {
		counts[domain.TokenClass(key)] = set.Len()
		return true
	})
	return counts
}
