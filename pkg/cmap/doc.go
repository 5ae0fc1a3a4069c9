// Package cmap provides a concurrent map for the Glyph Engine.
//
// The map is sharded by MurmurHash3 over string keys, with one RWMutex
// per shard. Reads take the shard read lock and run fully in parallel;
// writes to the same key always land on the same shard and are
// serialized by its write lock, which gives the per-identity ordering
// the token store relies on.
//
// Usage:
//
//	m := cmap.New[*domain.Token]()
//	m.Set(token.ID, token)
//	val, ok := m.Get(token.ID)
package cmap
