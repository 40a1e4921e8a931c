package memory

import (
	"context"
	"slices"

	"github.com/xenking/venue-orders/internal/domain/auth"
)

// AddAPIKey stores a key under its hash, replacing any key with the same hash.
func (s *Store) AddAPIKey(info auth.APIKeyInfo) *auth.APIKeyInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastKeyID++
	info.ID = s.lastKeyID
	info.Scopes = slices.Clone(info.Scopes)
	s.keys[info.KeyHash] = info
	return &info
}

// FindByHash returns the key stored under hash.
func (s *Store) FindByHash(_ context.Context, hash string) (*auth.APIKeyInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info, ok := s.keys[hash]
	if !ok {
		return nil, auth.ErrKeyNotFound
	}
	info.Scopes = slices.Clone(info.Scopes)
	return &info, nil
}

// UpsertAPIKey stores hash with name and scopes, keeping the ID of an
// existing key with the same hash.
func (s *Store) UpsertAPIKey(_ context.Context, hash, name string, scopes []string) (*auth.APIKeyInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, ok := s.keys[hash]
	if !ok {
		s.lastKeyID++
		info.ID = s.lastKeyID
	}
	info.KeyHash = hash
	info.Name = name
	info.Scopes = slices.Clone(scopes)
	s.keys[hash] = info

	out := info
	out.Scopes = slices.Clone(info.Scopes)
	return &out, nil
}
