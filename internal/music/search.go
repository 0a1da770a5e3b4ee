package music

import (
	"context"
	"strings"
	"sync"
	"time"
)

const (
	defaultSearchLimit = 5
	maxSearchLimit     = 25
	searchCacheTTL     = 5 * time.Minute
)

type searchCacheEntry struct {
	results   []Track
	expiresAt time.Time
}

// Searcher runs short-lived cached searches, used for command autocomplete.
type Searcher struct {
	loader Loader
	ttl    time.Duration
	now    func() time.Time

	mu    sync.RWMutex
	cache map[string]searchCacheEntry
}

func NewSearcher(loader Loader) *Searcher {
	return &Searcher{
		loader: loader,
		ttl:    searchCacheTTL,
		now:    time.Now,
		cache:  make(map[string]searchCacheEntry),
	}
}

func (s *Searcher) Search(ctx context.Context, query string, limit int) ([]Track, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrMissingInput
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	limit = min(limit, maxSearchLimit)

	key := strings.ToLower(query)
	if cached, ok := s.cached(key); ok {
		return cached[:min(limit, len(cached))], nil
	}

	result, err := s.loader.LoadTracks(ctx, Identifier(query))
	if err != nil {
		return nil, err
	}
	if len(result.Tracks) == 0 {
		return nil, ErrNoMatches
	}

	s.store(key, result.Tracks)
	return result.Tracks[:min(limit, len(result.Tracks))], nil
}

func (s *Searcher) cached(key string) ([]Track, bool) {
	s.mu.RLock()
	entry, ok := s.cache[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if s.now().After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.cache, key)
		s.mu.Unlock()
		return nil, false
	}
	return entry.results, true
}

func (s *Searcher) store(key string, results []Track) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for k, e := range s.cache {
		if now.After(e.expiresAt) {
			delete(s.cache, k)
		}
	}
	s.cache[key] = searchCacheEntry{
		results:   results,
		expiresAt: now.Add(s.ttl),
	}
}
