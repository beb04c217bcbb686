// Package cache is a small in-process response cache used for the public CTA
// list and the dashboard stats. Keys are xxHash digests of caller-supplied
// strings; entries expire on a TTL and are dropped wholesale on CTA writes.
package cache

import (
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/ristretto"
	"github.com/rs/zerolog/log"
)

type Store struct {
	cache *ristretto.Cache
	ttl   time.Duration
}

// NewStore builds a store bounded to maxSizeMB of cached values. Returns nil
// when disabled; all methods tolerate a nil receiver, so callers never need
// an enabled check.
func NewStore(enabled bool, maxSizeMB int, ttl time.Duration) *Store {
	if !enabled {
		return nil
	}
	if maxSizeMB <= 0 {
		maxSizeMB = 16
	}

	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e5,
		MaxCost:     int64(maxSizeMB) << 20,
		BufferItems: 64,
	})
	if err != nil {
		log.Error().Err(err).Msg("cache disabled: ristretto init failed")
		return nil
	}

	return &Store{cache: c, ttl: ttl}
}

// Key hashes the given parts into a stable cache key.
func Key(parts ...string) string {
	digest := xxhash.New()
	for _, part := range parts {
		digest.WriteString(part)
		digest.Write([]byte{0})
	}
	return fmt.Sprintf("%016x", digest.Sum64())
}

func (s *Store) Get(key string) (interface{}, bool) {
	if s == nil {
		return nil, false
	}
	return s.cache.Get(key)
}

func (s *Store) Set(key string, value interface{}) {
	if s == nil {
		return
	}
	s.cache.SetWithTTL(key, value, 1, s.ttl)
}

// Clear drops every cached entry; called after any CTA write so the public
// list and stats never serve stale records.
func (s *Store) Clear() {
	if s == nil {
		return
	}
	s.cache.Clear()
}
