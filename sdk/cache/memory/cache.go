package cache_memory

import (
	"encoding/binary"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/homebaseviz/nostr/sdk/cache"
)

var _ cache.Cache32[struct{}] = (*RistrettoCache[struct{}])(nil)

// RistrettoCache holds up to a fixed number of entries, each costing 1. Writes are
// applied asynchronously: a Get right after a Set may still miss until Wait returns.
type RistrettoCache[V any] struct {
	Cache *ristretto.Cache[uint64, V]
}

func New[V any](max int64) *RistrettoCache[V] {
	c, err := ristretto.NewCache(&ristretto.Config[uint64, V]{
		NumCounters: max * 10,
		MaxCost:     max,
		BufferItems: 64,
		KeyToHash:   func(key uint64) (uint64, uint64) { return key, 0 },
	})
	if err != nil {
		panic(err)
	}
	return &RistrettoCache[V]{Cache: c}
}

// keys are already uniformly distributed, the last 8 bytes are enough to index them.
func hashKey(k [32]byte) uint64 { return binary.BigEndian.Uint64(k[32-8:]) }

func (s *RistrettoCache[V]) Get(k [32]byte) (v V, ok bool) { return s.Cache.Get(hashKey(k)) }
func (s *RistrettoCache[V]) Delete(k [32]byte)              { s.Cache.Del(hashKey(k)) }
func (s *RistrettoCache[V]) Set(k [32]byte, v V) bool       { return s.Cache.Set(hashKey(k), v, 1) }

func (s *RistrettoCache[V]) SetWithTTL(k [32]byte, v V, d time.Duration) bool {
	return s.Cache.SetWithTTL(hashKey(k), v, 1, d)
}

// Wait blocks until every pending write is visible.
func (s *RistrettoCache[V]) Wait() { s.Cache.Wait() }

func (s *RistrettoCache[V]) Close() { s.Cache.Close() }
