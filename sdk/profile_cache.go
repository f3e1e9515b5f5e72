package sdk

import (
	"github.com/homebaseviz/nostr"
	"github.com/homebaseviz/nostr/sdk/cache"
	cache_memory "github.com/homebaseviz/nostr/sdk/cache/memory"
	"github.com/rs/zerolog"
)

// ProfileCache remembers the newest metadata seen for each pubkey. Relays may deliver
// kind 0 events in any order, so an older event never replaces a newer one.
type ProfileCache struct {
	cache  cache.Cache32[ProfileMetadata]
	newest *nostr.MapOf[nostr.PubKey, nostr.Timestamp]
	logger *zerolog.Logger
}

// NewProfileCache stores metadata in c, or in an in-memory cache when c is nil.
func NewProfileCache(c cache.Cache32[ProfileMetadata], logger *zerolog.Logger) *ProfileCache {
	if c == nil {
		c = cache_memory.New[ProfileMetadata](8000)
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &ProfileCache{
		cache:  c,
		newest: nostr.NewMapOf[nostr.PubKey, nostr.Timestamp](),
		logger: logger,
	}
}

// Observe stores the metadata in event if it is a kind 0 newer than what is already
// known for its author. It reports whether the cache changed.
func (pc *ProfileCache) Observe(event nostr.Event) bool {
	if event.Kind != nostr.KindProfileMetadata {
		return false
	}

	meta, err := ParseProfileMetadata(event)
	if err != nil {
		pc.logger.Debug().Err(err).Str("pubkey", event.PubKey.Hex()).Msg("unreadable profile metadata")
	}

	updated := false
	pc.newest.Compute(event.PubKey, func(current nostr.Timestamp, loaded bool) (nostr.Timestamp, bool) {
		if loaded && current >= event.CreatedAt {
			return current, false
		}
		if !pc.cache.Set(event.PubKey, meta) {
			// the cache refused it, keep newest as it was so the event can be offered again
			return current, !loaded
		}
		updated = true
		return event.CreatedAt, false
	})
	return updated
}

// Get returns the metadata known for pubkey. When none is cached it returns a bare
// ProfileMetadata with only the PubKey set and ok false.
func (pc *ProfileCache) Get(pubkey nostr.PubKey) (meta ProfileMetadata, ok bool) {
	if meta, ok := pc.cache.Get(pubkey); ok {
		return meta, true
	}
	return ProfileMetadata{PubKey: pubkey}, false
}

// Forget drops everything known about pubkey.
func (pc *ProfileCache) Forget(pubkey nostr.PubKey) {
	pc.newest.Delete(pubkey)
	pc.cache.Delete(pubkey)
}

// Collect returns a callback that feeds every delivered event to the cache and then
// passes the notification on to next, which may be nil.
func (pc *ProfileCache) Collect(next nostr.Callback) nostr.Callback {
	return func(n nostr.Notification) {
		if n.Event != nil {
			pc.Observe(n.Event.Event)
		}
		if next != nil {
			next(n)
		}
	}
}
