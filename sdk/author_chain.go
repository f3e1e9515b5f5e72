package sdk

import (
	"bytes"
	"slices"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/homebaseviz/nostr"
	"github.com/rs/zerolog"
)

// FilterSetter replaces the filter of a live subscription, *nostr.Manager does that.
type FilterSetter interface {
	SetFilter(nostr.Filter) error
}

type AuthorChainOptions struct {
	// Settle is how long discoveries must stop before the notes filter is sent. Defaults to 5s.
	Settle time.Duration

	// NotesLimit is the limit of the notes filter, zero means no limit.
	NotesLimit int

	Logger *zerolog.Logger
}

// AuthorChain follows profiles with their notes: it collects the authors of the kind 0
// events delivered on a subscription and, once no new author has shown up for a while,
// switches the subscription to the text notes of everybody it found.
type AuthorChain struct {
	target     FilterSetter
	debounced  func(func())
	notesLimit int
	logger     *zerolog.Logger

	mu      sync.Mutex
	authors []nostr.PubKey
	applied int
	stopped bool
}

func NewAuthorChain(target FilterSetter, opts AuthorChainOptions) *AuthorChain {
	if opts.Settle <= 0 {
		opts.Settle = 5 * time.Second
	}
	if opts.Logger == nil {
		nop := zerolog.Nop()
		opts.Logger = &nop
	}
	return &AuthorChain{
		target:     target,
		debounced:  debounce.New(opts.Settle),
		notesLimit: opts.NotesLimit,
		logger:     opts.Logger,
	}
}

// Observe records the author of a kind 0 event. Other kinds are ignored.
func (ac *AuthorChain) Observe(event nostr.Event) {
	if event.Kind != nostr.KindProfileMetadata {
		return
	}

	ac.mu.Lock()
	defer ac.mu.Unlock()

	if ac.stopped {
		return
	}

	idx, found := slices.BinarySearchFunc(ac.authors, event.PubKey, comparePubKeys)
	if found {
		return
	}
	ac.authors = slices.Insert(ac.authors, idx, event.PubKey)
	ac.debounced(ac.apply)
}

// Authors returns the authors found so far, sorted.
func (ac *AuthorChain) Authors() []nostr.PubKey {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	return slices.Clone(ac.authors)
}

// NotesFilter is the filter the chain switches to.
func (ac *AuthorChain) NotesFilter() nostr.Filter {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	return ac.notesFilter()
}

func (ac *AuthorChain) notesFilter() nostr.Filter {
	filter := nostr.Filter{
		Kinds:   []nostr.Kind{nostr.KindTextNote},
		Authors: slices.Clone(ac.authors),
		Limit:   ac.notesLimit,
	}
	return filter
}

// Stop cancels a pending switch. Nothing is observed after this.
func (ac *AuthorChain) Stop() {
	ac.mu.Lock()
	ac.stopped = true
	ac.mu.Unlock()

	ac.debounced(func() {})
}

// Collect returns a callback that observes every delivered event and then passes the
// notification on to next, which may be nil.
func (ac *AuthorChain) Collect(next nostr.Callback) nostr.Callback {
	return func(n nostr.Notification) {
		if n.Event != nil {
			ac.Observe(n.Event.Event)
		}
		if next != nil {
			next(n)
		}
	}
}

func (ac *AuthorChain) apply() {
	ac.mu.Lock()
	if ac.stopped || len(ac.authors) == ac.applied {
		ac.mu.Unlock()
		return
	}
	filter := ac.notesFilter()
	ac.applied = len(ac.authors)
	ac.mu.Unlock()

	if err := ac.target.SetFilter(filter); err != nil {
		ac.logger.Warn().Err(err).Int("authors", len(filter.Authors)).Msg("failed to switch to notes")
		return
	}
	ac.logger.Info().Int("authors", len(filter.Authors)).Msg("switched to notes of discovered authors")
}

func comparePubKeys(a, b nostr.PubKey) int { return bytes.Compare(a[:], b[:]) }
