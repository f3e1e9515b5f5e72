// Package timeline keeps the events delivered by a relay feed in memory, ordered by
// created_at, so they can be displayed and queried.
package timeline

import (
	"bytes"
	"cmp"
	"iter"
	"slices"
	"sync"

	"github.com/homebaseviz/nostr"
)

// Timeline holds events newest first. An event id is stored at most once: later
// copies of the same event, from any relay, are dropped. The zero value is ready to use.
type Timeline struct {
	mu       sync.RWMutex
	internal []nostr.RelayEvent
	ids      map[nostr.ID]struct{}

	// MaxEvents, if positive, caps how many events are kept; the oldest go first.
	MaxEvents int
}

func New(maxEvents int) *Timeline {
	return &Timeline{MaxEvents: maxEvents}
}

// Add stores evt at its place in the timeline. It returns false if the event was
// already there or is older than everything kept by a full timeline.
func (tl *Timeline) Add(evt nostr.RelayEvent) bool {
	tl.mu.Lock()
	defer tl.mu.Unlock()

	if tl.ids == nil {
		tl.ids = make(map[nostr.ID]struct{})
	}
	if _, ok := tl.ids[evt.ID]; ok {
		return false
	}

	idx, _ := slices.BinarySearchFunc(tl.internal, evt.Event, eventComparator)
	if tl.MaxEvents > 0 && idx >= tl.MaxEvents {
		return false
	}

	tl.internal = slices.Insert(tl.internal, idx, evt)
	tl.ids[evt.ID] = struct{}{}

	if tl.MaxEvents > 0 && len(tl.internal) > tl.MaxEvents {
		for _, evicted := range tl.internal[tl.MaxEvents:] {
			delete(tl.ids, evicted.ID)
		}
		clear(tl.internal[tl.MaxEvents:])
		tl.internal = tl.internal[:tl.MaxEvents]
	}

	return true
}

// Remove deletes the event with the given id, if present.
func (tl *Timeline) Remove(id nostr.ID) bool {
	tl.mu.Lock()
	defer tl.mu.Unlock()

	if _, ok := tl.ids[id]; !ok {
		return false
	}
	delete(tl.ids, id)
	tl.internal = slices.DeleteFunc(tl.internal, func(evt nostr.RelayEvent) bool { return evt.ID == id })
	return true
}

func (tl *Timeline) Get(id nostr.ID) (nostr.RelayEvent, bool) {
	tl.mu.RLock()
	defer tl.mu.RUnlock()

	if _, ok := tl.ids[id]; !ok {
		return nostr.RelayEvent{}, false
	}
	for _, evt := range tl.internal {
		if evt.ID == id {
			return evt, true
		}
	}
	return nostr.RelayEvent{}, false
}

func (tl *Timeline) Len() int {
	tl.mu.RLock()
	defer tl.mu.RUnlock()
	return len(tl.internal)
}

// Query yields the events matching filter, newest first, up to filter.Limit when set.
// It works on a snapshot, so the timeline can be modified while iterating.
func (tl *Timeline) Query(filter nostr.Filter) iter.Seq[nostr.RelayEvent] {
	return func(yield func(nostr.RelayEvent) bool) {
		if filter.LimitZero {
			return
		}

		tl.mu.RLock()
		start := 0
		end := len(tl.internal)
		if filter.Until != 0 {
			start, _ = slices.BinarySearchFunc(tl.internal, filter.Until+1, eventTimestampComparator)
		}
		if filter.Since != 0 {
			end, _ = slices.BinarySearchFunc(tl.internal, filter.Since-1, eventTimestampComparator)
		}
		if end < start {
			tl.mu.RUnlock()
			return
		}
		snapshot := slices.Clone(tl.internal[start:end])
		tl.mu.RUnlock()

		count := 0
		for _, evt := range snapshot {
			if filter.Limit > 0 && count == filter.Limit {
				return
			}
			if filter.Matches(evt.Event) {
				if !yield(evt) {
					return
				}
				count++
			}
		}
	}
}

// Reset drops everything.
func (tl *Timeline) Reset() {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	tl.internal = nil
	tl.ids = nil
}

// Collect returns a callback that stores every delivered event before passing the
// notification on to next, which may be nil.
func (tl *Timeline) Collect(next nostr.Callback) nostr.Callback {
	return func(n nostr.Notification) {
		if n.Event != nil {
			tl.Add(*n.Event)
		}
		if next != nil {
			next(n)
		}
	}
}

// eventTimestampComparator orders a search for the first event created at or before t.
func eventTimestampComparator(e nostr.RelayEvent, t nostr.Timestamp) int {
	return cmp.Compare(t, e.CreatedAt)
}

func eventComparator(a nostr.RelayEvent, b nostr.Event) int {
	c := cmp.Compare(b.CreatedAt, a.CreatedAt)
	if c != 0 {
		return c
	}
	return bytes.Compare(b.ID[:], a.ID[:])
}
