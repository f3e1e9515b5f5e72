package nostr

import (
	"crypto/sha256"
	"fmt"
)

// Event represents a Nostr event. Events are produced by relays and never modified here.
type Event struct {
	ID        ID
	PubKey    PubKey
	CreatedAt Timestamp
	Kind      Kind
	Tags      Tags
	Content   string
	Sig       [64]byte
}

// GetID serializes and returns the event ID.
func (evt Event) GetID() ID {
	return sha256.Sum256(evt.Serialize())
}

// CheckID checks if the implied ID matches the given ID.
func (evt Event) CheckID() bool {
	return evt.GetID() == evt.ID
}

// RelayEvent is an event together with the URL of the relay it was received from.
// It is meant for display and debugging, deduplication never looks at Relay.
type RelayEvent struct {
	Event
	Relay string
}

func (ie RelayEvent) String() string { return fmt.Sprintf("[%s] >> %s", ie.Relay, ie.Event) }
