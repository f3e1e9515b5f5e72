package nostr

// Pointer is a reference to a profile or an event, possibly with hints of
// relays where it can be found.
type Pointer interface {
	// AsTagReference returns the pointer as it would appear as the second item of a tag.
	AsTagReference() string

	// AsFilter converts the pointer to a Filter that can be used to query for it on relays.
	AsFilter() Filter
	MatchesEvent(Event) bool
}

var (
	_ Pointer = (*ProfilePointer)(nil)
	_ Pointer = (*EventPointer)(nil)
)

// ProfilePointer represents a pointer to a Nostr profile.
type ProfilePointer struct {
	PublicKey PubKey
	Relays    []string
}

func (ep ProfilePointer) MatchesEvent(evt Event) bool {
	return evt.Kind == KindProfileMetadata && evt.PubKey == ep.PublicKey
}

func (ep ProfilePointer) AsFilter() Filter {
	return Filter{Kinds: []Kind{KindProfileMetadata}, Authors: []PubKey{ep.PublicKey}}
}
func (ep ProfilePointer) AsTagReference() string { return ep.PublicKey.Hex() }

// EventPointer represents a pointer to a nostr event.
type EventPointer struct {
	ID     ID
	Relays []string
	Author PubKey
	Kind   Kind
}

func (ep EventPointer) MatchesEvent(evt Event) bool { return evt.ID == ep.ID }
func (ep EventPointer) AsFilter() Filter            { return Filter{IDs: []ID{ep.ID}} }
func (ep EventPointer) AsTagReference() string      { return ep.ID.Hex() }
