package sdk

import (
	"errors"
	"fmt"

	"github.com/homebaseviz/nostr"
	"github.com/homebaseviz/nostr/nip19"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigFastest

// UnknownName is what a profile is called when its metadata can't be read.
const UnknownName = "Unknown"

var ErrNotMetadata = errors.New("event is not kind 0")

// ProfileMetadata is the content of a kind 0 event.
type ProfileMetadata struct {
	PubKey nostr.PubKey `json:"-"` // must always be set otherwise things will break
	Event  *nostr.Event `json:"-"` // may be empty if a profile metadata event wasn't found

	// every one of these may be empty
	Name        string `json:"name,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	About       string `json:"about,omitempty"`
	Website     string `json:"website,omitempty"`
	Picture     string `json:"picture,omitempty"`
	Banner      string `json:"banner,omitempty"`
	NIP05       string `json:"nip05,omitempty"`
	LUD16       string `json:"lud16,omitempty"`
}

func (p ProfileMetadata) Npub() string {
	return nip19.EncodeNpub(p.PubKey)
}

func (p ProfileMetadata) NpubShort() string {
	npub := p.Npub()
	return npub[0:7] + "…" + npub[58:]
}

// ShortName returns the best name available for display.
func (p ProfileMetadata) ShortName() string {
	if p.Name != "" {
		return p.Name
	}
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.NpubShort()
}

// CreatedAt is the timestamp of the event the metadata came from, zero if there was none.
func (p ProfileMetadata) CreatedAt() nostr.Timestamp {
	if p.Event == nil {
		return 0
	}
	return p.Event.CreatedAt
}

// ParseProfileMetadata reads the metadata in a kind 0 event. When the content is not a
// JSON object the returned metadata is named UnknownName and the error says why.
func ParseProfileMetadata(event nostr.Event) (meta ProfileMetadata, err error) {
	if event.Kind != nostr.KindProfileMetadata {
		return meta, fmt.Errorf("%w: got %d", ErrNotMetadata, event.Kind)
	}

	if err := json.Unmarshal([]byte(event.Content), &meta); err != nil {
		meta = ProfileMetadata{Name: UnknownName}
		err = fmt.Errorf("failed to parse metadata (%s) from event %s: %w", event.Content, event.ID, err)
		meta.PubKey = event.PubKey
		meta.Event = &event
		return meta, err
	}

	meta.PubKey = event.PubKey
	meta.Event = &event
	return meta, nil
}
