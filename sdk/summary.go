package sdk

import (
	"fmt"
	"time"

	"github.com/homebaseviz/nostr"
)

const summaryTimeLayout = "January 2, 2006 at 3:04 PM MST"

// Summarize describes an event in a couple of lines of plain text, with times shown in loc
// (UTC when nil). Profiles are described by name, notes by the start of their content.
func Summarize(event nostr.Event, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	when := event.CreatedAt.Time().In(loc).Format(summaryTimeLayout)

	switch event.Kind {
	case nostr.KindProfileMetadata:
		meta, _ := ParseProfileMetadata(event)
		return fmt.Sprintf("Last updated on %s\nUser: %s\nAbout: %s", when, meta.ShortName(), meta.About)
	case nostr.KindTextNote:
		return fmt.Sprintf("Posted on %s\nNote: %s", when, abbreviate(event.Content, 50))
	default:
		return fmt.Sprintf("Event: %s\nCreated at: %s", event.ID.Hex(), when)
	}
}

func abbreviate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
