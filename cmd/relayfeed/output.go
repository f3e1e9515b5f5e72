package main

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"sync"
	"text/tabwriter"

	"github.com/homebaseviz/nostr"
	"github.com/homebaseviz/nostr/nip19"
	"github.com/homebaseviz/nostr/sdk"
	jsoniter "github.com/json-iterator/go"
	"github.com/mailru/easyjson"
	"github.com/rs/zerolog"
)

var json = jsoniter.ConfigFastest

// resolveFilter picks the filter to subscribe with: an explicit JSON filter, everything
// by one author, or recent profiles.
func resolveFilter(raw string, author string, profiles int) (nostr.Filter, error) {
	var filter nostr.Filter

	switch {
	case raw != "":
		if err := easyjson.Unmarshal([]byte(raw), &filter); err != nil {
			return filter, fmt.Errorf("invalid filter '%s': %w", raw, err)
		}
	case author != "":
		pk, err := nip19.DecodePublicKey(author)
		if err != nil {
			return filter, fmt.Errorf("invalid author '%s': %w", author, err)
		}
		filter.Authors = []nostr.PubKey{pk}
	default:
		filter.Kinds = []nostr.Kind{nostr.KindProfileMetadata}
		filter.Limit = profiles
	}

	return filter, filter.Validate()
}

type output struct {
	Relay string      `json:"relay"`
	Event nostr.Event `json:"event"`
}

type printer struct {
	mu       sync.Mutex
	w        io.Writer
	profiles *sdk.ProfileCache
	summary  bool
	logger   *zerolog.Logger
}

func newPrinter(w io.Writer, profiles *sdk.ProfileCache, summary bool, logger *zerolog.Logger) *printer {
	return &printer{w: w, profiles: profiles, summary: summary, logger: logger}
}

// print is called concurrently by every relay.
func (p *printer) print(n nostr.Notification) {
	if n.IsStatus() {
		ev := p.logger.Info()
		if n.Status.State == nostr.StateError || n.Status.State == nostr.StateFailed {
			ev = p.logger.Warn()
		}
		ev.Str("relay", n.Status.URL).Stringer("state", n.Status.State).Msg("relay status")
		return
	}

	var line string
	if p.summary {
		author, _ := p.profiles.Get(n.Event.PubKey)
		line = fmt.Sprintf("[%s] %s\n%s\n",
			n.Event.Relay, author.ShortName(), sdk.Summarize(n.Event.Event, nil))
	} else {
		j, err := json.Marshal(output{Relay: n.Event.Relay, Event: n.Event.Event})
		if err != nil {
			p.logger.Warn().Err(err).Str("id", n.Event.ID.Hex()).Msg("failed to encode event")
			return
		}
		line = string(j) + "\n"
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	io.WriteString(p.w, line)
}

func printStatusTable(w io.Writer, statuses map[string]nostr.ConnectionState) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RELAY\tSTATE")
	for _, url := range slices.Sorted(maps.Keys(statuses)) {
		fmt.Fprintf(tw, "%s\t%s\n", url, strings.ToUpper(statuses[url].String()))
	}
	return tw.Flush()
}
