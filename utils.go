package nostr

import (
	"bytes"
	"cmp"
	"net/url"
	"slices"
	"strings"
)

// IsValidRelayURL checks if a URL is a valid relay URL (ws:// or wss://).
func IsValidRelayURL(u string) bool {
	parsed, err := url.Parse(u)
	if err != nil {
		return false
	}
	if parsed.Scheme != "wss" && parsed.Scheme != "ws" {
		return false
	}
	return parsed.Host != ""
}

// NormalizeURL turns "relay.example.com/", "https://Relay.Example.com" and friends
// into the canonical "wss://relay.example.com" form used as endpoint keys.
func NormalizeURL(u string) string {
	if u == "" {
		return ""
	}

	u = strings.TrimSpace(u)
	if !strings.Contains(u, "://") {
		if strings.HasPrefix(u, "localhost") || strings.HasPrefix(u, "127.0.0.1") {
			u = "ws://" + u
		} else {
			u = "wss://" + u
		}
	}

	p, err := url.Parse(u)
	if err != nil {
		return ""
	}

	switch p.Scheme {
	case "http":
		p.Scheme = "ws"
	case "https":
		p.Scheme = "wss"
	}

	p.Host = strings.ToLower(p.Host)
	p.Path = strings.TrimRight(p.Path, "/")

	return p.String()
}

// CompareEvent is meant to to be used with slices.Sort
func CompareEvent(a, b Event) int {
	if a.CreatedAt == b.CreatedAt {
		return bytes.Compare(a.ID[:], b.ID[:])
	}
	return cmp.Compare(a.CreatedAt, b.CreatedAt)
}

// CompareEventReverse sorts newest first.
func CompareEventReverse(b, a Event) int {
	return CompareEvent(a, b)
}

// AppendUnique adds items to an array only if they don't already exist in the array.
func AppendUnique[I comparable](arr []I, items ...I) []I {
	for _, item := range items {
		if slices.Contains(arr, item) {
			continue
		}
		arr = append(arr, item)
	}
	return arr
}
