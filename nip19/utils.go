package nip19

import (
	"errors"
	"fmt"
	"strings"

	"github.com/homebaseviz/nostr"
)

var ErrInvalidPublicKey = errors.New("invalid public key")

// NeventFromRelayEvent encodes a received event together with the relay it came from.
func NeventFromRelayEvent(ie nostr.RelayEvent) string {
	return EncodeNevent(ie.ID, []string{ie.Relay}, ie.PubKey)
}

// DecodePublicKey turns what a user typed (an npub, an nprofile, or a 64-char hex key,
// optionally with a "nostr:" prefix) into a public key that is a valid curve point.
func DecodePublicKey(input string) (nostr.PubKey, error) {
	input = strings.TrimPrefix(strings.TrimSpace(input), "nostr:")

	if len(input) == 64 {
		pk, err := nostr.PubKeyFromHex(strings.ToLower(input))
		if err != nil {
			return nostr.ZeroPK, fmt.Errorf("%w: %w", ErrInvalidPublicKey, err)
		}
		return pk, nil
	}

	prefix, value, err := Decode(input)
	if err != nil {
		return nostr.ZeroPK, fmt.Errorf("%w: %w", ErrInvalidPublicKey, err)
	}

	var pk nostr.PubKey
	switch prefix {
	case "npub":
		pk = value.(nostr.PubKey)
	case "nprofile":
		pk = value.(nostr.ProfilePointer).PublicKey
	default:
		return nostr.ZeroPK, fmt.Errorf("%w: expected npub or nprofile, got %s", ErrInvalidPublicKey, prefix)
	}

	if !nostr.IsValidPublicKey(pk) {
		return nostr.ZeroPK, fmt.Errorf("%w: %s is not a point on the curve", ErrInvalidPublicKey, pk.Hex())
	}
	return pk, nil
}
