package nip19

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/homebaseviz/nostr"
)

// Decode decodes npub, note, nprofile and nevent codes. The value is a nostr.PubKey,
// nostr.ID, nostr.ProfilePointer or nostr.EventPointer respectively.
func Decode(bech32string string) (prefix string, value any, err error) {
	prefix, bits5, err := bech32.DecodeNoLimit(bech32string)
	if err != nil {
		return "", nil, err
	}

	data, err := bech32.ConvertBits(bits5, 5, 8, false)
	if err != nil {
		return prefix, nil, fmt.Errorf("failed to translate data into 8 bits: %w", err)
	}

	switch prefix {
	case "note":
		if len(data) != 32 {
			return prefix, nil, fmt.Errorf("note should be 32 bytes (%d)", len(data))
		}
		return prefix, nostr.ID(data[0:32]), nil
	case "npub":
		if len(data) != 32 {
			return prefix, nil, fmt.Errorf("npub should be 32 bytes (%d)", len(data))
		}
		return prefix, nostr.PubKey(data[0:32]), nil
	case "nprofile":
		var result nostr.ProfilePointer
		for t, v := range tlvEntries(data) {
			switch t {
			case TLVDefault:
				if len(v) != 32 {
					return prefix, nil, fmt.Errorf("pubkey should be 32 bytes (%d)", len(v))
				}
				result.PublicKey = nostr.PubKey(v)
			case TLVRelay:
				result.Relays = append(result.Relays, string(v))
			}
		}
		if result.PublicKey == nostr.ZeroPK {
			return prefix, nil, fmt.Errorf("no pubkey found for nprofile")
		}
		return prefix, result, nil
	case "nevent":
		var result nostr.EventPointer
		for t, v := range tlvEntries(data) {
			switch t {
			case TLVDefault:
				if len(v) != 32 {
					return prefix, nil, fmt.Errorf("id should be 32 bytes (%d)", len(v))
				}
				result.ID = nostr.ID(v)
			case TLVRelay:
				result.Relays = append(result.Relays, string(v))
			case TLVAuthor:
				if len(v) != 32 {
					return prefix, nil, fmt.Errorf("author should be 32 bytes (%d)", len(v))
				}
				result.Author = nostr.PubKey(v)
			case TLVKind:
				if len(v) != 4 {
					return prefix, nil, fmt.Errorf("invalid uint32 value for integer (%v)", v)
				}
				result.Kind = nostr.Kind(binary.BigEndian.Uint32(v))
			}
		}
		if result.ID == nostr.ZeroID {
			return prefix, nil, fmt.Errorf("no id found for nevent")
		}
		return prefix, result, nil
	}

	return prefix, nil, fmt.Errorf("unknown tag %s", prefix)
}

func EncodeNpub(pk nostr.PubKey) string {
	return encode("npub", pk[:])
}

func EncodeNote(id nostr.ID) string {
	return encode("note", id[:])
}

func EncodeNprofile(pk nostr.PubKey, relays []string) string {
	buf := &bytes.Buffer{}
	writeTLVEntry(buf, TLVDefault, pk[:])

	for _, url := range relays {
		writeTLVEntry(buf, TLVRelay, []byte(url))
	}

	return encode("nprofile", buf.Bytes())
}

func EncodeNevent(id nostr.ID, relays []string, author nostr.PubKey) string {
	buf := &bytes.Buffer{}
	writeTLVEntry(buf, TLVDefault, id[:])

	for _, url := range relays {
		writeTLVEntry(buf, TLVRelay, []byte(url))
	}

	if author != nostr.ZeroPK {
		writeTLVEntry(buf, TLVAuthor, author[:])
	}

	return encode("nevent", buf.Bytes())
}

func encode(prefix string, data []byte) string {
	bits5, _ := bech32.ConvertBits(data, 8, 5, true)
	code, _ := bech32.Encode(prefix, bits5)
	return code
}
