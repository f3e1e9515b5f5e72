package nostr

import (
	"slices"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigFastest

// similar reports whether as and bs hold the same items, ignoring order.
func similar[E comparable](as, bs []E) bool {
	if len(as) != len(bs) {
		return false
	}

	for _, a := range as {
		if !slices.Contains(bs, a) {
			return false
		}
	}

	return true
}

// escapeString appends s to dst as a JSON string literal, escaping per RFC8259.
func escapeString(dst []byte, s string) []byte {
	dst = append(dst, '"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"':
			dst = append(dst, '\\', '"')
		case c == '\\':
			dst = append(dst, '\\', '\\')
		case c >= 0x20:
			dst = append(dst, c)
		case c == 0x08:
			dst = append(dst, '\\', 'b')
		case c == 0x09:
			dst = append(dst, '\\', 't')
		case c == 0x0a:
			dst = append(dst, '\\', 'n')
		case c == 0x0c:
			dst = append(dst, '\\', 'f')
		case c == 0x0d:
			dst = append(dst, '\\', 'r')
		default:
			const hexdigits = "0123456789abcdef"
			dst = append(dst, '\\', 'u', '0', '0', hexdigits[c>>4], hexdigits[c&0xf])
		}
	}
	dst = append(dst, '"')
	return dst
}

func isLowerHex(thing string) bool {
	for _, c := range thing {
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') {
			continue
		}
		return false
	}
	return true
}
