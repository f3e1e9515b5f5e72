package nostr

import (
	"encoding/hex"
	"fmt"
)

var (
	ZeroID = ID{}
	ZeroPK = PubKey{}
)

// ID is the sha256 of the serialized event.
type ID [32]byte

func (id ID) String() string { return id.Hex() }
func (id ID) Hex() string    { return hex.EncodeToString(id[:]) }

func (id ID) MarshalJSON() ([]byte, error) {
	return quoteHex(id[:]), nil
}

func (id *ID) UnmarshalJSON(buf []byte) error {
	return unquoteHex(id[:], buf)
}

func IDFromHex(idh string) (ID, error) {
	id := ID{}
	if len(idh) != 64 {
		return id, fmt.Errorf("id should be 64-char hex, got '%s'", idh)
	}
	if _, err := hex.Decode(id[:], []byte(idh)); err != nil {
		return id, fmt.Errorf("'%s' is not valid hex: %w", idh, err)
	}
	return id, nil
}

func MustIDFromHex(idh string) ID {
	id, err := IDFromHex(idh)
	if err != nil {
		panic(err)
	}
	return id
}

// PubKey is the x-only public key of an event author.
type PubKey [32]byte

func (pk PubKey) String() string { return pk.Hex() }
func (pk PubKey) Hex() string    { return hex.EncodeToString(pk[:]) }

func (pk PubKey) MarshalJSON() ([]byte, error) {
	return quoteHex(pk[:]), nil
}

func (pk *PubKey) UnmarshalJSON(buf []byte) error {
	return unquoteHex(pk[:], buf)
}

// PubKeyFromHex parses a hex public key and checks that it is a valid point on the curve.
func PubKeyFromHex(pkh string) (PubKey, error) {
	pk, err := PubKeyFromHexCheap(pkh)
	if err != nil {
		return pk, err
	}
	if !IsValidPublicKey(pk) {
		return pk, fmt.Errorf("'%s' is not a valid pubkey", pkh)
	}
	return pk, nil
}

// PubKeyFromHexCheap is like PubKeyFromHex but skips the curve check.
func PubKeyFromHexCheap(pkh string) (PubKey, error) {
	pk := PubKey{}
	if len(pkh) != 64 {
		return pk, fmt.Errorf("pubkey should be 64-char hex, got '%s'", pkh)
	}
	if _, err := hex.Decode(pk[:], []byte(pkh)); err != nil {
		return pk, fmt.Errorf("'%s' is not valid hex: %w", pkh, err)
	}
	return pk, nil
}

func MustPubKeyFromHex(pkh string) PubKey {
	pk, err := PubKeyFromHexCheap(pkh)
	if err != nil {
		panic(err)
	}
	return pk
}

func quoteHex(b []byte) []byte {
	dst := make([]byte, len(b)*2+2)
	dst[0] = '"'
	hex.Encode(dst[1:], b)
	dst[len(dst)-1] = '"'
	return dst
}

func unquoteHex(dst []byte, buf []byte) error {
	if len(buf) < 2 || buf[0] != '"' || buf[len(buf)-1] != '"' {
		return fmt.Errorf("must be a json string")
	}
	inner := buf[1 : len(buf)-1]
	if len(inner) != len(dst)*2 {
		return fmt.Errorf("must be a hex string of %d characters", len(dst)*2)
	}
	if _, err := hex.Decode(dst, inner); err != nil {
		return err
	}
	return nil
}
