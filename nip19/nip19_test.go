package nip19

import (
	"testing"

	"github.com/homebaseviz/nostr"
	"github.com/stretchr/testify/require"
)

const (
	fiatjafHex  = "3bf0c63fcb93463407af97a5e5ee64fa883d107ef9e558472c4eb9aaaefa459d"
	fiatjafNpub = "npub180cvv07tjdrrgpa0j7j7tmnyl2yr6yr7l8j4s3evf6u64th6gkwsyjh6w6"
)

func TestEncodeNpub(t *testing.T) {
	require.Equal(t, fiatjafNpub, EncodeNpub(nostr.MustPubKeyFromHex(fiatjafHex)))
}

func TestDecodeNpub(t *testing.T) {
	prefix, value, err := Decode(fiatjafNpub)
	require.NoError(t, err)
	require.Equal(t, "npub", prefix)
	require.Equal(t, nostr.MustPubKeyFromHex(fiatjafHex), value.(nostr.PubKey))
}

func TestDecodeNprofile(t *testing.T) {
	prefix, data, err := Decode("nprofile1qqsrhuxx8l9ex335q7he0f09aej04zpazpl0ne2cgukyawd24mayt8gpp4mhxue69uhhytnc9e3k7mgpz4mhxue69uhkg6nzv9ejuumpv34kytnrdaksjlyr9p")
	require.NoError(t, err)
	require.Equal(t, "nprofile", prefix)

	pp := data.(nostr.ProfilePointer)
	require.Equal(t, fiatjafHex, pp.PublicKey.Hex())
	require.Equal(t, []string{"wss://r.x.com", "wss://djbas.sadkb.com"}, pp.Relays)
}

func TestNprofileRoundTrip(t *testing.T) {
	pk := nostr.MustPubKeyFromHex(fiatjafHex)
	relays := []string{"wss://r.x.com", "wss://djbas.sadkb.com"}

	code := EncodeNprofile(pk, relays)
	require.Equal(t, "nprofile1qqsrhuxx8l9ex335q7he0f09aej04zpazpl0ne2cgukyawd24mayt8gpp4mhxue69uhhytnc9e3k7mgpz4mhxue69uhkg6nzv9ejuumpv34kytnrdaksjlyr9p", code)

	pointer, err := ToPointer(code)
	require.NoError(t, err)
	require.Equal(t, nostr.ProfilePointer{PublicKey: pk, Relays: relays}, pointer)
}

func TestNeventAndNoteRoundTrip(t *testing.T) {
	id := nostr.MustIDFromHex("dc90c95f09947507c1044e8f48bcf6350aa6bff1507dd4acfc755b9239b5c962")
	author := nostr.MustPubKeyFromHex(fiatjafHex)

	pointer, err := ToPointer(EncodeNevent(id, []string{"wss://relay.example.com"}, author))
	require.NoError(t, err)
	require.Equal(t, nostr.EventPointer{ID: id, Relays: []string{"wss://relay.example.com"}, Author: author}, pointer)

	pointer, err = ToPointer(EncodeNote(id))
	require.NoError(t, err)
	require.Equal(t, nostr.EventPointer{ID: id}, pointer)

	require.Equal(t, EncodePointer(nostr.EventPointer{ID: id, Author: author}), EncodeNevent(id, nil, author))

	ie := nostr.RelayEvent{Event: nostr.Event{ID: id, PubKey: author}, Relay: "wss://relay.example.com"}
	_, value, err := Decode(NeventFromRelayEvent(ie))
	require.NoError(t, err)
	require.Equal(t, []string{"wss://relay.example.com"}, value.(nostr.EventPointer).Relays)
}

func TestDecodeFailures(t *testing.T) {
	for _, code := range []string{
		"",
		"npub1",
		"npub180cvv07tjdrrgpa0j7j7tmnyl2yr6yr7l8j4s3evf6u64th6gkwsyjh6w7", // bad checksum
		EncodeNprofile(nostr.ZeroPK, []string{"wss://x.com"})[:20],
		"nsec1vl029mgpspedva04g90vltkh6fvh240zqtv9k0t9af8935ke9laqsnlfe5",
	} {
		_, _, err := Decode(code)
		require.Error(t, err, code)
	}
}

func TestDecodePublicKey(t *testing.T) {
	want := nostr.MustPubKeyFromHex(fiatjafHex)

	for _, input := range []string{
		fiatjafNpub,
		"  " + fiatjafNpub + "\n",
		"nostr:" + fiatjafNpub,
		fiatjafHex,
		"3BF0C63FCB93463407AF97A5E5EE64FA883D107EF9E558472C4EB9AAAEFA459D",
		EncodeNprofile(want, []string{"wss://relay.example.com"}),
	} {
		pk, err := DecodePublicKey(input)
		require.NoError(t, err, input)
		require.Equal(t, want, pk)
	}

	for _, input := range []string{
		"",
		"hello",
		EncodeNote(nostr.ID(want)),
		EncodeNpub(nostr.ZeroPK),
		"0000000000000000000000000000000000000000000000000000000000000000",
		fiatjafNpub[:len(fiatjafNpub)-1],
	} {
		_, err := DecodePublicKey(input)
		require.ErrorIs(t, err, ErrInvalidPublicKey, input)
	}
}
