package nostr

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
)

func GeneratePrivateKey() [32]byte {
	var sk [32]byte
	if _, err := io.ReadFull(rand.Reader, sk[:]); err != nil {
		panic(fmt.Errorf("failed to read random bytes when generating private key: %w", err))
	}
	return sk
}

func GetPublicKey(sk [32]byte) PubKey {
	_, pk := btcec.PrivKeyFromBytes(sk[:])
	return PubKey(pk.SerializeCompressed()[1:])
}

// IsValidPublicKey checks that pk is the x coordinate of a point on the curve.
func IsValidPublicKey(pk [32]byte) bool {
	_, err := schnorr.ParsePubKey(pk[:])
	return err == nil
}

// Sign sets the event's PubKey, ID and Sig using the given secret key.
// Events received from relays are never checked against their signature.
func (evt *Event) Sign(secretKey [32]byte) error {
	if evt.Tags == nil {
		evt.Tags = make(Tags, 0)
	}

	sk, pk := btcec.PrivKeyFromBytes(secretKey[:])
	evt.PubKey = PubKey(pk.SerializeCompressed()[1:])

	h := sha256.Sum256(evt.Serialize())
	sig, err := schnorr.Sign(sk, h[:], schnorr.FastSign())
	if err != nil {
		return err
	}

	evt.ID = h
	evt.Sig = [64]byte(sig.Serialize())
	return nil
}
