package client

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"

	"github.com/mr-tron/base58"

	"github.com/mezonai/lpfarm/types"
)

var ErrUnsupportedKey = errors.New("crypto: unsupported private key length")

// GenerateAddress creates a fresh ed25519 key pair and returns the address
// with the base58 encoded seed that recreates it.
func GenerateAddress() (addr string, seed string, err error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return "", "", err
	}
	addr, err = types.AddressFromBytes(pub)
	if err != nil {
		return "", "", err
	}
	return addr, base58.Encode(priv.Seed()), nil
}

// AddressFromSeed derives the address belonging to a base58 encoded seed
func AddressFromSeed(seed string) (string, error) {
	raw, err := base58.Decode(seed)
	if err != nil {
		return "", err
	}
	if len(raw) != ed25519.SeedSize {
		return "", ErrUnsupportedKey
	}
	pub := ed25519.NewKeyFromSeed(raw).Public().(ed25519.PublicKey)
	return types.AddressFromBytes(pub)
}
