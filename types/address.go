package types

import (
	"fmt"

	"github.com/mr-tron/base58"
)

// AddressLength is the decoded size of an account address (an ed25519 public key).
const AddressLength = 32

// ValidateAddress checks that addr is a base58 encoded 32 byte public key.
func ValidateAddress(addr string) error {
	if addr == "" {
		return fmt.Errorf("address is empty")
	}
	raw, err := base58.Decode(addr)
	if err != nil {
		return fmt.Errorf("address %q is not base58: %w", addr, err)
	}
	if len(raw) != AddressLength {
		return fmt.Errorf("address %q decodes to %d bytes, want %d", addr, len(raw), AddressLength)
	}
	return nil
}

// AddressFromBytes encodes a raw 32 byte key as an address.
func AddressFromBytes(raw []byte) (string, error) {
	if len(raw) != AddressLength {
		return "", fmt.Errorf("invalid key length %d", len(raw))
	}
	return base58.Encode(raw), nil
}
