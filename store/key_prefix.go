package store

import (
	"encoding/binary"
)

// Declare database key prefix for objects
const (
	PrefixAccount  = "account:"
	PrefixPool     = "pool:"
	PrefixPosition = "position:"

	KeyVaultState = "vault:state"
	KeyLastStep   = "meta:last_step"
)

// poolKey is PrefixPool + <8-byte big-endian id> so iteration follows id order
func poolKey(id uint64) []byte {
	key := make([]byte, len(PrefixPool)+8)
	copy(key, PrefixPool)
	binary.BigEndian.PutUint64(key[len(PrefixPool):], id)
	return key
}

// positionKey is PrefixPosition + <8-byte big-endian pool id> + user
func positionKey(poolID uint64, user string) []byte {
	key := make([]byte, len(PrefixPosition)+8+len(user))
	copy(key, PrefixPosition)
	binary.BigEndian.PutUint64(key[len(PrefixPosition):], poolID)
	copy(key[len(PrefixPosition)+8:], user)
	return key
}

func accountKey(asset, addr string) []byte {
	return []byte(PrefixAccount + asset + "/" + addr)
}
