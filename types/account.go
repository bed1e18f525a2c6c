package types

import (
	"github.com/holiman/uint256"
)

// Account is the balance of one address for one asset.
type Account struct {
	Asset   string       `json:"asset"`
	Address string       `json:"address"`
	Balance *uint256.Int `json:"balance"`
}

// Key identifies the account inside an account store.
func (a *Account) Key() string {
	return AccountKey(a.Asset, a.Address)
}

func AccountKey(asset, addr string) string {
	return asset + "/" + addr
}

func (a *Account) Clone() *Account {
	return &Account{
		Asset:   a.Asset,
		Address: a.Address,
		Balance: new(uint256.Int).Set(a.Balance),
	}
}
