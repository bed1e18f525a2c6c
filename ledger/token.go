package ledger

import (
	"github.com/holiman/uint256"

	"github.com/mezonai/lpfarm/staking"
)

var (
	_ staking.Asset         = (*Token)(nil)
	_ staking.AssetProvider = (*Ledger)(nil)
)

// Token moves one asset between user addresses and the ledger's custody address.
type Token struct {
	ledger *Ledger
	asset  string
}

// TransferIn moves amount from the user into custody
func (t *Token) TransferIn(from string, amount *uint256.Int) error {
	return t.ledger.Transfer(t.asset, from, t.ledger.custody, amount)
}

// TransferOut moves amount from custody to the user
func (t *Token) TransferOut(to string, amount *uint256.Int) error {
	return t.ledger.Transfer(t.asset, t.ledger.custody, to, amount)
}
