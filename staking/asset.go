package staking

import (
	"github.com/holiman/uint256"
)

// Asset is a fungible asset held in custody by the farm. Both calls are
// all-or-nothing: on error no balance changed.
type Asset interface {
	// TransferIn moves amount from the given account into custody.
	TransferIn(from string, amount *uint256.Int) error
	// TransferOut moves amount from custody to the given account.
	TransferOut(to string, amount *uint256.Int) error
}

// AssetProvider resolves asset references (stake assets of pools and the
// reward asset) to transfer capabilities.
type AssetProvider interface {
	Asset(ref string) (Asset, error)
}
