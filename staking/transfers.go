package staking

import (
	"fmt"

	"github.com/holiman/uint256"

	farmerrors "github.com/mezonai/lpfarm/errors"
	"github.com/mezonai/lpfarm/logx"
)

// transferBatch runs the asset movements of one operation and can undo the
// ones that already succeeded when a later one fails.
type transferBatch struct {
	undo []func() error
}

func (b *transferBatch) in(asset Asset, from string, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	if err := asset.TransferIn(from, amount); err != nil {
		return farmerrors.Wrap(farmerrors.ErrCodeAssetTransferFailure, err,
			fmt.Sprintf("transfer %s in from %s", amount.Dec(), from))
	}
	b.undo = append(b.undo, func() error { return asset.TransferOut(from, amount) })
	return nil
}

func (b *transferBatch) out(asset Asset, to string, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	if err := asset.TransferOut(to, amount); err != nil {
		return farmerrors.Wrap(farmerrors.ErrCodeAssetTransferFailure, err,
			fmt.Sprintf("transfer %s out to %s", amount.Dec(), to))
	}
	b.undo = append(b.undo, func() error { return asset.TransferIn(to, amount) })
	return nil
}

// rollback reverses completed transfers, newest first.
func (b *transferBatch) rollback() {
	for i := len(b.undo) - 1; i >= 0; i-- {
		if err := b.undo[i](); err != nil {
			logx.Error("FARM", "Failed to reverse transfer during rollback: ", err)
		}
	}
	b.undo = nil
}
