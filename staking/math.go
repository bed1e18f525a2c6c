package staking

import (
	"github.com/holiman/uint256"

	farmerrors "github.com/mezonai/lpfarm/errors"
)

// Scale is the fixed-point scale of AccRewardPerShare. Truncation per accrual
// is below one reward unit per Scale units of stake.
var Scale = uint256.NewInt(1_000_000_000_000)

// mulDiv returns x*y/d with a 512-bit intermediate. d must be non-zero.
func mulDiv(x, y, d *uint256.Int) (*uint256.Int, error) {
	if d.IsZero() {
		return nil, farmerrors.Newf(farmerrors.ErrCodeOverflow, "division by zero")
	}
	z, overflow := new(uint256.Int).MulDivOverflow(x, y, d)
	if overflow {
		return nil, farmerrors.ErrOverflow
	}
	return z, nil
}

func mul(x, y *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).MulOverflow(x, y)
	if overflow {
		return nil, farmerrors.ErrOverflow
	}
	return z, nil
}

func add(x, y *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).AddOverflow(x, y)
	if overflow {
		return nil, farmerrors.ErrOverflow
	}
	return z, nil
}

// accrued is amount * acc / Scale.
func accrued(amount, acc *uint256.Int) (*uint256.Int, error) {
	return mulDiv(amount, acc, Scale)
}

// pendingOf is the reward a position of amount with the given debt earned
// since its last settlement at accumulator acc. Never negative.
func pendingOf(amount, debt, acc *uint256.Int) (*uint256.Int, error) {
	if amount.IsZero() {
		return uint256.NewInt(0), nil
	}
	total, err := accrued(amount, acc)
	if err != nil {
		return nil, err
	}
	if total.Cmp(debt) <= 0 {
		return uint256.NewInt(0), nil
	}
	return new(uint256.Int).Sub(total, debt), nil
}
