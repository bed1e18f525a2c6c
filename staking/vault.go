package staking

import (
	"github.com/holiman/uint256"

	farmerrors "github.com/mezonai/lpfarm/errors"
	"github.com/mezonai/lpfarm/types"
)

// FundingVault holds the reward reserve bookkeeping. It is the only place
// that decides whether a payout may happen. Reservations work on copies of
// the vault state; nothing changes until the copy is committed.
type FundingVault struct {
	state *types.VaultState
}

func NewFundingVault(rewardAsset string, rewardPerStep *uint256.Int) *FundingVault {
	rate := uint256.NewInt(0)
	if rewardPerStep != nil {
		rate.Set(rewardPerStep)
	}
	return &FundingVault{
		state: &types.VaultState{
			RewardAsset:   rewardAsset,
			TotalFunded:   uint256.NewInt(0),
			TotalPaidOut:  uint256.NewInt(0),
			RewardPerStep: rate,
		},
	}
}

// Available returns TotalFunded - TotalPaidOut.
func (v *FundingVault) Available() *uint256.Int {
	return available(v.state)
}

func (v *FundingVault) rate() *uint256.Int {
	return v.state.RewardPerStep
}

func available(s *types.VaultState) *uint256.Int {
	if s.TotalPaidOut.Cmp(s.TotalFunded) >= 0 {
		return uint256.NewInt(0)
	}
	return new(uint256.Int).Sub(s.TotalFunded, s.TotalPaidOut)
}

// snapshot returns a copy of the current state
func (v *FundingVault) snapshot() *types.VaultState {
	return v.state.Clone()
}

// reservePayout returns the vault state with amount booked as paid out. It
// fails with InsufficientVaultBalance if amount exceeds Available.
func (v *FundingVault) reservePayout(amount *uint256.Int) (*types.VaultState, error) {
	next := v.state.Clone()
	if amount.IsZero() {
		return next, nil
	}
	avail := available(next)
	if amount.Cmp(avail) > 0 {
		return nil, farmerrors.Newf(farmerrors.ErrCodeInsufficientVaultBalance,
			"payout %s exceeds vault balance %s", amount.Dec(), avail.Dec())
	}
	next.TotalPaidOut = new(uint256.Int).Add(next.TotalPaidOut, amount)
	return next, nil
}

// reserveFunding returns the vault state with amount booked as funded.
func (v *FundingVault) reserveFunding(amount *uint256.Int) (*types.VaultState, error) {
	next := v.state.Clone()
	funded, err := add(next.TotalFunded, amount)
	if err != nil {
		return nil, err
	}
	next.TotalFunded = funded
	return next, nil
}

// commit installs a state produced by a reservation.
func (v *FundingVault) commit(next *types.VaultState) {
	if next != nil {
		v.state = next
	}
}
