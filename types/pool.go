package types

import (
	"github.com/holiman/uint256"
)

// Pool is an independent staking bucket with its own weight and accumulator.
type Pool struct {
	ID         uint64 `json:"id"`
	StakeAsset string `json:"stake_asset"`
	Weight     uint64 `json:"weight"`
	// AccRewardPerShare is scaled by staking.Scale and never decreases.
	AccRewardPerShare *uint256.Int `json:"acc_reward_per_share"`
	LastUpdatedStep   uint64       `json:"last_updated_step"`
	TotalStaked       *uint256.Int `json:"total_staked"`
}

// Clone returns a deep copy so callers can work on a pool without touching shared state.
func (p *Pool) Clone() *Pool {
	return &Pool{
		ID:                p.ID,
		StakeAsset:        p.StakeAsset,
		Weight:            p.Weight,
		AccRewardPerShare: cloneInt(p.AccRewardPerShare),
		LastUpdatedStep:   p.LastUpdatedStep,
		TotalStaked:       cloneInt(p.TotalStaked),
	}
}

// Position is one user's stake in one pool.
type Position struct {
	PoolID uint64       `json:"pool_id"`
	User   string       `json:"user"`
	Amount *uint256.Int `json:"amount"`
	// RewardDebt is Amount * AccRewardPerShare / Scale at the last settlement.
	RewardDebt *uint256.Int `json:"reward_debt"`
}

func NewPosition(poolID uint64, user string) *Position {
	return &Position{
		PoolID:     poolID,
		User:       user,
		Amount:     uint256.NewInt(0),
		RewardDebt: uint256.NewInt(0),
	}
}

func (p *Position) Clone() *Position {
	return &Position{
		PoolID:     p.PoolID,
		User:       p.User,
		Amount:     cloneInt(p.Amount),
		RewardDebt: cloneInt(p.RewardDebt),
	}
}

// VaultState is the reward reserve bookkeeping.
type VaultState struct {
	RewardAsset   string       `json:"reward_asset"`
	TotalFunded   *uint256.Int `json:"total_funded"`
	TotalPaidOut  *uint256.Int `json:"total_paid_out"`
	RewardPerStep *uint256.Int `json:"reward_per_step"`
}

func (v *VaultState) Clone() *VaultState {
	return &VaultState{
		RewardAsset:   v.RewardAsset,
		TotalFunded:   cloneInt(v.TotalFunded),
		TotalPaidOut:  cloneInt(v.TotalPaidOut),
		RewardPerStep: cloneInt(v.RewardPerStep),
	}
}

func cloneInt(v *uint256.Int) *uint256.Int {
	if v == nil {
		return uint256.NewInt(0)
	}
	return new(uint256.Int).Set(v)
}
