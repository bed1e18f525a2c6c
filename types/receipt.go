package types

import (
	"github.com/holiman/uint256"
)

// OpKind names a mutating farm operation.
type OpKind string

const (
	OpAddPool           OpKind = "add_pool"
	OpSetPool           OpKind = "set_pool"
	OpSetRewardRate     OpKind = "set_reward_rate"
	OpFund              OpKind = "fund"
	OpDeposit           OpKind = "deposit"
	OpWithdraw          OpKind = "withdraw"
	OpHarvest           OpKind = "harvest"
	OpEmergencyWithdraw OpKind = "emergency_withdraw"
)

// Receipt describes a committed operation: what moved and which state was touched.
type Receipt struct {
	Op     OpKind       `json:"op"`
	Step   uint64       `json:"step"`
	PoolID uint64       `json:"pool_id"`
	User   string       `json:"user,omitempty"`
	Amount *uint256.Int `json:"amount,omitempty"`
	Reward *uint256.Int `json:"reward,omitempty"`
	// TouchedPools lists every pool whose state changed, in registry order.
	TouchedPools []uint64 `json:"touched_pools,omitempty"`
	// HasPosition is set when the (PoolID, User) position changed.
	HasPosition bool `json:"-"`
}
