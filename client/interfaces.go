package client

import (
	"context"

	"github.com/holiman/uint256"

	"github.com/mezonai/lpfarm/types"
)

// Farm is the remote farm surface used by the CLI
type Farm interface {
	AddPool(ctx context.Context, weight uint64, stakeAsset string, massUpdate bool) (*types.Receipt, error)
	SetPool(ctx context.Context, poolID uint64, weight uint64, massUpdate bool) (*types.Receipt, error)
	SetRewardRate(ctx context.Context, rate *uint256.Int, massUpdate bool) (*types.Receipt, error)
	Fund(ctx context.Context, amount *uint256.Int) (*types.Receipt, error)
	Deposit(ctx context.Context, poolID uint64, amount *uint256.Int) (*types.Receipt, error)
	Withdraw(ctx context.Context, poolID uint64, amount *uint256.Int) (*types.Receipt, error)
	Harvest(ctx context.Context, poolID uint64) (*types.Receipt, error)
	EmergencyWithdraw(ctx context.Context, poolID uint64) (*types.Receipt, error)
	GetPools(ctx context.Context) ([]*types.Pool, error)
	GetPool(ctx context.Context, poolID uint64) (*types.Pool, error)
	GetPosition(ctx context.Context, poolID uint64, user string) (*Position, error)
	PendingReward(ctx context.Context, poolID uint64, user string) (*Pending, error)
	GetVault(ctx context.Context) (*Vault, error)
	GetBalance(ctx context.Context, asset, addr string) (*Balance, error)
	GetStatus(ctx context.Context) (*Status, error)
}

var _ Farm = (*FarmClient)(nil)
