package staking

import (
	"github.com/holiman/uint256"

	"github.com/mezonai/lpfarm/types"
)

// RewardAccrualEngine advances pool accumulators. It reads the reward rate
// from the vault and the weight distribution from the registry.
type RewardAccrualEngine struct {
	registry *PoolRegistry
	vault    *FundingVault
}

func NewRewardAccrualEngine(registry *PoolRegistry, vault *FundingVault) *RewardAccrualEngine {
	return &RewardAccrualEngine{registry: registry, vault: vault}
}

// Update brings pool's accumulator up to step. pool is modified in place; the
// farm passes working copies so a failed operation leaves shared state alone.
func (e *RewardAccrualEngine) Update(pool *types.Pool, step uint64) error {
	acc, err := e.Projected(pool, step)
	if err != nil {
		return err
	}
	if step > pool.LastUpdatedStep {
		pool.AccRewardPerShare = acc
		pool.LastUpdatedStep = step
	}
	return nil
}

// Projected returns the accumulator Update would produce at step, without
// touching the pool.
func (e *RewardAccrualEngine) Projected(pool *types.Pool, step uint64) (*uint256.Int, error) {
	acc := new(uint256.Int).Set(pool.AccRewardPerShare)
	if step <= pool.LastUpdatedStep || pool.TotalStaked.IsZero() {
		return acc, nil
	}
	reward, err := e.poolReward(pool, step-pool.LastUpdatedStep)
	if err != nil {
		return nil, err
	}
	if reward.IsZero() {
		return acc, nil
	}
	delta, err := mulDiv(reward, Scale, pool.TotalStaked)
	if err != nil {
		return nil, err
	}
	return add(acc, delta)
}

// poolReward is rate * weight / totalWeight * elapsed, evaluated left to right
// with truncating division.
func (e *RewardAccrualEngine) poolReward(pool *types.Pool, elapsed uint64) (*uint256.Int, error) {
	totalWeight := e.registry.TotalWeight()
	if totalWeight == 0 || pool.Weight == 0 {
		return uint256.NewInt(0), nil
	}
	perStep, err := mulDiv(e.vault.rate(), uint256.NewInt(pool.Weight), uint256.NewInt(totalWeight))
	if err != nil {
		return nil, err
	}
	return mul(perStep, uint256.NewInt(elapsed))
}

// MassUpdate brings every pool up to step on working copies and returns the
// copies that changed, in id order. The registry is not modified; the caller
// commits the copies.
func (e *RewardAccrualEngine) MassUpdate(step uint64) ([]*types.Pool, error) {
	updated := make([]*types.Pool, 0, e.registry.Len())
	for _, pool := range e.registry.pools {
		if step <= pool.LastUpdatedStep {
			continue
		}
		working := pool.Clone()
		if err := e.Update(working, step); err != nil {
			return nil, err
		}
		updated = append(updated, working)
	}
	return updated, nil
}
