package staking

import (
	"github.com/holiman/uint256"

	"github.com/mezonai/lpfarm/types"
)

// PendingReward returns the reward a Harvest at step would pay, without
// mutating any state.
func (f *Farm) PendingReward(step uint64, poolID uint64, user string) (*uint256.Int, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	pool, err := f.registry.get(poolID)
	if err != nil {
		return nil, err
	}
	pos, exists := f.positions.get(poolID, user)
	if !exists {
		return uint256.NewInt(0), nil
	}
	acc, err := f.engine.Projected(pool, step)
	if err != nil {
		return nil, err
	}
	return pendingOf(pos.Amount, pos.RewardDebt, acc)
}

// GetPool returns a copy of a pool
func (f *Farm) GetPool(poolID uint64) (*types.Pool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	pool, err := f.registry.get(poolID)
	if err != nil {
		return nil, err
	}
	return pool.Clone(), nil
}

// GetPools returns copies of all pools in id order
func (f *Farm) GetPools() []*types.Pool {
	f.mu.RLock()
	defer f.mu.RUnlock()

	pools := make([]*types.Pool, 0, f.registry.Len())
	for _, pool := range f.registry.pools {
		pools = append(pools, pool.Clone())
	}
	return pools
}

// GetPosition returns a copy of the user's position. Users that never
// deposited get a zero position and false.
func (f *Farm) GetPosition(poolID uint64, user string) (*types.Position, bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if _, err := f.registry.get(poolID); err != nil {
		return nil, false, err
	}
	pos, exists := f.positions.working(poolID, user)
	return pos, exists, nil
}

// GetVault returns a copy of the vault state
func (f *Farm) GetVault() *types.VaultState {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.vault.state.Clone()
}

// VaultAvailable returns funded minus paid out reward
func (f *Farm) VaultAvailable() *uint256.Int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.vault.Available()
}

// TotalWeight returns the sum of pool weights
func (f *Farm) TotalWeight() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.registry.TotalWeight()
}

// StakerCount returns the number of positions ever opened in a pool
func (f *Farm) StakerCount(poolID uint64) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.positions.StakerCount(poolID)
}
