package staking

import (
	"fmt"

	"github.com/mezonai/lpfarm/types"
)

// Snapshot is the complete persisted state of a farm.
type Snapshot struct {
	Pools     []*types.Pool
	Positions []*types.Position
	Vault     *types.VaultState
}

// Restore loads a snapshot into an empty farm and checks its invariants.
func (f *Farm) Restore(snap *Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.registry.Len() != 0 {
		return fmt.Errorf("cannot restore into a farm that already has pools")
	}
	if snap.Vault != nil {
		if snap.Vault.RewardAsset != f.vault.state.RewardAsset {
			return fmt.Errorf("snapshot reward asset %s does not match %s", snap.Vault.RewardAsset, f.vault.state.RewardAsset)
		}
		f.vault.commit(snap.Vault.Clone())
	}
	for _, pool := range snap.Pools {
		if err := f.registry.restore(pool); err != nil {
			return fmt.Errorf("failed to restore pool %d: %w", pool.ID, err)
		}
	}
	for _, pos := range snap.Positions {
		if _, err := f.registry.get(pos.PoolID); err != nil {
			return fmt.Errorf("position of %s references unknown pool: %w", pos.User, err)
		}
		f.positions.put(pos.Clone())
	}
	return f.checkInvariants()
}

// Snapshot returns a deep copy of the farm state.
func (f *Farm) Snapshot() *Snapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()

	snap := &Snapshot{Vault: f.vault.state.Clone()}
	for _, pool := range f.registry.pools {
		snap.Pools = append(snap.Pools, pool.Clone())
	}
	f.positions.each(func(pos *types.Position) {
		snap.Positions = append(snap.Positions, pos.Clone())
	})
	return snap
}

// CheckInvariants verifies the accounting invariants over the whole state.
func (f *Farm) CheckInvariants() error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.checkInvariants()
}

func (f *Farm) checkInvariants() error {
	if f.vault.state.TotalPaidOut.Cmp(f.vault.state.TotalFunded) > 0 {
		return fmt.Errorf("vault paid out %s more than funded %s",
			f.vault.state.TotalPaidOut.Dec(), f.vault.state.TotalFunded.Dec())
	}
	for _, pool := range f.registry.pools {
		sum := f.positions.sumStaked(pool.ID)
		if sum.Cmp(pool.TotalStaked) != 0 {
			return fmt.Errorf("pool %d total staked %s differs from sum of positions %s",
				pool.ID, pool.TotalStaked.Dec(), sum.Dec())
		}
	}
	var err error
	f.positions.each(func(pos *types.Position) {
		if err != nil {
			return
		}
		pool := f.registry.pools[pos.PoolID]
		total, mulErr := accrued(pos.Amount, pool.AccRewardPerShare)
		if mulErr != nil {
			err = mulErr
			return
		}
		if total.Cmp(pos.RewardDebt) < 0 {
			err = fmt.Errorf("position %d/%s has negative pending reward", pos.PoolID, pos.User)
		}
	})
	return err
}
