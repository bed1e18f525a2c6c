package staking

import (
	"math"

	"github.com/holiman/uint256"

	farmerrors "github.com/mezonai/lpfarm/errors"
	"github.com/mezonai/lpfarm/types"
)

// PoolRegistry is the ordered collection of pools. Pool ids are their index.
// Pools are never removed.
type PoolRegistry struct {
	pools       []*types.Pool
	byAsset     map[string]uint64
	totalWeight uint64
}

func NewPoolRegistry() *PoolRegistry {
	return &PoolRegistry{
		byAsset: make(map[string]uint64),
	}
}

// Len returns the number of pools
func (r *PoolRegistry) Len() int {
	return len(r.pools)
}

// TotalWeight returns the sum of all pool weights
func (r *PoolRegistry) TotalWeight() uint64 {
	return r.totalWeight
}

func (r *PoolRegistry) get(id uint64) (*types.Pool, error) {
	if id >= uint64(len(r.pools)) {
		return nil, farmerrors.Newf(farmerrors.ErrCodeInvalidPool, "pool %d does not exist", id)
	}
	return r.pools[id], nil
}

// checkNew validates a pool that is about to be appended.
func (r *PoolRegistry) checkNew(weight uint64, stakeAsset string) error {
	if stakeAsset == "" {
		return farmerrors.Newf(farmerrors.ErrCodeInvalidRequest, "stake asset cannot be empty")
	}
	if id, exists := r.byAsset[stakeAsset]; exists {
		return farmerrors.Newf(farmerrors.ErrCodeDuplicatePool, "stake asset %s already used by pool %d", stakeAsset, id)
	}
	if weight > math.MaxUint64-r.totalWeight {
		return farmerrors.Newf(farmerrors.ErrCodeOverflow, "total weight overflows")
	}
	return nil
}

func (r *PoolRegistry) checkWeight(id, weight uint64) error {
	pool, err := r.get(id)
	if err != nil {
		return err
	}
	if weight > math.MaxUint64-(r.totalWeight-pool.Weight) {
		return farmerrors.Newf(farmerrors.ErrCodeOverflow, "total weight overflows")
	}
	return nil
}

// newPool builds the pool AddPool would append, without adding it.
func (r *PoolRegistry) newPool(weight uint64, stakeAsset string, startStep uint64) *types.Pool {
	return &types.Pool{
		ID:                uint64(len(r.pools)),
		StakeAsset:        stakeAsset,
		Weight:            weight,
		AccRewardPerShare: uint256.NewInt(0),
		LastUpdatedStep:   startStep,
		TotalStaked:       uint256.NewInt(0),
	}
}

// commit installs a working copy of a pool. A pool whose id is the next free
// one is appended.
func (r *PoolRegistry) commit(p *types.Pool) {
	if p.ID == uint64(len(r.pools)) {
		cp := p.Clone()
		r.pools = append(r.pools, cp)
		r.byAsset[cp.StakeAsset] = cp.ID
		r.totalWeight += cp.Weight
		return
	}
	cur := r.pools[p.ID]
	r.totalWeight = r.totalWeight - cur.Weight + p.Weight
	cur.Weight = p.Weight
	cur.AccRewardPerShare = p.AccRewardPerShare
	cur.LastUpdatedStep = p.LastUpdatedStep
	cur.TotalStaked = p.TotalStaked
}

// restore loads a persisted pool. Pools must be restored in id order.
func (r *PoolRegistry) restore(p *types.Pool) error {
	if p.ID != uint64(len(r.pools)) {
		return farmerrors.Newf(farmerrors.ErrCodeInvalidPool, "pool %d restored out of order, expected %d", p.ID, len(r.pools))
	}
	if err := r.checkNew(p.Weight, p.StakeAsset); err != nil {
		return err
	}
	cp := p.Clone()
	r.pools = append(r.pools, cp)
	r.byAsset[cp.StakeAsset] = cp.ID
	r.totalWeight += cp.Weight
	return nil
}
