package staking

import (
	"fmt"
	"sync"

	"github.com/holiman/uint256"

	farmerrors "github.com/mezonai/lpfarm/errors"
	"github.com/mezonai/lpfarm/types"
)

// FarmConfig holds the parameters a farm is created with
type FarmConfig struct {
	RewardAsset   string
	RewardPerStep *uint256.Int
	// StartStep is the first step at which any pool accrues reward.
	StartStep uint64
}

// Farm is the shared staking state: pools, positions and the reward vault.
// All mutating operations hold the write lock for their whole duration, so
// they never observe each other's intermediate state. Every operation either
// commits completely or returns an error with no state change.
type Farm struct {
	mu sync.RWMutex

	registry  *PoolRegistry
	positions *UserPositionLedger
	vault     *FundingVault
	engine    *RewardAccrualEngine
	assets    AssetProvider

	startStep  uint64
	commitHook func(*Change) error
}

// Change is what one operation is about to commit: post-operation copies of
// every pool it touched, the position it stored (nil if none) and the vault.
type Change struct {
	Receipt  *types.Receipt
	Pools    []*types.Pool
	Position *types.Position
	Vault    *types.VaultState
}

// NewFarm creates an empty farm
func NewFarm(cfg FarmConfig, assets AssetProvider) (*Farm, error) {
	if cfg.RewardAsset == "" {
		return nil, fmt.Errorf("reward asset cannot be empty")
	}
	if assets == nil {
		return nil, fmt.Errorf("asset provider cannot be nil")
	}
	registry := NewPoolRegistry()
	vault := NewFundingVault(cfg.RewardAsset, cfg.RewardPerStep)
	return &Farm{
		registry:  registry,
		positions: NewUserPositionLedger(),
		vault:     vault,
		engine:    NewRewardAccrualEngine(registry, vault),
		assets:    assets,
		startStep: cfg.StartStep,
	}, nil
}

// SetCommitHook installs a function that sees every Change after its asset
// transfers ran and before the farm applies it. If the hook fails, the
// transfers are reversed and the operation returns the hook's error with the
// farm unchanged.
func (f *Farm) SetCommitHook(hook func(*Change) error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commitHook = hook
}

// commit passes c through the hook and applies it.
func (f *Farm) commit(c *Change) error {
	if f.commitHook != nil {
		if err := f.commitHook(c); err != nil {
			return err
		}
	}
	for _, pool := range c.Pools {
		f.registry.commit(pool)
	}
	if c.Position != nil {
		f.positions.put(c.Position)
	}
	f.vault.commit(c.Vault)
	return nil
}

// AddPool appends a pool with the given weight. With massUpdate all existing
// pools are settled first, so the new weight only affects future accrual.
func (f *Farm) AddPool(step uint64, weight uint64, stakeAsset string, massUpdate bool) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.registry.checkNew(weight, stakeAsset); err != nil {
		return nil, err
	}
	if _, err := f.assets.Asset(stakeAsset); err != nil {
		return nil, farmerrors.Wrap(farmerrors.ErrCodeInvalidRequest, err, "resolve stake asset")
	}

	var pools []*types.Pool
	if massUpdate {
		var err error
		if pools, err = f.engine.MassUpdate(step); err != nil {
			return nil, err
		}
	}

	lastUpdated := step
	if f.startStep > lastUpdated {
		lastUpdated = f.startStep
	}
	pool := f.registry.newPool(weight, stakeAsset, lastUpdated)
	pools = append(pools, pool)

	receipt := &types.Receipt{
		Op:           types.OpAddPool,
		Step:         step,
		PoolID:       pool.ID,
		TouchedPools: poolIDs(pools),
	}
	if err := f.commit(&Change{Receipt: receipt, Pools: pools, Vault: f.vault.snapshot()}); err != nil {
		return nil, err
	}
	return receipt, nil
}

// SetPool changes a pool's weight. With massUpdate all pools are settled at
// the old weights first.
func (f *Farm) SetPool(step uint64, poolID uint64, weight uint64, massUpdate bool) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.registry.checkWeight(poolID, weight); err != nil {
		return nil, err
	}

	var pools []*types.Pool
	if massUpdate {
		var err error
		if pools, err = f.engine.MassUpdate(step); err != nil {
			return nil, err
		}
	}
	target := findPool(pools, poolID)
	if target == nil {
		current, err := f.registry.get(poolID)
		if err != nil {
			return nil, err
		}
		target = current.Clone()
		pools = append(pools, target)
	}
	target.Weight = weight

	receipt := &types.Receipt{
		Op:           types.OpSetPool,
		Step:         step,
		PoolID:       poolID,
		TouchedPools: poolIDs(pools),
	}
	if err := f.commit(&Change{Receipt: receipt, Pools: pools, Vault: f.vault.snapshot()}); err != nil {
		return nil, err
	}
	return receipt, nil
}

// SetRewardRate changes the global reward per step. With massUpdate all pools
// are settled at the old rate first.
func (f *Farm) SetRewardRate(step uint64, rate *uint256.Int, massUpdate bool) (*types.Receipt, error) {
	if rate == nil {
		return nil, farmerrors.ErrInvalidAmount
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	var pools []*types.Pool
	if massUpdate {
		var err error
		if pools, err = f.engine.MassUpdate(step); err != nil {
			return nil, err
		}
	}
	vault := f.vault.snapshot()
	vault.RewardPerStep = new(uint256.Int).Set(rate)

	receipt := &types.Receipt{
		Op:           types.OpSetRewardRate,
		Step:         step,
		Amount:       new(uint256.Int).Set(rate),
		TouchedPools: poolIDs(pools),
	}
	if err := f.commit(&Change{Receipt: receipt, Pools: pools, Vault: vault}); err != nil {
		return nil, err
	}
	return receipt, nil
}

// Fund moves amount of the reward asset from the funder into the vault.
func (f *Farm) Fund(step uint64, from string, amount *uint256.Int) (*types.Receipt, error) {
	if amount == nil {
		return nil, farmerrors.ErrInvalidAmount
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	asset, err := f.rewardAsset()
	if err != nil {
		return nil, err
	}
	vault, err := f.vault.reserveFunding(amount)
	if err != nil {
		return nil, err
	}
	var batch transferBatch
	if err := batch.in(asset, from, amount); err != nil {
		return nil, err
	}

	receipt := &types.Receipt{
		Op:     types.OpFund,
		Step:   step,
		User:   from,
		Amount: new(uint256.Int).Set(amount),
	}
	if err := f.commit(&Change{Receipt: receipt, Vault: vault}); err != nil {
		batch.rollback()
		return nil, err
	}
	return receipt, nil
}

// Deposit stakes amount into a pool. Reward pending on an existing position
// is paid out in the same operation.
func (f *Farm) Deposit(step uint64, poolID uint64, user string, amount *uint256.Int) (*types.Receipt, error) {
	if amount == nil {
		return nil, farmerrors.ErrInvalidAmount
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.settle(step, types.OpDeposit, poolID, user, amount, nil)
}

// Withdraw returns amount of stake to the user and pays out pending reward.
// It fails with InsufficientStake if amount exceeds the user's stake.
func (f *Farm) Withdraw(step uint64, poolID uint64, user string, amount *uint256.Int) (*types.Receipt, error) {
	if amount == nil {
		return nil, farmerrors.ErrInvalidAmount
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.settle(step, types.OpWithdraw, poolID, user, nil, amount)
}

// Harvest pays out the user's pending reward.
func (f *Farm) Harvest(step uint64, poolID uint64, user string) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.settle(step, types.OpHarvest, poolID, user, nil, nil)
}

// EmergencyWithdraw returns the user's whole stake and forfeits pending
// reward. It does not touch the vault, so it works even when the vault is
// empty.
func (f *Farm) EmergencyWithdraw(step uint64, poolID uint64, user string) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	current, err := f.registry.get(poolID)
	if err != nil {
		return nil, err
	}
	pool := current.Clone()
	if err := f.engine.Update(pool, step); err != nil {
		return nil, err
	}
	pos, exists := f.positions.working(poolID, user)
	amount := new(uint256.Int).Set(pos.Amount)

	stakeAsset, err := f.assets.Asset(pool.StakeAsset)
	if err != nil {
		return nil, farmerrors.Wrap(farmerrors.ErrCodeAssetTransferFailure, err, "resolve stake asset")
	}
	var batch transferBatch
	if err := batch.out(stakeAsset, user, amount); err != nil {
		return nil, err
	}

	pool.TotalStaked = new(uint256.Int).Sub(pool.TotalStaked, amount)
	pos.Amount = uint256.NewInt(0)
	pos.RewardDebt = uint256.NewInt(0)

	receipt := &types.Receipt{
		Op:           types.OpEmergencyWithdraw,
		Step:         step,
		PoolID:       poolID,
		User:         user,
		Amount:       amount,
		Reward:       uint256.NewInt(0),
		TouchedPools: []uint64{poolID},
		HasPosition:  exists,
	}
	change := &Change{Receipt: receipt, Pools: []*types.Pool{pool}, Vault: f.vault.snapshot()}
	if exists {
		change.Position = pos
	}
	if err := f.commit(change); err != nil {
		batch.rollback()
		return nil, err
	}
	return receipt, nil
}

// settle runs the shared deposit/withdraw/harvest pipeline: update the pool
// accumulator, settle the position's pending reward, move assets, then commit
// pool, position and vault as one Change.
func (f *Farm) settle(step uint64, op types.OpKind, poolID uint64, user string, stakeIn, stakeOut *uint256.Int) (*types.Receipt, error) {
	current, err := f.registry.get(poolID)
	if err != nil {
		return nil, err
	}

	// engine
	pool := current.Clone()
	if err := f.engine.Update(pool, step); err != nil {
		return nil, err
	}

	// ledger
	pos, exists := f.positions.working(poolID, user)
	pending, err := pendingOf(pos.Amount, pos.RewardDebt, pool.AccRewardPerShare)
	if err != nil {
		return nil, err
	}

	moved := uint256.NewInt(0)
	switch {
	case stakeIn != nil:
		moved.Set(stakeIn)
		if pos.Amount, err = add(pos.Amount, stakeIn); err != nil {
			return nil, err
		}
		if pool.TotalStaked, err = add(pool.TotalStaked, stakeIn); err != nil {
			return nil, err
		}
	case stakeOut != nil:
		if stakeOut.Cmp(pos.Amount) > 0 {
			return nil, farmerrors.Newf(farmerrors.ErrCodeInsufficientStake,
				"withdraw %s exceeds stake %s", stakeOut.Dec(), pos.Amount.Dec())
		}
		moved.Set(stakeOut)
		pos.Amount = new(uint256.Int).Sub(pos.Amount, stakeOut)
		pool.TotalStaked = new(uint256.Int).Sub(pool.TotalStaked, stakeOut)
	}
	if pos.RewardDebt, err = accrued(pos.Amount, pool.AccRewardPerShare); err != nil {
		return nil, err
	}

	// vault
	vault, err := f.vault.reservePayout(pending)
	if err != nil {
		return nil, err
	}

	stakeAsset, err := f.assets.Asset(pool.StakeAsset)
	if err != nil {
		return nil, farmerrors.Wrap(farmerrors.ErrCodeAssetTransferFailure, err, "resolve stake asset")
	}
	rewardAsset, err := f.rewardAsset()
	if err != nil {
		return nil, err
	}

	var batch transferBatch
	if stakeIn != nil {
		err = batch.in(stakeAsset, user, stakeIn)
	} else if stakeOut != nil {
		err = batch.out(stakeAsset, user, stakeOut)
	}
	if err == nil {
		err = batch.out(rewardAsset, user, pending)
	}
	if err != nil {
		batch.rollback()
		return nil, err
	}

	createsPosition := op == types.OpDeposit
	receipt := &types.Receipt{
		Op:           op,
		Step:         step,
		PoolID:       poolID,
		User:         user,
		Amount:       moved,
		Reward:       pending,
		TouchedPools: []uint64{poolID},
		HasPosition:  exists || createsPosition,
	}
	change := &Change{Receipt: receipt, Pools: []*types.Pool{pool}, Vault: vault}
	if exists || createsPosition {
		change.Position = pos
	}
	if err := f.commit(change); err != nil {
		batch.rollback()
		return nil, err
	}
	return receipt, nil
}

func (f *Farm) rewardAsset() (Asset, error) {
	asset, err := f.assets.Asset(f.vault.state.RewardAsset)
	if err != nil {
		return nil, farmerrors.Wrap(farmerrors.ErrCodeAssetTransferFailure, err, "resolve reward asset")
	}
	return asset, nil
}

func poolIDs(pools []*types.Pool) []uint64 {
	ids := make([]uint64, 0, len(pools))
	for _, p := range pools {
		ids = append(ids, p.ID)
	}
	return ids
}

func findPool(pools []*types.Pool, id uint64) *types.Pool {
	for _, p := range pools {
		if p.ID == id {
			return p
		}
	}
	return nil
}
