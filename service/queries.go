package service

import (
	"github.com/holiman/uint256"

	farmerrors "github.com/mezonai/lpfarm/errors"
	"github.com/mezonai/lpfarm/events"
	"github.com/mezonai/lpfarm/ledger"
	"github.com/mezonai/lpfarm/types"
)

// CurrentStep is the step a command submitted now would run at, at the earliest
func (s *FarmService) CurrentStep() uint64 {
	step := s.clock.CurrentStep()
	if last := s.lastStep.Load(); step < last {
		return last
	}
	return step
}

// PendingReward projects the user's reward to the current step
func (s *FarmService) PendingReward(poolID uint64, user string) (*uint256.Int, error) {
	return s.PendingRewardAt(s.CurrentStep(), poolID, user)
}

// PendingRewardAt projects the user's reward to step. Callers that report the
// step next to the reward read CurrentStep once and pass it here.
func (s *FarmService) PendingRewardAt(step uint64, poolID uint64, user string) (*uint256.Int, error) {
	return s.farm.PendingReward(step, poolID, user)
}

func (s *FarmService) GetPool(poolID uint64) (*types.Pool, error) {
	return s.farm.GetPool(poolID)
}

func (s *FarmService) GetPools() []*types.Pool {
	return s.farm.GetPools()
}

func (s *FarmService) GetPosition(poolID uint64, user string) (*types.Position, error) {
	pos, _, err := s.farm.GetPosition(poolID, user)
	return pos, err
}

func (s *FarmService) GetVault() *types.VaultState {
	return s.farm.GetVault()
}

func (s *FarmService) VaultAvailable() *uint256.Int {
	return s.farm.VaultAvailable()
}

func (s *FarmService) TotalWeight() uint64 {
	return s.farm.TotalWeight()
}

func (s *FarmService) StakerCount(poolID uint64) int {
	return s.farm.StakerCount(poolID)
}

// Balance returns the ledger balance of addr for asset
func (s *FarmService) Balance(asset, addr string) (*uint256.Int, error) {
	bal, err := s.ledger.Balance(asset, addr)
	if err != nil {
		return nil, farmerrors.Wrap(farmerrors.ErrCodeInvalidRequest, err, "balance")
	}
	return bal, nil
}

// Owner returns the address allowed to administer pools
func (s *FarmService) Owner() string {
	return s.owner
}

// Events returns the bus operations are published on, or nil
func (s *FarmService) Events() *events.EventBus {
	if s.router == nil {
		return nil
	}
	return s.router.EventBus()
}

// Ledger exposes the asset ledger backing the farm
func (s *FarmService) Ledger() *ledger.Ledger {
	return s.ledger
}
