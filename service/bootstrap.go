package service

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/mezonai/lpfarm/clock"
	"github.com/mezonai/lpfarm/config"
	"github.com/mezonai/lpfarm/events"
	"github.com/mezonai/lpfarm/ledger"
	"github.com/mezonai/lpfarm/logx"
	"github.com/mezonai/lpfarm/staking"
	"github.com/mezonai/lpfarm/store"
)

// Open builds a FarmService from the genesis config and the stores. A store
// that already holds farm state is restored; an empty one is initialised
// with the genesis balances and pools.
func Open(cfg *config.FarmConfig, stores *store.Stores, clk clock.StepCounter, router *events.EventRouter) (*FarmService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid farm config: %w", err)
	}

	ld := ledger.NewLedger(stores.Accounts, cfg.Custody, cfg.Assets())
	if err := ld.CreateAccountsFromGenesis(cfg.GenesisBalances); err != nil {
		return nil, err
	}

	farm, err := staking.NewFarm(staking.FarmConfig{
		RewardAsset:   cfg.RewardAsset,
		RewardPerStep: uint256.NewInt(cfg.RewardPerStep),
		StartStep:     cfg.StartStep,
	}, ld)
	if err != nil {
		return nil, err
	}

	lastStep, found, err := stores.Farm.LastStep()
	if err != nil {
		return nil, err
	}
	if found {
		if err := restoreFarm(farm, stores.Farm); err != nil {
			return nil, err
		}
		logx.Info("FARM_SERVICE", fmt.Sprintf("Restored farm state at step %d with %d pools", lastStep, len(farm.GetPools())))
	} else {
		if lastStep, err = initGenesisPools(farm, cfg, stores.Farm); err != nil {
			return nil, err
		}
		logx.Info("FARM_SERVICE", fmt.Sprintf("Initialised farm from genesis with %d pools", len(cfg.Pools)))
	}

	return NewFarmService(FarmServiceConfig{
		Farm:      farm,
		Ledger:    ld,
		FarmStore: stores.Farm,
		Router:    router,
		Clock:     clk,
		Owner:     cfg.Owner,
		LastStep:  lastStep,
	})
}

func restoreFarm(farm *staking.Farm, fs store.FarmStore) error {
	pools, err := fs.LoadPools()
	if err != nil {
		return err
	}
	positions, err := fs.LoadPositions()
	if err != nil {
		return err
	}
	vault, err := fs.LoadVault()
	if err != nil {
		return err
	}
	if err := farm.Restore(&staking.Snapshot{Pools: pools, Positions: positions, Vault: vault}); err != nil {
		return fmt.Errorf("failed to restore farm: %w", err)
	}
	return nil
}

func initGenesisPools(farm *staking.Farm, cfg *config.FarmConfig, fs store.FarmStore) (uint64, error) {
	step := cfg.StartStep
	for _, p := range cfg.Pools {
		if _, err := farm.AddPool(step, p.Weight, p.StakeAsset, false); err != nil {
			return 0, fmt.Errorf("failed to add genesis pool %s: %w", p.StakeAsset, err)
		}
	}
	update := &store.StateUpdate{Step: step, Pools: farm.GetPools(), Vault: farm.GetVault()}
	if err := fs.SaveState(update); err != nil {
		return 0, fmt.Errorf("failed to persist genesis state: %w", err)
	}
	return step, nil
}
