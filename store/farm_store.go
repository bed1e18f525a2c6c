package store

import (
	"encoding/binary"
	"fmt"

	"github.com/mezonai/lpfarm/db"
	"github.com/mezonai/lpfarm/logx"
	"github.com/mezonai/lpfarm/types"
)

// StateUpdate is the state touched by one farm operation, including the
// account balances its asset transfers moved.
type StateUpdate struct {
	Step      uint64
	Pools     []*types.Pool
	Positions []*types.Position
	Vault     *types.VaultState
	Accounts  []*types.Account
}

// FarmStore persists pools, positions and the vault. Everything in one
// StateUpdate is written in a single batch.
type FarmStore interface {
	SaveState(update *StateUpdate) error
	LoadPools() ([]*types.Pool, error)
	LoadPositions() ([]*types.Position, error)
	LoadVault() (*types.VaultState, error)
	LastStep() (uint64, bool, error)
	MustClose()
}

type GenericFarmStore struct {
	provider  db.IterableProvider
	txManager *db.DBTxManager
}

func NewGenericFarmStore(provider db.IterableProvider) (*GenericFarmStore, error) {
	if provider == nil {
		return nil, fmt.Errorf("provider cannot be nil")
	}
	return &GenericFarmStore{
		provider:  provider,
		txManager: db.NewDBTxManager(provider),
	}, nil
}

func (fs *GenericFarmStore) SaveState(update *StateUpdate) error {
	if update == nil {
		return fmt.Errorf("state update cannot be nil")
	}
	return fs.txManager.WithBatch(func(batch db.DatabaseBatch) error {
		for _, pool := range update.Pools {
			data, err := json.Marshal(pool)
			if err != nil {
				return fmt.Errorf("failed to marshal pool %d: %w", pool.ID, err)
			}
			batch.Put(poolKey(pool.ID), data)
		}
		for _, pos := range update.Positions {
			data, err := json.Marshal(pos)
			if err != nil {
				return fmt.Errorf("failed to marshal position %d/%s: %w", pos.PoolID, pos.User, err)
			}
			batch.Put(positionKey(pos.PoolID, pos.User), data)
		}
		for _, acc := range update.Accounts {
			data, err := json.Marshal(acc)
			if err != nil {
				return fmt.Errorf("failed to marshal account %s: %w", acc.Key(), err)
			}
			batch.Put(accountKey(acc.Asset, acc.Address), data)
		}
		if update.Vault != nil {
			data, err := json.Marshal(update.Vault)
			if err != nil {
				return fmt.Errorf("failed to marshal vault: %w", err)
			}
			batch.Put([]byte(KeyVaultState), data)
		}
		step := make([]byte, 8)
		binary.BigEndian.PutUint64(step, update.Step)
		batch.Put([]byte(KeyLastStep), step)
		return nil
	})
}

// LoadPools returns all pools in id order
func (fs *GenericFarmStore) LoadPools() ([]*types.Pool, error) {
	var pools []*types.Pool
	err := loadPrefix(fs.provider, PrefixPool, func(value []byte) error {
		var pool types.Pool
		if err := json.Unmarshal(value, &pool); err != nil {
			return err
		}
		pools = append(pools, &pool)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load pools: %w", err)
	}
	return pools, nil
}

// LoadPositions returns all positions ordered by pool id then user
func (fs *GenericFarmStore) LoadPositions() ([]*types.Position, error) {
	var positions []*types.Position
	err := loadPrefix(fs.provider, PrefixPosition, func(value []byte) error {
		var pos types.Position
		if err := json.Unmarshal(value, &pos); err != nil {
			return err
		}
		positions = append(positions, &pos)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load positions: %w", err)
	}
	return positions, nil
}

// LoadVault returns the stored vault state, or nil if none was saved
func (fs *GenericFarmStore) LoadVault() (*types.VaultState, error) {
	data, err := fs.provider.Get([]byte(KeyVaultState))
	if err != nil {
		return nil, fmt.Errorf("failed to get vault state: %w", err)
	}
	if data == nil {
		return nil, nil
	}
	var vault types.VaultState
	if err := json.Unmarshal(data, &vault); err != nil {
		return nil, fmt.Errorf("failed to unmarshal vault state: %w", err)
	}
	return &vault, nil
}

// LastStep returns the step of the last saved update
func (fs *GenericFarmStore) LastStep() (uint64, bool, error) {
	value, err := fs.provider.Get([]byte(KeyLastStep))
	if err != nil {
		return 0, false, fmt.Errorf("failed to get last step: %w", err)
	}
	if len(value) == 0 {
		return 0, false, nil
	}
	if len(value) != 8 {
		return 0, false, fmt.Errorf("invalid last step length: %d", len(value))
	}
	return binary.BigEndian.Uint64(value), true, nil
}

func (fs *GenericFarmStore) MustClose() {
	if err := fs.provider.Close(); err != nil {
		logx.Error("FARM_STORE", "Failed to close db provider:", err.Error())
	}
}

func loadPrefix(provider db.IterableProvider, prefix string, decode func(value []byte) error) error {
	var decodeErr error
	err := provider.IteratePrefix([]byte(prefix), func(key, value []byte) bool {
		if decodeErr = decode(value); decodeErr != nil {
			decodeErr = fmt.Errorf("decode %q: %w", key, decodeErr)
			return false
		}
		return true
	})
	if err != nil {
		return err
	}
	return decodeErr
}
