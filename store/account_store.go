package store

import (
	"fmt"
	"sync"

	jsoniter "github.com/json-iterator/go"

	"github.com/mezonai/lpfarm/db"
	"github.com/mezonai/lpfarm/logx"
	"github.com/mezonai/lpfarm/types"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type AccountStore interface {
	Store(account *types.Account) error
	StoreBatch(accounts []*types.Account) error
	GetByAddr(asset, addr string) (*types.Account, error)
	ExistsByAddr(asset, addr string) (bool, error)
	GetAllByAsset(asset string) ([]*types.Account, error)
	MustClose()
}

type GenericAccountStore struct {
	mu         sync.RWMutex
	dbProvider db.IterableProvider
}

func NewGenericAccountStore(dbProvider db.IterableProvider) (*GenericAccountStore, error) {
	if dbProvider == nil {
		return nil, fmt.Errorf("provider cannot be nil")
	}

	return &GenericAccountStore{
		dbProvider: dbProvider,
	}, nil
}

func (as *GenericAccountStore) Store(account *types.Account) error {
	as.mu.Lock()
	defer as.mu.Unlock()

	accountData, err := json.Marshal(account)
	if err != nil {
		return fmt.Errorf("failed to marshal account: %w", err)
	}

	err = as.dbProvider.Put(accountKey(account.Asset, account.Address), accountData)
	if err != nil {
		return fmt.Errorf("failed to write account to db: %w", err)
	}

	return nil
}

// StoreBatch writes all accounts in one atomic batch
func (as *GenericAccountStore) StoreBatch(accounts []*types.Account) error {
	as.mu.Lock()
	defer as.mu.Unlock()

	batch := as.dbProvider.Batch()
	defer batch.Close()
	for _, account := range accounts {
		accountData, err := json.Marshal(account)
		if err != nil {
			return fmt.Errorf("failed to marshal account: %w", err)
		}
		batch.Put(accountKey(account.Asset, account.Address), accountData)
	}

	err := batch.Write()
	if err != nil {
		return fmt.Errorf("failed to write batch of accounts to database: %w", err)
	}

	return nil
}

// GetByAddr returns account instance from db, return both nil if not exist
func (as *GenericAccountStore) GetByAddr(asset, addr string) (*types.Account, error) {
	as.mu.RLock()
	defer as.mu.RUnlock()

	data, err := as.dbProvider.Get(accountKey(asset, addr))
	if err != nil {
		return nil, fmt.Errorf("could not get account %s/%s from db: %w", asset, addr, err)
	}

	// Account doesn't exist
	if data == nil {
		return nil, nil
	}

	var acc types.Account
	if err := json.Unmarshal(data, &acc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal account %s/%s: %w", asset, addr, err)
	}
	return &acc, nil
}

func (as *GenericAccountStore) ExistsByAddr(asset, addr string) (bool, error) {
	as.mu.RLock()
	defer as.mu.RUnlock()

	return as.dbProvider.Has(accountKey(asset, addr))
}

// GetAllByAsset returns every account holding the asset, ordered by address
func (as *GenericAccountStore) GetAllByAsset(asset string) ([]*types.Account, error) {
	as.mu.RLock()
	defer as.mu.RUnlock()

	var (
		accounts  []*types.Account
		decodeErr error
	)
	err := as.dbProvider.IteratePrefix([]byte(PrefixAccount+asset+"/"), func(key, value []byte) bool {
		var acc types.Account
		if decodeErr = json.Unmarshal(value, &acc); decodeErr != nil {
			decodeErr = fmt.Errorf("failed to unmarshal account %s: %w", key, decodeErr)
			return false
		}
		accounts = append(accounts, &acc)
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("failed to iterate accounts: %w", err)
	}
	return accounts, decodeErr
}

func (as *GenericAccountStore) MustClose() {
	err := as.dbProvider.Close()
	if err != nil {
		logx.Error("ACCOUNT_STORE", "Failed to close db provider:", err.Error())
	}
}
