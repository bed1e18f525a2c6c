package store

import (
	"fmt"

	"github.com/mezonai/lpfarm/db"
	"github.com/mezonai/lpfarm/logx"
)

// StoreType represents the type of store implementation
type StoreType string

const (
	// LevelDBStoreType uses the LevelDB implementation
	LevelDBStoreType StoreType = "leveldb"

	// BoltStoreType uses a single bbolt file
	BoltStoreType StoreType = "bolt"

	// RedisStoreType uses the Redis implementation
	RedisStoreType StoreType = "redis"

	// MemoryStoreType keeps everything in process memory
	MemoryStoreType StoreType = "memory"
)

// StoreConfig holds configuration for creating store instances
type StoreConfig struct {
	// Type specifies which store implementation to use
	Type StoreType `json:"type" yaml:"type" ini:"type"`

	// Directory is the database directory path (leveldb) or file path (bolt)
	Directory string `json:"directory" yaml:"directory" ini:"directory"`

	// SyncWrites forces an fsync per LevelDB batch
	SyncWrites bool `json:"sync_writes" yaml:"sync_writes" ini:"sync_writes"`

	RedisAddress   string `json:"redis_address" yaml:"redis_address" ini:"redis_address"`
	RedisDB        int    `json:"redis_db" yaml:"redis_db" ini:"redis_db"`
	RedisNamespace string `json:"redis_namespace" yaml:"redis_namespace" ini:"redis_namespace"`
}

// Validate validates the store configuration
func (sc *StoreConfig) Validate() error {
	if sc.Type == "" {
		return fmt.Errorf("store type cannot be empty")
	}

	switch sc.Type {
	case LevelDBStoreType, BoltStoreType:
		if sc.Directory == "" {
			return fmt.Errorf("directory cannot be empty")
		}
		return nil
	case RedisStoreType:
		if sc.RedisAddress == "" {
			return fmt.Errorf("redis address cannot be empty")
		}
		return nil
	case MemoryStoreType:
		return nil
	default:
		return fmt.Errorf("unsupported store type: %s", sc.Type)
	}
}

// Stores groups the stores sharing one provider
type Stores struct {
	Accounts AccountStore
	Farm     FarmStore
	provider db.IterableProvider
}

// Close closes the shared provider once
func (s *Stores) Close() {
	if err := s.provider.Close(); err != nil {
		logx.Error("STORE", "Failed to close db provider:", err.Error())
	}
}

// StoreFactory take responsibility to create store instances
type StoreFactory struct{}

// NewStoreFactory creates a new store factory
func NewStoreFactory() *StoreFactory {
	return &StoreFactory{}
}

// CreateStoreWithProvider creates store instances using the provider pattern
func (sf *StoreFactory) CreateStoreWithProvider(config *StoreConfig) (*Stores, error) {
	provider, err := sf.CreateProvider(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider: %w", err)
	}
	return NewStores(provider)
}

// NewStores builds the account and farm stores on an existing provider
func NewStores(provider db.IterableProvider) (*Stores, error) {
	accStore, err := NewGenericAccountStore(provider)
	if err != nil {
		return nil, fmt.Errorf("failed to create account store: %w", err)
	}

	farmStore, err := NewGenericFarmStore(provider)
	if err != nil {
		return nil, fmt.Errorf("failed to create farm store: %w", err)
	}

	return &Stores{Accounts: accStore, Farm: farmStore, provider: provider}, nil
}

// CreateProvider creates a database provider based on the configuration
func (sf *StoreFactory) CreateProvider(config *StoreConfig) (db.IterableProvider, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logx.Info("STORE", fmt.Sprintf("Opening %s store", config.Type))
	switch config.Type {
	case LevelDBStoreType:
		return db.NewLevelDBProvider(config.Directory, config.SyncWrites)

	case BoltStoreType:
		return db.NewBoltProvider(config.Directory)

	case RedisStoreType:
		return db.NewRedisProvider(config.RedisAddress, config.RedisDB, config.RedisNamespace)

	case MemoryStoreType:
		return db.NewMemoryProvider(), nil

	default:
		return nil, fmt.Errorf("unsupported store type: %s", config.Type)
	}
}

// Global factory instance
var globalFactory = NewStoreFactory()

// CreateStore creates new store instances using the global factory
func CreateStore(config *StoreConfig) (*Stores, error) {
	return globalFactory.CreateStoreWithProvider(config)
}
