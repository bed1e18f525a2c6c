package db

import (
	"fmt"

	"github.com/mezonai/lpfarm/logx"
)

// DBTxManager runs a group of writes from several stores as one batch on the
// shared DatabaseProvider.
type DBTxManager struct {
	provider DatabaseProvider
}

// NewDBTxManager creates a new transaction manager with the given provider
func NewDBTxManager(provider DatabaseProvider) *DBTxManager {
	return &DBTxManager{provider: provider}
}

// WithBatch executes the given function within a batch context.
// If the function returns nil, the batch is committed; otherwise, it's discarded.
func (tm *DBTxManager) WithBatch(fn func(batch DatabaseBatch) error) error {
	batch := tm.provider.Batch()
	defer batch.Close()

	if err := fn(batch); err != nil {
		batch.Reset()
		return fmt.Errorf("transaction failed: %w", err)
	}

	if err := batch.Write(); err != nil {
		logx.Error("TX_MANAGER", "Failed to commit batch:", err)
		return fmt.Errorf("commit failed: %w", err)
	}

	return nil
}
