package ledger

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/holiman/uint256"

	"github.com/mezonai/lpfarm/config"
	"github.com/mezonai/lpfarm/logx"
	"github.com/mezonai/lpfarm/staking"
	"github.com/mezonai/lpfarm/store"
	"github.com/mezonai/lpfarm/types"
)

var (
	ErrAccountExisted      = errors.New("account existed")
	ErrUnknownAsset        = errors.New("unknown asset")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrSelfTransfer        = errors.New("sender and recipient are the same")
)

// Ledger keeps per-asset balances in the account store. Stake escrow and the
// reward reserve both live on the custody address.
type Ledger struct {
	mu           sync.RWMutex
	accountStore store.AccountStore
	custody      string
	assets       map[string]bool

	// staged holds balances moved by transfers while staging is on, keyed by
	// types.Account.Key. Nil when staging is off.
	staged map[string]*types.Account
}

func NewLedger(accountStore store.AccountStore, custody string, assets []string) *Ledger {
	l := &Ledger{
		accountStore: accountStore,
		custody:      custody,
		assets:       make(map[string]bool, len(assets)),
	}
	for _, a := range assets {
		l.assets[a] = true
	}
	return l
}

// Custody returns the address holding staked and reserved assets
func (l *Ledger) Custody() string {
	return l.custody
}

// Assets returns the registered assets in name order
func (l *Ledger) Assets() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, 0, len(l.assets))
	for a := range l.assets {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// Asset resolves a registered asset to a transferable token
func (l *Ledger) Asset(ref string) (staking.Asset, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if !l.assets[ref] {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAsset, ref)
	}
	return &Token{ledger: l, asset: ref}, nil
}

// CreateAccount creates and stores a new account into db, return error if an account with the same addr existed
func (l *Ledger) CreateAccount(asset, addr string, balance *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, err := l.createAccountWithoutLocking(asset, addr, balance)
	return err
}

// createAccountWithoutLocking creates account and store in db without locking ledger. This is useful
// when calling method has already acquired lock for ledger to avoid recursive locking and deadlock
func (l *Ledger) createAccountWithoutLocking(asset, addr string, balance *uint256.Int) (*types.Account, error) {
	if !l.assets[asset] {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAsset, asset)
	}
	existed, err := l.accountStore.ExistsByAddr(asset, addr)
	if err != nil {
		return nil, fmt.Errorf("could not check existence of account: %w", err)
	}
	if existed {
		return nil, ErrAccountExisted
	}

	account := &types.Account{
		Asset:   asset,
		Address: addr,
		Balance: new(uint256.Int).Set(balance),
	}
	err = l.accountStore.Store(account)
	if err != nil {
		return nil, fmt.Errorf("failed to store account: %w", err)
	}

	return account, nil
}

// CreateAccountsFromGenesis credits the genesis balances. Accounts that
// already exist are left untouched so a restart does not mint twice.
func (l *Ledger) CreateAccountsFromGenesis(balances []config.GenesisBalance) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, b := range balances {
		_, err := l.createAccountWithoutLocking(b.Asset, b.Address, uint256.NewInt(b.Amount))
		if errors.Is(err, ErrAccountExisted) {
			logx.Warn("LEDGER", fmt.Sprintf("Genesis account %s/%s already exists, skipping", b.Asset, b.Address))
			continue
		}
		if err != nil {
			return fmt.Errorf("could not create genesis account %s/%s: %w", b.Asset, b.Address, err)
		}
	}
	return nil
}

// Balance returns current balance of addr for asset, zero if the account does not exist
func (l *Ledger) Balance(asset, addr string) (*uint256.Int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if !l.assets[asset] {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAsset, asset)
	}
	acc, err := l.accountStore.GetByAddr(asset, addr)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return uint256.NewInt(0), nil
	}
	return acc.Balance, nil
}

// GetAccount returns account of addr for asset (nil if not exist)
func (l *Ledger) GetAccount(asset, addr string) (*types.Account, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.accountStore.GetByAddr(asset, addr)
}

// GetAllAccounts returns every account holding asset
func (l *Ledger) GetAllAccounts(asset string) ([]*types.Account, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	accounts, err := l.accountStore.GetAllByAsset(asset)
	if err != nil {
		return nil, fmt.Errorf("failed to get all accounts: %w", err)
	}
	return accounts, nil
}

// Transfer moves amount of asset from one address to another. Both balances
// are written in one batch, so the transfer either fully applies or not at all.
// While staging is on the balances are kept in memory instead.
func (l *Ledger) Transfer(asset, from, to string, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.assets[asset] {
		return fmt.Errorf("%w: %s", ErrUnknownAsset, asset)
	}
	if amount.IsZero() {
		return nil
	}
	if from == to {
		return ErrSelfTransfer
	}

	sender, err := l.loadOrEmpty(asset, from)
	if err != nil {
		return err
	}
	if sender.Balance.Lt(amount) {
		return fmt.Errorf("%w: %s has %s %s, needs %s", ErrInsufficientBalance, from, sender.Balance.Dec(), asset, amount.Dec())
	}
	recipient, err := l.loadOrEmpty(asset, to)
	if err != nil {
		return err
	}
	credited, overflow := new(uint256.Int).AddOverflow(recipient.Balance, amount)
	if overflow {
		return fmt.Errorf("balance overflow crediting %s", to)
	}

	sender.Balance = new(uint256.Int).Sub(sender.Balance, amount)
	recipient.Balance = credited
	if l.staged != nil {
		l.staged[sender.Key()] = sender
		l.staged[recipient.Key()] = recipient
		logx.Debug("LEDGER", fmt.Sprintf("Staged transfer %s %s from %s to %s", amount.Dec(), asset, from, to))
		return nil
	}
	if err := l.accountStore.StoreBatch([]*types.Account{sender, recipient}); err != nil {
		return fmt.Errorf("failed to store transfer: %w", err)
	}
	logx.Debug("LEDGER", fmt.Sprintf("Transfer %s %s from %s to %s", amount.Dec(), asset, from, to))
	return nil
}

// loadOrEmpty returns a copy of the account, preferring a staged balance
func (l *Ledger) loadOrEmpty(asset, addr string) (*types.Account, error) {
	if l.staged != nil {
		if acc, ok := l.staged[types.AccountKey(asset, addr)]; ok {
			return acc.Clone(), nil
		}
	}
	acc, err := l.accountStore.GetByAddr(asset, addr)
	if err != nil {
		return nil, fmt.Errorf("could not load account %s/%s: %w", asset, addr, err)
	}
	if acc == nil {
		return &types.Account{Asset: asset, Address: addr, Balance: uint256.NewInt(0)}, nil
	}
	return acc, nil
}

// BeginStaging makes transfers keep the balances they move in memory instead
// of writing them. Reads through Balance and GetAccount still see only
// written balances. The caller writes StagedAccounts and then calls
// EndStaging, or calls EndStaging alone to discard.
func (l *Ledger) BeginStaging() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.staged = make(map[string]*types.Account)
}

// StagedAccounts returns copies of the staged balances ordered by key
func (l *Ledger) StagedAccounts() []*types.Account {
	l.mu.RLock()
	defer l.mu.RUnlock()

	keys := make([]string, 0, len(l.staged))
	for k := range l.staged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]*types.Account, 0, len(keys))
	for _, k := range keys {
		out = append(out, l.staged[k].Clone())
	}
	return out
}

// EndStaging drops staged balances and turns staging off
func (l *Ledger) EndStaging() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.staged = nil
}
