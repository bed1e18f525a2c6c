package staking

import (
	"fmt"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

// memAsset is an in-memory fungible asset with a single custody balance.
type memAsset struct {
	balances map[string]*uint256.Int
	custody  *uint256.Int
	failIn   bool
	failOut  bool
}

func newMemAsset() *memAsset {
	return &memAsset{balances: make(map[string]*uint256.Int), custody: uint256.NewInt(0)}
}

func (a *memAsset) mint(addr string, amount uint64) {
	a.balanceOf(addr).AddUint64(a.balanceOf(addr), amount)
}

func (a *memAsset) balanceOf(addr string) *uint256.Int {
	bal, ok := a.balances[addr]
	if !ok {
		bal = uint256.NewInt(0)
		a.balances[addr] = bal
	}
	return bal
}

func (a *memAsset) TransferIn(from string, amount *uint256.Int) error {
	if a.failIn {
		return fmt.Errorf("transfer in disabled")
	}
	bal := a.balanceOf(from)
	if bal.Lt(amount) {
		return fmt.Errorf("insufficient balance: have %s, need %s", bal.Dec(), amount.Dec())
	}
	bal.Sub(bal, amount)
	a.custody.Add(a.custody, amount)
	return nil
}

func (a *memAsset) TransferOut(to string, amount *uint256.Int) error {
	if a.failOut {
		return fmt.Errorf("transfer out disabled")
	}
	if a.custody.Lt(amount) {
		return fmt.Errorf("custody short: have %s, need %s", a.custody.Dec(), amount.Dec())
	}
	a.custody.Sub(a.custody, amount)
	bal := a.balanceOf(to)
	bal.Add(bal, amount)
	return nil
}

type memAssets map[string]*memAsset

func (m memAssets) Asset(ref string) (Asset, error) {
	a, ok := m[ref]
	if !ok {
		return nil, fmt.Errorf("unknown asset %s", ref)
	}
	return a, nil
}

const (
	rewardRef = "SHFT"
	lpRef     = "LP"
	lp2Ref    = "LP2"
	owner     = "owner"
	alice     = "alice"
	bob       = "bob"
)

type fixture struct {
	farm   *Farm
	assets memAssets
}

func (fx *fixture) reward() *memAsset { return fx.assets[rewardRef] }
func (fx *fixture) lp() *memAsset     { return fx.assets[lpRef] }

func newFixture(t *testing.T, rate uint64, startStep uint64) *fixture {
	t.Helper()
	assets := memAssets{
		rewardRef: newMemAsset(),
		lpRef:     newMemAsset(),
		lp2Ref:    newMemAsset(),
	}
	farm, err := NewFarm(FarmConfig{
		RewardAsset:   rewardRef,
		RewardPerStep: uint256.NewInt(rate),
		StartStep:     startStep,
	}, assets)
	require.NoError(t, err)
	return &fixture{farm: farm, assets: assets}
}

func u(v uint64) *uint256.Int {
	return uint256.NewInt(v)
}

func requirePending(t *testing.T, f *Farm, step, pool uint64, user string, want uint64) {
	t.Helper()
	got, err := f.PendingReward(step, pool, user)
	require.NoError(t, err)
	require.Equal(t, want, got.Uint64(), "pending reward of %s at step %d", user, step)
}
