package client

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mezonai/lpfarm/api"
	"github.com/mezonai/lpfarm/clock"
	"github.com/mezonai/lpfarm/config"
	"github.com/mezonai/lpfarm/db"
	"github.com/mezonai/lpfarm/events"
	"github.com/mezonai/lpfarm/service"
	"github.com/mezonai/lpfarm/store"
	"github.com/mezonai/lpfarm/types"
)

func address(t *testing.T, b byte) string {
	t.Helper()
	addr, err := types.AddressFromBytes(bytes.Repeat([]byte{b}, types.AddressLength))
	require.NoError(t, err)
	return addr
}

type fixture struct {
	clock *clock.ManualCounter
	owner *FarmClient
	alice *FarmClient
	bob   *FarmClient
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	owner, alice, bob := address(t, 1), address(t, 3), address(t, 4)
	cfg := &config.FarmConfig{
		Owner:         owner,
		Custody:       address(t, 2),
		RewardAsset:   "SHFT",
		RewardPerStep: 10,
		StartStep:     10,
		Pools:         []config.PoolConfig{{StakeAsset: "LP", Weight: 1}},
		GenesisBalances: []config.GenesisBalance{
			{Asset: "SHFT", Address: owner, Amount: 1000},
			{Asset: "LP", Address: alice, Amount: 100},
			{Asset: "LP", Address: bob, Amount: 200},
		},
	}
	clk := clock.NewManualCounter(10)
	stores, err := store.NewStores(db.NewMemoryProvider())
	require.NoError(t, err)
	svc, err := service.Open(cfg, stores, clk, events.NewEventRouter(events.NewEventBus()))
	require.NoError(t, err)
	require.NoError(t, svc.Start(context.Background()))
	t.Cleanup(svc.Stop)

	farmAPI := api.NewFarmAPI(svc, config.APIConfig{})
	farmAPI.EnableClockControl(clk)
	server := httptest.NewServer(farmAPI.GetRouter())
	t.Cleanup(server.Close)

	base, err := NewClient(Config{Endpoint: server.URL})
	require.NoError(t, err)
	return &fixture{
		clock: clk,
		owner: base.WithCaller(owner),
		alice: base.WithCaller(alice),
		bob:   base.WithCaller(bob),
	}
}

func TestNewClient_RequiresEndpoint(t *testing.T) {
	_, err := NewClient(Config{})
	assert.Error(t, err)

	c, err := NewClient(Config{Endpoint: "http://localhost:8080", Caller: "x"})
	require.NoError(t, err)
	assert.Equal(t, "x", c.Caller())
	assert.Equal(t, "y", c.WithCaller("y").Caller())
	assert.Equal(t, "x", c.Caller())
}

func TestFarmClient_StakingFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.owner.Fund(ctx, uint256.NewInt(1000))
	require.NoError(t, err)

	f.clock.Set(13)
	_, err = f.alice.Deposit(ctx, 0, uint256.NewInt(100))
	require.NoError(t, err)
	f.clock.Set(14)
	_, err = f.bob.Deposit(ctx, 0, uint256.NewInt(200))
	require.NoError(t, err)

	f.clock.Set(15)
	pending, err := f.alice.PendingReward(ctx, 0, f.alice.Caller())
	require.NoError(t, err)
	assert.Equal(t, uint256.NewInt(13), pending.Pending)

	f.clock.Set(16)
	receipt, err := f.alice.Harvest(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, uint256.NewInt(16), receipt.Reward)

	f.clock.Set(17)
	receipt, err = f.bob.Harvest(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, uint256.NewInt(19), receipt.Reward)

	f.clock.Set(18)
	receipt, err = f.alice.Withdraw(ctx, 0, uint256.NewInt(100))
	require.NoError(t, err)
	assert.Equal(t, uint256.NewInt(7), receipt.Reward)

	f.clock.Set(19)
	receipt, err = f.bob.Withdraw(ctx, 0, uint256.NewInt(200))
	require.NoError(t, err)
	assert.Equal(t, uint256.NewInt(17), receipt.Reward)

	vault, err := f.alice.GetVault(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint256.NewInt(59), vault.TotalPaidOut)
	assert.Equal(t, uint256.NewInt(941), vault.Available)

	bal, err := f.bob.GetBalance(ctx, "SHFT", f.bob.Caller())
	require.NoError(t, err)
	assert.Equal(t, uint256.NewInt(36), bal.Balance)

	pos, err := f.bob.GetPosition(ctx, 0, f.bob.Caller())
	require.NoError(t, err)
	assert.True(t, pos.Amount.IsZero())

	status, err := f.bob.GetStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(19), status.Step)
	assert.Equal(t, 1, status.Pools)
}

func TestFarmClient_Administration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	receipt, err := f.owner.AddPool(ctx, 3, "SHFT", true)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), receipt.PoolID)

	_, err = f.owner.SetPool(ctx, 1, 5, false)
	require.NoError(t, err)
	_, err = f.owner.SetRewardRate(ctx, uint256.NewInt(20), true)
	require.NoError(t, err)

	pools, err := f.alice.GetPools(ctx)
	require.NoError(t, err)
	require.Len(t, pools, 2)
	assert.Equal(t, uint64(5), pools[1].Weight)

	pool, err := f.alice.GetPool(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "SHFT", pool.StakeAsset)

	vault, err := f.alice.GetVault(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint256.NewInt(20), vault.RewardPerStep)
	assert.Equal(t, uint64(6), vault.TotalWeight)

	status, err := f.owner.AdvanceClock(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, uint64(14), status.Step)
	assert.Equal(t, uint64(14), f.clock.CurrentStep())
}

func TestFarmClient_ReturnsAPIError(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		call   func() error
		status int
		code   string
	}{
		{"not owner", func() error {
			_, err := f.alice.AddPool(ctx, 1, "SHFT", false)
			return err
		}, http.StatusForbidden, "unauthorized"},
		{"unknown pool", func() error {
			_, err := f.alice.GetPool(ctx, 9)
			return err
		}, http.StatusNotFound, "invalid_pool"},
		{"over withdraw", func() error {
			_, err := f.alice.Withdraw(ctx, 0, uint256.NewInt(1))
			return err
		}, http.StatusUnprocessableEntity, "insufficient_stake"},
		{"emergency without position", func() error {
			_, err := f.bob.EmergencyWithdraw(ctx, 3)
			return err
		}, http.StatusNotFound, "invalid_pool"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr), "got %v", err)
			assert.Equal(t, tt.status, apiErr.Status)
			assert.Equal(t, tt.code, apiErr.Code)
		})
	}
}

func TestAddresses(t *testing.T) {
	addr, seed, err := GenerateAddress()
	require.NoError(t, err)
	require.NoError(t, types.ValidateAddress(addr))

	derived, err := AddressFromSeed(seed)
	require.NoError(t, err)
	assert.Equal(t, addr, derived)

	_, err = AddressFromSeed("abc")
	assert.ErrorIs(t, err, ErrUnsupportedKey)
}

func TestParseAmount(t *testing.T) {
	v, err := ParseAmount("1000000000000000000000")
	require.NoError(t, err)
	assert.Equal(t, "1000000000000000000000", FormatAmount(v))
	assert.Equal(t, "0", FormatAmount(nil))

	_, err = ParseAmount("1.5")
	assert.Error(t, err)
	_, err = ParsePoolID("x")
	assert.Error(t, err)
}
