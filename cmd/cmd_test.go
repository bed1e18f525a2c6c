package cmd

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mezonai/lpfarm/api"
	"github.com/mezonai/lpfarm/client"
	"github.com/mezonai/lpfarm/clock"
	"github.com/mezonai/lpfarm/config"
	"github.com/mezonai/lpfarm/db"
	"github.com/mezonai/lpfarm/events"
	"github.com/mezonai/lpfarm/service"
	"github.com/mezonai/lpfarm/store"
	"github.com/mezonai/lpfarm/types"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestParsePoolFlags(t *testing.T) {
	tests := []struct {
		name    string
		in      []string
		want    []config.PoolConfig
		wantErr bool
	}{
		{"weighted", []string{"LP:3"}, []config.PoolConfig{{StakeAsset: "LP", Weight: 3}}, false},
		{"default weight", []string{"LP"}, []config.PoolConfig{{StakeAsset: "LP", Weight: 1}}, false},
		{"several", []string{"A:1", "B:0"}, []config.PoolConfig{{StakeAsset: "A", Weight: 1}, {StakeAsset: "B", Weight: 0}}, false},
		{"bad weight", []string{"LP:x"}, nil, true},
		{"empty asset", []string{":2"}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parsePoolFlags(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInitWritesLoadableConfig(t *testing.T) {
	dir := t.TempDir()
	execute(t, "init", "--config-dir", dir, "--database", "bolt", "--data-dir", filepath.Join(dir, "farm.bolt"),
		"--rate", "25", "--pool", "LP:2", "--pool", "ETHLP:1")

	farmCfg, err := config.LoadFarmConfig(filepath.Join(dir, "genesis.yml"))
	require.NoError(t, err)
	assert.Equal(t, uint64(25), farmCfg.RewardPerStep)
	assert.Equal(t, []config.PoolConfig{{StakeAsset: "LP", Weight: 2}, {StakeAsset: "ETHLP", Weight: 1}}, farmCfg.Pools)
	require.Len(t, farmCfg.GenesisBalances, 1)
	assert.Equal(t, farmCfg.Owner, farmCfg.GenesisBalances[0].Address)

	rc, err := config.LoadRuntimeConfig(filepath.Join(dir, "lpfarm.ini"))
	require.NoError(t, err)
	assert.Equal(t, store.BoltStoreType, rc.Store.Type)
	assert.Positive(t, rc.Clock.GenesisUnixMs)

	seed, err := os.ReadFile(filepath.Join(dir, "owner.key"))
	require.NoError(t, err)
	owner, err := client.AddressFromSeed(string(bytes.TrimSpace(seed)))
	require.NoError(t, err)
	assert.Equal(t, farmCfg.Owner, owner)
}

func TestInitializeClock(t *testing.T) {
	manualCfg := config.ClockConfig{Mode: config.ClockModeManual, StartStep: 7}
	slotCfg := config.ClockConfig{Mode: config.ClockModeSlot, StepDurationMs: 1000}
	genesis := time.Now().Add(-5 * time.Second).UnixMilli()

	tests := []struct {
		name       string
		cfg        config.ClockConfig
		lastStep   uint64
		hasState   bool
		wantManual bool
		wantStep   uint64
		wantErr    bool
	}{
		{name: "manual on a fresh store", cfg: manualCfg, wantManual: true, wantStep: 7},
		{name: "manual resumes from the persisted step", cfg: manualCfg, lastStep: 42, hasState: true, wantManual: true, wantStep: 42},
		{name: "manual never starts below its start step", cfg: manualCfg, lastStep: 3, hasState: true, wantManual: true, wantStep: 7},
		{name: "slot without genesis on a fresh store", cfg: slotCfg, wantStep: 0},
		{name: "slot without genesis on a persisted farm", cfg: slotCfg, lastStep: 42, hasState: true, wantErr: true},
		{
			name:     "slot with genesis on a persisted farm",
			cfg:      config.ClockConfig{Mode: config.ClockModeSlot, StepDurationMs: 1000, GenesisUnixMs: genesis},
			lastStep: 2,
			hasState: true,
			wantStep: 5,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			counter, manual, err := initializeClock(tt.cfg, tt.lastStep, tt.hasState)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantManual, manual != nil)
			assert.GreaterOrEqual(t, counter.CurrentStep(), tt.wantStep)
			assert.LessOrEqual(t, counter.CurrentStep(), tt.wantStep+1)
		})
	}
}

func TestFarmCommands(t *testing.T) {
	owner, err := types.AddressFromBytes(bytes.Repeat([]byte{1}, types.AddressLength))
	require.NoError(t, err)
	custody, err := types.AddressFromBytes(bytes.Repeat([]byte{2}, types.AddressLength))
	require.NoError(t, err)
	alice, err := types.AddressFromBytes(bytes.Repeat([]byte{3}, types.AddressLength))
	require.NoError(t, err)

	clk := clock.NewManualCounter(10)
	stores, err := store.NewStores(db.NewMemoryProvider())
	require.NoError(t, err)
	svc, err := service.Open(&config.FarmConfig{
		Owner:         owner,
		Custody:       custody,
		RewardAsset:   "SHFT",
		RewardPerStep: 10,
		StartStep:     10,
		Pools:         []config.PoolConfig{{StakeAsset: "LP", Weight: 1}},
		GenesisBalances: []config.GenesisBalance{
			{Asset: "SHFT", Address: owner, Amount: 1000},
			{Asset: "LP", Address: alice, Amount: 100},
		},
	}, stores, clk, events.NewEventRouter(events.NewEventBus()))
	require.NoError(t, err)
	require.NoError(t, svc.Start(context.Background()))
	t.Cleanup(svc.Stop)
	farmAPI := api.NewFarmAPI(svc, config.APIConfig{})
	farmAPI.EnableClockControl(clk)
	server := httptest.NewServer(farmAPI.GetRouter())
	t.Cleanup(server.Close)

	execute(t, "fund", "500", "--api", server.URL, "--caller", owner)
	out := execute(t, "deposit", "0", "100", "--api", server.URL, "--caller", alice)
	var receipt types.Receipt
	require.NoError(t, json.Unmarshal([]byte(out), &receipt))
	assert.Equal(t, types.OpDeposit, receipt.Op)
	assert.Equal(t, uint256.NewInt(100), receipt.Amount)

	execute(t, "clock", "advance", "3", "--api", server.URL, "--caller", owner)

	out = execute(t, "pending", "0", "--api", server.URL, "--caller", alice)
	var pending client.Pending
	require.NoError(t, json.Unmarshal([]byte(out), &pending))
	assert.Equal(t, uint64(13), pending.Step)
	assert.Equal(t, uint256.NewInt(30), pending.Pending)

	out = execute(t, "harvest", "0", "--api", server.URL, "--caller", alice)
	require.NoError(t, json.Unmarshal([]byte(out), &receipt))
	assert.Equal(t, uint256.NewInt(30), receipt.Reward)

	out = execute(t, "balance", "SHFT", alice, "--api", server.URL, "--caller", "")
	var bal client.Balance
	require.NoError(t, json.Unmarshal([]byte(out), &bal))
	assert.Equal(t, uint256.NewInt(30), bal.Balance)

	out = execute(t, "pool", "list", "--api", server.URL)
	var pools []*types.Pool
	require.NoError(t, json.Unmarshal([]byte(out), &pools))
	require.Len(t, pools, 1)
	assert.Equal(t, uint256.NewInt(100), pools[0].TotalStaked)
}
