package service

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mezonai/lpfarm/clock"
	"github.com/mezonai/lpfarm/config"
	"github.com/mezonai/lpfarm/db"
	farmerrors "github.com/mezonai/lpfarm/errors"
	"github.com/mezonai/lpfarm/events"
	"github.com/mezonai/lpfarm/store"
	"github.com/mezonai/lpfarm/types"
)

func address(t *testing.T, b byte) string {
	t.Helper()
	addr, err := types.AddressFromBytes(bytes.Repeat([]byte{b}, types.AddressLength))
	require.NoError(t, err)
	return addr
}

type harness struct {
	svc      *FarmService
	clock    *clock.ManualCounter
	provider *db.MemoryProvider
	bus      *events.EventBus
	cfg      *config.FarmConfig
	owner    string
	alice    string
	bob      string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		provider: db.NewMemoryProvider(),
		clock:    clock.NewManualCounter(10),
		bus:      events.NewEventBus(),
		owner:    address(t, 1),
		alice:    address(t, 3),
		bob:      address(t, 4),
	}
	h.cfg = &config.FarmConfig{
		Owner:         h.owner,
		Custody:       address(t, 2),
		RewardAsset:   "SHFT",
		RewardPerStep: 10,
		StartStep:     10,
		Pools:         []config.PoolConfig{{StakeAsset: "LP", Weight: 1}},
		GenesisBalances: []config.GenesisBalance{
			{Asset: "SHFT", Address: h.owner, Amount: 1000},
			{Asset: "LP", Address: h.alice, Amount: 100},
			{Asset: "LP", Address: h.bob, Amount: 200},
		},
	}
	h.svc = h.open(t)
	return h
}

func (h *harness) open(t *testing.T) *FarmService {
	t.Helper()
	return h.openWith(t, nil)
}

// openWith opens the service with the farm store replaced by wrap(store)
func (h *harness) openWith(t *testing.T, wrap func(store.FarmStore) store.FarmStore) *FarmService {
	t.Helper()
	stores, err := store.NewStores(h.provider)
	require.NoError(t, err)
	if wrap != nil {
		stores.Farm = wrap(stores.Farm)
	}
	svc, err := Open(h.cfg, stores, h.clock, events.NewEventRouter(h.bus))
	require.NoError(t, err)
	require.NoError(t, svc.Start(context.Background()))
	t.Cleanup(svc.Stop)
	return svc
}

func (h *harness) at(step uint64) {
	h.clock.Set(step)
}

func u(v uint64) *uint256.Int {
	return uint256.NewInt(v)
}

func TestFarmService_TwoStakerScenario(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Fund(ctx, h.owner, u(1000))
	require.NoError(t, err)

	h.at(13)
	_, err = h.svc.Deposit(ctx, h.alice, 0, u(100))
	require.NoError(t, err)
	h.at(14)
	_, err = h.svc.Deposit(ctx, h.bob, 0, u(200))
	require.NoError(t, err)

	h.at(15)
	pending, err := h.svc.PendingReward(0, h.alice)
	require.NoError(t, err)
	assert.Equal(t, u(13), pending)
	pending, err = h.svc.PendingReward(0, h.bob)
	require.NoError(t, err)
	assert.Equal(t, u(6), pending)

	h.at(16)
	receipt, err := h.svc.Harvest(ctx, h.alice, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(16), receipt.Step)
	assert.Equal(t, u(16), receipt.Reward)

	h.at(17)
	receipt, err = h.svc.Harvest(ctx, h.bob, 0)
	require.NoError(t, err)
	assert.Equal(t, u(19), receipt.Reward)

	h.at(18)
	receipt, err = h.svc.Withdraw(ctx, h.alice, 0, u(100))
	require.NoError(t, err)
	assert.Equal(t, u(7), receipt.Reward)
	h.at(19)
	receipt, err = h.svc.Withdraw(ctx, h.bob, 0, u(200))
	require.NoError(t, err)
	assert.Equal(t, u(17), receipt.Reward)

	bal, err := h.svc.Balance("SHFT", h.alice)
	require.NoError(t, err)
	assert.Equal(t, u(23), bal)
	bal, err = h.svc.Balance("SHFT", h.bob)
	require.NoError(t, err)
	assert.Equal(t, u(36), bal)
	bal, err = h.svc.Balance("LP", h.bob)
	require.NoError(t, err)
	assert.Equal(t, u(200), bal)
	assert.Equal(t, u(1000-59), h.svc.VaultAvailable())
}

func TestFarmService_RestoresPersistedState(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Fund(ctx, h.owner, u(500))
	require.NoError(t, err)
	h.at(12)
	_, err = h.svc.AddPool(ctx, h.owner, 3, "LP2", true)
	require.Error(t, err, "LP2 is not a known asset")
	_, err = h.svc.Deposit(ctx, h.alice, 0, u(40))
	require.NoError(t, err)
	h.at(20)
	_, err = h.svc.Harvest(ctx, h.alice, 0)
	require.NoError(t, err)

	pools := h.svc.GetPools()
	vault := h.svc.GetVault()
	pos, err := h.svc.GetPosition(0, h.alice)
	require.NoError(t, err)
	h.svc.Stop()

	reopened := h.open(t)
	assert.Equal(t, pools, reopened.GetPools())
	assert.Equal(t, vault, reopened.GetVault())
	restored, err := reopened.GetPosition(0, h.alice)
	require.NoError(t, err)
	assert.Equal(t, pos, restored)
	assert.Equal(t, uint64(20), reopened.CurrentStep())

	// genesis balances are not credited twice
	bal, err := reopened.Balance("LP", h.alice)
	require.NoError(t, err)
	assert.Equal(t, u(60), bal)
}

func TestFarmService_Authorization(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.AddPool(ctx, h.alice, 1, "SHFT", false)
	assert.ErrorIs(t, err, farmerrors.ErrUnauthorized)
	_, err = h.svc.SetPool(ctx, h.bob, 0, 5, false)
	assert.ErrorIs(t, err, farmerrors.ErrUnauthorized)
	_, err = h.svc.SetRewardRate(ctx, h.alice, u(1), false)
	assert.ErrorIs(t, err, farmerrors.ErrUnauthorized)

	_, err = h.svc.Deposit(ctx, "not-base58-0OIl", 0, u(1))
	assert.ErrorIs(t, err, farmerrors.ErrInvalidAddress)
	_, err = h.svc.Deposit(ctx, h.alice, 0, nil)
	assert.ErrorIs(t, err, farmerrors.ErrInvalidAmount)

	receipt, err := h.svc.SetPool(ctx, h.owner, 0, 5, true)
	require.NoError(t, err)
	assert.Equal(t, types.OpSetPool, receipt.Op)
	assert.Equal(t, uint64(5), h.svc.TotalWeight())
}

func TestFarmService_PublishesEvents(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, ch := h.bus.Subscribe()

	_, err := h.svc.Deposit(ctx, h.alice, 0, u(10))
	require.NoError(t, err)
	_, err = h.svc.Withdraw(ctx, h.alice, 0, u(11))
	require.ErrorIs(t, err, farmerrors.ErrInsufficientStake)

	next := func() events.FarmEvent {
		select {
		case ev := <-ch:
			return ev
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for event")
			return nil
		}
	}
	assert.Equal(t, events.EventDeposited, next().Type())
	failed, ok := next().(*events.OperationFailed)
	require.True(t, ok)
	assert.Equal(t, string(farmerrors.ErrCodeInsufficientStake), failed.ErrorCode())
	assert.Equal(t, h.alice, failed.User())
}

func TestFarmService_ConcurrentCallersAreSerialized(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.svc.Fund(ctx, h.owner, u(1000))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := h.svc.Deposit(ctx, h.alice, 0, u(5))
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			h.clock.Advance(1)
			_, err := h.svc.Deposit(ctx, h.bob, 0, u(10))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	pool, err := h.svc.GetPool(0)
	require.NoError(t, err)
	assert.Equal(t, u(300), pool.TotalStaked)
	require.NoError(t, h.svc.farm.CheckInvariants())
	assert.Equal(t, 2, h.svc.StakerCount(0))

	custody, err := h.svc.Balance("LP", h.cfg.Custody)
	require.NoError(t, err)
	assert.Equal(t, u(300), custody)
}

type backwardsClock struct {
	steps []uint64
	i     int
}

func (c *backwardsClock) CurrentStep() uint64 {
	s := c.steps[c.i]
	if c.i < len(c.steps)-1 {
		c.i++
	}
	return s
}

func TestFarmService_StepNeverDecreases(t *testing.T) {
	h := newHarness(t)
	h.svc.Stop()

	stores, err := store.NewStores(h.provider)
	require.NoError(t, err)
	svc, err := Open(h.cfg, stores, &backwardsClock{steps: []uint64{30, 25}}, nil)
	require.NoError(t, err)
	require.NoError(t, svc.Start(context.Background()))
	defer svc.Stop()

	r1, err := svc.Fund(context.Background(), h.owner, u(1))
	require.NoError(t, err)
	r2, err := svc.Fund(context.Background(), h.owner, u(1))
	require.NoError(t, err)
	assert.Equal(t, uint64(30), r1.Step)
	assert.Equal(t, uint64(30), r2.Step)
}

func TestFarmService_Stopped(t *testing.T) {
	h := newHarness(t)
	h.svc.Stop()
	h.svc.Stop()

	_, err := h.svc.Fund(context.Background(), h.owner, u(1))
	assert.ErrorIs(t, err, farmerrors.ErrServiceStopped)
}

func TestFarmService_ContextCancelledBeforeSubmit(t *testing.T) {
	svc, err := NewFarmService(FarmServiceConfig{})
	require.Error(t, err)
	assert.Nil(t, svc)

	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// a cancelled context may still race with the enqueue; either outcome leaves state consistent
	_, err = h.svc.Fund(ctx, h.owner, u(1))
	if err != nil {
		assert.ErrorIs(t, err, context.Canceled)
	}
	require.NoError(t, h.svc.farm.CheckInvariants())
}

var errDiskFull = errors.New("disk full")

// faultyFarmStore fails the next failures saves. When hold is set, each save
// waits until hold is closed.
type faultyFarmStore struct {
	store.FarmStore
	failures atomic.Int32
	saving   atomic.Bool
	hold     chan struct{}
}

func (f *faultyFarmStore) SaveState(update *store.StateUpdate) error {
	f.saving.Store(true)
	if f.hold != nil {
		<-f.hold
	}
	if f.failures.Load() > 0 {
		f.failures.Add(-1)
		return errDiskFull
	}
	return f.FarmStore.SaveState(update)
}

func TestFarmService_FailedSaveLeavesNoTrace(t *testing.T) {
	h := newHarness(t)
	h.svc.Stop()
	faulty := &faultyFarmStore{}
	svc := h.openWith(t, func(fs store.FarmStore) store.FarmStore {
		faulty.FarmStore = fs
		return faulty
	})
	ctx := context.Background()

	_, err := svc.Fund(ctx, h.owner, u(1000))
	require.NoError(t, err)
	h.at(13)
	_, err = svc.Deposit(ctx, h.alice, 0, u(100))
	require.NoError(t, err)

	faulty.failures.Store(1)
	h.at(14)
	receipt, err := svc.Deposit(ctx, h.bob, 0, u(200))
	require.Error(t, err)
	assert.Nil(t, receipt)
	assert.Equal(t, farmerrors.ErrCodeInternal, farmerrors.CodeOf(err))
	assert.ErrorIs(t, err, errDiskFull)

	// neither memory nor the ledger moved
	pool, err := svc.GetPool(0)
	require.NoError(t, err)
	assert.Equal(t, u(100), pool.TotalStaked)
	assert.Equal(t, 1, svc.StakerCount(0))
	bal, err := svc.Balance("LP", h.bob)
	require.NoError(t, err)
	assert.Equal(t, u(200), bal)
	bal, err = svc.Balance("LP", h.cfg.Custody)
	require.NoError(t, err)
	assert.Equal(t, u(100), bal)
	require.NoError(t, svc.farm.CheckInvariants())

	h.at(16)
	receipt, err = svc.Harvest(ctx, h.alice, 0)
	require.NoError(t, err)
	assert.Equal(t, u(30), receipt.Reward)
	svc.Stop()

	reopened := h.open(t)
	pool, err = reopened.GetPool(0)
	require.NoError(t, err)
	assert.Equal(t, u(100), pool.TotalStaked)
	require.NoError(t, reopened.farm.CheckInvariants())
	bal, err = reopened.Balance("SHFT", h.alice)
	require.NoError(t, err)
	assert.Equal(t, u(30), bal)
	bal, err = reopened.Balance("LP", h.bob)
	require.NoError(t, err)
	assert.Equal(t, u(200), bal)

	// the rejected deposit can simply be retried
	h.at(17)
	_, err = reopened.Deposit(ctx, h.bob, 0, u(200))
	require.NoError(t, err)
	pool, err = reopened.GetPool(0)
	require.NoError(t, err)
	assert.Equal(t, u(300), pool.TotalStaked)
}

func TestFarmService_CancelAfterQueueStillReportsResult(t *testing.T) {
	h := newHarness(t)
	h.svc.Stop()
	faulty := &faultyFarmStore{}
	svc := h.openWith(t, func(fs store.FarmStore) store.FarmStore {
		faulty.FarmStore = fs
		return faulty
	})
	faulty.hold = make(chan struct{})

	type outcome struct {
		receipt *types.Receipt
		err     error
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan outcome, 1)
	go func() {
		receipt, err := svc.Deposit(ctx, h.alice, 0, u(100))
		done <- outcome{receipt, err}
	}()

	require.Eventually(t, faulty.saving.Load, time.Second, time.Millisecond)
	cancel()
	select {
	case <-done:
		t.Fatal("deposit returned before it finished")
	case <-time.After(50 * time.Millisecond):
	}

	close(faulty.hold)
	var out outcome
	select {
	case out = <-done:
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for deposit")
	}
	require.NoError(t, out.err)
	assert.Equal(t, u(100), out.receipt.Amount)

	pos, err := svc.GetPosition(0, h.alice)
	require.NoError(t, err)
	assert.Equal(t, u(100), pos.Amount)
}

func TestFarmService_PendingRewardAt(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.svc.Fund(ctx, h.owner, u(1000))
	require.NoError(t, err)
	h.at(13)
	_, err = h.svc.Deposit(ctx, h.alice, 0, u(100))
	require.NoError(t, err)

	h.at(20)
	tests := []struct {
		step uint64
		want uint64
	}{
		{13, 0},
		{15, 20},
		{20, 70},
	}
	for _, tt := range tests {
		got, err := h.svc.PendingRewardAt(tt.step, 0, h.alice)
		require.NoError(t, err)
		assert.Equal(t, u(tt.want), got, "step %d", tt.step)
	}
	_, err = h.svc.PendingRewardAt(20, 5, h.alice)
	assert.ErrorIs(t, err, farmerrors.ErrInvalidPool)
}
