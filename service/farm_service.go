package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/holiman/uint256"

	"github.com/mezonai/lpfarm/clock"
	farmerrors "github.com/mezonai/lpfarm/errors"
	"github.com/mezonai/lpfarm/events"
	"github.com/mezonai/lpfarm/ledger"
	"github.com/mezonai/lpfarm/logx"
	"github.com/mezonai/lpfarm/monitoring"
	"github.com/mezonai/lpfarm/staking"
	"github.com/mezonai/lpfarm/store"
	"github.com/mezonai/lpfarm/types"
)

const defaultQueueSize = 1000

type result struct {
	receipt *types.Receipt
	err     error
}

type command struct {
	op     types.OpKind
	poolID uint64
	caller string
	exec   func(step uint64) (*types.Receipt, error)
	reply  chan result
}

// FarmService serializes every mutating farm operation through one goroutine.
// Each command is stamped with the current step, applied, persisted and
// published before the next one starts. Queries read the farm directly.
type FarmService struct {
	farm      *staking.Farm
	ledger    *ledger.Ledger
	farmStore store.FarmStore
	router    *events.EventRouter
	clock     clock.StepCounter
	owner     string

	// lastStep is the highest step handed to a command
	lastStep atomic.Uint64
	started  atomic.Bool
	running  atomic.Bool

	cmdChan  chan *command
	stopChan chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// FarmServiceConfig wires a FarmService
type FarmServiceConfig struct {
	Farm      *staking.Farm
	Ledger    *ledger.Ledger
	FarmStore store.FarmStore
	Router    *events.EventRouter
	Clock     clock.StepCounter
	Owner     string
	// LastStep is the step of the last persisted operation
	LastStep  uint64
	QueueSize int
}

func NewFarmService(cfg FarmServiceConfig) (*FarmService, error) {
	if cfg.Farm == nil || cfg.Ledger == nil || cfg.FarmStore == nil || cfg.Clock == nil {
		return nil, fmt.Errorf("farm, ledger, farm store and clock are required")
	}
	if err := types.ValidateAddress(cfg.Owner); err != nil {
		return nil, fmt.Errorf("invalid owner: %w", err)
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	s := &FarmService{
		farm:      cfg.Farm,
		ledger:    cfg.Ledger,
		farmStore: cfg.FarmStore,
		router:    cfg.Router,
		clock:     cfg.Clock,
		owner:     cfg.Owner,
		cmdChan:   make(chan *command, queueSize),
		stopChan:  make(chan struct{}),
		done:      make(chan struct{}),
	}
	s.lastStep.Store(cfg.LastStep)
	cfg.Farm.SetCommitHook(s.persist)
	return s, nil
}

// Start starts the command loop
func (s *FarmService) Start(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return fmt.Errorf("farm service already started")
	}
	s.running.Store(true)
	logx.Info("FARM_SERVICE", "Starting farm service...")
	monitoring.InitMetrics()
	s.refreshGauges()
	go s.processCommands(ctx)
	logx.Info("FARM_SERVICE", "Farm service started successfully")
	return nil
}

// Stop stops the command loop and waits for the running command to finish
func (s *FarmService) Stop() {
	s.stopOnce.Do(func() {
		logx.Info("FARM_SERVICE", "Stopping farm service...")
		s.running.Store(false)
		close(s.stopChan)
	})
	if s.started.Load() {
		<-s.done
	}
}

func (s *FarmService) processCommands(ctx context.Context) {
	defer func() {
		s.running.Store(false)
		s.drain()
		close(s.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopChan:
			return
		case cmd := <-s.cmdChan:
			s.handleCommand(cmd)
		}
	}
}

// drain rejects commands still queued when the loop exits
func (s *FarmService) drain() {
	for {
		select {
		case cmd := <-s.cmdChan:
			cmd.reply <- result{err: farmerrors.ErrServiceStopped}
		default:
			return
		}
	}
}

func (s *FarmService) handleCommand(cmd *command) {
	start := time.Now()
	step := s.nextStep()

	// transfers made by the command are written together with the farm state in persist
	s.ledger.BeginStaging()
	receipt, err := s.apply(cmd, step)
	s.ledger.EndStaging()

	outcome := monitoring.OutcomeOK
	if err != nil {
		outcome = string(farmerrors.CodeOf(err))
		s.router.PublishFailure(cmd.op, step, cmd.poolID, cmd.caller, err)
		logx.Warn("FARM_SERVICE", fmt.Sprintf("%s rejected | step=%d | pool=%d | caller=%s | err=%v", cmd.op, step, cmd.poolID, cmd.caller, err))
	} else {
		s.refreshGauges()
		s.router.PublishReceipt(receipt)
		logx.Info("FARM_SERVICE", fmt.Sprintf("%s committed | step=%d | pool=%d | caller=%s", cmd.op, step, receipt.PoolID, cmd.caller))
	}
	monitoring.RecordOperation(string(cmd.op), outcome, time.Since(start))
	monitoring.SetCurrentStep(step)

	cmd.reply <- result{receipt: receipt, err: err}
}

// apply runs the command and turns a panic into an internal error so the loop survives
func (s *FarmService) apply(cmd *command, step uint64) (receipt *types.Receipt, err error) {
	defer func() {
		if r := recover(); r != nil {
			monitoring.IncreasePanicCount()
			logx.Error("FARM_SERVICE", fmt.Sprintf("Panic applying %s: %v", cmd.op, r))
			receipt, err = nil, farmerrors.Newf(farmerrors.ErrCodeInternal, "panic applying %s", cmd.op)
		}
	}()
	return cmd.exec(step)
}

// nextStep returns the clock step, never lower than a step already used
func (s *FarmService) nextStep() uint64 {
	step := s.clock.CurrentStep()
	if last := s.lastStep.Load(); step < last {
		step = last
	}
	s.lastStep.Store(step)
	return step
}

// persist is the farm's commit hook. It writes the pools, position and vault
// of the change together with the balances staged in the ledger in one batch.
// The farm applies the change only after this returns nil, so a failed write
// leaves memory, ledger and store at the previous operation.
func (s *FarmService) persist(change *staking.Change) error {
	update := &store.StateUpdate{
		Step:     change.Receipt.Step,
		Pools:    change.Pools,
		Vault:    change.Vault,
		Accounts: s.ledger.StagedAccounts(),
	}
	if change.Position != nil {
		update.Positions = []*types.Position{change.Position}
	}
	if err := s.farmStore.SaveState(update); err != nil {
		logx.Error("FARM_SERVICE", fmt.Sprintf("Failed to persist %s at step %d: %v", change.Receipt.Op, change.Receipt.Step, err))
		return farmerrors.Wrap(farmerrors.ErrCodeInternal, err, "persist farm state")
	}
	return nil
}

func (s *FarmService) refreshGauges() {
	vault := s.farm.GetVault()
	monitoring.SetVault(vault.TotalFunded, vault.TotalPaidOut, new(uint256.Int).Sub(vault.TotalFunded, vault.TotalPaidOut))
	pools := s.farm.GetPools()
	for _, p := range pools {
		monitoring.SetPoolStaked(p.ID, p.TotalStaked)
	}
	monitoring.SetPools(len(pools), s.farm.TotalWeight())
}

// submit queues cmd and waits for its result. ctx only bounds the wait for a
// queue slot: once queued, the command runs and its result is returned even if
// ctx is cancelled, so a caller never sees an error for a committed command.
func (s *FarmService) submit(ctx context.Context, cmd *command) (*types.Receipt, error) {
	if !s.running.Load() {
		return nil, farmerrors.ErrServiceStopped
	}
	cmd.reply = make(chan result, 1)

	select {
	case s.cmdChan <- cmd:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.stopChan:
		return nil, farmerrors.ErrServiceStopped
	}

	select {
	case res := <-cmd.reply:
		return res.receipt, res.err
	case <-s.done:
		select {
		case res := <-cmd.reply:
			return res.receipt, res.err
		default:
			return nil, farmerrors.ErrServiceStopped
		}
	}
}

func (s *FarmService) checkCaller(caller string) error {
	if err := types.ValidateAddress(caller); err != nil {
		return farmerrors.Wrap(farmerrors.ErrCodeInvalidAddress, err, "invalid caller")
	}
	return nil
}

func (s *FarmService) checkOwner(caller string) error {
	if err := s.checkCaller(caller); err != nil {
		return err
	}
	if caller != s.owner {
		return farmerrors.Newf(farmerrors.ErrCodeUnauthorized, "%s is not the farm owner", caller)
	}
	return nil
}

func checkAmount(amount *uint256.Int) error {
	if amount == nil {
		return farmerrors.ErrInvalidAmount
	}
	return nil
}

// AddPool registers a new pool. Owner only.
func (s *FarmService) AddPool(ctx context.Context, caller string, weight uint64, stakeAsset string, massUpdate bool) (*types.Receipt, error) {
	if err := s.checkOwner(caller); err != nil {
		return nil, err
	}
	return s.submit(ctx, &command{
		op:     types.OpAddPool,
		caller: caller,
		exec: func(step uint64) (*types.Receipt, error) {
			return s.farm.AddPool(step, weight, stakeAsset, massUpdate)
		},
	})
}

// SetPool changes a pool's weight. Owner only.
func (s *FarmService) SetPool(ctx context.Context, caller string, poolID uint64, weight uint64, massUpdate bool) (*types.Receipt, error) {
	if err := s.checkOwner(caller); err != nil {
		return nil, err
	}
	return s.submit(ctx, &command{
		op:     types.OpSetPool,
		poolID: poolID,
		caller: caller,
		exec: func(step uint64) (*types.Receipt, error) {
			return s.farm.SetPool(step, poolID, weight, massUpdate)
		},
	})
}

// SetRewardRate changes the global reward per step. Owner only.
func (s *FarmService) SetRewardRate(ctx context.Context, caller string, rate *uint256.Int, massUpdate bool) (*types.Receipt, error) {
	if err := s.checkOwner(caller); err != nil {
		return nil, err
	}
	if err := checkAmount(rate); err != nil {
		return nil, err
	}
	return s.submit(ctx, &command{
		op:     types.OpSetRewardRate,
		caller: caller,
		exec: func(step uint64) (*types.Receipt, error) {
			return s.farm.SetRewardRate(step, rate, massUpdate)
		},
	})
}

// Fund moves reward tokens from caller into the vault
func (s *FarmService) Fund(ctx context.Context, caller string, amount *uint256.Int) (*types.Receipt, error) {
	if err := s.checkCaller(caller); err != nil {
		return nil, err
	}
	if err := checkAmount(amount); err != nil {
		return nil, err
	}
	return s.submit(ctx, &command{
		op:     types.OpFund,
		caller: caller,
		exec: func(step uint64) (*types.Receipt, error) {
			return s.farm.Fund(step, caller, amount)
		},
	})
}

func (s *FarmService) Deposit(ctx context.Context, caller string, poolID uint64, amount *uint256.Int) (*types.Receipt, error) {
	if err := s.checkCaller(caller); err != nil {
		return nil, err
	}
	if err := checkAmount(amount); err != nil {
		return nil, err
	}
	return s.submit(ctx, &command{
		op:     types.OpDeposit,
		poolID: poolID,
		caller: caller,
		exec: func(step uint64) (*types.Receipt, error) {
			return s.farm.Deposit(step, poolID, caller, amount)
		},
	})
}

func (s *FarmService) Withdraw(ctx context.Context, caller string, poolID uint64, amount *uint256.Int) (*types.Receipt, error) {
	if err := s.checkCaller(caller); err != nil {
		return nil, err
	}
	if err := checkAmount(amount); err != nil {
		return nil, err
	}
	return s.submit(ctx, &command{
		op:     types.OpWithdraw,
		poolID: poolID,
		caller: caller,
		exec: func(step uint64) (*types.Receipt, error) {
			return s.farm.Withdraw(step, poolID, caller, amount)
		},
	})
}

func (s *FarmService) Harvest(ctx context.Context, caller string, poolID uint64) (*types.Receipt, error) {
	if err := s.checkCaller(caller); err != nil {
		return nil, err
	}
	return s.submit(ctx, &command{
		op:     types.OpHarvest,
		poolID: poolID,
		caller: caller,
		exec: func(step uint64) (*types.Receipt, error) {
			return s.farm.Harvest(step, poolID, caller)
		},
	})
}

func (s *FarmService) EmergencyWithdraw(ctx context.Context, caller string, poolID uint64) (*types.Receipt, error) {
	if err := s.checkCaller(caller); err != nil {
		return nil, err
	}
	return s.submit(ctx, &command{
		op:     types.OpEmergencyWithdraw,
		poolID: poolID,
		caller: caller,
		exec: func(step uint64) (*types.Receipt, error) {
			return s.farm.EmergencyWithdraw(step, poolID, caller)
		},
	})
}
