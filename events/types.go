package events

import (
	"time"

	"github.com/mezonai/lpfarm/types"
)

// EventType is an enum-like string type for farm events
type EventType string

const (
	EventPoolAdded          EventType = "PoolAdded"
	EventPoolUpdated        EventType = "PoolUpdated"
	EventRewardRateChanged  EventType = "RewardRateChanged"
	EventVaultFunded        EventType = "VaultFunded"
	EventDeposited          EventType = "Deposited"
	EventWithdrawn          EventType = "Withdrawn"
	EventHarvested          EventType = "Harvested"
	EventEmergencyWithdrawn EventType = "EmergencyWithdrawn"
	EventOperationFailed    EventType = "OperationFailed"
)

var committedTypes = map[types.OpKind]EventType{
	types.OpAddPool:           EventPoolAdded,
	types.OpSetPool:           EventPoolUpdated,
	types.OpSetRewardRate:     EventRewardRateChanged,
	types.OpFund:              EventVaultFunded,
	types.OpDeposit:           EventDeposited,
	types.OpWithdraw:          EventWithdrawn,
	types.OpHarvest:           EventHarvested,
	types.OpEmergencyWithdraw: EventEmergencyWithdrawn,
}

// FarmEvent represents anything observable that happens to the farm
type FarmEvent interface {
	Type() EventType
	Timestamp() time.Time
	Step() uint64
}

// OperationCommitted is published after an operation is applied and persisted
type OperationCommitted struct {
	receipt   *types.Receipt
	timestamp time.Time
}

func NewOperationCommitted(receipt *types.Receipt) *OperationCommitted {
	return &OperationCommitted{
		receipt:   receipt,
		timestamp: time.Now(),
	}
}

func (e *OperationCommitted) Type() EventType {
	return committedTypes[e.receipt.Op]
}

func (e *OperationCommitted) Timestamp() time.Time {
	return e.timestamp
}

func (e *OperationCommitted) Step() uint64 {
	return e.receipt.Step
}

func (e *OperationCommitted) Receipt() *types.Receipt {
	return e.receipt
}

// OperationFailed is published when an operation is rejected. No state changed.
type OperationFailed struct {
	op           types.OpKind
	step         uint64
	poolID       uint64
	user         string
	errorCode    string
	errorMessage string
	timestamp    time.Time
}

func NewOperationFailed(op types.OpKind, step, poolID uint64, user, errorCode, errorMessage string) *OperationFailed {
	return &OperationFailed{
		op:           op,
		step:         step,
		poolID:       poolID,
		user:         user,
		errorCode:    errorCode,
		errorMessage: errorMessage,
		timestamp:    time.Now(),
	}
}

func (e *OperationFailed) Type() EventType {
	return EventOperationFailed
}

func (e *OperationFailed) Timestamp() time.Time {
	return e.timestamp
}

func (e *OperationFailed) Step() uint64 {
	return e.step
}

func (e *OperationFailed) Op() types.OpKind {
	return e.op
}

func (e *OperationFailed) PoolID() uint64 {
	return e.poolID
}

func (e *OperationFailed) User() string {
	return e.user
}

func (e *OperationFailed) ErrorCode() string {
	return e.errorCode
}

func (e *OperationFailed) ErrorMessage() string {
	return e.errorMessage
}
