package staking

import (
	"github.com/holiman/uint256"

	"github.com/mezonai/lpfarm/types"
)

type positionKey struct {
	pool uint64
	user string
}

// UserPositionLedger keeps (pool, user) stakes and reward debts. Positions are
// created on first deposit and are never deleted.
type UserPositionLedger struct {
	positions map[positionKey]*types.Position
	// totals per pool, used to cross-check pool.TotalStaked
	count map[uint64]int
}

func NewUserPositionLedger() *UserPositionLedger {
	return &UserPositionLedger{
		positions: make(map[positionKey]*types.Position),
		count:     make(map[uint64]int),
	}
}

// working returns a copy of the position, or a fresh zero position if the
// user never deposited. The bool reports whether the position exists.
func (l *UserPositionLedger) working(poolID uint64, user string) (*types.Position, bool) {
	pos, exists := l.positions[positionKey{poolID, user}]
	if !exists {
		return types.NewPosition(poolID, user), false
	}
	return pos.Clone(), true
}

func (l *UserPositionLedger) put(pos *types.Position) {
	key := positionKey{pos.PoolID, pos.User}
	if _, exists := l.positions[key]; !exists {
		l.count[pos.PoolID]++
	}
	l.positions[key] = pos
}

func (l *UserPositionLedger) get(poolID uint64, user string) (*types.Position, bool) {
	pos, exists := l.positions[positionKey{poolID, user}]
	return pos, exists
}

// StakerCount returns how many positions exist in a pool, including emptied ones.
func (l *UserPositionLedger) StakerCount(poolID uint64) int {
	return l.count[poolID]
}

// sumStaked adds up every position amount of a pool.
func (l *UserPositionLedger) sumStaked(poolID uint64) *uint256.Int {
	sum := uint256.NewInt(0)
	for key, pos := range l.positions {
		if key.pool == poolID {
			sum.Add(sum, pos.Amount)
		}
	}
	return sum
}

func (l *UserPositionLedger) each(fn func(pos *types.Position)) {
	for _, pos := range l.positions {
		fn(pos)
	}
}
