package clock

import (
	"sync/atomic"
	"time"
)

// StepCounter reports the current step. Steps never go backwards.
type StepCounter interface {
	CurrentStep() uint64
}

// ManualCounter is advanced explicitly. Used by tests and by the manual clock mode.
type ManualCounter struct {
	step atomic.Uint64
}

func NewManualCounter(start uint64) *ManualCounter {
	c := &ManualCounter{}
	c.step.Store(start)
	return c
}

func (c *ManualCounter) CurrentStep() uint64 {
	return c.step.Load()
}

// Advance moves the counter forward by n steps and returns the new step
func (c *ManualCounter) Advance(n uint64) uint64 {
	return c.step.Add(n)
}

// Set moves the counter to step. Moving backwards is ignored.
func (c *ManualCounter) Set(step uint64) {
	for {
		cur := c.step.Load()
		if step <= cur || c.step.CompareAndSwap(cur, step) {
			return
		}
	}
}

// SlotCounter derives the step from wall time: one step per stepDuration
// since genesis, like a slot clock.
type SlotCounter struct {
	genesis      time.Time
	stepDuration time.Duration
	now          func() time.Time
	floor        atomic.Uint64
}

func NewSlotCounter(genesis time.Time, stepDuration time.Duration) *SlotCounter {
	if stepDuration <= 0 {
		stepDuration = time.Second
	}
	return &SlotCounter{genesis: genesis, stepDuration: stepDuration, now: time.Now}
}

// CurrentStep returns the number of whole step durations since genesis. A wall
// clock that jumps backwards does not lower the returned step.
func (c *SlotCounter) CurrentStep() uint64 {
	elapsed := c.now().Sub(c.genesis)
	var step uint64
	if elapsed > 0 {
		step = uint64(elapsed / c.stepDuration)
	}
	for {
		floor := c.floor.Load()
		if step <= floor {
			return floor
		}
		if c.floor.CompareAndSwap(floor, step) {
			return step
		}
	}
}
