package clock

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManualCounter(t *testing.T) {
	c := NewManualCounter(10)
	assert.Equal(t, uint64(10), c.CurrentStep())
	assert.Equal(t, uint64(13), c.Advance(3))

	c.Set(11)
	assert.Equal(t, uint64(13), c.CurrentStep(), "set never moves backwards")
	c.Set(20)
	assert.Equal(t, uint64(20), c.CurrentStep())
}

func TestManualCounter_ConcurrentAdvance(t *testing.T) {
	c := NewManualCounter(0)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Advance(2)
		}()
	}
	wg.Wait()
	assert.Equal(t, uint64(100), c.CurrentStep())
}

func TestSlotCounter(t *testing.T) {
	genesis := time.Unix(1_700_000_000, 0)
	now := genesis.Add(-time.Second)
	c := NewSlotCounter(genesis, 400*time.Millisecond)
	c.now = func() time.Time { return now }

	assert.Equal(t, uint64(0), c.CurrentStep(), "before genesis")

	now = genesis.Add(1999 * time.Millisecond)
	assert.Equal(t, uint64(4), c.CurrentStep())

	now = genesis.Add(2 * time.Second)
	assert.Equal(t, uint64(5), c.CurrentStep())

	// wall clock stepping back keeps the step
	now = genesis.Add(time.Second)
	assert.Equal(t, uint64(5), c.CurrentStep())
}
