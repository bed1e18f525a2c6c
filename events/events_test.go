package events

import (
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	farmerrors "github.com/mezonai/lpfarm/errors"
	"github.com/mezonai/lpfarm/types"
)

func receive(t *testing.T, ch <-chan FarmEvent) FarmEvent {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
		return nil
	}
}

func TestEventBus_SubscribePublishUnsubscribe(t *testing.T) {
	bus := NewEventBus()
	id, ch := bus.Subscribe()
	assert.Equal(t, 1, bus.GetTotalSubscriptions())
	assert.True(t, bus.HasSubscriber(id))

	receipt := &types.Receipt{Op: types.OpHarvest, Step: 16, PoolID: 0, User: "alice", Reward: uint256.NewInt(16)}
	bus.Publish(NewOperationCommitted(receipt))

	ev := receive(t, ch)
	assert.Equal(t, EventHarvested, ev.Type())
	assert.Equal(t, uint64(16), ev.Step())
	committed, ok := ev.(*OperationCommitted)
	require.True(t, ok)
	assert.Same(t, receipt, committed.Receipt())

	assert.True(t, bus.Unsubscribe(id))
	assert.False(t, bus.Unsubscribe(id))
	assert.Equal(t, 0, bus.GetTotalSubscriptions())
	_, open := <-ch
	assert.False(t, open)
}

func TestEventBus_FullSubscriberDoesNotBlock(t *testing.T) {
	bus := NewEventBus()
	_, ch := bus.Subscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 200; i++ {
			bus.Publish(NewOperationCommitted(&types.Receipt{Op: types.OpFund, Step: uint64(i)}))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
	assert.Len(t, ch, cap(ch))
}

func TestEventRouter(t *testing.T) {
	bus := NewEventBus()
	router := NewEventRouter(bus)
	_, ch := bus.Subscribe()

	for op, want := range committedTypes {
		router.PublishReceipt(&types.Receipt{Op: op, Step: 1})
		assert.Equal(t, want, receive(t, ch).Type())
	}

	router.PublishFailure(types.OpWithdraw, 9, 2, "bob", farmerrors.ErrInsufficientStake)
	ev := receive(t, ch)
	failed, ok := ev.(*OperationFailed)
	require.True(t, ok)
	assert.Equal(t, EventOperationFailed, failed.Type())
	assert.Equal(t, types.OpWithdraw, failed.Op())
	assert.Equal(t, uint64(2), failed.PoolID())
	assert.Equal(t, "bob", failed.User())
	assert.Equal(t, string(farmerrors.ErrCodeInsufficientStake), failed.ErrorCode())

	var nilRouter *EventRouter
	nilRouter.PublishReceipt(&types.Receipt{})
}
