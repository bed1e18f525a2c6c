package events

import (
	farmerrors "github.com/mezonai/lpfarm/errors"
	"github.com/mezonai/lpfarm/types"
)

// EventRouter turns operation outcomes into events on the bus
type EventRouter struct {
	eventBus *EventBus
}

// NewEventRouter creates a new EventRouter instance
func NewEventRouter(eventBus *EventBus) *EventRouter {
	return &EventRouter{eventBus: eventBus}
}

// PublishReceipt publishes the committed operation described by receipt
func (er *EventRouter) PublishReceipt(receipt *types.Receipt) {
	if er == nil || receipt == nil {
		return
	}
	er.eventBus.Publish(NewOperationCommitted(receipt))
}

// PublishFailure publishes a rejected operation with its error code
func (er *EventRouter) PublishFailure(op types.OpKind, step, poolID uint64, user string, err error) {
	if er == nil || err == nil {
		return
	}
	er.eventBus.Publish(NewOperationFailed(op, step, poolID, user,
		string(farmerrors.CodeOf(err)), farmerrors.MessageOf(err)))
}

// EventBus returns the underlying bus for subscribers
func (er *EventRouter) EventBus() *EventBus {
	return er.eventBus
}
