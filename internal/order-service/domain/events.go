package domain

import "time"

// Event is a fact recorded by the Order aggregate after a successful
// transition. Facts are handed out once by PullEvents.
type Event interface {
	EventName() string
	AggregateID() string
	OccurredAt() time.Time
}

type eventMeta struct {
	OrderID string
	At      time.Time
}

func (e eventMeta) AggregateID() string   { return e.OrderID }
func (e eventMeta) OccurredAt() time.Time { return e.At }

type OrderCreated struct {
	eventMeta
	CustomerID string
	Total      Money
	Items      []OrderItem
}

func (OrderCreated) EventName() string { return "order.created" }

type OrderProcessingStarted struct{ eventMeta }

func (OrderProcessingStarted) EventName() string { return "order.processing_started" }

type OrderCompleted struct{ eventMeta }

func (OrderCompleted) EventName() string { return "order.completed" }

type OrderFailed struct {
	eventMeta
	Reason string
}

func (OrderFailed) EventName() string { return "order.failed" }

type OrderCancelled struct {
	eventMeta
	Reason string
}

func (OrderCancelled) EventName() string { return "order.cancelled" }
