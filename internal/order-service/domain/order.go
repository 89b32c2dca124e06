package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	StatusPending    OrderStatus = "Pending"
	StatusProcessing OrderStatus = "Processing"
	StatusCompleted  OrderStatus = "Completed"
	StatusFailed     OrderStatus = "Failed"
	StatusCancelled  OrderStatus = "Cancelled"
)

// ParseStatus accepts a status name in any letter case.
func ParseStatus(s string) (OrderStatus, error) {
	for _, st := range []OrderStatus{StatusPending, StatusProcessing, StatusCompleted, StatusFailed, StatusCancelled} {
		if strings.EqualFold(s, string(st)) {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: unknown order status %q", ErrInvalidInput, s)
}

// IsTerminal reports whether no further transition is accepted.
func (s OrderStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

type OrderItem struct {
	ProductID   string
	ProductName string
	UnitPrice   Money
	Quantity    int
}

func (i OrderItem) Subtotal() Money {
	return i.UnitPrice.Times(i.Quantity)
}

func (i OrderItem) validate(pos int) error {
	switch {
	case strings.TrimSpace(i.ProductID) == "":
		return fmt.Errorf("%w: item %d: product id is required", ErrInvalidInput, pos)
	case strings.TrimSpace(i.ProductName) == "":
		return fmt.Errorf("%w: item %d: product name is required", ErrInvalidInput, pos)
	case i.Quantity <= 0:
		return fmt.Errorf("%w: item %d: quantity must be greater than zero", ErrInvalidInput, pos)
	case !i.UnitPrice.IsPositive():
		return fmt.Errorf("%w: item %d: price must be greater than zero", ErrInvalidInput, pos)
	}
	return nil
}

// Order is the unit of write consistency. State changes only through the
// transition methods, each of which records an Event.
type Order struct {
	id         string
	customerID string
	items      []OrderItem
	total      Money
	status     OrderStatus
	reason     string
	createdAt  time.Time
	updatedAt  *time.Time
	version    int64

	events []Event
}

var now = func() time.Time { return time.Now().UTC() }

// NewOrderID returns a time-ordered UUID.
func NewOrderID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// NewOrder validates the items and returns a Pending order whose total is
// the sum of the line subtotals.
func NewOrder(customerID string, items []OrderItem) (*Order, error) {
	if strings.TrimSpace(customerID) == "" {
		return nil, fmt.Errorf("%w: customer id is required", ErrInvalidInput)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: order must contain at least one item", ErrInvalidInput)
	}

	total := ZeroMoney(items[0].UnitPrice.Currency())
	for i, item := range items {
		if err := item.validate(i); err != nil {
			return nil, err
		}
		var err error
		if total, err = total.Add(item.Subtotal()); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
	}

	o := &Order{
		id:         NewOrderID(),
		customerID: customerID,
		items:      append([]OrderItem(nil), items...),
		total:      total,
		status:     StatusPending,
		createdAt:  now(),
	}
	o.record(OrderCreated{
		eventMeta:  o.meta(),
		CustomerID: o.customerID,
		Total:      o.total,
		Items:      o.Items(),
	})
	return o, nil
}

func (o *Order) ID() string           { return o.id }
func (o *Order) CustomerID() string   { return o.customerID }
func (o *Order) Total() Money         { return o.total }
func (o *Order) Status() OrderStatus  { return o.status }
func (o *Order) Reason() string       { return o.reason }
func (o *Order) CreatedAt() time.Time { return o.createdAt }
func (o *Order) Version() int64       { return o.version }

// Items returns a copy of the order lines.
func (o *Order) Items() []OrderItem {
	return append([]OrderItem(nil), o.items...)
}

// UpdatedAt returns the time of the last transition, if any.
func (o *Order) UpdatedAt() (time.Time, bool) {
	if o.updatedAt == nil {
		return time.Time{}, false
	}
	return *o.updatedAt, true
}

// SetVersion is called by stores after a successful save.
func (o *Order) SetVersion(v int64) { o.version = v }

func (o *Order) BeginProcessing() error {
	if o.status != StatusPending {
		return o.rejectTransition(StatusProcessing)
	}
	o.status = StatusProcessing
	o.touch()
	o.record(OrderProcessingStarted{eventMeta: o.meta()})
	return nil
}

func (o *Order) Complete() error {
	if o.status != StatusProcessing {
		return o.rejectTransition(StatusCompleted)
	}
	o.status = StatusCompleted
	o.touch()
	o.record(OrderCompleted{eventMeta: o.meta()})
	return nil
}

// Fail moves a Pending or Processing order to Failed.
func (o *Order) Fail(reason string) error {
	if o.status.IsTerminal() {
		return o.rejectTransition(StatusFailed)
	}
	o.status = StatusFailed
	o.reason = reason
	o.touch()
	o.record(OrderFailed{eventMeta: o.meta(), Reason: reason})
	return nil
}

// Cancel moves a Pending or Processing order to Cancelled. The reason may be empty.
func (o *Order) Cancel(reason string) error {
	if o.status.IsTerminal() {
		return o.rejectTransition(StatusCancelled)
	}
	o.status = StatusCancelled
	o.reason = reason
	o.touch()
	o.record(OrderCancelled{eventMeta: o.meta(), Reason: reason})
	return nil
}

// TransitionTo dispatches to the named transition method.
func (o *Order) TransitionTo(target OrderStatus, reason string) error {
	switch target {
	case StatusProcessing:
		return o.BeginProcessing()
	case StatusCompleted:
		return o.Complete()
	case StatusFailed:
		return o.Fail(reason)
	case StatusCancelled:
		return o.Cancel(reason)
	default:
		return o.rejectTransition(target)
	}
}

// PullEvents returns the recorded facts and clears them.
func (o *Order) PullEvents() []Event {
	events := o.events
	o.events = nil
	return events
}

func (o *Order) rejectTransition(to OrderStatus) error {
	return fmt.Errorf("%w: order %s cannot move from %s to %s", ErrInvalidState, o.id, o.status, to)
}

func (o *Order) touch() {
	t := now()
	o.updatedAt = &t
}

func (o *Order) meta() eventMeta {
	return eventMeta{OrderID: o.id, At: now()}
}

func (o *Order) record(e Event) {
	o.events = append(o.events, e)
}

// Snapshot is the storage shape of an Order, used by store codecs.
type Snapshot struct {
	ID         string
	CustomerID string
	Items      []OrderItem
	Total      Money
	Status     OrderStatus
	Reason     string
	CreatedAt  time.Time
	UpdatedAt  *time.Time
	Version    int64
}

func (o *Order) Snapshot() Snapshot {
	s := Snapshot{
		ID:         o.id,
		CustomerID: o.customerID,
		Items:      o.Items(),
		Total:      o.total,
		Status:     o.status,
		Reason:     o.reason,
		CreatedAt:  o.createdAt,
		Version:    o.version,
	}
	if o.updatedAt != nil {
		t := *o.updatedAt
		s.UpdatedAt = &t
	}
	return s
}

// Rehydrate rebuilds an Order from storage. No events are recorded and the
// stored total is kept as is.
func Rehydrate(s Snapshot) *Order {
	o := &Order{
		id:         s.ID,
		customerID: s.CustomerID,
		items:      append([]OrderItem(nil), s.Items...),
		total:      s.Total,
		status:     s.Status,
		reason:     s.Reason,
		createdAt:  s.CreatedAt,
		version:    s.Version,
	}
	if s.UpdatedAt != nil {
		t := *s.UpdatedAt
		o.updatedAt = &t
	}
	return o
}
