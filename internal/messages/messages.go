// Package messages defines the contracts exchanged between the order service,
// the fulfillment coordinator and the capability providers.
//
// Every message is keyed by its order id. The type name doubles as the
// routing key on the broker.
package messages

import "github.com/shopspring/decimal"

// Message is implemented by every contract in this package.
type Message interface {
	MessageType() string
	OrderKey() string
}

const (
	TypeStartFulfillment = "fulfillment.start"
	TypeProcessPayment   = "payment.process"
	TypeCheckInventory   = "inventory.check"
	TypeProcessShipping  = "shipping.process"
	TypePaymentResult    = "payment.result"
	TypeInventoryResult  = "inventory.result"
	TypeShippingResult   = "shipping.result"
	TypeOrderCompleted   = "order.completed"
	TypeOrderFailed      = "order.failed"
)

type OrderItem struct {
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
}

type StartFulfillment struct {
	OrderID     string          `json:"orderId"`
	CustomerID  string          `json:"customerId"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Currency    string          `json:"currency,omitempty"`
	Items       []OrderItem     `json:"items,omitempty"`
}

type ProcessPaymentCommand struct {
	OrderID  string          `json:"orderId"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency,omitempty"`
}

type CheckInventoryCommand struct {
	OrderID string      `json:"orderId"`
	Items   []OrderItem `json:"items"`
}

type ProcessShippingCommand struct {
	OrderID string `json:"orderId"`
}

type PaymentResult struct {
	OrderID       string `json:"orderId"`
	Success       bool   `json:"success"`
	FailureReason string `json:"failureReason,omitempty"`
}

type InventoryResult struct {
	OrderID       string `json:"orderId"`
	Available     bool   `json:"available"`
	FailureReason string `json:"failureReason,omitempty"`
}

type ShippingResult struct {
	OrderID        string `json:"orderId"`
	TrackingNumber string `json:"trackingNumber"`
}

type OrderCompleted struct {
	OrderID string `json:"orderId"`
}

type OrderFailed struct {
	OrderID string `json:"orderId"`
	Reason  string `json:"reason"`
}

func (StartFulfillment) MessageType() string       { return TypeStartFulfillment }
func (ProcessPaymentCommand) MessageType() string  { return TypeProcessPayment }
func (CheckInventoryCommand) MessageType() string  { return TypeCheckInventory }
func (ProcessShippingCommand) MessageType() string { return TypeProcessShipping }
func (PaymentResult) MessageType() string          { return TypePaymentResult }
func (InventoryResult) MessageType() string        { return TypeInventoryResult }
func (ShippingResult) MessageType() string         { return TypeShippingResult }
func (OrderCompleted) MessageType() string         { return TypeOrderCompleted }
func (OrderFailed) MessageType() string            { return TypeOrderFailed }

func (m StartFulfillment) OrderKey() string       { return m.OrderID }
func (m ProcessPaymentCommand) OrderKey() string  { return m.OrderID }
func (m CheckInventoryCommand) OrderKey() string  { return m.OrderID }
func (m ProcessShippingCommand) OrderKey() string { return m.OrderID }
func (m PaymentResult) OrderKey() string          { return m.OrderID }
func (m InventoryResult) OrderKey() string        { return m.OrderID }
func (m ShippingResult) OrderKey() string         { return m.OrderID }
func (m OrderCompleted) OrderKey() string         { return m.OrderID }
func (m OrderFailed) OrderKey() string            { return m.OrderID }
