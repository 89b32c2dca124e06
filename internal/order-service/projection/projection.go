// Package projection keeps the query-side view of orders in step with the
// aggregate. Views are rebuilt whole from a snapshot on every change, so
// projecting the same order twice leaves the store unchanged.
package projection

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jcmexdev/order-fulfillment/internal/order-service/domain"
)

type OrderView struct {
	ID          string          `json:"id"`
	CustomerID  string          `json:"customerId"`
	Status      string          `json:"status"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Currency    string          `json:"currency"`
	Reason      string          `json:"failureReason,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   *time.Time      `json:"updatedAt,omitempty"`
	Items       []ItemView      `json:"items"`
}

type ItemView struct {
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Quantity    int             `json:"quantity"`
	Currency    string          `json:"currency"`
	LineTotal   decimal.Decimal `json:"lineTotal"`
}

// FromOrder builds the view of o. Item order is preserved.
func FromOrder(o *domain.Order) OrderView {
	s := o.Snapshot()
	v := OrderView{
		ID:          s.ID,
		CustomerID:  s.CustomerID,
		Status:      string(s.Status),
		TotalAmount: s.Total.Amount(),
		Currency:    s.Total.Currency(),
		Reason:      s.Reason,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
		Items:       make([]ItemView, 0, len(s.Items)),
	}
	for _, it := range s.Items {
		v.Items = append(v.Items, ItemView{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			UnitPrice:   it.UnitPrice.Amount(),
			Quantity:    it.Quantity,
			Currency:    it.UnitPrice.Currency(),
			LineTotal:   it.Subtotal().Amount(),
		})
	}
	return v
}

// Store replaces the stored view of an order atomically.
type Store interface {
	Upsert(ctx context.Context, view OrderView) error
}

// Reader answers queries. Get returns domain.ErrOrderNotFound for an unknown id.
type Reader interface {
	Get(ctx context.Context, id string) (OrderView, error)
	ListByCustomer(ctx context.Context, customerID string) ([]OrderView, error)
	List(ctx context.Context) ([]OrderView, error)
}

type ReadModel interface {
	Store
	Reader
}

type Service struct {
	store Store
	log   *slog.Logger
}

func NewService(store Store, log *slog.Logger) *Service {
	return &Service{store: store, log: log.With("component", "projection")}
}

// Project writes the current view of o.
func (s *Service) Project(ctx context.Context, o *domain.Order) error {
	view := FromOrder(o)
	if err := s.store.Upsert(ctx, view); err != nil {
		return fmt.Errorf("project order %s: %w", o.ID(), err)
	}
	s.log.DebugContext(ctx, "order projected", "order_id", view.ID, "status", view.Status)
	return nil
}
