package gormstore

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jcmexdev/order-fulfillment/internal/order-service/projection"
)

// orderRow and itemRow are plain table mappings. Items are loaded with an
// explicit query, no GORM associations.
type orderRow struct {
	ID          string          `gorm:"primaryKey;size:64"`
	CustomerID  string          `gorm:"size:64;index;not null"`
	Status      string          `gorm:"size:20;not null"`
	TotalAmount decimal.Decimal `gorm:"type:decimal(19,4);not null"`
	Currency    string          `gorm:"size:3;not null"`
	Reason      string          `gorm:"size:512"`
	PlacedAt    time.Time       `gorm:"column:placed_at;index;not null"`
	ChangedAt   *time.Time      `gorm:"column:changed_at"`
}

func (orderRow) TableName() string { return "order_read_models" }

type itemRow struct {
	ID          uint            `gorm:"primaryKey;autoIncrement"`
	OrderID     string          `gorm:"size:64;index;not null"`
	Position    int             `gorm:"not null"`
	ProductID   string          `gorm:"size:64;not null"`
	ProductName string          `gorm:"size:255;not null"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(19,4);not null"`
	Quantity    int             `gorm:"not null"`
	Currency    string          `gorm:"size:3;not null"`
	LineTotal   decimal.Decimal `gorm:"type:decimal(19,4);not null"`
}

func (itemRow) TableName() string { return "order_item_read_models" }

func toRows(v projection.OrderView) (orderRow, []itemRow) {
	row := orderRow{
		ID:          v.ID,
		CustomerID:  v.CustomerID,
		Status:      v.Status,
		TotalAmount: v.TotalAmount,
		Currency:    v.Currency,
		Reason:      v.Reason,
		PlacedAt:    v.CreatedAt,
		ChangedAt:   v.UpdatedAt,
	}
	items := make([]itemRow, len(v.Items))
	for i, it := range v.Items {
		items[i] = itemRow{
			OrderID:     v.ID,
			Position:    i,
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			UnitPrice:   it.UnitPrice,
			Quantity:    it.Quantity,
			Currency:    it.Currency,
			LineTotal:   it.LineTotal,
		}
	}
	return row, items
}

func (r orderRow) toView(items []itemRow) projection.OrderView {
	v := projection.OrderView{
		ID:          r.ID,
		CustomerID:  r.CustomerID,
		Status:      r.Status,
		TotalAmount: r.TotalAmount,
		Currency:    r.Currency,
		Reason:      r.Reason,
		CreatedAt:   r.PlacedAt.UTC(),
		Items:       make([]projection.ItemView, 0, len(items)),
	}
	if r.ChangedAt != nil {
		t := r.ChangedAt.UTC()
		v.UpdatedAt = &t
	}
	for _, it := range items {
		v.Items = append(v.Items, projection.ItemView{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			UnitPrice:   it.UnitPrice,
			Quantity:    it.Quantity,
			Currency:    it.Currency,
			LineTotal:   it.LineTotal,
		})
	}
	return v
}
