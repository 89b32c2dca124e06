package gormstore

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jcmexdev/order-fulfillment/internal/catalog/domain"
	orderdomain "github.com/jcmexdev/order-fulfillment/internal/order-service/domain"
)

type productRow struct {
	ID          string          `gorm:"primaryKey;size:64"`
	Name        string          `gorm:"size:255;not null"`
	Description string          `gorm:"size:1024"`
	Price       decimal.Decimal `gorm:"type:decimal(19,4);not null"`
	Currency    string          `gorm:"size:3;not null"`
	Stock       int             `gorm:"not null"`
	Status      string          `gorm:"size:20;not null"`
	AddedAt     time.Time       `gorm:"column:added_at;index;not null"`
	ChangedAt   *time.Time      `gorm:"column:changed_at"`
	Version     int64           `gorm:"not null"`
}

func (productRow) TableName() string { return "products" }

// reservationRow marks an order whose stock has been taken. The primary key
// makes a second reservation for the same order fail.
type reservationRow struct {
	OrderID    string    `gorm:"primaryKey;size:64"`
	ReservedAt time.Time `gorm:"not null"`
}

func (reservationRow) TableName() string { return "stock_reservations" }

func toRow(s domain.Snapshot) productRow {
	return productRow{
		ID:          s.ID,
		Name:        s.Name,
		Description: s.Description,
		Price:       s.Price.Amount(),
		Currency:    s.Price.Currency(),
		Stock:       s.Stock,
		Status:      string(s.Status),
		AddedAt:     s.CreatedAt,
		ChangedAt:   s.UpdatedAt,
		Version:     s.Version,
	}
}

func (r productRow) toProduct() (*domain.Product, error) {
	price, err := orderdomain.NewMoney(r.Price, r.Currency)
	if err != nil {
		return nil, err
	}
	return domain.Rehydrate(domain.Snapshot{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Price:       price,
		Stock:       r.Stock,
		Status:      domain.ProductStatus(r.Status),
		CreatedAt:   r.AddedAt,
		UpdatedAt:   r.ChangedAt,
		Version:     r.Version,
	}), nil
}
