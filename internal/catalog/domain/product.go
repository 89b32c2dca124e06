// Package domain holds the Product aggregate of the catalog: price, stock
// level and whether the product can still be sold.
package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	orderdomain "github.com/jcmexdev/order-fulfillment/internal/order-service/domain"
)

// Money is shared with orders so a product price can be copied onto an
// order line as is.
type Money = orderdomain.Money

var (
	// ErrInvalidInput is the order domain's sentinel, so both contexts map
	// to the same HTTP status.
	ErrInvalidInput = orderdomain.ErrInvalidInput

	ErrProductNotFound = errors.New("product not found")

	// ErrInsufficientStock means a reservation or adjustment would take the
	// stock level below zero.
	ErrInsufficientStock = errors.New("insufficient stock")

	ErrProductInactive = errors.New("product inactive")

	ErrConcurrentModification = orderdomain.ErrConcurrentModification
)

type ProductStatus string

const (
	StatusActive   ProductStatus = "Active"
	StatusInactive ProductStatus = "Inactive"
)

// Product keeps its stock level at zero or above at all times.
type Product struct {
	id          string
	name        string
	description string
	price       Money
	stock       int
	status      ProductStatus
	createdAt   time.Time
	updatedAt   *time.Time
	version     int64
}

var now = func() time.Time { return time.Now().UTC() }

// NewProduct creates an active product. An empty id gets a generated one.
func NewProduct(id, name, description string, price Money, stock int) (*Product, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		v7, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("product id: %w", err)
		}
		id = v7.String()
	}
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: product name is required", ErrInvalidInput)
	}
	if stock < 0 {
		return nil, fmt.Errorf("%w: stock quantity cannot be negative", ErrInvalidInput)
	}
	return &Product{
		id:          id,
		name:        name,
		description: description,
		price:       price,
		stock:       stock,
		status:      StatusActive,
		createdAt:   now(),
	}, nil
}

func (p *Product) ID() string            { return p.id }
func (p *Product) Name() string          { return p.name }
func (p *Product) Description() string   { return p.description }
func (p *Product) Price() Money          { return p.price }
func (p *Product) Stock() int            { return p.stock }
func (p *Product) Status() ProductStatus { return p.status }
func (p *Product) CreatedAt() time.Time  { return p.createdAt }
func (p *Product) Version() int64        { return p.version }

func (p *Product) UpdatedAt() (time.Time, bool) {
	if p.updatedAt == nil {
		return time.Time{}, false
	}
	return *p.updatedAt, true
}

// SetVersion is called by stores after a successful save.
func (p *Product) SetVersion(v int64) { p.version = v }

func (p *Product) UpdatePrice(price Money) error {
	if !price.IsPositive() {
		return fmt.Errorf("%w: price must be greater than zero", ErrInvalidInput)
	}
	p.price = price
	p.touch()
	return nil
}

// AdjustStock adds delta, which may be negative, to the stock level.
func (p *Product) AdjustStock(delta int) error {
	if p.stock+delta < 0 {
		return fmt.Errorf("%w: %s has %d, adjustment %d", ErrInsufficientStock, p.id, p.stock, delta)
	}
	p.stock += delta
	p.touch()
	return nil
}

// Reserve takes quantity out of stock for an order.
func (p *Product) Reserve(quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: quantity must be greater than zero", ErrInvalidInput)
	}
	if p.status != StatusActive {
		return fmt.Errorf("%w: %s", ErrProductInactive, p.id)
	}
	if p.stock < quantity {
		return fmt.Errorf("%w: %s has %d, requested %d", ErrInsufficientStock, p.id, p.stock, quantity)
	}
	p.stock -= quantity
	p.touch()
	return nil
}

// Release puts reserved quantity back into stock.
func (p *Product) Release(quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: quantity must be greater than zero", ErrInvalidInput)
	}
	p.stock += quantity
	p.touch()
	return nil
}

func (p *Product) Deactivate() {
	if p.status == StatusInactive {
		return
	}
	p.status = StatusInactive
	p.touch()
}

func (p *Product) Activate() {
	if p.status == StatusActive {
		return
	}
	p.status = StatusActive
	p.touch()
}

func (p *Product) touch() {
	t := now()
	p.updatedAt = &t
}

// Snapshot is the storage shape of a Product.
type Snapshot struct {
	ID          string
	Name        string
	Description string
	Price       Money
	Stock       int
	Status      ProductStatus
	CreatedAt   time.Time
	UpdatedAt   *time.Time
	Version     int64
}

func (p *Product) Snapshot() Snapshot {
	s := Snapshot{
		ID:          p.id,
		Name:        p.name,
		Description: p.description,
		Price:       p.price,
		Stock:       p.stock,
		Status:      p.status,
		CreatedAt:   p.createdAt,
		Version:     p.version,
	}
	if p.updatedAt != nil {
		t := *p.updatedAt
		s.UpdatedAt = &t
	}
	return s
}

func Rehydrate(s Snapshot) *Product {
	p := &Product{
		id:          s.ID,
		name:        s.Name,
		description: s.Description,
		price:       s.Price,
		stock:       s.Stock,
		status:      s.Status,
		createdAt:   s.CreatedAt,
		version:     s.Version,
	}
	if s.UpdatedAt != nil {
		t := *s.UpdatedAt
		p.updatedAt = &t
	}
	return p
}
