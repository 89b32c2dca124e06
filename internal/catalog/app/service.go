// Package app holds the catalog use cases: product maintenance and the
// all-or-nothing stock reservation made for an order.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/jcmexdev/order-fulfillment/internal/catalog/domain"
	orderdomain "github.com/jcmexdev/order-fulfillment/internal/order-service/domain"
	"github.com/jcmexdev/order-fulfillment/internal/pkg/retry"
)

// ErrAlreadyReserved is returned by ReserveForOrder when the order already
// holds a reservation.
var ErrAlreadyReserved = errors.New("stock already reserved for order")

type Repository interface {
	Get(ctx context.Context, id string) (*domain.Product, error)
	List(ctx context.Context) ([]*domain.Product, error)
	// Save inserts a product with version 0 and otherwise updates it only if
	// the stored version still matches.
	Save(ctx context.Context, p *domain.Product) error
	// ReserveForOrder loads the known products among ids, hands them to fn
	// and commits their changes together with a reservation record for
	// orderID. Nothing is written when fn fails.
	ReserveForOrder(ctx context.Context, orderID string, ids []string, fn func(map[string]*domain.Product) error) error
}

// ReservationError names the product that stopped a reservation.
type ReservationError struct {
	ProductID string
	Err       error
}

func (e *ReservationError) Error() string { return fmt.Sprintf("product %s: %v", e.ProductID, e.Err) }
func (e *ReservationError) Unwrap() error { return e.Err }

type Line struct {
	ProductID string
	Quantity  int
}

type CreateProduct struct {
	ID          string
	Name        string
	Description string
	Price       decimal.Decimal
	Currency    string
	Stock       int
}

type Service struct {
	products Repository
	retry    retry.Config
	log      *slog.Logger
}

func NewService(products Repository, retryCfg retry.Config, log *slog.Logger) *Service {
	retryCfg.Retryable = func(err error) bool {
		return errors.Is(err, domain.ErrConcurrentModification)
	}
	return &Service{
		products: products,
		retry:    retryCfg,
		log:      log.With("component", "catalog"),
	}
}

// DefaultStock seeds a catalog started without configuration.
func DefaultStock() map[string]int {
	return map[string]int{"prod_1": 15, "prod_2": 10, "prod_3": 0}
}

func (s *Service) Create(ctx context.Context, cmd CreateProduct) (*domain.Product, error) {
	price, err := orderdomain.NewMoney(cmd.Price, cmd.Currency)
	if err != nil {
		return nil, err
	}
	p, err := domain.NewProduct(cmd.ID, cmd.Name, cmd.Description, price, cmd.Stock)
	if err != nil {
		return nil, err
	}
	if err := s.products.Save(ctx, p); err != nil {
		return nil, fmt.Errorf("save product: %w", err)
	}
	s.log.InfoContext(ctx, "product created", "product_id", p.ID(), "stock", p.Stock())
	return p, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Product, error) {
	return s.products.Get(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]*domain.Product, error) {
	return s.products.List(ctx)
}

func (s *Service) UpdatePrice(ctx context.Context, id string, amount decimal.Decimal, currency string) (*domain.Product, error) {
	price, err := orderdomain.NewMoney(amount, currency)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, id, func(p *domain.Product) error { return p.UpdatePrice(price) })
}

func (s *Service) AdjustStock(ctx context.Context, id string, delta int) (*domain.Product, error) {
	return s.mutate(ctx, id, func(p *domain.Product) error { return p.AdjustStock(delta) })
}

// Release returns quantity of a product to stock, for example after a
// reserved order was cancelled by hand.
func (s *Service) Release(ctx context.Context, id string, quantity int) (*domain.Product, error) {
	return s.mutate(ctx, id, func(p *domain.Product) error { return p.Release(quantity) })
}

func (s *Service) SetActive(ctx context.Context, id string, active bool) (*domain.Product, error) {
	return s.mutate(ctx, id, func(p *domain.Product) error {
		if active {
			p.Activate()
		} else {
			p.Deactivate()
		}
		return nil
	})
}

func (s *Service) mutate(ctx context.Context, id string, change func(*domain.Product) error) (*domain.Product, error) {
	var out *domain.Product
	err := retry.Do(ctx, s.retry, func(ctx context.Context) error {
		p, err := s.products.Get(ctx, id)
		if err != nil {
			return err
		}
		if err := change(p); err != nil {
			return err
		}
		if err := s.products.Save(ctx, p); err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "product updated", "product_id", id, "stock", out.Stock(), "status", out.Status())
	return out, nil
}

// Reserve takes every line of an order out of stock, or none of them.
// Quantities of repeated products are summed first. A second call for the
// same order succeeds without reserving again.
func (s *Service) Reserve(ctx context.Context, orderID string, lines []Line) error {
	wanted := make(map[string]int, len(lines))
	var ids []string
	for _, l := range lines {
		if _, seen := wanted[l.ProductID]; !seen {
			ids = append(ids, l.ProductID)
		}
		wanted[l.ProductID] += l.Quantity
	}

	err := retry.Do(ctx, s.retry, func(ctx context.Context) error {
		return s.products.ReserveForOrder(ctx, orderID, ids, func(found map[string]*domain.Product) error {
			for _, id := range ids {
				p, ok := found[id]
				if !ok {
					return &ReservationError{ProductID: id, Err: domain.ErrProductNotFound}
				}
				if err := p.Reserve(wanted[id]); err != nil {
					return &ReservationError{ProductID: id, Err: err}
				}
			}
			return nil
		})
	})
	if errors.Is(err, ErrAlreadyReserved) {
		s.log.InfoContext(ctx, "stock already reserved", "order_id", orderID)
		return nil
	}
	if err != nil {
		return err
	}
	for _, id := range ids {
		s.log.InfoContext(ctx, "stock reserved", "order_id", orderID, "product_id", id, "quantity", wanted[id])
	}
	return nil
}

// Seed creates the products of stock that do not exist yet, priced at zero.
// Existing products keep their stock level.
func (s *Service) Seed(ctx context.Context, stock map[string]int) error {
	ids := make([]string, 0, len(stock))
	for id := range stock {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	for _, id := range ids {
		_, err := s.products.Get(ctx, id)
		if err == nil {
			continue
		}
		if !errors.Is(err, domain.ErrProductNotFound) {
			return err
		}
		p, err := domain.NewProduct(id, id, "", orderdomain.ZeroMoney("USD"), stock[id])
		if err != nil {
			return fmt.Errorf("seed %s: %w", id, err)
		}
		if err := s.products.Save(ctx, p); err != nil && !errors.Is(err, domain.ErrConcurrentModification) {
			return fmt.Errorf("seed %s: %w", id, err)
		}
	}
	s.log.InfoContext(ctx, "catalog seeded", "products", len(ids))
	return nil
}
