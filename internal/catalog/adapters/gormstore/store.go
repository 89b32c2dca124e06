// Package gormstore keeps the catalog in a relational database.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/jcmexdev/order-fulfillment/internal/catalog/app"
	"github.com/jcmexdev/order-fulfillment/internal/catalog/domain"
	"github.com/jcmexdev/order-fulfillment/internal/pkg/gormdb"
)

// Open connects and migrates the catalog tables.
func Open(cfg gormdb.Config, log *slog.Logger) (*gorm.DB, error) {
	return gormdb.Open(cfg, log, &productRow{}, &reservationRow{})
}

// Store implements app.Repository.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Get(ctx context.Context, id string) (*domain.Product, error) {
	var row productRow
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrProductNotFound
		}
		return nil, fmt.Errorf("gorm: get product %s: %w", id, err)
	}
	return row.toProduct()
}

func (s *Store) List(ctx context.Context) ([]*domain.Product, error) {
	var rows []productRow
	if err := s.db.WithContext(ctx).Order("added_at, id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("gorm: list products: %w", err)
	}
	out := make([]*domain.Product, 0, len(rows))
	for _, r := range rows {
		p, err := r.toProduct()
		if err != nil {
			return nil, fmt.Errorf("gorm: product %s: %w", r.ID, err)
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *Store) Save(ctx context.Context, p *domain.Product) error {
	next, err := save(s.db.WithContext(ctx), p)
	if err != nil {
		return err
	}
	p.SetVersion(next)
	return nil
}

func (s *Store) ReserveForOrder(ctx context.Context, orderID string, ids []string, fn func(map[string]*domain.Product) error) error {
	found := make(map[string]*domain.Product, len(ids))
	versions := make(map[string]int64, len(ids))

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		mark := reservationRow{OrderID: orderID, ReservedAt: time.Now().UTC()}
		if err := tx.Create(&mark).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return app.ErrAlreadyReserved
			}
			return fmt.Errorf("gorm: mark reservation %s: %w", orderID, err)
		}

		var rows []productRow
		if len(ids) > 0 {
			if err := tx.Where("id IN ?", ids).Find(&rows).Error; err != nil {
				return fmt.Errorf("gorm: load products: %w", err)
			}
		}
		for _, r := range rows {
			p, err := r.toProduct()
			if err != nil {
				return fmt.Errorf("gorm: product %s: %w", r.ID, err)
			}
			found[r.ID] = p
		}

		if err := fn(found); err != nil {
			return err
		}
		for id, p := range found {
			next, err := save(tx, p)
			if err != nil {
				return err
			}
			versions[id] = next
		}
		return nil
	})
	if err != nil {
		return err
	}
	for id, v := range versions {
		found[id].SetVersion(v)
	}
	return nil
}

// save writes p under the version check and returns its new version.
func save(db *gorm.DB, p *domain.Product) (int64, error) {
	row := toRow(p.Snapshot())
	if p.Version() == 0 {
		row.Version = 1
		if err := db.Create(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return 0, domain.ErrConcurrentModification
			}
			return 0, fmt.Errorf("gorm: insert product %s: %w", p.ID(), err)
		}
		return 1, nil
	}

	next := p.Version() + 1
	res := db.Model(&productRow{}).
		Where("id = ? AND version = ?", p.ID(), p.Version()).
		Updates(map[string]any{
			"name":        row.Name,
			"description": row.Description,
			"price":       row.Price,
			"currency":    row.Currency,
			"stock":       row.Stock,
			"status":      row.Status,
			"changed_at":  row.ChangedAt,
			"version":     next,
		})
	if res.Error != nil {
		return 0, fmt.Errorf("gorm: update product %s: %w", p.ID(), res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, domain.ErrConcurrentModification
	}
	return next, nil
}
