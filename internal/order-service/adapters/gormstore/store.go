// Package gormstore is the relational read model for orders.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/jcmexdev/order-fulfillment/internal/order-service/domain"
	"github.com/jcmexdev/order-fulfillment/internal/order-service/projection"
	"github.com/jcmexdev/order-fulfillment/internal/pkg/gormdb"
)

// Open connects and migrates the read model tables.
func Open(cfg gormdb.Config, log *slog.Logger) (*gorm.DB, error) {
	return gormdb.Open(cfg, log, &orderRow{}, &itemRow{})
}

// ReadModel implements projection.ReadModel.
type ReadModel struct {
	db *gorm.DB
}

func NewReadModel(db *gorm.DB) *ReadModel {
	return &ReadModel{db: db}
}

// Upsert replaces the order row and its items in one transaction.
func (m *ReadModel) Upsert(ctx context.Context, v projection.OrderView) error {
	row, items := toRows(v)
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("order_id = ?", v.ID).Delete(&itemRow{}).Error; err != nil {
			return err
		}
		if err := tx.Where("id = ?", v.ID).Delete(&orderRow{}).Error; err != nil {
			return err
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		if len(items) > 0 {
			if err := tx.Create(&items).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("gorm: upsert order %s: %w", v.ID, err)
	}
	return nil
}

func (m *ReadModel) Get(ctx context.Context, id string) (projection.OrderView, error) {
	db := m.db.WithContext(ctx)

	var row orderRow
	if err := db.First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return projection.OrderView{}, domain.ErrOrderNotFound
		}
		return projection.OrderView{}, fmt.Errorf("gorm: get order %s: %w", id, err)
	}

	views, err := m.withItems(db, []orderRow{row})
	if err != nil {
		return projection.OrderView{}, err
	}
	return views[0], nil
}

func (m *ReadModel) ListByCustomer(ctx context.Context, customerID string) ([]projection.OrderView, error) {
	db := m.db.WithContext(ctx)
	var rows []orderRow
	if err := db.Where("customer_id = ?", customerID).Order("placed_at DESC, id DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("gorm: list orders of %s: %w", customerID, err)
	}
	return m.withItems(db, rows)
}

func (m *ReadModel) List(ctx context.Context) ([]projection.OrderView, error) {
	db := m.db.WithContext(ctx)
	var rows []orderRow
	if err := db.Order("placed_at DESC, id DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("gorm: list orders: %w", err)
	}
	return m.withItems(db, rows)
}

// withItems loads the lines of all rows in one query.
func (m *ReadModel) withItems(db *gorm.DB, rows []orderRow) ([]projection.OrderView, error) {
	views := make([]projection.OrderView, 0, len(rows))
	if len(rows) == 0 {
		return views, nil
	}

	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	var items []itemRow
	if err := db.Where("order_id IN ?", ids).Order("order_id, position").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("gorm: load order items: %w", err)
	}

	byOrder := make(map[string][]itemRow, len(rows))
	for _, it := range items {
		byOrder[it.OrderID] = append(byOrder[it.OrderID], it)
	}
	for _, r := range rows {
		views = append(views, r.toView(byOrder[r.ID]))
	}
	return views, nil
}
