package mongo

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jcmexdev/order-fulfillment/internal/order-service/domain"
)

// orderDocument is the stored shape of an order. Amounts are decimal strings
// so no precision is lost to BSON doubles.
type orderDocument struct {
	ID         string         `bson:"_id"`
	CustomerID string         `bson:"customerId"`
	Items      []itemDocument `bson:"items"`
	Total      string         `bson:"totalAmount"`
	Currency   string         `bson:"currency"`
	Status     string         `bson:"status"`
	Reason     string         `bson:"reason,omitempty"`
	CreatedAt  time.Time      `bson:"createdAt"`
	UpdatedAt  *time.Time     `bson:"updatedAt,omitempty"`
	Version    int64          `bson:"version"`
}

type itemDocument struct {
	ProductID   string `bson:"productId"`
	ProductName string `bson:"productName"`
	UnitPrice   string `bson:"unitPrice"`
	Currency    string `bson:"currency"`
	Quantity    int    `bson:"quantity"`
}

func toDocument(s domain.Snapshot) orderDocument {
	doc := orderDocument{
		ID:         s.ID,
		CustomerID: s.CustomerID,
		Items:      make([]itemDocument, 0, len(s.Items)),
		Total:      s.Total.Amount().String(),
		Currency:   s.Total.Currency(),
		Status:     string(s.Status),
		Reason:     s.Reason,
		CreatedAt:  s.CreatedAt,
		UpdatedAt:  s.UpdatedAt,
		Version:    s.Version,
	}
	for _, it := range s.Items {
		doc.Items = append(doc.Items, itemDocument{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			UnitPrice:   it.UnitPrice.Amount().String(),
			Currency:    it.UnitPrice.Currency(),
			Quantity:    it.Quantity,
		})
	}
	return doc
}

func fromDocument(doc orderDocument) (domain.Snapshot, error) {
	total, err := parseMoney(doc.Total, doc.Currency)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("order %s total: %w", doc.ID, err)
	}
	status, err := domain.ParseStatus(doc.Status)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("order %s: %w", doc.ID, err)
	}

	s := domain.Snapshot{
		ID:         doc.ID,
		CustomerID: doc.CustomerID,
		Items:      make([]domain.OrderItem, 0, len(doc.Items)),
		Total:      total,
		Status:     status,
		Reason:     doc.Reason,
		CreatedAt:  doc.CreatedAt.UTC(),
		Version:    doc.Version,
	}
	if doc.UpdatedAt != nil {
		t := doc.UpdatedAt.UTC()
		s.UpdatedAt = &t
	}
	for i, it := range doc.Items {
		price, err := parseMoney(it.UnitPrice, it.Currency)
		if err != nil {
			return domain.Snapshot{}, fmt.Errorf("order %s item %d: %w", doc.ID, i, err)
		}
		s.Items = append(s.Items, domain.OrderItem{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			UnitPrice:   price,
			Quantity:    it.Quantity,
		})
	}
	return s, nil
}

func parseMoney(amount, currency string) (domain.Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return domain.Money{}, err
	}
	return domain.NewMoney(d, currency)
}
