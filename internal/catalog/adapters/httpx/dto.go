package httpx

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jcmexdev/order-fulfillment/internal/catalog/domain"
)

type CreateProductRequest struct {
	ID            string          `json:"id,omitempty"`
	Name          string          `json:"name"`
	Description   string          `json:"description,omitempty"`
	Price         decimal.Decimal `json:"price"`
	Currency      string          `json:"currency,omitempty"`
	StockQuantity int             `json:"stockQuantity"`
}

type UpdatePriceRequest struct {
	Price    decimal.Decimal `json:"price"`
	Currency string          `json:"currency,omitempty"`
}

type AdjustStockRequest struct {
	Delta int `json:"delta"`
}

type ReleaseStockRequest struct {
	Quantity int `json:"quantity"`
}

type ProductResponse struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description,omitempty"`
	Price         decimal.Decimal `json:"price"`
	Currency      string          `json:"currency"`
	StockQuantity int             `json:"stockQuantity"`
	Status        string          `json:"status"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     *time.Time      `json:"updatedAt,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func toResponse(p *domain.Product) ProductResponse {
	s := p.Snapshot()
	return ProductResponse{
		ID:            s.ID,
		Name:          s.Name,
		Description:   s.Description,
		Price:         s.Price.Amount(),
		Currency:      s.Price.Currency(),
		StockQuantity: s.Stock,
		Status:        string(s.Status),
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	}
}
