package httpx

import "github.com/shopspring/decimal"

type CreateOrderRequest struct {
	CustomerID string               `json:"customerId"`
	Items      []CreateOrderItemDTO `json:"items"`
}

type CreateOrderItemDTO struct {
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Currency    string          `json:"currency,omitempty"`
	Quantity    int             `json:"quantity"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
