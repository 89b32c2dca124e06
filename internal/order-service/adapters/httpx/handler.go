package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jcmexdev/order-fulfillment/internal/order-service/app"
	"github.com/jcmexdev/order-fulfillment/internal/order-service/domain"
	"github.com/jcmexdev/order-fulfillment/internal/order-service/projection"
	"github.com/jcmexdev/order-fulfillment/internal/pkg/interceptors"
)

type OrderCommands interface {
	CreateOrder(ctx context.Context, cmd app.CreateOrderCommand) (app.CreateOrderResult, error)
	ChangeStatus(ctx context.Context, id, status, reason string) error
}

type OrderQueries interface {
	GetOrder(ctx context.Context, id string) (projection.OrderView, error)
	ListByCustomer(ctx context.Context, customerID string) ([]projection.OrderView, error)
	ListAll(ctx context.Context) ([]projection.OrderView, error)
}

// Handler serves the order endpoints. Writes go to the aggregate through
// commands, reads come from the projection.
type Handler struct {
	commands OrderCommands
	queries  OrderQueries
	log      *slog.Logger
}

func NewHandler(commands OrderCommands, queries OrderQueries, log *slog.Logger) *Handler {
	return &Handler{commands: commands, queries: queries, log: log.With("component", "http")}
}

// CreateOrder answers 201 for a new order and 200 when the idempotency key
// matched an earlier request.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	cmd := app.CreateOrderCommand{
		CustomerID:     req.CustomerID,
		IdempotencyKey: interceptors.IdempotencyKey(r.Context()),
		Items:          make([]app.CreateOrderItem, 0, len(req.Items)),
	}
	for _, it := range req.Items {
		cmd.Items = append(cmd.Items, app.CreateOrderItem{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			UnitPrice:   it.UnitPrice,
			Currency:    it.Currency,
			Quantity:    it.Quantity,
		})
	}

	res, err := h.commands.CreateOrder(r.Context(), cmd)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, projection.FromOrder(res.Order))
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	view, err := h.queries.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) ListByCustomer(w http.ResponseWriter, r *http.Request) {
	views, err := h.queries.ListByCustomer(r.Context(), chi.URLParam(r, "customerId"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	views, err := h.queries.ListAll(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if req.Status == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "status is required")
		return
	}

	if err := h.commands.ChangeStatus(r.Context(), chi.URLParam(r, "id"), req.Status, req.Reason); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, domain.ErrOrderNotFound):
		writeError(w, http.StatusNotFound, "order_not_found", err.Error())
	case errors.Is(err, domain.ErrInvalidState):
		writeError(w, http.StatusConflict, "invalid_state", err.Error())
	case errors.Is(err, domain.ErrConcurrentModification):
		writeError(w, http.StatusConflict, "concurrent_modification", err.Error())
	default:
		h.log.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "an unexpected error occurred")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{
		Error:   code,
		Message: msg,
	})
}
