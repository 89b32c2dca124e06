// Package httpx exposes the catalog over HTTP.
package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/jcmexdev/order-fulfillment/internal/catalog/app"
	"github.com/jcmexdev/order-fulfillment/internal/catalog/domain"
	"github.com/jcmexdev/order-fulfillment/internal/pkg/middlewares"
)

type Catalog interface {
	Create(ctx context.Context, cmd app.CreateProduct) (*domain.Product, error)
	Get(ctx context.Context, id string) (*domain.Product, error)
	List(ctx context.Context) ([]*domain.Product, error)
	UpdatePrice(ctx context.Context, id string, amount decimal.Decimal, currency string) (*domain.Product, error)
	AdjustStock(ctx context.Context, id string, delta int) (*domain.Product, error)
	Release(ctx context.Context, id string, quantity int) (*domain.Product, error)
	SetActive(ctx context.Context, id string, active bool) (*domain.Product, error)
}

type Handler struct {
	catalog Catalog
	log     *slog.Logger
}

func NewHandler(catalog Catalog, log *slog.Logger) *Handler {
	return &Handler{catalog: catalog, log: log.With("component", "http")}
}

func NewRouter(h *Handler, log *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middlewares.AttachRequestMetadata)
	r.Use(middlewares.Tracing)
	r.Use(middlewares.Logging(log))
	r.Use(middleware.Recoverer)
	r.Use(middlewares.Metrics)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/products", func(r chi.Router) {
		r.Post("/", h.CreateProduct)
		r.Get("/", h.ListProducts)
		r.Get("/{id}", h.GetProduct)
		r.Put("/{id}/price", h.UpdatePrice)
		r.Post("/{id}/stock", h.AdjustStock)
		r.Post("/{id}/release", h.ReleaseStock)
		r.Post("/{id}/activate", h.setActive(true))
		r.Post("/{id}/deactivate", h.setActive(false))
	})
	return r
}

func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := h.catalog.Create(r.Context(), app.CreateProduct{
		ID:          req.ID,
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Currency:    req.Currency,
		Stock:       req.StockQuantity,
	})
	h.respond(w, r, http.StatusCreated, p, err)
}

func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.catalog.Get(r.Context(), chi.URLParam(r, "id"))
	h.respond(w, r, http.StatusOK, p, err)
}

func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.List(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	out := make([]ProductResponse, 0, len(products))
	for _, p := range products {
		out = append(out, toResponse(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) UpdatePrice(w http.ResponseWriter, r *http.Request) {
	var req UpdatePriceRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := h.catalog.UpdatePrice(r.Context(), chi.URLParam(r, "id"), req.Price, req.Currency)
	h.respond(w, r, http.StatusOK, p, err)
}

func (h *Handler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	var req AdjustStockRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := h.catalog.AdjustStock(r.Context(), chi.URLParam(r, "id"), req.Delta)
	h.respond(w, r, http.StatusOK, p, err)
}

func (h *Handler) ReleaseStock(w http.ResponseWriter, r *http.Request) {
	var req ReleaseStockRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := h.catalog.Release(r.Context(), chi.URLParam(r, "id"), req.Quantity)
	h.respond(w, r, http.StatusOK, p, err)
}

func (h *Handler) setActive(active bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := h.catalog.SetActive(r.Context(), chi.URLParam(r, "id"), active)
		h.respond(w, r, http.StatusOK, p, err)
	}
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, status int, p *domain.Product, err error) {
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, status, toResponse(p))
}

func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, domain.ErrProductNotFound):
		writeError(w, http.StatusNotFound, "product_not_found", err.Error())
	case errors.Is(err, domain.ErrInsufficientStock):
		writeError(w, http.StatusConflict, "insufficient_stock", err.Error())
	case errors.Is(err, domain.ErrConcurrentModification):
		writeError(w, http.StatusConflict, "concurrent_modification", err.Error())
	default:
		h.log.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "an unexpected error occurred")
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{Error: code, Message: msg})
}
