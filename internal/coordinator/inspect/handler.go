// Package inspect exposes saga state and audit history over HTTP for
// operators.
package inspect

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/jcmexdev/order-fulfillment/internal/coordinator/saga"
	"github.com/jcmexdev/order-fulfillment/internal/coordinator/sagalog"
	"github.com/jcmexdev/order-fulfillment/internal/coordinator/sagastore"
)

type SagaResponse struct {
	OrderID           string          `json:"orderId"`
	CustomerID        string          `json:"customerId"`
	TotalAmount       decimal.Decimal `json:"totalAmount"`
	Currency          string          `json:"currency"`
	Phase             saga.Phase      `json:"phase"`
	PaymentDone       bool            `json:"paymentDone"`
	InventoryDone     bool            `json:"inventoryDone"`
	ShippingRequested bool            `json:"shippingRequested"`
	ShippingDone      bool            `json:"shippingDone"`
	TrackingNumber    string          `json:"trackingNumber,omitempty"`
	FailureReason     string          `json:"failureReason,omitempty"`
	PendingMessages   int             `json:"pendingMessages"`
	Version           int64           `json:"version"`
	History           []HistoryEntry  `json:"history"`
}

type HistoryEntry struct {
	MessageType string    `json:"messageType"`
	Outcome     string    `json:"outcome"`
	Phase       string    `json:"phase,omitempty"`
	Note        string    `json:"note,omitempty"`
	TraceID     string    `json:"traceId,omitempty"`
	RecordedAt  time.Time `json:"recordedAt"`
}

type Handler struct {
	store sagastore.Store
	audit sagalog.Repository
}

func NewHandler(store sagastore.Store, audit sagalog.Repository) *Handler {
	return &Handler{store: store, audit: audit}
}

func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/sagas/{orderId}", h.GetSaga)
	return r
}

func (h *Handler) GetSaga(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	st, err := h.store.Load(r.Context(), orderID)
	if errors.Is(err, sagastore.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "saga_not_found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal_error"})
		return
	}

	resp := SagaResponse{
		OrderID:           st.OrderID,
		CustomerID:        st.CustomerID,
		TotalAmount:       st.TotalAmount,
		Currency:          st.Currency,
		Phase:             st.Phase(),
		PaymentDone:       st.PaymentDone,
		InventoryDone:     st.InventoryDone,
		ShippingRequested: st.ShippingRequested,
		ShippingDone:      st.ShippingDone,
		TrackingNumber:    st.TrackingNumber,
		FailureReason:     st.FailureReason,
		PendingMessages:   len(st.Outbox),
		Version:           st.Version,
		History:           []HistoryEntry{},
	}

	if h.audit != nil {
		entries, err := h.audit.History(r.Context(), orderID)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal_error"})
			return
		}
		for _, e := range entries {
			resp.History = append(resp.History, HistoryEntry{
				MessageType: e.MessageType,
				Outcome:     string(e.Outcome),
				Phase:       e.Phase,
				Note:        e.Note,
				TraceID:     e.TraceID,
				RecordedAt:  e.RecordedAt,
			})
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
