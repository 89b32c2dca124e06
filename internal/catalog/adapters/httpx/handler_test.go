package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/order-fulfillment/internal/catalog/adapters/memory"
	"github.com/jcmexdev/order-fulfillment/internal/catalog/app"
	"github.com/jcmexdev/order-fulfillment/internal/pkg/retry"
)

func newServer(t *testing.T) http.Handler {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := app.NewService(memory.NewStore(), retry.Config{MaxAttempts: 2, InitialDelay: time.Millisecond}, log)
	require.NoError(t, svc.Seed(context.Background(), map[string]int{"prod_1": 2}))
	return NewRouter(NewHandler(svc, log), log)
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, ProductResponse) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, reader))

	var out ProductResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return rec, out
}

func TestCreateAndGetProduct(t *testing.T) {
	h := newServer(t)

	rec, created := do(t, h, http.MethodPost, "/products/",
		`{"name":"Desk","description":"Oak","price":"120.00","stockQuantity":4}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "USD", created.Currency)
	assert.Equal(t, "Active", created.Status)

	rec, got := do(t, h, http.MethodGet, "/products/"+created.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 4, got.StockQuantity)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var all []ProductResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	assert.Len(t, all, 2)
}

func TestStockEndpoints(t *testing.T) {
	h := newServer(t)

	rec, p := do(t, h, http.MethodPost, "/products/prod_1/stock", `{"delta":-2}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Zero(t, p.StockQuantity)

	rec, _ = do(t, h, http.MethodPost, "/products/prod_1/stock", `{"delta":-1}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, p = do(t, h, http.MethodPost, "/products/prod_1/release", `{"quantity":3}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, p.StockQuantity)

	rec, _ = do(t, h, http.MethodPost, "/products/prod_1/release", `{"quantity":0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, p = do(t, h, http.MethodPost, "/products/prod_1/deactivate", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Inactive", p.Status)
}

func TestPriceAndErrors(t *testing.T) {
	h := newServer(t)

	rec, p := do(t, h, http.MethodPut, "/products/prod_1/price", `{"price":"9.5","currency":"eur"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "EUR", p.Currency)

	rec, _ = do(t, h, http.MethodPut, "/products/prod_1/price", `{"price":"0"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, h, http.MethodGet, "/products/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(t, h, http.MethodPost, "/products/", `{"name":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, h, http.MethodPost, "/products/", `{"name":"Neg","price":"1","stockQuantity":-1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
