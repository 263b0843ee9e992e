package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodex/dex"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	engine := dex.NewDexEngine(nil)
	srv := NewServer(engine, slog.Default())

	r := gin.New()
	r.Use(RequestID())
	srv.RegisterRoutes(r)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// setupMarket registers an account with funded BASE and QUOTE ledgers plus
// the BASE/QUOTE pair, returning the account id.
func setupMarket(t *testing.T, r *gin.Engine) uuid.UUID {
	t.Helper()

	w := doJSON(t, r, http.MethodPost, "/v1/accounts", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var created struct {
		ID uuid.UUID `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	for _, mint := range []string{"BASE", "QUOTE"} {
		w = doJSON(t, r, http.MethodPost, fmt.Sprintf("/v1/accounts/%s/ledgers", created.ID), gin.H{"mint": mint})
		require.Equal(t, http.StatusCreated, w.Code)
		w = doJSON(t, r, http.MethodPost, fmt.Sprintf("/v1/accounts/%s/deposits", created.ID), gin.H{"mint": mint, "amount": 1000})
		require.Equal(t, http.StatusOK, w.Code)
	}

	w = doJSON(t, r, http.MethodPost, "/v1/pairs", gin.H{"base": "BASE", "quote": "QUOTE"})
	require.Equal(t, http.StatusCreated, w.Code)
	return created.ID
}

func TestAccountLifecycle(t *testing.T) {
	r := newTestRouter(t)

	id := uuid.New()
	w := doJSON(t, r, http.MethodPost, "/v1/accounts", gin.H{"id": id.String()})
	assert.Equal(t, http.StatusCreated, w.Code)

	// Duplicate registration conflicts.
	w = doJSON(t, r, http.MethodPost, "/v1/accounts", gin.H{"id": id.String()})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(t, r, http.MethodPost, fmt.Sprintf("/v1/accounts/%s/ledgers", id), gin.H{"mint": "BASE"})
	assert.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, r, http.MethodPost, fmt.Sprintf("/v1/accounts/%s/deposits", id), gin.H{"mint": "BASE", "amount": 250})
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, fmt.Sprintf("/v1/accounts/%s/balances/BASE", id), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var ledger dex.TokenLedger
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ledger))
	assert.Equal(t, uint64(250), ledger.Available)

	// Overdraft is rejected.
	w = doJSON(t, r, http.MethodPost, fmt.Sprintf("/v1/accounts/%s/withdrawals", id), gin.H{"mint": "BASE", "amount": 500})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestPlaceAndCancelOrder(t *testing.T) {
	r := newTestRouter(t)
	id := setupMarket(t, r)

	w := doJSON(t, r, http.MethodPost, "/v1/orders", gin.H{
		"owner": id.String(), "base": "BASE", "quote": "QUOTE",
		"side": "buy", "type": "limit", "price": "5", "quantity": 10,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var placed struct {
		OrderID uint64 `json:"order_id"`
		Resting bool   `json:"resting"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &placed))
	assert.True(t, placed.Resting)
	assert.NotZero(t, placed.OrderID)

	w = doJSON(t, r, http.MethodGet, fmt.Sprintf("/v1/accounts/%s/orders", id), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), fmt.Sprintf(`"id":%d`, placed.OrderID))

	w = doJSON(t, r, http.MethodDelete, fmt.Sprintf("/v1/orders/%d?owner=%s", placed.OrderID, id), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// The retry maps the idempotent miss to 404.
	w = doJSON(t, r, http.MethodDelete, fmt.Sprintf("/v1/orders/%d?owner=%s", placed.OrderID, id), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMatchAndSettleOverHTTP(t *testing.T) {
	r := newTestRouter(t)
	maker := setupMarket(t, r)

	// A second funded account on the same pair.
	w := doJSON(t, r, http.MethodPost, "/v1/accounts", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var takerResp struct {
		ID uuid.UUID `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &takerResp))
	taker := takerResp.ID
	for _, mint := range []string{"BASE", "QUOTE"} {
		w = doJSON(t, r, http.MethodPost, fmt.Sprintf("/v1/accounts/%s/ledgers", taker), gin.H{"mint": mint})
		require.Equal(t, http.StatusCreated, w.Code)
		w = doJSON(t, r, http.MethodPost, fmt.Sprintf("/v1/accounts/%s/deposits", taker), gin.H{"mint": mint, "amount": 1000})
		require.Equal(t, http.StatusOK, w.Code)
	}

	w = doJSON(t, r, http.MethodPost, "/v1/orders", gin.H{
		"owner": maker.String(), "base": "BASE", "quote": "QUOTE",
		"side": "sell", "type": "limit", "price": "5", "quantity": 10,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, r, http.MethodPost, "/v1/orders", gin.H{
		"owner": taker.String(), "base": "BASE", "quote": "QUOTE",
		"side": "buy", "type": "market", "quantity": 10,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"filled":10`)

	w = doJSON(t, r, http.MethodGet, fmt.Sprintf("/v1/accounts/%s/events", taker), nil)
	require.Equal(t, http.StatusOK, w.Code)

	// Trade event first, then the rollback of the excess lock.
	w = doJSON(t, r, http.MethodPost, "/v1/settlements", gin.H{"owner": taker.String(), "counterparty": maker.String()})
	assert.Equal(t, http.StatusOK, w.Code)
	w = doJSON(t, r, http.MethodPost, "/v1/settlements", gin.H{"owner": taker.String()})
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodPost, "/v1/settlements", gin.H{"owner": taker.String()})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, r, http.MethodGet, fmt.Sprintf("/v1/accounts/%s/balances/BASE", taker), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var ledger dex.TokenLedger
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ledger))
	assert.Equal(t, uint64(1010), ledger.Available)
}

func TestDepthEndpoint(t *testing.T) {
	r := newTestRouter(t)
	id := setupMarket(t, r)

	w := doJSON(t, r, http.MethodPost, "/v1/orders", gin.H{
		"owner": id.String(), "base": "BASE", "quote": "QUOTE",
		"side": "sell", "type": "limit", "price": "6", "quantity": 4,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, r, http.MethodGet, "/v1/pairs/BASE/QUOTE/depth", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var depth dex.Depth
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &depth))
	require.Len(t, depth.Asks, 1)
	assert.True(t, depth.Asks[0].Size.IntPart() == 4)

	w = doJSON(t, r, http.MethodGet, "/v1/pairs/BASE/NOPE/depth", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, r, http.MethodGet, "/v1/pairs/BASE/QUOTE/depth?limit=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPlaceOrderValidation(t *testing.T) {
	r := newTestRouter(t)
	id := setupMarket(t, r)

	w := doJSON(t, r, http.MethodPost, "/v1/orders", gin.H{
		"owner": id.String(), "base": "BASE", "quote": "QUOTE",
		"side": "sideways", "type": "limit", "price": "5", "quantity": 10,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodPost, "/v1/orders", gin.H{
		"owner": id.String(), "base": "BASE", "quote": "QUOTE",
		"side": "buy", "type": "stop", "price": "5", "quantity": 10,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodPost, "/v1/orders", gin.H{
		"owner": id.String(), "base": "BASE", "quote": "QUOTE",
		"side": "buy", "type": "limit", "price": "not-a-number", "quantity": 10,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Needs 5000 quote against 1000 available.
	w = doJSON(t, r, http.MethodPost, "/v1/orders", gin.H{
		"owner": id.String(), "base": "BASE", "quote": "QUOTE",
		"side": "buy", "type": "limit", "price": "5", "quantity": 1000,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestRequestIDHeader(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/v1/accounts", nil)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodPost, "/v1/accounts", bytes.NewBufferString("{}"))
	req.Header.Set("X-Request-ID", "given-id")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, "given-id", rec.Header().Get("X-Request-ID"))
}
