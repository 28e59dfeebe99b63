package api_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guyvdb/tradestore/api"
	"github.com/guyvdb/tradestore/codec"
	"github.com/guyvdb/tradestore/repository"
	"github.com/guyvdb/tradestore/trade"
)

type testEnv struct {
	router  chi.Router
	trades  *repository.TradeRepository
	archive *repository.TradeRepository
	ledger  *repository.AccountRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	trades, err := repository.OpenTrades(repository.Layout{DataDir: dir, Namespace: "live"})
	require.NoError(t, err)
	archive, err := repository.OpenArchive(repository.Layout{DataDir: dir, Namespace: "archive"})
	require.NoError(t, err)
	ledger, err := repository.OpenAccount(repository.Layout{DataDir: dir, Namespace: "live"})
	require.NoError(t, err)
	t.Cleanup(func() {
		trades.Close()
		archive.Close()
		ledger.Close()
	})

	archiver := func(ctx context.Context, id int64) error {
		return repository.Archive(ctx, trades, archive, id)
	}
	srv := api.NewServer(trades, ledger, archiver)
	return &testEnv{router: srv.Router(), trades: trades, archive: archive, ledger: ledger}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := codec.JSON.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, codec.JSON.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func newTrade(t *testing.T, symbol string) *trade.Trade {
	t.Helper()
	tr, err := trade.New(symbol, &trade.Plan{
		Capital:       decimal.NewFromInt(100000),
		PercentRisked: decimal.NewFromInt(1),
		BuyRangeLow:   decimal.NewFromInt(98),
		BuyRangeHigh:  decimal.NewFromInt(102),
		StopLoss:      decimal.NewFromInt(90),
	})
	require.NoError(t, err)
	return tr
}

func contract(size int64, price int64, day int, sale bool) api.ContractRequest {
	return api.ContractRequest{
		Size:  size,
		Price: decimal.NewFromInt(price),
		Date:  time.Date(2024, 5, day, 0, 0, 0, 0, time.UTC),
		Sale:  sale,
	}
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t)
	w := e.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode[map[string]string](t, w)["status"])
}

func TestTradeLifecycle(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodPost, "/trades", newTrade(t, "AAPL"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := decode[api.SavedResponse](t, w).ID
	assert.Equal(t, int64(1), id)

	w = e.do(t, http.MethodPost, "/trades/1/contracts", contract(50, 100, 2, false))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got := decode[trade.Trade](t, w)
	assert.Equal(t, int64(50), got.Position)

	w = e.do(t, http.MethodGet, "/trades/open/AAPL", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, id, decode[trade.Trade](t, w).ID)

	w = e.do(t, http.MethodGet, "/trades/open", nil)
	assert.Len(t, decode[[]trade.Trade](t, w), 1)

	w = e.do(t, http.MethodPost, "/trades/1/contracts", contract(50, 110, 9, true))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = e.do(t, http.MethodGet, "/trades/open/AAPL", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = e.do(t, http.MethodGet, "/trades/closed?from=2024-05-09&to=2024-05-09", nil)
	require.Equal(t, http.StatusOK, w.Code)
	closed := decode[[]trade.Trade](t, w)
	require.Len(t, closed, 1)
	assert.Equal(t, id, closed[0].ID)

	w = e.do(t, http.MethodGet, "/trades/closed", nil)
	assert.Len(t, decode[[]trade.Trade](t, w), 1)

	w = e.do(t, http.MethodGet, "/account", nil)
	require.Equal(t, http.StatusOK, w.Code)
	acct := decode[api.AccountResponse](t, w)
	require.Len(t, acct.Account.History, 2)
	for _, entry := range acct.Account.History {
		assert.True(t, entry.TradeClosed)
	}
	assert.True(t, acct.Account.CashBalance.IsPositive(), acct.Account.CashBalance.String())
	assert.Nil(t, acct.Summary)

	w = e.do(t, http.MethodGet, "/account?from=2024-05-01&to=2024-05-31", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotNil(t, decode[api.AccountResponse](t, w).Summary)

	w = e.do(t, http.MethodDelete, "/trades/1", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = e.do(t, http.MethodDelete, "/trades/1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = e.do(t, http.MethodGet, "/trades/1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWhereRoute(t *testing.T) {
	e := newTestEnv(t)
	for _, symbol := range []string{"AAPL", "MSFT"} {
		_, err := e.trades.SaveOrUpdate(context.Background(), newTrade(t, symbol))
		require.NoError(t, err)
	}

	w := e.do(t, http.MethodGet, `/trades?where=record.symbol+%3D%3D+%22MSFT%22`, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	found := decode[[]trade.Trade](t, w)
	require.Len(t, found, 1)
	assert.Equal(t, "MSFT", found[0].Symbol)

	w = e.do(t, http.MethodGet, "/trades", nil)
	assert.Len(t, decode[[]trade.Trade](t, w), 2)

	w = e.do(t, http.MethodGet, "/trades?where=record.symbol+%3D%3D", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestArchiveRoute(t *testing.T) {
	e := newTestEnv(t)
	e.do(t, http.MethodPost, "/trades", newTrade(t, "AAPL"))

	w := e.do(t, http.MethodPost, "/trades/1/archive", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code, "open trades stay live")

	e.do(t, http.MethodPost, "/trades/1/contracts", contract(10, 100, 2, false))
	e.do(t, http.MethodPost, "/trades/1/contracts", contract(10, 105, 3, true))

	w = e.do(t, http.MethodPost, "/trades/1/archive", nil)
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	_, found, err := e.trades.Find(1)
	require.NoError(t, err)
	assert.False(t, found)
	archived, err := e.archive.Get(1)
	require.NoError(t, err)
	assert.Equal(t, "AAPL", archived.Symbol)
}

func TestBadRequests(t *testing.T) {
	e := newTestEnv(t)
	cases := []struct {
		method, path string
		status       int
	}{
		{http.MethodGet, "/trades/abc", http.StatusBadRequest},
		{http.MethodGet, "/trades/0", http.StatusBadRequest},
		{http.MethodGet, "/trades/42", http.StatusNotFound},
		{http.MethodDelete, "/trades/-1", http.StatusBadRequest},
		{http.MethodGet, "/trades/closed?from=2024-05-01", http.StatusBadRequest},
		{http.MethodGet, "/trades/closed?from=may&to=june", http.StatusBadRequest},
		{http.MethodGet, "/cost/abc/10/false", http.StatusBadRequest},
		{http.MethodGet, "/cost/100/0/false", http.StatusBadRequest},
		{http.MethodGet, "/cost/100/10/maybe", http.StatusBadRequest},
		{http.MethodPost, "/trades/42/contracts", http.StatusBadRequest},
	}
	for _, c := range cases {
		w := e.do(t, c.method, c.path, nil)
		assert.Equal(t, c.status, w.Code, "%s %s: %s", c.method, c.path, w.Body.String())
	}

	req := httptest.NewRequest(http.MethodPost, "/trades", bytes.NewReader([]byte("{broken")))
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodPost, "/trades", &trade.Trade{Symbol: " "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCostRoute(t *testing.T) {
	e := newTestEnv(t)
	w := e.do(t, http.MethodGet, "/cost/100/100/true", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	cost := decode[api.CostResponse](t, w)
	assert.True(t, decimal.NewFromInt(10000).Equal(cost.Value))
	want := cost.Purchase.Total().Add(cost.Sale.Total())
	assert.True(t, want.Equal(cost.Total))
	assert.True(t, cost.Sale.Total().GreaterThan(cost.Purchase.Total()), "intraday purchases carry no STT")
}

func TestStopLossRoutes(t *testing.T) {
	e := newTestEnv(t)
	e.do(t, http.MethodPost, "/trades", newTrade(t, "AAPL"))
	e.do(t, http.MethodPost, "/trades/1/contracts", contract(50, 100, 2, false))

	w := e.do(t, http.MethodGet, "/trades/1/stoploss", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, decimal.NewFromInt(90).Equal(decode[api.StopLossResponse](t, w).StopLoss))

	w = e.do(t, http.MethodPut, "/trades/1/stoploss/95.5", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, decimal.RequireFromString("95.5").Equal(decode[api.StopLossResponse](t, w).StopLoss))

	saved, err := e.trades.Get(1)
	require.NoError(t, err)
	require.Len(t, saved.Analyses, 1)
	assert.True(t, decimal.RequireFromString("95.5").Equal(saved.StopLoss()))

	cases := []struct {
		path   string
		status int
	}{
		{"/trades/1/stoploss/80", http.StatusBadRequest},
		{"/trades/1/stoploss/abc", http.StatusBadRequest},
		{"/trades/42/stoploss/95", http.StatusNotFound},
	}
	for _, c := range cases {
		w = e.do(t, http.MethodPut, c.path, nil)
		assert.Equal(t, c.status, w.Code, "%s: %s", c.path, w.Body.String())
	}
}

func TestSizingRoutes(t *testing.T) {
	e := newTestEnv(t)
	e.do(t, http.MethodPost, "/trades", newTrade(t, "AAPL"))
	e.do(t, http.MethodPost, "/trades/1/contracts", contract(50, 100, 2, false))

	w := e.do(t, http.MethodGet, "/trades/1/position/110", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	sizing := decode[trade.Sizing](t, w)
	assert.Equal(t, int64(50), sizing.Position)
	assert.True(t, decimal.NewFromInt(5500).Equal(sizing.Value))
	assert.True(t, sizing.Charges.IsPositive())

	w = e.do(t, http.MethodGet, "/trades/1/scalein/110/100", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Positive(t, decode[trade.Sizing](t, w).Position)

	w = e.do(t, http.MethodGet, "/trades/1/pyramid/120/110/50", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Positive(t, decode[trade.Sizing](t, w).Position)

	w = e.do(t, http.MethodGet, "/trades/1/pyramid/95/90/50", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Zero(t, decode[trade.Sizing](t, w).Position)

	for _, path := range []string{
		"/trades/1/position/0",
		"/trades/1/position/-5",
		"/trades/1/pyramid/120/110/150",
		"/trades/1/scalein/abc/100",
	} {
		w = e.do(t, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, "%s: %s", path, w.Body.String())
	}
	w = e.do(t, http.MethodGet, "/trades/42/position/110", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPortfolioRoute(t *testing.T) {
	e := newTestEnv(t)
	w := e.do(t, http.MethodGet, "/portfolio", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]trade.Holding](t, w))

	e.do(t, http.MethodPost, "/trades", newTrade(t, "AAPL"))
	e.do(t, http.MethodPost, "/trades", newTrade(t, "MSFT"))
	e.do(t, http.MethodPost, "/trades/1/contracts", contract(50, 100, 2, false))
	e.do(t, http.MethodPost, "/trades/2/contracts", contract(10, 200, 2, false))
	e.do(t, http.MethodPost, "/trades/2/contracts", contract(10, 210, 3, true))

	w = e.do(t, http.MethodGet, "/portfolio", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	holdings := decode[[]trade.Holding](t, w)
	require.Len(t, holdings, 1)
	assert.Equal(t, "AAPL", holdings[0].Symbol)
	assert.Equal(t, int64(50), holdings[0].Position)
	assert.True(t, decimal.NewFromInt(5000).Equal(holdings[0].CurrentInvestment))
}

func TestArchiveNotConfigured(t *testing.T) {
	e := newTestEnv(t)
	router := api.NewServer(e.trades, e.ledger, nil).Router()
	req := httptest.NewRequest(http.MethodPost, "/trades/1/archive", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

func TestMetricsRoute(t *testing.T) {
	e := newTestEnv(t)
	e.do(t, http.MethodGet, "/health", nil)
	w := e.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "tradestore_http_requests_total")
}
