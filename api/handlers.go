package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/guyvdb/tradestore/account"
	"github.com/guyvdb/tradestore/fault"
	"github.com/guyvdb/tradestore/store"
	"github.com/guyvdb/tradestore/trade"
)

// ContractRequest is the body of POST /trades/{id}/contracts.
type ContractRequest struct {
	ID       int             `json:"id"`
	Size     int64           `json:"size"`
	Price    decimal.Decimal `json:"price"`
	Date     time.Time       `json:"date"`
	Sale     bool            `json:"sale"`
	IntraDay bool            `json:"intraDay"`
}

// SavedResponse is returned after a trade is written.
type SavedResponse struct {
	ID int64 `json:"id"`
}

// AccountResponse is the body of GET /account. Summary is present when both
// from and to are given.
type AccountResponse struct {
	Account *account.Account       `json:"account"`
	Summary *account.PeriodSummary `json:"summary,omitempty"`
}

// CostResponse itemizes the charges of a round trip.
type CostResponse struct {
	Value    decimal.Decimal `json:"value"`
	Purchase trade.Charges   `json:"purchase"`
	Sale     trade.Charges   `json:"sale"`
	Total    decimal.Decimal `json:"total"`
}

// StopLossResponse carries the current stop of a trade.
type StopLossResponse struct {
	ID       int64           `json:"id"`
	StopLoss decimal.Decimal `json:"stopLoss"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "tradestore"})
}

// getTrade handles GET /trades/{id}
func (s *Server) getTrade(w http.ResponseWriter, r *http.Request) {
	t, ok := s.tradeParam(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// openTrades handles GET /trades/open
func (s *Server) openTrades(w http.ResponseWriter, r *http.Request) {
	trades, err := s.trades.FindOpen()
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, trades)
}

// openTradeBySymbol handles GET /trades/open/{symbol}
func (s *Server) openTradeBySymbol(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	t, found, err := s.trades.FindOpenBySymbol(symbol)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	if !found {
		writeError(w, fmt.Sprintf("no open trade in %s", symbol), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// closedTrades handles GET /trades/closed?from=YYYY-MM-DD&to=YYYY-MM-DD.
// Without a range every closed trade is returned.
func (s *Server) closedTrades(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("from") == "" && q.Get("to") == "" {
		trades, err := s.trades.FindClosed()
		if err != nil {
			writeFailure(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, trades)
		return
	}

	from, to, err := dateRange(r)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	trades, err := s.trades.FindClosedBetween(from, to)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, trades)
}

// where handles GET /trades?where=<expression>
func (s *Server) where(w http.ResponseWriter, r *http.Request) {
	expr := strings.TrimSpace(r.URL.Query().Get("where"))
	if expr == "" {
		expr = "true"
	}
	trades, err := s.trades.WhereExpr(expr)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, trades)
}

// saveTrade handles POST /trades
func (s *Server) saveTrade(w http.ResponseWriter, r *http.Request) {
	var t trade.Trade
	if err := decodeBody(r, &t); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	created := t.ID == 0
	id, err := s.trades.SaveOrUpdate(r.Context(), &t)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, SavedResponse{ID: id})
}

// deleteTrade handles DELETE /trades/{id}
func (s *Server) deleteTrade(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	removed, err := s.trades.Delete(id)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	if !removed {
		writeError(w, fmt.Sprintf("trade %d not found", id), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// addContract handles POST /trades/{id}/contracts. The contract is priced,
// the trade saved and the contract posted to the account ledger.
func (s *Server) addContract(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	var req ContractRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Date.IsZero() {
		req.Date = time.Now().UTC()
	}

	t, err := s.trades.Get(id)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	calc := s.trades.Calculator()
	record := t.Buy
	if req.Sale {
		record = t.Sell
	}
	c, err := record(calc, req.ID, req.Size, req.Price, req.Date, req.IntraDay)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	if _, err := s.trades.SaveOrUpdate(r.Context(), t); err != nil {
		writeFailure(w, r, err)
		return
	}

	post := s.ledger.PostPurchase
	if c.Sale {
		post = s.ledger.PostSale
	}
	if err := post(t.ID, c); err != nil {
		writeFailure(w, r, err)
		return
	}
	if t.IsClosed() {
		if err := s.ledger.CloseTrade(t.ID, t.ContractIDs()); err != nil {
			writeFailure(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, t)
}

// archiveTrade handles POST /trades/{id}/archive
func (s *Server) archiveTrade(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		writeError(w, "archive is not configured", http.StatusNotImplemented)
		return
	}
	id, err := idParam(r)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	if err := s.archive(r.Context(), id); err != nil {
		writeFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// getStopLoss handles GET /trades/{id}/stoploss
func (s *Server) getStopLoss(w http.ResponseWriter, r *http.Request) {
	t, ok := s.tradeParam(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, StopLossResponse{ID: t.ID, StopLoss: t.StopLoss()})
}

// trailStopLoss handles PUT /trades/{id}/stoploss/{price}. The stop is raised
// in today's analysis and the trade saved.
func (s *Server) trailStopLoss(w http.ResponseWriter, r *http.Request) {
	price, err := decimalParam(r, "price")
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	t, ok := s.tradeParam(w, r)
	if !ok {
		return
	}
	if err := t.TrailStopLoss(price, time.Now().UTC()); err != nil {
		writeFailure(w, r, err)
		return
	}
	if _, err := s.trades.SaveOrUpdate(r.Context(), t); err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, StopLossResponse{ID: t.ID, StopLoss: t.StopLoss()})
}

// position handles GET /trades/{id}/position/{price}
func (s *Server) position(w http.ResponseWriter, r *http.Request) {
	price, err := decimalParam(r, "price")
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	t, ok := s.tradeParam(w, r)
	if !ok {
		return
	}
	sizing, err := t.PositionAt(s.trades.Calculator(), price)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sizing)
}

// scaleIn handles GET /trades/{id}/scalein/{price}/{stopLoss}. A stop of 0
// uses the plan stop.
func (s *Server) scaleIn(w http.ResponseWriter, r *http.Request) {
	price, err := decimalParam(r, "price")
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	stop, err := decimalParam(r, "stopLoss")
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	t, ok := s.tradeParam(w, r)
	if !ok {
		return
	}
	sizing, err := t.ScaleIn(s.trades.Calculator(), price, stop)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sizing)
}

// pyramid handles GET /trades/{id}/pyramid/{price}/{stopLoss}/{lockIn}, lockIn
// being the percent of open profit kept back.
func (s *Server) pyramid(w http.ResponseWriter, r *http.Request) {
	var params [3]decimal.Decimal
	for i, name := range []string{"price", "stopLoss", "lockIn"} {
		v, err := decimalParam(r, name)
		if err != nil {
			writeFailure(w, r, err)
			return
		}
		params[i] = v
	}
	t, ok := s.tradeParam(w, r)
	if !ok {
		return
	}
	sizing, err := t.Pyramid(s.trades.Calculator(), params[0], params[1], params[2])
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sizing)
}

// portfolio handles GET /portfolio
func (s *Server) portfolio(w http.ResponseWriter, r *http.Request) {
	trades, err := s.trades.FindOpen()
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, trade.Portfolio(trades))
}

// getAccount handles GET /account[?from=YYYY-MM-DD&to=YYYY-MM-DD]
func (s *Server) getAccount(w http.ResponseWriter, r *http.Request) {
	a, err := s.ledger.Account()
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	resp := AccountResponse{Account: a}
	q := r.URL.Query()
	if q.Get("from") != "" || q.Get("to") != "" {
		from, to, err := dateRange(r)
		if err != nil {
			writeFailure(w, r, err)
			return
		}
		summary := a.Summary(from, to)
		resp.Summary = &summary
	}
	writeJSON(w, http.StatusOK, resp)
}

// cost handles GET /cost/{price}/{size}/{intraday}
func (s *Server) cost(w http.ResponseWriter, r *http.Request) {
	price, err := decimal.NewFromString(chi.URLParam(r, "price"))
	if err != nil || !price.IsPositive() {
		writeError(w, "price must be a positive number", http.StatusBadRequest)
		return
	}
	size, err := strconv.ParseInt(chi.URLParam(r, "size"), 10, 64)
	if err != nil || size <= 0 {
		writeError(w, "size must be a positive integer", http.StatusBadRequest)
		return
	}
	intraDay, err := strconv.ParseBool(chi.URLParam(r, "intraday"))
	if err != nil {
		writeError(w, "intraday must be true or false", http.StatusBadRequest)
		return
	}

	calc := s.trades.Calculator()
	value := price.Mul(decimal.NewFromInt(size)).Round(2)
	purchase := calc.CostOfPurchase(value, intraDay)
	sale := calc.CostOfSale(value, intraDay)
	writeJSON(w, http.StatusOK, CostResponse{
		Value:    value,
		Purchase: purchase,
		Sale:     sale,
		Total:    purchase.Total().Add(sale.Total()),
	})
}

func idParam(r *http.Request) (int64, error) {
	id, err := store.IdFromString(chi.URLParam(r, "id"))
	if err != nil {
		return 0, fmt.Errorf("trade id: %w: %w", fault.ErrInvalidArgument, err)
	}
	return id, nil
}

// tradeParam loads the trade named by the id route parameter, writing the
// failure itself when it cannot.
func (s *Server) tradeParam(w http.ResponseWriter, r *http.Request) (*trade.Trade, bool) {
	id, err := idParam(r)
	if err != nil {
		writeFailure(w, r, err)
		return nil, false
	}
	t, err := s.trades.Get(id)
	if err != nil {
		writeFailure(w, r, err)
		return nil, false
	}
	return t, true
}

func decimalParam(r *http.Request, name string) (decimal.Decimal, error) {
	raw := chi.URLParam(r, name)
	v, err := decimal.NewFromString(raw)
	if err != nil || v.IsNegative() {
		return decimal.Zero, fmt.Errorf("%s %q: %w", name, raw, fault.ErrInvalidArgument)
	}
	return v, nil
}

func dateRange(r *http.Request) (time.Time, time.Time, error) {
	q := r.URL.Query()
	from, err := time.Parse(time.DateOnly, q.Get("from"))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("from %q: %w", q.Get("from"), fault.ErrInvalidArgument)
	}
	to, err := time.Parse(time.DateOnly, q.Get("to"))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("to %q: %w", q.Get("to"), fault.ErrInvalidArgument)
	}
	return from, to, nil
}
