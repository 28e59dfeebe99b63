// Package api exposes the trade and account repositories over HTTP.
package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/guyvdb/tradestore/account"
	"github.com/guyvdb/tradestore/codec"
	"github.com/guyvdb/tradestore/fault"
	"github.com/guyvdb/tradestore/metrics"
	"github.com/guyvdb/tradestore/trade"
)

const maxBody = 1 << 20

// Trades is the trade repository surface used by the handlers.
type Trades interface {
	Get(id int64) (*trade.Trade, error)
	FindOpen() ([]*trade.Trade, error)
	FindOpenBySymbol(symbol string) (*trade.Trade, bool, error)
	FindClosed() ([]*trade.Trade, error)
	FindClosedBetween(from, to time.Time) ([]*trade.Trade, error)
	WhereExpr(expression string) ([]*trade.Trade, error)
	SaveOrUpdate(ctx context.Context, t *trade.Trade) (int64, error)
	Delete(id int64) (bool, error)
	Calculator() *trade.Calculator
}

// Ledger is the account repository surface used by the handlers.
type Ledger interface {
	Account() (*account.Account, error)
	PostSale(tradeID int64, c trade.Contract) error
	PostPurchase(tradeID int64, c trade.Contract) error
	CloseTrade(tradeID int64, contractIDs []int) error
}

// Archiver moves a closed trade out of the live repository.
type Archiver func(ctx context.Context, id int64) error

// Server routes HTTP requests to the repositories.
type Server struct {
	trades  Trades
	ledger  Ledger
	archive Archiver
}

// NewServer returns a server over trades and ledger. archive may be nil, in
// which case the archive route answers 501.
func NewServer(trades Trades, ledger Ledger, archive Archiver) *Server {
	return &Server{trades: trades, ledger: ledger, archive: archive}
}

// Router returns the chi router serving every route.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware(routePattern))
	r.Use(requestLogger)

	r.Get("/health", s.health)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/trades", func(r chi.Router) {
		r.Get("/", s.where)
		r.Post("/", s.saveTrade)
		r.Get("/open", s.openTrades)
		r.Get("/open/{symbol}", s.openTradeBySymbol)
		r.Get("/closed", s.closedTrades)
		r.Get("/{id}", s.getTrade)
		r.Delete("/{id}", s.deleteTrade)
		r.Post("/{id}/contracts", s.addContract)
		r.Post("/{id}/archive", s.archiveTrade)
		r.Get("/{id}/stoploss", s.getStopLoss)
		r.Put("/{id}/stoploss/{price}", s.trailStopLoss)
		r.Get("/{id}/position/{price}", s.position)
		r.Get("/{id}/scalein/{price}/{stopLoss}", s.scaleIn)
		r.Get("/{id}/pyramid/{price}/{stopLoss}/{lockIn}", s.pyramid)
	})

	r.Get("/portfolio", s.portfolio)
	r.Get("/account", s.getAccount)
	r.Get("/cost/{price}/{size}/{intraday}", s.cost)
	return r
}

// routePattern labels metrics with the matched route rather than the raw
// path, which carries ids.
func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"elapsed", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := codec.JSON.Marshal(v)
	if err != nil {
		slog.Error("encode response", "err", err)
		writeError(w, "could not encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	data, _ := codec.JSON.Marshal(map[string]string{"error": message})
	w.Write(data)
}

// writeFailure maps a repository error onto a status code.
func writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, fault.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, fault.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, fault.ErrAmbiguous):
		status = http.StatusConflict
	case errors.Is(err, fault.ErrNotImplemented):
		status = http.StatusNotImplemented
	case errors.Is(err, fault.ErrCoordination), errors.Is(err, fault.ErrIdNotIssued):
		status = http.StatusServiceUnavailable
	}
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	}
	writeError(w, err.Error(), status)
}

func decodeBody(r *http.Request, v any) error {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		return err
	}
	return codec.JSON.Unmarshal(data, v)
}
