// Package http exposes the ledger and statistics services as a JSON API.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"moneymap/internal/core"
	applog "moneymap/internal/log"
	"moneymap/internal/middleware/ratelimit"
	"moneymap/internal/middleware/trace"
	"moneymap/internal/services"
)

// LedgerAPI is the ledger surface the handlers call.
type LedgerAPI interface {
	FetchFilteredTransactions(ctx context.Context, accountIDs, labelIDs []int64, categoryPairs []core.CategoryPair, filter core.DateFilter) ([]core.Section, error)
	FetchTransactions(ctx context.Context, sel core.AccountSelector) (services.AccountActivity, error)
	CreateTransaction(ctx context.Context, t core.Transaction) (int64, error)
	DeleteTransaction(ctx context.Context, id int64) error
}

// StatisticsAPI is the statistics surface the handlers call.
type StatisticsAPI interface {
	FetchTransactionsForStatistics(ctx context.Context, sel core.AccountSelector, filter core.DateFilter) (core.SeriesPair, error)
	FetchTopTransactionsForStatistics(ctx context.Context, sel core.AccountSelector, filter core.DateFilter) (services.TopTransactions, error)
}

type Server struct {
	http.Server
	ledger  LedgerAPI
	stats   StatisticsAPI
	limiter *ratelimit.Limiter
	tracer  *trace.Middleware
}

// NewServer wires routes and middleware, returning a ready-to-run server.
func NewServer(addr string, ledger LedgerAPI, stats StatisticsAPI) *Server {
	mux := http.NewServeMux()

	httpLogger := applog.New(applog.Config{
		Component: applog.ComponentHTTP,
		Handler:   slog.Default().Handler(),
	})
	s := &Server{
		Server: http.Server{
			Addr:              addr,
			Handler:           nil, // set below, after middleware wrapping
			ReadHeaderTimeout: 5 * time.Second,
		},
		ledger:  ledger,
		stats:   stats,
		limiter: ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		tracer:  trace.NewMiddleware(clientIP, httpLogger),
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("GET /api/transactions", s.handleListTransactions)
	mux.HandleFunc("GET /api/transactions/filtered", s.handleFilteredTransactions)
	mux.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	mux.HandleFunc("DELETE /api/transactions/{id}", s.handleDeleteTransaction)

	mux.HandleFunc("GET /api/statistics/series", s.handleStatisticsSeries)
	mux.HandleFunc("GET /api/statistics/top", s.handleTopTransactions)

	limited := s.limiter.Middleware(clientIP, nil)
	s.Server.Handler = s.tracer.Middleware(withAPIHeaders(limited(mux)))

	return s
}

// Shutdown stops the server and its rate limiter bookkeeping.
func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.Stop()
	return s.Server.Shutdown(ctx)
}

func withAPIHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// clientIP resolves the caller address, honoring proxy headers.
func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return ip
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
