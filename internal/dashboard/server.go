// Package dashboard serves a read-only JSON view of the ledger database.
// It never writes to the store: the recorder owns all mutations, the
// dashboard only reads the latest ledger and the activity log.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mkelleher/buywrite/internal/ledger"
	"github.com/mkelleher/buywrite/internal/models"
	"github.com/sirupsen/logrus"
)

const defaultActivityLimit = 50

type Server struct {
	router    *chi.Mux
	server    *http.Server
	store     ledger.Store
	logger    *logrus.Logger
	port      int
	authToken string
}

type Config struct {
	Port      int
	AuthToken string
}

// LedgerView is the payload for /api/ledger: one reconciled ledger date
// with its rows in ticker order.
type LedgerView struct {
	Date       string             `json:"date"`
	Rows       []models.LedgerRow `json:"rows"`
	Stats      Statistics         `json:"stats"`
	LastUpdate time.Time          `json:"last_update"`
}

type Statistics struct {
	Tickers        int     `json:"tickers"`
	OpenCalls      int     `json:"open_calls"`
	RolloverRows   int     `json:"rollover_rows"`
	TotalPLOption  float64 `json:"total_pl_option"`
	TotalPLStock   float64 `json:"total_pl_stock"`
	PositionTotal  float64 `json:"position_total"`
	AccountBalance float64 `json:"account_balance"`
}

func NewServer(cfg Config, store ledger.Store, logger *logrus.Logger) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		store:     store,
		logger:    logger,
		port:      cfg.Port,
		authToken: cfg.AuthToken,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))

	if s.authToken != "" {
		s.router.Use(s.authMiddleware)
	}

	s.router.Get("/api/ledger", s.handleGetLedger)
	s.router.Get("/api/ledger/{ticker}", s.handleGetTicker)
	s.router.Get("/api/activity", s.handleGetActivity)
	s.router.Get("/api/stats", s.handleGetStats)
	s.router.Get("/health", s.handleHealth)
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		token := r.Header.Get("X-Auth-Token")
		if token == "" {
			token = r.URL.Query().Get("token")
		}

		if token != s.authToken {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: s.router,
	}

	s.logger.Infof("Starting ledger dashboard on port %d", s.port)
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) handleGetLedger(w http.ResponseWriter, r *http.Request) {
	view, err := s.getLedgerView(r.Context())
	if err != nil {
		s.logger.WithError(err).Error("Failed to load latest ledger")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, view)
}

func (s *Server) handleGetTicker(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")

	_, rows, err := s.store.LatestLedger(r.Context())
	if err != nil {
		s.logger.WithError(err).Error("Failed to load latest ledger")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	// A ticker spans two rows on rollover days (the starred write row
	// shares the same Ticker value), so collect rather than pick one.
	matched := make([]models.LedgerRow, 0, 2)
	for _, row := range rows {
		if row.Ticker == ticker {
			matched = append(matched, row)
		}
	}
	if len(matched) == 0 {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}

	s.writeJSON(w, matched)
}

func (s *Server) handleGetActivity(w http.ResponseWriter, r *http.Request) {
	limit := defaultActivityLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "Bad Request", http.StatusBadRequest)
			return
		}
		limit = n
	}

	records, err := s.store.RecentActivity(r.Context(), limit)
	if err != nil {
		s.logger.WithError(err).Error("Failed to load activity log")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, records)
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	view, err := s.getLedgerView(r.Context())
	if err != nil {
		s.logger.WithError(err).Error("Failed to load latest ledger")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, view.Stats)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
	}

	s.writeJSON(w, health)
}

func (s *Server) getLedgerView(ctx context.Context) (*LedgerView, error) {
	date, rows, err := s.store.LatestLedger(ctx)
	if err != nil {
		return nil, err
	}

	return &LedgerView{
		Date:       date,
		Rows:       rows,
		Stats:      calculateStatistics(rows),
		LastUpdate: time.Now(),
	}, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}

func calculateStatistics(rows []models.LedgerRow) Statistics {
	stats := Statistics{}
	tickers := make(map[string]struct{})

	for _, row := range rows {
		tickers[row.Ticker] = struct{}{}

		if row.OptionSize.Valid && row.OptionSize.Float64 < 0 {
			stats.OpenCalls++
		}
		if row.Key != row.Ticker {
			stats.RolloverRows++
		}

		stats.TotalPLOption += row.PLOption.Or(0)
		stats.TotalPLStock += row.PLUnderlying.Or(0)
		stats.PositionTotal += row.PositionBalance.Or(0)

		if row.AccountBalance.Valid {
			stats.AccountBalance = row.AccountBalance.Float64
		}
	}

	stats.Tickers = len(tickers)
	return stats
}
