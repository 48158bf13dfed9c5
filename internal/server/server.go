// Package server exposes a read-only operations API: health, risk-ledger
// status, and the open position list. It never mutates trading state.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aineonlabs/arbd/internal/domain"
	"github.com/aineonlabs/arbd/internal/risk"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port   int
	APIKey string // empty disables authentication
}

// LedgerView is the read surface the server needs from the risk ledger.
type LedgerView interface {
	CurrentSnapshot() risk.Snapshot
	AllPositions() []domain.Position
}

// WeightsView serves the current strategy-weights snapshot.
type WeightsView interface {
	Current() domain.StrategyWeights
}

// Server is the operations HTTP server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a Server with all routes registered.
func New(cfg Config, ledger LedgerView, weights WeightsView, logger *slog.Logger) *Server {
	logger = logger.With(slog.String("component", "ops_server"))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.HandleFunc("GET /api/status", handleStatus(ledger, weights))
	mux.HandleFunc("GET /api/positions", handlePositions(ledger))

	var h http.Handler = mux
	h = authMiddleware(cfg.APIKey)(h)
	h = loggingMiddleware(logger)(h)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      h,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}
}

// Run listens until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("ops server listening", slog.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return <-errCh
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statusResponse is the /api/status body.
type statusResponse struct {
	DailyProfitUSD      float64   `json:"daily_profit_usd"`
	DailyLossUSD        float64   `json:"daily_loss_usd"`
	OpenPositions       int       `json:"open_positions"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	BreakerTripped      bool      `json:"breaker_tripped"`
	ResetBoundary       time.Time `json:"reset_boundary"`
	WeightsVersion      uint64    `json:"weights_version"`
	ConfidenceThreshold float64   `json:"confidence_threshold"`
}

func handleStatus(ledger LedgerView, weights WeightsView) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		snap := ledger.CurrentSnapshot()
		ws := weights.Current()
		writeJSON(w, http.StatusOK, statusResponse{
			DailyProfitUSD:      snap.DailyProfit,
			DailyLossUSD:        snap.DailyLoss,
			OpenPositions:       snap.OpenPositions,
			ConsecutiveFailures: snap.ConsecutiveFailures,
			BreakerTripped:      snap.BreakerTripped,
			ResetBoundary:       snap.ResetBoundary,
			WeightsVersion:      ws.Version,
			ConfidenceThreshold: ws.ConfidenceThreshold,
		})
	}
}

// positionResponse is one entry in the /api/positions body.
type positionResponse struct {
	SignalID  string    `json:"signal_id"`
	Pair      string    `json:"pair"`
	AmountUSD float64   `json:"amount_usd"`
	Strategy  string    `json:"strategy"`
	OpenedAt  time.Time `json:"opened_at"`
}

func handlePositions(ledger LedgerView) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		positions := ledger.AllPositions()
		out := make([]positionResponse, 0, len(positions))
		for _, p := range positions {
			out = append(out, positionResponse{
				SignalID:  p.SignalID,
				Pair:      p.Pair.String(),
				AmountUSD: p.Amount,
				Strategy:  p.Strategy,
				OpenedAt:  p.OpenedAt,
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
