package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aineonlabs/arbd/internal/domain"
	"github.com/aineonlabs/arbd/internal/risk"
)

type fakeLedger struct {
	snap      risk.Snapshot
	positions []domain.Position
}

func (f *fakeLedger) CurrentSnapshot() risk.Snapshot  { return f.snap }
func (f *fakeLedger) AllPositions() []domain.Position { return f.positions }

type fakeWeights struct {
	snap domain.StrategyWeights
}

func (f *fakeWeights) Current() domain.StrategyWeights { return f.snap }

func TestStatusEndpoint(t *testing.T) {
	ledger := &fakeLedger{snap: risk.Snapshot{
		DailyProfit:   120,
		DailyLoss:     40,
		OpenPositions: 2,
	}}
	weights := &fakeWeights{snap: domain.StrategyWeights{Version: 7, ConfidenceThreshold: 0.65}}

	rec := httptest.NewRecorder()
	handleStatus(ledger, weights)(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var body statusResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.DailyProfitUSD != 120 || body.DailyLossUSD != 40 || body.OpenPositions != 2 {
		t.Fatalf("ledger fields: %+v", body)
	}
	if body.WeightsVersion != 7 || body.ConfidenceThreshold != 0.65 {
		t.Fatalf("weights fields: %+v", body)
	}
}

func TestPositionsEndpoint(t *testing.T) {
	ledger := &fakeLedger{positions: []domain.Position{{
		SignalID: "sig-1",
		Pair:     domain.Pair{TokenIn: "LINK", TokenOut: "USDC"},
		Amount:   10_000,
		Strategy: "cross_venue_spread",
		OpenedAt: time.Now().UTC(),
	}}}

	rec := httptest.NewRecorder()
	handlePositions(ledger)(rec, httptest.NewRequest(http.MethodGet, "/api/positions", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var body []positionResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body) != 1 || body[0].SignalID != "sig-1" || body[0].Pair != "LINK/USDC" {
		t.Fatalf("positions body: %+v", body)
	}
}

func TestAuthMiddleware(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	h := authMiddleware("secret")(inner)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing token accepted: %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("X-API-Key", "wrong")
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong key accepted: %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("Authorization", "Bearer secret")
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("valid bearer token rejected: %d", rec.Code)
	}

	// Empty key disables authentication entirely.
	open := authMiddleware("")(inner)
	rec = httptest.NewRecorder()
	open.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("open server rejected request: %d", rec.Code)
	}
}
