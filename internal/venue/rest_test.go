package venue

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aineonlabs/arbd/internal/domain"
)

func TestRESTClientQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/quote" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("token_in"); got != "LINK" {
			t.Errorf("token_in = %q", got)
		}
		if got := r.URL.Query().Get("token_out"); got != "USDC" {
			t.Errorf("token_out = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"price": 15.05, "liquidity_usd": 2000000, "fee_rate": 0.001}`))
	}))
	defer srv.Close()

	c := NewRESTClient("venue_a", srv.URL, 0.003, 0.9)
	pair := domain.Pair{TokenIn: "LINK", TokenOut: "USDC"}

	q, err := c.Quote(context.Background(), pair)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if q.Venue != "venue_a" || q.Pair != pair {
		t.Fatalf("quote identity: %+v", q)
	}
	if q.Price != 15.05 || q.LiquidityUSD != 2_000_000 {
		t.Fatalf("quote values: %+v", q)
	}
	if q.FeeRate != 0.001 {
		t.Fatalf("response fee rate ignored: %f", q.FeeRate)
	}
	if q.Reliability != 0.9 {
		t.Fatalf("reliability not stamped: %f", q.Reliability)
	}
	if q.ObservedAt.IsZero() {
		t.Fatalf("observation time not stamped")
	}
}

func TestRESTClientFeeFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"price": 15.05, "liquidity_usd": 2000000}`))
	}))
	defer srv.Close()

	c := NewRESTClient("venue_a", srv.URL, 0.003, 0.9)
	q, err := c.Quote(context.Background(), domain.Pair{TokenIn: "LINK", TokenOut: "USDC"})
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if q.FeeRate != 0.003 {
		t.Fatalf("configured fee fallback not applied: %f", q.FeeRate)
	}
}

func TestRESTClientZeroPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"price": 0}`))
	}))
	defer srv.Close()

	c := NewRESTClient("venue_a", srv.URL, 0.003, 0.9)
	_, err := c.Quote(context.Background(), domain.Pair{TokenIn: "LINK", TokenOut: "USDC"})
	if !errors.Is(err, domain.ErrNoQuote) {
		t.Fatalf("expected ErrNoQuote, got %v", err)
	}
}

func TestRESTClientServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewRESTClient("venue_a", srv.URL, 0.003, 0.9)
	_, err := c.Quote(context.Background(), domain.Pair{TokenIn: "LINK", TokenOut: "USDC"})
	if err == nil {
		t.Fatalf("expected error on 502")
	}
}

func TestRESTClientContextCancelled(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	c := NewRESTClient("venue_a", srv.URL, 0.003, 0.9)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Quote(ctx, domain.Pair{TokenIn: "LINK", TokenOut: "USDC"})
	if err == nil {
		t.Fatalf("expected error after context deadline")
	}
}
