// Package venue provides quote clients for the supported venue kinds: REST
// aggregator APIs, streaming WebSocket feeds, and on-chain DEX routers.
package venue

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/aineonlabs/arbd/internal/domain"
)

// RESTClient fetches quotes from an HTTP quote API. The per-call deadline is
// carried by ctx; the embedded http.Client timeout is only an upper backstop.
type RESTClient struct {
	name        string
	baseURL     string
	feeRate     float64
	reliability float64
	httpClient  *http.Client
}

// NewRESTClient creates a REST venue client.
//
// baseURL is the API root, e.g. "https://quotes.venue-a.example/v1". feeRate
// and reliability come from venue configuration.
func NewRESTClient(name, baseURL string, feeRate, reliability float64) *RESTClient {
	return &RESTClient{
		name:        name,
		baseURL:     baseURL,
		feeRate:     feeRate,
		reliability: reliability,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Name returns the configured venue name.
func (c *RESTClient) Name() string { return c.name }

// quoteResponse is the JSON shape returned by the venue quote endpoint.
type quoteResponse struct {
	Price        float64 `json:"price"`
	LiquidityUSD float64 `json:"liquidity_usd"`
	FeeRate      float64 `json:"fee_rate"`
}

// Quote fetches a price/liquidity/fee quote for pair.
func (c *RESTClient) Quote(ctx context.Context, pair domain.Pair) (domain.Quote, error) {
	params := url.Values{}
	params.Set("token_in", pair.TokenIn)
	params.Set("token_out", pair.TokenOut)
	endpoint := c.baseURL + "/quote?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("venue %s: build request: %w", c.name, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("venue %s: quote %s: %w", c.name, pair, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.Quote{}, fmt.Errorf("venue %s: quote %s: status %d: %s",
			c.name, pair, resp.StatusCode, string(body))
	}

	var qr quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&qr); err != nil {
		return domain.Quote{}, fmt.Errorf("venue %s: decode quote: %w", c.name, err)
	}
	if qr.Price <= 0 {
		return domain.Quote{}, fmt.Errorf("venue %s: %w for %s", c.name, domain.ErrNoQuote, pair)
	}

	fee := qr.FeeRate
	if fee == 0 {
		fee = c.feeRate
	}

	return domain.Quote{
		Venue:        c.name,
		Pair:         pair,
		Price:        qr.Price,
		LiquidityUSD: qr.LiquidityUSD,
		FeeRate:      fee,
		Reliability:  c.reliability,
		ObservedAt:   time.Now().UTC(),
	}, nil
}

// Compile-time interface check.
var _ domain.VenueClient = (*RESTClient)(nil)
