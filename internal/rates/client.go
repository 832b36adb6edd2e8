package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	// DefaultFeedURL asks CoinGecko for the fiat price of one coin.
	DefaultFeedURL  = "https://api.coingecko.com/api/v3/simple/price?ids=litecoin&vs_currencies=gbp"
	defaultCoin     = "litecoin"
	defaultCurrency = "gbp"

	// FallbackRate is used whenever the feed is unreachable, slow, or
	// returns garbage. Availability over accuracy: checkout must never
	// block on the feed.
	FallbackRate = 55.0

	feedTimeout = 10 * time.Second
)

// Client fetches the fiat-per-coin exchange rate. Rate never returns an
// error; any failure falls back to a fixed constant.
type Client struct {
	url      string
	coin     string
	currency string
	fallback float64
	httpc    *http.Client
	breaker  *gobreaker.CircuitBreaker[float64]
}

func NewClient(url string, fallback float64) *Client {
	if url == "" {
		url = DefaultFeedURL
	}
	if fallback <= 0 {
		fallback = FallbackRate
	}
	return &Client{
		url:      url,
		coin:     defaultCoin,
		currency: defaultCurrency,
		fallback: fallback,
		httpc: &http.Client{
			Timeout:   feedTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		breaker: gobreaker.NewCircuitBreaker[float64](gobreaker.Settings{
			Name:    "rate-feed",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
		}),
	}
}

func (c *Client) Rate(ctx context.Context) float64 {
	rate, err := c.breaker.Execute(func() (float64, error) {
		return c.fetch(ctx)
	})
	if err != nil {
		log.Printf("rate feed unavailable, using fallback %v: %v", c.fallback, err)
		return c.fallback
	}
	return rate
}

func (c *Client) fetch(ctx context.Context) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, feedTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return 0, fmt.Errorf("build feed request: %w", err)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return 0, fmt.Errorf("feed request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	// CoinGecko shape: {"litecoin":{"gbp":55.2}}
	var body map[string]map[string]float64
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("decode feed response: %w", err)
	}

	rate, ok := body[c.coin][c.currency]
	if !ok || rate <= 0 {
		return 0, fmt.Errorf("feed response missing %s/%s price", c.coin, c.currency)
	}
	return rate, nil
}
