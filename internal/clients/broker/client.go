// Package broker provides the brokerage REST client used by the rebalancing engine.
package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/autopilot/internal/domain"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const maxErrorBody = 500

// Options configures a Factory
type Options struct {
	BaseURL           string // trading API, e.g. https://paper-api.alpaca.markets
	DataURL           string // market data API, e.g. https://data.alpaca.markets
	RequestsPerSecond float64
	Timeout           time.Duration
}

// Factory builds per-user clients that share one HTTP client and one rate
// limiter, so many portfolios cannot burst the broker together.
type Factory struct {
	opts       Options
	httpClient *http.Client
	limiter    *rate.Limiter
	log        zerolog.Logger
}

// NewFactory creates a new broker client factory
func NewFactory(opts Options, log zerolog.Logger) *Factory {
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 3
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Factory{
		opts:       opts,
		httpClient: &http.Client{Timeout: opts.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1),
		log:        log.With().Str("component", "broker-client").Logger(),
	}
}

// ForCredentials returns a client bound to one user's keypair
func (f *Factory) ForCredentials(creds domain.BrokerCredentials) domain.BrokerClient {
	return &Client{
		baseURL:    strings.TrimRight(f.opts.BaseURL, "/"),
		dataURL:    strings.TrimRight(f.opts.DataURL, "/"),
		creds:      creds,
		httpClient: f.httpClient,
		limiter:    f.limiter,
		log:        f.log,
	}
}

// Client talks to the brokerage API on behalf of one user
type Client struct {
	baseURL    string
	dataURL    string
	creds      domain.BrokerCredentials
	httpClient *http.Client
	limiter    *rate.Limiter
	log        zerolog.Logger
}

// Clock returns whether the market is open and when it next opens
func (c *Client) Clock(ctx context.Context) (*domain.BrokerClock, error) {
	var resp clockResponse
	if err := c.do(ctx, http.MethodGet, c.baseURL+"/v2/clock", nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to get clock: %w", err)
	}

	clock := &domain.BrokerClock{IsOpen: resp.IsOpen}
	if resp.NextOpen != "" {
		next, err := time.Parse(time.RFC3339, resp.NextOpen)
		if err != nil {
			c.log.Warn().Err(err).Str("next_open", resp.NextOpen).Msg("Unparseable next_open, ignoring")
		} else {
			clock.NextOpen = next.UTC()
		}
	}
	return clock, nil
}

// Positions returns all open positions on the account
func (c *Client) Positions(ctx context.Context) ([]domain.BrokerPosition, error) {
	var resp []positionResponse
	if err := c.do(ctx, http.MethodGet, c.baseURL+"/v2/positions", nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to get positions: %w", err)
	}

	positions := make([]domain.BrokerPosition, 0, len(resp))
	for _, p := range resp {
		positions = append(positions, domain.BrokerPosition{
			Symbol:        strings.ToUpper(p.Symbol),
			Quantity:      float64(p.Qty),
			CurrentPrice:  float64(p.CurrentPrice),
			AvgEntryPrice: float64(p.AvgEntryPrice),
			MarketValue:   float64(p.MarketValue),
			CostBasis:     float64(p.CostBasis),
		})
	}
	return positions, nil
}

// Account returns the account's cash
func (c *Client) Account(ctx context.Context) (*domain.BrokerAccount, error) {
	var resp accountResponse
	if err := c.do(ctx, http.MethodGet, c.baseURL+"/v2/account", nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &domain.BrokerAccount{Cash: float64(resp.Cash)}, nil
}

// PlaceOrder submits a market, good-til-cancelled order
func (c *Client) PlaceOrder(ctx context.Context, order domain.OrderRequest) (*domain.OrderResult, error) {
	if order.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive, got %v", domain.ErrOrderRejected, order.Quantity)
	}

	body := orderRequest{
		Symbol:      order.Symbol,
		Qty:         strconv.FormatFloat(order.Quantity, 'f', -1, 64),
		Side:        string(order.Side),
		Type:        "market",
		TimeInForce: "gtc",
	}

	var resp orderResponse
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/v2/orders", body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", domain.ErrOrderRejected, order.Side, order.Symbol, err)
	}

	return &domain.OrderResult{
		OrderID:  resp.ID,
		Symbol:   resp.Symbol,
		Side:     domain.OrderSide(resp.Side),
		Quantity: float64(resp.Qty),
		Status:   resp.Status,
	}, nil
}

// LatestTradePrice returns the most recent trade price for symbol
func (c *Client) LatestTradePrice(ctx context.Context, symbol string) (float64, error) {
	endpoint := fmt.Sprintf("%s/v2/stocks/%s/trades/latest", c.dataURL, url.PathEscape(strings.ToUpper(symbol)))

	var resp latestTradeResponse
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return 0, fmt.Errorf("failed to get latest trade for %s: %w", symbol, err)
	}
	return float64(resp.Trade.Price), nil
}

// do performs an authenticated request and decodes the JSON response into out.
// Transport failures and non-2xx statuses wrap domain.ErrVenueUnavailable.
func (c *Client) do(ctx context.Context, method, endpoint string, payload interface{}, out interface{}) error {
	if !c.creds.Valid() {
		return fmt.Errorf("%w: broker keypair is not set", domain.ErrConfiguration)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: rate limiter: %v", domain.ErrVenueUnavailable, err)
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("APCA-API-KEY-ID", c.creds.KeyID)
	req.Header.Set("APCA-API-SECRET-KEY", c.creds.SecretKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: request failed: %v", domain.ErrVenueUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read response: %v", domain.ErrVenueUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyStr := string(data)
		if len(bodyStr) > maxErrorBody {
			bodyStr = bodyStr[:maxErrorBody] + "..."
		}
		c.log.Error().
			Int("status_code", resp.StatusCode).
			Str("response_body", bodyStr).
			Str("method", method).
			Str("url", endpoint).
			Msg("Broker returned non-2xx status")
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return fmt.Errorf("%w: broker rejected credentials (status %d)", domain.ErrConfiguration, resp.StatusCode)
		}
		return fmt.Errorf("%w: status %d: %s", domain.ErrVenueUnavailable, resp.StatusCode, bodyStr)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: failed to parse response: %v", domain.ErrVenueUnavailable, err)
	}
	return nil
}
