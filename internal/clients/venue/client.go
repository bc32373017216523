// Package venue provides the copy-trade venue client: server time, signed
// trade-history pages, market token prices, and a lazy trade feed.
package venue

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/aristath/autopilot/internal/domain"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const maxErrorBody = 500

// Options configures a Factory
type Options struct {
	BaseURL           string
	RequestsPerSecond float64
	Timeout           time.Duration
}

// Factory builds per-credential clients sharing one HTTP client and limiter
type Factory struct {
	opts       Options
	httpClient *http.Client
	limiter    *rate.Limiter
	log        zerolog.Logger
}

// NewFactory creates a new venue client factory
func NewFactory(opts Options, log zerolog.Logger) *Factory {
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 5
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Factory{
		opts:       opts,
		httpClient: &http.Client{Timeout: opts.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1),
		log:        log.With().Str("component", "venue-client").Logger(),
	}
}

// ForCredentials returns a client that signs requests with creds
func (f *Factory) ForCredentials(creds domain.VenueCredentials) domain.VenueClient {
	return &Client{
		baseURL:    strings.TrimRight(f.opts.BaseURL, "/"),
		creds:      creds,
		httpClient: f.httpClient,
		limiter:    f.limiter,
		log:        f.log,
		now:        time.Now,
	}
}

// Client talks to the venue on behalf of one credential set
type Client struct {
	baseURL    string
	creds      domain.VenueCredentials
	httpClient *http.Client
	limiter    *rate.Limiter
	log        zerolog.Logger
	now        func() time.Time

	// skew is server minus local clock in seconds, learned from ServerTime
	skew atomic.Int64
}

// ServerTime returns the venue clock and remembers its offset from the
// local clock so signed requests use venue time.
func (c *Client) ServerTime(ctx context.Context) (time.Time, error) {
	data, err := c.get(ctx, "/time", nil, false)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get server time: %w", err)
	}

	var secs numString
	if err := json.Unmarshal(data, &secs); err != nil || secs <= 0 {
		return time.Time{}, fmt.Errorf("%w: unexpected server time %q", domain.ErrVenueUnavailable, strings.TrimSpace(string(data)))
	}

	serverTime := time.Unix(int64(secs), 0).UTC()
	c.skew.Store(serverTime.Unix() - c.now().Unix())
	return serverTime, nil
}

// TradesPage fetches one page of trades where maker is the maker address.
// An empty cursor requests the first page.
func (c *Client) TradesPage(ctx context.Context, maker string, cursor string) (*domain.TradePage, error) {
	if cursor == "" {
		cursor = InitialCursor
	}
	query := url.Values{}
	query.Set("next_cursor", cursor)
	if maker != "" {
		query.Set("maker_address", maker)
	}

	data, err := c.get(ctx, "/data/trades", query, true)
	if err != nil {
		return nil, fmt.Errorf("failed to get trades page: %w", err)
	}

	var resp tradesPageResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("%w: failed to parse trades page: %v", domain.ErrVenueUnavailable, err)
	}

	page := &domain.TradePage{
		Trades:     make([]domain.Trade, 0, len(resp.Data)),
		NextCursor: resp.NextCursor,
	}
	for _, t := range resp.Data {
		page.Trades = append(page.Trades, domain.Trade{
			ID:        t.ID,
			AssetID:   t.AssetID,
			Market:    t.Market,
			Outcome:   t.Outcome,
			Side:      domain.ParseTradeSide(t.Side),
			Size:      float64(t.Size),
			Price:     float64(t.Price),
			MatchTime: time.Time(t.MatchTime),
		})
	}
	return page, nil
}

// Market returns the outcome tokens of a market
func (c *Client) Market(ctx context.Context, conditionID string) (*domain.Market, error) {
	data, err := c.get(ctx, "/markets/"+url.PathEscape(conditionID), nil, false)
	if err != nil {
		return nil, fmt.Errorf("failed to get market %s: %w", conditionID, err)
	}

	var resp marketResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("%w: failed to parse market: %v", domain.ErrVenueUnavailable, err)
	}

	market := &domain.Market{ConditionID: resp.ConditionID, Tokens: make([]domain.MarketToken, 0, len(resp.Tokens))}
	if market.ConditionID == "" {
		market.ConditionID = conditionID
	}
	for _, tok := range resp.Tokens {
		market.Tokens = append(market.Tokens, domain.MarketToken{
			TokenID: tok.TokenID,
			Price:   float64(tok.Price),
			Outcome: tok.Outcome,
		})
	}
	return market, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, signed bool) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter: %v", domain.ErrVenueUnavailable, err)
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	if signed {
		if err := c.signRequest(req, path, ""); err != nil {
			return nil, err
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request failed: %v", domain.ErrVenueUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", domain.ErrVenueUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		bodyStr := string(data)
		if len(bodyStr) > maxErrorBody {
			bodyStr = bodyStr[:maxErrorBody] + "..."
		}
		c.log.Error().
			Int("status_code", resp.StatusCode).
			Str("response_body", bodyStr).
			Str("path", path).
			Msg("Venue returned non-200 status")
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return nil, fmt.Errorf("%w: venue rejected credentials (status %d)", domain.ErrConfiguration, resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: status %d: %s", domain.ErrVenueUnavailable, resp.StatusCode, bodyStr)
	}

	return data, nil
}

func (c *Client) signRequest(req *http.Request, path, body string) error {
	if !c.creds.Complete() {
		return fmt.Errorf("%w: venue credentials are incomplete", domain.ErrConfiguration)
	}

	timestamp := c.now().Unix() + c.skew.Load()
	signature, err := Sign(c.creds.Secret, timestamp, req.Method, path, body)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
	}

	req.Header.Set("POLY_ADDRESS", c.creds.Address)
	req.Header.Set("POLY_SIGNATURE", signature)
	req.Header.Set("POLY_TIMESTAMP", strconv.FormatInt(timestamp, 10))
	req.Header.Set("POLY_API_KEY", c.creds.APIKey)
	req.Header.Set("POLY_PASSPHRASE", c.creds.Passphrase)
	return nil
}
