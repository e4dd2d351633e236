// Package vnmarket implements the provider port against the upstream
// Vietnamese market-data HTTP API.
package vnmarket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/epeers/vnmarket/internal/models"
	"github.com/epeers/vnmarket/internal/provider"
)

const defaultBaseURL = "https://api.vnmarket.vn/api/v1"

// Client is an HTTP client for the upstream market-data API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client against the production endpoint. Connects time
// out after 10s, whole requests after 60s (history responses can be large).
func NewClient() *Client {
	return &Client{
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				MaxIdleConns:        10,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
	}
}

// NewClientWithBaseURL creates a client with a custom base URL (for testing).
func NewClientWithBaseURL(baseURL string) *Client {
	c := NewClient()
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

// FetchQuote fetches the latest quote for a symbol.
func (c *Client) FetchQuote(ctx context.Context, symbol string, assetType models.AssetType) (*provider.Quote, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("type", strings.ToLower(string(assetType)))

	body, err := c.doRequest(ctx, "/quote", params)
	if err != nil {
		return nil, err
	}

	var resp quoteResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal quote response: %w", err)
	}
	if err := c.checkEnvelope(resp.envelope); err != nil {
		return nil, err
	}
	if resp.Data == nil {
		return nil, nil
	}

	raw, _ := json.Marshal(resp.Data)
	return &provider.Quote{
		Symbol:    resp.Data.Symbol,
		Date:      resp.Data.Date,
		Open:      resp.Data.Open,
		High:      resp.Data.High,
		Low:       resp.Data.Low,
		Close:     resp.Data.Close,
		AdjClose:  resp.Data.AdjClose,
		Volume:    resp.Data.Volume,
		NAV:       resp.Data.NAV,
		BuyPrice:  resp.Data.BuyPrice,
		SellPrice: resp.Data.SellPrice,
		Raw:       string(raw),
	}, nil
}

// FetchHistory fetches daily rows for [start, end] inclusive. An empty slice
// with a nil error means the provider has no data for the range.
func (c *Client) FetchHistory(ctx context.Context, symbol string, assetType models.AssetType, start, end string) ([]provider.HistoryRow, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("type", strings.ToLower(string(assetType)))
	params.Set("start_date", start)
	params.Set("end_date", end)

	body, err := c.doRequest(ctx, "/history", params)
	if err != nil {
		return nil, err
	}

	var resp historyResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal history response: %w", err)
	}
	if err := c.checkEnvelope(resp.envelope); err != nil {
		return nil, err
	}

	rows := make([]provider.HistoryRow, 0, len(resp.Data))
	for _, r := range resp.Data {
		raw, _ := json.Marshal(r)
		rows = append(rows, provider.HistoryRow{
			Date:      r.Date,
			Open:      r.Open,
			High:      r.High,
			Low:       r.Low,
			Close:     r.Close,
			AdjClose:  r.AdjClose,
			Volume:    r.Volume,
			NAV:       r.NAV,
			BuyPrice:  r.BuyPrice,
			SellPrice: r.SellPrice,
			Raw:       string(raw),
		})
	}
	return rows, nil
}

// FetchListing fetches the full catalog for one asset type.
func (c *Client) FetchListing(ctx context.Context, assetType models.AssetType) ([]provider.AssetInfo, error) {
	params := url.Values{}
	params.Set("type", strings.ToLower(string(assetType)))

	body, err := c.doRequest(ctx, "/listing", params)
	if err != nil {
		return nil, err
	}

	var resp listingResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal listing response: %w", err)
	}
	if err := c.checkEnvelope(resp.envelope); err != nil {
		return nil, err
	}

	assets := make([]provider.AssetInfo, 0, len(resp.Data))
	for _, r := range resp.Data {
		assets = append(assets, provider.AssetInfo{
			Symbol:   strings.ToUpper(r.Symbol),
			Name:     r.Name,
			Exchange: r.Exchange,
		})
	}
	return assets, nil
}

// FetchGoldSpotByDate fetches the SJC gold price for a single date.
func (c *Client) FetchGoldSpotByDate(ctx context.Context, date string) (*provider.GoldSpot, error) {
	params := url.Values{}
	params.Set("date", date)

	body, err := c.doRequest(ctx, "/gold", params)
	if err != nil {
		return nil, err
	}

	var resp goldResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal gold response: %w", err)
	}
	if err := c.checkEnvelope(resp.envelope); err != nil {
		return nil, err
	}
	if resp.Data == nil {
		return nil, nil
	}

	raw, _ := json.Marshal(resp.Data)
	return &provider.GoldSpot{
		Date:      resp.Data.Date,
		BuyPrice:  resp.Data.BuyPrice,
		SellPrice: resp.Data.SellPrice,
		Raw:       string(raw),
	}, nil
}

// checkEnvelope turns a status:"error" envelope into a classified error.
func (c *Client) checkEnvelope(env envelope) error {
	if env.Status == "" || env.Status == "ok" || env.Status == "success" {
		return nil
	}
	if rl, ok := provider.DetectRateLimit(env.Message); ok {
		return rl
	}
	if strings.Contains(strings.ToLower(env.Message), "not found") {
		return nil // ok-empty: unknown symbol is absence of data, not failure
	}
	return fmt.Errorf("provider error: %s", env.Message)
}

func (c *Client) doRequest(ctx context.Context, path string, params url.Values) ([]byte, error) {
	reqURL := c.baseURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		if rl, ok := provider.DetectRateLimit(string(body)); ok {
			return nil, rl
		}
		return nil, &provider.RateLimitError{RetryAfter: provider.DefaultRetryAfter, Message: string(body)}
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, &provider.PermanentError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	default:
		if rl, ok := provider.DetectRateLimit(string(body)); ok {
			return nil, rl
		}
		return nil, fmt.Errorf("provider returned status %d", resp.StatusCode)
	}
}
