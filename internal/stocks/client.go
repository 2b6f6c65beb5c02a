// Package stocks fetches quote snapshots from the Polygon.io REST API.
package stocks

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"stockpulse/internal/models"
)

// Client provides access to Polygon market data.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// prevCloseResponse is the envelope of /v2/aggs/ticker/{sym}/prev.
type prevCloseResponse struct {
	Ticker       string `json:"ticker"`
	Status       string `json:"status"`
	ResultsCount int    `json:"resultsCount"`
	Results      []struct {
		Open   float64 `json:"o"`
		Close  float64 `json:"c"`
		High   float64 `json:"h"`
		Low    float64 `json:"l"`
		Volume float64 `json:"v"`
	} `json:"results"`
}

// NewClient creates a Polygon client.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// FetchPrevClose retrieves the previous trading day's aggregate for a
// ticker and turns it into a quote snapshot.
func (c *Client) FetchPrevClose(ctx context.Context, ticker string) (*models.PriceQuote, error) {
	urlStr := fmt.Sprintf("%s/v2/aggs/ticker/%s/prev?adjusted=true&apiKey=%s", c.baseURL, ticker, c.apiKey)

	resp, err := c.doRequest(ctx, urlStr)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch quote for %s: %w", ticker, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d fetching quote for %s", resp.StatusCode, ticker)
	}

	var pc prevCloseResponse
	if err := json.NewDecoder(resp.Body).Decode(&pc); err != nil {
		return nil, fmt.Errorf("failed to decode quote for %s: %w", ticker, err)
	}
	if pc.ResultsCount == 0 || len(pc.Results) == 0 {
		return nil, fmt.Errorf("no results for %s", ticker)
	}

	r := pc.Results[0]
	var changePct float64
	if r.Open != 0 {
		changePct = (r.Close - r.Open) / r.Open * 100
	}
	return &models.PriceQuote{
		Ticker:    ticker,
		Price:     r.Close,
		ChangePct: changePct,
		Volume:    r.Volume,
		FetchedAt: time.Now().UTC(),
	}, nil
}

// doRequest performs a GET with retry on transport errors, rate limits,
// and server errors.
func (c *Client) doRequest(ctx context.Context, urlStr string) (*http.Response, error) {
	maxRetries := 3
	var lastErr error

	for i := 0; i < maxRetries; i++ {
		req, err := http.NewRequestWithContext(ctx, "GET", urlStr, nil)
		if err != nil {
			return nil, err
		}

		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			time.Sleep(time.Duration(i+1) * time.Second)
			continue
		}

		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			time.Sleep(time.Duration(i+1) * time.Second)
			continue
		}

		return resp, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}
