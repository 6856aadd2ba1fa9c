// Package fmp provides a Financial Modeling Prep API client with persistent
// cache-first behavior. Every fetch checks the client data cache for fresh
// data, hits the API on a miss, and falls back to stale cached data when the
// API fails (stale data > no data).
package fmp

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aristath/spyglass/internal/clientdata"
	"github.com/rs/zerolog"
)

// DefaultBaseURL is the FMP v3 API root.
const DefaultBaseURL = "https://financialmodelingprep.com/api/v3"

// Config holds client configuration.
type Config struct {
	APIKey  string
	BaseURL string        // defaults to DefaultBaseURL
	Timeout time.Duration // defaults to 15s
}

// Client for financialmodelingprep.com.
type Client struct {
	baseURL   string
	apiKey    string
	client    *http.Client
	log       zerolog.Logger
	cacheRepo *clientdata.Repository
}

// NewClient creates a new FMP client.
// cacheRepo is optional - if nil, caching is disabled.
func NewClient(cfg Config, cacheRepo *clientdata.Repository, log zerolog.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}

	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    cfg.APIKey,
		client:    &http.Client{Timeout: timeout},
		log:       log.With().Str("client", "fmp").Logger(),
		cacheRepo: cacheRepo,
	}
}

// makeRequest performs a GET against endpoint (path relative to the base URL)
// and returns the raw response body.
func (c *Client) makeRequest(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("FMP_API_KEY not configured")
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("apikey", c.apiKey)

	reqURL := c.baseURL + "/" + endpoint + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return body, nil
}

// getFresh returns fresh cached data for a table/key, or nil.
func (c *Client) getFresh(table, key string) []byte {
	if c.cacheRepo == nil {
		return nil
	}
	data, err := c.cacheRepo.GetIfFresh(table, key)
	if err != nil || data == nil {
		return nil
	}
	return data
}

// getStale returns cached data regardless of expiration, or nil.
// Use this as a fallback when API calls fail.
func (c *Client) getStale(table, key string) []byte {
	if c.cacheRepo == nil {
		return nil
	}
	data, err := c.cacheRepo.Get(table, key)
	if err != nil || data == nil {
		return nil
	}
	return data
}

// store caches data, logging (not failing) on cache errors.
func (c *Client) store(table, key string, data interface{}, ttl time.Duration) {
	if c.cacheRepo == nil {
		return
	}
	if err := c.cacheRepo.Store(table, key, data, ttl); err != nil {
		c.log.Warn().Err(err).Str("table", table).Str("key", key).Msg("Failed to cache API response")
	}
}
