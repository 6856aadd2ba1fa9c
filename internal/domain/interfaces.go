package domain

import (
	"context"
	"time"
)

// PriceHistorySource fetches raw dated prices for a symbol.
// Implementations own their timeouts and retry behavior; callers treat a
// returned error as "symbol unavailable" and continue with partial results.
type PriceHistorySource interface {
	FetchPriceHistory(ctx context.Context, symbol string, start, end time.Time) ([]PricePoint, error)
}

// FxSeriesSource fetches a historical exchange-rate series for a currency
// pair symbol (e.g. "EURUSD") as a date -> rate map.
type FxSeriesSource interface {
	FetchFxSeries(ctx context.Context, pairSymbol string, start, end time.Time) (map[string]float64, error)
}

// RiskFreeRateSource returns an annual decimal risk-free rate for a currency
// as of a given date.
type RiskFreeRateSource interface {
	RiskFreeRate(ctx context.Context, currency Currency, asOf time.Time) (float64, error)
}

// QuoteSource fetches a current quote for a symbol.
type QuoteSource interface {
	FetchQuote(ctx context.Context, symbol string) (*Quote, error)
}

// Quote is a current market snapshot for a symbol.
type Quote struct {
	Symbol    string   `json:"symbol"`
	Name      string   `json:"name"`
	Price     float64  `json:"price"`
	Currency  Currency `json:"currency"`
	Exchange  string   `json:"exchange"`
	MarketCap int64    `json:"market_cap,omitempty"`
}

// Cache is an opaque TTL key-value store. All core components must behave
// correctly (just slower) when backed by a no-op implementation.
type Cache interface {
	// Get returns the cached raw value for key, or nil when absent/expired.
	Get(key string) []byte
	// Set stores value under key for the given TTL.
	Set(key string, value []byte, ttl time.Duration) error
}

// NopCache is a Cache that stores nothing.
type NopCache struct{}

func (NopCache) Get(string) []byte                        { return nil }
func (NopCache) Set(string, []byte, time.Duration) error { return nil }
