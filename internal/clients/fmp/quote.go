package fmp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aristath/spyglass/internal/clientdata"
	"github.com/aristath/spyglass/internal/domain"
)

// vendorQuote carries the alias spread FMP uses across quote endpoint
// generations; the price and currency fields are resolved once, here.
type vendorQuote struct {
	Symbol     string   `json:"symbol"`
	Name       string   `json:"name"`
	Price      *float64 `json:"price"`
	Close      *float64 `json:"close"`
	ClosePrice *float64 `json:"close_price"`
	AdjClose   *float64 `json:"adjClose"`
	Currency   string   `json:"currency"`
	Exchange   string   `json:"exchange"`
	MarketCap  int64    `json:"marketCap"`
}

func (q vendorQuote) priceValue() (float64, bool) {
	for _, v := range []*float64{q.Price, q.Close, q.ClosePrice, q.AdjClose} {
		if v != nil && *v != 0 {
			return *v, true
		}
	}
	return 0, false
}

// FetchQuote returns the current quote for a symbol.
// Implements domain.QuoteSource.
func (c *Client) FetchQuote(ctx context.Context, symbol string) (*domain.Quote, error) {
	if data := c.getFresh("fmp_quotes", symbol); data != nil {
		var quote domain.Quote
		if err := json.Unmarshal(data, &quote); err == nil {
			c.log.Debug().Str("symbol", symbol).Msg("Quote cache hit")
			return &quote, nil
		}
	}

	body, err := c.makeRequest(ctx, "quote/"+symbol, nil)
	if err != nil {
		if quote, ok := c.staleQuote(symbol); ok {
			c.log.Warn().Err(err).Str("symbol", symbol).Msg("API failed, using stale cached quote")
			return quote, nil
		}
		return nil, fmt.Errorf("failed to fetch quote for %s: %w", symbol, err)
	}

	var raw []vendorQuote
	if err := json.Unmarshal(body, &raw); err != nil || len(raw) == 0 {
		if quote, ok := c.staleQuote(symbol); ok {
			c.log.Warn().Str("symbol", symbol).Msg("Bad quote response, using stale cached quote")
			return quote, nil
		}
		return nil, fmt.Errorf("no quote for %s", symbol)
	}

	price, ok := raw[0].priceValue()
	if !ok {
		if quote, ok := c.staleQuote(symbol); ok {
			return quote, nil
		}
		return nil, fmt.Errorf("quote for %s has no price", symbol)
	}

	currency := domain.Currency(raw[0].Currency)
	if currency == "" {
		currency = domain.CurrencyUSD
	}

	quote := &domain.Quote{
		Symbol:    raw[0].Symbol,
		Name:      raw[0].Name,
		Price:     price,
		Currency:  currency,
		Exchange:  raw[0].Exchange,
		MarketCap: raw[0].MarketCap,
	}

	c.store("fmp_quotes", symbol, quote, clientdata.TTLQuote)

	return quote, nil
}

// staleQuote retrieves a cached quote even if expired.
func (c *Client) staleQuote(symbol string) (*domain.Quote, bool) {
	data := c.getStale("fmp_quotes", symbol)
	if data == nil {
		return nil, false
	}
	var quote domain.Quote
	if err := json.Unmarshal(data, &quote); err != nil {
		return nil, false
	}
	return &quote, true
}

// Dispatch builds the asset-kind dispatch table over this client. All kinds
// currently share the same FMP endpoints; the table keeps callers free of
// symbol-shape branching and leaves room for kind-specific sources.
func (c *Client) Dispatch() domain.Dispatch {
	ops := domain.AssetOps{
		FetchQuote:   c.FetchQuote,
		FetchHistory: c.FetchPriceHistory,
	}
	return domain.Dispatch{
		domain.KindStock:     ops,
		domain.KindETF:       ops,
		domain.KindCrypto:    ops,
		domain.KindCommodity: ops,
		domain.KindForex:     ops,
	}
}
