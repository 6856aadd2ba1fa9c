package fmp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"time"

	"github.com/aristath/spyglass/internal/clientdata"
	"github.com/aristath/spyglass/internal/domain"
)

// vendorBar is a single historical bar as FMP (and older API revisions)
// serialize it. Close arrives under several aliases depending on endpoint
// generation; normalization to the canonical PricePoint happens here, once,
// so downstream code never branches on field-name variants.
type vendorBar struct {
	Date       string   `json:"date"`
	Open       float64  `json:"open"`
	High       float64  `json:"high"`
	Low        float64  `json:"low"`
	Close      *float64 `json:"close"`
	Price      *float64 `json:"price"`
	AdjClose   *float64 `json:"adjClose"`
	ClosePrice *float64 `json:"close_price"`
	Volume     int64    `json:"volume"`
}

// closeValue resolves the close price across vendor field aliases.
func (b vendorBar) closeValue() (float64, bool) {
	for _, v := range []*float64{b.Close, b.Price, b.AdjClose, b.ClosePrice} {
		if v != nil && *v != 0 {
			return *v, true
		}
	}
	return 0, false
}

// historicalResponse is the envelope FMP wraps price history in.
type historicalResponse struct {
	Symbol     string      `json:"symbol"`
	Historical []vendorBar `json:"historical"`
}

// FetchPriceHistory returns the daily price series for symbol over
// [start, end], sorted ascending by date. Implements domain.PriceHistorySource.
func (c *Client) FetchPriceHistory(ctx context.Context, symbol string, start, end time.Time) ([]domain.PricePoint, error) {
	cacheKey := fmt.Sprintf("%s:%s:%s", symbol, start.Format(domain.DateFormat), end.Format(domain.DateFormat))

	if data := c.getFresh("fmp_history", cacheKey); data != nil {
		var points []domain.PricePoint
		if err := json.Unmarshal(data, &points); err == nil {
			c.log.Debug().Str("symbol", symbol).Int("points", len(points)).Msg("History cache hit")
			return points, nil
		}
	}

	params := url.Values{}
	params.Set("from", start.Format(domain.DateFormat))
	params.Set("to", end.Format(domain.DateFormat))

	body, err := c.makeRequest(ctx, "historical-price-full/"+symbol, params)
	if err != nil {
		if points, ok := c.stalePoints(cacheKey); ok {
			c.log.Warn().Err(err).Str("symbol", symbol).Msg("API failed, using stale cached history")
			return points, nil
		}
		return nil, fmt.Errorf("failed to fetch history for %s: %w", symbol, err)
	}

	var resp historicalResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		if points, ok := c.stalePoints(cacheKey); ok {
			c.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to parse history response, using stale cached history")
			return points, nil
		}
		return nil, fmt.Errorf("failed to parse history for %s: %w", symbol, err)
	}

	points := normalizeBars(resp.Historical)
	if len(points) == 0 {
		if stale, ok := c.stalePoints(cacheKey); ok {
			c.log.Warn().Str("symbol", symbol).Msg("Empty history response, using stale cached history")
			return stale, nil
		}
		return nil, fmt.Errorf("no price history for %s", symbol)
	}

	c.store("fmp_history", cacheKey, points, clientdata.TTLPriceHistory)

	c.log.Info().
		Str("symbol", symbol).
		Int("points", len(points)).
		Msg("Fetched price history")

	return points, nil
}

// stalePoints retrieves a cached series even if expired.
func (c *Client) stalePoints(cacheKey string) ([]domain.PricePoint, bool) {
	data := c.getStale("fmp_history", cacheKey)
	if data == nil {
		return nil, false
	}
	var points []domain.PricePoint
	if err := json.Unmarshal(data, &points); err != nil {
		return nil, false
	}
	return points, true
}

// normalizeBars maps vendor bars into canonical PricePoints, dropping
// unparseable dates and bars with no resolvable close, and sorting the
// result ascending (FMP returns newest-first).
func normalizeBars(bars []vendorBar) []domain.PricePoint {
	points := make([]domain.PricePoint, 0, len(bars))
	for _, bar := range bars {
		date, err := time.Parse(domain.DateFormat, bar.Date)
		if err != nil {
			continue
		}
		close, ok := bar.closeValue()
		if !ok {
			continue
		}
		points = append(points, domain.PricePoint{
			Date:   date,
			Open:   bar.Open,
			High:   bar.High,
			Low:    bar.Low,
			Close:  close,
			Volume: bar.Volume,
		})
	}

	sort.Slice(points, func(i, j int) bool {
		return points[i].Date.Before(points[j].Date)
	})

	return points
}

// FetchFxSeries returns the historical exchange rate series for a pair
// symbol (e.g. "EURUSD") as a date -> rate map over [start, end].
// Implements domain.FxSeriesSource.
func (c *Client) FetchFxSeries(ctx context.Context, pairSymbol string, start, end time.Time) (map[string]float64, error) {
	cacheKey := fmt.Sprintf("%s:%s:%s", pairSymbol, start.Format(domain.DateFormat), end.Format(domain.DateFormat))

	if data := c.getFresh("fmp_fx_series", cacheKey); data != nil {
		var rates map[string]float64
		if err := json.Unmarshal(data, &rates); err == nil {
			c.log.Debug().Str("pair", pairSymbol).Int("rates", len(rates)).Msg("FX series cache hit")
			return rates, nil
		}
	}

	params := url.Values{}
	params.Set("from", start.Format(domain.DateFormat))
	params.Set("to", end.Format(domain.DateFormat))

	body, err := c.makeRequest(ctx, "historical-price-full/"+pairSymbol, params)
	if err != nil {
		if rates, ok := c.staleRates(cacheKey); ok {
			c.log.Warn().Err(err).Str("pair", pairSymbol).Msg("API failed, using stale cached FX series")
			return rates, nil
		}
		return nil, fmt.Errorf("failed to fetch FX series for %s: %w", pairSymbol, err)
	}

	var resp historicalResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		if rates, ok := c.staleRates(cacheKey); ok {
			c.log.Warn().Err(err).Str("pair", pairSymbol).Msg("Failed to parse FX response, using stale cached FX series")
			return rates, nil
		}
		return nil, fmt.Errorf("failed to parse FX series for %s: %w", pairSymbol, err)
	}

	rates := make(map[string]float64, len(resp.Historical))
	for _, bar := range resp.Historical {
		close, ok := bar.closeValue()
		if !ok || close <= 0 {
			continue
		}
		if _, err := time.Parse(domain.DateFormat, bar.Date); err != nil {
			continue
		}
		rates[bar.Date] = close
	}

	if len(rates) == 0 {
		if stale, ok := c.staleRates(cacheKey); ok {
			c.log.Warn().Str("pair", pairSymbol).Msg("Empty FX response, using stale cached FX series")
			return stale, nil
		}
		return nil, fmt.Errorf("no FX rates for %s", pairSymbol)
	}

	c.store("fmp_fx_series", cacheKey, rates, clientdata.TTLFxSeries)

	c.log.Info().
		Str("pair", pairSymbol).
		Int("rates", len(rates)).
		Msg("Fetched FX series")

	return rates, nil
}

// staleRates retrieves a cached FX series even if expired.
func (c *Client) staleRates(cacheKey string) (map[string]float64, bool) {
	data := c.getStale("fmp_fx_series", cacheKey)
	if data == nil {
		return nil, false
	}
	var rates map[string]float64
	if err := json.Unmarshal(data, &rates); err != nil {
		return nil, false
	}
	return rates, true
}
