package fmp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aristath/spyglass/internal/clientdata"
	"github.com/aristath/spyglass/internal/domain"
)

// treasuryMaturityFields lists yield fields in preference order. The 1-year
// yield approximates the annual risk-free rate; shorter and longer
// maturities are fallbacks when the preferred field is absent.
var treasuryMaturityFields = []string{
	"year1", "yield_1_year",
	"month3", "yield_3_month",
	"month6", "yield_6_month",
	"year2", "yield_2_year",
}

// TreasuryYield fetches the most recent US treasury yield on or before asOf,
// as an annual decimal rate. Looks back 30 days to cover weekends, holidays
// and publication lag.
func (c *Client) TreasuryYield(ctx context.Context, asOf time.Time) (float64, error) {
	cacheKey := "USD:" + asOf.Format(domain.DateFormat)

	if data := c.getFresh("risk_free_rates", cacheKey); data != nil {
		var rate float64
		if err := json.Unmarshal(data, &rate); err == nil {
			return rate, nil
		}
	}

	start := asOf.AddDate(0, 0, -30)

	params := url.Values{}
	params.Set("from", start.Format(domain.DateFormat))
	params.Set("to", asOf.Format(domain.DateFormat))

	body, err := c.makeRequest(ctx, "treasury", params)
	if err != nil {
		if rate, ok := c.staleRate(cacheKey); ok {
			c.log.Warn().Err(err).Msg("API failed, using stale cached treasury yield")
			return rate, nil
		}
		return 0, fmt.Errorf("failed to fetch treasury yields: %w", err)
	}

	var rows []map[string]json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil || len(rows) == 0 {
		if rate, ok := c.staleRate(cacheKey); ok {
			c.log.Warn().Msg("Bad treasury response, using stale cached yield")
			return rate, nil
		}
		return 0, fmt.Errorf("no treasury data in response")
	}

	rate, ok := latestTreasuryYield(rows)
	if !ok {
		if stale, staleOK := c.staleRate(cacheKey); staleOK {
			return stale, nil
		}
		return 0, fmt.Errorf("no usable yield field in treasury data")
	}

	c.store("risk_free_rates", cacheKey, rate, clientdata.TTLRiskFreeRate)

	c.log.Info().
		Float64("rate", rate).
		Str("as_of", asOf.Format(domain.DateFormat)).
		Msg("Fetched treasury yield")

	return rate, nil
}

// latestTreasuryYield scans rows newest-first for the first usable maturity
// field and converts the percentage yield to a decimal rate.
func latestTreasuryYield(rows []map[string]json.RawMessage) (float64, bool) {
	// FMP returns newest-first but sort order has changed across API
	// revisions; prefer the row with the latest date when one is present.
	latest := rows[0]
	latestDate := rowDate(rows[0])
	for _, row := range rows[1:] {
		if d := rowDate(row); d > latestDate {
			latest, latestDate = row, d
		}
	}

	for _, field := range treasuryMaturityFields {
		raw, ok := latest[field]
		if !ok {
			continue
		}
		var yield float64
		if err := json.Unmarshal(raw, &yield); err != nil {
			// Some revisions serialize yields as strings
			var s string
			if err := json.Unmarshal(raw, &s); err != nil {
				continue
			}
			if _, err := fmt.Sscanf(strings.TrimSpace(s), "%f", &yield); err != nil {
				continue
			}
		}
		if yield > 0 {
			return yield / 100.0, true
		}
	}
	return 0, false
}

func rowDate(row map[string]json.RawMessage) string {
	raw, ok := row["date"]
	if !ok {
		return ""
	}
	var d string
	if err := json.Unmarshal(raw, &d); err != nil {
		return ""
	}
	return d
}

// staleRate retrieves a cached rate even if expired.
func (c *Client) staleRate(cacheKey string) (float64, bool) {
	data := c.getStale("risk_free_rates", cacheKey)
	if data == nil {
		return 0, false
	}
	var rate float64
	if err := json.Unmarshal(data, &rate); err != nil {
		return 0, false
	}
	return rate, true
}
