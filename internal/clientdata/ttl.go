package clientdata

import "time"

// TTL constants for different data types.
// These are added to time.Now() when storing to calculate expires_at.
const (
	// Daily series only gain a new point once per trading day
	TTLPriceHistory = 24 * time.Hour // 1 day - Historical price series
	TTLFxSeries     = 24 * time.Hour // 1 day - Historical exchange rate series

	// Short-lived data (changes frequently)
	TTLRiskFreeRate = time.Hour        // 1 hour - Treasury yields
	TTLQuote        = 10 * time.Minute // 10 minutes - Current quote cache
	TTLComparison   = 15 * time.Minute // 15 minutes - Assembled comparison results
)
