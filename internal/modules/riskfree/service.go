// Package riskfree provides annual risk-free rates by currency.
package riskfree

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aristath/spyglass/internal/clientdata"
	"github.com/aristath/spyglass/internal/domain"
	"github.com/rs/zerolog"
)

// TreasurySource fetches government yield data.
type TreasurySource interface {
	TreasuryYield(ctx context.Context, asOf time.Time) (float64, error)
}

// defaultRates holds fallback annual rates by currency, used when no live or
// cached rate is available.
var defaultRates = map[domain.Currency]float64{
	"USD": 0.03,
	"EUR": 0.025,
	"GBP": 0.035,
	"JPY": 0.01,
	"CHF": 0.02,
	"CAD": 0.03,
	"AUD": 0.035,
	"NZD": 0.04,
	"SEK": 0.03,
	"NOK": 0.035,
	"DKK": 0.025,
	"PLN": 0.04,
	"CZK": 0.035,
	"HUF": 0.05,
	"BRL": 0.06,
	"MXN": 0.05,
	"SGD": 0.03,
	"HKD": 0.03,
	"INR": 0.05,
	"KRW": 0.03,
	"CNY": 0.025,
	"TRY": 0.08,
	"ZAR": 0.06,
	"ILS": 0.04,
}

// fallbackRate is used for currencies missing from the defaults table.
const fallbackRate = 0.03

// Service returns risk-free rates with 3-tier fallback:
// 1. Try the treasury source (live yields, USD only)
// 2. Try cached rate from DB, stale allowed
// 3. Use hardcoded per-currency defaults
type Service struct {
	treasury  TreasurySource
	cacheRepo *clientdata.Repository
	log       zerolog.Logger
}

// NewService creates a risk-free rate service.
// treasury and cacheRepo are both optional - nil tiers are skipped.
func NewService(treasury TreasurySource, cacheRepo *clientdata.Repository, log zerolog.Logger) *Service {
	return &Service{
		treasury:  treasury,
		cacheRepo: cacheRepo,
		log:       log.With().Str("service", "riskfree").Logger(),
	}
}

// RiskFreeRate returns the annual decimal risk-free rate for a currency as of
// a date. Implements domain.RiskFreeRateSource. Never returns an error: every
// tier failure degrades to the next tier and the defaults table always
// resolves.
func (s *Service) RiskFreeRate(ctx context.Context, currency domain.Currency, asOf time.Time) (float64, error) {
	// Tier 1: live treasury yields. Only USD has a treasury endpoint; other
	// currencies go straight to cache/defaults.
	if s.treasury != nil && currency == domain.CurrencyUSD {
		rate, err := s.treasury.TreasuryYield(ctx, asOf)
		if err == nil && rate > 0 {
			s.log.Debug().
				Str("currency", string(currency)).
				Float64("rate", rate).
				Str("source", "treasury").
				Msg("Got risk-free rate from treasury yields")
			return rate, nil
		}
		if err != nil {
			s.log.Warn().Err(err).Msg("Treasury fetch failed, trying cache")
		}
	}

	// Tier 2: cached rate, stale allowed
	if rate, ok := s.cachedRate(currency, asOf); ok {
		s.log.Warn().
			Str("currency", string(currency)).
			Float64("rate", rate).
			Str("source", "cache").
			Msg("Using cached risk-free rate")
		return rate, nil
	}

	// Tier 3: hardcoded defaults (last resort)
	rate, ok := defaultRates[currency]
	if !ok {
		rate = fallbackRate
	}
	s.log.Debug().
		Str("currency", string(currency)).
		Float64("rate", rate).
		Str("source", "default").
		Msg("Using default risk-free rate")
	return rate, nil
}

// YTDRate returns the rate as of the start of asOf's year, for year-to-date
// metric windows.
func (s *Service) YTDRate(ctx context.Context, currency domain.Currency, asOf time.Time) (float64, error) {
	yearStart := time.Date(asOf.Year(), time.January, 1, 0, 0, 0, 0, asOf.Location())
	return s.RiskFreeRate(ctx, currency, yearStart)
}

// cachedRate looks up a stored rate for currency near asOf, stale allowed.
func (s *Service) cachedRate(currency domain.Currency, asOf time.Time) (float64, bool) {
	if s.cacheRepo == nil {
		return 0, false
	}

	key := string(currency) + ":" + asOf.Format(domain.DateFormat)
	data, err := s.cacheRepo.Get("risk_free_rates", key)
	if err != nil || data == nil {
		return 0, false
	}

	var rate float64
	if err := json.Unmarshal(data, &rate); err != nil {
		return 0, false
	}
	return rate, rate > 0
}
