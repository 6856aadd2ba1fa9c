// Package currency converts price series between currencies using batched
// historical FX rates: one fetch per (pair, date-range), never one call per
// data point.
package currency

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/spyglass/internal/domain"
)

// intermediateCurrencies lists cross-rate intermediates in preference order:
// the reserve currency first, then the majors.
var intermediateCurrencies = []domain.Currency{
	domain.CurrencyUSD,
	domain.CurrencyEUR,
	domain.CurrencyGBP,
	domain.CurrencyJPY,
}

// Normalizer converts dated price points between currencies.
type Normalizer struct {
	fx  domain.FxSeriesSource
	log zerolog.Logger
}

// NewNormalizer creates a currency normalizer backed by an FX series source.
func NewNormalizer(fx domain.FxSeriesSource, log zerolog.Logger) *Normalizer {
	return &Normalizer{
		fx:  fx,
		log: log.With().Str("service", "currency_normalizer").Logger(),
	}
}

// HistoricalRatesBatch builds a rate table for from->to covering
// [start, end] with a single fetch per attempted pair. Resolution order:
// direct pair, inverse pair (reciprocal), cross rate through an intermediate
// currency. Returns an empty table when no path resolves.
func (n *Normalizer) HistoricalRatesBatch(ctx context.Context, from, to domain.Currency, start, end time.Time) (RateTable, error) {
	visited := make(map[string]bool)
	return n.resolveRates(ctx, from, to, start, end, visited)
}

// resolveRates is HistoricalRatesBatch with loop protection. The visited set
// tracks in-flight (from,to) pairs for this resolution only; it is a local
// argument, never struct state, so concurrent resolutions cannot interfere.
func (n *Normalizer) resolveRates(ctx context.Context, from, to domain.Currency, start, end time.Time, visited map[string]bool) (RateTable, error) {
	table := RateTable{From: from, To: to}

	pairKey := string(from) + ":" + string(to)
	if visited[pairKey] {
		n.log.Warn().
			Str("from", string(from)).
			Str("to", string(to)).
			Msg("Conversion loop detected, abandoning path")
		return table, nil
	}
	visited[pairKey] = true
	defer delete(visited, pairKey)

	// Direct pair
	if rates, err := n.fx.FetchFxSeries(ctx, string(from)+string(to), start, end); err == nil && len(rates) > 0 {
		table.Rates = toDecimalRates(rates)
		return table, nil
	}

	// Inverse pair, reciprocal rates
	if rates, err := n.fx.FetchFxSeries(ctx, string(to)+string(from), start, end); err == nil && len(rates) > 0 {
		one := decimal.NewFromInt(1)
		inverted := make(map[string]decimal.Decimal, len(rates))
		for date, rate := range rates {
			if rate <= 0 {
				continue
			}
			inverted[date] = one.Div(decimal.NewFromFloat(rate))
		}
		if len(inverted) > 0 {
			table.Rates = inverted
			n.log.Debug().
				Str("from", string(from)).
				Str("to", string(to)).
				Msg("Resolved rates via inverse pair")
			return table, nil
		}
	}

	// Cross rate through an intermediate currency, two legs composed
	for _, mid := range intermediateCurrencies {
		if mid == from || mid == to {
			continue
		}

		leg1, err := n.resolveRates(ctx, from, mid, start, end, visited)
		if err != nil || leg1.Empty() {
			continue
		}
		leg2, err := n.resolveRates(ctx, mid, to, start, end, visited)
		if err != nil || leg2.Empty() {
			continue
		}

		composed := make(map[string]decimal.Decimal, len(leg1.Rates))
		for date, r1 := range leg1.Rates {
			r2, ok := leg2.Rates[date]
			if !ok {
				r2, ok = leg2.ClosestRate(date)
				if !ok {
					continue
				}
			}
			composed[date] = r1.Mul(r2)
		}

		if len(composed) > 0 {
			table.Rates = composed
			n.log.Info().
				Str("from", string(from)).
				Str("to", string(to)).
				Str("via", string(mid)).
				Msg("Resolved rates via cross-currency path")
			return table, nil
		}
	}

	return table, fmt.Errorf("no conversion path for %s to %s", from, to)
}

// NormalizePrices converts prices from one currency to another using a single
// batched rate table spanning the series' date range. Points whose rate
// cannot be resolved are passed through unconverted rather than dropped;
// partial success stays visible downstream. Converted points carry their
// original currency.
func (n *Normalizer) NormalizePrices(ctx context.Context, prices []domain.PricePoint, from, to domain.Currency) []domain.PricePoint {
	if from == to || len(prices) == 0 {
		return prices
	}

	minDate, maxDate := prices[0].Date, prices[0].Date
	for _, p := range prices[1:] {
		if p.Date.Before(minDate) {
			minDate = p.Date
		}
		if p.Date.After(maxDate) {
			maxDate = p.Date
		}
	}

	table, err := n.HistoricalRatesBatch(ctx, from, to, minDate, maxDate)
	if err != nil || table.Empty() {
		n.log.Warn().
			Err(err).
			Str("from", string(from)).
			Str("to", string(to)).
			Int("points", len(prices)).
			Msg("No FX rates available, passing prices through unconverted")
		return prices
	}

	converted := make([]domain.PricePoint, 0, len(prices))
	unresolved := 0
	for _, p := range prices {
		rate, ok := table.Rates[p.Date.Format(domain.DateFormat)]
		if !ok {
			rate, ok = table.ClosestRate(p.Date.Format(domain.DateFormat))
		}
		if !ok || !p.Usable() {
			converted = append(converted, p)
			unresolved++
			continue
		}

		cp := p
		cp.Close = mulRate(p.Close, rate)
		if p.Open != 0 {
			cp.Open = mulRate(p.Open, rate)
		}
		if p.High != 0 {
			cp.High = mulRate(p.High, rate)
		}
		if p.Low != 0 {
			cp.Low = mulRate(p.Low, rate)
		}
		cp.OriginalCurrency = from
		converted = append(converted, cp)
	}

	if unresolved > 0 {
		n.log.Warn().
			Str("from", string(from)).
			Str("to", string(to)).
			Int("unresolved", unresolved).
			Msg("Some points passed through unconverted")
	}

	return converted
}

func mulRate(value float64, rate decimal.Decimal) float64 {
	return decimal.NewFromFloat(value).Mul(rate).InexactFloat64()
}

func toDecimalRates(rates map[string]float64) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(rates))
	for date, rate := range rates {
		if rate <= 0 {
			continue
		}
		out[date] = decimal.NewFromFloat(rate)
	}
	return out
}
