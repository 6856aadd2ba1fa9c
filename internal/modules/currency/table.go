package currency

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aristath/spyglass/internal/domain"
)

// RateTable holds historical exchange rates for one ordered currency pair,
// keyed by ISO-8601 date. Rates are decimals so that inverse and cross-rate
// composition stay exact through multiple legs.
type RateTable struct {
	From  domain.Currency
	To    domain.Currency
	Rates map[string]decimal.Decimal
}

// Empty reports whether the table holds no rates.
func (t RateTable) Empty() bool {
	return len(t.Rates) == 0
}

// closestRateWindowDays bounds the expanding-window search around a target
// date before falling back to any available rate.
const closestRateWindowDays = 7

// ClosestRate returns the rate nearest to target (ISO date). The search
// expands ±1, ±2, ... ±7 calendar days; when nothing lands in the window it
// returns the earliest available rate rather than failing. A stale rate
// beats dropping the whole asset from a comparison.
func (t RateTable) ClosestRate(target string) (decimal.Decimal, bool) {
	if t.Empty() {
		return decimal.Decimal{}, false
	}

	if rate, ok := t.Rates[target]; ok {
		return rate, true
	}

	date, err := time.Parse(domain.DateFormat, target)
	if err != nil {
		return decimal.Decimal{}, false
	}

	for offset := 1; offset <= closestRateWindowDays; offset++ {
		for _, days := range []int{offset, -offset} {
			check := date.AddDate(0, 0, days).Format(domain.DateFormat)
			if rate, ok := t.Rates[check]; ok {
				return rate, true
			}
		}
	}

	// Nothing within the window: return the earliest rate so the lookup is
	// deterministic.
	dates := make([]string, 0, len(t.Rates))
	for d := range t.Rates {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return t.Rates[dates[0]], true
}
