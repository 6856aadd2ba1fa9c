// Package domain provides core domain models and types.
package domain

import (
	"math"
	"time"
)

// Currency represents a currency code
type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
	CurrencyGBP Currency = "GBP"
	CurrencyJPY Currency = "JPY"
	CurrencyCHF Currency = "CHF"
	CurrencyHKD Currency = "HKD"
)

// DateFormat is the canonical ISO-8601 date layout used throughout.
const DateFormat = "2006-01-02"

// PricePoint is a single dated price observation in the canonical shape.
// Close is the only required field; vendor field aliases (price, adjClose,
// close_price) are resolved at the data-source boundary, never downstream.
type PricePoint struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open,omitempty"`
	High   float64   `json:"high,omitempty"`
	Low    float64   `json:"low,omitempty"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume,omitempty"`

	// OriginalCurrency is set when the point was converted from another
	// currency by the normalizer, or left empty for pass-through points.
	OriginalCurrency Currency `json:"original_currency,omitempty"`
}

// Usable reports whether the point carries a finite positive close.
func (p PricePoint) Usable() bool {
	return p.Close > 0 && !isInfOrNaN(p.Close)
}

// OHLC returns the point's OHLC values with close as the fallback for
// missing open/high/low fields.
func (p PricePoint) OHLC() (open, high, low, close float64) {
	open, high, low, close = p.Open, p.High, p.Low, p.Close
	if open == 0 {
		open = close
	}
	if high == 0 {
		high = close
	}
	if low == 0 {
		low = close
	}
	return open, high, low, close
}

// AggregatedPoint is an OHLCV bucket produced by the series aggregator.
// Date is the bucket end (week-ending Sunday, month end, quarter end).
type AggregatedPoint struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// ChartPoint is a rebased point served to chart consumers.
// Value is the rebased value (index or cumulative percent), RawValue the
// close it was derived from.
type ChartPoint struct {
	Date     time.Time `json:"-"`
	Time     string    `json:"time"` // YYYY-MM-DD
	Value    float64   `json:"value"`
	RawValue float64   `json:"raw_value"`
}

// Granularity selects the aggregation bucket width.
type Granularity string

const (
	GranularityDaily     Granularity = "daily"
	GranularityWeekly    Granularity = "weekly"
	GranularityMonthly   Granularity = "monthly"
	GranularityQuarterly Granularity = "quarterly"
)

// PeriodsPerYear returns the annualization frequency for the granularity.
func (g Granularity) PeriodsPerYear() float64 {
	switch g {
	case GranularityWeekly:
		return 52
	case GranularityMonthly:
		return 12
	case GranularityQuarterly:
		return 4
	default:
		return 252
	}
}

// NormalizeMode selects how a series is rebased for cross-asset comparison.
type NormalizeMode string

const (
	// NormalizeIndex100 rebases the first point to index value 1000.
	NormalizeIndex100 NormalizeMode = "index100"
	// NormalizePercentChange rebases the first point to 0% cumulative change.
	NormalizePercentChange NormalizeMode = "percent_change"
)

// ParseNormalizeMode validates a normalize mode string.
func ParseNormalizeMode(s string) (NormalizeMode, bool) {
	switch NormalizeMode(s) {
	case NormalizeIndex100, NormalizePercentChange:
		return NormalizeMode(s), true
	}
	return "", false
}

// PeriodPreset is a named lookback window for comparisons.
type PeriodPreset string

const (
	PeriodOneMonth    PeriodPreset = "1M"
	PeriodThreeMonths PeriodPreset = "3M"
	PeriodSixMonths   PeriodPreset = "6M"
	PeriodYearToDate  PeriodPreset = "YTD"
	PeriodOneYear     PeriodPreset = "1Y"
	PeriodThreeYears  PeriodPreset = "3Y"
	PeriodFiveYears   PeriodPreset = "5Y"
	PeriodTenYears    PeriodPreset = "10Y"
	PeriodMax         PeriodPreset = "MAX"
)

// ParsePeriodPreset validates a period preset string.
func ParsePeriodPreset(s string) (PeriodPreset, bool) {
	switch PeriodPreset(s) {
	case PeriodOneMonth, PeriodThreeMonths, PeriodSixMonths, PeriodYearToDate,
		PeriodOneYear, PeriodThreeYears, PeriodFiveYears, PeriodTenYears, PeriodMax:
		return PeriodPreset(s), true
	}
	return "", false
}

// Range returns the start and end dates for the preset relative to now.
func (p PeriodPreset) Range(now time.Time) (start, end time.Time) {
	end = now
	switch p {
	case PeriodOneMonth:
		start = now.AddDate(0, 0, -30)
	case PeriodThreeMonths:
		start = now.AddDate(0, 0, -90)
	case PeriodSixMonths:
		start = now.AddDate(0, 0, -180)
	case PeriodYearToDate:
		start = time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())
	case PeriodOneYear:
		start = now.AddDate(-1, 0, 0)
	case PeriodThreeYears:
		start = now.AddDate(-3, 0, 0)
	case PeriodFiveYears:
		start = now.AddDate(-5, 0, 0)
	case PeriodTenYears:
		start = now.AddDate(-10, 0, 0)
	case PeriodMax:
		start = time.Date(2000, time.January, 1, 0, 0, 0, 0, now.Location())
	default:
		start = now.AddDate(-1, 0, 0)
	}
	return start, end
}

// Granularity returns the aggregation width implied by the preset length.
// Short windows stay daily, year-scale windows go weekly, multi-year
// windows go monthly so the point budget stays bounded.
func (p PeriodPreset) Granularity() Granularity {
	switch p {
	case PeriodOneMonth, PeriodThreeMonths, PeriodSixMonths:
		return GranularityDaily
	case PeriodYearToDate, PeriodOneYear, PeriodThreeYears:
		return GranularityWeekly
	case PeriodFiveYears, PeriodTenYears, PeriodMax:
		return GranularityMonthly
	default:
		return GranularityDaily
	}
}

func isInfOrNaN(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}
