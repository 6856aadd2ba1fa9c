package domain

import (
	"context"
	"strings"
	"time"
)

// AssetKind tags the five asset categories the data source distinguishes.
// Kind-specific fetch behavior lives in a dispatch table (AssetOps), not in
// a type hierarchy.
type AssetKind string

const (
	KindStock     AssetKind = "stock"
	KindETF       AssetKind = "etf"
	KindCrypto    AssetKind = "crypto"
	KindCommodity AssetKind = "commodity"
	KindForex     AssetKind = "forex"
)

// AssetOps is the per-kind function pair for quote and history fetching.
type AssetOps struct {
	FetchQuote   func(ctx context.Context, symbol string) (*Quote, error)
	FetchHistory func(ctx context.Context, symbol string, start, end time.Time) ([]PricePoint, error)
}

// Dispatch maps each asset kind to its fetch operations. Built once at
// wiring time by the data client; consumers look up by kind and never
// branch on symbol shape themselves.
type Dispatch map[AssetKind]AssetOps

// Ops returns the operations for kind, falling back to the stock operations
// when the kind has no dedicated entry.
func (d Dispatch) Ops(kind AssetKind) AssetOps {
	if ops, ok := d[kind]; ok {
		return ops
	}
	return d[KindStock]
}

// ClassifySymbol infers the asset kind from the symbol's shape. Crypto pairs
// end in USD with a known base (BTCUSD), commodities use futures-style
// suffixes (GCUSD, CLUSD share the same shape; the explicit set wins), forex
// pairs are two ISO codes glued together.
func ClassifySymbol(symbol string) AssetKind {
	s := strings.ToUpper(symbol)
	if commoditySymbols[s] {
		return KindCommodity
	}
	if cryptoSymbols[s] {
		return KindCrypto
	}
	if len(s) == 6 && isCurrencyCode(s[:3]) && isCurrencyCode(s[3:]) {
		return KindForex
	}
	return KindStock
}

var commoditySymbols = map[string]bool{
	"GCUSD": true, // Gold
	"SIUSD": true, // Silver
	"CLUSD": true, // Crude oil WTI
	"BZUSD": true, // Brent
	"NGUSD": true, // Natural gas
	"HGUSD": true, // Copper
	"PLUSD": true, // Platinum
	"PAUSD": true, // Palladium
}

var cryptoSymbols = map[string]bool{
	"BTCUSD":  true,
	"ETHUSD":  true,
	"SOLUSD":  true,
	"ADAUSD":  true,
	"XRPUSD":  true,
	"DOGEUSD": true,
	"DOTUSD":  true,
	"LTCUSD":  true,
}

var currencyCodes = map[string]bool{
	"USD": true, "EUR": true, "GBP": true, "JPY": true, "CHF": true,
	"AUD": true, "CAD": true, "NZD": true, "HKD": true, "SGD": true,
	"SEK": true, "NOK": true, "DKK": true, "CNY": true, "PLN": true,
}

func isCurrencyCode(s string) bool {
	return currencyCodes[s]
}
