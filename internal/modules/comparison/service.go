// Package comparison implements the cross-asset comparison pipeline: bounded
// parallel history fetch, currency normalization, aggregation, downsampling,
// rebasing, per-asset metrics, and the correlation matrix.
package comparison

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/aristath/spyglass/internal/domain"
	"github.com/aristath/spyglass/internal/modules/charts"
	"github.com/aristath/spyglass/internal/modules/currency"
	"github.com/aristath/spyglass/internal/modules/optimization"
	"github.com/aristath/spyglass/pkg/formulas"
)

// Request describes one comparison run.
type Request struct {
	Symbols      []string             `json:"symbols"`
	BaseCurrency domain.Currency      `json:"base_currency"`
	Period       domain.PeriodPreset  `json:"period"`
	Mode         domain.NormalizeMode `json:"mode"`
}

// AssetMetrics is the per-asset risk/return block computed from the rebased
// series.
type AssetMetrics struct {
	TotalReturn      float64 `json:"total_return"`
	AnnualizedReturn float64 `json:"annualized_return"`
	Volatility       float64 `json:"volatility"`
	SharpeRatio      float64 `json:"sharpe_ratio"`
	MaxDrawdown      float64 `json:"max_drawdown"`
}

// AssetInfo is the identity block attached per succeeded symbol.
type AssetInfo struct {
	Symbol   string           `json:"symbol"`
	Name     string           `json:"name,omitempty"`
	Kind     domain.AssetKind `json:"kind"`
	Currency domain.Currency  `json:"currency"`
	Price    float64          `json:"price,omitempty"`
	Exchange string           `json:"exchange,omitempty"`
}

// Result is the full comparison output. Partial results are the contract:
// failed symbols are reported, never fatal, as long as at least one symbol
// succeeded.
type Result struct {
	RequestID         string                              `json:"request_id"`
	ChartData         map[string][]domain.ChartPoint      `json:"chart_data"`
	Metrics           map[string]AssetMetrics             `json:"metrics"`
	CorrelationSyms   []string                            `json:"correlation_symbols"`
	CorrelationMatrix [][]float64                         `json:"correlation_matrix"`
	Frontier          []optimization.FrontierPoint        `json:"efficient_frontier,omitempty"`
	Assets            map[string]AssetInfo                `json:"assets"`
	SucceededSymbols  []string                            `json:"succeeded_symbols"`
	FailedSymbols     map[string]string                   `json:"failed_symbols,omitempty"`
	Period            domain.PeriodPreset                 `json:"period"`
	Mode              domain.NormalizeMode                `json:"mode"`
	BaseCurrency      domain.Currency                     `json:"base_currency"`
	GeneratedAt       time.Time                           `json:"generated_at"`
}

// fetchOutcome is one symbol's state carried between pipeline stages.
type fetchOutcome struct {
	symbol     string
	kind       domain.AssetKind
	quote      *domain.Quote
	aggregated []domain.AggregatedPoint
	chart      []domain.ChartPoint
}

// Service runs comparison requests. The cache is opaque; a nil cache
// disables result caching without changing behavior.
type Service struct {
	dispatch    domain.Dispatch
	normalizer  *currency.Normalizer
	riskFree    domain.RiskFreeRateSource
	optimizer   *optimization.Optimizer
	cache       domain.Cache
	cacheTTL    time.Duration
	concurrency int
	log         zerolog.Logger

	now func() time.Time
}

// NewService creates the comparison service. concurrency bounds the parallel
// history fetches; cacheTTL governs whole-result caching.
func NewService(
	dispatch domain.Dispatch,
	normalizer *currency.Normalizer,
	riskFree domain.RiskFreeRateSource,
	optimizer *optimization.Optimizer,
	cache domain.Cache,
	cacheTTL time.Duration,
	concurrency int,
	log zerolog.Logger,
) *Service {
	if concurrency < 1 {
		concurrency = 3
	}
	if cacheTTL <= 0 {
		cacheTTL = 15 * time.Minute
	}
	return &Service{
		dispatch:    dispatch,
		normalizer:  normalizer,
		riskFree:    riskFree,
		optimizer:   optimizer,
		cache:       cache,
		cacheTTL:    cacheTTL,
		concurrency: concurrency,
		log:         log.With().Str("service", "comparison").Logger(),
		now:         time.Now,
	}
}

// Compare runs the full pipeline for the request. It fails only when the
// request itself is invalid or every symbol failed; individual symbol
// failures surface in Result.FailedSymbols.
func (s *Service) Compare(ctx context.Context, req Request) (*Result, error) {
	symbols, err := normalizeSymbols(req.Symbols)
	if err != nil {
		return nil, err
	}
	if req.BaseCurrency == "" {
		req.BaseCurrency = domain.CurrencyUSD
	}
	if req.Mode == "" {
		req.Mode = domain.NormalizeIndex100
	}
	if req.Period == "" {
		req.Period = domain.PeriodOneYear
	}

	requestID := uuid.NewString()
	log := s.log.With().Str("request_id", requestID).Logger()

	if cached := s.cachedResult(symbols, req); cached != nil {
		log.Debug().Strs("symbols", symbols).Msg("Serving comparison from cache")
		return cached, nil
	}

	start, end := req.Period.Range(s.now())
	granularity := req.Period.Granularity()

	outcomes, failed := s.fetchAll(ctx, log, symbols, req.BaseCurrency, start, end, granularity)
	if len(outcomes) == 0 {
		return nil, fmt.Errorf("all symbols failed: %v", failureSummary(failed))
	}

	result := s.assemble(ctx, requestID, req, symbols, granularity, outcomes, failed)

	s.storeResult(symbols, req, result)

	log.Info().
		Int("succeeded", len(result.SucceededSymbols)).
		Int("failed", len(result.FailedSymbols)).
		Str("period", string(req.Period)).
		Msg("Comparison complete")

	return result, nil
}

// fetchAll runs the per-symbol fetch+normalize+aggregate stage with bounded
// parallelism. Outcomes come back in the input symbol order.
func (s *Service) fetchAll(
	ctx context.Context,
	log zerolog.Logger,
	symbols []string,
	baseCurrency domain.Currency,
	start, end time.Time,
	granularity domain.Granularity,
) ([]*fetchOutcome, map[string]string) {
	var mu sync.Mutex
	bySymbol := make(map[string]*fetchOutcome, len(symbols))
	failed := make(map[string]string)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, symbol := range symbols {
		symbol := symbol
		g.Go(func() error {
			outcome, err := s.fetchOne(gctx, symbol, baseCurrency, start, end, granularity)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Warn().Err(err).Str("symbol", symbol).Msg("Symbol fetch failed")
				failed[symbol] = err.Error()
				return nil // partial results, never abort the group
			}
			bySymbol[symbol] = outcome
			return nil
		})
	}
	_ = g.Wait()

	outcomes := make([]*fetchOutcome, 0, len(symbols))
	for _, symbol := range symbols {
		if o, ok := bySymbol[symbol]; ok {
			outcomes = append(outcomes, o)
		}
	}
	return outcomes, failed
}

func (s *Service) fetchOne(
	ctx context.Context,
	symbol string,
	baseCurrency domain.Currency,
	start, end time.Time,
	granularity domain.Granularity,
) (*fetchOutcome, error) {
	kind := domain.ClassifySymbol(symbol)
	ops := s.dispatch.Ops(kind)

	points, err := ops.FetchHistory(ctx, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("no price history for %s", symbol)
	}

	// Quote is best-effort: it carries the asset's native currency and the
	// info block. Without it the series is assumed already in base currency.
	quote, err := ops.FetchQuote(ctx, symbol)
	if err != nil {
		s.log.Debug().Err(err).Str("symbol", symbol).Msg("Quote fetch failed, skipping currency detection")
		quote = nil
	}

	if quote != nil && quote.Currency != "" && quote.Currency != baseCurrency {
		points = s.normalizer.NormalizePrices(ctx, points, quote.Currency, baseCurrency)
	}

	aggregated := charts.Aggregate(points, granularity)
	if len(aggregated) == 0 {
		return nil, fmt.Errorf("no usable price points for %s", symbol)
	}

	return &fetchOutcome{
		symbol:     symbol,
		kind:       kind,
		quote:      quote,
		aggregated: aggregated,
	}, nil
}

// assemble turns per-symbol outcomes into the final result: downsample,
// rebase, metrics, correlations, frontier.
func (s *Service) assemble(
	ctx context.Context,
	requestID string,
	req Request,
	symbols []string,
	granularity domain.Granularity,
	outcomes []*fetchOutcome,
	failed map[string]string,
) *Result {
	result := &Result{
		RequestID:        requestID,
		ChartData:        make(map[string][]domain.ChartPoint, len(outcomes)),
		Metrics:          make(map[string]AssetMetrics, len(outcomes)),
		Assets:           make(map[string]AssetInfo, len(outcomes)),
		SucceededSymbols: make([]string, 0, len(outcomes)),
		FailedSymbols:    failed,
		Period:           req.Period,
		Mode:             req.Mode,
		BaseCurrency:     req.BaseCurrency,
		GeneratedAt:      s.now(),
	}
	if len(result.FailedSymbols) == 0 {
		result.FailedSymbols = nil
	}

	riskFree := s.riskFreeRate(ctx, req)
	periodsPerYear := granularity.PeriodsPerYear()

	returnsBySymbol := make(map[string][]float64, len(outcomes))
	pricesBySymbol := make(map[string][]float64, len(outcomes))

	for _, o := range outcomes {
		o.chart = charts.Rebase(charts.Downsample(o.aggregated, charts.DefaultTargetPoints), req.Mode)

		result.ChartData[o.symbol] = o.chart
		result.SucceededSymbols = append(result.SucceededSymbols, o.symbol)
		result.Assets[o.symbol] = assetInfo(o, req.BaseCurrency)

		prices := rawValues(o.chart)
		returns := formulas.CalculateReturns(prices)
		returnsBySymbol[o.symbol] = returns
		pricesBySymbol[o.symbol] = prices

		result.Metrics[o.symbol] = AssetMetrics{
			TotalReturn:      totalReturn(prices),
			AnnualizedReturn: formulas.CalculateCAGR(prices, yearsSpanned(o.chart)),
			Volatility:       formulas.AnnualizedVolatility(returns, periodsPerYear),
			SharpeRatio:      formulas.CalculateSharpeRatio(returns, riskFree, periodsPerYear),
			MaxDrawdown:      formulas.CalculateMaxDrawdown(prices),
		}
	}

	// CorrelationMatrix takes price series and derives log returns itself
	seriesList := make([][]float64, len(result.SucceededSymbols))
	for i, symbol := range result.SucceededSymbols {
		seriesList[i] = pricesBySymbol[symbol]
	}
	result.CorrelationSyms = result.SucceededSymbols
	result.CorrelationMatrix = formulas.CorrelationMatrix(seriesList)

	if len(result.SucceededSymbols) >= 2 {
		result.Frontier = s.frontier(returnsBySymbol, result.SucceededSymbols, periodsPerYear, riskFree)
	}

	return result
}

// frontier attaches the efficient frontier when the succeeded set supports
// it. Failures degrade to an absent frontier, never a failed comparison.
func (s *Service) frontier(returnsBySymbol map[string][]float64, symbols []string, periodsPerYear, riskFree float64) []optimization.FrontierPoint {
	stats, err := optimization.BuildStatistics(returnsBySymbol, symbols, periodsPerYear)
	if err != nil {
		s.log.Debug().Err(err).Msg("Skipping frontier, statistics unavailable")
		return nil
	}
	points, err := s.optimizer.Frontier(stats, riskFree)
	if err != nil {
		s.log.Warn().Err(err).Msg("Skipping frontier, optimization failed")
		return nil
	}
	return points
}

func (s *Service) riskFreeRate(ctx context.Context, req Request) float64 {
	rate, err := s.riskFree.RiskFreeRate(ctx, req.BaseCurrency, s.now())
	if err != nil {
		s.log.Warn().Err(err).Str("currency", string(req.BaseCurrency)).Msg("Risk-free rate lookup failed, using zero")
		return 0
	}
	return rate
}

// ReturnsForSymbols exposes the fetch+normalize+aggregate stage as aligned
// per-symbol return series, for the optimization endpoint. Symbols that fail
// come back with an empty slice rather than an error.
func (s *Service) ReturnsForSymbols(ctx context.Context, symbols []string, baseCurrency domain.Currency, period string) (map[string][]float64, float64, error) {
	preset, ok := domain.ParsePeriodPreset(period)
	if !ok {
		return nil, 0, fmt.Errorf("unknown period %q", period)
	}
	normalized, err := normalizeSymbols(symbols)
	if err != nil {
		return nil, 0, err
	}

	start, end := preset.Range(s.now())
	granularity := preset.Granularity()

	outcomes, failed := s.fetchAll(ctx, s.log, normalized, baseCurrency, start, end, granularity)
	if len(outcomes) == 0 {
		return nil, 0, fmt.Errorf("all symbols failed: %v", failureSummary(failed))
	}

	returnsBySymbol := make(map[string][]float64, len(normalized))
	for _, symbol := range normalized {
		returnsBySymbol[symbol] = nil
	}
	for _, o := range outcomes {
		returnsBySymbol[o.symbol] = formulas.CalculateReturns(closes(o.aggregated))
	}
	return returnsBySymbol, granularity.PeriodsPerYear(), nil
}

// --- caching ---

func (s *Service) cachedResult(symbols []string, req Request) *Result {
	if s.cache == nil {
		return nil
	}
	raw := s.cache.Get(cacheKey(symbols, req))
	if raw == nil {
		return nil
	}
	var result Result
	if err := json.Unmarshal(raw, &result); err != nil {
		s.log.Warn().Err(err).Msg("Discarding malformed cached comparison")
		return nil
	}
	return &result
}

func (s *Service) storeResult(symbols []string, req Request, result *Result) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(result)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to encode comparison result for cache")
		return
	}
	if err := s.cache.Set(cacheKey(symbols, req), data, s.cacheTTL); err != nil {
		s.log.Warn().Err(err).Msg("Failed to cache comparison result")
	}
}

// cacheKey is order-insensitive over symbols so AAPL,MSFT and MSFT,AAPL hit
// the same entry.
func cacheKey(symbols []string, req Request) string {
	sorted := make([]string, len(symbols))
	copy(sorted, symbols)
	sort.Strings(sorted)
	return fmt.Sprintf("%s:%s:%s:%s", strings.Join(sorted, ","), req.BaseCurrency, req.Period, req.Mode)
}

// --- helpers ---

func normalizeSymbols(symbols []string) ([]string, error) {
	seen := make(map[string]bool, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no symbols provided")
	}
	return out, nil
}

func assetInfo(o *fetchOutcome, baseCurrency domain.Currency) AssetInfo {
	info := AssetInfo{
		Symbol:   o.symbol,
		Kind:     o.kind,
		Currency: baseCurrency,
	}
	if o.quote != nil {
		info.Name = o.quote.Name
		info.Price = o.quote.Price
		info.Exchange = o.quote.Exchange
	}
	return info
}

func rawValues(points []domain.ChartPoint) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.RawValue
	}
	return out
}

func closes(points []domain.AggregatedPoint) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Close
	}
	return out
}

func totalReturn(prices []float64) float64 {
	if len(prices) < 2 || prices[0] <= 0 {
		return 0
	}
	return prices[len(prices)-1]/prices[0] - 1
}

func yearsSpanned(points []domain.ChartPoint) float64 {
	if len(points) < 2 {
		return 0
	}
	days := points[len(points)-1].Date.Sub(points[0].Date).Hours() / 24
	return days / 365.25
}

func failureSummary(failed map[string]string) []string {
	out := make([]string, 0, len(failed))
	for symbol, msg := range failed {
		out = append(out, symbol+": "+msg)
	}
	sort.Strings(out)
	return out
}
