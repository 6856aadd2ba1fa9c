package optimization

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/spyglass/internal/domain"
)

// Result bundles every optimization objective computed for one asset set.
// Objectives fail independently; a failed one is reported in Failures and
// left nil rather than sinking the whole result.
type Result struct {
	MinVariance *Portfolio        `json:"min_variance,omitempty"`
	MaxReturn   *Portfolio        `json:"max_return,omitempty"`
	MaxSharpe   *Portfolio        `json:"max_sharpe,omitempty"`
	Frontier    []FrontierPoint   `json:"efficient_frontier,omitempty"`
	Failures    map[string]string `json:"failures,omitempty"`
}

// Service runs the full mean-variance analysis: statistics preparation
// followed by all three objectives plus the efficient frontier.
type Service struct {
	optimizer *Optimizer
	riskFree  domain.RiskFreeRateSource
	log       zerolog.Logger
}

// NewService creates the optimization service.
func NewService(optimizer *Optimizer, riskFree domain.RiskFreeRateSource, log zerolog.Logger) *Service {
	return &Service{
		optimizer: optimizer,
		riskFree:  riskFree,
		log:       log.With().Str("service", "optimization").Logger(),
	}
}

// Optimize computes every objective for the given per-symbol return series.
// Returns in returnsBySymbol are per-period simple returns; periodsPerYear
// annualizes them (252 daily, 52 weekly, 12 monthly, 4 quarterly).
func (s *Service) Optimize(ctx context.Context, returnsBySymbol map[string][]float64, symbols []string, periodsPerYear float64, currency domain.Currency) (*Result, error) {
	stats, err := BuildStatistics(returnsBySymbol, symbols, periodsPerYear)
	if err != nil {
		return nil, err
	}

	riskFree, err := s.riskFree.RiskFreeRate(ctx, currency, time.Now())
	if err != nil {
		s.log.Warn().Err(err).Str("currency", string(currency)).Msg("Risk-free rate lookup failed, using zero")
		riskFree = 0
	}

	result := &Result{Failures: map[string]string{}}

	if p, err := s.optimizer.MinVariance(stats, riskFree); err != nil {
		s.log.Warn().Err(err).Msg("Min variance optimization failed")
		result.Failures["min_variance"] = err.Error()
	} else {
		result.MinVariance = p
	}

	if p, err := s.optimizer.MaxReturn(stats, riskFree); err != nil {
		s.log.Warn().Err(err).Msg("Max return optimization failed")
		result.Failures["max_return"] = err.Error()
	} else {
		result.MaxReturn = p
	}

	if p, err := s.optimizer.MaxSharpe(stats, riskFree); err != nil {
		s.log.Warn().Err(err).Msg("Max sharpe optimization failed")
		result.Failures["max_sharpe"] = err.Error()
	} else {
		result.MaxSharpe = p
	}

	if points, err := s.optimizer.Frontier(stats, riskFree); err != nil {
		s.log.Warn().Err(err).Msg("Efficient frontier calculation failed")
		result.Failures["efficient_frontier"] = err.Error()
	} else {
		result.Frontier = points
	}

	if len(result.Failures) == 0 {
		result.Failures = nil
	}

	s.log.Info().
		Int("assets", len(symbols)).
		Float64("risk_free_rate", riskFree).
		Int("frontier_points", len(result.Frontier)).
		Msg("Portfolio optimization complete")

	return result, nil
}
