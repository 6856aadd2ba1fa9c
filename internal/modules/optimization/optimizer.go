package optimization

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

// penaltyWeight scales the quadratic penalties that enforce equality
// constraints (weights sum to 1, target return).
const penaltyWeight = 1000.0

// weightTolerance is the allowed drift of a returned weight vector's sum
// from exactly 1 before renormalization.
const weightTolerance = 1e-6

// Portfolio is an optimal weight allocation with its risk/return profile.
// Weights are keyed by symbol, non-negative, and sum to 1.
type Portfolio struct {
	Weights        map[string]float64 `json:"weights"`
	ExpectedReturn float64            `json:"expected_return"`
	Risk           float64            `json:"risk"`
	SharpeRatio    float64            `json:"sharpe_ratio"`
}

// FrontierPoint is one sampled point on the efficient frontier curve.
type FrontierPoint struct {
	ExpectedReturn float64 `json:"expected_return"`
	Risk           float64 `json:"risk"`
	SharpeRatio    float64 `json:"sharpe_ratio"`
}

// frontierSamples is the number of target-return levels sampled between
// min(μ) and max(μ).
const frontierSamples = 50

// Optimizer solves constrained mean-variance problems.
//
// Mathematical formulation (constraints: Σw = 1, 0 ≤ w_i ≤ 1):
//   - MinVariance: minimize w'Σw
//   - MaxReturn:   maximize μ'w
//   - MaxSharpe:   maximize (μ'w - r_f) / sqrt(w'Σw)
//   - Frontier:    minimize w'Σw subject to μ'w = target, for 50 targets
//
// Equality constraints are enforced with quadratic penalties; BFGS is tried
// first with a Nelder-Mead fallback; the solution is projected to [0,1] and
// renormalized to sum exactly 1.
type Optimizer struct {
	log zerolog.Logger
}

// NewOptimizer creates a mean-variance optimizer.
func NewOptimizer(log zerolog.Logger) *Optimizer {
	return &Optimizer{
		log: log.With().Str("service", "optimizer").Logger(),
	}
}

// MinVariance computes the global minimum-variance portfolio.
func (o *Optimizer) MinVariance(stats *Statistics, riskFree float64) (*Portfolio, error) {
	if err := validate(stats); err != nil {
		return nil, err
	}
	n := len(stats.Symbols)

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			xp := projectToBounds(x)
			return variance(xp, stats.Covariance) + sumPenalty(xp)
		},
		Grad: func(grad, x []float64) {
			xp := projectToBounds(x)
			for i := 0; i < n; i++ {
				grad[i] = 0
				for j := 0; j < n; j++ {
					grad[i] += 2 * stats.Covariance.At(i, j) * xp[j]
				}
			}
			addSumPenaltyGradient(grad, xp)
		},
	}

	x, err := o.solve(problem, n)
	if err != nil {
		return nil, fmt.Errorf("min variance: %w", err)
	}
	return o.finalize(x, stats, riskFree), nil
}

// MaxReturn computes the maximum-return portfolio. Under box constraints
// this degenerates to a single-asset corner solution, which is expected.
func (o *Optimizer) MaxReturn(stats *Statistics, riskFree float64) (*Portfolio, error) {
	if err := validate(stats); err != nil {
		return nil, err
	}
	n := len(stats.Symbols)

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			xp := projectToBounds(x)
			return -dot(stats.ExpectedReturns, xp) + sumPenalty(xp)
		},
		Grad: func(grad, x []float64) {
			xp := projectToBounds(x)
			for i := 0; i < n; i++ {
				grad[i] = -stats.ExpectedReturns[i]
			}
			addSumPenaltyGradient(grad, xp)
		},
	}

	x, err := o.solve(problem, n)
	if err != nil {
		return nil, fmt.Errorf("max return: %w", err)
	}
	return o.finalize(x, stats, riskFree), nil
}

// MaxSharpe computes the tangency portfolio. Zero-risk candidates are
// treated as Sharpe -infinity, never a division by zero.
func (o *Optimizer) MaxSharpe(stats *Statistics, riskFree float64) (*Portfolio, error) {
	if err := validate(stats); err != nil {
		return nil, err
	}
	n := len(stats.Symbols)

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			xp := projectToBounds(x)
			ret := dot(stats.ExpectedReturns, xp)
			stdDev := math.Sqrt(math.Max(variance(xp, stats.Covariance), 1e-10))
			return -(ret-riskFree)/stdDev + sumPenalty(xp)
		},
		Grad: func(grad, x []float64) {
			xp := projectToBounds(x)
			ret := dot(stats.ExpectedReturns, xp)
			stdDev := math.Sqrt(math.Max(variance(xp, stats.Covariance), 1e-10))

			for i := 0; i < n; i++ {
				var dVar float64
				for j := 0; j < n; j++ {
					dVar += 2 * stats.Covariance.At(i, j) * xp[j]
				}
				grad[i] = -stats.ExpectedReturns[i]/stdDev + (ret-riskFree)*dVar/(2*stdDev*stdDev*stdDev)
			}
			addSumPenaltyGradient(grad, xp)
		},
	}

	x, err := o.solve(problem, n)
	if err != nil {
		return nil, fmt.Errorf("max sharpe: %w", err)
	}
	return o.finalize(x, stats, riskFree), nil
}

// Frontier samples the efficient frontier at frontierSamples target-return
// levels between min(μ) and max(μ). Targets for which the constrained
// problem does not converge are omitted from the curve, not errors.
func (o *Optimizer) Frontier(stats *Statistics, riskFree float64) ([]FrontierPoint, error) {
	if err := validate(stats); err != nil {
		return nil, err
	}
	n := len(stats.Symbols)

	minReturn, maxReturn := stats.ExpectedReturns[0], stats.ExpectedReturns[0]
	for _, r := range stats.ExpectedReturns[1:] {
		if r < minReturn {
			minReturn = r
		}
		if r > maxReturn {
			maxReturn = r
		}
	}

	step := (maxReturn - minReturn) / float64(frontierSamples-1)

	points := make([]FrontierPoint, 0, frontierSamples)
	for k := 0; k < frontierSamples; k++ {
		target := minReturn + float64(k)*step

		problem := optimize.Problem{
			Func: func(x []float64) float64 {
				xp := projectToBounds(x)
				ret := dot(stats.ExpectedReturns, xp)
				obj := variance(xp, stats.Covariance) + sumPenalty(xp)
				obj += penaltyWeight * (ret - target) * (ret - target)
				return obj
			},
			Grad: func(grad, x []float64) {
				xp := projectToBounds(x)
				ret := dot(stats.ExpectedReturns, xp)
				for i := 0; i < n; i++ {
					grad[i] = 0
					for j := 0; j < n; j++ {
						grad[i] += 2 * stats.Covariance.At(i, j) * xp[j]
					}
					grad[i] += 2 * penaltyWeight * (ret - target) * stats.ExpectedReturns[i]
				}
				addSumPenaltyGradient(grad, xp)
			},
		}

		x, err := o.solve(problem, n)
		if err != nil {
			// Infeasible target, skip the point
			o.log.Debug().Float64("target", target).Err(err).Msg("Frontier point did not converge")
			continue
		}

		p := o.finalize(x, stats, riskFree)
		points = append(points, FrontierPoint{
			ExpectedReturn: p.ExpectedReturn,
			Risk:           p.Risk,
			SharpeRatio:    p.SharpeRatio,
		})
	}

	o.log.Info().Int("points", len(points)).Msg("Calculated efficient frontier")
	return points, nil
}

// solve minimizes the problem from an equal-weight start, trying BFGS first
// and falling back to Nelder-Mead.
func (o *Optimizer) solve(problem optimize.Problem, n int) ([]float64, error) {
	initial := make([]float64, n)
	for i := range initial {
		initial[i] = 1.0 / float64(n)
	}

	result, err := optimize.Minimize(problem, initial, &optimize.Settings{}, &optimize.BFGS{})
	if err != nil || !converged(result.Status) {
		result, err = optimize.Minimize(problem, initial, &optimize.Settings{}, &optimize.NelderMead{})
		if err != nil {
			return nil, fmt.Errorf("optimization failed: %w", err)
		}
		if !converged(result.Status) {
			return nil, fmt.Errorf("optimization did not converge: status=%v", result.Status)
		}
	}

	return result.X, nil
}

func converged(status optimize.Status) bool {
	switch status {
	case optimize.Success, optimize.GradientThreshold, optimize.FunctionConvergence:
		return true
	}
	return false
}

// finalize projects the raw solution to bounds, renormalizes to sum exactly
// 1, and derives the portfolio's return/risk/Sharpe profile.
func (o *Optimizer) finalize(x []float64, stats *Statistics, riskFree float64) *Portfolio {
	xp := projectToBounds(x)

	sum := 0.0
	for _, w := range xp {
		sum += w
	}
	sum = math.Max(sum, 1e-10)
	for i := range xp {
		xp[i] = math.Max(0, xp[i]/sum)
	}

	// Numerical solvers drift slightly; renormalize once more after the
	// non-negativity clamp.
	sum = 0.0
	for _, w := range xp {
		sum += w
	}
	if math.Abs(sum-1) > weightTolerance && sum > 0 {
		for i := range xp {
			xp[i] /= sum
		}
	}

	weights := make(map[string]float64, len(stats.Symbols))
	for i, symbol := range stats.Symbols {
		weights[symbol] = xp[i]
	}

	ret := dot(stats.ExpectedReturns, xp)
	risk := math.Sqrt(math.Max(variance(xp, stats.Covariance), 0))

	sharpe := 0.0
	if risk > 0 {
		sharpe = (ret - riskFree) / risk
	}

	return &Portfolio{
		Weights:        weights,
		ExpectedReturn: ret,
		Risk:           risk,
		SharpeRatio:    sharpe,
	}
}

// validate fails fast on contract errors before any computation starts.
func validate(stats *Statistics) error {
	if stats == nil {
		return fmt.Errorf("nil statistics")
	}
	n := len(stats.Symbols)
	if n == 0 {
		return fmt.Errorf("no symbols provided")
	}
	if len(stats.ExpectedReturns) != n {
		return fmt.Errorf("expected returns length %d doesn't match symbol count %d", len(stats.ExpectedReturns), n)
	}
	if stats.Covariance == nil || stats.Covariance.SymmetricDim() != n {
		return fmt.Errorf("covariance matrix doesn't match symbol count %d", n)
	}
	return nil
}

func projectToBounds(x []float64) []float64 {
	proj := make([]float64, len(x))
	for i := range x {
		proj[i] = math.Max(0, math.Min(1, x[i]))
	}
	return proj
}

func sumPenalty(x []float64) float64 {
	sum := 0.0
	for _, v := range x {
		sum += v
	}
	return penaltyWeight * (sum - 1) * (sum - 1)
}

func addSumPenaltyGradient(grad, x []float64) {
	sum := 0.0
	for _, v := range x {
		sum += v
	}
	for i := range grad {
		grad[i] += 2 * penaltyWeight * (sum - 1)
	}
}

func dot(a, b []float64) float64 {
	var out float64
	for i := range a {
		out += a[i] * b[i]
	}
	return out
}

func variance(x []float64, sigma *mat.SymDense) float64 {
	var out float64
	n := len(x)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			out += x[i] * x[j] * sigma.At(i, j)
		}
	}
	return out
}
