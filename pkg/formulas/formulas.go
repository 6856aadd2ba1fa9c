// Package formulas provides pure time-series metric calculations.
// All functions return defined sentinel values on degenerate input (empty,
// single-element, non-positive prices) instead of raising errors, because
// the series they operate on come from live external sources with gaps.
package formulas

import (
	"math"

	montanastats "github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"
)

// TradingDaysPerYear is the standard annualization base for daily series.
const TradingDaysPerYear = 252.0

// CalculateReturns computes period-over-period fractional returns from
// consecutive prices. Points with a zero predecessor are dropped, not
// zero-filled.
func CalculateReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		prev := prices[i-1]
		if prev == 0 {
			continue
		}
		returns = append(returns, (prices[i]-prev)/prev)
	}
	return returns
}

// CalculateLogReturns computes log returns, skipping non-positive prices.
func CalculateLogReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		prev, curr := prices[i-1], prices[i]
		if prev <= 0 || curr <= 0 {
			continue
		}
		returns = append(returns, math.Log(curr/prev))
	}
	return returns
}

// CalculateCAGR returns the compound annual growth rate of a price series
// over the given number of years. Returns 0 for degenerate input.
func CalculateCAGR(prices []float64, years float64) float64 {
	if years <= 0 || len(prices) < 2 {
		return 0
	}
	start, end := prices[0], prices[len(prices)-1]
	if start <= 0 {
		return 0
	}
	return math.Pow(end/start, 1.0/years) - 1.0
}

// AnnualizedVolatility returns the sample standard deviation of the returns
// scaled by sqrt(periodsPerYear). Returns 0 for fewer than 2 returns.
func AnnualizedVolatility(returns []float64, periodsPerYear float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	return stat.StdDev(returns, nil) * math.Sqrt(periodsPerYear)
}

// CalculateSharpeRatio returns the annualized Sharpe ratio: mean excess
// return over the standard deviation of excess returns, scaled by
// sqrt(periodsPerYear). riskFreeAnnual is converted to a per-period rate.
// Returns 0 when the denominator is zero or there are fewer than 2 returns.
func CalculateSharpeRatio(returns []float64, riskFreeAnnual, periodsPerYear float64) float64 {
	if len(returns) < 2 || periodsPerYear <= 0 {
		return 0
	}
	excess := excessReturns(returns, riskFreeAnnual, periodsPerYear)
	sigma := stat.StdDev(excess, nil)
	if sigma == 0 {
		return 0
	}
	return stat.Mean(excess, nil) / sigma * math.Sqrt(periodsPerYear)
}

// CalculateSortinoRatio is the Sharpe variant whose denominator uses only
// the downside (negative excess) observations. With no downside
// observations it returns +Inf when the mean excess is positive, else 0.
func CalculateSortinoRatio(returns []float64, riskFreeAnnual, periodsPerYear float64) float64 {
	if len(returns) < 2 || periodsPerYear <= 0 {
		return 0
	}
	excess := excessReturns(returns, riskFreeAnnual, periodsPerYear)
	mean := stat.Mean(excess, nil)

	var downside []float64
	for _, e := range excess {
		if e < 0 {
			downside = append(downside, e)
		}
	}
	if len(downside) == 0 {
		if mean > 0 {
			return math.Inf(1)
		}
		return 0
	}
	sigma := stat.StdDev(downside, nil)
	if sigma == 0 || math.IsNaN(sigma) {
		return 0
	}
	return mean / sigma * math.Sqrt(periodsPerYear)
}

// CalculateMaxDrawdown returns the largest peak-to-trough fractional
// decline in [0, 1], tracking a running (non-decreasing) peak.
func CalculateMaxDrawdown(prices []float64) float64 {
	if len(prices) < 2 {
		return 0
	}
	peak := prices[0]
	maxDD := 0.0
	for _, p := range prices {
		if p > peak {
			peak = p
		}
		if peak > 0 {
			if dd := (peak - p) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// RollingYTDReturn returns the fractional return from the trading day one
// year back (or the series start) to the last price. Returns 0 when the
// window is degenerate.
func RollingYTDReturn(prices []float64) float64 {
	if len(prices) == 0 {
		return 0
	}
	window := len(prices) - 1
	if window > int(TradingDaysPerYear) {
		window = int(TradingDaysPerYear)
	}
	if window <= 0 {
		return 0
	}
	start := prices[len(prices)-1-window]
	if start <= 0 {
		return 0
	}
	return prices[len(prices)-1]/start - 1.0
}

// CorrelationMatrix computes the pairwise Pearson correlation of the log
// returns of each price series. Pairs are aligned to their shared trailing
// length; any pair with fewer than 2 aligned points yields 0. The diagonal
// is fixed at 1 and entries are clamped to [-1, 1].
func CorrelationMatrix(seriesList [][]float64) [][]float64 {
	n := len(seriesList)
	returnsList := make([][]float64, n)
	for i, prices := range seriesList {
		returnsList[i] = CalculateLogReturns(prices)
	}

	corr := make([][]float64, n)
	for i := range corr {
		corr[i] = make([]float64, n)
		corr[i][i] = 1.0
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			rho := pairCorrelation(returnsList[i], returnsList[j])
			corr[i][j] = rho
			corr[j][i] = rho
		}
	}
	return corr
}

// pairCorrelation aligns two return series to their shared trailing length
// and computes the sample Pearson correlation.
func pairCorrelation(a, b []float64) float64 {
	m := len(a)
	if len(b) < m {
		m = len(b)
	}
	if m < 2 {
		return 0
	}
	a, b = a[len(a)-m:], b[len(b)-m:]
	rho := stat.Correlation(a, b, nil)
	if math.IsNaN(rho) {
		return 0
	}
	return math.Max(-1, math.Min(1, rho))
}

// DiversificationScore maps a correlation matrix to a 0..100 score:
// 100 * (1 - mean of off-diagonal entries), rounded to 1 decimal.
// Matrices with fewer than 2 assets score 0.
func DiversificationScore(corr [][]float64) float64 {
	n := len(corr)
	if n <= 1 {
		return 0
	}
	var sum float64
	var count int
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i != j {
				sum += corr[i][j]
				count++
			}
		}
	}
	if count == 0 {
		return 0
	}
	score := 100.0 * (1.0 - sum/float64(count))
	return math.Round(score*10) / 10
}

// CalculateVaR returns the historical value-at-risk of the returns at the
// given tail probability (e.g. 0.05 for 95% VaR). Returns 0 for fewer than
// 2 returns.
func CalculateVaR(returns []float64, confidence float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	v, err := montanastats.Percentile(returns, confidence*100)
	if err != nil {
		return 0
	}
	return v
}

// CalculateBeta returns the beta coefficient of asset returns against
// benchmark returns. Series must be equal-length with at least 2 points.
func CalculateBeta(returns, benchmark []float64) float64 {
	if len(returns) != len(benchmark) || len(returns) < 2 {
		return 0
	}
	varB := stat.Variance(benchmark, nil)
	if varB == 0 {
		return 0
	}
	return stat.Covariance(returns, benchmark, nil) / varB
}

func excessReturns(returns []float64, riskFreeAnnual, periodsPerYear float64) []float64 {
	perPeriod := riskFreeAnnual / periodsPerYear
	excess := make([]float64, len(returns))
	for i, r := range returns {
		excess[i] = r - perPeriod
	}
	return excess
}
