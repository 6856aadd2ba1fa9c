// Package optimization computes mean-variance optimal portfolios under
// no-short-selling constraints: minimum variance, maximum return, tangency,
// and the efficient frontier curve.
package optimization

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// returnClip caps per-period returns at ±50% so a single bad data point
// (split artifact, de-listing gap) cannot dominate the statistics.
const returnClip = 0.5

// eigenFloor is added on top of |min eigenvalue| when regularizing a
// non-positive-definite covariance matrix.
const eigenFloor = 1e-6

// Statistics holds the annualized optimizer inputs for an ordered set of
// assets.
type Statistics struct {
	Symbols         []string
	ExpectedReturns []float64    // annualized, per Symbols order
	Covariance      *mat.SymDense // annualized, n×n
	PeriodsPerYear  float64
}

// BuildStatistics derives annualized expected returns and a covariance
// matrix from per-symbol return series. Series are aligned to their shared
// trailing length; per-period returns and means are clipped to ±50%; the
// covariance matrix is eigenvalue-regularized when not positive definite.
func BuildStatistics(returnsBySymbol map[string][]float64, symbols []string, periodsPerYear float64) (*Statistics, error) {
	n := len(symbols)
	if n < 2 {
		return nil, fmt.Errorf("need at least 2 assets, got %d", n)
	}
	if periodsPerYear <= 0 {
		return nil, fmt.Errorf("periods per year must be positive, got %v", periodsPerYear)
	}

	// Align to the shared trailing length
	minLen := -1
	for _, symbol := range symbols {
		returns, ok := returnsBySymbol[symbol]
		if !ok {
			return nil, fmt.Errorf("missing return series for %s", symbol)
		}
		if minLen < 0 || len(returns) < minLen {
			minLen = len(returns)
		}
	}
	if minLen < 2 {
		return nil, fmt.Errorf("need at least 2 aligned observations, got %d", minLen)
	}

	// Observations in rows, assets in columns, trailing-aligned and clipped
	aligned := mat.NewDense(minLen, n, nil)
	for j, symbol := range symbols {
		returns := returnsBySymbol[symbol]
		offset := len(returns) - minLen
		for i := 0; i < minLen; i++ {
			aligned.Set(i, j, clip(returns[offset+i]))
		}
	}

	mu := make([]float64, n)
	for j := 0; j < n; j++ {
		mu[j] = clip(stat.Mean(mat.Col(nil, j, aligned), nil)) * periodsPerYear
	}

	cov := mat.NewSymDense(n, nil)
	stat.CovarianceMatrix(cov, aligned, nil)
	regularize(cov)
	cov.ScaleSym(periodsPerYear, cov)

	return &Statistics{
		Symbols:         symbols,
		ExpectedReturns: mu,
		Covariance:      cov,
		PeriodsPerYear:  periodsPerYear,
	}, nil
}

// regularize shifts the diagonal by |min eigenvalue| + eigenFloor when the
// matrix is not positive definite.
func regularize(cov *mat.SymDense) {
	n := cov.SymmetricDim()

	var eig mat.EigenSym
	if !eig.Factorize(cov, false) {
		// Factorization failure: shift by the floor alone
		for i := 0; i < n; i++ {
			cov.SetSym(i, i, cov.At(i, i)+eigenFloor)
		}
		return
	}

	values := eig.Values(nil)
	minEig := values[0]
	for _, v := range values[1:] {
		if v < minEig {
			minEig = v
		}
	}

	if minEig <= 0 {
		shift := math.Abs(minEig) + eigenFloor
		for i := 0; i < n; i++ {
			cov.SetSym(i, i, cov.At(i, i)+shift)
		}
	}
}

func clip(v float64) float64 {
	if v > returnClip {
		return returnClip
	}
	if v < -returnClip {
		return -returnClip
	}
	return v
}
