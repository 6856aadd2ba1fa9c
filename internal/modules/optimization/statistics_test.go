package optimization

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildStatistics_AnnualizesMeansAndCovariance(t *testing.T) {
	returns := map[string][]float64{
		"AAA": {0.01, 0.02, -0.01, 0.03},
		"BBB": {0.005, -0.002, 0.001, 0.004},
	}

	stats, err := BuildStatistics(returns, []string{"AAA", "BBB"}, 252)
	require.NoError(t, err)

	require.Equal(t, []string{"AAA", "BBB"}, stats.Symbols)
	require.Len(t, stats.ExpectedReturns, 2)

	// Mean of AAA per-period returns is 0.0125, annualized x252
	assert.InDelta(t, 0.0125*252, stats.ExpectedReturns[0], 1e-9)
	assert.InDelta(t, 0.002*252, stats.ExpectedReturns[1], 1e-9)

	require.Equal(t, 2, stats.Covariance.SymmetricDim())
	// Diagonal must be positive after annualization
	assert.Greater(t, stats.Covariance.At(0, 0), 0.0)
	assert.Greater(t, stats.Covariance.At(1, 1), 0.0)
	// Symmetry
	assert.InDelta(t, stats.Covariance.At(0, 1), stats.Covariance.At(1, 0), 1e-12)
}

func TestBuildStatistics_AlignsToShortestSeries(t *testing.T) {
	returns := map[string][]float64{
		"AAA": {0.01, 0.02, 0.03, 0.04, 0.05},
		"BBB": {0.01, 0.02, 0.03},
	}

	stats, err := BuildStatistics(returns, []string{"AAA", "BBB"}, 12)
	require.NoError(t, err)

	// Trailing alignment: AAA should use its last 3 observations only,
	// mean (0.03+0.04+0.05)/3 = 0.04
	assert.InDelta(t, 0.04*12, stats.ExpectedReturns[0], 1e-9)
	assert.InDelta(t, 0.02*12, stats.ExpectedReturns[1], 1e-9)
}

func TestBuildStatistics_ClipsExtremeReturns(t *testing.T) {
	returns := map[string][]float64{
		"AAA": {3.0, -0.9, 0.01},
		"BBB": {0.01, 0.02, 0.03},
	}

	stats, err := BuildStatistics(returns, []string{"AAA", "BBB"}, 1)
	require.NoError(t, err)

	// 3.0 clips to 0.5, -0.9 clips to -0.5: mean = 0.01/3
	assert.InDelta(t, 0.01/3, stats.ExpectedReturns[0], 1e-9)
}

func TestBuildStatistics_RegularizesDegenerateCovariance(t *testing.T) {
	// Perfectly correlated identical series produce a singular covariance
	// matrix; the eigenvalue shift must make it positive definite.
	series := []float64{0.01, -0.02, 0.015, 0.003, -0.007}
	returns := map[string][]float64{
		"AAA": series,
		"BBB": series,
	}

	stats, err := BuildStatistics(returns, []string{"AAA", "BBB"}, 252)
	require.NoError(t, err)

	// Positive-definiteness implies strictly positive diagonal and
	// det > 0 for a 2x2 matrix.
	a := stats.Covariance.At(0, 0)
	b := stats.Covariance.At(0, 1)
	d := stats.Covariance.At(1, 1)
	assert.Greater(t, a, 0.0)
	assert.Greater(t, a*d-b*b, 0.0)
}

func TestBuildStatistics_Errors(t *testing.T) {
	valid := map[string][]float64{
		"AAA": {0.01, 0.02},
		"BBB": {0.01, 0.02},
	}

	_, err := BuildStatistics(valid, []string{"AAA"}, 252)
	assert.Error(t, err, "needs at least two assets")

	_, err = BuildStatistics(valid, []string{"AAA", "BBB"}, 0)
	assert.Error(t, err, "periods per year must be positive")

	_, err = BuildStatistics(map[string][]float64{
		"AAA": {0.01},
		"BBB": {0.01, 0.02},
	}, []string{"AAA", "BBB"}, 252)
	assert.Error(t, err, "too few aligned observations")

	_, err = BuildStatistics(valid, []string{"AAA", "CCC"}, 252)
	assert.Error(t, err, "missing return series")
}
