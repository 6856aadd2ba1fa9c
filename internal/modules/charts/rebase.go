package charts

import (
	"github.com/aristath/spyglass/internal/domain"
)

// IndexBase is the value the first point is rebased to in index mode.
const IndexBase = 1000.0

// Rebase converts an aggregated series into comparison-ready chart points.
// Index mode rebases the first close to IndexBase; percent mode reports
// cumulative percent change from the first close. A series whose first close
// is not positive yields no chart points.
func Rebase(points []domain.AggregatedPoint, mode domain.NormalizeMode) []domain.ChartPoint {
	if len(points) == 0 {
		return nil
	}

	start := points[0].Close
	if start <= 0 {
		return nil
	}

	out := make([]domain.ChartPoint, 0, len(points))
	for _, p := range points {
		var value float64
		switch mode {
		case domain.NormalizePercentChange:
			value = (p.Close - start) / start * 100
		default:
			value = p.Close / start * IndexBase
		}
		out = append(out, domain.ChartPoint{
			Date:     p.Date,
			Time:     p.Date.Format(domain.DateFormat),
			Value:    value,
			RawValue: p.Close,
		})
	}
	return out
}
