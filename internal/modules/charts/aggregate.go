// Package charts turns daily price series into chart-ready data: OHLCV
// bucket aggregation, LTTB downsampling to a bounded point budget, and
// rebasing for cross-asset comparison.
package charts

import (
	"sort"
	"time"

	"github.com/aristath/spyglass/internal/domain"
)

// Aggregate buckets a daily series by the given granularity. Buckets are
// keyed by their calendar end: week-ending Sunday, month end, or quarter
// end. Each bucket emits open = first open, high = max, low = min,
// close = last close, volume = sum. Points without a usable close are
// skipped; a bucket that never sees one is dropped, never synthesized.
func Aggregate(points []domain.PricePoint, granularity domain.Granularity) []domain.AggregatedPoint {
	if granularity == domain.GranularityDaily {
		return aggregateDaily(points)
	}

	buckets := make(map[time.Time]*domain.AggregatedPoint)
	for _, p := range points {
		if !p.Usable() {
			continue
		}

		end := bucketEnd(p.Date, granularity)
		open, high, low, close := p.OHLC()

		b, ok := buckets[end]
		if !ok {
			buckets[end] = &domain.AggregatedPoint{
				Date:   end,
				Open:   open,
				High:   high,
				Low:    low,
				Close:  close,
				Volume: p.Volume,
			}
			continue
		}

		if high > b.High {
			b.High = high
		}
		if low < b.Low {
			b.Low = low
		}
		b.Close = close // last close wins
		b.Volume += p.Volume
	}

	out := make([]domain.AggregatedPoint, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

// aggregateDaily maps usable daily points straight through, one bucket per
// point.
func aggregateDaily(points []domain.PricePoint) []domain.AggregatedPoint {
	out := make([]domain.AggregatedPoint, 0, len(points))
	for _, p := range points {
		if !p.Usable() {
			continue
		}
		open, high, low, close := p.OHLC()
		out = append(out, domain.AggregatedPoint{
			Date:   p.Date,
			Open:   open,
			High:   high,
			Low:    low,
			Close:  close,
			Volume: p.Volume,
		})
	}
	return out
}

// bucketEnd returns the calendar end of the bucket containing date.
func bucketEnd(date time.Time, granularity domain.Granularity) time.Time {
	switch granularity {
	case domain.GranularityWeekly:
		// Week ends on Sunday
		daysUntilSunday := (7 - int(date.Weekday())) % 7
		return date.AddDate(0, 0, daysUntilSunday)

	case domain.GranularityMonthly:
		firstOfNext := time.Date(date.Year(), date.Month(), 1, 0, 0, 0, 0, date.Location()).AddDate(0, 1, 0)
		return firstOfNext.AddDate(0, 0, -1)

	case domain.GranularityQuarterly:
		quarter := (int(date.Month())-1)/3 + 1
		firstOfNext := time.Date(date.Year(), time.Month(quarter*3), 1, 0, 0, 0, 0, date.Location()).AddDate(0, 1, 0)
		return firstOfNext.AddDate(0, 0, -1)

	default:
		return date
	}
}
