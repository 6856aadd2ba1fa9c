package charts

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/spyglass/internal/domain"
)

func day(s string) time.Time {
	d, err := time.Parse(domain.DateFormat, s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestAggregate_DailyPassThrough(t *testing.T) {
	points := []domain.PricePoint{
		{Date: day("2024-01-02"), Close: 100, Volume: 10},
		{Date: day("2024-01-03"), Close: 0}, // unusable, dropped
		{Date: day("2024-01-04"), Close: 102, Volume: 20},
	}

	got := Aggregate(points, domain.GranularityDaily)
	require.Len(t, got, 2)
	assert.Equal(t, 100.0, got[0].Close)
	assert.Equal(t, 102.0, got[1].Close)

	// Missing OHLC falls back to close
	assert.Equal(t, 100.0, got[0].Open)
	assert.Equal(t, 100.0, got[0].High)
	assert.Equal(t, 100.0, got[0].Low)
}

func TestAggregate_Weekly(t *testing.T) {
	// 2024-01-01 is a Monday; the week ends Sunday 2024-01-07
	points := []domain.PricePoint{
		{Date: day("2024-01-01"), Open: 10, High: 15, Low: 9, Close: 12, Volume: 100},
		{Date: day("2024-01-03"), Open: 12, High: 18, Low: 11, Close: 14, Volume: 200},
		{Date: day("2024-01-05"), Open: 14, High: 16, Low: 8, Close: 13, Volume: 300},
		// Next week
		{Date: day("2024-01-08"), Open: 13, High: 14, Low: 12, Close: 13.5, Volume: 50},
	}

	got := Aggregate(points, domain.GranularityWeekly)
	require.Len(t, got, 2)

	week1 := got[0]
	assert.Equal(t, "2024-01-07", week1.Date.Format(domain.DateFormat))
	assert.Equal(t, 10.0, week1.Open)   // first open
	assert.Equal(t, 18.0, week1.High)   // max high
	assert.Equal(t, 8.0, week1.Low)     // min low
	assert.Equal(t, 13.0, week1.Close)  // last close
	assert.Equal(t, int64(600), week1.Volume)

	assert.Equal(t, "2024-01-14", got[1].Date.Format(domain.DateFormat))
}

func TestAggregate_MonthlyAndQuarterly(t *testing.T) {
	points := []domain.PricePoint{
		{Date: day("2024-01-15"), Close: 100},
		{Date: day("2024-01-31"), Close: 105},
		{Date: day("2024-02-10"), Close: 110},
		{Date: day("2024-12-20"), Close: 130},
	}

	monthly := Aggregate(points, domain.GranularityMonthly)
	require.Len(t, monthly, 3)
	assert.Equal(t, "2024-01-31", monthly[0].Date.Format(domain.DateFormat))
	assert.Equal(t, 105.0, monthly[0].Close)
	assert.Equal(t, "2024-02-29", monthly[1].Date.Format(domain.DateFormat)) // leap year
	assert.Equal(t, "2024-12-31", monthly[2].Date.Format(domain.DateFormat))

	quarterly := Aggregate(points, domain.GranularityQuarterly)
	require.Len(t, quarterly, 2)
	assert.Equal(t, "2024-03-31", quarterly[0].Date.Format(domain.DateFormat))
	assert.Equal(t, 110.0, quarterly[0].Close)
	assert.Equal(t, "2024-12-31", quarterly[1].Date.Format(domain.DateFormat))
}

func TestAggregate_BucketWithNoValidCloseDropped(t *testing.T) {
	points := []domain.PricePoint{
		{Date: day("2024-01-01"), Close: 0},
		{Date: day("2024-01-02"), Close: -5},
	}
	got := Aggregate(points, domain.GranularityWeekly)
	assert.Empty(t, got)
}

func makeSeries(n int) []domain.AggregatedPoint {
	points := make([]domain.AggregatedPoint, n)
	start := day("2020-01-01")
	for i := range points {
		points[i] = domain.AggregatedPoint{
			Date:  start.AddDate(0, 0, i),
			Close: 100 + 10*float64(i%7) + float64(i)/50,
		}
	}
	return points
}

func TestDownsample_ExactBudget(t *testing.T) {
	points := makeSeries(1000)

	got := Downsample(points, 180)
	require.Len(t, got, 180)

	assert.Equal(t, points[0], got[0])
	assert.Equal(t, points[999], got[179])

	// Output stays in chronological order
	for i := 1; i < len(got); i++ {
		assert.True(t, got[i].Date.After(got[i-1].Date), fmt.Sprintf("point %d out of order", i))
	}
}

func TestDownsample_NoOpWhenSmallEnough(t *testing.T) {
	points := makeSeries(150)
	got := Downsample(points, 180)
	assert.Equal(t, points, got)
}

func TestDownsample_TargetJustBelowLength(t *testing.T) {
	points := makeSeries(181)
	got := Downsample(points, 180)
	require.Len(t, got, 180)
	assert.Equal(t, points[0], got[0])
	assert.Equal(t, points[180], got[179])
}

func TestDownsample_TinyTarget(t *testing.T) {
	points := makeSeries(50)

	got := Downsample(points, 3)
	require.Len(t, got, 3)
	assert.Equal(t, points[0], got[0])
	assert.Equal(t, points[49], got[2])

	got = Downsample(points, 2)
	require.Len(t, got, 2)
	assert.Equal(t, points[0], got[0])
	assert.Equal(t, points[49], got[1])
}

func TestDownsample_KeepsSpikes(t *testing.T) {
	points := makeSeries(500)
	points[250].Close = 10000 // prominent spike must survive

	got := Downsample(points, 50)
	found := false
	for _, p := range got {
		if p.Close == 10000 {
			found = true
			break
		}
	}
	assert.True(t, found, "LTTB should retain the dominant spike")
}

func TestRebase_Index(t *testing.T) {
	points := []domain.AggregatedPoint{
		{Date: day("2024-01-01"), Close: 50},
		{Date: day("2024-01-02"), Close: 55},
		{Date: day("2024-01-03"), Close: 45},
	}

	got := Rebase(points, domain.NormalizeIndex100)
	require.Len(t, got, 3)

	assert.Equal(t, 1000.0, got[0].Value)
	assert.InDelta(t, 1100.0, got[1].Value, 1e-9)
	assert.InDelta(t, 900.0, got[2].Value, 1e-9)
	assert.Equal(t, 55.0, got[1].RawValue)
	assert.Equal(t, "2024-01-02", got[1].Time)
}

func TestRebase_PercentChange(t *testing.T) {
	points := []domain.AggregatedPoint{
		{Date: day("2024-01-01"), Close: 200},
		{Date: day("2024-01-02"), Close: 210},
		{Date: day("2024-01-03"), Close: 190},
	}

	got := Rebase(points, domain.NormalizePercentChange)
	require.Len(t, got, 3)
	assert.Equal(t, 0.0, got[0].Value)
	assert.InDelta(t, 5.0, got[1].Value, 1e-9)
	assert.InDelta(t, -5.0, got[2].Value, 1e-9)
}

func TestRebase_DegenerateStart(t *testing.T) {
	assert.Nil(t, Rebase(nil, domain.NormalizeIndex100))
	assert.Nil(t, Rebase([]domain.AggregatedPoint{{Close: 0}}, domain.NormalizeIndex100))
}
