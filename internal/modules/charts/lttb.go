package charts

import (
	"time"

	"github.com/aristath/spyglass/internal/domain"
)

// DefaultTargetPoints is the chart point budget applied regardless of input
// length.
const DefaultTargetPoints = 180

// lttbEpoch anchors the numeric date coordinate used in triangle areas.
var lttbEpoch = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

// Downsample reduces a series to target points using the largest-triangle-
// three-buckets algorithm. The first and last points are always kept; each
// interior output bucket contributes the point forming the largest triangle
// with the previously selected point and the first point of the next bucket.
// Returns the input unchanged when it already fits the target; a target
// below 3 degrades to {first, last}.
func Downsample(points []domain.AggregatedPoint, target int) []domain.AggregatedPoint {
	n := len(points)
	if n <= target || n == 0 {
		return points
	}
	if target <= 2 {
		if target < 2 || n < 2 {
			return points[:1:1]
		}
		return []domain.AggregatedPoint{points[0], points[n-1]}
	}

	result := make([]domain.AggregatedPoint, 0, target)
	result = append(result, points[0])

	bucketSize := float64(n-2) / float64(target-2)

	for i := 1; i <= target-2; i++ {
		bucketStart := int(float64(i)*bucketSize) + 1
		bucketEnd := int(float64(i+1)*bucketSize) + 1

		// Interior buckets never reach the final point; it is appended
		// afterwards and must not be selected twice.
		if bucketEnd > n-1 {
			bucketEnd = n - 1
		}
		if bucketStart > n-2 {
			bucketStart = n - 2
		}

		// Representative of the next bucket: its first point. For the last
		// interior bucket this is the final point of the series.
		prev := result[len(result)-1]
		rep := points[bucketEnd]

		maxArea := -1.0
		selected := points[bucketStart]
		for j := bucketStart; j < bucketEnd; j++ {
			area := triangleArea(prev, points[j], rep)
			if area > maxArea {
				maxArea = area
				selected = points[j]
			}
		}

		result = append(result, selected)
	}

	result = append(result, points[n-1])
	return result
}

// triangleArea computes the area of the triangle spanned by three points in
// (days-since-epoch, close) coordinates.
func triangleArea(a, b, c domain.AggregatedPoint) float64 {
	x1, y1 := dateCoord(a.Date), a.Close
	x2, y2 := dateCoord(b.Date), b.Close
	x3, y3 := dateCoord(c.Date), c.Close

	area := (y1*(x2-x3) + y2*(x3-x1) + y3*(x1-x2)) / 2
	if area < 0 {
		return -area
	}
	return area
}

func dateCoord(d time.Time) float64 {
	return d.Sub(lttbEpoch).Hours() / 24
}
