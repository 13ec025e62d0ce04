package application

import "slices"

// HistogramBins is the number of buckets in a score histogram.
const HistogramBins = 10

// Bucket is one histogram bin covering [Low, High); the last bin is closed.
type Bucket struct {
	Low   float64 `json:"low"`
	High  float64 `json:"high"`
	Count int     `json:"count"`
}

// Histogram bins values into equal-width buckets spanning their range. When
// every value is equal the range is widened to value±0.5.
func Histogram(values []float64, bins int) []Bucket {
	if len(values) == 0 || bins <= 0 {
		return nil
	}

	lo, hi := slices.Min(values), slices.Max(values)
	if lo == hi {
		lo, hi = lo-0.5, hi+0.5
	}
	width := (hi - lo) / float64(bins)

	out := make([]Bucket, bins)
	for i := range out {
		out[i].Low = lo + float64(i)*width
		out[i].High = lo + float64(i+1)*width
	}
	out[bins-1].High = hi

	for _, v := range values {
		i := int((v - lo) / width)
		if i >= bins {
			i = bins - 1
		}
		if i < 0 {
			i = 0
		}
		out[i].Count++
	}
	return out
}
