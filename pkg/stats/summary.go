package stats

import (
	"fmt"
	"math"
	"slices"
	"time"
)

// Summary describes the distribution of a list of durations.
type Summary struct {
	Count  int
	Sum    time.Duration
	Min    time.Duration
	Max    time.Duration
	Mean   time.Duration
	Median time.Duration
	P99    time.Duration
	// Variance is expressed in squared milliseconds.
	Variance float64
}

// Summarize computes the distribution of durations. The input is not modified.
func Summarize(durations []time.Duration) Summary {
	if len(durations) == 0 {
		return Summary{}
	}

	values := slices.Clone(durations)
	slices.Sort(values)

	var sum time.Duration
	for _, value := range values {
		sum += value
	}

	mean := float64(sum) / float64(len(values))

	return Summary{
		Count:    len(values),
		Sum:      sum,
		Min:      values[0],
		Max:      values[len(values)-1],
		Mean:     time.Duration(mean),
		Median:   median(values),
		P99:      percentile(values, 0.99),
		Variance: variance(values, mean),
	}
}

// Summary summarizes the durations held by v, see Value.Durations.
func (v Value) Summary() Summary {
	return Summarize(v.Durations())
}

// String renders the summary on one line.
func (s Summary) String() string {
	if s.Count == 0 {
		return "count=0"
	}

	return fmt.Sprintf("count=%d min=%s max=%s mean=%s median=%s p99=%s",
		s.Count, s.Min, s.Max, s.Mean, s.Median, s.P99)
}

// median expects sorted values.
func median(values []time.Duration) time.Duration {
	mid := len(values) / 2
	if len(values)%2 == 0 {
		return (values[mid-1] + values[mid]) / 2
	}

	return values[mid]
}

// percentile expects sorted values and p in [0, 1].
func percentile(values []time.Duration, p float64) time.Duration {
	index := int(math.Ceil(float64(len(values))*p)) - 1
	index = max(0, min(index, len(values)-1))

	return values[index]
}

// variance returns the population variance of values, in squared milliseconds.
func variance(values []time.Duration, mean float64) float64 {
	var acc float64

	for _, value := range values {
		acc += math.Pow((float64(value)-mean)/float64(time.Millisecond), 2)
	}

	return acc / float64(len(values))
}
