package metrics

import (
	"math"
	"slices"
	"time"
)

// Distribution holds the latency samples of one run and answers order
// statistics over them. It is not safe for concurrent use.
type Distribution struct {
	samples []time.Duration
	sorted  bool
}

// Add appends one sample.
func (d *Distribution) Add(sample time.Duration) {
	d.samples = append(d.samples, sample)
	d.sorted = false
}

// Clear drops all samples, keeping capacity for the next run.
func (d *Distribution) Clear() {
	d.samples = d.samples[:0]
	d.sorted = false
}

// Size returns the number of samples.
func (d *Distribution) Size() int { return len(d.samples) }

// Min returns the smallest sample, or 0 when empty.
func (d *Distribution) Min() time.Duration { return d.Percentile(0) }

// Max returns the largest sample, or 0 when empty.
func (d *Distribution) Max() time.Duration { return d.Percentile(1) }

// Percentile returns the nearest-rank percentile for p in [0, 1]: the sample
// at index ceil(p*n)-1 of the sorted samples, clamped to [0, n-1]. p = 0
// yields the minimum. It returns 0 for an empty distribution.
func (d *Distribution) Percentile(p float64) time.Duration {
	n := len(d.samples)
	if n == 0 {
		return 0
	}
	d.sort()
	return d.samples[PercentileIndex(p, n)]
}

// PercentileIndex returns the nearest-rank index for p over n sorted samples.
func PercentileIndex(p float64, n int) int {
	// The epsilon keeps products like 0.9*10 from rounding up a rank.
	idx := int(math.Ceil(p*float64(n)-1e-9)) - 1
	if idx < 0 {
		idx = 0
	}
	if idx > n-1 {
		idx = n - 1
	}
	return idx
}

// Mean returns the arithmetic mean, or 0 when empty.
func (d *Distribution) Mean() time.Duration {
	if len(d.samples) == 0 {
		return 0
	}
	var sum time.Duration
	for _, s := range d.samples {
		sum += s
	}
	return sum / time.Duration(len(d.samples))
}

// Samples returns a copy of the samples in insertion order unless a
// percentile has been computed since the last Add.
func (d *Distribution) Samples() []time.Duration {
	return slices.Clone(d.samples)
}

func (d *Distribution) sort() {
	if d.sorted {
		return
	}
	slices.Sort(d.samples)
	d.sorted = true
}
