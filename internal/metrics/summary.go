package metrics

import (
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Track latencies from 1ns up to 60s with 3 significant figures.
const (
	histogramLowest  = 1
	histogramHighest = int64(60 * time.Second)
	histogramSigFigs = 3
)

// Summary is one result row: the order statistics of a run's distribution.
// Min and the percentiles are exact; StdDev and P999 come from an HDR
// histogram of the same samples.
type Summary struct {
	Elements int           `json:"elements" yaml:"elements"`
	Samples  int           `json:"samples" yaml:"samples"`
	Min      time.Duration `json:"-" yaml:"-"`
	P50      time.Duration `json:"-" yaml:"-"`
	P90      time.Duration `json:"-" yaml:"-"`
	P99      time.Duration `json:"-" yaml:"-"`
	P999     time.Duration `json:"-" yaml:"-"`
	Max      time.Duration `json:"-" yaml:"-"`
	Mean     time.Duration `json:"-" yaml:"-"`
	StdDev   time.Duration `json:"-" yaml:"-"`

	// Report-friendly microsecond fields.
	MinUs    float64 `json:"min_us" yaml:"min_us"`
	P50Us    float64 `json:"p50_us" yaml:"p50_us"`
	P90Us    float64 `json:"p90_us" yaml:"p90_us"`
	P99Us    float64 `json:"p99_us" yaml:"p99_us"`
	P999Us   float64 `json:"p999_us" yaml:"p999_us"`
	MaxUs    float64 `json:"max_us" yaml:"max_us"`
	MeanUs   float64 `json:"mean_us" yaml:"mean_us"`
	StdDevUs float64 `json:"stddev_us" yaml:"stddev_us"`
}

// Summarize computes the summary of d for a run over elements.
func Summarize(elements int, d *Distribution) Summary {
	s := Summary{
		Elements: elements,
		Samples:  d.Size(),
		Min:      d.Min(),
		P50:      d.Percentile(0.50),
		P90:      d.Percentile(0.90),
		P99:      d.Percentile(0.99),
		Max:      d.Max(),
		Mean:     d.Mean(),
	}

	if d.Size() > 0 {
		h := d.Histogram()
		s.P999 = time.Duration(h.ValueAtQuantile(99.9))
		s.StdDev = time.Duration(h.StdDev())
	}

	s.MinUs = micros(s.Min)
	s.P50Us = micros(s.P50)
	s.P90Us = micros(s.P90)
	s.P99Us = micros(s.P99)
	s.P999Us = micros(s.P999)
	s.MaxUs = micros(s.Max)
	s.MeanUs = micros(s.Mean)
	s.StdDevUs = micros(s.StdDev)
	return s
}

// Histogram returns an HDR histogram of the samples in nanoseconds.
// Samples outside the trackable range are clamped to it.
func (d *Distribution) Histogram() *hdrhistogram.Histogram {
	h := hdrhistogram.New(histogramLowest, histogramHighest, histogramSigFigs)
	for _, s := range d.samples {
		ns := int64(s)
		if ns < h.LowestTrackableValue() {
			ns = h.LowestTrackableValue()
		}
		if ns > h.HighestTrackableValue() {
			ns = h.HighestTrackableValue()
		}
		_ = h.RecordValue(ns)
	}
	return h
}

func micros(d time.Duration) float64 {
	return float64(d) / float64(time.Microsecond)
}
