// Package metrics turns the latency samples of a run into the numbers
// collbench reports.
//
// # Distribution
//
// A [Distribution] collects one sample per measured iteration. Order
// statistics use the nearest-rank convention over the sorted samples:
//
//	var d metrics.Distribution
//	d.Add(elapsed)
//	p99 := d.Percentile(0.99)
//
// # Summary
//
// [Summarize] condenses a distribution into a [Summary], the row printed by
// the leader and serialized into reports. The p99.9 and standard deviation
// come from an HdrHistogram built over the same samples.
//
// # Export
//
// An [Exporter] publishes completed summaries on a private Prometheus
// registry. A nil Exporter ignores observations.
package metrics
