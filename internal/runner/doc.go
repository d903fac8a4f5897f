// Package runner is the benchmark core of collbench.
//
// A [Runner] measures the per-iteration latency of a workload executed
// cooperatively by a fixed-size group of participants. For each element
// count it connects a fresh, fully meshed group under a unique rendezvous
// prefix, agrees on an iteration count, times the workload, prints one
// result row from rank 0 and fences teardown with a barrier.
//
// # Basic Usage
//
//	r := runner.New(ctx, runner.Options{
//		Rank:             rank,
//		Size:             size,
//		Transport:        "tcp",
//		NewStore:         openStore,
//		Prefix:           "nightly",
//		IterationTime:    2 * time.Second,
//		WarmupIterations: 5,
//	})
//	defer r.Close()
//	r.Run(ctx, factory)
//
// # Iteration Count
//
// With a fixed IterationCount the runner measures exactly that many
// iterations. Otherwise every participant runs WarmupIterations unmeasured
// iterations, the root's fastest one is broadcast to the group, and the
// iteration count is IterationTime divided by it. The root's own minimum is
// used even when another participant measured a faster one.
//
// # Sweep
//
// With Elements unset the runner visits [Sweep]: 1, 2, 5, 10, 20, 50 and so
// on up to 5,000,000.
//
// # Errors
//
// Every failure is fatal. The runner passes a [FatalError] to
// Options.OnFatal, which by default logs it and exits with the class exit
// code, and panics if the hook returns.
package runner
