package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/torosent/collbench/internal/mesh"
	"github.com/torosent/collbench/internal/metrics"
	"github.com/torosent/collbench/internal/output"
	"github.com/torosent/collbench/internal/rendezvous"
	"github.com/torosent/collbench/internal/tracing"
	"github.com/torosent/collbench/internal/transport"
)

// Runner drives a benchmark across a group of participants. It owns the
// transport device, the prefix counter and the coordination primitives
// reused by every run.
type Runner struct {
	opt     Options
	log     zerolog.Logger
	dev     transport.Device
	coord   Coordinator
	table   *output.Table
	counter atomic.Uint64

	samples metrics.Distribution
	results []metrics.Summary
}

// New resolves the transport device and joins the coordination group. It
// blocks until every participant has started.
func New(ctx context.Context, opt Options) *Runner {
	opt.normalize()
	r := &Runner{
		opt:   opt,
		log:   opt.Logger,
		table: output.NewTable(opt.Out, opt.Rank == 0),
	}

	if opt.Rank < 0 || opt.Rank >= opt.Size {
		r.fatal(ClassConfig, "new runner", fmt.Errorf("rank %d out of range [0, %d)", opt.Rank, opt.Size))
	}
	if opt.Root < 0 || opt.Root >= opt.Size {
		r.fatal(ClassConfig, "new runner", fmt.Errorf("root %d out of range [0, %d)", opt.Root, opt.Size))
	}

	dev, err := opt.Registry.New(opt.Transport, opt.Device)
	if err != nil {
		class := ClassInfrastructure
		if errors.Is(err, transport.ErrUnknownTransport) {
			class = ClassConfig
		}
		r.fatal(class, "select transport", err)
	}
	r.dev = dev

	if opt.Coordinator != nil {
		r.coord = opt.Coordinator
	} else {
		group := r.newContext(ctx)
		coord, err := newGroupCoordinator(group, opt.Root)
		if err != nil {
			group.Close()
			r.fatal(ClassConfig, "coordination group", err)
		}
		r.coord = coord
	}

	r.log.Debug().Str("transport", opt.Transport).Msg("runner ready")
	return r
}

// Run executes the benchmark once for the configured element count, or
// once per element count of the sweep. The leader prints the table header
// followed by one row per run.
func (r *Runner) Run(ctx context.Context, factory BenchmarkFactory) {
	if err := r.table.Header(); err != nil {
		r.fatal(ClassInfrastructure, "print header", err)
	}
	for elements := range Sweep(r.opt.Elements) {
		r.runSize(ctx, factory, elements)
	}
}

// Results returns the summaries of every completed run in order.
func (r *Runner) Results() []metrics.Summary {
	return append([]metrics.Summary(nil), r.results...)
}

// Close releases the coordination group and the device.
func (r *Runner) Close() error {
	var errs []error
	if r.coord != nil {
		errs = append(errs, r.coord.Close())
	}
	if r.dev != nil {
		errs = append(errs, r.dev.Close())
	}
	return errors.Join(errs...)
}

func (r *Runner) runSize(ctx context.Context, factory BenchmarkFactory, elements int) {
	r.samples.Clear()

	ctx, span := tracing.StartRunSpan(ctx, r.opt.Tracer, r.opt.Benchmark, elements, r.opt.Rank, r.opt.Size)
	log := r.log.With().Int("elements", elements).Logger()

	_, connectSpan := tracing.StartPhaseSpan(ctx, r.opt.Tracer, "connect")
	group := r.newContext(ctx)
	tracing.EndSpan(connectSpan, nil, tracing.AttrPrefix.String(group.Prefix()))

	bench, err := factory(group)
	if err != nil {
		r.fatal(ClassInfrastructure, "create workload", err)
	}
	if err := bench.Initialize(elements); err != nil {
		r.fatal(ClassInfrastructure, "initialize workload", err)
	}

	if r.opt.Verify {
		if err := bench.Run(); err != nil {
			r.fatal(ClassInfrastructure, "verification run", err)
		}
		if err := bench.Verify(); err != nil {
			r.fatal(ClassVerification, fmt.Sprintf("verify %d elements", elements), err)
		}
	}

	iterations := r.resolveIterations(ctx, bench)
	log.Debug().Int("iterations", iterations).Msg("iteration count agreed")

	for i := 0; i < iterations; i++ {
		start := r.opt.Now()
		if err := bench.Run(); err != nil {
			r.fatal(ClassInfrastructure, "run workload", err)
		}
		r.samples.Add(r.opt.Now().Sub(start))
	}

	summary := metrics.Summarize(elements, &r.samples)
	if err := r.table.Row(summary); err != nil {
		r.fatal(ClassInfrastructure, "print row", err)
	}
	r.opt.Exporter.Observe(summary)
	r.results = append(r.results, summary)

	// No participant may release its side of the group while a peer could
	// still be using it.
	if err := r.coord.Barrier(); err != nil {
		r.fatal(ClassInfrastructure, "barrier", err)
	}

	stats := group.Stats()
	if c, ok := bench.(io.Closer); ok {
		if err := c.Close(); err != nil {
			log.Warn().Err(err).Msg("close workload")
		}
	}
	if err := group.Close(); err != nil {
		log.Warn().Err(err).Msg("close group")
	}

	log.Info().
		Int("samples", summary.Samples).
		Dur("p50", summary.P50).
		Int64("bytes_sent", stats.BytesSent).
		Msg("run complete")
	tracing.EndSpan(span, nil,
		tracing.AttrIterations.Int(iterations),
		tracing.AttrSamples.Int(summary.Samples),
	)
}

// resolveIterations returns the measured iteration count every participant
// agrees on: the configured count, or the time budget divided by the root's
// fastest warmup iteration.
func (r *Runner) resolveIterations(ctx context.Context, bench Benchmark) int {
	if r.opt.IterationCount > 0 {
		return r.opt.IterationCount
	}
	if r.opt.IterationTime <= 0 {
		r.fatal(ClassConfig, "resolve iterations", fmt.Errorf("iteration time must be positive without a fixed iteration count, got %s", r.opt.IterationTime))
	}
	if r.opt.WarmupIterations < 1 {
		r.fatal(ClassConfig, "resolve iterations", errors.New("at least one warmup iteration is required without a fixed iteration count"))
	}

	_, span := tracing.StartPhaseSpan(ctx, r.opt.Tracer, "warmup")
	fastest := time.Duration(math.MaxInt64)
	for i := 0; i < r.opt.WarmupIterations; i++ {
		start := r.opt.Now()
		if err := bench.Run(); err != nil {
			tracing.EndSpan(span, err)
			r.fatal(ClassInfrastructure, "warmup", err)
		}
		fastest = min(fastest, r.opt.Now().Sub(start))
	}

	agreed, err := r.coord.Broadcast(fastest.Nanoseconds())
	if err != nil {
		tracing.EndSpan(span, err)
		r.fatal(ClassInfrastructure, "broadcast warmup minimum", err)
	}
	tracing.EndSpan(span, nil)
	return IterationsForBudget(r.opt.IterationTime.Nanoseconds(), agreed)
}

// IterationsForBudget divides the budget by the per-iteration estimate with
// integer division. Estimates below one nanosecond count as one.
func IterationsForBudget(budgetNanos, minNanos int64) int {
	if minNanos < 1 {
		minNanos = 1
	}
	return int(budgetNanos / minNanos)
}

// newContext connects a fresh group under the next unused prefix.
func (r *Runner) newContext(ctx context.Context) *mesh.Context {
	n := r.counter.Add(1) - 1
	prefix := fmt.Sprintf("%s-%d", r.opt.Prefix, n)

	store, err := r.opt.NewStore(ctx)
	if err != nil {
		r.fatal(ClassInfrastructure, "open rendezvous store", err)
	}
	scoped := rendezvous.WithPrefix(prefix, store)
	group, err := mesh.Connect(ctx, r.opt.Rank, r.opt.Size, prefix, scoped, r.dev)
	if cerr := scoped.Close(); cerr != nil {
		r.log.Warn().Err(cerr).Str("prefix", prefix).Msg("close rendezvous store")
	}
	if err != nil {
		r.fatal(ClassInfrastructure, "connect group "+prefix, err)
	}
	r.log.Debug().Str("prefix", prefix).Msg("group connected")
	return group
}

// fatal hands err to the fatal hook and never returns.
func (r *Runner) fatal(class ErrorClass, op string, err error) {
	fe := &FatalError{Class: class, Op: op, Err: err}
	r.opt.OnFatal(fe)
	panic(fe)
}
