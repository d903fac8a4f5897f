package runner

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/torosent/collbench/internal/mesh"
	"github.com/torosent/collbench/internal/metrics"
	"github.com/torosent/collbench/internal/rendezvous"
	"github.com/torosent/collbench/internal/transport"
)

// Benchmark is one workload bound to a group. Run executes one measured
// unit and must be invoked by every participant the same number of times.
type Benchmark interface {
	Initialize(elements int) error
	Run() error
	Verify() error
}

// BenchmarkFactory builds a workload for a freshly connected group.
// Workloads that also implement io.Closer are closed after the run's barrier.
type BenchmarkFactory func(group *mesh.Context) (Benchmark, error)

// StoreFactory opens a connection to the rendezvous store. It is called once
// per group; the runner closes the store after the group is connected.
type StoreFactory func(ctx context.Context) (rendezvous.Store, error)

// Options configure the Runner.
type Options struct {
	Rank      int
	Size      int
	Transport string              // device name resolved through Registry
	Device    transport.Attr      // backend-specific device attributes
	Registry  *transport.Registry // defaults to transport.Default
	NewStore  StoreFactory        // defaults to one in-memory store per Runner
	Prefix    string              // base of every group's rendezvous namespace

	Elements         int           // 0 runs the sweep
	IterationCount   int           // fixed measured iterations; 0 means time-boxed
	IterationTime    time.Duration // budget for the measured loop when time-boxed
	WarmupIterations int           // unmeasured iterations before the broadcast
	Verify           bool
	Root             int    // rank whose warmup minimum is broadcast
	Benchmark        string // workload name, used for span attributes

	Out      io.Writer // leader's result table, defaults to os.Stdout
	Logger   zerolog.Logger
	Tracer   trace.Tracer
	Exporter *metrics.Exporter // nil disables Prometheus export

	// Coordinator replaces the broadcast/barrier pair built at construction.
	Coordinator Coordinator
	// OnFatal receives every fatal error. The runner panics with the same
	// error if it returns.
	OnFatal func(*FatalError)
	// Now is the clock used to time iterations.
	Now func() time.Time
}

func (o *Options) normalize() {
	if o.Size <= 0 {
		o.Size = 1
	}
	if o.Registry == nil {
		o.Registry = transport.Default
	}
	if o.NewStore == nil {
		shared := rendezvous.NewHashStore()
		o.NewStore = func(context.Context) (rendezvous.Store, error) { return shared, nil }
	}
	if o.Prefix == "" {
		o.Prefix = "collbench"
	}
	if o.WarmupIterations < 0 {
		o.WarmupIterations = 0
	}
	if o.Out == nil {
		o.Out = os.Stdout
	}
	if o.Tracer == nil {
		o.Tracer = noop.NewTracerProvider().Tracer("collbench")
	}
	if o.OnFatal == nil {
		o.OnFatal = DefaultOnFatal(o.Logger)
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}
