package runner_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/torosent/collbench/internal/mesh"
	"github.com/torosent/collbench/internal/metrics"
	"github.com/torosent/collbench/internal/rendezvous"
	"github.com/torosent/collbench/internal/runner"
)

// recorder keeps the order of observable events across fakes.
type recorder struct {
	events []string
}

func (r *recorder) add(format string, args ...any) {
	r.events = append(r.events, fmt.Sprintf(format, args...))
}

// fakeCoordinator counts collective calls and answers broadcasts with a
// fixed value when agreed is set.
type fakeCoordinator struct {
	rec        *recorder
	agreed     int64
	broadcasts []int64
	barriers   int
}

func (c *fakeCoordinator) Broadcast(v int64) (int64, error) {
	c.broadcasts = append(c.broadcasts, v)
	if c.rec != nil {
		c.rec.add("broadcast")
	}
	if c.agreed != 0 {
		return c.agreed, nil
	}
	return v, nil
}

func (c *fakeCoordinator) Barrier() error {
	c.barriers++
	if c.rec != nil {
		c.rec.add("barrier")
	}
	return nil
}

func (c *fakeCoordinator) Close() error { return nil }

type fakeBench struct {
	rec       *recorder
	elements  int
	runs      int
	verifyErr error
}

func (b *fakeBench) Initialize(elements int) error {
	b.elements = elements
	if b.rec != nil {
		b.rec.add("init %d", elements)
	}
	return nil
}

func (b *fakeBench) Run() error {
	b.runs++
	return nil
}

func (b *fakeBench) Verify() error { return b.verifyErr }

func (b *fakeBench) Close() error {
	if b.rec != nil {
		b.rec.add("close %d", b.elements)
	}
	return nil
}

// stepClock advances by step on every reading, so every timed iteration
// measures exactly step.
type stepClock struct {
	now  time.Time
	step time.Duration
}

func (c *stepClock) Now() time.Time {
	c.now = c.now.Add(c.step)
	return c.now
}

// expectFatal runs fn and returns the FatalError it aborted with.
func expectFatal(t *testing.T, fn func()) (fe *runner.FatalError) {
	t.Helper()
	defer func() {
		rec := recover()
		if rec == nil {
			t.Fatal("expected a fatal error")
		}
		var ok bool
		if fe, ok = rec.(*runner.FatalError); !ok {
			panic(rec)
		}
	}()
	fn()
	return nil
}

func singleOptions(t *testing.T, coord runner.Coordinator) runner.Options {
	t.Helper()
	return runner.Options{
		Rank:        0,
		Size:        1,
		Transport:   "loopback",
		Prefix:      t.Name(),
		Out:         &bytes.Buffer{},
		Coordinator: coord,
		OnFatal:     func(*runner.FatalError) {},
	}
}

func TestIterationsForBudget(t *testing.T) {
	tests := []struct {
		budget, min int64
		want        int
	}{
		{budget: 1_000_000_000, min: 1_000, want: 1_000_000},
		{budget: 1_000_000_000, min: 3, want: 333_333_333},
		{budget: 999, min: 1_000, want: 0},
		{budget: 1_000, min: 0, want: 1_000},
		{budget: 1_000, min: -5, want: 1_000},
	}
	for _, tt := range tests {
		if got := runner.IterationsForBudget(tt.budget, tt.min); got != tt.want {
			t.Errorf("IterationsForBudget(%d, %d) = %d, want %d", tt.budget, tt.min, got, tt.want)
		}
	}
}

func TestSweepSequence(t *testing.T) {
	want := []int{
		1, 2, 5, 10, 20, 50, 100, 200, 500,
		1_000, 2_000, 5_000, 10_000, 20_000, 50_000,
		100_000, 200_000, 500_000, 1_000_000, 2_000_000, 5_000_000,
	}
	seq := runner.Sweep(0)
	if got := slices.Collect(seq); !slices.Equal(got, want) {
		t.Fatalf("Sweep(0) = %v, want %v", got, want)
	}
	if got := slices.Collect(seq); !slices.Equal(got, want) {
		t.Fatalf("second pass over Sweep(0) = %v, want %v", got, want)
	}

	if got := slices.Collect(runner.Sweep(42)); !slices.Equal(got, []int{42}) {
		t.Fatalf("Sweep(42) = %v, want [42]", got)
	}

	var first []int
	for n := range runner.Sweep(0) {
		if n > 20 {
			break
		}
		first = append(first, n)
	}
	if !slices.Equal(first, []int{1, 2, 5, 10, 20}) {
		t.Fatalf("early break yielded %v", first)
	}
}

func TestFixedCountSkipsWarmupAndBroadcast(t *testing.T) {
	coord := &fakeCoordinator{}
	opt := singleOptions(t, coord)
	opt.Elements = 64
	opt.IterationCount = 7
	opt.WarmupIterations = 5
	opt.Now = (&stepClock{step: time.Microsecond}).Now

	bench := &fakeBench{}
	r := runner.New(context.Background(), opt)
	defer r.Close()
	r.Run(context.Background(), func(*mesh.Context) (runner.Benchmark, error) { return bench, nil })

	if bench.runs != 7 {
		t.Errorf("workload ran %d times, want 7 with no warmup", bench.runs)
	}
	if len(coord.broadcasts) != 0 {
		t.Errorf("broadcast called %d times, want 0", len(coord.broadcasts))
	}
	results := r.Results()
	if len(results) != 1 || results[0].Samples != 7 || results[0].Elements != 64 {
		t.Fatalf("unexpected results %+v", results)
	}
	if results[0].Min != time.Microsecond || results[0].P99 != time.Microsecond {
		t.Errorf("expected every sample to be 1µs, got min=%s p99=%s", results[0].Min, results[0].P99)
	}
}

func TestTimeBoxedUsesBroadcastValue(t *testing.T) {
	coord := &fakeCoordinator{agreed: 1_000}
	opt := singleOptions(t, coord)
	opt.Elements = 8
	opt.IterationTime = time.Millisecond
	opt.WarmupIterations = 3
	opt.Now = (&stepClock{step: 250 * time.Nanosecond}).Now

	bench := &fakeBench{}
	r := runner.New(context.Background(), opt)
	defer r.Close()
	r.Run(context.Background(), func(*mesh.Context) (runner.Benchmark, error) { return bench, nil })

	if !slices.Equal(coord.broadcasts, []int64{250}) {
		t.Fatalf("broadcasts = %v, want the local warmup minimum [250]", coord.broadcasts)
	}
	// 1ms budget / 1000ns agreed minimum.
	if got := r.Results()[0].Samples; got != 1_000 {
		t.Errorf("samples = %d, want 1000", got)
	}
	if bench.runs != 3+1_000 {
		t.Errorf("workload ran %d times, want 3 warmup + 1000 measured", bench.runs)
	}
}

func TestOneBarrierPerRunBeforeTeardown(t *testing.T) {
	rec := &recorder{}
	coord := &fakeCoordinator{rec: rec}
	opt := singleOptions(t, coord)
	opt.IterationCount = 1

	r := runner.New(context.Background(), opt)
	defer r.Close()
	r.Run(context.Background(), func(*mesh.Context) (runner.Benchmark, error) {
		return &fakeBench{rec: rec}, nil
	})

	sizes := slices.Collect(runner.Sweep(0))
	if coord.barriers != len(sizes) {
		t.Fatalf("barrier called %d times, want one per run (%d)", coord.barriers, len(sizes))
	}
	var want []string
	for _, n := range sizes {
		want = append(want, fmt.Sprintf("init %d", n), "barrier", fmt.Sprintf("close %d", n))
	}
	if !slices.Equal(rec.events, want) {
		t.Fatalf("events = %v, want %v", rec.events, want)
	}
	if len(r.Results()) != len(sizes) {
		t.Errorf("results = %d, want %d", len(r.Results()), len(sizes))
	}
}

func TestVerificationFailureIsFatal(t *testing.T) {
	coord := &fakeCoordinator{}
	opt := singleOptions(t, coord)
	opt.Elements = 16
	opt.IterationCount = 10
	opt.Verify = true

	var hooked *runner.FatalError
	opt.OnFatal = func(fe *runner.FatalError) { hooked = fe }

	bench := &fakeBench{verifyErr: errors.New("sum mismatch at index 3")}
	r := runner.New(context.Background(), opt)
	defer r.Close()

	fe := expectFatal(t, func() {
		r.Run(context.Background(), func(*mesh.Context) (runner.Benchmark, error) { return bench, nil })
	})
	if fe.Class != runner.ClassVerification {
		t.Errorf("class = %s, want verification", fe.Class)
	}
	if hooked != fe {
		t.Error("OnFatal should receive the same error the runner aborts with")
	}
	if bench.runs != 1 {
		t.Errorf("workload ran %d times, want exactly the verification run", bench.runs)
	}
	if len(r.Results()) != 0 {
		t.Errorf("expected no results after failed verification, got %+v", r.Results())
	}
	if coord.barriers != 0 {
		t.Errorf("barrier should not run after a fatal error, got %d", coord.barriers)
	}
	if runner.ExitCode(fe) != 3 {
		t.Errorf("ExitCode = %d, want 3", runner.ExitCode(fe))
	}
}

func TestVerificationPassRunsBeforeTiming(t *testing.T) {
	opt := singleOptions(t, &fakeCoordinator{})
	opt.Elements = 4
	opt.IterationCount = 5
	opt.Verify = true

	bench := &fakeBench{}
	r := runner.New(context.Background(), opt)
	defer r.Close()
	r.Run(context.Background(), func(*mesh.Context) (runner.Benchmark, error) { return bench, nil })

	if bench.runs != 6 {
		t.Errorf("workload ran %d times, want 1 verification + 5 measured", bench.runs)
	}
	if got := r.Results()[0].Samples; got != 5 {
		t.Errorf("samples = %d, want 5", got)
	}
}

func TestUnknownTransportIsFatal(t *testing.T) {
	opt := singleOptions(t, nil)
	opt.Transport = "carrier-pigeon"

	fe := expectFatal(t, func() { runner.New(context.Background(), opt) })
	if fe.Class != runner.ClassConfig {
		t.Errorf("class = %s, want config", fe.Class)
	}
	if !strings.Contains(fe.Error(), "carrier-pigeon") {
		t.Errorf("error %q should name the transport", fe)
	}
}

func TestNonPositiveBudgetIsFatal(t *testing.T) {
	coord := &fakeCoordinator{}
	opt := singleOptions(t, coord)
	opt.Elements = 1
	opt.WarmupIterations = 2

	bench := &fakeBench{}
	r := runner.New(context.Background(), opt)
	defer r.Close()

	fe := expectFatal(t, func() {
		r.Run(context.Background(), func(*mesh.Context) (runner.Benchmark, error) { return bench, nil })
	})
	if fe.Class != runner.ClassConfig {
		t.Errorf("class = %s, want config", fe.Class)
	}
	if bench.runs != 0 || len(coord.broadcasts) != 0 {
		t.Errorf("nothing should run without a budget: runs=%d broadcasts=%d", bench.runs, len(coord.broadcasts))
	}
}

func TestWorkloadFactoryFailureIsInfrastructure(t *testing.T) {
	opt := singleOptions(t, &fakeCoordinator{})
	opt.Elements = 1
	opt.IterationCount = 1

	r := runner.New(context.Background(), opt)
	defer r.Close()
	fe := expectFatal(t, func() {
		r.Run(context.Background(), func(*mesh.Context) (runner.Benchmark, error) {
			return nil, errors.New("no buffers")
		})
	})
	if fe.Class != runner.ClassInfrastructure || runner.ExitCode(fe) != 4 {
		t.Errorf("class = %s exit %d, want infrastructure exit 4", fe.Class, runner.ExitCode(fe))
	}
}

func TestRankOutOfRangeCallsHookOnce(t *testing.T) {
	opt := singleOptions(t, nil)
	opt.Rank = 3

	calls := 0
	opt.OnFatal = func(*runner.FatalError) { calls++ }
	fe := expectFatal(t, func() { runner.New(context.Background(), opt) })
	if calls != 1 {
		t.Errorf("OnFatal called %d times, want 1", calls)
	}
	if fe.Class != runner.ClassConfig || runner.ExitCode(fe) != 2 {
		t.Errorf("unexpected fatal error %v", fe)
	}
}

// groupRun runs one Runner per rank concurrently over the loopback
// transport with a shared in-memory store.
func groupRun(t *testing.T, size int, configure func(rank int, opt *runner.Options)) ([]*runner.Runner, []*bytes.Buffer, *rendezvous.HashStore) {
	t.Helper()
	store := rendezvous.NewHashStore()
	runners := make([]*runner.Runner, size)
	outs := make([]*bytes.Buffer, size)
	failures := make([]any, size)

	var wg sync.WaitGroup
	wg.Add(size)
	for rank := 0; rank < size; rank++ {
		outs[rank] = &bytes.Buffer{}
		go func(rank int) {
			defer wg.Done()
			defer func() { failures[rank] = recover() }()
			opt := runner.Options{
				Rank:      rank,
				Size:      size,
				Transport: "loopback",
				Prefix:    t.Name(),
				NewStore:  func(context.Context) (rendezvous.Store, error) { return store, nil },
				Out:       outs[rank],
				OnFatal:   func(*runner.FatalError) {},
			}
			configure(rank, &opt)
			r := runner.New(context.Background(), opt)
			runners[rank] = r
			r.Run(context.Background(), func(*mesh.Context) (runner.Benchmark, error) { return &fakeBench{}, nil })
		}(rank)
	}
	wg.Wait()
	for rank, f := range failures {
		if f != nil {
			t.Fatalf("rank %d aborted: %v", rank, f)
		}
	}
	t.Cleanup(func() {
		for _, r := range runners {
			_ = r.Close()
		}
	})
	return runners, outs, store
}

func TestOnlyLeaderPrints(t *testing.T) {
	runners, outs, store := groupRun(t, 3, func(rank int, opt *runner.Options) {
		opt.Elements = 10
		opt.IterationTime = 200 * time.Microsecond
		opt.WarmupIterations = 2
		opt.Now = (&stepClock{step: time.Duration(rank+1) * time.Microsecond}).Now
	})

	lines := strings.Split(strings.TrimRight(outs[0].String(), "\n"), "\n")
	if len(lines) != 2 || !strings.Contains(lines[0], "elements") {
		t.Fatalf("leader output = %q, want header and one row", outs[0].String())
	}
	for rank := 1; rank < 3; rank++ {
		if outs[rank].Len() != 0 {
			t.Errorf("rank %d printed %q, want nothing", rank, outs[rank].String())
		}
	}

	// Root 0 measured 1µs per warmup iteration: 200µs / 1µs on every rank.
	for rank, r := range runners {
		if got := r.Results()[0].Samples; got != 200 {
			t.Errorf("rank %d samples = %d, want 200", rank, got)
		}
	}

	// Coordination group and one run group, three addresses each.
	if store.Len() != 6 {
		t.Errorf("store holds %d keys, want 6 under two distinct prefixes", store.Len())
	}
}

func TestRootMinimumIsNotGlobalMinimum(t *testing.T) {
	runners, _, _ := groupRun(t, 2, func(rank int, opt *runner.Options) {
		opt.Root = 1
		opt.Elements = 3
		opt.IterationTime = time.Millisecond
		opt.WarmupIterations = 1
		step := 10 * time.Nanosecond
		if rank == 1 {
			step = time.Microsecond
		}
		opt.Now = (&stepClock{step: step}).Now
	})

	for rank, r := range runners {
		got := r.Results()[0].Samples
		if got != 1_000 {
			t.Errorf("rank %d samples = %d, want 1ms / rank 1's 1µs = 1000", rank, got)
		}
	}
}

func TestResultsAreCopies(t *testing.T) {
	opt := singleOptions(t, &fakeCoordinator{})
	opt.Elements = 2
	opt.IterationCount = 3
	r := runner.New(context.Background(), opt)
	defer r.Close()
	r.Run(context.Background(), func(*mesh.Context) (runner.Benchmark, error) { return &fakeBench{}, nil })

	results := r.Results()
	results[0] = metrics.Summary{}
	if r.Results()[0].Samples != 3 {
		t.Error("Results should return a copy")
	}
}

func TestRunCompleteLogsTraffic(t *testing.T) {
	var logs bytes.Buffer
	opt := singleOptions(t, &fakeCoordinator{})
	opt.Elements = 4
	opt.IterationCount = 2
	opt.Logger = zerolog.New(&logs)
	r := runner.New(context.Background(), opt)
	defer r.Close()
	r.Run(context.Background(), func(*mesh.Context) (runner.Benchmark, error) { return &fakeBench{}, nil })

	var found bool
	for _, line := range strings.Split(strings.TrimSpace(logs.String()), "\n") {
		if gjson.Get(line, "message").String() != "run complete" {
			continue
		}
		found = true
		sent := gjson.Get(line, "bytes_sent")
		if sent.Type != gjson.Number || sent.Int() != 0 {
			t.Errorf("bytes_sent = %s, want numeric 0 for a single participant", sent.Raw)
		}
		if got := gjson.Get(line, "samples").Int(); got != 2 {
			t.Errorf("samples = %d, want 2", got)
		}
	}
	if !found {
		t.Fatalf("no run complete line in %q", logs.String())
	}
}
