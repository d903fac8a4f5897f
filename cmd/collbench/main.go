package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/torosent/collbench/internal/config"
	"github.com/torosent/collbench/internal/logging"
	"github.com/torosent/collbench/internal/metrics"
	"github.com/torosent/collbench/internal/output"
	"github.com/torosent/collbench/internal/runner"
	"github.com/torosent/collbench/internal/tracing"
	"github.com/torosent/collbench/internal/transport"
	"github.com/torosent/collbench/internal/workload"
)

const shutdownTimeout = 5 * time.Second

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(runner.ExitCode(err))
	}
}

func run(args []string, stdout, stderr io.Writer) (err error) {
	loader := config.NewLoader()
	cfg, err := loader.Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return &runner.FatalError{Class: runner.ClassConfig, Op: "validate config", Err: err}
	}

	logger, err := logging.New(cfg.LogLevel, string(cfg.LogFormat), stderr)
	if err != nil {
		return err
	}
	logger = logging.ForRank(logger, cfg.Rank, cfg.Size)

	factory, err := workload.Lookup(cfg.Benchmark)
	if err != nil {
		return &runner.FatalError{Class: runner.ClassConfig, Op: "select benchmark", Err: err}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	provider, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("tracing shutdown")
		}
	}()

	var exporter *metrics.Exporter
	if cfg.Leader() && cfg.MetricsAddr != "" {
		exporter = metrics.NewExporter()
		srv := serveMetrics(cfg.MetricsAddr, exporter, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	// The runner aborts with a *runner.FatalError panic once OnFatal has
	// logged it; turn it back into an error so deferred cleanup runs.
	defer func() {
		if rec := recover(); rec != nil {
			fe, ok := rec.(*runner.FatalError)
			if !ok {
				panic(rec)
			}
			err = fe
		}
	}()

	started := time.Now()
	r := runner.New(ctx, runner.Options{
		Rank:             cfg.Rank,
		Size:             cfg.Size,
		Transport:        cfg.Transport,
		Device:           transport.Attr{Hostname: cfg.Hostname},
		NewStore:         storeFactory(cfg),
		Prefix:           cfg.Prefix,
		Elements:         cfg.Elements,
		IterationCount:   cfg.IterationCount,
		IterationTime:    cfg.IterationTime,
		WarmupIterations: cfg.WarmupIterations,
		Verify:           cfg.Verify,
		Root:             cfg.Root,
		Benchmark:        cfg.Benchmark,
		Out:              stdout,
		Logger:           logger,
		Tracer:           provider.Tracer(),
		Exporter:         exporter,
		OnFatal: func(fe *runner.FatalError) {
			logger.Error().Err(fe.Err).Str("class", string(fe.Class)).Str("op", fe.Op).Msg("fatal")
		},
	})
	defer func() {
		if cerr := r.Close(); cerr != nil {
			logger.Warn().Err(cerr).Msg("close runner")
		}
	}()

	r.Run(ctx, factory)

	if cfg.Leader() && cfg.ReportFile != "" {
		report := output.NewReport(started, cfg.Benchmark, cfg.Transport, cfg.Size)
		report.Finished = time.Now().UTC()
		report.Verified = cfg.Verify
		report.Results = r.Results()
		if err := output.WriteReport(cfg.ReportFile, report); err != nil {
			return err
		}
		logger.Info().Str("path", cfg.ReportFile).Str("run_id", report.RunID).Msg("report written")
	}
	return nil
}
