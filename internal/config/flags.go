package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// RegisterFlags registers all CLI flags to a cobra command.
func RegisterFlags(cmd *cobra.Command) {
	configureFlags(cmd.Flags())
}

// newFlagCommand creates a cobra command with all flags configured.
func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "collbench",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

// configureFlags sets up all CLI flags on the provided flag set.
func configureFlags(flags *pflag.FlagSet) {
	// Group flags
	flags.Int("rank", 0, "Rank of this participant in [0, size)")
	flags.Int("size", 1, "Number of participants in the group")
	flags.String("transport", DefaultTransport, "Transport backend: 'tcp', 'ws' or 'loopback'")
	flags.String("hostname", "", "Address to bind the transport device to (default: this machine's hostname)")
	flags.String("prefix", DefaultPrefix, "Namespace shared by all participants of one invocation")

	// Rendezvous flags
	flags.String("store", string(StoreRedis), "Rendezvous store: 'redis' or 'file'")
	flags.String("redis-host", DefaultRedisHost, "Redis host for the rendezvous store")
	flags.Int("redis-port", DefaultRedisPort, "Redis port for the rendezvous store")
	flags.String("redis-password", "", "Password for the Redis rendezvous store")
	flags.Int("redis-db", 0, "Redis database number for the rendezvous store")
	flags.String("store-path", "", "Shared directory for the file rendezvous store")
	flags.Duration("store-key-ttl", 0, "Expire rendezvous keys after this long so a prefix can be reused (0 keeps them)")

	// Benchmark flags
	flags.String("benchmark", DefaultBenchmark, "Workload to measure")
	flags.Int("elements", 0, "Element count for a single run (0 runs the sweep)")
	flags.Int("iteration-count", 0, "Fixed number of measured iterations (0 derives it from --iteration-time)")
	flags.Duration("iteration-time", DefaultIterationTime, "Time budget for the measured loop of each run")
	flags.Int("warmup-iterations", DefaultWarmupIterations, "Unmeasured iterations used to derive the iteration count")
	flags.Bool("verify", false, "Verify workload results after every run")
	flags.Int("root", 0, "Rank whose warmup minimum determines the iteration count")

	// Output flags
	flags.String("report-file", "", "Write results to a .json or .yaml report (leader only)")
	flags.String("metrics-addr", "", "Serve Prometheus metrics on this address (leader only)")
	flags.String("log-level", DefaultLogLevel, "Log level: trace, debug, info, warn, error or disabled")
	flags.String("log-format", string(LogFormatConsole), "Log format: 'console' or 'json'")
	flags.String("config", "", "Path to configuration file (JSON or YAML)")

	// Tracing flags
	flags.String("tracing-endpoint", "", "OTLP collector endpoint (enables tracing)")
	flags.String("tracing-protocol", "grpc", "OTLP protocol: 'grpc' or 'http'")
	flags.Bool("tracing-insecure", false, "Disable TLS for the OTLP exporter")
	flags.Float64("tracing-sample-rate", 1, "Fraction of runs to trace (0.0 to 1.0)")
}

// displayHelp prints the help message for a command.
func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Usage: %s\n\nFlags:\n", cmd.UseLine())
	fs := cmd.Flags()
	fs.SetOutput(out)
	fs.PrintDefaults()
}

// applyFlagOverrides applies command-line flag values to the config, overriding
// values from the config file.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	ints := map[string]*int{
		"rank":              &cfg.Rank,
		"size":              &cfg.Size,
		"redis-port":        &cfg.RedisPort,
		"redis-db":          &cfg.RedisDB,
		"elements":          &cfg.Elements,
		"iteration-count":   &cfg.IterationCount,
		"warmup-iterations": &cfg.WarmupIterations,
		"root":              &cfg.Root,
	}
	for name, dst := range ints {
		if !fs.Changed(name) {
			continue
		}
		val, err := fs.GetInt(name)
		if err != nil {
			return err
		}
		*dst = val
	}

	strs := map[string]*string{
		"transport":        &cfg.Transport,
		"hostname":         &cfg.Hostname,
		"prefix":           &cfg.Prefix,
		"redis-host":       &cfg.RedisHost,
		"redis-password":   &cfg.RedisPassword,
		"store-path":       &cfg.StorePath,
		"benchmark":        &cfg.Benchmark,
		"report-file":      &cfg.ReportFile,
		"metrics-addr":     &cfg.MetricsAddr,
		"log-level":        &cfg.LogLevel,
		"tracing-endpoint": &cfg.Tracing.Endpoint,
		"tracing-protocol": &cfg.Tracing.Protocol,
	}
	for name, dst := range strs {
		if !fs.Changed(name) {
			continue
		}
		val, err := fs.GetString(name)
		if err != nil {
			return err
		}
		*dst = strings.TrimSpace(val)
	}

	if fs.Changed("store") {
		val, err := fs.GetString("store")
		if err != nil {
			return err
		}
		cfg.Store = StoreKind(val)
	}
	if fs.Changed("log-format") {
		val, err := fs.GetString("log-format")
		if err != nil {
			return err
		}
		cfg.LogFormat = LogFormat(val)
	}
	if fs.Changed("store-key-ttl") {
		val, err := fs.GetDuration("store-key-ttl")
		if err != nil {
			return err
		}
		cfg.StoreKeyTTL = val
	}
	if fs.Changed("iteration-time") {
		val, err := fs.GetDuration("iteration-time")
		if err != nil {
			return err
		}
		cfg.IterationTime = val
	}
	if fs.Changed("verify") {
		val, err := fs.GetBool("verify")
		if err != nil {
			return err
		}
		cfg.Verify = val
	}
	if fs.Changed("tracing-insecure") {
		val, err := fs.GetBool("tracing-insecure")
		if err != nil {
			return err
		}
		cfg.Tracing.Insecure = val
	}
	if fs.Changed("tracing-sample-rate") {
		val, err := fs.GetFloat64("tracing-sample-rate")
		if err != nil {
			return err
		}
		cfg.Tracing.SampleRate = val
	}

	return nil
}
