package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

type StoreKind string

const (
	StoreRedis StoreKind = "redis"
	StoreFile  StoreKind = "file"
)

type LogFormat string

const (
	LogFormatConsole LogFormat = "console"
	LogFormatJSON    LogFormat = "json"
)

// Defaults applied before config files and flags.
const (
	DefaultTransport        = "tcp"
	DefaultPrefix           = "collbench"
	DefaultRedisHost        = "127.0.0.1"
	DefaultRedisPort        = 6379
	DefaultIterationTime    = 2 * time.Second
	DefaultWarmupIterations = 5
	DefaultBenchmark        = "allreduce"
	DefaultLogLevel         = "warn"
)

type Config struct {
	Rank          int           `mapstructure:"rank"`
	Size          int           `mapstructure:"size"`
	Transport     string        `mapstructure:"transport"`
	Hostname      string        `mapstructure:"hostname"` // empty binds to the machine's hostname
	Store         StoreKind     `mapstructure:"store"`
	RedisHost     string        `mapstructure:"redis_host"`
	RedisPort     int           `mapstructure:"redis_port"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	StorePath     string        `mapstructure:"store_path"`
	StoreKeyTTL   time.Duration `mapstructure:"store_key_ttl"` // 0 keeps rendezvous keys forever
	Prefix        string        `mapstructure:"prefix"`

	Elements         int           `mapstructure:"elements"`          // 0 runs the sweep
	IterationCount   int           `mapstructure:"iteration_count"`   // 0 derives the count from IterationTime
	IterationTime    time.Duration `mapstructure:"iteration_time"`    // time budget for the measured loop
	WarmupIterations int           `mapstructure:"warmup_iterations"` // unmeasured iterations before deriving the count
	Verify           bool          `mapstructure:"verify"`
	Root             int           `mapstructure:"root"` // rank whose warmup minimum is broadcast
	Benchmark        string        `mapstructure:"benchmark"`

	ReportFile  string        `mapstructure:"report_file"`
	MetricsAddr string        `mapstructure:"metrics_addr"`
	LogLevel    string        `mapstructure:"log_level"`
	LogFormat   LogFormat     `mapstructure:"log_format"`
	Tracing     TracingConfig `mapstructure:"tracing"`
	ConfigFile  string        `mapstructure:"-"`
}

// TracingConfig configures OpenTelemetry export. Tracing is off unless an
// endpoint is set here or through OTEL_EXPORTER_OTLP_ENDPOINT.
type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	Protocol    string  `mapstructure:"protocol"` // grpc or http
	Insecure    bool    `mapstructure:"insecure"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

// Enabled reports whether tracing was requested.
func (t TracingConfig) Enabled() bool {
	return strings.TrimSpace(t.Endpoint) != "" || os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != ""
}

// Leader reports whether this participant prints results.
func (c Config) Leader() bool { return c.Rank == 0 }

type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

func (c Config) Validate() error {
	var issues []string

	if c.Size < 1 {
		issues = append(issues, "size must be >= 1")
	}
	if c.Rank < 0 || (c.Size >= 1 && c.Rank >= c.Size) {
		issues = append(issues, fmt.Sprintf("rank must be in [0, size), got %d with size %d", c.Rank, c.Size))
	}
	if c.Root < 0 || (c.Size >= 1 && c.Root >= c.Size) {
		issues = append(issues, fmt.Sprintf("root must be in [0, size), got %d with size %d", c.Root, c.Size))
	}
	if strings.TrimSpace(c.Transport) == "" {
		issues = append(issues, "transport is required")
	}
	if strings.TrimSpace(c.Prefix) == "" {
		issues = append(issues, "prefix is required")
	}
	if c.Elements < 0 {
		issues = append(issues, "elements must be >= 0")
	}
	if c.IterationCount < 0 {
		issues = append(issues, "iteration-count must be >= 0")
	}
	if c.IterationCount == 0 {
		if c.IterationTime <= 0 {
			issues = append(issues, "iteration-time must be > 0 when iteration-count is not set")
		}
		if c.WarmupIterations < 1 {
			issues = append(issues, "warmup-iterations must be >= 1 when iteration-count is not set")
		}
	}
	if c.WarmupIterations < 0 {
		issues = append(issues, "warmup-iterations must be >= 0")
	}
	if strings.TrimSpace(c.Benchmark) == "" {
		issues = append(issues, "benchmark is required")
	}

	issues = append(issues, validateStore(c)...)
	issues = append(issues, validateLogging(c)...)
	issues = append(issues, validateTracing(c.Tracing)...)

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}

func validateStore(c Config) []string {
	var issues []string
	if c.StoreKeyTTL < 0 {
		issues = append(issues, fmt.Sprintf("store-key-ttl must be >= 0, got %s", c.StoreKeyTTL))
	}
	switch c.Store {
	case StoreRedis:
		if strings.TrimSpace(c.RedisHost) == "" {
			issues = append(issues, "redis-host is required for the redis store")
		}
		if c.RedisPort <= 0 || c.RedisPort > 65535 {
			issues = append(issues, fmt.Sprintf("redis-port must be in 1..65535, got %d", c.RedisPort))
		}
		if c.RedisDB < 0 {
			issues = append(issues, fmt.Sprintf("redis-db must be >= 0, got %d", c.RedisDB))
		}
	case StoreFile:
		if strings.TrimSpace(c.StorePath) == "" {
			issues = append(issues, "store-path is required for the file store")
		}
	default:
		issues = append(issues, fmt.Sprintf("store must be 'redis' or 'file', got %q", c.Store))
	}
	return issues
}

func validateLogging(c Config) []string {
	var issues []string
	switch strings.ToLower(c.LogLevel) {
	case "", "trace", "debug", "info", "warn", "error", "disabled":
	default:
		issues = append(issues, fmt.Sprintf("log-level %q is not supported", c.LogLevel))
	}
	switch c.LogFormat {
	case "", LogFormatConsole, LogFormatJSON:
	default:
		issues = append(issues, fmt.Sprintf("log-format must be 'console' or 'json', got %q", c.LogFormat))
	}
	return issues
}

func validateTracing(t TracingConfig) []string {
	var issues []string
	switch strings.ToLower(t.Protocol) {
	case "", "grpc", "http":
	default:
		issues = append(issues, fmt.Sprintf("tracing: protocol must be 'grpc' or 'http', got %q", t.Protocol))
	}
	if t.SampleRate < 0 || t.SampleRate > 1 {
		issues = append(issues, fmt.Sprintf("tracing: sample_rate must be between 0.0 and 1.0, got %g", t.SampleRate))
	}
	return issues
}
