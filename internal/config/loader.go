package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Loader handles loading configuration from files and command-line arguments.
type Loader struct{}

// ErrHelpRequested is returned when the user requests help via --help flag.
var ErrHelpRequested = errors.New("help requested")

// NewLoader creates a new configuration Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Default returns a Config populated with the built-in defaults.
func Default() *Config {
	return &Config{
		Size:             1,
		Transport:        DefaultTransport,
		Store:            StoreRedis,
		RedisHost:        DefaultRedisHost,
		RedisPort:        DefaultRedisPort,
		Prefix:           DefaultPrefix,
		IterationTime:    DefaultIterationTime,
		WarmupIterations: DefaultWarmupIterations,
		Benchmark:        DefaultBenchmark,
		LogLevel:         DefaultLogLevel,
		LogFormat:        LogFormatConsole,
		Tracing:          TracingConfig{SampleRate: 1},
	}
}

// Load parses command-line arguments and configuration files to produce a Config.
// Flags override values read from the config file.
func (Loader) Load(args []string) (*Config, error) {
	cmd := newFlagCommand()
	if err := cmd.Flags().Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
		return nil, err
	}

	flagSet := cmd.Flags()
	if helpFlag := flagSet.Lookup("help"); helpFlag != nil {
		if wantsHelp, err := strconv.ParseBool(helpFlag.Value.String()); err == nil && wantsHelp {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
	}

	configPath := flagSet.Lookup("config").Value.String()
	cfgViper := viper.New()
	if configPath != "" {
		cfgViper.SetConfigFile(configPath)
		if err := cfgViper.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	cfg := Default()
	cfg.ConfigFile = configPath

	if err := applyConfigSettings(cfg, cfgViper.AllSettings()); err != nil {
		return nil, err
	}
	if err := applyFlagOverrides(cfg, flagSet); err != nil {
		return nil, err
	}

	cfg.Transport = strings.ToLower(strings.TrimSpace(cfg.Transport))
	cfg.Store = StoreKind(strings.ToLower(strings.TrimSpace(string(cfg.Store))))
	cfg.Benchmark = strings.TrimSpace(cfg.Benchmark)
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.LogFormat = LogFormat(strings.ToLower(strings.TrimSpace(string(cfg.LogFormat))))

	return cfg, nil
}

// applyConfigSettings applies settings from a config file to the Config struct.
func applyConfigSettings(cfg *Config, settings map[string]interface{}) error {
	if len(settings) == 0 {
		return nil
	}

	intSettings := []struct {
		dst  *int
		keys []string
	}{
		{&cfg.Rank, []string{"rank"}},
		{&cfg.Size, []string{"size"}},
		{&cfg.RedisPort, []string{"redis_port", "redisport", "redis-port"}},
		{&cfg.RedisDB, []string{"redis_db", "redisdb", "redis-db"}},
		{&cfg.Elements, []string{"elements"}},
		{&cfg.IterationCount, []string{"iteration_count", "iterationcount", "iteration-count"}},
		{&cfg.WarmupIterations, []string{"warmup_iterations", "warmupiterations", "warmup-iterations"}},
		{&cfg.Root, []string{"root"}},
	}
	for _, s := range intSettings {
		raw, ok := lookupSetting(settings, s.keys...)
		if !ok {
			continue
		}
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", s.keys[0], err)
		}
		*s.dst = val
	}

	stringSettings := []struct {
		dst  *string
		keys []string
	}{
		{&cfg.Transport, []string{"transport"}},
		{&cfg.Hostname, []string{"hostname"}},
		{&cfg.RedisHost, []string{"redis_host", "redishost", "redis-host"}},
		{&cfg.RedisPassword, []string{"redis_password", "redispassword", "redis-password"}},
		{&cfg.StorePath, []string{"store_path", "storepath", "store-path"}},
		{&cfg.Prefix, []string{"prefix"}},
		{&cfg.Benchmark, []string{"benchmark"}},
		{&cfg.ReportFile, []string{"report_file", "reportfile", "report-file"}},
		{&cfg.MetricsAddr, []string{"metrics_addr", "metricsaddr", "metrics-addr"}},
		{&cfg.LogLevel, []string{"log_level", "loglevel", "log-level"}},
	}
	for _, s := range stringSettings {
		raw, ok := lookupSetting(settings, s.keys...)
		if !ok {
			continue
		}
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", s.keys[0], err)
		}
		*s.dst = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "store"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("store: %w", err)
		}
		cfg.Store = StoreKind(val)
	}

	if raw, ok := lookupSetting(settings, "log_format", "logformat", "log-format"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("log_format: %w", err)
		}
		cfg.LogFormat = LogFormat(val)
	}

	if raw, ok := lookupSetting(settings, "iteration_time", "iterationtime", "iteration-time"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("iteration_time: %w", err)
		}
		cfg.IterationTime = dur
	}

	if raw, ok := lookupSetting(settings, "store_key_ttl", "storekeyttl", "store-key-ttl"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("store_key_ttl: %w", err)
		}
		cfg.StoreKeyTTL = dur
	}

	if raw, ok := lookupSetting(settings, "verify"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("verify: %w", err)
		}
		cfg.Verify = val
	}

	if raw, ok := lookupSetting(settings, "tracing"); ok {
		tracing, err := parseTracing(raw)
		if err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
		cfg.Tracing = tracing
	}

	return nil
}

func parseTracing(value interface{}) (TracingConfig, error) {
	settings, err := toStringKeyMap(value)
	if err != nil {
		return TracingConfig{}, err
	}
	var tc TracingConfig
	if raw, ok := lookupSetting(settings, "endpoint"); ok {
		if tc.Endpoint, err = asString(raw); err != nil {
			return tc, fmt.Errorf("endpoint: %w", err)
		}
	}
	if raw, ok := lookupSetting(settings, "protocol"); ok {
		if tc.Protocol, err = asString(raw); err != nil {
			return tc, fmt.Errorf("protocol: %w", err)
		}
	}
	if raw, ok := lookupSetting(settings, "insecure"); ok {
		if tc.Insecure, err = asBool(raw); err != nil {
			return tc, fmt.Errorf("insecure: %w", err)
		}
	}
	if raw, ok := lookupSetting(settings, "service_name", "servicename", "service-name"); ok {
		if tc.ServiceName, err = asString(raw); err != nil {
			return tc, fmt.Errorf("service_name: %w", err)
		}
	}
	if raw, ok := lookupSetting(settings, "sample_rate", "samplerate", "sample-rate"); ok {
		if tc.SampleRate, err = asFloat64(raw); err != nil {
			return tc, fmt.Errorf("sample_rate: %w", err)
		}
	} else {
		tc.SampleRate = 1
	}
	return tc, nil
}
