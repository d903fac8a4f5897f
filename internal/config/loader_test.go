package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestAsString(t *testing.T) {
	tests := []struct {
		input interface{}
		want  string
	}{
		{"hello", "hello"},
		{123, "123"},
		{true, "true"},
		{nil, ""},
		{[]byte("bytes"), "bytes"},
	}

	for _, tt := range tests {
		got, err := asString(tt.input)
		if err != nil {
			t.Errorf("asString(%v) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("asString(%v) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestAsInt(t *testing.T) {
	tests := []struct {
		input interface{}
		want  int
	}{
		{123, 123},
		{"456", 456},
		{int64(789), 789},
		{float64(10.0), 10},
		{nil, 0},
	}

	for _, tt := range tests {
		got, err := asInt(tt.input)
		if err != nil {
			t.Errorf("asInt(%v) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("asInt(%v) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestAsBool(t *testing.T) {
	tests := []struct {
		input interface{}
		want  bool
	}{
		{true, true},
		{"true", true},
		{"1", true},
		{false, false},
		{"false", false},
		{"0", false},
		{nil, false},
	}

	for _, tt := range tests {
		got, err := asBool(tt.input)
		if err != nil {
			t.Errorf("asBool(%v) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("asBool(%v) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestAsDuration(t *testing.T) {
	tests := []struct {
		input interface{}
		want  time.Duration
	}{
		{time.Second, time.Second},
		{"1m", time.Minute},
		{10, 10 * time.Second}, // int treated as seconds
		{nil, 0},
	}

	for _, tt := range tests {
		got, err := asDuration(tt.input)
		if err != nil {
			t.Errorf("asDuration(%v) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("asDuration(%v) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestApplyConfigSettings(t *testing.T) {
	cfg := Default()
	settings := map[string]interface{}{
		"rank":              2,
		"size":              "4",
		"transport":         "ws",
		"store":             "file",
		"store_path":        "/tmp/rdv",
		"store_key_ttl":     "10m",
		"redis_password":    "s3cret",
		"redis_db":          2,
		"iteration_time":    "500ms",
		"warmup_iterations": 3,
		"verify":            true,
		"tracing": map[string]interface{}{
			"endpoint":    "collector:4317",
			"insecure":    "true",
			"sample_rate": 0.25,
		},
	}

	if err := applyConfigSettings(cfg, settings); err != nil {
		t.Fatalf("applyConfigSettings() error = %v", err)
	}

	if cfg.Rank != 2 || cfg.Size != 4 {
		t.Errorf("rank/size = %d/%d, want 2/4", cfg.Rank, cfg.Size)
	}
	if cfg.Transport != "ws" {
		t.Errorf("Transport = %q, want ws", cfg.Transport)
	}
	if cfg.Store != StoreFile || cfg.StorePath != "/tmp/rdv" {
		t.Errorf("Store = %q path %q, want file /tmp/rdv", cfg.Store, cfg.StorePath)
	}
	if cfg.StoreKeyTTL != 10*time.Minute {
		t.Errorf("StoreKeyTTL = %v, want 10m", cfg.StoreKeyTTL)
	}
	if cfg.RedisPassword != "s3cret" || cfg.RedisDB != 2 {
		t.Errorf("redis password/db = %q/%d, want s3cret/2", cfg.RedisPassword, cfg.RedisDB)
	}
	if cfg.IterationTime != 500*time.Millisecond {
		t.Errorf("IterationTime = %v, want 500ms", cfg.IterationTime)
	}
	if cfg.WarmupIterations != 3 {
		t.Errorf("WarmupIterations = %d, want 3", cfg.WarmupIterations)
	}
	if !cfg.Verify {
		t.Error("Verify = false, want true")
	}
	if cfg.Tracing.Endpoint != "collector:4317" || !cfg.Tracing.Insecure || cfg.Tracing.SampleRate != 0.25 {
		t.Errorf("unexpected tracing config %+v", cfg.Tracing)
	}
	if cfg.RedisPort != DefaultRedisPort {
		t.Errorf("RedisPort = %d, want default %d", cfg.RedisPort, DefaultRedisPort)
	}
}

func TestApplyConfigSettingsRejectsBadTypes(t *testing.T) {
	cfg := Default()
	err := applyConfigSettings(cfg, map[string]interface{}{"size": []string{"x"}})
	if err == nil || !strings.Contains(err.Error(), "size") {
		t.Fatalf("expected size error, got %v", err)
	}
}

func TestApplyFlagOverrides(t *testing.T) {
	cfg := Default()
	cfg.Prefix = "from-file"

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	configureFlags(fs)

	args := []string{
		"--rank=1",
		"--size=3",
		"--iteration-count=100",
		"--transport=loopback",
		"--tracing-sample-rate=0.5",
		"--store-key-ttl=90s",
		"--redis-password=pw",
		"--redis-db=3",
	}
	if err := fs.Parse(args); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if err := applyFlagOverrides(cfg, fs); err != nil {
		t.Fatalf("applyFlagOverrides() error = %v", err)
	}

	if cfg.Rank != 1 || cfg.Size != 3 {
		t.Errorf("rank/size = %d/%d, want 1/3", cfg.Rank, cfg.Size)
	}
	if cfg.IterationCount != 100 {
		t.Errorf("IterationCount = %d, want 100", cfg.IterationCount)
	}
	if cfg.Transport != "loopback" {
		t.Errorf("Transport = %q, want loopback", cfg.Transport)
	}
	if cfg.Prefix != "from-file" {
		t.Errorf("Prefix = %q, unchanged flags must not override", cfg.Prefix)
	}
	if cfg.Tracing.SampleRate != 0.5 {
		t.Errorf("SampleRate = %v, want 0.5", cfg.Tracing.SampleRate)
	}
	if cfg.StoreKeyTTL != 90*time.Second {
		t.Errorf("StoreKeyTTL = %v, want 90s", cfg.StoreKeyTTL)
	}
	if cfg.RedisPassword != "pw" || cfg.RedisDB != 3 {
		t.Errorf("redis password/db = %q/%d, want pw/3", cfg.RedisPassword, cfg.RedisDB)
	}
}

func TestLoader_Load(t *testing.T) {
	loader := NewLoader()
	args := []string{
		"--transport=TCP",
		"--store=File",
		"--store-path=/shared",
	}

	cfg, err := loader.Load(args)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Transport != "tcp" {
		t.Errorf("Transport = %q, want normalized tcp", cfg.Transport)
	}
	if cfg.Store != StoreFile {
		t.Errorf("Store = %q, want file", cfg.Store)
	}
}
