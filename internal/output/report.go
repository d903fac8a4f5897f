package output

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"gopkg.in/yaml.v3"

	"github.com/torosent/collbench/internal/metrics"
)

// Report is the machine-readable record of one invocation.
type Report struct {
	RunID     string            `json:"run_id" yaml:"run_id"`
	Started   time.Time         `json:"started" yaml:"started"`
	Finished  time.Time         `json:"finished" yaml:"finished"`
	Benchmark string            `json:"benchmark" yaml:"benchmark"`
	Transport string            `json:"transport" yaml:"transport"`
	Size      int               `json:"size" yaml:"size"`
	Verified  bool              `json:"verified" yaml:"verified"`
	Results   []metrics.Summary `json:"results" yaml:"results"`
}

// NewReport stamps a report with a fresh ULID derived from started.
func NewReport(started time.Time, benchmark, transport string, size int) *Report {
	id := ulid.MustNew(ulid.Timestamp(started), rand.Reader)
	return &Report{
		RunID:     id.String(),
		Started:   started.UTC(),
		Benchmark: benchmark,
		Transport: transport,
		Size:      size,
	}
}

// PrintJSONReport outputs a JSON-formatted report.
func PrintJSONReport(w io.Writer, r *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// PrintYAMLReport outputs a YAML-formatted report.
func PrintYAMLReport(w io.Writer, r *Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return err
	}
	return enc.Close()
}

// WriteReport writes r to path, choosing JSON, YAML or HTML by file
// extension.
func WriteReport(path string, r *Report) error {
	var encode func(io.Writer, *Report) error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		encode = PrintJSONReport
	case ".yaml", ".yml":
		encode = PrintYAMLReport
	case ".html", ".htm":
		encode = PrintHTMLReport
	default:
		return fmt.Errorf("report: unsupported extension %q (use .json, .yaml, .yml or .html)", filepath.Ext(path))
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("report: %w", err)
	}
	if err := encode(f, r); err != nil {
		f.Close()
		return fmt.Errorf("report: %w", err)
	}
	return f.Close()
}
