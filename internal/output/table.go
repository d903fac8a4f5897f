package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/torosent/collbench/internal/metrics"
)

// ColumnWidth is the width every table column is right-aligned in.
const ColumnWidth = 11

// Columns are the table headings in print order.
var Columns = []string{"elements", "min (us)", "p50 (us)", "p90 (us)", "p99 (us)", "samples"}

// Table prints the fixed-width results table. A disabled table writes
// nothing, so non-leader participants can share the code path.
type Table struct {
	w       io.Writer
	enabled bool
}

func NewTable(w io.Writer, enabled bool) *Table {
	return &Table{w: w, enabled: enabled}
}

// Header prints the column headings.
func (t *Table) Header() error {
	if !t.enabled {
		return nil
	}
	cells := make([]string, len(Columns))
	for i, c := range Columns {
		cells[i] = fmt.Sprintf("%*s", ColumnWidth, c)
	}
	_, err := fmt.Fprintln(t.w, strings.Join(cells, ""))
	return err
}

// Row prints one summary. Latencies are truncated to whole microseconds.
func (t *Table) Row(s metrics.Summary) error {
	if !t.enabled {
		return nil
	}
	_, err := fmt.Fprintf(t.w, "%*d%*d%*d%*d%*d%*d\n",
		ColumnWidth, s.Elements,
		ColumnWidth, wholeMicros(s.Min),
		ColumnWidth, wholeMicros(s.P50),
		ColumnWidth, wholeMicros(s.P90),
		ColumnWidth, wholeMicros(s.P99),
		ColumnWidth, s.Samples,
	)
	return err
}

func wholeMicros(d time.Duration) int64 {
	return int64(d / time.Microsecond)
}
