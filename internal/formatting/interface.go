// Package formatting renders pipeline reports and registry statuses for the
// CLI as tables, JSON or YAML.
package formatting

import (
	"fmt"
	"io"
	"strings"

	"tether/internal/orchestrator"
	"tether/internal/pipeline"
)

// OutputFormat represents the desired output format
type OutputFormat string

const (
	FormatTable OutputFormat = "table" // Rich table output
	FormatJSON  OutputFormat = "json"  // JSON output
	FormatYAML  OutputFormat = "yaml"  // YAML output
)

// ParseFormat converts a --output value to an OutputFormat.
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatTable:
		return FormatTable, nil
	case FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want table, json or yaml)", s)
	}
}

// Options configures the formatter behavior
type Options struct {
	Format OutputFormat
	Color  bool // Enable colored output; only tables are colored
}

// Formatter renders tether's CLI output.
type Formatter interface {
	FormatReport(r *pipeline.Report) error
	FormatStatuses(statuses []orchestrator.Status) error
	FormatUnits(units []*pipeline.Unit) error
}

// New creates the formatter for options.Format writing to w.
func New(w io.Writer, options Options) Formatter {
	switch options.Format {
	case FormatJSON:
		return &JSONFormatter{w: w}
	case FormatYAML:
		return &YAMLFormatter{w: w}
	default:
		return &TableFormatter{w: w, options: options}
	}
}
