package formatting

import (
	"encoding/json"
	"io"

	"tether/internal/orchestrator"
	"tether/internal/pipeline"
)

// JSONFormatter provides structured JSON output formatting
type JSONFormatter struct {
	w io.Writer
}

func (f *JSONFormatter) FormatReport(r *pipeline.Report) error {
	return f.write(NewReportDocument(r))
}

func (f *JSONFormatter) FormatStatuses(statuses []orchestrator.Status) error {
	return f.write(NewStatusDocuments(statuses))
}

func (f *JSONFormatter) FormatUnits(units []*pipeline.Unit) error {
	return f.write(NewManifestDocuments(units))
}

func (f *JSONFormatter) write(v interface{}) error {
	enc := json.NewEncoder(f.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
