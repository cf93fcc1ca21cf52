package formatting

import (
	"io"

	"gopkg.in/yaml.v3"

	"tether/internal/orchestrator"
	"tether/internal/pipeline"
)

// YAMLFormatter provides YAML output formatting
type YAMLFormatter struct {
	w io.Writer
}

func (f *YAMLFormatter) FormatReport(r *pipeline.Report) error {
	return f.write(NewReportDocument(r))
}

func (f *YAMLFormatter) FormatStatuses(statuses []orchestrator.Status) error {
	return f.write(NewStatusDocuments(statuses))
}

func (f *YAMLFormatter) FormatUnits(units []*pipeline.Unit) error {
	return f.write(NewManifestDocuments(units))
}

func (f *YAMLFormatter) write(v interface{}) error {
	enc := yaml.NewEncoder(f.w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
