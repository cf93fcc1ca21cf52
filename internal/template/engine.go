package template

import (
	"fmt"
	"slices"
	"strings"
	texttemplate "text/template"

	"github.com/Masterminds/sprig/v3"
)

// Engine renders activator arguments written as Go templates, with the sprig
// function library available.
type Engine struct {
	funcs texttemplate.FuncMap
}

// New creates a new template engine
func New() *Engine {
	return &Engine{funcs: sprig.TxtFuncMap()}
}

// Replace renders a single value. Values without template actions are
// returned unchanged; unknown keys are an error.
func (e *Engine) Replace(value string, data Context) (string, error) {
	if !strings.Contains(value, "{{") {
		return value, nil
	}
	tmpl, err := texttemplate.New("value").
		Funcs(e.funcs).
		Option("missingkey=error").
		Parse(value)
	if err != nil {
		return "", fmt.Errorf("invalid template %q: %w", value, err)
	}
	var out strings.Builder
	if err := tmpl.Execute(&out, data); err != nil {
		return "", fmt.Errorf("failed to render %q: %w", value, err)
	}
	return out.String(), nil
}

// ReplaceAll renders every element of values.
func (e *Engine) ReplaceAll(values []string, data Context) ([]string, error) {
	if values == nil {
		return nil, nil
	}
	result := make([]string, len(values))
	for i, v := range values {
		r, err := e.Replace(v, data)
		if err != nil {
			return nil, fmt.Errorf("error at index %d: %w", i, err)
		}
		result[i] = r
	}
	return result, nil
}

// ReplaceEnv renders the values of env. Keys are taken literally.
func (e *Engine) ReplaceEnv(env map[string]string, data Context) (map[string]string, error) {
	if env == nil {
		return nil, nil
	}
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	result := make(map[string]string, len(env))
	for _, k := range keys {
		r, err := e.Replace(env[k], data)
		if err != nil {
			return nil, fmt.Errorf("error in key '%s': %w", k, err)
		}
		result[k] = r
	}
	return result, nil
}
