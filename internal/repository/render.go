package repository

import (
	"fmt"

	"tether/internal/template"
)

// renderActivator expands the templates in a manifest's activator. Env
// values are rendered first so the commands see the rendered environment.
func renderActivator(e *template.Engine, m *Manifest, path, repo string) (ActivatorSpec, error) {
	spec := *m.Activator
	data := template.Context{
		Unit: template.Unit{
			Identifier: m.Identifier,
			Version:    m.Version,
			StartLevel: m.StartLevel,
			Location:   path,
		},
		Repository: repo,
		Env:        m.Activator.Env,
	}

	env, err := e.ReplaceEnv(spec.Env, data)
	if err != nil {
		return spec, fmt.Errorf("activator env: %w", err)
	}
	spec.Env = env
	data.Env = env

	if spec.Start, err = e.ReplaceAll(spec.Start, data); err != nil {
		return spec, fmt.Errorf("activator start: %w", err)
	}
	if spec.Stop, err = e.ReplaceAll(spec.Stop, data); err != nil {
		return spec, fmt.Errorf("activator stop: %w", err)
	}
	if spec.Dir, err = e.Replace(spec.Dir, data); err != nil {
		return spec, fmt.Errorf("activator dir: %w", err)
	}
	return spec, nil
}
