package repository

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// identifierPattern keeps identifiers usable as file names.
var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// Manifest is the YAML description of a unit, stored as <identifier>.yaml.
type Manifest struct {
	Identifier string   `yaml:"identifier"`
	Version    string   `yaml:"version,omitempty"`
	StartLevel int      `yaml:"startLevel,omitempty"`
	Requires   []string `yaml:"requires,omitempty"`
	Provides   []string `yaml:"provides,omitempty"`

	Activator *ActivatorSpec `yaml:"activator,omitempty"`
}

// ActivatorSpec describes the commands that start and stop a unit.
type ActivatorSpec struct {
	// Start runs when the unit starts. Unless Daemon is set it must exit
	// successfully for the start to succeed.
	Start []string `yaml:"start,omitempty"`
	// Stop runs when the unit stops, after a daemon was terminated.
	Stop []string `yaml:"stop,omitempty"`
	// Daemon keeps the Start process running while the unit is up.
	Daemon bool `yaml:"daemon,omitempty"`
	// Dir is the working directory, relative to the repository.
	Dir string            `yaml:"dir,omitempty"`
	Env map[string]string `yaml:"env,omitempty"`
}

// ParseManifest decodes and validates a manifest.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks the manifest for structural problems.
func (m *Manifest) Validate() error {
	if err := ValidateIdentifier(m.Identifier); err != nil {
		return err
	}
	if m.StartLevel < 0 {
		return fmt.Errorf("unit %s: startLevel must not be negative", m.Identifier)
	}
	for _, r := range m.Requires {
		if strings.TrimSpace(r) == "" {
			return fmt.Errorf("unit %s: empty requirement", m.Identifier)
		}
	}
	for _, p := range m.Provides {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("unit %s: empty capability", m.Identifier)
		}
	}
	if a := m.Activator; a != nil {
		if a.Daemon && len(a.Start) == 0 {
			return fmt.Errorf("unit %s: daemon activator needs a start command", m.Identifier)
		}
	}
	return nil
}
