package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"tether/internal/pipeline"
	"tether/internal/template"
	"tether/pkg/logging"
)

// ValidateIdentifier reports pipeline.ErrInvalidIdentifier for identifiers
// that cannot name a manifest file.
func ValidateIdentifier(id string) error {
	if !identifierPattern.MatchString(id) || strings.Contains(id, "..") {
		return fmt.Errorf("%w: %q", pipeline.ErrInvalidIdentifier, id)
	}
	return nil
}

// Repository installs units from a directory of manifests.
type Repository struct {
	dir       string
	templates *template.Engine
}

// New returns a repository rooted at dir. The directory must exist.
func New(dir string) (*Repository, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve repository path %s: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to open repository: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("repository path %s is not a directory", abs)
	}
	return &Repository{dir: abs, templates: template.New()}, nil
}

// Dir returns the repository directory.
func (r *Repository) Dir() string {
	return r.dir
}

// Install implements pipeline.Installer.
func (r *Repository) Install(ctx context.Context, identifier string) (*pipeline.Unit, error) {
	if err := ValidateIdentifier(identifier); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, data, err := r.read(identifier)
	if err != nil {
		return nil, err
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if m.Identifier != identifier {
		return nil, fmt.Errorf("%s declares identifier %q, expected %q", path, m.Identifier, identifier)
	}

	unit := &pipeline.Unit{
		Identifier: m.Identifier,
		Version:    m.Version,
		StartLevel: m.StartLevel,
		Location:   path,
		Requires:   slices.Clone(m.Requires),
		Provides:   slices.Clone(m.Provides),
	}
	if m.Activator != nil {
		spec, err := renderActivator(r.templates, m, path, r.dir)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		unit.Activator = NewExecActivator(m.Identifier, r.dir, spec)
	}
	logging.Debug("Repository", "Loaded manifest %s", path)
	return unit, nil
}

func (r *Repository) read(identifier string) (string, []byte, error) {
	for _, ext := range []string{".yaml", ".yml"} {
		path := filepath.Join(r.dir, identifier+ext)
		data, err := os.ReadFile(path)
		if err == nil {
			return path, data, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
		}
	}
	return "", nil, fmt.Errorf("%w: %s in %s", pipeline.ErrUnitNotFound, identifier, r.dir)
}

// List returns the identifiers of every manifest file in the repository,
// sorted. Files whose name is not a valid identifier are skipped.
func (r *Repository) List() ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list repository: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() || !isManifestFile(e.Name()) {
			continue
		}
		id := identifierFromPath(e.Name())
		if ValidateIdentifier(id) != nil || slices.Contains(ids, id) {
			continue
		}
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

func isManifestFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func identifierFromPath(path string) string {
	name := filepath.Base(path)
	return name[:len(name)-len(filepath.Ext(name))]
}
