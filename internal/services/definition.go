package services

import (
	"slices"

	"tether/internal/api"
)

// Dependency is an edge from a dependent to the service it needs.
//
// A required dependency must be registered and UP before the dependent may
// start. An optional dependency is ignored while it is not registered; once it
// is registered it gates the dependent exactly like a required one.
type Dependency struct {
	Name     api.ServiceName
	Optional bool
	Inject   Injector
}

// Required returns a required dependency on name.
func Required(name api.ServiceName) Dependency {
	return Dependency{Name: name}
}

// Optional returns an optional dependency on name.
func Optional(name api.ServiceName) Dependency {
	return Dependency{Name: name, Optional: true}
}

// WithInject returns a copy of d that injects the dependency value via fn.
func (d Dependency) WithInject(fn Injector) Dependency {
	d.Inject = fn
	return d
}

// Definition describes a service at registration time. Once installed only
// the mode can change; everything else is fixed until the service is removed.
type Definition struct {
	Name         api.ServiceName
	Behavior     Behavior
	Dependencies []Dependency
	Mode         api.Mode
	Listeners    []Listener
}

// Validate checks the structural rules the registry enforces before
// installing a definition.
func (d Definition) Validate() error {
	if d.Name.IsZero() {
		return &api.InvalidDefinitionError{Reason: "service name is empty"}
	}
	if d.Behavior == nil {
		return &api.InvalidDefinitionError{Name: d.Name, Reason: "behavior is nil"}
	}
	if d.Mode == api.ModeRemove {
		return &api.InvalidDefinitionError{Name: d.Name, Reason: "initial mode cannot be REMOVE"}
	}
	for _, dep := range d.Dependencies {
		if dep.Name.IsZero() {
			return &api.InvalidDefinitionError{Name: d.Name, Reason: "dependency name is empty"}
		}
		if dep.Name == d.Name {
			return &api.InvalidDefinitionError{Name: d.Name, Reason: "service depends on itself"}
		}
	}
	return nil
}

// DependencyNames returns the names of all dependencies in declaration order,
// duplicates removed.
func (d Definition) DependencyNames() []api.ServiceName {
	names := make([]api.ServiceName, 0, len(d.Dependencies))
	for _, dep := range d.Dependencies {
		if !slices.Contains(names, dep.Name) {
			names = append(names, dep.Name)
		}
	}
	return names
}

// Clone returns a copy that does not share slices with d.
func (d Definition) Clone() Definition {
	d.Dependencies = slices.Clone(d.Dependencies)
	d.Listeners = slices.Clone(d.Listeners)
	return d
}
