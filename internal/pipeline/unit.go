package pipeline

import (
	"context"
	"errors"
	"fmt"

	"tether/internal/services"
)

// UnitConfig is one configured unit: what to install, at which start level
// and whether to start it eagerly.
type UnitConfig struct {
	Identifier string
	// StartLevel orders activation. Zero keeps the level the installer
	// reported.
	StartLevel int
	AutoStart  bool
}

// Unit is an installed artifact.
type Unit struct {
	Identifier string
	Version    string
	StartLevel int
	AutoStart  bool
	// Location is where the installer found the unit.
	Location string
	// Requires lists capabilities or identifiers this unit needs.
	Requires []string
	// Provides lists capabilities this unit offers besides its identifier.
	Provides []string
	// Activator starts and stops the unit. Nil means the unit has nothing
	// to run.
	Activator services.Behavior
}

func (u *Unit) String() string {
	if u.Version == "" {
		return u.Identifier
	}
	return fmt.Sprintf("%s@%s", u.Identifier, u.Version)
}

// Installer locates and installs units.
type Installer interface {
	// Install returns the installed unit. It fails with ErrUnitNotFound,
	// ErrInvalidIdentifier or an I/O error.
	Install(ctx context.Context, identifier string) (*Unit, error)
}

// Resolution is the outcome of resolving a set of units.
type Resolution struct {
	// Resolved holds the units that can be activated, dependencies first.
	Resolved []*Unit
	// Wires maps an identifier to the identifiers of resolved units it uses.
	Wires map[string][]string
	// Failures maps an identifier to the reason it could not be resolved.
	Failures map[string]error
}

// Resolver decides which installed units can be activated and in which
// order. A returned error is systemic and aborts the resolve phase; per-unit
// problems belong in Resolution.Failures.
type Resolver interface {
	Resolve(ctx context.Context, units []*Unit) (*Resolution, error)
}

var (
	// ErrUnitNotFound is returned by installers for unknown identifiers.
	ErrUnitNotFound = errors.New("unit not found")
	// ErrInvalidIdentifier is returned by installers for malformed identifiers.
	ErrInvalidIdentifier = errors.New("invalid unit identifier")
	// ErrNoUnitsInstalled fails the install phase when units are required.
	ErrNoUnitsInstalled = errors.New("no units installed")
	// ErrAlreadyDeployed is returned by Deploy for a unit that is deployed.
	ErrAlreadyDeployed = errors.New("unit already deployed")
	// ErrNotDeployed is returned by Undeploy for a unit that is not deployed.
	ErrNotDeployed = errors.New("unit not deployed")
)

// ResolutionError wraps a systemic resolver failure.
type ResolutionError struct {
	Err error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolution failed: %v", e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// StartError is the failure of a whole phase. It is what the phase service
// fails with and what Run returns.
type StartError struct {
	Phase Phase
	Err   error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("%s phase failed: %v", e.Phase, e.Err)
}

func (e *StartError) Unwrap() error {
	return e.Err
}

// unitBehavior runs the unit's activator and produces the unit itself.
type unitBehavior struct {
	unit *Unit
}

func (b unitBehavior) Start(ctx context.Context, sc *services.StartContext) error {
	if b.unit.Activator == nil {
		return nil
	}
	return b.unit.Activator.Start(ctx, sc)
}

func (b unitBehavior) Stop(ctx context.Context) error {
	if b.unit.Activator == nil {
		return nil
	}
	return b.unit.Activator.Stop(ctx)
}

func (b unitBehavior) Value() any {
	return b.unit
}
