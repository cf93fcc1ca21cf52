package api

import (
	"errors"
	"fmt"
	"strings"
)

// NotFoundError represents a resource not found error with contextual information.
// This standardized error type provides consistent error handling across the
// registry for cases where requested services don't exist.
type NotFoundError struct {
	// ResourceType categorizes the type of resource that was not found
	// (e.g., "service", "unit")
	ResourceType string

	// ResourceName is the specific identifier of the resource that was not found
	ResourceName string

	// Message provides a custom error message if the default format is insufficient
	Message string
}

// Error implements the error interface for NotFoundError.
// Returns either the custom message if provided, or a formatted default message
// using the resource type and name.
func (e *NotFoundError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s %s not found", e.ResourceType, e.ResourceName)
}

// IsNotFound checks if an error is a NotFoundError using error unwrapping.
//
// Example:
//
//	ctrl, err := orch.Lookup(name)
//	if api.IsNotFound(err) {
//	    // register it first
//	}
func IsNotFound(err error) bool {
	var notFoundErr *NotFoundError
	return errors.As(err, &notFoundErr)
}

// NewNotFoundError creates a new NotFoundError with the specified resource type and name.
func NewNotFoundError(resourceType, resourceName string) *NotFoundError {
	return &NotFoundError{
		ResourceType: resourceType,
		ResourceName: resourceName,
	}
}

// NewServiceNotFoundError creates a service not found error.
func NewServiceNotFoundError(name ServiceName) *NotFoundError {
	return NewNotFoundError("service", name.String())
}

// DuplicateNameError is returned when a service is registered under a name
// that is already in use.
type DuplicateNameError struct {
	Name ServiceName
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("service %s is already registered", e.Name)
}

// IsDuplicateName checks if an error is a DuplicateNameError.
func IsDuplicateName(err error) bool {
	var dupErr *DuplicateNameError
	return errors.As(err, &dupErr)
}

// IllegalStateError is returned when an operation needs the service to be in a
// different state, e.g. reading the value of a service that is not UP.
type IllegalStateError struct {
	Name      ServiceName
	State     State
	Operation string
}

func (e *IllegalStateError) Error() string {
	return fmt.Sprintf("cannot %s service %s in state %s", e.Operation, e.Name, e.State)
}

// IsIllegalState checks if an error is an IllegalStateError.
func IsIllegalState(err error) bool {
	var stateErr *IllegalStateError
	return errors.As(err, &stateErr)
}

// InvalidDefinitionError is returned for definitions the registry refuses to
// install (empty name, missing behavior, self dependency).
type InvalidDefinitionError struct {
	Name   ServiceName
	Reason string
}

func (e *InvalidDefinitionError) Error() string {
	if e.Name.IsZero() {
		return fmt.Sprintf("invalid service definition: %s", e.Reason)
	}
	return fmt.Sprintf("invalid service definition %s: %s", e.Name, e.Reason)
}

// CycleError is returned when registering a service would close a dependency
// cycle. Path lists the cycle starting and ending at the same name.
type CycleError struct {
	Path []ServiceName
}

func (e *CycleError) Error() string {
	parts := make([]string, len(e.Path))
	for i, n := range e.Path {
		parts[i] = n.String()
	}
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(parts, " -> "))
}

// IsCycle checks if an error is a CycleError.
func IsCycle(err error) bool {
	var cycleErr *CycleError
	return errors.As(err, &cycleErr)
}

// ErrShutdown is returned by registry mutations after Shutdown was called.
var ErrShutdown = errors.New("service registry is shut down")
