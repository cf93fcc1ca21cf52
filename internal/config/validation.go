package config

import (
	"fmt"
	"net"
	"strings"

	"tether/internal/api"
)

// ValidationError represents a validation error with context
type ValidationError struct {
	Field      string
	Value      interface{}
	Message    string
	Suggestion string
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("field '%s': %s", ve.Field, ve.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for multiple validation errors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}

	var messages []string
	for _, err := range ve {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// HasErrors returns true if there are any validation errors
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// Add adds a new validation error
func (ve *ValidationErrors) Add(field, message string, value ...interface{}) {
	var val interface{}
	if len(value) > 0 {
		val = value[0]
	}
	*ve = append(*ve, ValidationError{
		Field:   field,
		Value:   val,
		Message: message,
	})
}

// addErr appends err if it is a ValidationError.
func (ve *ValidationErrors) addErr(err error) {
	if err == nil {
		return
	}
	if v, ok := err.(ValidationError); ok {
		*ve = append(*ve, v)
		return
	}
	ve.Add("", err.Error())
}

// ValidateRequired checks if a required string field is not empty
func ValidateRequired(field, value, entityType string) error {
	if strings.TrimSpace(value) == "" {
		return ValidationError{
			Field:   field,
			Value:   value,
			Message: fmt.Sprintf("is required for %s", entityType),
		}
	}
	return nil
}

// ValidateOneOf checks if a value is in a list of allowed values
func ValidateOneOf(field, value string, allowed []string) error {
	for _, allowedValue := range allowed {
		if value == allowedValue {
			return nil
		}
	}
	return ValidationError{
		Field:      field,
		Value:      value,
		Message:    fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")),
		Suggestion: fmt.Sprintf("set %s to one of %s", field, strings.Join(allowed, ", ")),
	}
}

// ValidateNonNegative checks that a number is not below zero.
func ValidateNonNegative[T int | int64](field string, value T) error {
	if value < 0 {
		return ValidationError{Field: field, Value: value, Message: "must not be negative"}
	}
	return nil
}

// Validate checks the whole configuration and returns ValidationErrors when
// anything is wrong.
func (c *TetherConfig) Validate() error {
	var errs ValidationErrors

	errs.addErr(ValidateOneOf("logging.level", c.Logging.Level, []string{"debug", "info", "warn", "error"}))
	errs.addErr(ValidateOneOf("logging.format", c.Logging.Format, []string{"text", "json"}))

	if c.Registry.Workers < 1 {
		errs.Add("registry.workers", "must be at least 1", c.Registry.Workers)
	}
	errs.addErr(ValidateOneOf("registry.cyclePolicy", c.Registry.CyclePolicy, []string{"reject", "allow"}))

	errs.addErr(ValidateNonNegative("timeouts.install", int64(c.Timeouts.Install)))
	errs.addErr(ValidateNonNegative("timeouts.resolve", int64(c.Timeouts.Resolve)))
	errs.addErr(ValidateNonNegative("timeouts.activate", int64(c.Timeouts.Activate)))
	errs.addErr(ValidateNonNegative("timeouts.unit", int64(c.Timeouts.Unit)))
	errs.addErr(ValidateNonNegative("timeouts.shutdown", int64(c.Timeouts.Shutdown)))

	errs.addErr(ValidateRequired("repository.path", c.Repository.Path, "the unit repository"))
	errs.addErr(ValidateNonNegative("repository.debounce", int64(c.Repository.Debounce)))

	if c.Metrics.Address != "" {
		if _, _, err := net.SplitHostPort(c.Metrics.Address); err != nil {
			errs = append(errs, ValidationError{
				Field:      "metrics.address",
				Value:      c.Metrics.Address,
				Message:    fmt.Sprintf("is not host:port: %v", err),
				Suggestion: "use a listen address such as 127.0.0.1:9090",
			})
		}
	}

	if _, err := api.ParseServiceName(c.Pipeline.Name); err != nil {
		errs.Add("pipeline.name", err.Error(), c.Pipeline.Name)
	}
	if c.Pipeline.InstallConcurrency < 1 {
		errs.Add("pipeline.installConcurrency", "must be at least 1", c.Pipeline.InstallConcurrency)
	}

	seen := make(map[string]bool)
	for i, u := range c.Units {
		field := fmt.Sprintf("units[%d]", i)
		if err := ValidateRequired(field+".identifier", u.Identifier, "a unit"); err != nil {
			errs.addErr(err)
			continue
		}
		if seen[u.Identifier] {
			errs.Add(field+".identifier", fmt.Sprintf("duplicate unit %q", u.Identifier), u.Identifier)
		}
		seen[u.Identifier] = true
		errs.addErr(ValidateNonNegative(field+".startLevel", u.StartLevel))
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}
