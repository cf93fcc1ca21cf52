package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Error types of a ConfigurationError.
const (
	ErrorTypeIO         = "io"
	ErrorTypeParse      = "parse"
	ErrorTypeValidation = "validation"
)

// yamlLinePattern extracts the line number from yaml.v3 error messages.
var yamlLinePattern = regexp.MustCompile(`line (\d+)`)

// ConfigurationError represents a structured error that occurs during configuration loading
type ConfigurationError struct {
	FilePath    string   // Full path to the file that caused the error
	FileName    string   // Base name of the file
	ErrorType   string   // io, parse or validation
	Message     string   // Human-readable error message
	LineNumber  int      // Line number where error occurred (if available)
	Suggestions []string // Actionable suggestions to fix the error
	Err         error
}

// NewConfigurationError wraps err with the file it came from.
func NewConfigurationError(filePath, errorType string, err error) *ConfigurationError {
	ce := &ConfigurationError{
		FilePath:  filePath,
		FileName:  filepath.Base(filePath),
		ErrorType: errorType,
		Message:   err.Error(),
		Err:       err,
	}
	switch errorType {
	case ErrorTypeParse:
		if m := yamlLinePattern.FindStringSubmatch(err.Error()); m != nil {
			ce.LineNumber, _ = strconv.Atoi(m[1])
		}
		ce.Suggestions = append(ce.Suggestions, "check the YAML syntax and indentation")
	case ErrorTypeValidation:
		var ve ValidationErrors
		if errors.As(err, &ve) {
			for _, v := range ve {
				if v.Suggestion != "" {
					ce.Suggestions = append(ce.Suggestions, v.Suggestion)
				}
			}
		}
	}
	return ce
}

// Error implements the error interface
func (ce *ConfigurationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", ce.ErrorType, ce.FileName, ce.Message)
}

func (ce *ConfigurationError) Unwrap() error {
	return ce.Err
}

// DetailedError returns a detailed error message with all context
func (ce *ConfigurationError) DetailedError() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("Configuration Error in %s", ce.FileName))
	parts = append(parts, fmt.Sprintf("  File: %s", ce.FilePath))
	parts = append(parts, fmt.Sprintf("  Type: %s", ce.ErrorType))

	if ce.LineNumber > 0 {
		parts = append(parts, fmt.Sprintf("  Line: %d", ce.LineNumber))
	}

	parts = append(parts, fmt.Sprintf("  Error: %s", ce.Message))

	if len(ce.Suggestions) > 0 {
		parts = append(parts, "  Suggestions:")
		for _, suggestion := range ce.Suggestions {
			parts = append(parts, fmt.Sprintf("    - %s", suggestion))
		}
	}

	return strings.Join(parts, "\n")
}
