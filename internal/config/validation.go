package config

import (
	"fmt"
	"strings"
	"time"

	"dcsim/internal/cluster"
	"dcsim/pkg/logging"
)

// ValidationError represents a validation error with context
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
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

// Validate checks the configuration and returns all problems at once.
func (c Config) Validate() error {
	var errs ValidationErrors

	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs.Add("logLevel", err.Error(), c.LogLevel)
	}
	if strings.TrimSpace(c.Prompt) == "" {
		errs.Add("prompt", "is required")
	}
	if err := ValidateOneOf("cluster.preset", c.Cluster.Preset, cluster.PresetNames()); err != nil {
		errs = append(errs, err.(ValidationError))
	}
	if c.Cluster.Nodes < 0 || c.Cluster.Nodes > MaxNodes {
		errs.Add("cluster.nodes", fmt.Sprintf("must be between 0 and %d", MaxNodes), c.Cluster.Nodes)
	}
	if c.Sampler.Enabled && c.Sampler.Interval < MinSamplerInterval {
		errs.Add("sampler.interval", fmt.Sprintf("must be at least %s", MinSamplerInterval), c.Sampler.Interval)
	}
	if c.Persist.Delay < 0 {
		errs.Add("persist.delay", "cannot be negative", c.Persist.Delay)
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

// Limits enforced by Validate.
const (
	MaxNodes           = 64
	MinSamplerInterval = 100 * time.Millisecond
)

// ValidateOneOf checks if a value is in a list of allowed values
func ValidateOneOf(field, value string, allowed []string) error {
	for _, allowedValue := range allowed {
		if value == allowedValue {
			return nil
		}
	}
	return ValidationError{
		Field:   field,
		Value:   value,
		Message: fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")),
	}
}
