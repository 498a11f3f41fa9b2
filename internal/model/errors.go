package model

import (
	"errors"
	"fmt"
)

// ValidationError reports unusable input: a single row, or a whole batch
// when Row is negative.
type ValidationError struct {
	Row    int
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Row < 0 {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: row %d: %s", e.Row, e.Reason)
}

// NewBatchValidationError reports a failure that makes the whole batch unusable.
func NewBatchValidationError(reason string) *ValidationError {
	return &ValidationError{Row: -1, Reason: reason}
}

// ConfigError reports an invalid weight, rule or pipeline configuration.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "config: " + e.Reason
}

// NewConfigError formats a ConfigError.
func NewConfigError(format string, args ...any) *ConfigError {
	return &ConfigError{Reason: fmt.Sprintf(format, args...)}
}

// IsValidationError reports whether err wraps a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsConfigError reports whether err wraps a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
