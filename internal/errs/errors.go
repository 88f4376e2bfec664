// Package errs holds the error types shared by the streaming packages.
package errs

import (
	"errors"
	"fmt"
)

// ConfigurationError reports an invalid setting found before streaming starts.
// It is fatal: callers stop startup when they see it.
type ConfigurationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration: %s: %s: %v", e.Field, e.Reason, e.Err)
	}
	return fmt.Sprintf("configuration: %s: %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// Config builds a ConfigurationError.
func Config(field, reason string) error {
	return &ConfigurationError{Field: field, Reason: reason}
}

// WrapConfig builds a ConfigurationError around a cause.
func WrapConfig(field, reason string, err error) error {
	return &ConfigurationError{Field: field, Reason: reason, Err: err}
}

// IsConfiguration reports whether err is, or wraps, a ConfigurationError.
func IsConfiguration(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// GenerationError reports that a chunk was generated with a fallback
// because its theme could not be served. It never aborts a tick.
type GenerationError struct {
	Theme  string
	Reason string
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation: theme %s: %s", e.Theme, e.Reason)
}
