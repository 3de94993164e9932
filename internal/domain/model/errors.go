package model

import (
	"errors"
	"fmt"
)

// ErrInvalidConfiguration is matched by every *ConfigurationError.
var ErrInvalidConfiguration = errors.New("invalid configuration")

// ConfigurationError reports a malformed field found while building a value object.
type ConfigurationError struct {
	Field string
	Value any
	Err   error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid %s %v: %v", e.Field, e.Value, e.Err)
	}
	return fmt.Sprintf("invalid %s %v", e.Field, e.Value)
}

func (e *ConfigurationError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrInvalidConfiguration}
	}
	return []error{ErrInvalidConfiguration, e.Err}
}
