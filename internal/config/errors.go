package config

import "fmt"

// ConfigError names the environment variable that could not be used
type ConfigError struct {
	Key     string
	Message string
	Err     error
}

// NewConfigError creates a new configuration error
func NewConfigError(key, message string) *ConfigError {
	return &ConfigError{Key: key, Message: message}
}

// wrapConfigError keeps the parse failure behind a ConfigError
func wrapConfigError(key, message string, err error) *ConfigError {
	return &ConfigError{Key: key, Message: message, Err: err}
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("config error for %s: %s: %v", e.Key, e.Message, e.Err)
	}
	return fmt.Sprintf("config error for %s: %s", e.Key, e.Message)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
