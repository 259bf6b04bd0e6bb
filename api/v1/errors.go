package v1

import "fmt"

// ValidationError rejects a single candidate event.
type ValidationError struct {
	SourceID string
	Field    string
	Message  string
}

func (e *ValidationError) Error() string {
	if e.SourceID != "" {
		return fmt.Sprintf("[%s] invalid %s: %s", e.SourceID, e.Field, e.Message)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// NetworkError is returned once a request has exhausted its retries.
type NetworkError struct {
	SourceID string
	Message  string
	Cause    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("[%s] %s", e.SourceID, e.Message)
}

func (e *NetworkError) Unwrap() error { return e.Cause }

// ParseError reports a payload that could not be read as a whole.
type ParseError struct {
	SourceID string
	Message  string
	Cause    error
}

func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.SourceID, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.SourceID, e.Message)
}

func (e *ParseError) Unwrap() error { return e.Cause }

// StoreError wraps a failed persistence operation.
type StoreError struct {
	Op    string
	Cause error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("database error during %s: %v", e.Op, e.Cause)
}

func (e *StoreError) Unwrap() error { return e.Cause }

// ConfigurationError is raised while building a source or loading settings.
type ConfigurationError struct {
	SourceID string
	Message  string
}

func (e *ConfigurationError) Error() string {
	if e.SourceID == "" {
		return e.Message
	}
	return fmt.Sprintf("[%s] %s", e.SourceID, e.Message)
}

// DeploymentError reports an upload failure.
type DeploymentError struct {
	Target string
	Cause  error
}

func (e *DeploymentError) Error() string {
	return fmt.Sprintf("upload to %s failed: %v", e.Target, e.Cause)
}

func (e *DeploymentError) Unwrap() error { return e.Cause }
