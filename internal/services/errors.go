package services

import "fmt"

// ValidationError is returned before any remote call for bad client input.
type ValidationError struct{ Message string }

func (e *ValidationError) Error() string { return e.Message }

// ConfigurationError reports a missing or unusable server setting, such as
// an absent API credential.
type ConfigurationError struct{ Message string }

func (e *ConfigurationError) Error() string { return e.Message }

// RemoteServiceError wraps a failed model call. The conversation session is
// left as it was.
type RemoteServiceError struct {
	Err error
}

func (e *RemoteServiceError) Error() string {
	return fmt.Sprintf("Gemini API error: %v", e.Err)
}

func (e *RemoteServiceError) Unwrap() error { return e.Err }
