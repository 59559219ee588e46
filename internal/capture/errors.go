package capture

import (
	"errors"
	"fmt"
)

var (
	// ErrBusy is returned when another capture already holds the gate.
	ErrBusy = errors.New("microphone busy")
	// ErrUnavailable is returned when server-side recognition was never set up.
	ErrUnavailable = errors.New("speech recognition not installed")
	// ErrNoSpeech is returned when no speech starts within the timeout.
	ErrNoSpeech = errors.New("no speech detected")
	// ErrUnintelligible is returned when audio was captured but yielded no transcript.
	ErrUnintelligible = errors.New("could not understand audio")
)

// ServiceError wraps a transport or API failure of the remote transcriber.
type ServiceError struct {
	Err error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("speech service error: %v", e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// UserMessage converts a capture error into the text shown to the browser.
func UserMessage(err error) string {
	var svcErr *ServiceError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrBusy):
		return "Microphone already in use"
	case errors.Is(err, ErrUnavailable):
		return "Speech recognition not installed"
	case errors.Is(err, ErrNoSpeech):
		return "No speech detected, please try again"
	case errors.Is(err, ErrUnintelligible):
		return "Could not understand audio"
	case errors.As(err, &svcErr):
		return fmt.Sprintf("Speech service error: %v", svcErr.Err)
	default:
		return err.Error()
	}
}
