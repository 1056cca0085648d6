package browser

import (
	"errors"
	"fmt"
)

var (
	// ErrEnvironment matches every *EnvironmentError.
	ErrEnvironment = errors.New("browser environment unavailable")

	// ErrNoActiveSession is returned when a session is needed but none was acquired.
	ErrNoActiveSession = errors.New("no active browser session")

	// ErrSessionActive is returned by Acquire while a session is still live.
	ErrSessionActive = errors.New("browser session already active")

	// ErrSessionReleased is returned by any operation on a released session.
	ErrSessionReleased = errors.New("browser session released")
)

// EnvironmentError reports that the driver could not be provisioned or the
// browser process could not be started. It is not worth retrying without
// operator intervention.
type EnvironmentError struct {
	Stage string // "provision" or "launch"
	Err   error
}

func (e *EnvironmentError) Error() string {
	return fmt.Sprintf("browser %s failed: %v", e.Stage, e.Err)
}

func (e *EnvironmentError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrEnvironment) true for any EnvironmentError.
func (e *EnvironmentError) Is(target error) bool {
	return target == ErrEnvironment
}
