package meter

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition is the parent of every state machine rejection.
// Match with errors.Is.
var ErrInvalidTransition = errors.New("invalid ride state transition")

var (
	// ErrAlreadyRunning is returned when start is called on an active ride.
	ErrAlreadyRunning = fmt.Errorf("%w: ride already running", ErrInvalidTransition)

	// ErrNoActiveRide is returned when end or snapshot is called without a started ride.
	ErrNoActiveRide = fmt.Errorf("%w: no active ride", ErrInvalidTransition)

	// ErrNotRunning is returned when pausing a ride that is not running.
	ErrNotRunning = fmt.Errorf("%w: ride not running", ErrInvalidTransition)

	// ErrNotPaused is returned when resuming a ride that is not paused.
	ErrNotPaused = fmt.Errorf("%w: ride not paused", ErrInvalidTransition)

	// ErrRideEnded is returned for any mutation after the ride ended.
	ErrRideEnded = fmt.Errorf("%w: ride already ended", ErrInvalidTransition)
)
