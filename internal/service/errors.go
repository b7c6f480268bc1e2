package service

import (
	"errors"

	"taximeter/internal/domain"
)

var (
	// ErrInvalidFix is returned when a fix has out-of-range coordinates or
	// negative accuracy or speed.
	ErrInvalidFix = errors.New("invalid fix")

	// ErrInvalidRateConfig is returned when rate settings fail validation.
	ErrInvalidRateConfig = errors.New("invalid rate settings")

	// ErrInvalidDiscount is returned when the discount of a new ride is invalid.
	ErrInvalidDiscount = domain.ErrInvalidDiscount

	// ErrInvalidTripID is returned when trip ID is empty.
	ErrInvalidTripID = errors.New("invalid trip id")

	// ErrMeterLocked is returned when another ride holds the meter.
	ErrMeterLocked = errors.New("meter is locked by another ride")

	// ErrRideInProgress is returned when recovering a checkpoint while a ride is live.
	ErrRideInProgress = errors.New("a ride is already in progress")

	// ErrInvalidProviderStatus is returned for an unknown provider error code.
	ErrInvalidProviderStatus = errors.New("invalid provider status")
)
