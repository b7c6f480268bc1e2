package domain

import "errors"

// RoundingMode controls how the final fare is rounded.
type RoundingMode string

const (
	RoundingNone      RoundingMode = "none"
	RoundingNearest10 RoundingMode = "nearest-0.10"
	RoundingNearest50 RoundingMode = "nearest-0.50"
)

// Valid reports whether the mode is one of the known rounding modes.
func (m RoundingMode) Valid() bool {
	switch m {
	case RoundingNone, RoundingNearest10, RoundingNearest50:
		return true
	}
	return false
}

// NightHours is the nightly surcharge window. The window wraps past midnight
// when StartHour >= EndHour.
type NightHours struct {
	StartHour int `json:"start"`
	EndHour   int `json:"end"`
}

// RateConfig holds the fare settings of the meter.
type RateConfig struct {
	BaseFare              float64      `json:"base_fare"`
	PerKm                 float64      `json:"per_km"`
	PerMinute             float64      `json:"per_minute"`
	MinimumFare           float64      `json:"minimum_fare"`
	NightSurchargePercent float64      `json:"night_surcharge_percent"`
	NightHours            NightHours   `json:"night_hours"`
	Rounding              RoundingMode `json:"rounding"`
	JitterThresholdMeters float64      `json:"jitter_threshold_m"`
}

var (
	// ErrNegativeRate is returned when a monetary rate is negative.
	ErrNegativeRate = errors.New("rates must not be negative")

	// ErrSurchargeOutOfRange is returned when the night surcharge is outside 0..100.
	ErrSurchargeOutOfRange = errors.New("night surcharge percent must be within 0..100")

	// ErrNightHourOutOfRange is returned when a night window hour is outside 0..23.
	ErrNightHourOutOfRange = errors.New("night hours must be within 0..23")

	// ErrUnknownRounding is returned for an unsupported rounding mode.
	ErrUnknownRounding = errors.New("unknown rounding mode")

	// ErrNegativeJitter is returned when the jitter threshold is negative.
	ErrNegativeJitter = errors.New("jitter threshold must not be negative")
)

// DefaultRateConfig returns the rates used before the driver saves settings.
func DefaultRateConfig() RateConfig {
	return RateConfig{
		BaseFare:              3.0,
		PerKm:                 1.5,
		PerMinute:             0,
		MinimumFare:           0,
		NightSurchargePercent: 0,
		NightHours:            NightHours{StartHour: 22, EndHour: 6},
		Rounding:              RoundingNone,
		JitterThresholdMeters: 3,
	}
}

// Validate checks the documented ranges of every field.
func (c RateConfig) Validate() error {
	if c.BaseFare < 0 || c.PerKm < 0 || c.PerMinute < 0 || c.MinimumFare < 0 {
		return ErrNegativeRate
	}
	if c.NightSurchargePercent < 0 || c.NightSurchargePercent > 100 {
		return ErrSurchargeOutOfRange
	}
	if !validHour(c.NightHours.StartHour) || !validHour(c.NightHours.EndHour) {
		return ErrNightHourOutOfRange
	}
	if !c.Rounding.Valid() {
		return ErrUnknownRounding
	}
	if c.JitterThresholdMeters < 0 {
		return ErrNegativeJitter
	}
	return nil
}

func validHour(h int) bool {
	return h >= 0 && h <= 23
}
