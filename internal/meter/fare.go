package meter

import (
	"math"

	"taximeter/internal/domain"
)

// FareBreakdown records the running total after each pricing step.
type FareBreakdown struct {
	Raw           float64 `json:"raw"`
	Night         bool    `json:"night"`
	AfterNight    float64 `json:"after_night"`
	AfterMinimum  float64 `json:"after_minimum"`
	AfterDiscount float64 `json:"after_discount"`
	Final         float64 `json:"final"`
}

// RawFare returns base + distance + time charges.
func RawFare(distanceMeters, durationSeconds float64, rates domain.RateConfig) float64 {
	km := nonNegative(distanceMeters) / 1000
	minutes := nonNegative(durationSeconds) / 60
	return rates.BaseFare + km*rates.PerKm + minutes*rates.PerMinute
}

// ComputeFare returns the final fare in currency units.
func ComputeFare(distanceMeters, durationSeconds float64, rates domain.RateConfig, discount domain.Discount, hour int) float64 {
	return ComputeBreakdown(distanceMeters, durationSeconds, rates, discount, hour).Final
}

// ComputeBreakdown prices a ride. The steps always run in this order:
// raw fare, night surcharge, minimum fare, discount, rounding.
func ComputeBreakdown(distanceMeters, durationSeconds float64, rates domain.RateConfig, discount domain.Discount, hour int) FareBreakdown {
	var b FareBreakdown

	total := RawFare(distanceMeters, durationSeconds, rates)
	b.Raw = total

	b.Night = IsNightHour(hour, rates.NightHours)
	if b.Night && rates.NightSurchargePercent > 0 {
		total *= 1 + rates.NightSurchargePercent/100
	}
	b.AfterNight = total

	if rates.MinimumFare > 0 {
		total = math.Max(total, rates.MinimumFare)
	}
	b.AfterMinimum = total

	total = ApplyDiscount(total, discount)
	b.AfterDiscount = total

	b.Final = Round(total, rates.Rounding)
	return b
}

// IsNightHour reports whether hour falls in the night window. The window
// wraps past midnight when StartHour >= EndHour.
func IsNightHour(hour int, w domain.NightHours) bool {
	if w.StartHour < w.EndHour {
		return hour >= w.StartHour && hour < w.EndHour
	}
	return hour >= w.StartHour || hour < w.EndHour
}

// ApplyDiscount never returns a negative total.
func ApplyDiscount(total float64, d domain.Discount) float64 {
	if d.Value <= 0 {
		return total
	}
	switch d.Type {
	case domain.DiscountPercent:
		total *= 1 - d.Value/100
	case domain.DiscountAmount:
		total -= d.Value
	}
	return math.Max(0, total)
}

// Round rounds half away from zero to the step of the rounding mode.
// Unknown modes fall back to cents.
func Round(total float64, mode domain.RoundingMode) float64 {
	switch mode {
	case domain.RoundingNearest10:
		return roundToStep(total, 10)
	case domain.RoundingNearest50:
		return roundToStep(total, 2)
	default:
		return roundToStep(total, 100)
	}
}

// roundToStep rounds total to 1/perUnit. The scaled value is snapped to
// 1e-4 first so decimal ties like 1.005 are not lost to binary error.
func roundToStep(total, perUnit float64) float64 {
	scaled := math.Round(total*perUnit*1e4) / 1e4
	return math.Round(scaled) / perUnit
}

// nonNegative maps NaN, negative and infinite inputs to 0.
func nonNegative(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
