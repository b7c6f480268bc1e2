package meter

import (
	"math"
	"testing"

	"taximeter/internal/domain"
)

const noon = 12

func baseRates() domain.RateConfig {
	return domain.RateConfig{
		BaseFare:   3.0,
		PerKm:      1.5,
		NightHours: domain.NightHours{StartHour: 22, EndHour: 6},
		Rounding:   domain.RoundingNone,
	}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestComputeFare_OrderOfSteps(t *testing.T) {
	withMinimum := baseRates()
	withMinimum.MinimumFare = 20

	rounded := withMinimum
	rounded.Rounding = domain.RoundingNearest50

	tests := []struct {
		name     string
		rates    domain.RateConfig
		discount domain.Discount
		want     float64
	}{
		{"raw fare", baseRates(), domain.Discount{}, 18.0},
		{"minimum fare floor", withMinimum, domain.Discount{}, 20.0},
		{"discount after minimum", withMinimum, domain.Discount{Type: domain.DiscountPercent, Value: 10}, 18.0},
		{"rounding of aligned value", rounded, domain.Discount{Type: domain.DiscountPercent, Value: 10}, 18.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeFare(10000, 600, tt.rates, tt.discount, noon)
			if !almostEqual(got, tt.want) {
				t.Errorf("ComputeFare() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestComputeBreakdown_MinimumAppliesBeforeDiscount(t *testing.T) {
	rates := domain.RateConfig{BaseFare: 5, MinimumFare: 10, Rounding: domain.RoundingNone}

	b := ComputeBreakdown(0, 0, rates, domain.Discount{Type: domain.DiscountAmount, Value: 3}, noon)

	if !almostEqual(b.Raw, 5) || !almostEqual(b.AfterMinimum, 10) || !almostEqual(b.Final, 7) {
		t.Errorf("unexpected breakdown: %+v", b)
	}
}

func TestComputeBreakdown_NightAppliesBeforeMinimum(t *testing.T) {
	rates := domain.RateConfig{
		BaseFare:              10,
		MinimumFare:           12,
		NightSurchargePercent: 50,
		NightHours:            domain.NightHours{StartHour: 22, EndHour: 6},
		Rounding:              domain.RoundingNone,
	}

	b := ComputeBreakdown(0, 0, rates, domain.Discount{}, 23)
	if !b.Night {
		t.Fatal("hour 23 should be inside the night window")
	}
	if !almostEqual(b.Final, 15) {
		t.Errorf("Final = %v, want 15 (surcharge first, then minimum)", b.Final)
	}
}

func TestComputeFare_NightSurcharge(t *testing.T) {
	rates := domain.RateConfig{
		BaseFare:              10,
		NightSurchargePercent: 20,
		NightHours:            domain.NightHours{StartHour: 22, EndHour: 6},
		Rounding:              domain.RoundingNone,
	}

	if got := ComputeFare(0, 0, rates, domain.Discount{}, 23); !almostEqual(got, 12) {
		t.Errorf("night fare = %v, want 12", got)
	}
	if got := ComputeFare(0, 0, rates, domain.Discount{}, 12); !almostEqual(got, 10) {
		t.Errorf("day fare = %v, want 10", got)
	}

	rates.NightSurchargePercent = 0
	if got := ComputeFare(0, 0, rates, domain.Discount{}, 23); !almostEqual(got, 10) {
		t.Errorf("zero surcharge at night = %v, want 10", got)
	}
}

func TestIsNightHour(t *testing.T) {
	wrap := domain.NightHours{StartHour: 22, EndHour: 6}
	day := domain.NightHours{StartHour: 8, EndHour: 18}
	same := domain.NightHours{StartHour: 0, EndHour: 0}

	tests := []struct {
		name   string
		window domain.NightHours
		hour   int
		want   bool
	}{
		{"wrap 23", wrap, 23, true},
		{"wrap 3", wrap, 3, true},
		{"wrap 12", wrap, 12, false},
		{"wrap start inclusive", wrap, 22, true},
		{"wrap end exclusive", wrap, 6, false},
		{"plain start inclusive", day, 8, true},
		{"plain inside", day, 17, true},
		{"plain end exclusive", day, 18, false},
		{"plain before", day, 7, false},
		{"equal hours cover the whole day", same, 13, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsNightHour(tt.hour, tt.window); got != tt.want {
				t.Errorf("IsNightHour(%d) = %v, want %v", tt.hour, got, tt.want)
			}
		})
	}
}

func TestApplyDiscount(t *testing.T) {
	tests := []struct {
		name     string
		total    float64
		discount domain.Discount
		want     float64
	}{
		{"amount larger than fare floors at zero", 30, domain.Discount{Type: domain.DiscountAmount, Value: 50}, 0},
		{"amount", 30, domain.Discount{Type: domain.DiscountAmount, Value: 5}, 25},
		{"percent", 40, domain.Discount{Type: domain.DiscountPercent, Value: 25}, 30},
		{"full percent", 40, domain.Discount{Type: domain.DiscountPercent, Value: 100}, 0},
		{"zero value is ignored", 40, domain.Discount{Type: domain.DiscountPercent, Value: 0}, 40},
		{"none", 40, domain.Discount{Type: domain.DiscountNone, Value: 10}, 40},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ApplyDiscount(tt.total, tt.discount); !almostEqual(got, tt.want) {
				t.Errorf("ApplyDiscount() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestComputeFare_DiscountNeverNegative(t *testing.T) {
	rates := domain.RateConfig{BaseFare: 30, Rounding: domain.RoundingNone}

	got := ComputeFare(0, 0, rates, domain.Discount{Type: domain.DiscountAmount, Value: 50}, noon)
	if got != 0 {
		t.Errorf("ComputeFare() = %v, want 0", got)
	}
}

func TestRound(t *testing.T) {
	tests := []struct {
		name  string
		total float64
		mode  domain.RoundingMode
		want  float64
	}{
		{"cents down", 7.454, domain.RoundingNone, 7.45},
		{"cents up", 7.456, domain.RoundingNone, 7.46},
		{"dimes down", 12.34, domain.RoundingNearest10, 12.3},
		{"dimes up", 12.36, domain.RoundingNearest10, 12.4},
		{"halves down", 18.2, domain.RoundingNearest50, 18.0},
		{"halves tie rounds up", 18.25, domain.RoundingNearest50, 18.5},
		{"halves up", 18.74, domain.RoundingNearest50, 18.5},
		{"halves to whole", 18.75, domain.RoundingNearest50, 19.0},
		{"unknown mode uses cents", 1.234, domain.RoundingMode("bogus"), 1.23},
		{"cent tie 1.005", 1.005, domain.RoundingNone, 1.01},
		{"cent tie 1.015", 1.015, domain.RoundingNone, 1.02},
		{"cent tie 0.125", 0.125, domain.RoundingNone, 0.13},
		{"cent tie 2.675", 2.675, domain.RoundingNone, 2.68},
		{"dime tie 1.45", 1.45, domain.RoundingNearest10, 1.5},
		{"dime tie 2.35", 2.35, domain.RoundingNearest10, 2.4},
		{"half tie 0.75", 0.75, domain.RoundingNearest50, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Round(tt.total, tt.mode); !almostEqual(got, tt.want) {
				t.Errorf("Round(%v, %s) = %v, want %v", tt.total, tt.mode, got, tt.want)
			}
		})
	}
}

func TestComputeFare_PerMinuteCharge(t *testing.T) {
	rates := domain.RateConfig{PerMinute: 0.5, Rounding: domain.RoundingNone}

	if got := ComputeFare(0, 180, rates, domain.Discount{}, noon); !almostEqual(got, 1.5) {
		t.Errorf("ComputeFare() = %v, want 1.5", got)
	}
}

func TestComputeFare_InvalidInputsClampToZero(t *testing.T) {
	rates := baseRates()

	got := ComputeFare(math.NaN(), -60, rates, domain.Discount{}, noon)
	if !almostEqual(got, 3.0) {
		t.Errorf("ComputeFare(NaN, -60) = %v, want base fare 3.0", got)
	}
	if got := ComputeFare(math.Inf(1), 0, rates, domain.Discount{}, noon); !almostEqual(got, 3.0) {
		t.Errorf("ComputeFare(+Inf) = %v, want base fare 3.0", got)
	}
}

func TestComputeFare_Deterministic(t *testing.T) {
	rates := baseRates()
	rates.PerMinute = 0.35
	rates.NightSurchargePercent = 15

	first := ComputeFare(12345, 987, rates, domain.Discount{Type: domain.DiscountPercent, Value: 5}, 23)
	for i := 0; i < 100; i++ {
		if got := ComputeFare(12345, 987, rates, domain.Discount{Type: domain.DiscountPercent, Value: 5}, 23); got != first {
			t.Fatalf("run %d: got %v, want %v", i, got, first)
		}
	}
}
