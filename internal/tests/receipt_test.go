package tests

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"taximeter/internal/domain"
	"taximeter/internal/repository"
	"taximeter/internal/service"
)

// ──────────────────────────────────────────────
// RECEIPT SERVICE
// ──────────────────────────────────────────────

func nightRide() *domain.CompletedRide {
	rates := domain.DefaultRateConfig()
	rates.PerMinute = 0.5
	rates.NightSurchargePercent = 20

	ended := time.Date(2026, 3, 10, 23, 0, 0, 0, time.UTC).UnixMilli()
	return &domain.CompletedRide{
		ID:             "ride-night",
		Name:           "Airport",
		StartedAt:      ended - 600000,
		EndedAt:        ended,
		DurationMs:     600000,
		DistanceMeters: 4200,
		Rates:          rates,
		Discount:       domain.Discount{Type: domain.DiscountPercent, Value: 10},
		BaseFare:       14.3,
		FinalFare:      15.44,
	}
}

func TestReceiptService_BuildReceipt(t *testing.T) {
	t.Parallel()

	svc := service.NewReceiptService(NewMockTripRepository(), time.UTC)
	r := svc.BuildReceipt(nightRide())

	if !r.Breakdown.Night {
		t.Error("23:00 should be inside the night window")
	}
	if r.Breakdown.Final != r.TotalFare {
		t.Errorf("breakdown final %v must equal stored fare %v", r.Breakdown.Final, r.TotalFare)
	}
	if r.DistanceKm != 4.2 {
		t.Errorf("expected 4.2 km, got %v", r.DistanceKm)
	}
	if r.Duration != 10*time.Minute {
		t.Errorf("expected 10 min, got %v", r.Duration)
	}
}

func TestReceiptService_FormatReceipt(t *testing.T) {
	t.Parallel()

	svc := service.NewReceiptService(NewMockTripRepository(), time.UTC)
	text := svc.FormatReceipt(svc.BuildReceipt(nightRide()))

	for _, want := range []string{
		"TAXI RECEIPT",
		"Ride ID: ride-night",
		"Ride:    Airport",
		"Duration: 10 min 00 s",
		"Distance: 4.20 km",
		"Base fare:        3.00",
		"Distance charge:  6.30",
		"Time charge:      5.00",
		"Night (+20%):     2.86",
		"Discount:        -1.72",
		"TOTAL:            15.44",
		"Status: UNPAID",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("receipt missing %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "Minimum fare") {
		t.Error("minimum fare line should only appear when it applied")
	}
}

func TestReceiptService_MinimumFareLine(t *testing.T) {
	t.Parallel()

	rates := domain.DefaultRateConfig()
	rates.MinimumFare = 10
	ride := &domain.CompletedRide{
		ID:        "short",
		StartedAt: 0,
		EndedAt:   time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC).UnixMilli(),
		Rates:     rates,
		Discount:  domain.Discount{Type: domain.DiscountNone},
		BaseFare:  3,
		FinalFare: 10,
		Paid:      true,
	}

	svc := service.NewReceiptService(NewMockTripRepository(), time.UTC)
	text := svc.FormatReceipt(svc.BuildReceipt(ride))

	for _, want := range []string{"Minimum fare:     10.00", "TOTAL:            10.00", "Status: PAID"} {
		if !strings.Contains(text, want) {
			t.Errorf("receipt missing %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "Night") || strings.Contains(text, "Discount") {
		t.Errorf("unexpected surcharge or discount line:\n%s", text)
	}
}

func TestReceiptService_GenerateReceipt(t *testing.T) {
	t.Parallel()

	trips := NewMockTripRepository()
	trips.AddRide(nightRide())
	svc := service.NewReceiptService(trips, time.UTC)
	ctx := context.Background()

	r, err := svc.GenerateReceipt(ctx, "ride-night")
	if err != nil {
		t.Fatalf("GenerateReceipt: %v", err)
	}
	if r.RideID != "ride-night" || r.TotalFare != 15.44 {
		t.Errorf("unexpected receipt %+v", r)
	}

	if _, err := svc.GenerateReceipt(ctx, "missing"); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.GenerateReceipt(ctx, ""); !errors.Is(err, service.ErrInvalidTripID) {
		t.Errorf("expected ErrInvalidTripID, got %v", err)
	}
}

func TestReceiptService_TimeZoneDecidesNight(t *testing.T) {
	t.Parallel()

	// 23:00 UTC is 08:00 in Tokyo.
	tokyo := time.FixedZone("JST", 9*3600)
	svc := service.NewReceiptService(NewMockTripRepository(), tokyo)

	r := svc.BuildReceipt(nightRide())
	if r.Breakdown.Night {
		t.Error("08:00 local time is outside the night window")
	}
	if r.EndedAt.Hour() != 8 {
		t.Errorf("times should be printed in the configured zone, got %v", r.EndedAt)
	}
}
