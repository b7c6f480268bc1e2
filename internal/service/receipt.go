package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"taximeter/internal/domain"
	"taximeter/internal/meter"
	"taximeter/internal/repository"
)

// Receipt is the printable summary of a completed ride.
type Receipt struct {
	RideID     string              `json:"ride_id"`
	Name       string              `json:"name"`
	StartedAt  time.Time           `json:"started_at"`
	EndedAt    time.Time           `json:"ended_at"`
	Duration   time.Duration       `json:"duration"`
	DistanceKm float64             `json:"distance_km"`
	Rates      domain.RateConfig   `json:"rates"`
	Discount   domain.Discount     `json:"discount"`
	Breakdown  meter.FareBreakdown `json:"breakdown"`
	TotalFare  float64             `json:"total_fare"`
	Paid       bool                `json:"paid"`
}

// ReceiptService handles receipt generation.
type ReceiptService struct {
	trips repository.TripRepository
	loc   *time.Location
}

// NewReceiptService creates a new ReceiptService. Times are printed and the
// night window is evaluated in loc.
func NewReceiptService(trips repository.TripRepository, loc *time.Location) *ReceiptService {
	if loc == nil {
		loc = time.Local
	}
	return &ReceiptService{trips: trips, loc: loc}
}

// GenerateReceipt builds the receipt of a stored ride.
func (s *ReceiptService) GenerateReceipt(ctx context.Context, id string) (*Receipt, error) {
	if id == "" {
		return nil, ErrInvalidTripID
	}

	ride, err := s.trips.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	return s.BuildReceipt(ride), nil
}

// BuildReceipt derives the receipt of a ride. The fare steps are recomputed
// from the frozen rates, so the final line always equals the stored fare.
func (s *ReceiptService) BuildReceipt(ride *domain.CompletedRide) *Receipt {
	endedAt := time.UnixMilli(ride.EndedAt).In(s.loc)
	breakdown := meter.ComputeBreakdown(
		ride.DistanceMeters,
		float64(ride.DurationMs)/1000,
		ride.Rates,
		ride.Discount,
		endedAt.Hour(),
	)

	return &Receipt{
		RideID:     ride.ID,
		Name:       ride.Name,
		StartedAt:  time.UnixMilli(ride.StartedAt).In(s.loc),
		EndedAt:    endedAt,
		Duration:   time.Duration(ride.DurationMs) * time.Millisecond,
		DistanceKm: ride.DistanceMeters / 1000,
		Rates:      ride.Rates,
		Discount:   ride.Discount,
		Breakdown:  breakdown,
		TotalFare:  ride.FinalFare,
		Paid:       ride.Paid,
	}
}

// FormatReceipt formats the receipt as plain text for printing.
func (s *ReceiptService) FormatReceipt(r *Receipt) string {
	var b strings.Builder

	line := "-------------------------------------\n"
	b.WriteString("=====================================\n")
	b.WriteString("            TAXI RECEIPT\n")
	b.WriteString("=====================================\n")
	fmt.Fprintf(&b, "Ride ID: %s\n", r.RideID)
	if r.Name != "" {
		fmt.Fprintf(&b, "Ride:    %s\n", r.Name)
	}
	fmt.Fprintf(&b, "Date:    %s\n\n", r.EndedAt.Format("Jan 02, 2006 3:04 PM"))

	b.WriteString("TRIP DETAILS\n")
	b.WriteString(line)
	fmt.Fprintf(&b, "Start:    %s\n", r.StartedAt.Format("15:04:05"))
	fmt.Fprintf(&b, "End:      %s\n", r.EndedAt.Format("15:04:05"))
	fmt.Fprintf(&b, "Duration: %s\n", formatDuration(r.Duration))
	fmt.Fprintf(&b, "Distance: %s km\n\n", formatFloat(r.DistanceKm))

	b.WriteString("FARE BREAKDOWN\n")
	b.WriteString(line)
	fmt.Fprintf(&b, "Base fare:        %s\n", formatFloat(r.Rates.BaseFare))
	fmt.Fprintf(&b, "Distance charge:  %s\n", formatFloat(r.DistanceKm*r.Rates.PerKm))
	fmt.Fprintf(&b, "Time charge:      %s\n", formatFloat(r.Duration.Minutes()*r.Rates.PerMinute))
	if r.Breakdown.Night && r.Rates.NightSurchargePercent > 0 {
		fmt.Fprintf(&b, "Night (+%s%%):     %s\n",
			strconv.FormatFloat(r.Rates.NightSurchargePercent, 'f', -1, 64),
			formatFloat(r.Breakdown.AfterNight-r.Breakdown.Raw))
	}
	if r.Breakdown.AfterMinimum > r.Breakdown.AfterNight {
		fmt.Fprintf(&b, "Minimum fare:     %s\n", formatFloat(r.Breakdown.AfterMinimum))
	}
	if d := r.Breakdown.AfterMinimum - r.Breakdown.AfterDiscount; d > 0 {
		fmt.Fprintf(&b, "Discount:        -%s\n", formatFloat(d))
	}
	b.WriteString(line)
	fmt.Fprintf(&b, "TOTAL:            %s\n\n", formatFloat(r.TotalFare))

	status := "UNPAID"
	if r.Paid {
		status = "PAID"
	}
	fmt.Fprintf(&b, "Status: %s\n", status)
	b.WriteString("=====================================\n")

	return b.String()
}

func formatFloat(f float64) string {
	return fmt.Sprintf("%.2f", f)
}

func formatDuration(d time.Duration) string {
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%d min %02d s", minutes, seconds)
}
