package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"taximeter/internal/domain"
	"taximeter/internal/service"
)

// TripHandler handles HTTP requests for the ride history.
type TripHandler struct {
	historyService *service.HistoryService
	receiptService *service.ReceiptService
	meterService   *service.MeterService
}

// NewTripHandler creates a new TripHandler.
func NewTripHandler(historyService *service.HistoryService, receiptService *service.ReceiptService, meterService *service.MeterService) *TripHandler {
	return &TripHandler{
		historyService: historyService,
		receiptService: receiptService,
		meterService:   meterService,
	}
}

// TripSummary is one entry of the history list. Tracks are left out.
type TripSummary struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	StartedAt      int64   `json:"started_at"`
	EndedAt        int64   `json:"ended_at"`
	DurationMs     int64   `json:"duration_ms"`
	DistanceMeters float64 `json:"distance_m"`
	FinalFare      float64 `json:"final_fare"`
	Paid           bool    `json:"paid"`
}

// SetPaidRequest is the HTTP request body for the paid flag.
type SetPaidRequest struct {
	Paid *bool `json:"paid"`
}

func toSummary(r *domain.CompletedRide) TripSummary {
	return TripSummary{
		ID:             r.ID,
		Name:           r.Name,
		StartedAt:      r.StartedAt,
		EndedAt:        r.EndedAt,
		DurationMs:     r.DurationMs,
		DistanceMeters: r.DistanceMeters,
		FinalFare:      r.FinalFare,
		Paid:           r.Paid,
	}
}

// GetAll handles GET /v1/trips
func (h *TripHandler) GetAll(c *gin.Context) {
	rides, err := h.historyService.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]TripSummary, 0, len(rides))
	for _, r := range rides {
		response = append(response, toSummary(r))
	}

	respondJSON(c, http.StatusOK, response)
}

// GetTrip handles GET /v1/trips/:id
func (h *TripHandler) GetTrip(c *gin.Context) {
	ride, err := h.historyService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, ride)
}

// GetReceipt handles GET /v1/trips/:id/receipt. Plain text unless the
// client asks for JSON.
func (h *TripHandler) GetReceipt(c *gin.Context) {
	receipt, err := h.receiptService.GenerateReceipt(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	if c.NegotiateFormat(gin.MIMEPlain, gin.MIMEJSON) == gin.MIMEJSON {
		respondJSON(c, http.StatusOK, receipt)
		return
	}
	c.String(http.StatusOK, h.receiptService.FormatReceipt(receipt))
}

// SetPaid handles POST /v1/trips/:id/paid
func (h *TripHandler) SetPaid(c *gin.Context) {
	var req SetPaidRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Paid == nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	ride, err := h.historyService.SetPaid(c.Request.Context(), c.Param("id"), *req.Paid)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toSummary(ride))
}

// Clear handles DELETE /v1/trips
func (h *TripHandler) Clear(c *gin.Context) {
	if err := h.historyService.Clear(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// RetryPending handles POST /v1/trips/retry
func (h *TripHandler) RetryPending(c *gin.Context) {
	result, err := h.meterService.RetryPending(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":     err.Error(),
			"saved":     result.Saved,
			"remaining": result.Remaining,
		})
		return
	}

	respondJSON(c, http.StatusOK, result)
}
