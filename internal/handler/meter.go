package handler

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"taximeter/internal/domain"
	"taximeter/internal/meter"
	"taximeter/internal/service"
)

// MeterHandler handles HTTP requests that drive the live ride.
type MeterHandler struct {
	meterService *service.MeterService
	now          func() time.Time
}

// NewMeterHandler creates a new MeterHandler.
func NewMeterHandler(meterService *service.MeterService) *MeterHandler {
	return &MeterHandler{meterService: meterService, now: time.Now}
}

// StartRideRequest is the HTTP request body for starting a ride.
type StartRideRequest struct {
	Name     string          `json:"name"`
	Discount domain.Discount `json:"discount"`
}

// FixRequest is the HTTP request body for a location fix.
type FixRequest struct {
	Lat       float64  `json:"lat"`
	Lon       float64  `json:"lon"`
	Accuracy  *float64 `json:"accuracy,omitempty"`
	Timestamp int64    `json:"timestamp,omitempty"` // epoch ms, server time when omitted
	Speed     *float64 `json:"speed,omitempty"`
}

// FixResponse is the HTTP response for a location fix.
type FixResponse struct {
	Outcome        meter.FixOutcome   `json:"outcome"`
	Reason         meter.RejectReason `json:"reason,omitempty"`
	DistanceDeltaM float64            `json:"distance_delta_m"`
	Moving         bool               `json:"moving"`
	Snapshot       *domain.Snapshot   `json:"snapshot,omitempty"`
}

// ProviderErrorRequest is the HTTP request body for a provider failure.
type ProviderErrorRequest struct {
	Code    service.ProviderStatus `json:"code"`
	Message string                 `json:"message,omitempty"`
}

// Start handles POST /v1/meter/start
func (h *MeterHandler) Start(c *gin.Context) {
	var req StartRideRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	snap, err := h.meterService.StartRide(c.Request.Context(), service.StartRideRequest{
		Name:     req.Name,
		Discount: req.Discount,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, snap)
}

// RecordFix handles POST /v1/meter/fixes
func (h *MeterHandler) RecordFix(c *gin.Context) {
	var req FixRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	fix := domain.GeoFix{
		Lat:       req.Lat,
		Lon:       req.Lon,
		Accuracy:  req.Accuracy,
		Timestamp: req.Timestamp,
		Speed:     req.Speed,
	}
	if fix.Timestamp == 0 {
		fix.Timestamp = h.now().UnixMilli()
	}

	result, err := h.meterService.RecordFix(c.Request.Context(), fix)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, FixResponse{
		Outcome:        result.Result.Outcome,
		Reason:         result.Result.Reason,
		DistanceDeltaM: result.Result.DeltaMeters,
		Moving:         result.Result.Moving,
		Snapshot:       result.Snapshot,
	})
}

// ProviderError handles POST /v1/meter/provider-error
func (h *MeterHandler) ProviderError(c *gin.Context) {
	var req ProviderErrorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	status, err := h.meterService.ReportProviderError(c.Request.Context(), req.Code, req.Message)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, status)
}

// Pause handles POST /v1/meter/pause
func (h *MeterHandler) Pause(c *gin.Context) {
	snap, err := h.meterService.PauseRide(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, snap)
}

// Resume handles POST /v1/meter/resume
func (h *MeterHandler) Resume(c *gin.Context) {
	snap, err := h.meterService.ResumeRide(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, snap)
}

// End handles POST /v1/meter/end
func (h *MeterHandler) End(c *gin.Context) {
	result, err := h.meterService.EndRide(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, result)
}

// Snapshot handles GET /v1/meter/snapshot
func (h *MeterHandler) Snapshot(c *gin.Context) {
	snap, err := h.meterService.Snapshot()
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, snap)
}

// Status handles GET /v1/meter/status
func (h *MeterHandler) Status(c *gin.Context) {
	respondJSON(c, http.StatusOK, h.meterService.Status(c.Request.Context()))
}
