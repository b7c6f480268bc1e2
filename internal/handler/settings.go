package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"taximeter/internal/service"
)

// SettingsHandler handles HTTP requests for rate settings.
type SettingsHandler struct {
	settingsService *service.SettingsService
}

// NewSettingsHandler creates a new SettingsHandler.
func NewSettingsHandler(settingsService *service.SettingsService) *SettingsHandler {
	return &SettingsHandler{settingsService: settingsService}
}

// Get handles GET /v1/settings
func (h *SettingsHandler) Get(c *gin.Context) {
	rates, err := h.settingsService.Get(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, rates)
}

// Update handles PUT /v1/settings. Fields missing from the body keep their
// current values.
func (h *SettingsHandler) Update(c *gin.Context) {
	current, err := h.settingsService.Get(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	req := current
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	saved, err := h.settingsService.Save(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, saved)
}
