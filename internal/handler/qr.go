package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"openpatrol/api/internal/model"
	"openpatrol/api/internal/service"
)

// QRHandler handles QR payload validation
type QRHandler struct {
	resolver *service.QRResolver
	geofence *service.GeofenceValidator
}

// NewQRHandler creates a new QR handler
func NewQRHandler(resolver *service.QRResolver, geofence *service.GeofenceValidator) *QRHandler {
	return &QRHandler{resolver: resolver, geofence: geofence}
}

// QRValidationRequest is a scanned payload plus the scanner's position.
// Position is optional; without it only the payload is checked.
type QRValidationRequest struct {
	Payload   string   `json:"payload" binding:"required"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// QRValidationResponse reports a scan outcome. Invalid scans are a normal
// response body, not an HTTP error, so mobile clients can show the message
// directly.
type QRValidationResponse struct {
	Valid      bool                    `json:"valid"`
	Code       string                  `json:"code,omitempty"`
	Message    string                  `json:"message,omitempty"`
	Checkpoint *model.Checkpoint       `json:"checkpoint,omitempty"`
	Geofence   *service.GeofenceResult `json:"geofence,omitempty"`
}

// Validate checks a scanned QR payload
// @Summary Validate QR scan
// @Description Resolve a scanned QR payload against the checkpoint directory, optionally checking the scanner's position against the geofence
// @Tags QR
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param scan body QRValidationRequest true "Scan data"
// @Success 200 {object} QRValidationResponse
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Router /qr/validate [post]
func (h *QRHandler) Validate(c *gin.Context) {
	var req QRValidationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	checkpoint, _, err := h.resolver.Resolve(c.Request.Context(), req.Payload)
	if err != nil {
		var svcErr *service.Error
		if errors.As(err, &svcErr) {
			c.JSON(http.StatusOK, QRValidationResponse{
				Valid:   false,
				Code:    string(svcErr.Kind),
				Message: svcErr.Message,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	resp := QRValidationResponse{
		Valid:      true,
		Checkpoint: checkpoint,
	}

	if req.Latitude != nil && req.Longitude != nil {
		result := h.geofence.Validate(checkpoint, *req.Latitude, *req.Longitude)
		resp.Geofence = &result
		if !result.Within {
			resp.Valid = false
			resp.Code = string(service.KindOutOfRange)
			resp.Message = "location out of range"
		}
	}

	c.JSON(http.StatusOK, resp)
}
