package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"openpatrol/api/internal/middleware"
	"openpatrol/api/internal/service"
)

// AlertHandler handles overdue alert queries
type AlertHandler struct {
	engine *service.AlertEngine
}

// NewAlertHandler creates a new alert handler
func NewAlertHandler(engine *service.AlertEngine) *AlertHandler {
	return &AlertHandler{engine: engine}
}

// List returns current overdue alerts
// @Summary List alerts
// @Description Get overdue checkpoint alerts ranked by severity; supervisors see their service, admins may filter
// @Tags Alerts
// @Produce json
// @Security BearerAuth
// @Param service_id query int false "Service filter (admins only)"
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Router /alerts [get]
func (h *AlertHandler) List(c *gin.Context) {
	identity := middleware.CurrentUser(c)
	alerts, err := h.engine.ComputeAlerts(c.Request.Context(), identity, queryUint(c, "service_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  alerts,
		"total": len(alerts),
	})
}

// Count returns alert totals by severity
// @Summary Count alerts
// @Description Get active alert totals broken down by severity
// @Tags Alerts
// @Produce json
// @Security BearerAuth
// @Param service_id query int false "Service filter (admins only)"
// @Success 200 {object} model.AlertCount
// @Failure 401 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Router /alerts/count [get]
func (h *AlertHandler) Count(c *gin.Context) {
	identity := middleware.CurrentUser(c)
	count, err := h.engine.CountAlerts(c.Request.Context(), identity, queryUint(c, "service_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, count)
}
