package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"openpatrol/api/internal/middleware"
	"openpatrol/api/internal/model"
	"openpatrol/api/internal/service"
)

// VisitHandler handles visit recording and listing
type VisitHandler struct {
	visitService *service.VisitService
}

// NewVisitHandler creates a new visit handler
func NewVisitHandler(visitService *service.VisitService) *VisitHandler {
	return &VisitHandler{visitService: visitService}
}

// Record stores a single visit
// @Summary Record visit
// @Description Validate and store a checkpoint visit
// @Tags Visits
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param visit body model.VisitRequest true "Visit data"
// @Success 201 {object} model.Visit
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /visits [post]
func (h *VisitHandler) Record(c *gin.Context) {
	var req model.VisitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	identity := middleware.CurrentUser(c)
	visit, err := h.visitService.RecordVisit(c.Request.Context(), identity, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, visit)
}

// Sync replays offline-captured visits
// @Summary Sync offline visits
// @Description Replay a batch of offline-captured visits; items succeed or fail independently
// @Tags Visits
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param visits body []model.VisitRequest true "Offline visits"
// @Success 200 {object} model.SyncResult
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Router /visits/sync [post]
func (h *VisitHandler) Sync(c *gin.Context) {
	var requests []model.VisitRequest
	if err := c.ShouldBindJSON(&requests); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	identity := middleware.CurrentUser(c)
	result := h.visitService.SyncBatch(c.Request.Context(), identity, requests)

	c.JSON(http.StatusOK, result)
}

// List returns recent visits
// @Summary List visits
// @Description Get recent visits scoped by role; guards see their own, supervisors their service
// @Tags Visits
// @Produce json
// @Security BearerAuth
// @Param service_id query int false "Service filter (admins only)"
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Router /visits [get]
func (h *VisitHandler) List(c *gin.Context) {
	identity := middleware.CurrentUser(c)
	visits, err := h.visitService.ListVisits(c.Request.Context(), identity, queryUint(c, "service_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  visits,
		"total": len(visits),
	})
}
