package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"openpatrol/api/internal/middleware"
	"openpatrol/api/internal/model"
	"openpatrol/api/internal/service"
)

// ServiceHandler handles patrol service management requests
type ServiceHandler struct {
	serviceManager *service.PatrolServiceManager
}

// NewServiceHandler creates a new service handler
func NewServiceHandler(serviceManager *service.PatrolServiceManager) *ServiceHandler {
	return &ServiceHandler{serviceManager: serviceManager}
}

// List returns patrol services
// @Summary List services
// @Description Get all patrol services (admin only)
// @Tags Services
// @Produce json
// @Security BearerAuth
// @Param active query bool false "Only active services"
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Router /services [get]
func (h *ServiceHandler) List(c *gin.Context) {
	if err := service.CanManageCheckpointsOrUsers(middleware.CurrentUser(c)); err != nil {
		respondError(c, err)
		return
	}

	activeOnly, _ := strconv.ParseBool(c.DefaultQuery("active", "false"))
	services, err := h.serviceManager.List(c.Request.Context(), activeOnly)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  services,
		"total": len(services),
	})
}

// Get returns a single service
// @Summary Get service
// @Description Get a patrol service by ID (admin only)
// @Tags Services
// @Produce json
// @Security BearerAuth
// @Param id path int true "Service ID"
// @Success 200 {object} model.Service
// @Failure 401 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /services/{id} [get]
func (h *ServiceHandler) Get(c *gin.Context) {
	if err := service.CanManageCheckpointsOrUsers(middleware.CurrentUser(c)); err != nil {
		respondError(c, err)
		return
	}

	id, ok := pathID(c)
	if !ok {
		return
	}

	svc, err := h.serviceManager.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, svc)
}

// Create creates a service
// @Summary Create service
// @Description Create a new patrol service (admin only)
// @Tags Services
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param service body model.CreateServiceRequest true "Service data"
// @Success 201 {object} model.Service
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /services [post]
func (h *ServiceHandler) Create(c *gin.Context) {
	if err := service.CanManageCheckpointsOrUsers(middleware.CurrentUser(c)); err != nil {
		respondError(c, err)
		return
	}

	var req model.CreateServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	svc, err := h.serviceManager.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, svc)
}

// Update updates a service
// @Summary Update service
// @Description Update patrol service fields (admin only)
// @Tags Services
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Service ID"
// @Param service body model.UpdateServiceRequest true "Fields to update"
// @Success 200 {object} model.Service
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /services/{id} [put]
func (h *ServiceHandler) Update(c *gin.Context) {
	if err := service.CanManageCheckpointsOrUsers(middleware.CurrentUser(c)); err != nil {
		respondError(c, err)
		return
	}

	id, ok := pathID(c)
	if !ok {
		return
	}

	var req model.UpdateServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	svc, err := h.serviceManager.Update(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, svc)
}

// Delete removes a service
// @Summary Delete service
// @Description Soft-delete a patrol service; it must have no checkpoints (admin only)
// @Tags Services
// @Produce json
// @Security BearerAuth
// @Param id path int true "Service ID"
// @Success 200 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /services/{id} [delete]
func (h *ServiceHandler) Delete(c *gin.Context) {
	if err := service.CanManageCheckpointsOrUsers(middleware.CurrentUser(c)); err != nil {
		respondError(c, err)
		return
	}

	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.serviceManager.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "service deleted"})
}

// Stats returns per-service counters
// @Summary Service stats
// @Description Get checkpoint, guard and visit counters for a service
// @Tags Services
// @Produce json
// @Security BearerAuth
// @Param id path int true "Service ID"
// @Success 200 {object} service.ServiceStats
// @Failure 401 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /services/{id}/stats [get]
func (h *ServiceHandler) Stats(c *gin.Context) {
	identity := middleware.CurrentUser(c)

	id, ok := pathID(c)
	if !ok {
		return
	}

	// Supervisors may view their own service's stats, admins any
	if identity.Role != model.RoleAdmin {
		if identity.Role != model.RoleSupervisor || identity.ServiceID == nil || *identity.ServiceID != id {
			c.JSON(http.StatusForbidden, gin.H{"error": "no access to this service"})
			return
		}
	}

	stats, err := h.serviceManager.Stats(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}
