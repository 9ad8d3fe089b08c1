package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"openpatrol/api/internal/middleware"
	"openpatrol/api/internal/model"
	"openpatrol/api/internal/service"
)

// CheckpointHandler handles checkpoint directory requests
type CheckpointHandler struct {
	checkpointService *service.CheckpointService
}

// NewCheckpointHandler creates a new checkpoint handler
func NewCheckpointHandler(checkpointService *service.CheckpointService) *CheckpointHandler {
	return &CheckpointHandler{checkpointService: checkpointService}
}

// List returns checkpoints visible to the caller
// @Summary List checkpoints
// @Description Get checkpoints; guards and supervisors see their own service, admins may filter
// @Tags Checkpoints
// @Produce json
// @Security BearerAuth
// @Param service_id query int false "Service filter (admins only)"
// @Param active query bool false "Only active checkpoints"
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} map[string]string
// @Router /checkpoints [get]
func (h *CheckpointHandler) List(c *gin.Context) {
	identity := middleware.CurrentUser(c)

	scope, err := service.CheckpointScope(identity, queryUint(c, "service_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	activeOnly, _ := strconv.ParseBool(c.DefaultQuery("active", "false"))

	checkpoints, err := h.checkpointService.List(c.Request.Context(), scope, activeOnly)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  checkpoints,
		"total": len(checkpoints),
	})
}

// Get returns a single checkpoint
// @Summary Get checkpoint
// @Description Get a checkpoint by ID
// @Tags Checkpoints
// @Produce json
// @Security BearerAuth
// @Param id path int true "Checkpoint ID"
// @Success 200 {object} model.Checkpoint
// @Failure 401 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /checkpoints/{id} [get]
func (h *CheckpointHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	identity := middleware.CurrentUser(c)
	checkpoint, err := h.checkpointService.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	// Non-admins only see checkpoints of their own service
	if identity.Role != model.RoleAdmin {
		if identity.ServiceID == nil || *identity.ServiceID != checkpoint.ServiceID {
			c.JSON(http.StatusNotFound, gin.H{"error": "checkpoint not found"})
			return
		}
	}

	c.JSON(http.StatusOK, checkpoint)
}

// Create creates a checkpoint
// @Summary Create checkpoint
// @Description Create a new checkpoint (admin only)
// @Tags Checkpoints
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param checkpoint body model.CreateCheckpointRequest true "Checkpoint data"
// @Success 201 {object} model.Checkpoint
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Router /checkpoints [post]
func (h *CheckpointHandler) Create(c *gin.Context) {
	if err := service.CanManageCheckpointsOrUsers(middleware.CurrentUser(c)); err != nil {
		respondError(c, err)
		return
	}

	var req model.CreateCheckpointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	checkpoint, err := h.checkpointService.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, checkpoint)
}

// Update updates a checkpoint
// @Summary Update checkpoint
// @Description Update checkpoint fields (admin only)
// @Tags Checkpoints
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Checkpoint ID"
// @Param checkpoint body model.UpdateCheckpointRequest true "Fields to update"
// @Success 200 {object} model.Checkpoint
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /checkpoints/{id} [put]
func (h *CheckpointHandler) Update(c *gin.Context) {
	if err := service.CanManageCheckpointsOrUsers(middleware.CurrentUser(c)); err != nil {
		respondError(c, err)
		return
	}

	id, ok := pathID(c)
	if !ok {
		return
	}

	var req model.UpdateCheckpointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	checkpoint, err := h.checkpointService.Update(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, checkpoint)
}

// Delete removes a checkpoint
// @Summary Delete checkpoint
// @Description Soft-delete a checkpoint; its visit history is kept (admin only)
// @Tags Checkpoints
// @Produce json
// @Security BearerAuth
// @Param id path int true "Checkpoint ID"
// @Success 200 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /checkpoints/{id} [delete]
func (h *CheckpointHandler) Delete(c *gin.Context) {
	if err := service.CanManageCheckpointsOrUsers(middleware.CurrentUser(c)); err != nil {
		respondError(c, err)
		return
	}

	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.checkpointService.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "checkpoint deleted"})
}

// QRImage renders the checkpoint's QR code as PNG
// @Summary Checkpoint QR image
// @Description Render the checkpoint's QR payload as a PNG for printing (admin only)
// @Tags Checkpoints
// @Produce png
// @Security BearerAuth
// @Param id path int true "Checkpoint ID"
// @Param size query int false "Image size in pixels" default(512)
// @Success 200 {file} binary
// @Failure 401 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /checkpoints/{id}/qr [get]
func (h *CheckpointHandler) QRImage(c *gin.Context) {
	if err := service.CanManageCheckpointsOrUsers(middleware.CurrentUser(c)); err != nil {
		respondError(c, err)
		return
	}

	id, ok := pathID(c)
	if !ok {
		return
	}

	checkpoint, err := h.checkpointService.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	size, _ := strconv.Atoi(c.DefaultQuery("size", "0"))
	png, err := service.QRImage(service.BuildQRPayload(checkpoint), size)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to render QR code"})
		return
	}

	c.Data(http.StatusOK, "image/png", png)
}
