package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"openpatrol/api/internal/middleware"
	"openpatrol/api/internal/service"
)

// ReportHandler handles visit report requests
type ReportHandler struct {
	reportService *service.ReportService
}

// NewReportHandler creates a new report handler
func NewReportHandler(reportService *service.ReportService) *ReportHandler {
	return &ReportHandler{reportService: reportService}
}

// Visits returns report rows
// @Summary Visit report
// @Description Get visit report rows with resolved names; supervisors are pinned to their own service
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param service_id query int false "Service filter (admins only)"
// @Param checkpoint_id query int false "Checkpoint filter"
// @Param guard_id query int false "Guard filter"
// @Param from query string false "Start of range (RFC3339)"
// @Param to query string false "End of range (RFC3339)"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Router /reports/visits [get]
func (h *ReportHandler) Visits(c *gin.Context) {
	filter, ok := h.buildFilter(c)
	if !ok {
		return
	}

	rows, err := h.reportService.Query(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  rows,
		"total": len(rows),
	})
}

// Summary returns visit counts by kind
// @Summary Visit report summary
// @Description Get aggregated visit counts for a report filter
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param service_id query int false "Service filter (admins only)"
// @Param checkpoint_id query int false "Checkpoint filter"
// @Param guard_id query int false "Guard filter"
// @Param from query string false "Start of range (RFC3339)"
// @Param to query string false "End of range (RFC3339)"
// @Success 200 {object} service.VisitReportSummary
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Router /reports/visits/summary [get]
func (h *ReportHandler) Summary(c *gin.Context) {
	filter, ok := h.buildFilter(c)
	if !ok {
		return
	}

	summary, err := h.reportService.Summary(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

// Export downloads the report as XLSX
// @Summary Export visit report
// @Description Download the visit report as an Excel workbook
// @Tags Reports
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Param service_id query int false "Service filter (admins only)"
// @Param checkpoint_id query int false "Checkpoint filter"
// @Param guard_id query int false "Guard filter"
// @Param from query string false "Start of range (RFC3339)"
// @Param to query string false "End of range (RFC3339)"
// @Success 200 {file} binary
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Router /reports/visits/export [get]
func (h *ReportHandler) Export(c *gin.Context) {
	filter, ok := h.buildFilter(c)
	if !ok {
		return
	}

	buf, err := h.reportService.ExportXLSX(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	filename := fmt.Sprintf("visits_%s.xlsx", time.Now().UTC().Format("20060102_150405"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

// buildFilter parses query params and applies the caller's scope.
func (h *ReportHandler) buildFilter(c *gin.Context) (service.VisitReportFilter, bool) {
	filter := service.VisitReportFilter{
		ServiceID:    queryUint(c, "service_id"),
		CheckpointID: queryUint(c, "checkpoint_id"),
		GuardID:      queryUint(c, "guard_id"),
	}

	if raw := c.Query("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'from' timestamp, expected RFC3339"})
			return filter, false
		}
		filter.From = &t
	}
	if raw := c.Query("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'to' timestamp, expected RFC3339"})
			return filter, false
		}
		filter.To = &t
	}

	filter, err := service.ScopeFilter(middleware.CurrentUser(c), filter)
	if err != nil {
		respondError(c, err)
		return filter, false
	}
	return filter, true
}
