package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"openpatrol/api/internal/service"
)

// respondError writes a service error as the matching HTTP status. Unknown
// errors become opaque 500s.
func respondError(c *gin.Context, err error) {
	var svcErr *service.Error
	if !errors.As(err, &svcErr) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	body := gin.H{
		"error": svcErr.Message,
		"code":  string(svcErr.Kind),
	}
	if svcErr.Kind == service.KindOutOfRange {
		body["distance_meters"] = svcErr.DistanceM
		body["max_allowed_meters"] = svcErr.RadiusM
	}

	c.JSON(statusForKind(svcErr.Kind), body)
}

func statusForKind(kind service.Kind) int {
	switch kind {
	case service.KindForbidden:
		return http.StatusForbidden
	case service.KindCheckpointNotFound, service.KindNotFound, service.KindGuardNotEligible:
		return http.StatusNotFound
	case service.KindConflict:
		return http.StatusConflict
	case service.KindInvalidPayload, service.KindCheckpointInactive, service.KindServiceMismatch,
		service.KindNoServiceAssigned, service.KindOutOfRange, service.KindInvalidArgument:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// pathID parses the numeric :id path parameter.
func pathID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return uint(id), true
}

// queryUint parses an optional numeric query parameter.
func queryUint(c *gin.Context, name string) *uint {
	raw := c.Query(name)
	if raw == "" {
		return nil
	}
	value, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return nil
	}
	v := uint(value)
	return &v
}
