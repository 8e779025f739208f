package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/leozw/vessel-guardian/internal/core"
	"github.com/leozw/vessel-guardian/internal/provider"
	"go.uber.org/zap"
)

// respondError maps domain errors to HTTP responses.
func (h *Handler) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	message := "Internal server error"

	switch {
	case errors.Is(err, core.ErrMissingTenant):
		status, message = http.StatusUnauthorized, "Tenant not resolved"
	case errors.Is(err, core.ErrNotFound):
		status, message = http.StatusNotFound, "Vessel not found"
	case errors.Is(err, core.ErrInvalidPosition),
		errors.Is(err, core.ErrInvalidIdentifier),
		errors.Is(err, core.ErrInvalidVessel),
		errors.Is(err, provider.ErrInvalidBBox):
		status, message = http.StatusBadRequest, err.Error()
	case errors.Is(err, core.ErrRateLimited):
		status, message = http.StatusTooManyRequests, "Provider rate limit reached"
	case errors.Is(err, core.ErrProviderNotConfigured):
		status, message = http.StatusServiceUnavailable, "Tracking provider not configured"
	case errors.Is(err, core.ErrInvalidCredentials):
		status, message = http.StatusBadGateway, "Tracking provider rejected credentials"
	case errors.Is(err, core.ErrStorageUnavailable):
		status, message = http.StatusServiceUnavailable, "Storage unavailable"
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.Error(err),
			zap.String("path", c.FullPath()),
			zap.String("tenant_id", c.GetString("tenant_id")),
		)
	}
	c.JSON(status, gin.H{"error": message})
}

func queryInt(c *gin.Context, name string, def int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return 0, false
	}
	return v, true
}
