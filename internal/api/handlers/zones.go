package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/leozw/vessel-guardian/internal/core"
	"github.com/leozw/vessel-guardian/internal/provider"
)

// ZonesContaining lists the tenant's zones that contain ?lat=&lon=.
func (h *Handler) ZonesContaining(c *gin.Context) {
	tid, ok := tenantID(c)
	if !ok {
		return
	}

	lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
	lon, errLon := strconv.ParseFloat(c.Query("lon"), 64)
	if errLat != nil || errLon != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lat and lon are required"})
		return
	}

	zones, err := h.vessels.ZonesAt(c.Request.Context(), tid, core.LatLon{Lat: lat, Lon: lon})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"zones": zones})
}

// ScanZone asks the provider for every vessel inside a bounding box and stores
// positions for the tenant's own vessels among them.
func (h *Handler) ScanZone(c *gin.Context) {
	tid, ok := tenantID(c)
	if !ok {
		return
	}

	var bbox provider.BBox
	if err := c.ShouldBindJSON(&bbox); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	snaps, err := h.vessels.ScanZone(c.Request.Context(), tid, bbox)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"vessels": snaps})
}
