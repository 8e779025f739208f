package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/leozw/vessel-guardian/internal/core"
	"github.com/leozw/vessel-guardian/internal/positions"
	"github.com/leozw/vessel-guardian/internal/refresh"
)

func (h *Handler) ListVessels(c *gin.Context) {
	tid, ok := tenantID(c)
	if !ok {
		return
	}

	snaps, err := h.vessels.FleetSnapshot(c.Request.Context(), tid)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"vessels": snaps,
		"total":   len(snaps),
	})
}

type vesselRequest struct {
	Name string  `json:"name" binding:"required"`
	MMSI *string `json:"mmsi"`
	IMO  *string `json:"imo"`
}

func (h *Handler) CreateVessel(c *gin.Context) {
	tid, ok := tenantID(c)
	if !ok {
		return
	}

	var req vesselRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	v, err := h.vessels.RegisterVessel(c.Request.Context(), tid, req.Name, req.MMSI, req.IMO)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, v)
}

func (h *Handler) GetVessel(c *gin.Context) {
	tid, ok := tenantID(c)
	if !ok {
		return
	}

	snap, err := h.vessels.Snapshot(c.Request.Context(), tid, c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, snap)
}

func (h *Handler) GetPositions(c *gin.Context) {
	tid, ok := tenantID(c)
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit", positions.DefaultHistoryLimit)
	if !ok {
		return
	}

	history, err := h.positions.History(c.Request.Context(), tid, c.Param("id"), limit)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"positions": history,
		"limit":     positions.ClampLimit(limit),
	})
}

type positionRequest struct {
	Lat       *float64   `json:"lat" binding:"required"`
	Lon       *float64   `json:"lon" binding:"required"`
	Timestamp *time.Time `json:"timestamp"`
	SOG       *float64   `json:"sog"`
	COG       *float64   `json:"cog"`
	Heading   *float64   `json:"heading"`
}

// PostPosition injects a manual position for a vessel.
func (h *Handler) PostPosition(c *gin.Context) {
	tid, ok := tenantID(c)
	if !ok {
		return
	}

	var req positionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ts := time.Now().UTC()
	if req.Timestamp != nil {
		ts = req.Timestamp.UTC()
	}
	rec := &core.PositionRecord{
		Lat:          *req.Lat,
		Lon:          *req.Lon,
		TimestampUTC: ts,
		SOG:          req.SOG,
		COG:          req.COG,
		Heading:      req.Heading,
		Source:       core.SourceManual,
	}

	snap, err := h.vessels.Ingest(c.Request.Context(), tid, c.Param("id"), rec)
	if err != nil {
		h.respondError(c, err)
		return
	}

	// An older report leaves the stored position in place.
	if snap.Outcome == refresh.OutcomeStaleReport {
		c.JSON(http.StatusOK, snap)
		return
	}
	c.JSON(http.StatusCreated, snap)
}

// RefreshVessel refreshes one vessel from the tracking provider now.
func (h *Handler) RefreshVessel(c *gin.Context) {
	tid, ok := tenantID(c)
	if !ok {
		return
	}

	snap, err := h.vessels.RefreshVessel(c.Request.Context(), tid, c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	if snap.RetryAfterSeconds > 0 {
		c.Header("Retry-After", strconv.Itoa(snap.RetryAfterSeconds))
	}
	c.JSON(http.StatusOK, snap)
}
