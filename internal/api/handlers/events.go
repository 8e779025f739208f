package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/leozw/vessel-guardian/internal/core"
	"github.com/leozw/vessel-guardian/internal/oplog"
)

func (h *Handler) ListEvents(c *gin.Context) {
	tid, ok := tenantID(c)
	if !ok {
		return
	}

	filters := core.OperationLogFilters{
		VesselID:  c.Query("vessel_id"),
		EventType: core.EventType(c.Query("event_type")),
	}
	if filters.EventType != "" && !filters.EventType.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid event_type"})
		return
	}
	for name, dst := range map[string]**time.Time{"since": &filters.Since, "until": &filters.Until} {
		raw := c.Query(name)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
			return
		}
		*dst = &t
	}

	limit, ok := queryInt(c, "limit", oplog.DefaultQueryLimit)
	if !ok {
		return
	}
	offset, ok := queryInt(c, "offset", 0)
	if !ok {
		return
	}

	entries, err := h.events.Query(c.Request.Context(), tid, filters, limit, offset)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"events": entries,
		"offset": offset,
	})
}
