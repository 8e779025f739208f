package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/leozw/vessel-guardian/internal/core"
	"github.com/leozw/vessel-guardian/internal/provider"
	"github.com/leozw/vessel-guardian/internal/refresh"
	"github.com/leozw/vessel-guardian/internal/tenant"
	"go.uber.org/zap"
)

// VesselService is the tenant-scoped vessel surface. *refresh.Orchestrator
// implements it.
type VesselService interface {
	RegisterVessel(ctx context.Context, tid tenant.ID, name string, mmsi, imo *string) (*core.Vessel, error)
	FleetSnapshot(ctx context.Context, tid tenant.ID) ([]*refresh.VesselSnapshot, error)
	Snapshot(ctx context.Context, tid tenant.ID, vesselID string) (*refresh.VesselSnapshot, error)
	RefreshVessel(ctx context.Context, tid tenant.ID, vesselID string) (*refresh.VesselSnapshot, error)
	Ingest(ctx context.Context, tid tenant.ID, vesselID string, rec *core.PositionRecord) (*refresh.VesselSnapshot, error)
	ScanZone(ctx context.Context, tid tenant.ID, bbox provider.BBox) ([]*refresh.VesselSnapshot, error)
	ZonesAt(ctx context.Context, tid tenant.ID, p core.LatLon) ([]*core.GeofenceZone, error)
}

type PositionHistory interface {
	History(ctx context.Context, tid tenant.ID, vesselID string, limit int) ([]*core.PositionRecord, error)
}

type EventQuery interface {
	Query(ctx context.Context, tid tenant.ID, filters core.OperationLogFilters, limit, offset int) ([]*core.OperationLogEntry, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	vessels   VesselService
	positions PositionHistory
	events    EventQuery
	db        Pinger
	logger    *zap.Logger
}

func NewHandler(vessels VesselService, positions PositionHistory, events EventQuery, db Pinger, logger *zap.Logger) *Handler {
	return &Handler{
		vessels:   vessels,
		positions: positions,
		events:    events,
		db:        db,
		logger:    logger,
	}
}

// tenantID reads the tenant set by the tenant middleware and aborts the request
// when it is missing.
func tenantID(c *gin.Context) (tenant.ID, bool) {
	tid, err := tenant.Require(c.GetString("tenant_id"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Tenant not resolved"})
		c.Abort()
		return "", false
	}
	return tid, true
}
