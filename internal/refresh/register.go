package refresh

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/leozw/vessel-guardian/internal/core"
	"github.com/leozw/vessel-guardian/internal/provider"
	"github.com/leozw/vessel-guardian/internal/tenant"
	"go.uber.org/zap"
)

// RegisterVessel adds a vessel to the tenant's fleet and records VESSEL_CREATED.
// Identifiers are stored normalized; at least a name is required.
func (o *Orchestrator) RegisterVessel(ctx context.Context, tid tenant.ID, name string, mmsi, imo *string) (*core.Vessel, error) {
	if _, err := tenant.Require(tid); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", core.ErrInvalidVessel)
	}

	now := o.now().UTC()
	v := &core.Vessel{
		ID:        uuid.New().String(),
		TenantID:  string(tid),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if mmsi != nil && strings.TrimSpace(*mmsi) != "" {
		id, err := provider.NormalizeMMSI(*mmsi)
		if err != nil {
			return nil, err
		}
		v.MMSI = &id
	}
	if imo != nil && strings.TrimSpace(*imo) != "" {
		id, err := provider.NormalizeIMO(*imo)
		if err != nil {
			return nil, err
		}
		v.IMO = &id
	}

	if err := o.fleet.CreateVessel(ctx, tid, v); err != nil {
		return nil, fmt.Errorf("create vessel: %w", err)
	}

	logger := o.logger.With(
		zap.String("tenant_id", string(tid)),
		zap.String("vessel_id", v.ID),
	)
	logger.Info("Vessel registered", zap.String("name", v.Name))

	vesselID := v.ID
	o.emit(ctx, tid, logger, core.OperationLogEntry{
		VesselID:    &vesselID,
		EventType:   core.EventVesselCreated,
		Description: fmt.Sprintf("Vessel %s registered", v.Name),
	})
	return v, nil
}
