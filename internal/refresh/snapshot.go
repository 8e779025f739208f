package refresh

import (
	"context"
	"fmt"

	"github.com/leozw/vessel-guardian/internal/core"
	"github.com/leozw/vessel-guardian/internal/geofence"
	"github.com/leozw/vessel-guardian/internal/positions"
	"github.com/leozw/vessel-guardian/internal/status"
	"github.com/leozw/vessel-guardian/internal/tenant"
	"go.uber.org/zap"
)

// Outcome records what happened to one vessel during a refresh.
type Outcome string

const (
	OutcomeCached             Outcome = "cached"
	OutcomeFetched            Outcome = "fetched"
	OutcomeIngested           Outcome = "ingested"
	OutcomeStored             Outcome = "stored"
	OutcomeStaleReport        Outcome = "stale_report"
	OutcomeNoIdentifier       Outcome = "no_identifier"
	OutcomeInvalidIdentifier  Outcome = "invalid_identifier"
	OutcomeRateLimited        Outcome = "rate_limited"
	OutcomeNotFound           Outcome = "not_found"
	OutcomeNotConfigured      Outcome = "not_configured"
	OutcomeInvalidCredentials Outcome = "invalid_credentials"
	OutcomeProviderError      Outcome = "provider_error"
	OutcomeStorageUnavailable Outcome = "storage_unavailable"
)

// Degraded reasons reported once per fleet refresh.
const (
	DegradedNotConfigured      = "provider_not_configured"
	DegradedInvalidCredentials = "invalid_credentials"
	DegradedProviderError      = "provider_error"
	DegradedStorage            = "storage_unavailable"
)

// VesselSnapshot is a vessel with its derived status and best known position.
// Position is nil when nothing is stored for the vessel; a stored position
// older than the freshness window is returned with Stale set.
type VesselSnapshot struct {
	Vessel            *core.Vessel         `json:"vessel"`
	Status            core.VesselStatus    `json:"status"`
	Position          *core.PositionRecord `json:"position"`
	Stale             bool                 `json:"stale"`
	Zones             []string             `json:"zones"`
	ActivePortCall    *core.PortCall       `json:"active_port_call,omitempty"`
	Source            core.DataSource      `json:"data_source"`
	Outcome           Outcome              `json:"outcome,omitempty"`
	RetryAfterSeconds int                  `json:"retry_after_seconds,omitempty"`
}

func (s *VesselSnapshot) setPosition(rec *core.PositionRecord, zones []*core.GeofenceZone) {
	s.Position = rec
	s.Zones = []string{}
	if rec != nil {
		s.Zones = geofence.Evaluate(rec.Point(), zones)
	}
}

type FleetResult struct {
	TenantID    string            `json:"tenant_id"`
	Vessels     []*VesselSnapshot `json:"vessels"`
	Fetched     int               `json:"fetched"`
	Cached      int               `json:"cached"`
	RateLimited int               `json:"rate_limited"`
	Degraded    []string          `json:"degraded"`
}

// Snapshot returns the vessel with its stored position without calling a provider.
func (o *Orchestrator) Snapshot(ctx context.Context, tid tenant.ID, vesselID string) (*VesselSnapshot, error) {
	if _, err := tenant.Require(tid); err != nil {
		return nil, err
	}
	v, err := o.fleet.GetVessel(ctx, tid, vesselID)
	if err != nil {
		return nil, err
	}
	zones, err := o.fleet.ListZones(ctx, tid)
	if err != nil {
		o.logger.Warn("Failed to load geofence zones",
			zap.Error(err),
			zap.String("tenant_id", string(tid)),
		)
		zones = nil
	}
	return o.snapshot(ctx, tid, v, zones), nil
}

// FleetSnapshot returns every vessel of the tenant with its stored position.
func (o *Orchestrator) FleetSnapshot(ctx context.Context, tid tenant.ID) ([]*VesselSnapshot, error) {
	if _, err := tenant.Require(tid); err != nil {
		return nil, err
	}
	vessels, err := o.fleet.ListVessels(ctx, tid)
	if err != nil {
		return nil, fmt.Errorf("list vessels: %w", err)
	}
	zones, err := o.fleet.ListZones(ctx, tid)
	if err != nil {
		o.logger.Warn("Failed to load geofence zones",
			zap.Error(err),
			zap.String("tenant_id", string(tid)),
		)
		zones = nil
	}

	snaps := make([]*VesselSnapshot, 0, len(vessels))
	for _, v := range vessels {
		snaps = append(snaps, o.snapshot(ctx, tid, v, zones))
	}
	return snaps, nil
}

func (o *Orchestrator) snapshot(ctx context.Context, tid tenant.ID, v *core.Vessel, zones []*core.GeofenceZone) *VesselSnapshot {
	logger := o.logger.With(
		zap.String("tenant_id", string(tid)),
		zap.String("vessel_id", v.ID),
	)
	snap := &VesselSnapshot{Vessel: v, Source: core.DataSourcePrimary, Outcome: OutcomeStored}
	snap.ActivePortCall = o.activePortCall(ctx, tid, v.ID, logger)
	snap.Status = status.Derive(snap.ActivePortCall)

	rec, err := o.store.Latest(ctx, tid, v.ID)
	if err != nil {
		logger.Warn("Failed to read latest position", zap.Error(err))
		snap.Source = core.DataSourceUnavailable
		snap.Outcome = OutcomeStorageUnavailable
		rec = nil
	}
	snap.setPosition(rec, zones)
	snap.Stale = rec != nil && !positions.Fresh(rec, o.now(), o.opts.FreshFor)
	return snap
}

// ZonesAt returns the tenant's zones containing p.
func (o *Orchestrator) ZonesAt(ctx context.Context, tid tenant.ID, p core.LatLon) ([]*core.GeofenceZone, error) {
	if _, err := tenant.Require(tid); err != nil {
		return nil, err
	}
	if !p.Valid() {
		return nil, core.ErrInvalidPosition
	}
	zones, err := o.fleet.ListZones(ctx, tid)
	if err != nil {
		return nil, fmt.Errorf("list zones: %w", err)
	}
	out := []*core.GeofenceZone{}
	for _, z := range zones {
		if geofence.Contains(z, p) {
			out = append(out, z)
		}
	}
	return out, nil
}
