package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/leozw/vessel-guardian/internal/core"
	"github.com/leozw/vessel-guardian/internal/tenant"
)

// Vessels

func (r *Repository) CreateVessel(ctx context.Context, tid tenant.ID, v *core.Vessel) error {
	query := `
        INSERT INTO vessels (id, tenant_id, name, mmsi, imo, created_at, updated_at)
        VALUES (:id, :tenant_id, :name, :mmsi, :imo, :created_at, :updated_at)`

	row := *v
	row.TenantID = string(tid)
	_, err := r.db.NamedExecContext(ctx, query, &row)
	return mapError(err)
}

func (r *Repository) GetVessel(ctx context.Context, tid tenant.ID, id string) (*core.Vessel, error) {
	var v core.Vessel
	query := `
        SELECT id, tenant_id, name, mmsi, imo, created_at, updated_at
        FROM vessels
        WHERE id = $1 AND tenant_id = $2`

	err := r.db.GetContext(ctx, &v, query, id, string(tid))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, mapError(err)
	}
	return &v, nil
}

func (r *Repository) ListVessels(ctx context.Context, tid tenant.ID) ([]*core.Vessel, error) {
	vessels := []*core.Vessel{}
	query := `
        SELECT id, tenant_id, name, mmsi, imo, created_at, updated_at
        FROM vessels
        WHERE tenant_id = $1
        ORDER BY name`

	if err := r.db.SelectContext(ctx, &vessels, query, string(tid)); err != nil {
		return nil, mapError(err)
	}
	return vessels, nil
}

func (r *Repository) VesselExists(ctx context.Context, tid tenant.ID, id string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM vessels WHERE id = $1 AND tenant_id = $2)`
	err := r.db.GetContext(ctx, &exists, query, id, string(tid))
	return exists, mapError(err)
}

// Port calls

func (r *Repository) ActivePortCalls(ctx context.Context, tid tenant.ID, vesselID string) ([]*core.PortCall, error) {
	calls := []*core.PortCall{}
	query := `
        SELECT id, tenant_id, vessel_id, port_name, status, eta, etd
        FROM port_calls
        WHERE tenant_id = $1 AND vessel_id = $2
        AND status IN ('PLANNED', 'IN_PROGRESS')
        ORDER BY eta NULLS LAST`

	if err := r.db.SelectContext(ctx, &calls, query, string(tid), vesselID); err != nil {
		return nil, mapError(err)
	}
	return calls, nil
}

// Zones

func (r *Repository) ListZones(ctx context.Context, tid tenant.ID) ([]*core.GeofenceZone, error) {
	zones := []*core.GeofenceZone{}
	query := `
        SELECT id, tenant_id, name, type, shape
        FROM geofence_zones
        WHERE tenant_id = $1
        ORDER BY id`

	if err := r.db.SelectContext(ctx, &zones, query, string(tid)); err != nil {
		return nil, mapError(err)
	}
	return zones, nil
}

// Tenants

func (r *Repository) ListActiveTenants(ctx context.Context) ([]*core.Tenant, error) {
	tenants := []*core.Tenant{}
	query := `
        SELECT id, name, is_active, created_at, updated_at
        FROM tenants
        WHERE is_active = true
        ORDER BY id`

	if err := r.db.SelectContext(ctx, &tenants, query); err != nil {
		return nil, mapError(err)
	}
	return tenants, nil
}

// ProviderSettings returns nil, nil when the tenant has no row for provider.
func (r *Repository) ProviderSettings(ctx context.Context, tid tenant.ID, provider string) (*core.ProviderSettings, error) {
	var s core.ProviderSettings
	query := `
        SELECT tenant_id, provider, api_key, enabled
        FROM tenant_provider_settings
        WHERE tenant_id = $1 AND provider = $2`

	err := r.db.GetContext(ctx, &s, query, string(tid), provider)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, mapError(err)
	}
	return &s, nil
}
