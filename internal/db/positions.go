package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/leozw/vessel-guardian/internal/core"
	"github.com/leozw/vessel-guardian/internal/tenant"
)

const positionColumns = `id, vessel_id, tenant_id, lat, lon, timestamp_utc,
               sog, cog, heading, nav_status, source`

// InsertAndTrim stores a position and deletes the vessel's records beyond keep, in one
// transaction. An advisory lock per (tenant, vessel) serializes writers across processes.
func (r *Repository) InsertAndTrim(ctx context.Context, tid tenant.ID, rec *core.PositionRecord, keep int) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return mapError(err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`SELECT pg_advisory_xact_lock(hashtext($1 || '/' || $2))`,
		string(tid), rec.VesselID,
	); err != nil {
		return mapError(err)
	}

	query := `
        INSERT INTO vessel_positions (
            id, vessel_id, tenant_id, lat, lon, timestamp_utc,
            sog, cog, heading, nav_status, source
        ) VALUES (
            :id, :vessel_id, :tenant_id, :lat, :lon, :timestamp_utc,
            :sog, :cog, :heading, :nav_status, :source
        )`

	row := *rec
	row.TenantID = string(tid)
	if _, err := tx.NamedExecContext(ctx, query, &row); err != nil {
		return mapError(err)
	}

	trimQuery := `
        DELETE FROM vessel_positions
        WHERE tenant_id = $1 AND vessel_id = $2
        AND id IN (
            SELECT id FROM vessel_positions
            WHERE tenant_id = $1 AND vessel_id = $2
            ORDER BY timestamp_utc DESC, seq DESC
            OFFSET $3
        )`

	if _, err := tx.ExecContext(ctx, trimQuery, string(tid), rec.VesselID, keep); err != nil {
		return mapError(err)
	}

	return mapError(tx.Commit())
}

func (r *Repository) Latest(ctx context.Context, tid tenant.ID, vesselID string) (*core.PositionRecord, error) {
	var rec core.PositionRecord
	query := `
        SELECT ` + positionColumns + `
        FROM vessel_positions
        WHERE tenant_id = $1 AND vessel_id = $2
        ORDER BY timestamp_utc DESC, seq DESC
        LIMIT 1`

	err := r.db.GetContext(ctx, &rec, query, string(tid), vesselID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, mapError(err)
	}
	return &rec, nil
}

func (r *Repository) History(ctx context.Context, tid tenant.ID, vesselID string, limit int) ([]*core.PositionRecord, error) {
	records := []*core.PositionRecord{}
	query := `
        SELECT ` + positionColumns + `
        FROM vessel_positions
        WHERE tenant_id = $1 AND vessel_id = $2
        ORDER BY timestamp_utc DESC, seq DESC
        LIMIT $3`

	if err := r.db.SelectContext(ctx, &records, query, string(tid), vesselID, limit); err != nil {
		return nil, mapError(err)
	}
	return records, nil
}
