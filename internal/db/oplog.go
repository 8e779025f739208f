package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/leozw/vessel-guardian/internal/core"
	"github.com/leozw/vessel-guardian/internal/tenant"
)

func (r *Repository) AppendOperationLog(ctx context.Context, tid tenant.ID, entry *core.OperationLogEntry) error {
	query := `
        INSERT INTO operation_logs (
            id, tenant_id, vessel_id, event_type, description, timestamp,
            position_lat, position_lon, previous_status, current_status, zone_id
        ) VALUES (
            :id, :tenant_id, :vessel_id, :event_type, :description, :timestamp,
            :position_lat, :position_lon, :previous_status, :current_status, :zone_id
        )`

	row := *entry
	row.TenantID = string(tid)
	_, err := r.db.NamedExecContext(ctx, query, &row)
	return mapError(err)
}

func (r *Repository) QueryOperationLogs(ctx context.Context, tid tenant.ID, filters core.OperationLogFilters, limit, offset int) ([]*core.OperationLogEntry, error) {
	conditions := []string{"tenant_id = $1"}
	args := []interface{}{string(tid)}

	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}
	if filters.VesselID != "" {
		add("vessel_id = $%d", filters.VesselID)
	}
	if filters.EventType != "" {
		add("event_type = $%d", string(filters.EventType))
	}
	if filters.Since != nil {
		add("timestamp >= $%d", *filters.Since)
	}
	if filters.Until != nil {
		add("timestamp < $%d", *filters.Until)
	}

	args = append(args, limit, offset)
	query := fmt.Sprintf(`
        SELECT id, tenant_id, vessel_id, event_type, description, timestamp,
               position_lat, position_lon, previous_status, current_status, zone_id
        FROM operation_logs
        WHERE %s
        ORDER BY timestamp DESC, seq DESC
        LIMIT $%d OFFSET $%d`,
		strings.Join(conditions, " AND "), len(args)-1, len(args))

	entries := []*core.OperationLogEntry{}
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, mapError(err)
	}
	return entries, nil
}
