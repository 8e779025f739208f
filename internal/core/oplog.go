package core

import (
	"time"
)

type EventType string

const (
	EventStatusChange   EventType = "STATUS_CHANGE"
	EventGeofenceEntry  EventType = "GEOFENCE_ENTRY"
	EventPositionUpdate EventType = "POSITION_UPDATE"
	EventVesselCreated  EventType = "VESSEL_CREATED"
)

func (e EventType) Valid() bool {
	switch e {
	case EventStatusChange, EventGeofenceEntry, EventPositionUpdate, EventVesselCreated:
		return true
	}
	return false
}

// OperationLogEntry is immutable once written.
type OperationLogEntry struct {
	ID             string        `json:"id" db:"id"`
	TenantID       string        `json:"-" db:"tenant_id"`
	VesselID       *string       `json:"vessel_id,omitempty" db:"vessel_id"`
	EventType      EventType     `json:"event_type" db:"event_type"`
	Description    string        `json:"description" db:"description"`
	Timestamp      time.Time     `json:"timestamp" db:"timestamp"`
	PositionLat    *float64      `json:"position_lat,omitempty" db:"position_lat"`
	PositionLon    *float64      `json:"position_lon,omitempty" db:"position_lon"`
	PreviousStatus *VesselStatus `json:"previous_status,omitempty" db:"previous_status"`
	CurrentStatus  *VesselStatus `json:"current_status,omitempty" db:"current_status"`
	ZoneID         *string       `json:"zone_id,omitempty" db:"zone_id"`
}

type OperationLogFilters struct {
	VesselID  string
	EventType EventType
	Since     *time.Time
	Until     *time.Time
}
