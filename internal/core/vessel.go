package core

import (
	"time"
)

type IdentifierType string

const (
	IdentifierMMSI IdentifierType = "mmsi"
	IdentifierIMO  IdentifierType = "imo"
)

type Vessel struct {
	ID       string  `json:"id" db:"id"`
	TenantID string  `json:"-" db:"tenant_id"`
	Name     string  `json:"name" db:"name"`
	MMSI     *string `json:"mmsi,omitempty" db:"mmsi"`
	IMO      *string `json:"imo,omitempty" db:"imo"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Identifier returns the identifier used for provider lookups. MMSI wins over IMO.
func (v *Vessel) Identifier() (string, IdentifierType, bool) {
	if v.MMSI != nil && *v.MMSI != "" {
		return *v.MMSI, IdentifierMMSI, true
	}
	if v.IMO != nil && *v.IMO != "" {
		return *v.IMO, IdentifierIMO, true
	}
	return "", "", false
}

type VesselStatus string

const (
	StatusAtSea   VesselStatus = "AT_SEA"
	StatusInbound VesselStatus = "INBOUND"
	StatusInPort  VesselStatus = "IN_PORT"
)

func (s VesselStatus) Valid() bool {
	switch s {
	case StatusAtSea, StatusInbound, StatusInPort:
		return true
	}
	return false
}

type PortCallStatus string

const (
	PortCallPlanned    PortCallStatus = "PLANNED"
	PortCallInProgress PortCallStatus = "IN_PROGRESS"
	PortCallCompleted  PortCallStatus = "COMPLETED"
	PortCallCancelled  PortCallStatus = "CANCELLED"
)

// PortCall is a planned or in-progress visit of a vessel to a port.
type PortCall struct {
	ID       string         `json:"id" db:"id"`
	TenantID string         `json:"-" db:"tenant_id"`
	VesselID string         `json:"vessel_id" db:"vessel_id"`
	PortName string         `json:"port_name" db:"port_name"`
	Status   PortCallStatus `json:"status" db:"status"`
	ETA      *time.Time     `json:"eta,omitempty" db:"eta"`
	ETD      *time.Time     `json:"etd,omitempty" db:"etd"`
}

func (p *PortCall) Active() bool {
	return p != nil && (p.Status == PortCallPlanned || p.Status == PortCallInProgress)
}

// ActivePortCall picks the port call driving status derivation: an in-progress call
// beats a planned one, then the earliest ETA wins.
func ActivePortCall(calls []*PortCall) *PortCall {
	var best *PortCall
	for _, pc := range calls {
		if !pc.Active() {
			continue
		}
		if best == nil || portCallBefore(pc, best) {
			best = pc
		}
	}
	return best
}

func portCallBefore(a, b *PortCall) bool {
	if a.Status != b.Status {
		return a.Status == PortCallInProgress
	}
	switch {
	case a.ETA == nil:
		return false
	case b.ETA == nil:
		return true
	default:
		return a.ETA.Before(*b.ETA)
	}
}
