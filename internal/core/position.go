package core

import (
	"fmt"
	"time"
)

const (
	SourceManual = "manual"
	SourceDemo   = "demo"
)

// ProviderSource tags a record fetched from the named provider.
func ProviderSource(provider string) string {
	return "provider:" + provider
}

type PositionRecord struct {
	ID           string    `json:"id" db:"id"`
	VesselID     string    `json:"vessel_id" db:"vessel_id"`
	TenantID     string    `json:"-" db:"tenant_id"`
	Lat          float64   `json:"lat" db:"lat"`
	Lon          float64   `json:"lon" db:"lon"`
	TimestampUTC time.Time `json:"timestamp" db:"timestamp_utc"`
	SOG          *float64  `json:"sog,omitempty" db:"sog"`
	COG          *float64  `json:"cog,omitempty" db:"cog"`
	Heading      *float64  `json:"heading,omitempty" db:"heading"`
	NavStatus    *string   `json:"nav_status,omitempty" db:"nav_status"`
	Source       string    `json:"source" db:"source"`
}

// LatLon is a WGS84 coordinate pair in degrees.
type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func (p LatLon) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

func (r *PositionRecord) Point() LatLon {
	return LatLon{Lat: r.Lat, Lon: r.Lon}
}

func (r *PositionRecord) Validate() error {
	if !r.Point().Valid() {
		return fmt.Errorf("%w: lat=%f lon=%f", ErrInvalidPosition, r.Lat, r.Lon)
	}
	if r.TimestampUTC.IsZero() {
		return fmt.Errorf("%w: missing timestamp", ErrInvalidPosition)
	}
	return nil
}

// DataSource tells a caller where a snapshot's position came from.
type DataSource string

const (
	DataSourcePrimary     DataSource = "primary"
	DataSourceUnavailable DataSource = "unavailable"
)
