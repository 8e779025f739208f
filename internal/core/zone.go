package core

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

type ZoneType string

const (
	ZonePort      ZoneType = "PORT"
	ZoneTerminal  ZoneType = "TERMINAL"
	ZoneBerth     ZoneType = "BERTH"
	ZoneAnchorage ZoneType = "ANCHORAGE"
	ZoneOther     ZoneType = "OTHER"
)

// DefaultRadius is the circle radius in meters used when a zone has none.
func (t ZoneType) DefaultRadius() float64 {
	switch t {
	case ZonePort:
		return 5000
	case ZoneTerminal:
		return 2000
	case ZoneBerth:
		return 500
	default:
		return 10000
	}
}

type ShapeKind string

const (
	ShapePolygon ShapeKind = "polygon"
	ShapeCircle  ShapeKind = "circle"
)

// Shape is a tagged variant: Vertices is used for polygons, Center and
// RadiusMeters for circles.
type Shape struct {
	Kind         ShapeKind `json:"kind"`
	Vertices     []LatLon  `json:"vertices,omitempty"`
	Center       *LatLon   `json:"center,omitempty"`
	RadiusMeters float64   `json:"radius_meters,omitempty"`
}

func Polygon(vertices ...LatLon) Shape {
	return Shape{Kind: ShapePolygon, Vertices: vertices}
}

func Circle(center LatLon, radiusMeters float64) Shape {
	return Shape{Kind: ShapeCircle, Center: &center, RadiusMeters: radiusMeters}
}

// Value and Scan store the shape as JSONB.
func (s Shape) Value() (driver.Value, error) {
	return json.Marshal(s)
}

func (s *Shape) Scan(value interface{}) error {
	if value == nil {
		return fmt.Errorf("zone shape is null")
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	default:
		return fmt.Errorf("unsupported zone shape type %T", value)
	}
}

type GeofenceZone struct {
	ID       string   `json:"id" db:"id"`
	TenantID string   `json:"-" db:"tenant_id"`
	Name     string   `json:"name" db:"name"`
	Type     ZoneType `json:"type" db:"type"`
	Shape    Shape    `json:"shape" db:"shape"`
}

// Radius returns the circle radius, falling back to the zone type default.
func (z *GeofenceZone) Radius() float64 {
	if z.Shape.RadiusMeters > 0 {
		return z.Shape.RadiusMeters
	}
	return z.Type.DefaultRadius()
}
