package geofence

import (
	"math"
	"sort"

	"github.com/leozw/vessel-guardian/internal/core"
)

// EarthRadiusMeters is the mean Earth radius used for haversine distances.
const EarthRadiusMeters = 6371000.0

// HaversineMeters returns the great-circle distance between two points.
func HaversineMeters(a, b core.LatLon) float64 {
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusMeters * c
}

// PolygonContains reports whether p lies inside the polygon using ray casting on
// (lon, lat). Polygons with fewer than three vertices contain nothing.
func PolygonContains(vertices []core.LatLon, p core.LatLon) bool {
	n := len(vertices)
	if n < 3 {
		return false
	}

	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := vertices[i].Lon, vertices[i].Lat
		xj, yj := vertices[j].Lon, vertices[j].Lat

		if (yi > p.Lat) != (yj > p.Lat) &&
			p.Lon < (xj-xi)*(p.Lat-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}

// CircleContains reports whether p is within radiusMeters of center. The boundary is
// inclusive: a point at exactly radiusMeters is contained.
func CircleContains(center core.LatLon, radiusMeters float64, p core.LatLon) bool {
	if radiusMeters <= 0 {
		return false
	}
	return HaversineMeters(center, p) <= radiusMeters
}

// Contains tests a single zone.
func Contains(zone *core.GeofenceZone, p core.LatLon) bool {
	switch zone.Shape.Kind {
	case core.ShapePolygon:
		return PolygonContains(zone.Shape.Vertices, p)
	case core.ShapeCircle:
		if zone.Shape.Center == nil {
			return false
		}
		return CircleContains(*zone.Shape.Center, zone.Radius(), p)
	default:
		return false
	}
}

// Evaluate returns the IDs of every zone containing p, sorted. Zones are tested
// independently so overlapping zones all match.
func Evaluate(p core.LatLon, zones []*core.GeofenceZone) []string {
	ids := []string{}
	for _, z := range zones {
		if z != nil && Contains(z, p) {
			ids = append(ids, z.ID)
		}
	}
	sort.Strings(ids)
	return ids
}

// Entries returns the zones in curr that were not in prev.
func Entries(prev, curr []string) []string {
	seen := make(map[string]struct{}, len(prev))
	for _, id := range prev {
		seen[id] = struct{}{}
	}

	entered := []string{}
	for _, id := range curr {
		if _, ok := seen[id]; !ok {
			entered = append(entered, id)
		}
	}
	return entered
}
