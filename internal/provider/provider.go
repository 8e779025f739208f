package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/leozw/vessel-guardian/internal/core"
)

var ErrInvalidBBox = errors.New("invalid bounding box")

// Position is a single report returned by a provider.
type Position struct {
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	Timestamp time.Time `json:"timestamp"`
	SOG       *float64  `json:"sog,omitempty"`
	COG       *float64  `json:"cog,omitempty"`
	Heading   *float64  `json:"heading,omitempty"`
	NavStatus *string   `json:"navStatus,omitempty"`
	MMSI      string    `json:"mmsi,omitempty"`
	IMO       string    `json:"imo,omitempty"`
}

// Record converts a provider report into a position record for vesselID. The
// provider's navigational status is not copied: the record's NavStatus carries the
// derived vessel status.
func (p *Position) Record(vesselID, providerName string) *core.PositionRecord {
	return &core.PositionRecord{
		VesselID:     vesselID,
		Lat:          p.Lat,
		Lon:          p.Lon,
		TimestampUTC: p.Timestamp.UTC(),
		SOG:          p.SOG,
		COG:          p.COG,
		Heading:      p.Heading,
		Source:       core.ProviderSource(providerName),
	}
}

// BBox is a query rectangle in degrees.
type BBox struct {
	MinLat float64 `json:"min_lat" form:"min_lat"`
	MaxLat float64 `json:"max_lat" form:"max_lat"`
	MinLon float64 `json:"min_lon" form:"min_lon"`
	MaxLon float64 `json:"max_lon" form:"max_lon"`
}

func (b BBox) Validate() error {
	switch {
	case !(core.LatLon{Lat: b.MinLat, Lon: b.MinLon}).Valid(),
		!(core.LatLon{Lat: b.MaxLat, Lon: b.MaxLon}).Valid():
		return fmt.Errorf("%w: bounds out of range", ErrInvalidBBox)
	case b.MinLat >= b.MaxLat:
		return fmt.Errorf("%w: min_lat must be below max_lat", ErrInvalidBBox)
	case b.MinLon >= b.MaxLon:
		return fmt.Errorf("%w: min_lon must be below max_lon", ErrInvalidBBox)
	case b.MaxLat-b.MinLat > 90:
		return fmt.Errorf("%w: latitude span exceeds 90 degrees", ErrInvalidBBox)
	case b.MaxLon-b.MinLon > 180:
		return fmt.Errorf("%w: longitude span exceeds 180 degrees", ErrInvalidBBox)
	}
	return nil
}

// Adapter is the uniform contract over one tracking vendor.
type Adapter interface {
	Name() string
	Configured() bool
	FetchByIdentifier(ctx context.Context, identifier string, idType core.IdentifierType) (*Position, error)
	FetchInZone(ctx context.Context, bbox BBox) ([]Position, error)
}

// StatusError is a non-2xx provider response other than 401, 403 and 404.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("provider %s returned status %d", e.Provider, e.StatusCode)
}

// Factory builds an adapter bound to one set of credentials.
type Factory func(apiKey string) Adapter

// Registry resolves providers by name.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	defaults  map[string]string
}

func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		defaults:  make(map[string]string),
	}
}

// Register adds a provider. defaultKey is used for tenants without their own
// credentials and may be empty.
func (r *Registry) Register(name string, factory Factory, defaultKey string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
	r.defaults[name] = defaultKey
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// For returns the adapter for name using the tenant's settings when they are
// configured, and the process-wide key otherwise. Settings that exist but are
// disabled make the provider unavailable to that tenant.
func (r *Registry) For(name string, settings *core.ProviderSettings) (Adapter, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	key := r.defaults[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: unknown provider %q", core.ErrProviderNotConfigured, name)
	}
	if settings != nil && !settings.Enabled {
		return nil, fmt.Errorf("%w: %s disabled for tenant", core.ErrProviderNotConfigured, name)
	}
	if settings.Configured() {
		key = settings.APIKey
	}
	return factory(key), nil
}
