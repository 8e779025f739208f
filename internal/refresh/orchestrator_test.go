package refresh

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leozw/vessel-guardian/internal/cache"
	"github.com/leozw/vessel-guardian/internal/core"
	"github.com/leozw/vessel-guardian/internal/oplog"
	"github.com/leozw/vessel-guardian/internal/positions"
	"github.com/leozw/vessel-guardian/internal/provider"
	"github.com/leozw/vessel-guardian/internal/ratelimit"
	"github.com/leozw/vessel-guardian/internal/tenant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const vendorName = "testvendor"

var acme = tenant.MustRequire("acme")

func strPtr(s string) *string { return &s }

type memFleet struct {
	mu        sync.RWMutex
	vessels   map[tenant.ID][]*core.Vessel
	portCalls map[string][]*core.PortCall
	zones     map[tenant.ID][]*core.GeofenceZone
}

func newMemFleet() *memFleet {
	return &memFleet{
		vessels:   make(map[tenant.ID][]*core.Vessel),
		portCalls: make(map[string][]*core.PortCall),
		zones:     make(map[tenant.ID][]*core.GeofenceZone),
	}
}

func (f *memFleet) addVessel(tid tenant.ID, v *core.Vessel) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v.TenantID = string(tid)
	f.vessels[tid] = append(f.vessels[tid], v)
}

func (f *memFleet) setPortCalls(vesselID string, calls ...*core.PortCall) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.portCalls[vesselID] = calls
}

func (f *memFleet) ListVessels(_ context.Context, tid tenant.ID) ([]*core.Vessel, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]*core.Vessel(nil), f.vessels[tid]...), nil
}

func (f *memFleet) GetVessel(_ context.Context, tid tenant.ID, id string) (*core.Vessel, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, v := range f.vessels[tid] {
		if v.ID == id {
			return v, nil
		}
	}
	return nil, core.ErrNotFound
}

func (f *memFleet) CreateVessel(_ context.Context, tid tenant.ID, v *core.Vessel) error {
	f.addVessel(tid, v)
	return nil
}

func (f *memFleet) VesselExists(ctx context.Context, tid tenant.ID, id string) (bool, error) {
	_, err := f.GetVessel(ctx, tid, id)
	return err == nil, nil
}

func (f *memFleet) ActivePortCalls(_ context.Context, _ tenant.ID, vesselID string) ([]*core.PortCall, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.portCalls[vesselID], nil
}

func (f *memFleet) ListZones(_ context.Context, tid tenant.ID) ([]*core.GeofenceZone, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.zones[tid], nil
}

type fakeVendor struct {
	mu        sync.Mutex
	positions map[string]provider.Position
	zone      []provider.Position
	err       error
	calls     atomic.Int32
}

func (v *fakeVendor) factory(apiKey string) provider.Adapter {
	return &fakeAdapter{vendor: v, apiKey: apiKey}
}

func (v *fakeVendor) set(identifier string, p provider.Position) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.positions[identifier] = p
}

type fakeAdapter struct {
	vendor *fakeVendor
	apiKey string
}

func (a *fakeAdapter) Name() string     { return vendorName }
func (a *fakeAdapter) Configured() bool { return a.apiKey != "" }

func (a *fakeAdapter) FetchByIdentifier(_ context.Context, identifier string, _ core.IdentifierType) (*provider.Position, error) {
	a.vendor.calls.Add(1)
	a.vendor.mu.Lock()
	defer a.vendor.mu.Unlock()
	if a.vendor.err != nil {
		return nil, a.vendor.err
	}
	p, ok := a.vendor.positions[identifier]
	if !ok {
		return nil, core.ErrNotFound
	}
	return &p, nil
}

func (a *fakeAdapter) FetchInZone(_ context.Context, _ provider.BBox) ([]provider.Position, error) {
	a.vendor.calls.Add(1)
	a.vendor.mu.Lock()
	defer a.vendor.mu.Unlock()
	return append([]provider.Position(nil), a.vendor.zone...), nil
}

type fakeLoader struct {
	settings map[tenant.ID]*core.ProviderSettings
	calls    atomic.Int32
}

func (l *fakeLoader) ProviderSettings(_ context.Context, tid tenant.ID, _ string) (*core.ProviderSettings, error) {
	l.calls.Add(1)
	return l.settings[tid], nil
}

type harness struct {
	o      *Orchestrator
	fleet  *memFleet
	vendor *fakeVendor
	loader *fakeLoader
	store  *positions.Store
	events *oplog.Log
	now    time.Time
}

func newHarness(t *testing.T, policy ratelimit.Policy) *harness {
	t.Helper()
	h := &harness{
		fleet:  newMemFleet(),
		vendor: &fakeVendor{positions: make(map[string]provider.Position)},
		loader: &fakeLoader{settings: map[tenant.ID]*core.ProviderSettings{
			acme: {TenantID: string(acme), Provider: vendorName, APIKey: "acme-key", Enabled: true},
		}},
		store: positions.NewStore(positions.NewMemoryBackend()),
		now:   time.Date(2025, 12, 12, 20, 50, 19, 0, time.UTC),
	}
	h.events = oplog.New(oplog.NewMemoryBackend(), h.fleet)

	registry := provider.NewRegistry()
	registry.Register(vendorName, h.vendor.factory, "")

	limiter := ratelimit.NewWindowLimiter()
	t.Cleanup(limiter.Close)
	throttle := ratelimit.NewThrottle(limiter, map[string]ratelimit.Policy{vendorName: policy}, policy)

	logger := zap.NewNop()
	settings := NewSettingsResolver(h.loader, cache.NewMemory(16), time.Minute, logger)
	h.o = NewOrchestrator(h.fleet, h.store, h.events, throttle, registry, settings, nil, logger, Options{
		Provider:    vendorName,
		FreshFor:    15 * time.Minute,
		Concurrency: 4,
	})
	h.o.now = func() time.Time { return h.now }
	return h
}

func (h *harness) eventsOf(t *testing.T, et core.EventType) []*core.OperationLogEntry {
	t.Helper()
	entries, err := h.events.Query(context.Background(), acme, core.OperationLogFilters{EventType: et}, oplog.MaxQueryLimit, 0)
	require.NoError(t, err)
	return entries
}

func (h *harness) allEvents(t *testing.T) []*core.OperationLogEntry {
	return h.eventsOf(t, "")
}

var generous = ratelimit.Policy{Ceiling: 80, Window: time.Minute}

func TestRefreshSingleVesselEndToEnd(t *testing.T) {
	h := newHarness(t, generous)
	h.fleet.addVessel(acme, &core.Vessel{ID: "v-santos", Name: "Santos Star", MMSI: strPtr("710005865")})
	reported := time.Date(2025, 12, 12, 20, 50, 19, 0, time.UTC)
	h.vendor.set("710005865", provider.Position{Lat: -24.481873, Lon: -44.217957, Timestamp: reported})

	res, err := h.o.RefreshFleet(context.Background(), acme)
	require.NoError(t, err)
	require.Len(t, res.Vessels, 1)
	assert.Empty(t, res.Degraded)
	assert.Equal(t, 1, res.Fetched)

	snap := res.Vessels[0]
	assert.Equal(t, OutcomeFetched, snap.Outcome)
	assert.Equal(t, core.StatusAtSea, snap.Status)
	assert.Equal(t, core.DataSourcePrimary, snap.Source)
	require.NotNil(t, snap.Position)
	assert.Equal(t, "provider:"+vendorName, snap.Position.Source)

	stored, err := h.store.Latest(context.Background(), acme, "v-santos")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.InDelta(t, -24.481873, stored.Lat, 1e-9)
	assert.InDelta(t, -44.217957, stored.Lon, 1e-9)
	assert.Equal(t, reported, stored.TimestampUTC)
	require.NotNil(t, stored.NavStatus)
	assert.Equal(t, string(core.StatusAtSea), *stored.NavStatus)

	events := h.allEvents(t)
	require.Len(t, events, 1)
	assert.Equal(t, core.EventPositionUpdate, events[0].EventType)
	assert.Equal(t, "v-santos", *events[0].VesselID)
}

func TestInPortTransitionFiresOnce(t *testing.T) {
	h := newHarness(t, generous)
	h.fleet.addVessel(acme, &core.Vessel{ID: "v-1", Name: "Harbor", MMSI: strPtr("710005865")})
	h.fleet.setPortCalls("v-1", &core.PortCall{ID: "pc-1", VesselID: "v-1", PortName: "Santos", Status: core.PortCallInProgress})

	for i := 0; i < 2; i++ {
		h.vendor.set("710005865", provider.Position{Lat: -23.96, Lon: -46.33, Timestamp: h.now})
		snap, err := h.o.RefreshVessel(context.Background(), acme, "v-1")
		require.NoError(t, err)
		assert.Equal(t, OutcomeFetched, snap.Outcome)
		assert.Equal(t, core.StatusInPort, snap.Status)
		h.now = h.now.Add(20 * time.Minute)
	}

	changes := h.eventsOf(t, core.EventStatusChange)
	require.Len(t, changes, 1)
	assert.Nil(t, changes[0].PreviousStatus)
	assert.Equal(t, core.StatusInPort, *changes[0].CurrentStatus)
	assert.Len(t, h.eventsOf(t, core.EventPositionUpdate), 2)
}

func TestStatusChangeCarriesPrevious(t *testing.T) {
	h := newHarness(t, generous)
	h.fleet.addVessel(acme, &core.Vessel{ID: "v-1", Name: "Harbor", IMO: strPtr("IMO 9074729")})
	h.vendor.set("9074729", provider.Position{Lat: 1, Lon: 1, Timestamp: h.now})

	_, err := h.o.RefreshVessel(context.Background(), acme, "v-1")
	require.NoError(t, err)
	assert.Empty(t, h.eventsOf(t, core.EventStatusChange))

	h.now = h.now.Add(time.Hour)
	h.vendor.set("9074729", provider.Position{Lat: 1.1, Lon: 1.1, Timestamp: h.now})
	h.fleet.setPortCalls("v-1", &core.PortCall{ID: "pc-1", VesselID: "v-1", Status: core.PortCallPlanned})

	snap, err := h.o.RefreshVessel(context.Background(), acme, "v-1")
	require.NoError(t, err)
	assert.Equal(t, core.StatusInbound, snap.Status)

	changes := h.eventsOf(t, core.EventStatusChange)
	require.Len(t, changes, 1)
	require.NotNil(t, changes[0].PreviousStatus)
	assert.Equal(t, core.StatusAtSea, *changes[0].PreviousStatus)
	assert.Equal(t, core.StatusInbound, *changes[0].CurrentStatus)
}

func TestFreshPositionSkipsProvider(t *testing.T) {
	h := newHarness(t, generous)
	h.fleet.addVessel(acme, &core.Vessel{ID: "v-1", Name: "Harbor", MMSI: strPtr("710005865")})
	_, err := h.store.Append(context.Background(), acme, "v-1", &core.PositionRecord{Lat: 2, Lon: 3, TimestampUTC: h.now.Add(-5 * time.Minute)})
	require.NoError(t, err)

	snap, err := h.o.RefreshVessel(context.Background(), acme, "v-1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeCached, snap.Outcome)
	assert.False(t, snap.Stale)
	assert.Equal(t, int32(0), h.vendor.calls.Load())
	assert.Empty(t, h.allEvents(t))
}

func TestRateLimitedVesselsAreSkipped(t *testing.T) {
	h := newHarness(t, ratelimit.Policy{Ceiling: 1, Window: time.Minute})
	h.fleet.addVessel(acme, &core.Vessel{ID: "v-1", Name: "One", MMSI: strPtr("710005865")})
	h.fleet.addVessel(acme, &core.Vessel{ID: "v-2", Name: "Two", MMSI: strPtr("710005866")})
	h.vendor.set("710005865", provider.Position{Lat: 1, Lon: 1, Timestamp: h.now})
	h.vendor.set("710005866", provider.Position{Lat: 2, Lon: 2, Timestamp: h.now})

	res, err := h.o.RefreshFleet(context.Background(), acme)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Fetched)
	assert.Equal(t, 1, res.RateLimited)
	assert.Empty(t, res.Degraded)

	for _, snap := range res.Vessels {
		if snap.Outcome == OutcomeRateLimited {
			assert.Nil(t, snap.Position)
			assert.GreaterOrEqual(t, snap.RetryAfterSeconds, 1)
		}
	}
	assert.Equal(t, int32(1), h.vendor.calls.Load())
}

func TestNotConfiguredMakesNoCalls(t *testing.T) {
	h := newHarness(t, generous)
	h.loader.settings = nil
	h.fleet.addVessel(acme, &core.Vessel{ID: "v-1", Name: "One", MMSI: strPtr("710005865")})
	h.fleet.addVessel(acme, &core.Vessel{ID: "v-2", Name: "Two", MMSI: strPtr("710005866")})

	res, err := h.o.RefreshFleet(context.Background(), acme)
	require.NoError(t, err)
	assert.Equal(t, []string{DegradedNotConfigured}, res.Degraded)
	for _, snap := range res.Vessels {
		assert.Equal(t, OutcomeNotConfigured, snap.Outcome)
		assert.Nil(t, snap.Position)
	}
	assert.Equal(t, int32(0), h.vendor.calls.Load())
}

func TestInvalidCredentialsReportedOnce(t *testing.T) {
	h := newHarness(t, generous)
	h.vendor.err = core.ErrInvalidCredentials
	h.fleet.addVessel(acme, &core.Vessel{ID: "v-1", Name: "One", MMSI: strPtr("710005865")})
	h.fleet.addVessel(acme, &core.Vessel{ID: "v-2", Name: "Two", MMSI: strPtr("710005866")})
	_, err := h.store.Append(context.Background(), acme, "v-2", &core.PositionRecord{Lat: 2, Lon: 3, TimestampUTC: h.now.Add(-time.Hour)})
	require.NoError(t, err)

	res, err := h.o.RefreshFleet(context.Background(), acme)
	require.NoError(t, err)
	assert.Equal(t, []string{DegradedInvalidCredentials}, res.Degraded)

	for _, snap := range res.Vessels {
		assert.Equal(t, OutcomeInvalidCredentials, snap.Outcome)
		if snap.Vessel.ID == "v-2" {
			require.NotNil(t, snap.Position)
			assert.True(t, snap.Stale)
		}
	}
}

func TestInvalidIdentifierSkipsLookup(t *testing.T) {
	h := newHarness(t, generous)
	h.fleet.addVessel(acme, &core.Vessel{ID: "v-1", Name: "Short", MMSI: strPtr("12345")})
	h.fleet.addVessel(acme, &core.Vessel{ID: "v-2", Name: "Nameless"})

	res, err := h.o.RefreshFleet(context.Background(), acme)
	require.NoError(t, err)
	outcomes := map[string]Outcome{}
	for _, snap := range res.Vessels {
		outcomes[snap.Vessel.ID] = snap.Outcome
	}
	assert.Equal(t, OutcomeInvalidIdentifier, outcomes["v-1"])
	assert.Equal(t, OutcomeNoIdentifier, outcomes["v-2"])
	assert.Equal(t, int32(0), h.vendor.calls.Load())
}

func TestGeofenceEntryEmitted(t *testing.T) {
	h := newHarness(t, generous)
	h.fleet.addVessel(acme, &core.Vessel{ID: "v-1", Name: "Harbor", MMSI: strPtr("710005865")})
	h.fleet.zones[acme] = []*core.GeofenceZone{{
		ID:    "z-santos",
		Name:  "Santos anchorage",
		Type:  core.ZoneAnchorage,
		Shape: core.Circle(core.LatLon{Lat: -24.0, Lon: -46.3}, 5000),
	}}
	_, err := h.store.Append(context.Background(), acme, "v-1", &core.PositionRecord{Lat: -23.5, Lon: -46.3, TimestampUTC: h.now.Add(-time.Hour)})
	require.NoError(t, err)
	h.vendor.set("710005865", provider.Position{Lat: -24.01, Lon: -46.3, Timestamp: h.now})

	snap, err := h.o.RefreshVessel(context.Background(), acme, "v-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"z-santos"}, snap.Zones)

	entries := h.eventsOf(t, core.EventGeofenceEntry)
	require.Len(t, entries, 1)
	assert.Equal(t, "z-santos", *entries[0].ZoneID)
	assert.Contains(t, entries[0].Description, "Santos anchorage")

	// Staying inside the zone does not re-enter it.
	h.now = h.now.Add(time.Hour)
	h.vendor.set("710005865", provider.Position{Lat: -24.0, Lon: -46.3, Timestamp: h.now})
	_, err = h.o.RefreshVessel(context.Background(), acme, "v-1")
	require.NoError(t, err)
	assert.Len(t, h.eventsOf(t, core.EventGeofenceEntry), 1)
}

func TestIngestRunsPipeline(t *testing.T) {
	h := newHarness(t, generous)
	h.fleet.addVessel(acme, &core.Vessel{ID: "v-1", Name: "Harbor"})
	h.fleet.setPortCalls("v-1", &core.PortCall{ID: "pc-1", VesselID: "v-1", Status: core.PortCallInProgress})

	snap, err := h.o.Ingest(context.Background(), acme, "v-1", &core.PositionRecord{Lat: 10, Lon: 20, TimestampUTC: h.now})
	require.NoError(t, err)
	assert.Equal(t, OutcomeIngested, snap.Outcome)
	assert.Equal(t, core.SourceManual, snap.Position.Source)
	assert.Len(t, h.eventsOf(t, core.EventPositionUpdate), 1)
	assert.Len(t, h.eventsOf(t, core.EventStatusChange), 1)
	assert.Equal(t, int32(0), h.vendor.calls.Load())

	_, err = h.o.Ingest(context.Background(), acme, "missing", &core.PositionRecord{Lat: 10, Lon: 20, TimestampUTC: h.now})
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = h.o.Ingest(context.Background(), acme, "v-1", &core.PositionRecord{Lat: 100, Lon: 20, TimestampUTC: h.now})
	assert.ErrorIs(t, err, core.ErrInvalidPosition)

	_, err = h.o.Ingest(context.Background(), "", "v-1", &core.PositionRecord{Lat: 10, Lon: 20, TimestampUTC: h.now})
	assert.ErrorIs(t, err, core.ErrMissingTenant)
}

func TestScanZoneMatchesFleet(t *testing.T) {
	h := newHarness(t, generous)
	h.fleet.addVessel(acme, &core.Vessel{ID: "v-1", Name: "Known", MMSI: strPtr("710005865")})
	h.fleet.addVessel(acme, &core.Vessel{ID: "v-2", Name: "By IMO", IMO: strPtr("9074729")})
	h.vendor.zone = []provider.Position{
		{Lat: 1, Lon: 1, Timestamp: h.now, MMSI: "710005865"},
		{Lat: 2, Lon: 2, Timestamp: h.now, IMO: "IMO9074729"},
		{Lat: 3, Lon: 3, Timestamp: h.now, MMSI: "999999999"},
	}

	snaps, err := h.o.ScanZone(context.Background(), acme, provider.BBox{MinLat: 0, MaxLat: 5, MinLon: 0, MaxLon: 5})
	require.NoError(t, err)
	require.Len(t, snaps, 2)

	for _, id := range []string{"v-1", "v-2"} {
		rec, err := h.store.Latest(context.Background(), acme, id)
		require.NoError(t, err)
		assert.NotNil(t, rec, id)
	}
	assert.Len(t, h.eventsOf(t, core.EventPositionUpdate), 2)

	_, err = h.o.ScanZone(context.Background(), acme, provider.BBox{MinLat: 5, MaxLat: 0, MinLon: 0, MaxLon: 5})
	assert.ErrorIs(t, err, provider.ErrInvalidBBox)
}

func TestSnapshotDoesNotFetch(t *testing.T) {
	h := newHarness(t, generous)
	h.fleet.addVessel(acme, &core.Vessel{ID: "v-1", Name: "Harbor", MMSI: strPtr("710005865")})
	h.fleet.addVessel(acme, &core.Vessel{ID: "v-2", Name: "Empty", MMSI: strPtr("710005866")})
	_, err := h.store.Append(context.Background(), acme, "v-1", &core.PositionRecord{Lat: 2, Lon: 3, TimestampUTC: h.now.Add(-time.Hour)})
	require.NoError(t, err)

	snaps, err := h.o.FleetSnapshot(context.Background(), acme)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.NotNil(t, snaps[0].Position)
	assert.True(t, snaps[0].Stale)
	assert.Nil(t, snaps[1].Position)
	assert.Equal(t, int32(0), h.vendor.calls.Load())

	_, err = h.o.Snapshot(context.Background(), acme, "nope")
	assert.ErrorIs(t, err, core.ErrNotFound)

	other := tenant.MustRequire("globex")
	_, err = h.o.Snapshot(context.Background(), other, "v-1")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestZonesAt(t *testing.T) {
	h := newHarness(t, generous)
	h.fleet.zones[acme] = []*core.GeofenceZone{
		{ID: "z-1", Name: "Berth", Type: core.ZoneBerth, Shape: core.Circle(core.LatLon{Lat: 0, Lon: 0}, 0)},
		{ID: "z-2", Name: "Box", Type: core.ZoneTerminal, Shape: core.Polygon(
			core.LatLon{Lat: 1, Lon: 1}, core.LatLon{Lat: 1, Lon: 2}, core.LatLon{Lat: 2, Lon: 2}, core.LatLon{Lat: 2, Lon: 1},
		)},
	}

	zones, err := h.o.ZonesAt(context.Background(), acme, core.LatLon{Lat: 0.001, Lon: 0})
	require.NoError(t, err)
	require.Len(t, zones, 1)
	assert.Equal(t, "z-1", zones[0].ID)

	zones, err = h.o.ZonesAt(context.Background(), acme, core.LatLon{Lat: 1.5, Lon: 1.5})
	require.NoError(t, err)
	require.Len(t, zones, 1)
	assert.Equal(t, "z-2", zones[0].ID)

	_, err = h.o.ZonesAt(context.Background(), acme, core.LatLon{Lat: 91, Lon: 0})
	assert.ErrorIs(t, err, core.ErrInvalidPosition)
}

func TestSettingsResolverCaches(t *testing.T) {
	loader := &fakeLoader{settings: map[tenant.ID]*core.ProviderSettings{
		acme: {Provider: vendorName, APIKey: "k", Enabled: true},
	}}
	r := NewSettingsResolver(loader, cache.NewMemory(8), time.Minute, zap.NewNop())

	for i := 0; i < 3; i++ {
		s, err := r.Resolve(context.Background(), acme, vendorName)
		require.NoError(t, err)
		require.NotNil(t, s)
		assert.Equal(t, "k", s.APIKey)
	}
	assert.Equal(t, int32(1), loader.calls.Load())

	other := tenant.MustRequire("globex")
	for i := 0; i < 2; i++ {
		s, err := r.Resolve(context.Background(), other, vendorName)
		require.NoError(t, err)
		assert.Nil(t, s)
	}
	assert.Equal(t, int32(2), loader.calls.Load())

	require.NoError(t, r.Invalidate(context.Background(), acme, vendorName))
	_, err := r.Resolve(context.Background(), acme, vendorName)
	require.NoError(t, err)
	assert.Equal(t, int32(3), loader.calls.Load())
}

func TestOlderReportKeepsStoredPosition(t *testing.T) {
	h := newHarness(t, generous)
	h.fleet.addVessel(acme, &core.Vessel{ID: "v-1", Name: "Harbor", MMSI: strPtr("710005865")})
	h.fleet.zones[acme] = []*core.GeofenceZone{{
		ID:    "z-old",
		Name:  "Old anchorage",
		Type:  core.ZoneAnchorage,
		Shape: core.Circle(core.LatLon{Lat: 1, Lon: 1}, 5000),
	}}
	h.fleet.setPortCalls("v-1", &core.PortCall{ID: "pc-1", VesselID: "v-1", Status: core.PortCallInProgress})
	_, err := h.store.Append(context.Background(), acme, "v-1", &core.PositionRecord{Lat: 10, Lon: 10, TimestampUTC: h.now.Add(-20 * time.Minute)})
	require.NoError(t, err)
	h.vendor.set("710005865", provider.Position{Lat: 1, Lon: 1, Timestamp: h.now.Add(-3 * time.Hour)})

	snap, err := h.o.RefreshVessel(context.Background(), acme, "v-1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeStaleReport, snap.Outcome)
	require.NotNil(t, snap.Position)
	assert.Equal(t, 10.0, snap.Position.Lat)
	assert.True(t, snap.Stale)
	assert.Empty(t, snap.Zones)

	stored, err := h.store.Latest(context.Background(), acme, "v-1")
	require.NoError(t, err)
	assert.Equal(t, stored.ID, snap.Position.ID)
	assert.Empty(t, h.allEvents(t))

	history, err := h.store.History(context.Background(), acme, "v-1", 10)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestRepeatedReportStoredOnce(t *testing.T) {
	h := newHarness(t, generous)
	h.fleet.addVessel(acme, &core.Vessel{ID: "v-1", Name: "Harbor", MMSI: strPtr("710005865")})
	h.vendor.set("710005865", provider.Position{Lat: 5, Lon: 5, Timestamp: h.now.Add(-time.Hour)})

	outcomes := []Outcome{}
	for i := 0; i < 3; i++ {
		snap, err := h.o.RefreshVessel(context.Background(), acme, "v-1")
		require.NoError(t, err)
		outcomes = append(outcomes, snap.Outcome)
		assert.Equal(t, i > 0, snap.Stale)
		h.now = h.now.Add(5 * time.Minute)
	}
	assert.Equal(t, []Outcome{OutcomeFetched, OutcomeStaleReport, OutcomeStaleReport}, outcomes)

	history, err := h.store.History(context.Background(), acme, "v-1", 10)
	require.NoError(t, err)
	assert.Len(t, history, 1)
	assert.Len(t, h.eventsOf(t, core.EventPositionUpdate), 1)
}

func TestIngestOlderPositionIsNotCurrent(t *testing.T) {
	h := newHarness(t, generous)
	h.fleet.addVessel(acme, &core.Vessel{ID: "v-1", Name: "Harbor"})

	_, err := h.o.Ingest(context.Background(), acme, "v-1", &core.PositionRecord{Lat: 10, Lon: 20, TimestampUTC: h.now})
	require.NoError(t, err)

	snap, err := h.o.Ingest(context.Background(), acme, "v-1", &core.PositionRecord{Lat: 11, Lon: 21, TimestampUTC: h.now.Add(-time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, OutcomeStaleReport, snap.Outcome)
	assert.Equal(t, 10.0, snap.Position.Lat)
	assert.False(t, snap.Stale)
	assert.Len(t, h.eventsOf(t, core.EventPositionUpdate), 1)
}

func TestUnconfiguredProviderConsumesNoBudget(t *testing.T) {
	h := newHarness(t, ratelimit.Policy{Ceiling: 1, Window: time.Minute})
	settings := h.loader.settings
	h.loader.settings = nil
	h.fleet.addVessel(acme, &core.Vessel{ID: "v-1", Name: "One", MMSI: strPtr("710005865")})
	h.vendor.set("710005865", provider.Position{Lat: 1, Lon: 1, Timestamp: h.now})

	for i := 0; i < 3; i++ {
		snap, err := h.o.RefreshVessel(context.Background(), acme, "v-1")
		require.NoError(t, err)
		assert.Equal(t, OutcomeNotConfigured, snap.Outcome)
	}

	h.loader.settings = settings
	require.NoError(t, h.o.settings.Invalidate(context.Background(), acme, vendorName))
	snap, err := h.o.RefreshVessel(context.Background(), acme, "v-1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeFetched, snap.Outcome)
	assert.Equal(t, int32(1), h.vendor.calls.Load())
}

func TestDisabledTenantSettingsNotPolled(t *testing.T) {
	h := newHarness(t, generous)
	h.loader.settings[acme].Enabled = false
	h.fleet.addVessel(acme, &core.Vessel{ID: "v-1", Name: "One", MMSI: strPtr("710005865")})

	res, err := h.o.RefreshFleet(context.Background(), acme)
	require.NoError(t, err)
	assert.Equal(t, []string{DegradedNotConfigured}, res.Degraded)
	assert.Equal(t, int32(0), h.vendor.calls.Load())
}

func TestRegisterVessel(t *testing.T) {
	h := newHarness(t, generous)

	v, err := h.o.RegisterVessel(context.Background(), acme, " Santos Star ", strPtr("710005865"), strPtr("IMO 9074729"))
	require.NoError(t, err)
	assert.NotEmpty(t, v.ID)
	assert.Equal(t, "Santos Star", v.Name)
	assert.Equal(t, "9074729", *v.IMO)

	got, err := h.o.Snapshot(context.Background(), acme, v.ID)
	require.NoError(t, err)
	assert.Equal(t, v.ID, got.Vessel.ID)

	created := h.eventsOf(t, core.EventVesselCreated)
	require.Len(t, created, 1)
	assert.Equal(t, v.ID, *created[0].VesselID)

	_, err = h.o.RegisterVessel(context.Background(), acme, "  ", nil, nil)
	assert.ErrorIs(t, err, core.ErrInvalidVessel)
	_, err = h.o.RegisterVessel(context.Background(), acme, "Short", strPtr("12345"), nil)
	assert.ErrorIs(t, err, core.ErrInvalidIdentifier)
	_, err = h.o.RegisterVessel(context.Background(), "", "Nobody", nil, nil)
	assert.ErrorIs(t, err, core.ErrMissingTenant)
}
