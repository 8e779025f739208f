package refresh

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/leozw/vessel-guardian/internal/core"
	"github.com/leozw/vessel-guardian/internal/geofence"
	"github.com/leozw/vessel-guardian/internal/positions"
	"github.com/leozw/vessel-guardian/internal/provider"
	"github.com/leozw/vessel-guardian/internal/ratelimit"
	"github.com/leozw/vessel-guardian/internal/status"
	"github.com/leozw/vessel-guardian/internal/tenant"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultFreshFor      = 15 * time.Minute
	DefaultConcurrency   = 8
	DefaultVesselTimeout = 30 * time.Second
)

// Fleet is the tenant's vessel registry.
type Fleet interface {
	ListVessels(ctx context.Context, tid tenant.ID) ([]*core.Vessel, error)
	GetVessel(ctx context.Context, tid tenant.ID, id string) (*core.Vessel, error)
	ActivePortCalls(ctx context.Context, tid tenant.ID, vesselID string) ([]*core.PortCall, error)
	ListZones(ctx context.Context, tid tenant.ID) ([]*core.GeofenceZone, error)
	CreateVessel(ctx context.Context, tid tenant.ID, v *core.Vessel) error
}

type PositionStore interface {
	Append(ctx context.Context, tid tenant.ID, vesselID string, rec *core.PositionRecord) (string, error)
	Latest(ctx context.Context, tid tenant.ID, vesselID string) (*core.PositionRecord, error)
}

type EventLog interface {
	Append(ctx context.Context, tid tenant.ID, entry core.OperationLogEntry) (string, error)
}

// Recorder receives refresh metrics.
type Recorder interface {
	RecordFetch(tenantID, providerName, outcome string, duration time.Duration)
	RecordRateLimited(tenantID, providerName string)
	RecordEvent(tenantID string, eventType core.EventType)
	RecordFleetRefresh(tenantID string, vessels int, degraded bool, duration time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) RecordFetch(string, string, string, time.Duration)   {}
func (nopRecorder) RecordRateLimited(string, string)                    {}
func (nopRecorder) RecordEvent(string, core.EventType)                  {}
func (nopRecorder) RecordFleetRefresh(string, int, bool, time.Duration) {}

type Options struct {
	// Provider is the tracking provider used for lookups.
	Provider      string
	FreshFor      time.Duration
	Concurrency   int
	VesselTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.FreshFor <= 0 {
		o.FreshFor = DefaultFreshFor
	}
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	if o.VesselTimeout <= 0 {
		o.VesselTimeout = DefaultVesselTimeout
	}
	return o
}

// Orchestrator keeps stored vessel positions current and turns position changes
// into operation log events.
type Orchestrator struct {
	fleet    Fleet
	store    PositionStore
	events   EventLog
	throttle *ratelimit.Throttle
	registry *provider.Registry
	settings *SettingsResolver
	metrics  Recorder
	logger   *zap.Logger
	opts     Options
	now      func() time.Time
}

func NewOrchestrator(
	fleet Fleet,
	store PositionStore,
	events EventLog,
	throttle *ratelimit.Throttle,
	registry *provider.Registry,
	settings *SettingsResolver,
	metrics Recorder,
	logger *zap.Logger,
	opts Options,
) *Orchestrator {
	if metrics == nil {
		metrics = nopRecorder{}
	}
	return &Orchestrator{
		fleet:    fleet,
		store:    store,
		events:   events,
		throttle: throttle,
		registry: registry,
		settings: settings,
		metrics:  metrics,
		logger:   logger,
		opts:     opts.withDefaults(),
		now:      time.Now,
	}
}

// RefreshFleet refreshes every vessel of the tenant. Vessels are processed
// concurrently and a failing vessel never cancels the others.
func (o *Orchestrator) RefreshFleet(ctx context.Context, tid tenant.ID) (*FleetResult, error) {
	if _, err := tenant.Require(tid); err != nil {
		return nil, err
	}
	start := o.now()
	result := &FleetResult{TenantID: string(tid)}
	degraded := newDegradedSet()

	vessels, err := o.fleet.ListVessels(ctx, tid)
	if err != nil {
		degraded.add(DegradedStorage)
		result.Degraded = degraded.list()
		o.metrics.RecordFleetRefresh(string(tid), 0, true, o.now().Sub(start))
		return result, fmt.Errorf("list vessels: %w", err)
	}

	zones, err := o.fleet.ListZones(ctx, tid)
	if err != nil {
		o.logger.Warn("Failed to load geofence zones",
			zap.Error(err),
			zap.String("tenant_id", string(tid)),
		)
		degraded.add(DegradedStorage)
		zones = nil
	}

	result.Vessels = make([]*VesselSnapshot, len(vessels))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.Concurrency)
	for i, v := range vessels {
		i, v := i, v
		g.Go(func() error {
			vctx, cancel := context.WithTimeout(gctx, o.opts.VesselTimeout)
			defer cancel()
			result.Vessels[i] = o.refresh(vctx, tid, v, zones, degraded)
			return nil
		})
	}
	_ = g.Wait()

	for _, snap := range result.Vessels {
		switch snap.Outcome {
		case OutcomeFetched:
			result.Fetched++
		case OutcomeCached:
			result.Cached++
		case OutcomeRateLimited:
			result.RateLimited++
		}
	}
	result.Degraded = degraded.list()

	o.metrics.RecordFleetRefresh(string(tid), len(vessels), len(result.Degraded) > 0, o.now().Sub(start))
	o.logger.Info("Fleet refreshed",
		zap.String("tenant_id", string(tid)),
		zap.Int("vessels", len(vessels)),
		zap.Int("fetched", result.Fetched),
		zap.Int("cached", result.Cached),
		zap.Int("rate_limited", result.RateLimited),
		zap.Strings("degraded", result.Degraded),
	)
	return result, nil
}

// RefreshVessel refreshes one vessel on demand.
func (o *Orchestrator) RefreshVessel(ctx context.Context, tid tenant.ID, vesselID string) (*VesselSnapshot, error) {
	if _, err := tenant.Require(tid); err != nil {
		return nil, err
	}
	v, err := o.fleet.GetVessel(ctx, tid, vesselID)
	if err != nil {
		return nil, err
	}
	zones, err := o.fleet.ListZones(ctx, tid)
	if err != nil {
		o.logger.Warn("Failed to load geofence zones",
			zap.Error(err),
			zap.String("tenant_id", string(tid)),
		)
		zones = nil
	}

	vctx, cancel := context.WithTimeout(ctx, o.opts.VesselTimeout)
	defer cancel()
	return o.refresh(vctx, tid, v, zones, newDegradedSet()), nil
}

func (o *Orchestrator) refresh(ctx context.Context, tid tenant.ID, v *core.Vessel, zones []*core.GeofenceZone, degraded *degradedSet) *VesselSnapshot {
	logger := o.logger.With(
		zap.String("tenant_id", string(tid)),
		zap.String("vessel_id", v.ID),
	)
	snap := &VesselSnapshot{Vessel: v, Source: core.DataSourcePrimary}

	active := o.activePortCall(ctx, tid, v.ID, logger)
	snap.ActivePortCall = active
	snap.Status = status.Derive(active)

	prev, err := o.store.Latest(ctx, tid, v.ID)
	if err != nil {
		logger.Warn("Failed to read latest position", zap.Error(err))
		snap.Source = core.DataSourceUnavailable
		degraded.add(DegradedStorage)
		prev = nil
	}

	if prev != nil && positions.Fresh(prev, o.now(), o.opts.FreshFor) {
		snap.setPosition(prev, zones)
		snap.Outcome = OutcomeCached
		return snap
	}
	// Anything returned from here on without a new fetch is marked stale.
	snap.setPosition(prev, zones)
	snap.Stale = prev != nil

	rawID, idType, ok := v.Identifier()
	if !ok {
		snap.Outcome = OutcomeNoIdentifier
		return snap
	}
	identifier, err := provider.Normalize(rawID, idType)
	if err != nil {
		logger.Warn("Skipping vessel with invalid identifier",
			zap.Error(err),
			zap.String("identifier_type", string(idType)),
		)
		snap.Outcome = OutcomeInvalidIdentifier
		return snap
	}

	adapter, decision, err := o.acquire(ctx, tid)
	if err != nil {
		snap.Outcome = o.classify(err, degraded)
		logger.Warn("Provider unavailable", zap.Error(err))
		return snap
	}
	if !decision.Allowed {
		snap.Outcome = OutcomeRateLimited
		snap.RetryAfterSeconds = decision.RetryAfterSeconds()
		logger.Debug("Provider rate limited",
			zap.String("provider", o.opts.Provider),
			zap.Int("retry_after_seconds", snap.RetryAfterSeconds),
		)
		return snap
	}

	fetchStart := o.now()
	pos, err := adapter.FetchByIdentifier(ctx, identifier, idType)
	if err != nil {
		snap.Outcome = o.classify(err, degraded)
		o.metrics.RecordFetch(string(tid), o.opts.Provider, string(snap.Outcome), o.now().Sub(fetchStart))
		logger.Warn("Position lookup failed",
			zap.Error(err),
			zap.String("provider", o.opts.Provider),
		)
		return snap
	}
	o.metrics.RecordFetch(string(tid), o.opts.Provider, string(OutcomeFetched), o.now().Sub(fetchStart))

	rec := pos.Record(v.ID, o.opts.Provider)
	o.apply(ctx, tid, snap, prev, rec, zones, degraded, logger)
	return snap
}

// apply stores rec as the vessel's newest position and emits the events it causes.
// A report that is not newer than prev is dropped and prev stays current.
func (o *Orchestrator) apply(ctx context.Context, tid tenant.ID, snap *VesselSnapshot, prev, rec *core.PositionRecord, zones []*core.GeofenceZone, degraded *degradedSet, logger *zap.Logger) {
	if prev != nil && !rec.TimestampUTC.After(prev.TimestampUTC) {
		snap.setPosition(prev, zones)
		snap.Stale = !positions.Fresh(prev, o.now(), o.opts.FreshFor)
		snap.Outcome = OutcomeStaleReport
		logger.Debug("Dropping report not newer than stored position",
			zap.Time("report_timestamp", rec.TimestampUTC),
			zap.Time("latest_timestamp", prev.TimestampUTC),
		)
		return
	}

	status.Stamp(rec, snap.Status)
	snap.setPosition(rec, zones)
	snap.Stale = false

	if _, err := o.store.Append(ctx, tid, snap.Vessel.ID, rec); err != nil {
		logger.Error("Failed to store position", zap.Error(err))
		snap.Source = core.DataSourceUnavailable
		snap.Outcome = OutcomeStorageUnavailable
		degraded.add(DegradedStorage)
		return
	}
	if snap.Outcome == "" {
		snap.Outcome = OutcomeFetched
	}

	vesselID := snap.Vessel.ID
	lat, lon := rec.Lat, rec.Lon

	o.emit(ctx, tid, logger, core.OperationLogEntry{
		VesselID:    &vesselID,
		EventType:   core.EventPositionUpdate,
		Description: fmt.Sprintf("Position updated from %s: %.5f, %.5f", rec.Source, lat, lon),
		PositionLat: &lat,
		PositionLon: &lon,
	})

	if change, ok := status.Transition(prev, snap.Status); ok {
		current := change.Current
		desc := fmt.Sprintf("Status set to %s", current)
		if change.Previous != nil {
			desc = fmt.Sprintf("Status changed from %s to %s", *change.Previous, current)
		}
		o.emit(ctx, tid, logger, core.OperationLogEntry{
			VesselID:       &vesselID,
			EventType:      core.EventStatusChange,
			Description:    desc,
			PositionLat:    &lat,
			PositionLon:    &lon,
			PreviousStatus: change.Previous,
			CurrentStatus:  &current,
		})
	}

	var prevZones []string
	if prev != nil {
		prevZones = geofence.Evaluate(prev.Point(), zones)
	}
	names := zoneNames(zones)
	for _, zoneID := range geofence.Entries(prevZones, snap.Zones) {
		o.emit(ctx, tid, logger, core.OperationLogEntry{
			VesselID:    &vesselID,
			EventType:   core.EventGeofenceEntry,
			Description: fmt.Sprintf("Entered zone %s", names[zoneID]),
			PositionLat: &lat,
			PositionLon: &lon,
			ZoneID:      &zoneID,
		})
	}
}

func (o *Orchestrator) emit(ctx context.Context, tid tenant.ID, logger *zap.Logger, entry core.OperationLogEntry) {
	id, err := o.events.Append(ctx, tid, entry)
	if err != nil {
		logger.Warn("Failed to write operation log",
			zap.Error(err),
			zap.String("event_type", string(entry.EventType)),
		)
		return
	}
	if id != "" {
		o.metrics.RecordEvent(string(tid), entry.EventType)
	}
}

func (o *Orchestrator) activePortCall(ctx context.Context, tid tenant.ID, vesselID string, logger *zap.Logger) *core.PortCall {
	calls, err := o.fleet.ActivePortCalls(ctx, tid, vesselID)
	if err != nil {
		logger.Warn("Failed to load port calls", zap.Error(err))
		return nil
	}
	return core.ActivePortCall(calls)
}

// acquire resolves the tenant's adapter and takes one unit of its rate budget.
func (o *Orchestrator) acquire(ctx context.Context, tid tenant.ID) (provider.Adapter, ratelimit.Decision, error) {
	settings, err := o.settings.Resolve(ctx, tid, o.opts.Provider)
	if err != nil {
		return nil, ratelimit.Decision{}, err
	}
	adapter, err := o.registry.For(o.opts.Provider, settings)
	if err != nil {
		return nil, ratelimit.Decision{}, err
	}
	if !adapter.Configured() {
		return nil, ratelimit.Decision{}, fmt.Errorf("%w: %s", core.ErrProviderNotConfigured, o.opts.Provider)
	}

	decision := o.throttle.TryAcquire(ctx, tid, o.opts.Provider)
	if !decision.Allowed {
		o.metrics.RecordRateLimited(string(tid), o.opts.Provider)
	}
	return adapter, decision, nil
}

func (o *Orchestrator) classify(err error, degraded *degradedSet) Outcome {
	switch {
	case errors.Is(err, core.ErrNotFound):
		return OutcomeNotFound
	case errors.Is(err, core.ErrProviderNotConfigured):
		degraded.add(DegradedNotConfigured)
		return OutcomeNotConfigured
	case errors.Is(err, core.ErrInvalidCredentials):
		degraded.add(DegradedInvalidCredentials)
		return OutcomeInvalidCredentials
	case errors.Is(err, core.ErrInvalidIdentifier):
		return OutcomeInvalidIdentifier
	case errors.Is(err, core.ErrStorageUnavailable):
		degraded.add(DegradedStorage)
		return OutcomeStorageUnavailable
	default:
		var se *provider.StatusError
		if errors.As(err, &se) {
			degraded.add(DegradedProviderError)
		}
		return OutcomeProviderError
	}
}

// Ingest stores a manually supplied position and runs it through the same status
// and geofence pipeline as a fetched one.
func (o *Orchestrator) Ingest(ctx context.Context, tid tenant.ID, vesselID string, rec *core.PositionRecord) (*VesselSnapshot, error) {
	if _, err := tenant.Require(tid); err != nil {
		return nil, err
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	v, err := o.fleet.GetVessel(ctx, tid, vesselID)
	if err != nil {
		return nil, err
	}
	logger := o.logger.With(
		zap.String("tenant_id", string(tid)),
		zap.String("vessel_id", v.ID),
	)

	zones, err := o.fleet.ListZones(ctx, tid)
	if err != nil {
		logger.Warn("Failed to load geofence zones", zap.Error(err))
		zones = nil
	}
	prev, err := o.store.Latest(ctx, tid, v.ID)
	if err != nil {
		return nil, err
	}

	if rec.Source == "" {
		rec.Source = core.SourceManual
	}
	rec.VesselID = v.ID

	snap := &VesselSnapshot{Vessel: v, Source: core.DataSourcePrimary, Outcome: OutcomeIngested}
	snap.ActivePortCall = o.activePortCall(ctx, tid, v.ID, logger)
	snap.Status = status.Derive(snap.ActivePortCall)

	o.apply(ctx, tid, snap, prev, rec, zones, newDegradedSet(), logger)
	if snap.Outcome == OutcomeStorageUnavailable {
		return nil, core.ErrStorageUnavailable
	}
	return snap, nil
}

// ScanZone looks up every vessel the provider reports inside bbox and stores
// positions for the ones in the tenant's fleet. Unknown vessels are ignored.
func (o *Orchestrator) ScanZone(ctx context.Context, tid tenant.ID, bbox provider.BBox) ([]*VesselSnapshot, error) {
	if _, err := tenant.Require(tid); err != nil {
		return nil, err
	}
	if err := bbox.Validate(); err != nil {
		return nil, err
	}

	adapter, decision, err := o.acquire(ctx, tid)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, fmt.Errorf("%w: retry after %ds", core.ErrRateLimited, decision.RetryAfterSeconds())
	}

	fetchStart := o.now()
	reports, err := adapter.FetchInZone(ctx, bbox)
	if err != nil {
		o.metrics.RecordFetch(string(tid), o.opts.Provider, string(o.classify(err, newDegradedSet())), o.now().Sub(fetchStart))
		return nil, err
	}
	o.metrics.RecordFetch(string(tid), o.opts.Provider, string(OutcomeFetched), o.now().Sub(fetchStart))

	vessels, err := o.fleet.ListVessels(ctx, tid)
	if err != nil {
		return nil, fmt.Errorf("list vessels: %w", err)
	}
	zones, err := o.fleet.ListZones(ctx, tid)
	if err != nil {
		zones = nil
	}
	index := indexFleet(vessels)

	var matched []*VesselSnapshot
	for i := range reports {
		v := index.match(&reports[i])
		if v == nil {
			continue
		}
		logger := o.logger.With(
			zap.String("tenant_id", string(tid)),
			zap.String("vessel_id", v.ID),
		)
		prev, err := o.store.Latest(ctx, tid, v.ID)
		if err != nil {
			logger.Warn("Failed to read latest position", zap.Error(err))
			prev = nil
		}
		snap := &VesselSnapshot{Vessel: v, Source: core.DataSourcePrimary}
		snap.ActivePortCall = o.activePortCall(ctx, tid, v.ID, logger)
		snap.Status = status.Derive(snap.ActivePortCall)
		o.apply(ctx, tid, snap, prev, reports[i].Record(v.ID, o.opts.Provider), zones, newDegradedSet(), logger)
		matched = append(matched, snap)
	}
	return matched, nil
}

// fleetIndex maps normalized identifiers to the tenant's vessels.
type fleetIndex struct {
	byMMSI map[string]*core.Vessel
	byIMO  map[string]*core.Vessel
}

func indexFleet(vessels []*core.Vessel) fleetIndex {
	idx := fleetIndex{
		byMMSI: make(map[string]*core.Vessel),
		byIMO:  make(map[string]*core.Vessel),
	}
	for _, v := range vessels {
		if v.MMSI != nil {
			if id, err := provider.NormalizeMMSI(*v.MMSI); err == nil {
				idx.byMMSI[id] = v
			}
		}
		if v.IMO != nil {
			if id, err := provider.NormalizeIMO(*v.IMO); err == nil {
				idx.byIMO[id] = v
			}
		}
	}
	return idx
}

func (idx fleetIndex) match(p *provider.Position) *core.Vessel {
	if p.MMSI != "" {
		if id, err := provider.NormalizeMMSI(p.MMSI); err == nil {
			if v, ok := idx.byMMSI[id]; ok {
				return v
			}
		}
	}
	if p.IMO != "" {
		if id, err := provider.NormalizeIMO(p.IMO); err == nil {
			if v, ok := idx.byIMO[id]; ok {
				return v
			}
		}
	}
	return nil
}

func zoneNames(zones []*core.GeofenceZone) map[string]string {
	names := make(map[string]string, len(zones))
	for _, z := range zones {
		names[z.ID] = z.Name
	}
	return names
}

type degradedSet struct {
	mu  sync.Mutex
	set map[string]struct{}
}

func newDegradedSet() *degradedSet {
	return &degradedSet{set: make(map[string]struct{})}
}

func (d *degradedSet) add(reason string) {
	d.mu.Lock()
	d.set[reason] = struct{}{}
	d.mu.Unlock()
}

func (d *degradedSet) list() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, 0, len(d.set))
	for r := range d.set {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}
