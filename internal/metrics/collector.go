package metrics

import (
	"time"

	"github.com/leozw/vessel-guardian/internal/config"
	"github.com/leozw/vessel-guardian/internal/core"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

type Collector struct {
	config   *config.MimirConfig
	registry *prometheus.Registry
	mimir    *MimirClient
	logger   *zap.Logger

	// Provider lookups
	fetchesTotal   *prometheus.CounterVec
	fetchDuration  *prometheus.HistogramVec
	rateLimited    *prometheus.CounterVec
	providerErrors *prometheus.CounterVec

	// Fleet refresh
	fleetRefreshDuration *prometheus.HistogramVec
	fleetSize            *prometheus.GaugeVec
	fleetDegraded        *prometheus.GaugeVec
	lastRefreshTimestamp *prometheus.GaugeVec

	// Operation log
	eventsTotal *prometheus.CounterVec

	// System health
	jobsScheduled *prometheus.CounterVec
	queueSize     prometheus.Gauge
}

// NewCollector registers the vessel metrics on reg. Passing a fresh registry per
// process keeps collectors independent in tests.
func NewCollector(cfg config.MimirConfig, reg *prometheus.Registry, logger *zap.Logger) *Collector {
	factory := promauto.With(reg)
	c := &Collector{
		config:   &cfg,
		registry: reg,
		logger:   logger,

		fetchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vessel_provider_fetches_total",
				Help: "Provider position lookups by outcome",
			},
			[]string{"tenant_id", "provider", "outcome"},
		),

		fetchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vessel_provider_fetch_duration_seconds",
				Help:    "Duration of provider position lookups in seconds",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"tenant_id", "provider"},
		),

		rateLimited: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vessel_provider_rate_limited_total",
				Help: "Provider lookups refused by the rate limiter",
			},
			[]string{"tenant_id", "provider"},
		),

		providerErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vessel_provider_errors_total",
				Help: "Provider lookups that failed for reasons other than a missing vessel",
			},
			[]string{"tenant_id", "provider", "outcome"},
		),

		fleetRefreshDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vessel_fleet_refresh_duration_seconds",
				Help:    "Duration of a full fleet refresh in seconds",
				Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"tenant_id"},
		),

		fleetSize: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "vessel_fleet_size",
				Help: "Vessels processed in the last fleet refresh",
			},
			[]string{"tenant_id"},
		),

		fleetDegraded: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "vessel_fleet_degraded",
				Help: "Whether the last fleet refresh ran degraded (1) or not (0)",
			},
			[]string{"tenant_id"},
		),

		lastRefreshTimestamp: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "vessel_fleet_last_refresh_timestamp_seconds",
				Help: "Unix time of the last fleet refresh",
			},
			[]string{"tenant_id"},
		),

		eventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vessel_operation_events_total",
				Help: "Operation log entries written",
			},
			[]string{"tenant_id", "event_type"},
		),

		jobsScheduled: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vessel_refresh_jobs_scheduled_total",
				Help: "Fleet refresh jobs published by the scheduler",
			},
			[]string{"tenant_id"},
		),

		queueSize: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "vessel_refresh_queue_size",
				Help: "Jobs waiting in the refresh queue",
			},
		),
	}

	if cfg.URL != "" {
		c.mimir = NewMimirClient(cfg)
	}
	return c
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) RecordFetch(tenantID, providerName, outcome string, duration time.Duration) {
	c.fetchesTotal.WithLabelValues(tenantID, providerName, outcome).Inc()
	c.fetchDuration.WithLabelValues(tenantID, providerName).Observe(duration.Seconds())

	switch outcome {
	case "fetched", "not_found":
	default:
		c.providerErrors.WithLabelValues(tenantID, providerName, outcome).Inc()
	}
}

func (c *Collector) RecordRateLimited(tenantID, providerName string) {
	c.rateLimited.WithLabelValues(tenantID, providerName).Inc()
}

func (c *Collector) RecordEvent(tenantID string, eventType core.EventType) {
	c.eventsTotal.WithLabelValues(tenantID, string(eventType)).Inc()
}

func (c *Collector) RecordFleetRefresh(tenantID string, vessels int, degraded bool, duration time.Duration) {
	c.fleetRefreshDuration.WithLabelValues(tenantID).Observe(duration.Seconds())
	c.fleetSize.WithLabelValues(tenantID).Set(float64(vessels))
	degradedValue := 0.0
	if degraded {
		degradedValue = 1.0
	}
	c.fleetDegraded.WithLabelValues(tenantID).Set(degradedValue)
	c.lastRefreshTimestamp.WithLabelValues(tenantID).Set(float64(time.Now().Unix()))
}

func (c *Collector) RecordScheduled(tenantID string) {
	c.jobsScheduled.WithLabelValues(tenantID).Inc()
}

func (c *Collector) RecordQueueSize(size int64) {
	c.queueSize.Set(float64(size))
}
