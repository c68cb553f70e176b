package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"netwatch/internal/domain"
)

// Module provides the metrics collector
var Module = fx.Options(
	fx.Provide(NewCollector),
	fx.Provide(func(c *Collector) domain.MetricsCollector { return c }),
)

type Collector struct {
	logger           *zap.Logger
	probesTotal      *prometheus.CounterVec
	probeLatency     *prometheus.HistogramVec
	siteUp           *prometheus.GaugeVec
	identityChanges  *prometheus.CounterVec
	thresholdAlerts  *prometheus.CounterVec
	snapshotPersists *prometheus.CounterVec
}

func NewCollector(logger *zap.Logger) *Collector {
	return &Collector{
		logger: logger,
		probesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "netwatch_probes_total",
				Help: "Total number of latency probes performed",
			},
			[]string{"target", "method", "outcome"},
		),
		probeLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "netwatch_probe_latency_seconds",
				Help:    "Measured probe round-trip time",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"target"},
		),
		siteUp: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "netwatch_site_up",
				Help: "Latest site check result (1 up, 0 down)",
			},
			[]string{"url"},
		),
		identityChanges: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "netwatch_identity_changes_total",
				Help: "Total number of network identity change events",
			},
			[]string{"type"},
		),
		thresholdAlerts: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "netwatch_threshold_alerts_total",
				Help: "Total number of latency threshold alerts",
			},
			[]string{"target"},
		),
		snapshotPersists: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "netwatch_history_persists_total",
				Help: "Total number of history snapshot writes",
			},
			[]string{"outcome"},
		),
	}
}

func (c *Collector) RecordProbe(sample domain.Sample) {
	method := "none"
	outcome := "failure"
	if !sample.Failed() {
		method = string(*sample.Method)
		outcome = "success"
		c.probeLatency.WithLabelValues(sample.Target).Observe(sample.Latency.Seconds())
	}
	c.probesTotal.WithLabelValues(sample.Target, method, outcome).Inc()
}

func (c *Collector) RecordSiteCheck(url string, up bool) {
	value := 0.0
	if up {
		value = 1.0
	}
	c.siteUp.WithLabelValues(url).Set(value)
}

func (c *Collector) RecordIdentityChange(changeType domain.ChangeType) {
	c.identityChanges.WithLabelValues(string(changeType)).Inc()
}

func (c *Collector) RecordThresholdAlert(target string) {
	c.thresholdAlerts.WithLabelValues(target).Inc()
}

func (c *Collector) RecordSnapshotPersist(success bool) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	c.snapshotPersists.WithLabelValues(outcome).Inc()
}
