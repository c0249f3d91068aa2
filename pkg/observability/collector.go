package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the Prometheus metrics of a long-lived process
type Collector struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Invitation sweep metrics
	InvitationsExpired prometheus.Counter
	SweepFailures      prometheus.Counter

	// Capability cache
	CapabilityCacheEntries prometheus.Gauge
}

// NewCollector creates a collector with its own registry, so tests can build as many as they need
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		InvitationsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invitations_expired_total",
			Help:      "Total number of invitations moved to expired by the sweeper",
		}),
		SweepFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invitation_sweep_failures_total",
			Help:      "Total number of failed invitation expiry sweeps",
		}),
		CapabilityCacheEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "capability_cache_entries",
			Help:      "Number of cached system capability sets",
		}),
	}

	registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.InvitationsExpired,
		c.SweepFailures,
		c.CapabilityCacheEntries,
		collectors.NewGoCollector(),
	)
	return c
}

// ObserveRequest records one served HTTP request
func (c *Collector) ObserveRequest(method, route string, status int, duration time.Duration) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveSweep records the outcome of an invitation expiry sweep
func (c *Collector) ObserveSweep(expired int, err error) {
	if c == nil {
		return
	}
	if err != nil {
		c.SweepFailures.Inc()
	}
	c.InvitationsExpired.Add(float64(expired))
}

// SetCacheEntries publishes the current capability cache size
func (c *Collector) SetCacheEntries(n int) {
	if c == nil {
		return
	}
	c.CapabilityCacheEntries.Set(float64(n))
}

// Registry exposes the underlying registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus text format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
