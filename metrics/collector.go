package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	reg *prometheus.Registry

	ActiveSessions prometheus.Gauge

	PollPasses        prometheus.Counter
	PollPassesSkipped prometheus.Counter
	PollPassDuration  prometheus.Histogram

	CorrelationMisses prometheus.Counter
	VehiclesSelected  prometheus.Counter

	UpstreamErrors *prometheus.CounterVec // endpoint label: busstops|upcomingbuses|vehiclepositions|directions|eta
	TokenRefreshes prometheus.Counter
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stmlive_active_sessions",
			Help: "Number of polling sessions currently running.",
		}),
		PollPasses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stmlive_poll_passes_total",
			Help: "Total completed poll passes.",
		}),
		PollPassesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stmlive_poll_passes_skipped_total",
			Help: "Total scheduled passes skipped because the previous pass was still running.",
		}),
		PollPassDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "stmlive_poll_pass_duration_seconds",
			Help:    "Duration of one correlation/selection/estimate pass.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		CorrelationMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stmlive_correlation_misses_total",
			Help: "Transit steps with no authority stop within the acceptance threshold.",
		}),
		VehiclesSelected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stmlive_vehicles_selected_total",
			Help: "Poll-pass steps for which a live vehicle was selected.",
		}),
		UpstreamErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stmlive_upstream_errors_total",
			Help: "Upstream responses discarded as unavailable or malformed.",
		}, []string{"endpoint"}),
		TokenRefreshes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stmlive_token_refreshes_total",
			Help: "Total client-credentials token requests issued.",
		}),
	}

	reg.MustRegister(
		c.ActiveSessions,
		c.PollPasses, c.PollPassesSkipped, c.PollPassDuration,
		c.CorrelationMisses, c.VehiclesSelected,
		c.UpstreamErrors, c.TokenRefreshes,
	)
	return c
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Adapters for the narrow metrics interfaces consumed by the stm and poll
// packages; nil collectors are tolerated at the call sites.

func (c *Collector) UpstreamErrorInc(endpoint string) { c.UpstreamErrors.WithLabelValues(endpoint).Inc() }
func (c *Collector) TokenRefreshInc()                 { c.TokenRefreshes.Inc() }
func (c *Collector) CorrelationMissInc()              { c.CorrelationMisses.Inc() }
func (c *Collector) VehicleSelectedInc()              { c.VehiclesSelected.Inc() }
func (c *Collector) PollPassInc()                     { c.PollPasses.Inc() }
func (c *Collector) PollPassSkippedInc()              { c.PollPassesSkipped.Inc() }
func (c *Collector) PassObserve(seconds float64)      { c.PollPassDuration.Observe(seconds) }
func (c *Collector) SetActiveSessions(n int)          { c.ActiveSessions.Set(float64(n)) }
