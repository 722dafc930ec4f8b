package metrics

import (
	"net/http"
	"time"

	"github.com/danielpatrickdp/creature-colony/internal/colony"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Rejection reasons used as the "reason" label.
const (
	ReasonInvalidStrategy    = "invalid_strategy"
	ReasonRiskTooHigh        = "risk_too_high"
	ReasonLowConfidence      = "low_confidence"
	ReasonInsufficientEnergy = "insufficient_energy"
	ReasonCellNotFound       = "cell_not_found"
	ReasonMissingCaller      = "missing_caller"
	ReasonInternal           = "internal"
)

// #region collector

// Collector holds the colony collectors on a private registry so several
// services can coexist in one process (tests, replay).
type Collector struct {
	registry *prometheus.Registry

	thoughts         prometheus.Counter
	rejections       *prometheus.CounterVec
	evolutions       prometheus.Counter
	registrations    prometheus.Counter
	evolutionStage   prometheus.Gauge
	stabilityIndex   prometheus.Gauge
	averageEnergy    prometheus.Gauge
	cellCount        prometheus.Gauge
	analysisDuration prometheus.Histogram
}

// New creates a collector with its own registry.
func New() *Collector {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Collector{
		registry: reg,

		thoughts: f.NewCounter(prometheus.CounterOpts{
			Name: "creature_thoughts_total",
			Help: "Thoughts committed to the colony",
		}),
		rejections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "creature_rejections_total",
			Help: "Strategy analyses rejected before commit, by reason",
		}, []string{"reason"}),
		evolutions: f.NewCounter(prometheus.CounterOpts{
			Name: "creature_evolutions_total",
			Help: "Evolution trigger firings",
		}),
		registrations: f.NewCounter(prometheus.CounterOpts{
			Name: "creature_registrations_total",
			Help: "Cells created by registration",
		}),
		evolutionStage: f.NewGauge(prometheus.GaugeOpts{
			Name: "creature_evolution_stage",
			Help: "Current colony evolution stage",
		}),
		stabilityIndex: f.NewGauge(prometheus.GaugeOpts{
			Name: "creature_stability_index",
			Help: "Colony stability index (0-100)",
		}),
		averageEnergy: f.NewGauge(prometheus.GaugeOpts{
			Name: "creature_average_energy",
			Help: "Average cell energy",
		}),
		cellCount: f.NewGauge(prometheus.GaugeOpts{
			Name: "creature_cells",
			Help: "Registered cells",
		}),
		analysisDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "creature_analysis_duration_seconds",
			Help:    "Tensor analysis duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~2s
		}),
	}
}

// #endregion collector

// #region observe

// ObserveAnalysis records one engine analysis run.
func (c *Collector) ObserveAnalysis(d time.Duration) {
	c.analysisDuration.Observe(d.Seconds())
}

// Committed records a committed thought and the resulting colony figures.
func (c *Collector) Committed(agg colony.Aggregate, evolved bool) {
	c.thoughts.Inc()
	if evolved {
		c.evolutions.Inc()
	}
	c.Set(agg)
}

// Registered records a newly created cell.
func (c *Collector) Registered(agg colony.Aggregate) {
	c.registrations.Inc()
	c.Set(agg)
}

// Rejected counts an aborted analysis.
func (c *Collector) Rejected(reason string) {
	c.rejections.WithLabelValues(reason).Inc()
}

// Set refreshes the gauges from a colony aggregate.
func (c *Collector) Set(agg colony.Aggregate) {
	c.evolutionStage.Set(float64(agg.Metrics.EvolutionStage))
	c.stabilityIndex.Set(float64(agg.Metrics.StabilityIndex))
	c.averageEnergy.Set(float64(agg.Metrics.AverageEnergy))
	c.cellCount.Set(float64(agg.CellCount))
}

// #endregion observe

// #region http

// Registry exposes the private registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// #endregion http
