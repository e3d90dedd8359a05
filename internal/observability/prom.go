package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"argus/internal/collector"
	"argus/internal/types"
)

// PromObs exports collection telemetry as Prometheus metrics.
type PromObs struct {
	collections *prometheus.CounterVec
	sensors     *prometheus.CounterVec
	duration    prometheus.Histogram
	verdicts    *prometheus.CounterVec
}

var _ collector.Observer = (*PromObs)(nil)

// NewPromObs registers the collection metrics on reg.
func NewPromObs(reg prometheus.Registerer) *PromObs {
	p := &PromObs{
		collections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "argus_collections_total",
			Help: "Completed collections by outcome.",
		}, []string{"outcome"}),
		sensors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "argus_sensor_results_total",
			Help: "Sensor results by category and status.",
		}, []string{"category", "status"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "argus_collection_duration_seconds",
			Help:    "Time from collection start to outcome.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		}),
		verdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "argus_bot_verdicts_total",
			Help: "Automation verdicts of successful collections.",
		}, []string{"verdict"}),
	}
	reg.MustRegister(p.collections, p.sensors, p.duration, p.verdicts)
	return p
}

func (p *PromObs) SensorFinished(category types.Category, res types.Result) {
	status := "failed"
	if _, ok := types.AsSuccess(res); ok {
		status = "success"
	}
	p.sensors.WithLabelValues(string(category), status).Inc()
}

func (p *PromObs) CollectionFinished(outcome collector.Outcome, elapsed time.Duration) {
	p.collections.WithLabelValues(string(outcome)).Inc()
	p.duration.Observe(elapsed.Seconds())
}

// Verdict counts one automation verdict.
func (p *PromObs) Verdict(isLikelyBot bool) {
	p.verdicts.WithLabelValues(strconv.FormatBool(isLikelyBot)).Inc()
}
